package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

type fakeTicketRepo struct {
	tickets     map[string]*domain.Ticket
	updateCalls int
	failUpdate  error
}

func newFakeTicketRepo(tickets ...*domain.Ticket) *fakeTicketRepo {
	repo := &fakeTicketRepo{tickets: map[string]*domain.Ticket{}}
	for _, ticket := range tickets {
		repo.tickets[ticket.ID] = ticket
	}
	return repo
}

func (f *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	f.tickets[ticket.ID] = ticket
	return nil
}

func (f *fakeTicketRepo) Update(ctx context.Context, id string, update repository.TicketUpdate) (*domain.Ticket, error) {
	f.updateCalls++
	if f.failUpdate != nil {
		return nil, f.failUpdate
	}
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if update.Category != nil {
		ticket.Category = update.Category
	}
	if update.Severity != nil {
		ticket.Severity = update.Severity
	}
	if update.Priority != nil {
		ticket.Priority = update.Priority
	}
	if update.Status != nil {
		ticket.Status = *update.Status
	}
	if update.AssignedHandlerID != nil {
		ticket.AssignedHandlerID = update.AssignedHandlerID
	}
	if update.AssignedHandlerEmail != nil {
		ticket.AssignedHandlerEmail = update.AssignedHandlerEmail
	}
	if update.AssignmentReason != nil {
		ticket.AssignmentReason = update.AssignmentReason
	}
	if update.Resolution != nil {
		ticket.Resolution = update.Resolution
	}
	return ticket, nil
}

func (f *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return ticket, nil
}

func (f *fakeTicketRepo) GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error) {
	for _, ticket := range f.tickets {
		if ticket.ExternalKey == key {
			return ticket, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeTicketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range f.tickets {
		result = append(result, *ticket)
	}
	return result, nil
}

func (f *fakeTicketRepo) Metrics(ctx context.Context) (*repository.TicketMetrics, error) {
	return &repository.TicketMetrics{Total: int64(len(f.tickets))}, nil
}

type fakeAuditRepo struct {
	entries []domain.AuditEntry
	failAll bool
}

func (f *fakeAuditRepo) Append(ctx context.Context, entry *domain.AuditEntry) error {
	if f.failAll {
		return errors.New("audit store down")
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditEntry, error) {
	return f.entries, nil
}

func (f *fakeAuditRepo) actions() []domain.AuditAction {
	actions := make([]domain.AuditAction, 0, len(f.entries))
	for _, entry := range f.entries {
		actions = append(actions, entry.Action)
	}
	return actions
}

type fakeStageResultRepo struct {
	results []domain.StageResult
}

func (f *fakeStageResultRepo) Save(ctx context.Context, result *domain.StageResult) error {
	f.results = append(f.results, *result)
	return nil
}

func (f *fakeStageResultRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.StageResult, error) {
	return f.results, nil
}

type fakeNotifier struct {
	calls  int
	result bool
}

func (f *fakeNotifier) NotifyHandlerAssigned(ctx context.Context, handler *domain.Handler, ticket *domain.Ticket, reason string, severity domain.TicketSeverity, priority domain.TicketPriority) bool {
	f.calls++
	return f.result
}

type processorFixture struct {
	processor *Processor
	tickets   *fakeTicketRepo
	audit     *fakeAuditRepo
	stages    *fakeStageResultRepo
	notifier  *fakeNotifier
	engine    *scriptedEngine
}

func newProcessorFixture(t *testing.T, roster []domain.Handler, eng *scriptedEngine) *processorFixture {
	t.Helper()
	logger := zap.NewNop()
	tickets := newFakeTicketRepo(testTicket())
	audit := &fakeAuditRepo{}
	stages := &fakeStageResultRepo{}
	notifier := &fakeNotifier{result: true}
	handlerRepo := &fakeHandlerRepo{handlers: roster}

	processor := NewProcessor(ProcessorDependencies{
		TicketRepo:      tickets,
		AuditRepo:       audit,
		StageResultRepo: stages,
		ContextBuilder:  NewContextBuilder(nil, DefaultOrgContext(), logger),
		Pipeline:        NewPipeline(eng, DefaultStages(), logger),
		Resolver:        NewResolver(handlerRepo),
		Notifier:        notifier,
		Dispatcher:      events.NewInMemoryDispatcher(),
		Logger:          logger,
		HistoryLimit:    20,
	})
	return &processorFixture{
		processor: processor,
		tickets:   tickets,
		audit:     audit,
		stages:    stages,
		notifier:  notifier,
		engine:    eng,
	}
}

func happyEngine() *scriptedEngine {
	return &scriptedEngine{outputs: []string{
		"risk hypotheses around payment webhook retries",
		`support summary {"severity":"P0","category":"payment","priority":"high"}`,
		"infra analysis: queue backlog, scale workers",
		"backend analysis: idempotency gap in unlock worker",
		`action plan {"recommended_manager_role": "Backend Lead", "assignment_reason": "payment unlock regression", "action_items": ["rollback"]}`,
	}}
}

func TestProcessTicketHappyPath(t *testing.T) {
	fx := newProcessorFixture(t, seededRoster(), happyEngine())

	result, err := fx.processor.ProcessTicket(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, domain.SeverityP0, result.Classification.Severity)
	assert.Equal(t, domain.TicketPriorityHigh, result.Classification.Priority)
	assert.Equal(t, "payment", result.Classification.Category)
	require.NotNil(t, result.Handler)
	assert.Equal(t, "priya@example.com", result.Handler.Email)

	ticket := fx.tickets.tickets["t1"]
	assert.Equal(t, domain.TicketStatusAssigned, ticket.Status)
	require.NotNil(t, ticket.AssignedHandlerEmail)
	assert.Equal(t, "priya@example.com", *ticket.AssignedHandlerEmail)
	require.NotNil(t, ticket.AssignmentReason)
	assert.Equal(t, "payment unlock regression", *ticket.AssignmentReason)

	assert.Equal(t, []domain.AuditAction{
		domain.AuditProcessingStarted,
		domain.AuditStageCompleted,
		domain.AuditStageCompleted,
		domain.AuditStageCompleted,
		domain.AuditStageCompleted,
		domain.AuditStageCompleted,
		domain.AuditTicketAssigned,
		domain.AuditProcessingCompleted,
	}, fx.audit.actions())

	require.Len(t, fx.stages.results, 5)
	assert.Equal(t, StageContextAnalysis, fx.stages.results[0].StageName)
	assert.Equal(t, StageSynthesis, fx.stages.results[4].StageName)
	assert.Equal(t, 1, fx.notifier.calls)
}

func TestProcessTicketEngineFailureLeavesTicketUntouched(t *testing.T) {
	eng := &scriptedEngine{failAt: 3, failWith: errors.New("model unavailable")}
	fx := newProcessorFixture(t, seededRoster(), eng)

	_, err := fx.processor.ProcessTicket(context.Background(), "t1")

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "ENGINE_FAILURE"))

	// Pre-run state preserved: no update call, classification untouched.
	assert.Equal(t, 0, fx.tickets.updateCalls)
	ticket := fx.tickets.tickets["t1"]
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Nil(t, ticket.Severity)
	assert.Nil(t, ticket.AssignedHandlerEmail)

	assert.Equal(t, []domain.AuditAction{
		domain.AuditProcessingStarted,
		domain.AuditStageCompleted,
		domain.AuditStageCompleted,
		domain.AuditProcessingError,
	}, fx.audit.actions())
	assert.Equal(t, 0, fx.notifier.calls)
}

func TestProcessTicketUnknownIDRecordsNoAudit(t *testing.T) {
	fx := newProcessorFixture(t, seededRoster(), happyEngine())

	_, err := fx.processor.ProcessTicket(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
	assert.Empty(t, fx.audit.entries)
	assert.Len(t, fx.engine.calls, 0)
}

func TestProcessTicketNoHandlerAvailable(t *testing.T) {
	fx := newProcessorFixture(t, nil, happyEngine())

	result, err := fx.processor.ProcessTicket(context.Background(), "t1")
	require.NoError(t, err)
	assert.Nil(t, result.Handler)

	// Classification still lands; assignment fields stay empty.
	ticket := fx.tickets.tickets["t1"]
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	require.NotNil(t, ticket.Severity)
	assert.Equal(t, domain.SeverityP0, *ticket.Severity)
	assert.Nil(t, ticket.AssignedHandlerEmail)

	actions := fx.audit.actions()
	assert.Contains(t, actions, domain.AuditNoHandlerAvailable)
	assert.NotContains(t, actions, domain.AuditTicketAssigned)
	assert.Equal(t, domain.AuditProcessingCompleted, actions[len(actions)-1])
	assert.Equal(t, 0, fx.notifier.calls)
}

func TestProcessTicketFallbackAssignmentReason(t *testing.T) {
	// Stage output with no assignment JSON and no role label: resolver
	// falls through to the Support Manager and the reason says so.
	eng := &scriptedEngine{outputs: []string{
		"context", `{"severity":"P1","category":"auth","priority":"medium"}`, "infra", "backend", "plan with no ownership block",
	}}
	fx := newProcessorFixture(t, seededRoster(), eng)

	result, err := fx.processor.ProcessTicket(context.Background(), "t1")
	require.NoError(t, err)

	require.NotNil(t, result.Handler)
	assert.Equal(t, "amit@example.com", result.Handler.Email)
	ticket := fx.tickets.tickets["t1"]
	require.NotNil(t, ticket.AssignmentReason)
	assert.Equal(t, "Auto-assigned to Support Manager (fallback)", *ticket.AssignmentReason)
}

func TestProcessTicketNotificationFailureDoesNotFailRun(t *testing.T) {
	fx := newProcessorFixture(t, seededRoster(), happyEngine())
	fx.notifier.result = false

	result, err := fx.processor.ProcessTicket(context.Background(), "t1")

	require.NoError(t, err)
	require.NotNil(t, result.Handler)
	assert.Equal(t, 1, fx.notifier.calls)
	assert.Contains(t, fx.audit.actions(), domain.AuditTicketAssigned)
	assert.Equal(t, domain.AuditProcessingCompleted, fx.audit.actions()[len(fx.audit.actions())-1])
}

func TestProcessTicketAuditFailuresAreAbsorbed(t *testing.T) {
	fx := newProcessorFixture(t, seededRoster(), happyEngine())
	fx.audit.failAll = true

	result, err := fx.processor.ProcessTicket(context.Background(), "t1")

	require.NoError(t, err)
	require.NotNil(t, result.Handler)
	assert.Equal(t, domain.TicketStatusAssigned, fx.tickets.tickets["t1"].Status)
}

func TestProcessTicketExactlyOneStartAndOneTerminal(t *testing.T) {
	for name, fx := range map[string]*processorFixture{
		"success": newProcessorFixture(t, seededRoster(), happyEngine()),
		"failure": newProcessorFixture(t, seededRoster(), &scriptedEngine{failAt: 1, failWith: errors.New("boom")}),
	} {
		_, _ = fx.processor.ProcessTicket(context.Background(), "t1")

		var starts, terminals int
		for _, action := range fx.audit.actions() {
			switch action {
			case domain.AuditProcessingStarted:
				starts++
			case domain.AuditProcessingCompleted, domain.AuditProcessingError:
				terminals++
			}
		}
		assert.Equal(t, 1, starts, name)
		assert.Equal(t, 1, terminals, name)
		assert.Equal(t, domain.AuditProcessingStarted, fx.audit.actions()[0], name)
	}
}
