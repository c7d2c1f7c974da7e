package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

type memTicketRepo struct {
	tickets map[string]*domain.Ticket
	nextID  int
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: map[string]*domain.Ticket{}}
}

func (m *memTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	m.nextID++
	ticket.ID = fmt.Sprintf("t%d", m.nextID)
	m.tickets[ticket.ID] = ticket
	return nil
}

func (m *memTicketRepo) Update(ctx context.Context, id string, update repository.TicketUpdate) (*domain.Ticket, error) {
	ticket, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if update.Status != nil {
		ticket.Status = *update.Status
	}
	if update.Resolution != nil {
		ticket.Resolution = update.Resolution
	}
	return ticket, nil
}

func (m *memTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return ticket, nil
}

func (m *memTicketRepo) GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error) {
	for _, ticket := range m.tickets {
		if ticket.ExternalKey == key {
			return ticket, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memTicketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range m.tickets {
		result = append(result, *ticket)
	}
	return result, nil
}

func (m *memTicketRepo) Metrics(ctx context.Context) (*repository.TicketMetrics, error) {
	return &repository.TicketMetrics{Total: int64(len(m.tickets))}, nil
}

type memAuditRepo struct {
	entries []domain.AuditEntry
}

func (m *memAuditRepo) Append(ctx context.Context, entry *domain.AuditEntry) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memAuditRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditEntry, error) {
	return m.entries, nil
}

type memStageRepo struct{}

func (memStageRepo) Save(ctx context.Context, result *domain.StageResult) error { return nil }
func (memStageRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.StageResult, error) {
	return nil, nil
}

type memQueue struct {
	queued   []string
	failWith error
}

func (m *memQueue) Enqueue(ctx context.Context, ticketID string) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.queued = append(m.queued, ticketID)
	return nil
}

type serviceFixture struct {
	service *TicketService
	tickets *memTicketRepo
	audit   *memAuditRepo
	queue   *memQueue
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	tickets := newMemTicketRepo()
	audit := &memAuditRepo{}
	q := &memQueue{}
	svc := NewTicketService(TicketDependencies{
		TicketRepo:      tickets,
		AuditRepo:       audit,
		StageResultRepo: memStageRepo{},
		Queue:           q,
		Dispatcher:      events.NewInMemoryDispatcher(),
		Logger:          zap.NewNop(),
	})
	return &serviceFixture{service: svc, tickets: tickets, audit: audit, queue: q}
}

func TestCreateTicketQueuesTriage(t *testing.T) {
	fx := newServiceFixture(t)

	ticket, err := fx.service.CreateTicket(context.Background(), TicketCreateInput{
		RequesterName:  "Asha",
		RequesterEmail: "asha@example.com",
		Title:          "  Video keeps buffering  ",
		Description:    "Rebuffering every few seconds on mobile.",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, "Video keeps buffering", ticket.Title)
	assert.True(t, strings.HasPrefix(ticket.ExternalKey, "TRG-"))

	require.Len(t, fx.audit.entries, 1)
	assert.Equal(t, domain.AuditTicketCreated, fx.audit.entries[0].Action)
	assert.Equal(t, []string{ticket.ID}, fx.queue.queued)
}

func TestCreateTicketRequiresTitleAndDescription(t *testing.T) {
	fx := newServiceFixture(t)

	_, err := fx.service.CreateTicket(context.Background(), TicketCreateInput{Title: "   "})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	assert.Empty(t, fx.queue.queued)
}

func TestCreateTicketSurvivesEnqueueFailure(t *testing.T) {
	fx := newServiceFixture(t)
	fx.queue.failWith = errors.New("redis gone")

	ticket, err := fx.service.CreateTicket(context.Background(), TicketCreateInput{
		Title:       "Login broken",
		Description: "OTP never arrives.",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
}

func TestChangeStatusForward(t *testing.T) {
	fx := newServiceFixture(t)
	ticket, err := fx.service.CreateTicket(context.Background(), TicketCreateInput{
		Title: "t", Description: "d",
	})
	require.NoError(t, err)

	resolution := "restarted the unlock worker"
	updated, err := fx.service.ChangeStatus(context.Background(), ticket.ID, StatusChangeInput{
		Status:     domain.TicketStatusResolved,
		Resolution: &resolution,
		Actor:      "oncall",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, updated.Status)
	require.NotNil(t, updated.Resolution)
	assert.Equal(t, resolution, *updated.Resolution)

	last := fx.audit.entries[len(fx.audit.entries)-1]
	assert.Equal(t, domain.AuditStatusChanged, last.Action)
	assert.Equal(t, "oncall", last.Actor)
	assert.Equal(t, "open", last.Metadata["old_status"])
	assert.Equal(t, "resolved", last.Metadata["new_status"])
}

func TestChangeStatusRejectsBackwardTransition(t *testing.T) {
	fx := newServiceFixture(t)
	ticket, err := fx.service.CreateTicket(context.Background(), TicketCreateInput{
		Title: "t", Description: "d",
	})
	require.NoError(t, err)

	_, err = fx.service.ChangeStatus(context.Background(), ticket.ID, StatusChangeInput{Status: domain.TicketStatusResolved})
	require.NoError(t, err)

	_, err = fx.service.ChangeStatus(context.Background(), ticket.ID, StatusChangeInput{Status: domain.TicketStatusInProgress})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
}

func TestChangeStatusRejectsUnknownStatus(t *testing.T) {
	fx := newServiceFixture(t)
	ticket, err := fx.service.CreateTicket(context.Background(), TicketCreateInput{
		Title: "t", Description: "d",
	})
	require.NoError(t, err)

	_, err = fx.service.ChangeStatus(context.Background(), ticket.ID, StatusChangeInput{Status: "archived"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestReopenTicket(t *testing.T) {
	fx := newServiceFixture(t)
	ticket, err := fx.service.CreateTicket(context.Background(), TicketCreateInput{
		Title: "t", Description: "d",
	})
	require.NoError(t, err)

	// Cannot reopen an open ticket.
	_, err = fx.service.ReopenTicket(context.Background(), ticket.ID, "admin")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))

	_, err = fx.service.ChangeStatus(context.Background(), ticket.ID, StatusChangeInput{Status: domain.TicketStatusClosed})
	require.NoError(t, err)

	reopened, err := fx.service.ReopenTicket(context.Background(), ticket.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, reopened.Status)
}

func TestEnqueueTriageUnknownTicket(t *testing.T) {
	fx := newServiceFixture(t)

	err := fx.service.EnqueueTriage(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
	assert.Empty(t, fx.queue.queued)
}
