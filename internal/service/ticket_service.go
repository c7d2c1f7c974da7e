package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// TriageEnqueuer schedules a ticket for asynchronous triage.
type TriageEnqueuer interface {
	Enqueue(ctx context.Context, ticketID string) error
}

// TicketService coordinates ticket intake and lifecycle. The triage
// pipeline itself runs elsewhere; intake only enqueues it.
type TicketService struct {
	tickets      repository.TicketRepository
	audit        repository.AuditRepository
	stageResults repository.StageResultRepository
	queue        TriageEnqueuer
	dispatcher   events.Dispatcher
	logger       *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo      repository.TicketRepository
	AuditRepo       repository.AuditRepository
	StageResultRepo repository.StageResultRepository
	Queue           TriageEnqueuer
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	RequesterName  string
	RequesterEmail string
	Title          string
	Description    string
	Category       *string
}

// StatusChangeInput describes a lifecycle transition request.
type StatusChangeInput struct {
	Status     domain.TicketStatus
	Comment    string
	Resolution *string
	Actor      string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:      deps.TicketRepo,
		audit:        deps.AuditRepo,
		stageResults: deps.StageResultRepo,
		queue:        deps.Queue,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
	}
}

// CreateTicket creates a ticket and schedules it for triage.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, apperrors.NewValidationError("title and description required", nil)
	}

	ticket := &domain.Ticket{
		ExternalKey:    generateTicketKey(),
		RequesterName:  strings.TrimSpace(input.RequesterName),
		RequesterEmail: strings.TrimSpace(input.RequesterEmail),
		Title:          title,
		Description:    description,
		Category:       input.Category,
		Status:         domain.TicketStatusOpen,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.appendAudit(ctx, ticket.ID, domain.AuditTicketCreated, "ticket created: "+ticket.Title, nil)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload: events.TicketCreatedPayload{
			ExternalKey: ticket.ExternalKey,
			Title:       ticket.Title,
		},
	})

	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, ticket.ID); err != nil {
			// Intake succeeded; triage can still be triggered manually.
			s.logger.Warn("failed to enqueue ticket for triage",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	return ticket, nil
}

// GetTicket fetches one ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// GetTicketDetail fetches a ticket with its audit trail and stage results.
func (s *TicketService) GetTicketDetail(ctx context.Context, ticketID string) (*domain.Ticket, []domain.AuditEntry, []domain.StageResult, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, nil, err
	}
	trail, err := s.audit.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, nil, apperrors.MapError(err)
	}
	stages, err := s.stageResults.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, nil, apperrors.MapError(err)
	}
	return ticket, trail, stages, nil
}

// ListTickets returns tickets matching the filter.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// EnqueueTriage schedules an existing ticket for (re)processing.
func (s *TicketService) EnqueueTriage(ctx context.Context, ticketID string) error {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return err
	}
	if s.queue == nil {
		return apperrors.NewInternalError(errors.New("triage queue not configured"))
	}
	if err := s.queue.Enqueue(ctx, ticketID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// ChangeStatus moves a ticket forward through its lifecycle. Transitions
// are monotonic; going backwards requires ReopenTicket.
func (s *TicketService) ChangeStatus(ctx context.Context, ticketID string, input StatusChangeInput) (*domain.Ticket, error) {
	if !domain.ValidStatus(input.Status) {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": input.Status})
	}
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(ticket.Status, input.Status) {
		return nil, apperrors.NewConflict("invalid status transition", map[string]any{
			"from": ticket.Status,
			"to":   input.Status,
		})
	}

	update := repository.TicketUpdate{Status: &input.Status}
	if input.Status == domain.TicketStatusResolved {
		update.MarkResolved = true
		update.Resolution = input.Resolution
	}
	updated, err := s.tickets.Update(ctx, ticketID, update)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.recordStatusChange(ctx, updated, ticket.Status, input)
	return updated, nil
}

// ReopenTicket is the explicit admin exception to monotonic transitions:
// it returns a resolved or closed ticket to the open state.
func (s *TicketService) ReopenTicket(ctx context.Context, ticketID, actor string) (*domain.Ticket, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != domain.TicketStatusResolved && ticket.Status != domain.TicketStatusClosed {
		return nil, apperrors.NewConflict("only resolved or closed tickets can be reopened", map[string]any{
			"status": ticket.Status,
		})
	}

	status := domain.TicketStatusOpen
	updated, err := s.tickets.Update(ctx, ticketID, repository.TicketUpdate{Status: &status})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordStatusChange(ctx, updated, ticket.Status, StatusChangeInput{
		Status:  status,
		Comment: "ticket reopened",
		Actor:   actor,
	})
	return updated, nil
}

// Metrics returns aggregate ticket counts.
func (s *TicketService) Metrics(ctx context.Context) (*repository.TicketMetrics, error) {
	metrics, err := s.tickets.Metrics(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return metrics, nil
}

func (s *TicketService) recordStatusChange(ctx context.Context, ticket *domain.Ticket, oldStatus domain.TicketStatus, input StatusChangeInput) {
	actor := input.Actor
	if actor == "" {
		actor = domain.ActorSystem
	}
	s.appendAuditAs(ctx, ticket.ID, domain.AuditStatusChanged, actor, input.Comment, map[string]any{
		"old_status": string(oldStatus),
		"new_status": string(input.Status),
	})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: input.Status,
			Comment:   input.Comment,
		},
	})
}

func (s *TicketService) appendAudit(ctx context.Context, ticketID string, action domain.AuditAction, details string, metadata map[string]any) {
	s.appendAuditAs(ctx, ticketID, action, domain.ActorSystem, details, metadata)
}

func (s *TicketService) appendAuditAs(ctx context.Context, ticketID string, action domain.AuditAction, actor, details string, metadata map[string]any) {
	entry := &domain.AuditEntry{
		TicketID: ticketID,
		Action:   action,
		Actor:    actor,
		Details:  details,
		Metadata: metadata,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("audit append failed",
			zap.String("ticket_id", ticketID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	if event.Actor == "" {
		event.Actor = domain.ActorSystem
	}
	event.Timestamp = time.Now()
	_ = s.dispatcher.Publish(ctx, event)
}

func generateTicketKey() string {
	return "TRG-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
