package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// Notifier delivers the assignment notification. Best-effort: a false
// return is logged but never fails the run.
type Notifier interface {
	NotifyHandlerAssigned(ctx context.Context, handler *domain.Handler, ticket *domain.Ticket, reason string, severity domain.TicketSeverity, priority domain.TicketPriority) bool
}

// Result is the outcome of one completed triage run. Handler is nil when
// no active handler matched at any fallback level.
type Result struct {
	Ticket         *domain.Ticket
	Classification Classification
	Assignment     AssignmentRecommendation
	Handler        *domain.Handler
	Stages         []StageOutput
}

// Processor orchestrates one triage run per ticket: context build, stage
// chain, extraction, handler resolution, ticket update, audit trail and
// notification. Runs for different tickets are independent; the caller
// must not submit two concurrent runs for the same ticket.
type Processor struct {
	tickets        repository.TicketRepository
	audit          repository.AuditRepository
	stageResults   repository.StageResultRepository
	contextBuilder *ContextBuilder
	pipeline       *Pipeline
	resolver       *Resolver
	notifier       Notifier
	dispatcher     events.Dispatcher
	logger         *zap.Logger
	historyLimit   int
}

// ProcessorDependencies bundles collaborators.
type ProcessorDependencies struct {
	TicketRepo      repository.TicketRepository
	AuditRepo       repository.AuditRepository
	StageResultRepo repository.StageResultRepository
	ContextBuilder  *ContextBuilder
	Pipeline        *Pipeline
	Resolver        *Resolver
	Notifier        Notifier
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
	HistoryLimit    int
}

// NewProcessor creates the processor.
func NewProcessor(deps ProcessorDependencies) *Processor {
	return &Processor{
		tickets:        deps.TicketRepo,
		audit:          deps.AuditRepo,
		stageResults:   deps.StageResultRepo,
		contextBuilder: deps.ContextBuilder,
		pipeline:       deps.Pipeline,
		resolver:       deps.Resolver,
		notifier:       deps.Notifier,
		dispatcher:     deps.Dispatcher,
		logger:         deps.Logger,
		historyLimit:   deps.HistoryLimit,
	}
}

// ProcessTicket runs the full triage pipeline for one ticket. It blocks
// for the duration of the stage chain, which may be tens of seconds;
// callers should keep it off latency-sensitive request paths.
func (p *Processor) ProcessTicket(ctx context.Context, ticketID string) (*Result, error) {
	ticket, err := p.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	p.appendAudit(ctx, ticketID, domain.AuditProcessingStarted, "triage pipeline started processing ticket", nil)

	rctx := p.contextBuilder.Build(ctx, p.historyLimit)

	outputs, err := p.pipeline.Run(ctx, ticket, rctx, func(output StageOutput) {
		p.saveStageResult(ctx, ticketID, output)
		p.appendAudit(ctx, ticketID, domain.AuditStageCompleted,
			fmt.Sprintf("stage %s completed", output.Stage),
			map[string]any{"stage": output.Stage})
	})
	if err != nil {
		p.appendAudit(ctx, ticketID, domain.AuditProcessingError,
			fmt.Sprintf("error processing ticket: %v", err), nil)
		return nil, apperrors.NewEngineFailure(err)
	}

	combined := CombineOutputs(outputs)
	classification := ExtractClassification(combined)
	assignment := ExtractAssignment(combined)

	handler, err := p.resolver.Resolve(ctx, assignment.RoleHint)
	if err != nil {
		p.logger.Warn("handler roster lookup failed; leaving ticket unassigned",
			zap.String("ticket_id", ticketID), zap.Error(err))
		handler = nil
	}

	update := repository.TicketUpdate{
		Category: &classification.Category,
		Severity: &classification.Severity,
		Priority: &classification.Priority,
	}
	reason := assignment.Reason
	if handler != nil {
		if reason == "" {
			if assignment.RoleHint == "" {
				reason = "Auto-assigned to Support Manager (fallback)"
			} else {
				reason = "Auto-assigned by triage analysis"
			}
		}
		status := domain.TicketStatusAssigned
		update.Status = &status
		update.AssignedHandlerID = &handler.ID
		update.AssignedHandlerEmail = &handler.Email
		update.AssignmentReason = &reason
	}

	updated, err := p.tickets.Update(ctx, ticketID, update)
	if err != nil {
		p.appendAudit(ctx, ticketID, domain.AuditProcessingError,
			fmt.Sprintf("error processing ticket: %v", err), nil)
		return nil, apperrors.MapError(err)
	}

	if handler != nil {
		p.appendAudit(ctx, ticketID, domain.AuditTicketAssigned,
			fmt.Sprintf("ticket assigned to %s", handler.Name),
			map[string]any{"handler_id": handler.ID, "reason": reason})
		p.publishEvent(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticketID,
			Payload: events.TicketAssignedPayload{
				HandlerID:    handler.ID,
				HandlerEmail: handler.Email,
				Reason:       reason,
			},
		})
		if p.notifier != nil {
			if ok := p.notifier.NotifyHandlerAssigned(ctx, handler, updated, reason, classification.Severity, classification.Priority); !ok {
				p.logger.Warn("assignment notification failed",
					zap.String("ticket_id", ticketID),
					zap.String("handler_email", handler.Email))
			}
		}
	} else {
		p.appendAudit(ctx, ticketID, domain.AuditNoHandlerAvailable,
			"no active handler matched at any fallback level; ticket left unassigned", nil)
	}

	p.appendAudit(ctx, ticketID, domain.AuditProcessingCompleted, "triage processing completed", nil)
	p.publishEvent(ctx, events.Event{
		Type:     events.EventTicketTriaged,
		TicketID: ticketID,
		Payload: events.TicketTriagedPayload{
			Severity: classification.Severity,
			Priority: classification.Priority,
			Category: classification.Category,
		},
	})

	return &Result{
		Ticket:         updated,
		Classification: classification,
		Assignment:     assignment,
		Handler:        handler,
		Stages:         outputs,
	}, nil
}

// appendAudit writes one trail entry. Audit write failures are logged and
// absorbed; they never interrupt the run.
func (p *Processor) appendAudit(ctx context.Context, ticketID string, action domain.AuditAction, details string, metadata map[string]any) {
	entry := &domain.AuditEntry{
		TicketID: ticketID,
		Action:   action,
		Actor:    domain.ActorSystem,
		Details:  details,
		Metadata: metadata,
	}
	if err := p.audit.Append(ctx, entry); err != nil {
		p.logger.Warn("audit append failed",
			zap.String("ticket_id", ticketID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

func (p *Processor) saveStageResult(ctx context.Context, ticketID string, output StageOutput) {
	result := &domain.StageResult{
		TicketID:  ticketID,
		StageName: output.Stage,
		Text:      output.Text,
	}
	if err := p.stageResults.Save(ctx, result); err != nil {
		p.logger.Warn("stage result save failed",
			zap.String("ticket_id", ticketID),
			zap.String("stage", output.Stage),
			zap.Error(err))
	}
}

func (p *Processor) publishEvent(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Actor = domain.ActorSystem
	event.Timestamp = time.Now()
	_ = p.dispatcher.Publish(ctx, event)
}
