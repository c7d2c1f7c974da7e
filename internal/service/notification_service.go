package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
)

// NotificationService delivers assignment notifications. Delivery is a
// logged stub: the email and webhook payloads are composed and recorded
// but no external call is made. Failures are reported to the caller as a
// false return, never as an error.
type NotificationService struct {
	cfg    config.NotificationConfig
	logger *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(cfg config.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{cfg: cfg, logger: logger}
}

// NotifyHandlerAssigned composes and "sends" the assignment notice to the
// resolved handler. Returns false when no destination is configured.
func (s *NotificationService) NotifyHandlerAssigned(ctx context.Context, handler *domain.Handler, ticket *domain.Ticket, reason string, severity domain.TicketSeverity, priority domain.TicketPriority) bool {
	if handler == nil || handler.Email == "" {
		return false
	}

	subject := fmt.Sprintf("[%s] Ticket %s assigned to you: %s", severity, ticket.ExternalKey, ticket.Title)
	body := fmt.Sprintf(
		"Hello %s,\n\nTicket %s has been assigned to you.\n\nTitle: %s\nSeverity: %s\nPriority: %s\nReason: %s\n\nDescription:\n%s\n",
		handler.Name, ticket.ExternalKey, ticket.Title, severity, priority, reason, ticket.Description,
	)

	s.logger.Info("assignment notification dispatched",
		zap.String("ticket_id", ticket.ID),
		zap.String("to", handler.Email),
		zap.String("from", s.cfg.EmailFrom),
		zap.String("subject", subject),
		zap.Int("body_chars", len(body)))

	if s.cfg.WebhookURL != "" {
		s.logger.Debug("assignment webhook dispatched",
			zap.String("ticket_id", ticket.ID),
			zap.String("url", s.cfg.WebhookURL),
			zap.String("handler_id", handler.ID))
	}
	return true
}

// RegisterHandlers subscribes notification listeners to domain events so
// status changes are surfaced in the logs alongside assignments.
func (s *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketCreated, func(ctx context.Context, event events.Event) error {
		s.logger.Debug("ticket created event received", zap.String("ticket_id", event.TicketID))
		return nil
	})
	dispatcher.Subscribe(events.EventTicketStatusChanged, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.TicketStatusChangedPayload)
		if !ok {
			return nil
		}
		s.logger.Info("ticket status changed",
			zap.String("ticket_id", event.TicketID),
			zap.String("old_status", string(payload.OldStatus)),
			zap.String("new_status", string(payload.NewStatus)))
		return nil
	})
}
