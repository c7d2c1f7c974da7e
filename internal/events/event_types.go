package events

import (
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketTriaged       EventType = "ticket_triaged"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketStatusChanged EventType = "ticket_status_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     string      `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	ExternalKey string `json:"external_key"`
	Title       string `json:"title"`
}

// TicketTriagedPayload payload.
type TicketTriagedPayload struct {
	Severity domain.TicketSeverity `json:"severity"`
	Priority domain.TicketPriority `json:"priority"`
	Category string                `json:"category"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	HandlerID    string `json:"handler_id"`
	HandlerEmail string `json:"handler_email"`
	Reason       string `json:"reason"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}
