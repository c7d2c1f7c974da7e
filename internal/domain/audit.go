package domain

import "time"

// AuditAction tags one lifecycle event in the ticket audit trail.
type AuditAction string

const (
	AuditTicketCreated       AuditAction = "created"
	AuditProcessingStarted   AuditAction = "processing_started"
	AuditStageCompleted      AuditAction = "stage_completed"
	AuditTicketAssigned      AuditAction = "assigned"
	AuditNoHandlerAvailable  AuditAction = "no_handler_available"
	AuditProcessingCompleted AuditAction = "processing_completed"
	AuditProcessingError     AuditAction = "processing_error"
	AuditStatusChanged       AuditAction = "status_changed"
)

// ActorSystem is the actor tag for entries written by the pipeline.
const ActorSystem = "system"

// AuditEntry is an immutable, append-only record of one ticket lifecycle
// event. Entries are ordered by creation time and never rewritten.
type AuditEntry struct {
	ID        string
	TicketID  string
	Action    AuditAction
	Actor     string
	Details   string
	Metadata  map[string]any
	CreatedAt time.Time
}
