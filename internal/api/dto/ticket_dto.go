package dto

import (
	"time"

	"github.com/spec-kit/triage-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	RequesterName  string  `json:"requester_name"`
	RequesterEmail string  `json:"requester_email"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Category       *string `json:"category,omitempty"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status     domain.TicketStatus `json:"status"`
	Comment    string              `json:"comment,omitempty"`
	Resolution *string             `json:"resolution,omitempty"`
	Actor      string              `json:"actor,omitempty"`
}

// TicketSummary response.
type TicketSummary struct {
	ID                   string                 `json:"id"`
	ExternalKey          string                 `json:"external_key"`
	Title                string                 `json:"title"`
	Status               domain.TicketStatus    `json:"status"`
	Category             *string                `json:"category"`
	Severity             *domain.TicketSeverity `json:"severity"`
	Priority             *domain.TicketPriority `json:"priority"`
	AssignedHandlerEmail *string                `json:"assigned_handler_email"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info plus the audit trail and
// per-stage pipeline outputs.
type TicketDetailResponse struct {
	ID                   string                 `json:"id"`
	ExternalKey          string                 `json:"external_key"`
	RequesterName        string                 `json:"requester_name"`
	RequesterEmail       string                 `json:"requester_email"`
	Title                string                 `json:"title"`
	Description          string                 `json:"description"`
	Status               domain.TicketStatus    `json:"status"`
	Category             *string                `json:"category"`
	Severity             *domain.TicketSeverity `json:"severity"`
	Priority             *domain.TicketPriority `json:"priority"`
	AssignedHandlerID    *string                `json:"assigned_handler_id"`
	AssignedHandlerEmail *string                `json:"assigned_handler_email"`
	AssignmentReason     *string                `json:"assignment_reason"`
	Resolution           *string                `json:"resolution"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
	ResolvedAt           *time.Time             `json:"resolved_at"`
	AuditTrail           []AuditEntryResponse   `json:"audit_trail"`
	StageResults         []StageResultResponse  `json:"stage_results"`
}

// AuditEntryResponse represents one audit trail entry.
type AuditEntryResponse struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	Details   string         `json:"details"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// StageResultResponse represents one persisted pipeline stage output.
type StageResultResponse struct {
	ID        string    `json:"id"`
	Stage     string    `json:"stage"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// HandlerResponse represents one roster entry.
type HandlerResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Expertise  string `json:"expertise"`
}

// TicketMetricsResponse aggregates counts for reporting.
type TicketMetricsResponse struct {
	Total             int64            `json:"total"`
	ByStatus          map[string]int64 `json:"by_status"`
	BySeverity        map[string]int64 `json:"by_severity"`
	AvgResolutionDays float64          `json:"avg_resolution_days"`
}
