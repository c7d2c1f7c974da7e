package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusAssigned   TicketStatus = "assigned"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// statusRank orders the lifecycle; transitions must move forward except
// for an explicit admin reopen.
var statusRank = map[TicketStatus]int{
	TicketStatusOpen:       0,
	TicketStatusAssigned:   1,
	TicketStatusInProgress: 2,
	TicketStatusResolved:   3,
	TicketStatusClosed:     4,
}

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s TicketStatus) bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransition reports whether a ticket may move from one status to the
// next without an admin reopen.
func CanTransition(from, to TicketStatus) bool {
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// TicketSeverity enumerates incident severity levels.
type TicketSeverity string

const (
	SeverityP0 TicketSeverity = "P0"
	SeverityP1 TicketSeverity = "P1"
	SeverityP2 TicketSeverity = "P2"
)

// TicketPriority enumerates handling urgency.
type TicketPriority string

const (
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityLow    TicketPriority = "low"
)

// Ticket is the aggregate for user-reported issues. Severity, priority and
// category stay nil until the triage pipeline classifies the ticket.
type Ticket struct {
	ID                   string
	ExternalKey          string
	RequesterName        string
	RequesterEmail       string
	Title                string
	Description          string
	Category             *string
	Severity             *TicketSeverity
	Priority             *TicketPriority
	Status               TicketStatus
	AssignedHandlerID    *string
	AssignedHandlerEmail *string
	AssignmentReason     *string
	Resolution           *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	ResolvedAt           *time.Time
}
