package domain

import "time"

// StageResult stores the raw text one reasoning stage produced for a
// ticket. Rows are append-only; reruns accumulate rather than replace.
type StageResult struct {
	ID        string
	TicketID  string
	StageName string
	Text      string
	CreatedAt time.Time
}
