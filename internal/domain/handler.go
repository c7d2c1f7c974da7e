package domain

import "time"

// Handler models a person eligible to own ticket resolution. The roster is
// externally owned; the triage pipeline only reads it.
type Handler struct {
	ID         string
	Name       string
	Email      string
	Role       string
	Department string
	Expertise  string
	Active     bool
	CreatedAt  time.Time
}
