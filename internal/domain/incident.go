package domain

import "time"

// PastIncident is a historical incident used as reasoning context.
type PastIncident struct {
	ID         string
	Date       time.Time
	Summary    string
	Category   string
	Severity   string
	Resolution string
	Mitigation string
	CreatedAt  time.Time
}
