package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/repository"
)

// ReleaseNote describes one recent release in the org context.
type ReleaseNote struct {
	Date    string   `json:"date"`
	Release string   `json:"release"`
	Notes   []string `json:"notes"`
}

// KnownIncident is a statically configured incident fact.
type KnownIncident struct {
	Date       string `json:"date"`
	Summary    string `json:"summary"`
	Mitigation string `json:"mitigation"`
}

// OrgContext holds static organizational knowledge fed to every stage.
type OrgContext struct {
	Product        string            `json:"product"`
	Stack          map[string]string `json:"stack"`
	RecentChanges  []ReleaseNote     `json:"recent_changes"`
	KnownIncidents []KnownIncident   `json:"known_incidents"`
	SLATargets     map[string]string `json:"sla_targets"`
}

// IncidentSnapshot is a historical incident rendered for stage prompts.
type IncidentSnapshot struct {
	Date       string `json:"date"`
	Summary    string `json:"summary"`
	Category   string `json:"category"`
	Severity   string `json:"severity"`
	Resolution string `json:"resolution"`
	Mitigation string `json:"mitigation"`
}

// ReasoningContext is the immutable context bundle built once per pipeline
// run. All stages read it; none may mutate it.
type ReasoningContext struct {
	Org       OrgContext         `json:"org"`
	Incidents []IncidentSnapshot `json:"past_incidents_from_db"`
}

// MemoryJSON renders the whole bundle as indented JSON for stage prompts.
func (rc ReasoningContext) MemoryJSON() string {
	data, err := json.MarshalIndent(rc, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// IncidentsBlock renders historical incidents as a readable reference list.
// Returns "" when there is no history.
func (rc ReasoningContext) IncidentsBlock() string {
	if len(rc.Incidents) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("PAST INCIDENTS (for reference and pattern matching):\n")
	for _, incident := range rc.Incidents {
		fmt.Fprintf(&b, "- Date: %s\n", incident.Date)
		fmt.Fprintf(&b, "  Summary: %s\n", incident.Summary)
		fmt.Fprintf(&b, "  Category: %s\n", incident.Category)
		fmt.Fprintf(&b, "  Severity: %s\n", incident.Severity)
		if incident.Resolution != "" {
			fmt.Fprintf(&b, "  Resolution: %s\n", incident.Resolution)
		}
		if incident.Mitigation != "" {
			fmt.Fprintf(&b, "  Mitigation: %s\n", incident.Mitigation)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// DefaultOrgContext returns the built-in organizational facts.
func DefaultOrgContext() OrgContext {
	return OrgContext{
		Product: "AI-Powered Ticket Resolution System",
		Stack: map[string]string{
			"backend":       "REST API + PostgreSQL + Redis",
			"streaming":     "HLS via CDN + DRM",
			"auth":          "OTP provider + fallback provider",
			"payments":      "Payment gateway + webhook processor",
			"observability": "Sentry + Datadog + CloudWatch",
		},
		RecentChanges: []ReleaseNote{
			{
				Date:    "2026-01-15",
				Release: "v2.7.0",
				Notes: []string{
					"New dashboard query optimization attempt",
					"Payment unlock logic refactor to async worker",
					"Live test engine updated for new question formats",
					"OTP provider primary route updated for cost savings",
				},
			},
		},
		KnownIncidents: []KnownIncident{
			{
				Date:       "2025-12-28",
				Summary:    "OTP delays during 7-10pm IST due to provider throttling",
				Mitigation: "Added fallback provider but not fully rolled out to all regions",
			},
			{
				Date:       "2026-01-10",
				Summary:    "Payment deducted but unlock delay due to webhook retries backlog",
				Mitigation: "Scaled worker, but queue alerts were not tuned",
			},
		},
		SLATargets: map[string]string{
			"dashboard_p95_ms":    "1200",
			"video_rebuffer_rate": "<1%",
			"otp_delivery_s":      "<15s",
			"payment_unlock_s":    "<30s",
			"crash_free_sessions": ">=99.5%",
		},
	}
}

// ContextBuilder assembles the per-run reasoning context from static org
// facts plus recent incident history.
type ContextBuilder struct {
	incidents repository.IncidentRepository
	org       OrgContext
	logger    *zap.Logger
}

// NewContextBuilder creates the builder.
func NewContextBuilder(incidents repository.IncidentRepository, org OrgContext, logger *zap.Logger) *ContextBuilder {
	return &ContextBuilder{incidents: incidents, org: org, logger: logger}
}

// Build returns the context bundle with up to limit most-recent incidents,
// newest first. When the incident source is unavailable it degrades to
// static facts only; it never fails.
func (b *ContextBuilder) Build(ctx context.Context, limit int) ReasoningContext {
	rc := ReasoningContext{Org: b.org}
	if b.incidents == nil {
		return rc
	}
	incidents, err := b.incidents.ListRecent(ctx, limit)
	if err != nil {
		b.logger.Warn("incident history unavailable; using static context only", zap.Error(err))
		return rc
	}
	for _, incident := range incidents {
		rc.Incidents = append(rc.Incidents, IncidentSnapshot{
			Date:       incident.Date.Format("2006-01-02"),
			Summary:    incident.Summary,
			Category:   incident.Category,
			Severity:   incident.Severity,
			Resolution: incident.Resolution,
			Mitigation: incident.Mitigation,
		})
	}
	return rc
}
