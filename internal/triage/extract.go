package triage

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/spec-kit/triage-service/internal/domain"
)

// Classification is the severity/priority/category triple for a ticket.
// It is always fully populated; extraction failures fall back to the
// documented defaults rather than leaving fields empty.
type Classification struct {
	Severity domain.TicketSeverity
	Priority domain.TicketPriority
	Category string
}

// DefaultClassification returns the fallback triple.
func DefaultClassification() Classification {
	return Classification{
		Severity: domain.SeverityP2,
		Priority: domain.TicketPriorityMedium,
		Category: "other",
	}
}

// AssignmentRecommendation is the handler suggestion extracted from stage
// output. An empty RoleHint means no role was recommended.
type AssignmentRecommendation struct {
	RoleHint    string
	Reason      string
	ActionItems []string
}

var (
	classificationBlockRe = regexp.MustCompile(`(?s)\{[^{}]*"severity"[^{}]*\}`)
	assignmentBlockRe     = regexp.MustCompile(`(?s)\{[^{}]*"recommended_manager_role"[^{}]*\}`)
	genericBlockRe        = regexp.MustCompile(`(?s)\{.*\}`)
	severityTokenRe       = regexp.MustCompile(`(?i)(P[012])`)
)

// Keyword fallbacks, checked in order; first match wins.
var priorityKeywords = []struct {
	priority domain.TicketPriority
	keywords []string
}{
	{domain.TicketPriorityHigh, []string{"high", "critical", "urgent", "immediate"}},
	{domain.TicketPriorityLow, []string{"low", "minor", "non-critical"}},
}

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"payment", []string{"payment", "billing", "deduct", "unlock", "purchase"}},
	{"video", []string{"video", "streaming", "buffering", "playback"}},
	{"auth", []string{"login", "otp", "authentication", "password"}},
	{"performance", []string{"slow", "performance", "dashboard", "load"}},
	{"crash", []string{"crash", "error", "exception", "fail"}},
}

var knownRoleLabels = []string{"SRE Lead", "Backend Lead", "Support Manager", "QA Lead", "Tech Lead"}

var reasonPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)assignment reason[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)should handle[:\s]+([^\n]+)`),
	regexp.MustCompile(`(?i)recommended[:\s]+([^\n]+)`),
}

type classificationJSON struct {
	Severity string `json:"severity"`
	Category string `json:"category"`
	Priority string `json:"priority"`
}

type assignmentJSON struct {
	RecommendedManagerRole string   `json:"recommended_manager_role"`
	AssignmentReason       string   `json:"assignment_reason"`
	ActionItems            []string `json:"action_items"`
}

// ExtractClassification parses free-text stage output into a fully
// populated Classification. Strategy, first success wins: an anchored JSON
// block containing "severity", then the widest brace-delimited substring,
// then keyword heuristics, then defaults. Pure function.
func ExtractClassification(text string) Classification {
	classification := DefaultClassification()

	if parsed, ok := parseClassificationJSON(text); ok {
		if parsed.Severity != "" {
			classification.Severity = domain.TicketSeverity(parsed.Severity)
		}
		if parsed.Priority != "" {
			classification.Priority = domain.TicketPriority(parsed.Priority)
		}
		if parsed.Category != "" {
			classification.Category = parsed.Category
		}
		return classification
	}

	lower := strings.ToLower(text)

	if match := severityTokenRe.FindString(text); match != "" {
		classification.Severity = domain.TicketSeverity(strings.ToUpper(match))
	}
	for _, entry := range priorityKeywords {
		if containsAny(lower, entry.keywords) {
			classification.Priority = entry.priority
			break
		}
	}
	for _, entry := range categoryKeywords {
		if containsAny(lower, entry.keywords) {
			classification.Category = entry.category
			break
		}
	}
	return classification
}

// ExtractAssignment parses free-text stage output into an
// AssignmentRecommendation, defaulting to an unset role hint and empty
// reason. Same layered strategy as ExtractClassification. Pure function.
func ExtractAssignment(text string) AssignmentRecommendation {
	recommendation := AssignmentRecommendation{ActionItems: []string{}}

	if parsed, ok := parseAssignmentJSON(text); ok {
		recommendation.RoleHint = parsed.RecommendedManagerRole
		recommendation.Reason = parsed.AssignmentReason
		if parsed.ActionItems != nil {
			recommendation.ActionItems = parsed.ActionItems
		}
		return recommendation
	}

	lower := strings.ToLower(text)
	for _, role := range knownRoleLabels {
		if strings.Contains(lower, strings.ToLower(role)) {
			recommendation.RoleHint = role
			break
		}
	}
	for _, pattern := range reasonPatterns {
		if match := pattern.FindStringSubmatch(text); match != nil {
			recommendation.Reason = strings.TrimSpace(match[1])
			break
		}
	}
	return recommendation
}

func parseClassificationJSON(text string) (classificationJSON, bool) {
	for _, candidate := range jsonCandidates(text, classificationBlockRe) {
		var parsed classificationJSON
		if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
			continue
		}
		if parsed.Severity != "" || parsed.Category != "" || parsed.Priority != "" {
			return parsed, true
		}
	}
	return classificationJSON{}, false
}

func parseAssignmentJSON(text string) (assignmentJSON, bool) {
	for _, candidate := range jsonCandidates(text, assignmentBlockRe) {
		var parsed assignmentJSON
		if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
			continue
		}
		if parsed.RecommendedManagerRole != "" {
			return parsed, true
		}
	}
	return assignmentJSON{}, false
}

// jsonCandidates returns the anchored block first, then the widest
// brace-delimited substring as a fallback.
func jsonCandidates(text string, anchored *regexp.Regexp) []string {
	var candidates []string
	if match := anchored.FindString(text); match != "" {
		candidates = append(candidates, match)
	}
	if match := genericBlockRe.FindString(text); match != "" {
		candidates = append(candidates, match)
	}
	return candidates
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
