package triage

import (
	"fmt"
	"strings"

	"github.com/spec-kit/triage-service/internal/domain"
)

// Stage names, in execution order.
const (
	StageContextAnalysis = "context_analysis"
	StageSupportSummary  = "support_summary"
	StageInfraAnalysis   = "infra_analysis"
	StageBackendAnalysis = "backend_analysis"
	StageSynthesis       = "synthesis"
)

// StageOutput is the raw text one stage produced. The per-run sequence is
// append-only and immutable once written.
type StageOutput struct {
	Stage string
	Text  string
}

// StageInput bundles everything a stage prompt may draw from. Prior holds
// the outputs of already-completed stages; only the synthesis stage uses
// it, so the chain stays reproducible without engine-side shared memory.
type StageInput struct {
	Ticket  *domain.Ticket
	Context ReasoningContext
	Prior   []StageOutput
}

// StageSpec defines one reasoning stage: the persona framing and how to
// build its task from the run input. ExpectedOutput is advisory text
// guiding generation; correctness is enforced by the extractor alone.
type StageSpec struct {
	Name           string
	Role           string
	Goal           string
	Backstory      string
	ExpectedOutput string
	BuildTask      func(in StageInput) string
}

// DefaultStages returns the fixed five-stage chain, in order.
func DefaultStages() []StageSpec {
	return []StageSpec{
		{
			Name: StageContextAnalysis,
			Role: "Incident Triage Lead (Support + Ops)",
			Goal: "Turn raw complaints into structured incidents with severity, scope, and user impact.",
			Backstory: "You run the incident war-room for a SaaS platform. " +
				"You classify issues (P0/P1/P2), identify blast radius, and ensure stakeholders align fast.",
			ExpectedOutput: "Risk hypotheses + what-to-check list + past incident patterns.",
			BuildTask:      buildContextAnalysisTask,
		},
		{
			Name: StageSupportSummary,
			Role: "Customer Support Analyst",
			Goal: "Summarize customer complaints with patterns, reproduction hints, and affected cohorts.",
			Backstory: "You translate messy user language into crisp problem statements. " +
				"You can infer affected devices, time windows, and steps-to-reproduce from sparse reports.",
			ExpectedOutput: "Structured incident analysis with severity, category, and priority in JSON format.",
			BuildTask:      buildSupportSummaryTask,
		},
		{
			Name: StageInfraAnalysis,
			Role: "SRE / Infra Analyst",
			Goal: "Analyze infra/system-level causes using logs/metrics signals and propose mitigations.",
			Backstory: "You debug production: CDN, networking, autoscaling, queues, caches, DB performance. " +
				"You prefer safe mitigations and rollback strategies.",
			ExpectedOutput: "Infra-focused RCA with mitigations, confidence, and handler role recommendation.",
			BuildTask:      buildInfraAnalysisTask,
		},
		{
			Name: StageBackendAnalysis,
			Role: "Backend & Data Analyst",
			Goal: "Map issues to backend services, DB, workers, idempotency, and data consistency.",
			Backstory: "You are an expert in APIs, async workers, database locks, and event-driven systems. " +
				"You look for race conditions, retries, and schema mismatches.",
			ExpectedOutput: "Backend RCA mapped to services + fixes.",
			BuildTask:      buildBackendAnalysisTask,
		},
		{
			Name: StageSynthesis,
			Role: "Engineering Tech Lead",
			Goal: "Produce an engineering action plan with priorities, owners, and timelines.",
			Backstory: "You run the engineering execution. You choose between rollback, hotfix, mitigation, " +
				"and long-term refactor based on impact and effort.",
			ExpectedOutput: "Action plan with handler assignment recommendation in JSON format.",
			BuildTask:      buildSynthesisTask,
		},
	}
}

func buildContextAnalysisTask(in StageInput) string {
	var b strings.Builder
	b.WriteString("You are given org/system context, recent release notes, and past incident history.\n\n")
	fmt.Fprintf(&b, "ORG CONTEXT (memory):\n%s\n\n", in.Context.MemoryJSON())
	if block := in.Context.IncidentsBlock(); block != "" {
		b.WriteString(block)
		b.WriteString("\n")
	}
	b.WriteString("Analyze this context and:\n")
	b.WriteString("1) Identify patterns between current ticket and past incidents\n")
	b.WriteString("2) Summarize key risk areas from recent changes\n")
	b.WriteString("3) List what to watch in metrics/logs\n")
	b.WriteString("4) Map this complaint to similar past incidents if applicable\n")
	b.WriteString("Output:\n")
	b.WriteString("1) 5-8 bullet 'risk hypotheses'\n")
	b.WriteString("2) What you would watch first in metrics/logs\n")
	b.WriteString("3) Any immediate suspicion about which complaints map to known incidents\n")
	b.WriteString("4) Similar past incidents that might help resolve this")
	return b.String()
}

func buildSupportSummaryTask(in StageInput) string {
	var b strings.Builder
	b.WriteString("Analyze the following customer complaint:\n")
	writeTicket(&b, in.Ticket)
	b.WriteString("\nCreate a structured support summary:\n")
	b.WriteString("- User impact assessment\n")
	b.WriteString("- Affected platform (mobile/web)\n")
	b.WriteString("- Time sensitivity\n")
	b.WriteString("- Probable reproduction hints\n")
	b.WriteString("- Severity classification (P0/P1/P2) with justification\n")
	b.WriteString("- Category classification\n")
	b.WriteString("Use the org context memory to map issues to past incidents or releases.\n\n")
	b.WriteString("IMPORTANT: At the end, output a JSON block with this exact format:\n")
	b.WriteString(`{"severity": "P0|P1|P2", "category": "payment|video|auth|performance|crash|other", "priority": "high|medium|low"}`)
	return b.String()
}

func buildInfraAnalysisTask(in StageInput) string {
	var b strings.Builder
	b.WriteString("Investigate infra-level signals for this incident:\n")
	writeTicket(&b, in.Ticket)
	b.WriteString("\nOutput:\n")
	b.WriteString("- Key metrics to check\n")
	b.WriteString("- Log evidence to search for\n")
	b.WriteString("- Likely infra causes\n")
	b.WriteString("- Safe mitigation steps (feature flag, rollback, scaling, CDN config, cache tuning)\n")
	b.WriteString("- Confidence score (0-100) and assumptions\n\n")
	b.WriteString("Also suggest which handler role should own this (SRE, Backend, Support, QA, or Tech Lead).")
	return b.String()
}

func buildBackendAnalysisTask(in StageInput) string {
	var b strings.Builder
	b.WriteString("Investigate backend/data causes for this incident:\n")
	writeTicket(&b, in.Ticket)
	b.WriteString("\nOutput:\n")
	b.WriteString("- Suspected service/component\n")
	b.WriteString("- Data consistency risks\n")
	b.WriteString("- Root cause hypotheses\n")
	b.WriteString("- Proposed code-level fixes\n")
	b.WriteString("- Idempotency + retry handling recommendations\n")
	b.WriteString("- Confidence score and what extra data you need")
	return b.String()
}

func buildSynthesisTask(in StageInput) string {
	var b strings.Builder
	b.WriteString("Synthesize all prior findings for this ticket into an action plan:\n")
	writeTicket(&b, in.Ticket)
	if len(in.Prior) > 0 {
		b.WriteString("\nFINDINGS FROM EARLIER ANALYSIS STAGES:\n")
		for _, prior := range in.Prior {
			fmt.Fprintf(&b, "\n--- %s ---\n%s\n", prior.Stage, prior.Text)
		}
	}
	b.WriteString("\nOutput MUST include:\n")
	b.WriteString("A) Final severity and priority classification\n")
	b.WriteString("B) Recommended handler role to assign (SRE Lead, Backend Lead, Support Manager, QA Lead, or Tech Lead)\n")
	b.WriteString("C) Assignment reason (why this handler should own it)\n")
	b.WriteString("D) Quick mitigations vs long-term fixes\n")
	b.WriteString("E) Next steps for the assigned handler\n\n")
	b.WriteString("IMPORTANT: At the end, output a JSON block with this exact format:\n")
	b.WriteString(`{"recommended_manager_role": "SRE Lead|Backend Lead|Support Manager|QA Lead|Tech Lead", "assignment_reason": "detailed reason", "action_items": ["item1", "item2"]}`)
	return b.String()
}

func writeTicket(b *strings.Builder, ticket *domain.Ticket) {
	fmt.Fprintf(b, "Title: %s\n", ticket.Title)
	fmt.Fprintf(b, "Description: %s\n", ticket.Description)
}
