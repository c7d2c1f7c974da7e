package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/engine"
)

// scriptedEngine returns canned text per call and can fail at a given
// 1-based call index.
type scriptedEngine struct {
	calls    []engine.StageRequest
	outputs  []string
	failAt   int
	failWith error
}

func (e *scriptedEngine) RunStage(ctx context.Context, req engine.StageRequest) (string, error) {
	e.calls = append(e.calls, req)
	if e.failAt > 0 && len(e.calls) == e.failAt {
		return "", e.failWith
	}
	if len(e.calls) <= len(e.outputs) {
		return e.outputs[len(e.calls)-1], nil
	}
	return fmt.Sprintf("output %d", len(e.calls)), nil
}

func (e *scriptedEngine) Name() string  { return "scripted" }
func (e *scriptedEngine) Model() string { return "test" }

func testTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:          "t1",
		ExternalKey: "TRG-TEST0001",
		Title:       "Payment deducted but course not unlocked",
		Description: "User paid twice, no unlock after 20 minutes.",
		Status:      domain.TicketStatusOpen,
	}
}

func TestPipelineRunsStagesInOrder(t *testing.T) {
	eng := &scriptedEngine{}
	pipeline := NewPipeline(eng, DefaultStages(), zap.NewNop())

	var observed []string
	outputs, err := pipeline.Run(context.Background(), testTicket(), ReasoningContext{Org: DefaultOrgContext()}, func(out StageOutput) {
		observed = append(observed, out.Stage)
	})

	require.NoError(t, err)
	want := []string{
		StageContextAnalysis,
		StageSupportSummary,
		StageInfraAnalysis,
		StageBackendAnalysis,
		StageSynthesis,
	}
	require.Len(t, outputs, len(want))
	for i, name := range want {
		assert.Equal(t, name, outputs[i].Stage)
	}
	assert.Equal(t, want, observed)
}

func TestPipelineThreadsPriorOutputsIntoSynthesisOnly(t *testing.T) {
	eng := &scriptedEngine{outputs: []string{"alpha-one", "beta-two", "gamma-three", "delta-four", "final"}}
	pipeline := NewPipeline(eng, DefaultStages(), zap.NewNop())

	_, err := pipeline.Run(context.Background(), testTicket(), ReasoningContext{}, nil)
	require.NoError(t, err)
	require.Len(t, eng.calls, 5)

	// Stages 1-4 never see earlier outputs.
	for i := 0; i < 4; i++ {
		assert.NotContains(t, eng.calls[i].Task, "alpha-one")
		assert.NotContains(t, eng.calls[i].Task, "FINDINGS FROM EARLIER ANALYSIS STAGES")
	}

	// Synthesis sees all four, in stage order.
	synthesis := eng.calls[4].Task
	assert.Contains(t, synthesis, "FINDINGS FROM EARLIER ANALYSIS STAGES")
	for _, text := range []string{"alpha-one", "beta-two", "gamma-three", "delta-four"} {
		assert.Contains(t, synthesis, text)
	}
	assert.Less(t, strings.Index(synthesis, "alpha-one"), strings.Index(synthesis, "delta-four"))
}

func TestPipelineAbortsOnFirstEngineError(t *testing.T) {
	eng := &scriptedEngine{failAt: 3, failWith: errors.New("rate limited")}
	pipeline := NewPipeline(eng, DefaultStages(), zap.NewNop())

	var completed []string
	outputs, err := pipeline.Run(context.Background(), testTicket(), ReasoningContext{}, func(out StageOutput) {
		completed = append(completed, out.Stage)
	})

	require.Error(t, err)
	assert.Nil(t, outputs)
	assert.Contains(t, err.Error(), StageInfraAnalysis)
	assert.ErrorContains(t, err, "rate limited")
	// Only the two stages before the failure completed; no later stage ran.
	assert.Equal(t, []string{StageContextAnalysis, StageSupportSummary}, completed)
	assert.Len(t, eng.calls, 3)
}

func TestPipelineStagePromptsCarryTicketAndContext(t *testing.T) {
	eng := &scriptedEngine{}
	rctx := ReasoningContext{
		Org: DefaultOrgContext(),
		Incidents: []IncidentSnapshot{
			{Date: "2026-01-10", Summary: "webhook retries backlog", Category: "payment", Severity: "P1"},
		},
	}
	pipeline := NewPipeline(eng, DefaultStages(), zap.NewNop())

	_, err := pipeline.Run(context.Background(), testTicket(), rctx, nil)
	require.NoError(t, err)

	// Context stage gets org memory and incident history.
	assert.Contains(t, eng.calls[0].Task, "ORG CONTEXT")
	assert.Contains(t, eng.calls[0].Task, "webhook retries backlog")

	// Ticket-facing stages carry the complaint text.
	for _, i := range []int{1, 2, 3, 4} {
		assert.Contains(t, eng.calls[i].Task, "Payment deducted but course not unlocked")
	}
}

func TestCombineOutputsPreservesOrder(t *testing.T) {
	combined := CombineOutputs([]StageOutput{
		{Stage: "a", Text: "first"},
		{Stage: "b", Text: "second"},
	})
	assert.Equal(t, "first\n\nsecond", combined)
	assert.Equal(t, "", CombineOutputs(nil))
}
