package triage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/engine"
)

// Pipeline executes the fixed stage chain strictly in order. Later stages
// build on earlier reasoning, so there is no stage parallelism.
type Pipeline struct {
	engine engine.Engine
	stages []StageSpec
	logger *zap.Logger
}

// NewPipeline creates the pipeline over an explicitly constructed engine
// client.
func NewPipeline(eng engine.Engine, stages []StageSpec, logger *zap.Logger) *Pipeline {
	return &Pipeline{engine: eng, stages: stages, logger: logger}
}

// Run invokes each stage sequentially and returns the per-stage outputs in
// order. onStage, when non-nil, observes each completed stage. The first
// engine error aborts the whole run; no partial output is returned.
func (p *Pipeline) Run(ctx context.Context, ticket *domain.Ticket, rctx ReasoningContext, onStage func(StageOutput)) ([]StageOutput, error) {
	outputs := make([]StageOutput, 0, len(p.stages))
	for _, spec := range p.stages {
		task := spec.BuildTask(StageInput{Ticket: ticket, Context: rctx, Prior: outputs})
		text, err := p.engine.RunStage(ctx, engine.StageRequest{
			Role:      spec.Role,
			Goal:      spec.Goal,
			Backstory: spec.Backstory,
			Task:      task,
		})
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", spec.Name, err)
		}
		output := StageOutput{Stage: spec.Name, Text: text}
		outputs = append(outputs, output)
		p.logger.Debug("stage completed",
			zap.String("ticket_id", ticket.ID),
			zap.String("stage", spec.Name),
			zap.Int("output_chars", len(text)))
		if onStage != nil {
			onStage(output)
		}
	}
	return outputs, nil
}

// CombineOutputs joins stage outputs into the single text the extractor
// runs over, preserving stage order.
func CombineOutputs(outputs []StageOutput) string {
	combined := ""
	for _, output := range outputs {
		if combined != "" {
			combined += "\n\n"
		}
		combined += output.Text
	}
	return combined
}
