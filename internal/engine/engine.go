// Package engine abstracts the text-generation backend the triage
// pipeline runs its reasoning stages against.
package engine

import "context"

// StageRequest describes one reasoning stage invocation. Role, goal and
// backstory frame the persona; the task carries the actual instructions
// and ticket material.
type StageRequest struct {
	Role      string
	Goal      string
	Backstory string
	Task      string
}

// Engine runs a single reasoning stage and returns its raw text output.
// The pipeline treats the call as opaque text generation; any error aborts
// the whole run.
type Engine interface {
	RunStage(ctx context.Context, req StageRequest) (string, error)

	// Name returns the engine name for logging.
	Name() string

	// Model returns the model identifier being used.
	Model() string
}
