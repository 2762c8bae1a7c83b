// Package pipeline runs ordered steps and extraction agents for one document and
// records every outcome in the document's processing.json.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/store"
)

// Step is a deterministic pipeline step
type Step interface {
	Name() string
	Run(ctx context.Context, rc *RecordContext) error
}

// Agent is an extraction agent that runs once per document
type Agent interface {
	Name() string
	RunDocument(ctx context.Context, rc *RecordContext) error
}

// Pipeline holds steps followed by agents
type Pipeline struct {
	steps  []Step
	agents []Agent
}

// New creates an empty pipeline
func New() *Pipeline {
	return &Pipeline{}
}

// AddStep appends a step
func (p *Pipeline) AddStep(s Step) *Pipeline {
	p.steps = append(p.steps, s)
	return p
}

// AddAgent appends an agent
func (p *Pipeline) AddAgent(a Agent) *Pipeline {
	p.agents = append(p.agents, a)
	return p
}

// Names lists steps then agents in execution order
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.steps)+len(p.agents))
	for _, s := range p.steps {
		names = append(names, s.Name())
	}
	for _, a := range p.agents {
		names = append(names, a.Name())
	}
	return names
}

// Run executes every step and agent in order. A failing step is recorded as
// "<name>: <error>" and the run moves on; only run-record I/O aborts the run.
// The run record is saved after each step and once more with finished_at set.
func (p *Pipeline) Run(ctx context.Context, rc *RecordContext) (*model.RunRecord, error) {
	logger := rc.logger()

	dir, err := rc.runDir()
	if err != nil {
		return nil, err
	}

	run, err := store.LoadOrCreateRunRecord(dir, rc.SourceFile)
	if err != nil {
		return nil, fmt.Errorf("load run record: %w", err)
	}
	rc.DocID = run.DocID

	for _, s := range p.steps {
		if err := p.record(ctx, dir, run, s.Name(), logger, func() error { return s.Run(ctx, rc) }); err != nil {
			return run, err
		}
	}
	for _, a := range p.agents {
		if err := p.record(ctx, dir, run, a.Name(), logger, func() error { return a.RunDocument(ctx, rc) }); err != nil {
			return run, err
		}
	}

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	if err := store.SaveRunRecord(dir, run); err != nil {
		return run, fmt.Errorf("save run record: %w", err)
	}
	return run, nil
}

// record runs one unit and persists its outcome
func (p *Pipeline) record(ctx context.Context, dir string, run *model.RunRecord, name string, logger *zap.Logger, fn func() error) error {
	logger.Info("pipeline step", zap.String("step", name))
	started := time.Now()

	runErr := fn()

	finished := time.Now().UTC()
	outcome := model.StepOutcome{Status: model.StepDone, FinishedAt: &finished}
	if runErr != nil {
		outcome.Status = model.StepError
		run.Errors = append(run.Errors, fmt.Sprintf("%s: %v", name, runErr))
		logger.Warn("pipeline step failed", zap.String("step", name), zap.Error(runErr))
	} else {
		logger.Debug("pipeline step done",
			zap.String("step", name),
			zap.Int64("elapsed_ms", time.Since(started).Milliseconds()))
	}
	run.Steps[name] = outcome

	if err := store.SaveRunRecord(dir, run); err != nil {
		return fmt.Errorf("save run record: %w", err)
	}
	return nil
}
