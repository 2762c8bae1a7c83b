// Package processing wires the document and global pipelines together and
// serializes global updates with the data-root lock.
package processing

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/evidentia/internal/agents"
	"github.com/ppiankov/evidentia/internal/aggregate"
	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/paths"
	"github.com/ppiankov/evidentia/internal/pipeline"
	"github.com/ppiankov/evidentia/internal/resolve"
	"github.com/ppiankov/evidentia/internal/signals"
	"github.com/ppiankov/evidentia/internal/store"
	"github.com/ppiankov/evidentia/internal/worker"
)

// Processor runs documents through the per-document and global pipelines
type Processor struct {
	cfg           *model.Config
	collaborators *agents.Collaborators
	logger        *zap.Logger
	progress      pipeline.Progress
}

// New builds a processor whose collaborators come from cfg
func New(cfg *model.Config, logger *zap.Logger) (*Processor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := worker.NewLimiter(cfg.Extractors.RequestsPerSecond, cfg.Extractors.Burst)
	collaborators, err := agents.NewCollaborators(*cfg, limiter, logger)
	if err != nil {
		return nil, err
	}

	return NewWithCollaborators(cfg, collaborators, logger), nil
}

// NewWithCollaborators builds a processor around explicit collaborators
func NewWithCollaborators(cfg *model.Config, collaborators *agents.Collaborators, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		cfg:           cfg,
		collaborators: collaborators,
		logger:        logger,
		progress:      pipeline.LogProgress{Logger: logger},
	}
}

// WithProgress replaces the progress sink
func (p *Processor) WithProgress(progress pipeline.Progress) *Processor {
	p.progress = progress
	return p
}

// DocumentPipeline produces text, entities and per-document evidence
func (p *Processor) DocumentPipeline() *pipeline.Pipeline {
	return pipeline.New().
		AddStep(agents.TextStep{Transcriber: p.collaborators.Transcribe}).
		AddStep(agents.EntityStep{Extractor: p.collaborators.Entities, Source: sourceName(p.collaborators.Entities)}).
		AddAgent(agents.PersonRelationAgent{Extractor: p.collaborators.PersonRelations}).
		AddAgent(agents.ContextRelationAgent{Extractor: p.collaborators.ContextRelations})
}

// GlobalPipeline rebuilds signals, global evidence, knowledge and clusters
func (p *Processor) GlobalPipeline() *pipeline.Pipeline {
	sticky := p.cfg.Knowledge.StickyDeprecated
	return pipeline.New().
		AddStep(pipeline.SignalsStep{Aggregator: signals.NewAggregator(p.logger)}).
		AddStep(pipeline.EvidenceStep{Aggregator: aggregate.NewEvidenceAggregator(p.logger)}).
		AddStep(pipeline.KnowledgeStep{Builder: aggregate.NewKnowledgeBuilder(sticky, p.logger)}).
		AddStep(pipeline.ResolversStep{
			Resolvers:        []resolve.Resolver{resolve.OrgResolver{}},
			StickyDeprecated: sticky,
		})
}

// ProcessDocument runs the per-document pipeline only. It touches nothing
// outside the document's record directory, so documents may run in parallel.
func (p *Processor) ProcessDocument(ctx context.Context, sourceFile string) (*model.RunRecord, error) {
	rc, err := p.recordContext(sourceFile)
	if err != nil {
		return nil, err
	}
	rc.Emit("document", "processing "+filepath.Base(sourceFile), 0)
	return p.DocumentPipeline().Run(ctx, rc)
}

// UpdateGlobalState runs the global pipeline under the data-root lock.
// The outcome is recorded in the document's run record, or in the data root's
// processing.json when sourceFile is empty.
func (p *Processor) UpdateGlobalState(ctx context.Context, sourceFile string) (*model.RunRecord, error) {
	var rc *pipeline.RecordContext
	if sourceFile == "" {
		rc = &pipeline.RecordContext{
			DataRoot: p.cfg.DataRoot,
			RunDir:   p.cfg.DataRoot,
			Progress: p.progress,
			Logger:   p.logger,
		}
		if err := os.MkdirAll(p.cfg.DataRoot, 0o755); err != nil {
			return nil, fmt.Errorf("create data root: %w: %w", model.ErrIO, err)
		}
	} else {
		var err error
		if rc, err = p.recordContext(sourceFile); err != nil {
			return nil, err
		}
	}

	// An unusable root is reported by the steps themselves
	if root, err := rc.Root(); err == nil {
		unlock, err := p.lock(ctx, root)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := unlock(); err != nil {
				p.logger.Warn("release data root lock", zap.Error(err))
			}
		}()
	}

	rc.Emit("global", "updating global state", 90)
	run, err := p.GlobalPipeline().Run(ctx, rc)
	if err != nil {
		return run, err
	}
	rc.Emit("global", "done", 100)
	return run, nil
}

// ProcessFile runs the document pipeline and then the global update
func (p *Processor) ProcessFile(ctx context.Context, sourceFile string) (*model.RunRecord, error) {
	if _, err := p.ProcessDocument(ctx, sourceFile); err != nil {
		return nil, err
	}
	return p.UpdateGlobalState(ctx, sourceFile)
}

// Ingest copies src into the next free data/YYYY/MM/recordNNNN slot and processes it
func (p *Processor) Ingest(ctx context.Context, src string, now time.Time) (string, *model.RunRecord, error) {
	dest, err := paths.NextRecordingPath(p.cfg.DataRoot, now, filepath.Ext(src))
	if err != nil {
		return "", nil, err
	}
	if err := copyFile(src, dest); err != nil {
		return "", nil, err
	}

	p.logger.Info("ingested", zap.String("source", src), zap.String("path", dest))
	run, err := p.ProcessFile(ctx, dest)
	return dest, run, err
}

// Lock takes the data-root lock when locking is enabled
func (p *Processor) Lock(ctx context.Context) (store.Unlock, error) {
	return p.lock(ctx, p.cfg.DataRoot)
}

func (p *Processor) lock(ctx context.Context, root string) (store.Unlock, error) {
	if !p.cfg.Lock.Enabled {
		return store.NoopUnlock, nil
	}
	return store.LockDataRoot(ctx, root, p.cfg.Lock.Timeout)
}

func (p *Processor) recordContext(sourceFile string) (*pipeline.RecordContext, error) {
	abs, err := filepath.Abs(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", sourceFile, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("source %s: %w: %w", sourceFile, model.ErrIO, err)
	}

	rc := pipeline.NewRecordContext(abs)
	rc.DataRoot = p.cfg.DataRoot
	rc.Progress = p.progress
	rc.Logger = p.logger.With(zap.String("source", filepath.Base(abs)))
	return rc, nil
}

func sourceName(c agents.Collaborator) string {
	switch v := c.(type) {
	case *agents.LLMCollaborator:
		return v.Provider.Name()
	case *agents.CommandCollaborator:
		return "command"
	default:
		return "extractor"
	}
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w: %w", src, model.ErrIO, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w: %w", dest, model.ErrIO, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy to %s: %w: %w", dest, model.ErrIO, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w: %w", dest, model.ErrIO, err)
	}
	return nil
}
