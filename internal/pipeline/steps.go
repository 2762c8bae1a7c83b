package pipeline

import (
	"context"

	"github.com/ppiankov/evidentia/internal/aggregate"
	"github.com/ppiankov/evidentia/internal/resolve"
	"github.com/ppiankov/evidentia/internal/signals"
)

// SignalsStep rebuilds the corpus-wide signal ranking
type SignalsStep struct {
	Aggregator *signals.Aggregator
}

func (SignalsStep) Name() string { return "signals" }

func (s SignalsStep) Run(ctx context.Context, rc *RecordContext) error {
	root, err := rc.Root()
	if err != nil {
		return err
	}
	_, err = s.Aggregator.Run(root)
	return err
}

// EvidenceStep folds per-document evidence into the global store
type EvidenceStep struct {
	Aggregator *aggregate.EvidenceAggregator
}

func (EvidenceStep) Name() string { return "evidences" }

func (s EvidenceStep) Run(ctx context.Context, rc *RecordContext) error {
	root, err := rc.Root()
	if err != nil {
		return err
	}
	_, err = s.Aggregator.Run(root)
	return err
}

// KnowledgeStep derives knowledge from global evidence
type KnowledgeStep struct {
	Builder *aggregate.KnowledgeBuilder
}

func (KnowledgeStep) Name() string { return "knowledge-builder" }

func (s KnowledgeStep) Run(ctx context.Context, rc *RecordContext) error {
	root, err := rc.Root()
	if err != nil {
		return err
	}
	_, err = s.Builder.Run(root)
	return err
}

// ResolversStep runs identity resolvers; the first resolver failure fails the step
type ResolversStep struct {
	Resolvers        []resolve.Resolver
	StickyDeprecated bool
}

func (ResolversStep) Name() string { return "resolvers" }

func (s ResolversStep) Run(ctx context.Context, rc *RecordContext) error {
	root, err := rc.Root()
	if err != nil {
		return err
	}
	rctx := &resolve.Context{
		DataRoot:         root,
		StickyDeprecated: s.StickyDeprecated,
		Logger:           rc.Logger,
	}
	return resolve.RunAll(ctx, rctx, s.Resolvers...)
}
