// Package resolve runs identity resolvers: full-rebuild passes that compute
// clusters over the knowledge store.
package resolve

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/evidentia/internal/store"
)

// Context carries what a resolver pass needs
type Context struct {
	// DataRoot is the folder holding the global artifacts
	DataRoot string

	StickyDeprecated bool
	Logger           *zap.Logger
}

// Resolver is one full-rebuild pass over the knowledge store.
// Run persists its own changes.
type Resolver interface {
	Name() string
	Run(ctx context.Context, rctx *Context) error
}

// RunAll executes resolvers in order and stops at the first failure
func RunAll(ctx context.Context, rctx *Context, resolvers ...Resolver) error {
	logger := rctx.logger()

	for _, r := range resolvers {
		if err := ctx.Err(); err != nil {
			return err
		}

		logger.Info("running resolver", zap.String("resolver", r.Name()))
		started := time.Now()

		if err := r.Run(ctx, rctx); err != nil {
			return fmt.Errorf("resolver failed: %s: %w", r.Name(), err)
		}

		logger.Info("resolver finished",
			zap.String("resolver", r.Name()),
			zap.Int64("elapsed_ms", time.Since(started).Milliseconds()))
	}
	return nil
}

// LoadKnowledge loads the global knowledge store for a resolver pass
func LoadKnowledge(rctx *Context) (*store.KnowledgeStore, error) {
	ks, err := store.LoadKnowledgeStore(rctx.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge store: %w", err)
	}
	return ks.WithStickyDeprecated(rctx.StickyDeprecated), nil
}

// LoadEvidence loads the global evidence store for a resolver pass
func LoadEvidence(rctx *Context) (*store.EvidenceStore, error) {
	es, err := store.LoadEvidenceStore(rctx.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load root evidence store: %w", err)
	}
	return es, nil
}

func (c *Context) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
