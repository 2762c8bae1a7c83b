package aggregate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/store"
)

// BuildStats summarizes one knowledge build
type BuildStats struct {
	Created int
	Updated int
}

// KnowledgeBuilder derives knowledge records from the global evidence store
type KnowledgeBuilder struct {
	stickyDeprecated bool
	logger           *zap.Logger
}

// NewKnowledgeBuilder creates a knowledge builder
func NewKnowledgeBuilder(stickyDeprecated bool, logger *zap.Logger) *KnowledgeBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KnowledgeBuilder{stickyDeprecated: stickyDeprecated, logger: logger}
}

// Derive turns one evidence record into a candidate knowledge record
func Derive(ev *model.EvidenceRecord) *model.KnowledgeRecord {
	return model.NewKnowledgeRecord(
		model.KnowledgeID(ev.SubjectType, ev.SubjectValue, ev.Predicate, ev.ObjectValue),
		ev.SubjectType,
		ev.SubjectValue,
		ev.Predicate,
		ev.ObjectValue,
		ev.AvgConfidence(),
		model.AgentKnowledgeBuilder,
		ev.Documents,
	)
}

// Apply merges every evidence record into knowledge
func (b *KnowledgeBuilder) Apply(evidence *store.EvidenceStore, knowledge *store.KnowledgeStore) BuildStats {
	var stats BuildStats
	knowledge.WithStickyDeprecated(b.stickyDeprecated)

	for _, ev := range evidence.All() {
		rec := Derive(ev)
		if knowledge.Has(rec.ID) {
			stats.Updated++
		} else {
			stats.Created++
		}
		knowledge.AppendOrUpdate(rec)
	}
	return stats
}

// Run loads the global stores under dataRoot, derives knowledge and saves it
func (b *KnowledgeBuilder) Run(dataRoot string) (BuildStats, error) {
	evidence, err := store.LoadEvidenceStore(dataRoot)
	if err != nil {
		return BuildStats{}, fmt.Errorf("load global evidence: %w", err)
	}
	knowledge, err := store.LoadKnowledgeStore(dataRoot)
	if err != nil {
		return BuildStats{}, fmt.Errorf("load knowledge: %w", err)
	}

	stats := b.Apply(evidence, knowledge)

	if err := knowledge.Save(); err != nil {
		return stats, fmt.Errorf("save knowledge: %w", err)
	}

	b.logger.Info("knowledge built",
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated))

	return stats, nil
}
