// Package aggregate folds per-document evidence into the global stores.
package aggregate

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ppiankov/evidentia/internal/paths"
	"github.com/ppiankov/evidentia/internal/store"
)

// EvidenceStats summarizes one roll-up pass
type EvidenceStats struct {
	Files   int
	Records int
	Global  int
}

// EvidenceAggregator merges every per-document evidence.json into the global one.
//
// Every pass scans the whole corpus. Document sets stay stable across reruns but
// confidence samples are appended again each time.
type EvidenceAggregator struct {
	logger *zap.Logger
}

// NewEvidenceAggregator creates an evidence aggregator
func NewEvidenceAggregator(logger *zap.Logger) *EvidenceAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvidenceAggregator{logger: logger}
}

// Run performs one roll-up pass over dataRoot
func (a *EvidenceAggregator) Run(dataRoot string) (EvidenceStats, error) {
	var stats EvidenceStats

	global, err := store.LoadEvidenceStore(dataRoot)
	if err != nil {
		return stats, fmt.Errorf("load global evidence: %w", err)
	}

	files, err := paths.FindArtifacts(dataRoot, paths.EvidenceFile, true)
	if err != nil {
		return stats, err
	}

	for _, file := range files {
		local, err := store.LoadEvidenceStore(filepath.Dir(file))
		if err != nil {
			return stats, fmt.Errorf("load %s: %w", file, err)
		}

		records := local.All()
		a.logger.Debug("merging document evidence",
			zap.String("path", file),
			zap.Int("records", len(records)))

		for _, rec := range records {
			global.MergeRecord(rec)
		}
		stats.Files++
		stats.Records += len(records)
	}

	if err := global.Save(); err != nil {
		return stats, fmt.Errorf("save global evidence: %w", err)
	}
	stats.Global = global.Len()

	a.logger.Info("evidence aggregated",
		zap.Int("files", stats.Files),
		zap.Int("records", stats.Records),
		zap.Int("global", stats.Global))

	return stats, nil
}
