// Package signals ranks extracted entities by how often they occur across the corpus.
package signals

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/paths"
	"github.com/ppiankov/evidentia/internal/store"
)

// Normalize trims, lowercases and strips '.' and ','
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ".", "")
	return strings.ReplaceAll(s, ",", "")
}

// Key builds "type:normalized_text"
func Key(entityType, text string) string {
	return strings.ToLower(entityType) + ":" + Normalize(text)
}

// Aggregator rebuilds signals.json from every entities.json under a data root
type Aggregator struct {
	logger *zap.Logger
}

// NewAggregator creates a signal aggregator
func NewAggregator(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{logger: logger}
}

// Rebuild computes the ranked signal list over the whole corpus without writing anything.
// Malformed entities.json files are skipped with a warning.
func (a *Aggregator) Rebuild(dataRoot string) ([]model.Signal, error) {
	files, err := paths.FindArtifacts(dataRoot, paths.EntitiesFile, false)
	if err != nil {
		return nil, err
	}

	index := make(map[string]*model.Signal)
	for _, file := range files {
		docID := paths.DocumentID(filepath.Dir(file))

		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w: %w", file, model.ErrIO, err)
		}

		var parsed model.EntitiesFile
		if err := json.Unmarshal(raw, &parsed); err != nil {
			a.logger.Warn("skipping invalid entities file",
				zap.String("path", file),
				zap.Error(err))
			continue
		}

		for _, entity := range parsed.Entities {
			key := Key(entity.Type, entity.Text)
			sig, ok := index[key]
			if !ok {
				sig = &model.Signal{
					Key:       key,
					Type:      strings.ToLower(entity.Type),
					Value:     entity.Text,
					Documents: []string{},
				}
				index[key] = sig
			}
			sig.Count++
			if !slices.Contains(sig.Documents, docID) {
				sig.Documents = append(sig.Documents, docID)
			}
		}
	}

	a.logger.Debug("entities files scanned", zap.Int("files", len(files)), zap.Int("signals", len(index)))

	return Rank(index), nil
}

// Rank orders signals by count, descending; ties are broken by key
func Rank(index map[string]*model.Signal) []model.Signal {
	out := make([]model.Signal, 0, len(index))
	for _, sig := range index {
		out = append(out, *sig)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Run rebuilds the signals and replaces dataRoot/signals.json
func (a *Aggregator) Run(dataRoot string) ([]model.Signal, error) {
	ranked, err := a.Rebuild(dataRoot)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dataRoot, paths.SignalsFile)
	if err := store.WriteJSON(path, ranked); err != nil {
		return nil, fmt.Errorf("write signals: %w", err)
	}

	a.logger.Info("signals written", zap.String("path", path), zap.Int("signals", len(ranked)))
	return ranked, nil
}

// Load reads a persisted signals snapshot; a missing file yields no signals
func Load(dataRoot string) ([]model.Signal, error) {
	path := filepath.Join(dataRoot, paths.SignalsFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w: %w", path, model.ErrIO, err)
	}

	var out []model.Signal
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("invalid signals.json: %w: %w", model.ErrParse, err)
	}
	return out, nil
}
