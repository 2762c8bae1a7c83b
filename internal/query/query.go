// Package query builds the read models the command layer presents:
// the approved knowledge overview, the knowledge graph, processed sessions
// and the signal ranking.
package query

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/evidentia/internal/cache"
	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/paths"
	"github.com/ppiankov/evidentia/internal/signals"
	"github.com/ppiankov/evidentia/internal/store"
)

// Relation is one knowledge triple with its confidence
type Relation struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

// Overview lists the approved knowledge grouped by kind
type Overview struct {
	Persons       []string   `json:"persons"`
	Organizations []string   `json:"organizations"`
	Events        []string   `json:"events"`
	Relations     []Relation `json:"relations"`
}

// Reader answers queries against the stores under DataRoot.
// Results are memoized in Cache when one is set.
type Reader struct {
	DataRoot string
	Cache    cache.Cache
	TTL      time.Duration
	Logger   *zap.Logger
}

// NewReader creates a reader; c may be nil
func NewReader(dataRoot string, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{DataRoot: dataRoot, Cache: c, TTL: ttl, Logger: logger}
}

// Overview returns approved records with full confidence. Subjects are grouped
// by type and the objects of associated_with relations count as organizations.
func (r *Reader) Overview() (*Overview, error) {
	var out Overview
	err := r.cached("overview", []string{r.knowledgePath()}, &out, func() (any, error) {
		return r.buildOverview()
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Reader) buildOverview() (*Overview, error) {
	knowledge, err := store.LoadKnowledgeStore(r.DataRoot)
	if err != nil {
		return nil, err
	}

	persons := map[string]struct{}{}
	organizations := map[string]struct{}{}
	events := map[string]struct{}{}
	relations := []Relation{}

	for _, rec := range knowledge.All() {
		if rec.Status != model.StatusApproved || rec.Confidence < 1.0 {
			continue
		}

		switch rec.SubjectType {
		case "person":
			persons[rec.SubjectValue] = struct{}{}
		case "organization":
			organizations[rec.SubjectValue] = struct{}{}
		case "event":
			events[rec.SubjectValue] = struct{}{}
		}
		if rec.Predicate == model.PredicateAssociatedWith {
			organizations[rec.ObjectValue] = struct{}{}
		}

		relations = append(relations, Relation{
			Subject:    rec.SubjectValue,
			Predicate:  rec.Predicate,
			Object:     rec.ObjectValue,
			Confidence: rec.Confidence,
		})
	}

	return &Overview{
		Persons:       sortedKeys(persons),
		Organizations: sortedKeys(organizations),
		Events:        sortedKeys(events),
		Relations:     relations,
	}, nil
}

// Signals returns the persisted signal ranking, truncated to top when top > 0
func (r *Reader) Signals(top int) ([]model.Signal, error) {
	var out []model.Signal
	path := filepath.Join(r.DataRoot, paths.SignalsFile)
	err := r.cached("signals", []string{path}, &out, func() (any, error) {
		ranked, err := signals.Load(r.DataRoot)
		if ranked == nil {
			ranked = []model.Signal{}
		}
		return ranked, err
	})
	if err != nil {
		return nil, err
	}
	if top > 0 && len(out) > top {
		out = out[:top]
	}
	return out, nil
}

// cached decodes the memoized result for kind into dst, computing and storing
// it with build on a miss. Cache failures only cost the memoization.
func (r *Reader) cached(kind string, inputs []string, dst any, build func() (any, error)) error {
	var key string
	if r.Cache != nil {
		key = cache.Key(kind, cache.Fingerprint(inputs...))
		if raw, ok := r.Cache.Get(key); ok {
			if err := json.Unmarshal(raw, dst); err == nil {
				r.logger().Debug("query cache hit", zap.String("kind", kind))
				return nil
			}
			_ = r.Cache.Delete(key)
		}
	}

	v, err := build()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}

	if r.Cache != nil {
		if err := r.Cache.Set(key, raw, r.TTL); err != nil {
			r.logger().Warn("query cache write failed", zap.String("kind", kind), zap.Error(err))
		}
	}
	return nil
}

func (r *Reader) knowledgePath() string {
	return filepath.Join(r.DataRoot, paths.KnowledgeFile)
}

func (r *Reader) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// nodeID is "type:value" lowercased with spaces as dashes and without dots or commas
func nodeID(typ, value string) string {
	v := strings.ToLower(value)
	v = strings.ReplaceAll(v, " ", "-")
	v = strings.ReplaceAll(v, ",", "")
	v = strings.ReplaceAll(v, ".", "")
	return strings.ToLower(typ) + ":" + v
}

var orgMarkers = []string{"GmbH", "AG", "Logic"}

// objectType guesses the node type of a relation object
func objectType(rec *model.KnowledgeRecord) string {
	if slices.ContainsFunc(orgMarkers, func(m string) bool { return strings.Contains(rec.ObjectValue, m) }) {
		return "organization"
	}
	if rec.SubjectType == "event" {
		return "event"
	}
	return "entity"
}
