package store

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/paths"
)

// knowledgeFile is the on-disk shape of knowledge.json
type knowledgeFile struct {
	Records      []*model.KnowledgeRecord `json:"records"`
	Clusters     model.KnowledgeClusters  `json:"clusters"`
	NameMappings []any                    `json:"name_mappings"`
}

// KnowledgeStore holds the curated knowledge records and identity clusters
type KnowledgeStore struct {
	records          map[string]*model.KnowledgeRecord
	clusters         model.KnowledgeClusters
	path             string
	stickyDeprecated bool
}

// LoadKnowledgeStore loads dataRoot/knowledge.json, returning an empty store if it does not exist
func LoadKnowledgeStore(dataRoot string) (*KnowledgeStore, error) {
	s := &KnowledgeStore{
		records: make(map[string]*model.KnowledgeRecord),
		path:    filepath.Join(dataRoot, paths.KnowledgeFile),
	}

	var file knowledgeFile
	if _, err := readJSON(s.path, &file); err != nil {
		return nil, err
	}

	for _, r := range file.Records {
		if r == nil {
			continue
		}
		if r.Extra == nil {
			r.Extra = map[string]any{}
		}
		s.records[r.ID] = r
	}
	s.clusters = file.Clusters

	return s, nil
}

// WithStickyDeprecated sets whether merges keep deprecated records deprecated
func (s *KnowledgeStore) WithStickyDeprecated(sticky bool) *KnowledgeStore {
	s.stickyDeprecated = sticky
	return s
}

// Path returns the backing file
func (s *KnowledgeStore) Path() string { return s.path }

// Get returns the record with id
func (s *KnowledgeStore) Get(id string) (*model.KnowledgeRecord, bool) {
	r, ok := s.records[id]
	return r, ok
}

// Has reports whether id exists
func (s *KnowledgeStore) Has(id string) bool {
	_, ok := s.records[id]
	return ok
}

// Update applies fn to the stored record with id
func (s *KnowledgeStore) Update(id string, fn func(*model.KnowledgeRecord)) error {
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("knowledge record %q: %w", id, model.ErrNotFound)
	}
	fn(r)
	return nil
}

// AppendOrUpdate inserts record or merges it into the existing entry with the escalation-only rule
func (s *KnowledgeStore) AppendOrUpdate(record *model.KnowledgeRecord) {
	existing, ok := s.records[record.ID]
	if !ok {
		s.records[record.ID] = record
		return
	}
	existing.Merge(record, s.stickyDeprecated)
}

// Len returns the number of records
func (s *KnowledgeStore) Len() int { return len(s.records) }

// All returns the records ordered by id
func (s *KnowledgeStore) All() []*model.KnowledgeRecord {
	out := make([]*model.KnowledgeRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clusters returns the identity clusters
func (s *KnowledgeStore) Clusters() model.KnowledgeClusters {
	return s.clusters
}

// ReplaceOrganizationClusters swaps in a freshly computed organization cluster set
func (s *KnowledgeStore) ReplaceOrganizationClusters(clusters []model.OrganizationCluster) {
	s.clusters.Organizations = slices.Clone(clusters)
}

// Save writes records, clusters and the (unused) name mappings
func (s *KnowledgeStore) Save() error {
	file := knowledgeFile{
		Records:      s.All(),
		Clusters:     s.clusters,
		NameMappings: []any{},
	}
	if file.Clusters.Organizations == nil {
		file.Clusters.Organizations = []model.OrganizationCluster{}
	}
	return WriteJSON(s.path, file)
}
