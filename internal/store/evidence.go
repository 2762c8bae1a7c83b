package store

import (
	"path/filepath"
	"sort"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/paths"
)

// EvidenceStore is a deduplicated map of evidence records backed by one evidence.json
type EvidenceStore struct {
	records map[string]*model.EvidenceRecord
	path    string
}

// LoadEvidenceStore loads dir/evidence.json, returning an empty store if it does not exist
func LoadEvidenceStore(dir string) (*EvidenceStore, error) {
	s := &EvidenceStore{
		records: make(map[string]*model.EvidenceRecord),
		path:    filepath.Join(dir, paths.EvidenceFile),
	}

	var list []*model.EvidenceRecord
	if _, err := readJSON(s.path, &list); err != nil {
		return nil, err
	}

	for _, r := range list {
		if r == nil {
			continue
		}
		if r.Extra == nil {
			r.Extra = map[string]any{}
		}
		s.records[r.Key] = r
	}
	return s, nil
}

// Path returns the backing file
func (s *EvidenceStore) Path() string { return s.path }

// AddOrUpdate inserts record if its key is new, then records one occurrence on the stored entry
func (s *EvidenceStore) AddOrUpdate(record *model.EvidenceRecord, documentID string, confidence float64, agent string) {
	entry, ok := s.records[record.Key]
	if !ok {
		entry = record
		s.records[record.Key] = entry
	}
	entry.AddOccurrence(documentID, confidence, agent)
}

// MergeRecord folds incoming into the store. A new key is inserted as an unchanged copy.
func (s *EvidenceStore) MergeRecord(incoming *model.EvidenceRecord) {
	entry, ok := s.records[incoming.Key]
	if !ok {
		s.records[incoming.Key] = incoming.Clone()
		return
	}
	entry.Merge(incoming)
}

// InsertOrMerge is MergeRecord under the name the confirmation path uses
func (s *EvidenceStore) InsertOrMerge(incoming *model.EvidenceRecord) {
	s.MergeRecord(incoming)
}

// Get returns the record stored under key
func (s *EvidenceStore) Get(key string) (*model.EvidenceRecord, bool) {
	r, ok := s.records[key]
	return r, ok
}

// Len returns the number of records
func (s *EvidenceStore) Len() int { return len(s.records) }

// All returns a snapshot of copies ordered by key
func (s *EvidenceStore) All() []*model.EvidenceRecord {
	out := make([]*model.EvidenceRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Save writes every record as a flat array
func (s *EvidenceStore) Save() error {
	return WriteJSON(s.path, s.All())
}
