package model

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// AgentUserConfirmation is the source agent stamped on evidence created by a user confirmation
const AgentUserConfirmation = "USER_CONFIRMATION"

// PredicateAssociatedWith is the relation predicate produced by the relation agents
const PredicateAssociatedWith = "associated_with"

// EvidenceRecord is one observed subject-predicate-object triple with its provenance.
//
// Occurrences counts distinct documents, Confidences keeps every observed score
// (repeats from the same document included).
type EvidenceRecord struct {
	Key string `json:"key"`

	SubjectType  string `json:"subject_type"`
	SubjectValue string `json:"subject_value"`
	Predicate    string `json:"predicate"`
	ObjectValue  string `json:"object_value"`

	Occurrences  int       `json:"occurrences"`
	Documents    []string  `json:"documents"`
	Confidences  []float64 `json:"confidences"`
	SourceAgents []string  `json:"source_agents"`

	Extra map[string]any `json:"extra"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// NewEvidenceRecord creates an evidence record with no occurrences yet
func NewEvidenceRecord(key, subjectType, subjectValue, predicate, objectValue string) *EvidenceRecord {
	now := time.Now().UTC()
	return &EvidenceRecord{
		Key:          key,
		SubjectType:  subjectType,
		SubjectValue: subjectValue,
		Predicate:    predicate,
		ObjectValue:  objectValue,
		Documents:    []string{},
		Confidences:  []float64{},
		SourceAgents: []string{},
		Extra:        map[string]any{},
		FirstSeen:    now,
		LastSeen:     now,
	}
}

// AddOccurrence records one extraction result for a document
func (r *EvidenceRecord) AddOccurrence(documentID string, confidence float64, agent string) {
	if !slices.Contains(r.Documents, documentID) {
		r.Documents = append(r.Documents, documentID)
		r.Occurrences++
	}

	r.Confidences = append(r.Confidences, confidence)

	if !slices.Contains(r.SourceAgents, agent) {
		r.SourceAgents = append(r.SourceAgents, agent)
	}

	r.LastSeen = time.Now().UTC()
}

// Merge folds incoming into r: document and agent union, confidence concatenation,
// first-write-wins extra, min first_seen and max last_seen.
func (r *EvidenceRecord) Merge(incoming *EvidenceRecord) {
	for _, doc := range incoming.Documents {
		if !slices.Contains(r.Documents, doc) {
			r.Documents = append(r.Documents, doc)
			r.Occurrences++
		}
	}

	r.Confidences = append(r.Confidences, incoming.Confidences...)

	for _, agent := range incoming.SourceAgents {
		if !slices.Contains(r.SourceAgents, agent) {
			r.SourceAgents = append(r.SourceAgents, agent)
		}
	}

	if r.Extra == nil {
		r.Extra = map[string]any{}
	}
	for k, v := range incoming.Extra {
		if _, exists := r.Extra[k]; !exists {
			r.Extra[k] = v
		}
	}

	if incoming.FirstSeen.Before(r.FirstSeen) {
		r.FirstSeen = incoming.FirstSeen
	}
	if incoming.LastSeen.After(r.LastSeen) {
		r.LastSeen = incoming.LastSeen
	}
}

// AvgConfidence is the arithmetic mean over every observed confidence
func (r *EvidenceRecord) AvgConfidence() float64 {
	if len(r.Confidences) == 0 {
		return 0
	}
	var sum float64
	for _, c := range r.Confidences {
		sum += c
	}
	return sum / float64(len(r.Confidences))
}

// Clone returns a deep copy
func (r *EvidenceRecord) Clone() *EvidenceRecord {
	c := *r
	c.Documents = slices.Clone(r.Documents)
	c.Confidences = slices.Clone(r.Confidences)
	c.SourceAgents = slices.Clone(r.SourceAgents)
	c.Extra = make(map[string]any, len(r.Extra))
	for k, v := range r.Extra {
		c.Extra[k] = v
	}
	return &c
}

// EvidenceFromConfirmation builds the synthetic evidence a user confirmation injects.
// It carries no documents so occurrences stay zero; the confirmed record's documents
// are kept under extra["confirmed_documents"].
func EvidenceFromConfirmation(k *KnowledgeRecord) *EvidenceRecord {
	rec := NewEvidenceRecord(
		ConfirmationKey(k.ID),
		k.SubjectType,
		k.SubjectValue,
		k.Predicate,
		k.ObjectValue,
	)
	rec.Confidences = []float64{1.0}
	rec.SourceAgents = []string{AgentUserConfirmation}
	rec.Extra["confirmed_knowledge_id"] = k.ID
	rec.Extra["action"] = "confirm_relation"
	rec.Extra["confirmed_documents"] = slices.Clone(k.SourceDocuments)
	return rec
}

// TripleKey is the evidence key used by the context relation agent:
// "{subject_type}:{subject_value}|{predicate}|{object_type}:{object_value}", lowercased.
func TripleKey(subjectType, subjectValue, predicate, objectType, objectValue string) string {
	return strings.ToLower(fmt.Sprintf("%s:%s|%s|%s:%s",
		subjectType, subjectValue, predicate, objectType, objectValue))
}

// PersonOrgKey is the evidence key used by the person relation agent:
// "person:{name}|associated_with|{organization}", lowercased.
func PersonOrgKey(person, organization string) string {
	return strings.ToLower(fmt.Sprintf("person:%s|%s|%s", person, PredicateAssociatedWith, organization))
}

// KnowledgeID derives the knowledge id of a triple:
// "{subject_type}:{subject_value}|{predicate}|{object_value}", lowercased.
func KnowledgeID(subjectType, subjectValue, predicate, objectValue string) string {
	return strings.ToLower(fmt.Sprintf("%s:%s|%s|%s", subjectType, subjectValue, predicate, objectValue))
}

// ConfirmationKey is the evidence key of a user confirmation for a knowledge id
func ConfirmationKey(knowledgeID string) string {
	return "confirm:" + knowledgeID
}
