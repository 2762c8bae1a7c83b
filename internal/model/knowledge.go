package model

import (
	"slices"
	"time"
)

// Status is the lifecycle state of knowledge records and clusters
type Status string

const (
	StatusCandidate  Status = "candidate"
	StatusApproved   Status = "approved"
	StatusDeprecated Status = "deprecated"
)

// ApprovedBy records who moved a knowledge record out of candidate
type ApprovedBy string

const (
	ApprovedByNone  ApprovedBy = "none"
	ApprovedByUser  ApprovedBy = "user"
	ApprovedByAgent ApprovedBy = "agent"
)

// AgentKnowledgeBuilder is the source agent of records derived from evidence
const AgentKnowledgeBuilder = "KNOWLEDGE_BUILDER"

// MergeStatus applies the escalation rule. Approved is never downgraded.
// Deprecated is kept only when stickyDeprecated is set.
func MergeStatus(existing, incoming Status, stickyDeprecated bool) Status {
	switch {
	case existing == StatusApproved:
		return existing
	case existing == StatusDeprecated && stickyDeprecated:
		return existing
	default:
		return incoming
	}
}

// KnowledgeRecord is a curated, user-facing fact
type KnowledgeRecord struct {
	ID string `json:"id"`

	SubjectType  string `json:"subject_type"`
	SubjectValue string `json:"subject_value"`
	Predicate    string `json:"predicate"`
	ObjectValue  string `json:"object_value"`

	Status     Status     `json:"status"`
	Confidence float64    `json:"confidence"`
	ApprovedBy ApprovedBy `json:"approved_by"`

	SourceDocuments []string `json:"source_documents"`
	SourceAgent     string   `json:"source_agent"`

	SubjectIdentityID *string `json:"subject_identity_id"`
	ObjectIdentityID  *string `json:"object_identity_id"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`

	Extra map[string]any `json:"extra"`
}

// NewKnowledgeRecord creates a candidate record
func NewKnowledgeRecord(id, subjectType, subjectValue, predicate, objectValue string, confidence float64, sourceAgent string, documents []string) *KnowledgeRecord {
	return &KnowledgeRecord{
		ID:              id,
		SubjectType:     subjectType,
		SubjectValue:    subjectValue,
		Predicate:       predicate,
		ObjectValue:     objectValue,
		Status:          StatusCandidate,
		Confidence:      confidence,
		ApprovedBy:      ApprovedByNone,
		SourceDocuments: slices.Clone(documents),
		SourceAgent:     sourceAgent,
		CreatedAt:       time.Now().UTC(),
		Extra:           map[string]any{},
	}
}

// Merge folds a re-derived record into r using the escalation-only rule
func (r *KnowledgeRecord) Merge(incoming *KnowledgeRecord, stickyDeprecated bool) {
	if incoming.Confidence > r.Confidence {
		r.Confidence = incoming.Confidence
	}

	for _, d := range incoming.SourceDocuments {
		if !slices.Contains(r.SourceDocuments, d) {
			r.SourceDocuments = append(r.SourceDocuments, d)
		}
	}

	r.Status = MergeStatus(r.Status, incoming.Status, stickyDeprecated)

	now := time.Now().UTC()
	r.UpdatedAt = &now

	if r.Extra == nil {
		r.Extra = map[string]any{}
	}
	for k, v := range incoming.Extra {
		if _, exists := r.Extra[k]; !exists {
			r.Extra[k] = v
		}
	}
}

// Touch stamps updated_at
func (r *KnowledgeRecord) Touch() {
	now := time.Now().UTC()
	r.UpdatedAt = &now
}

// LastChanged returns updated_at, falling back to created_at
func (r *KnowledgeRecord) LastChanged() time.Time {
	if r.UpdatedAt != nil {
		return *r.UpdatedAt
	}
	return r.CreatedAt
}

// OrganizationCluster groups spelling variants believed to denote one organization
type OrganizationCluster struct {
	ClusterID   string     `json:"cluster_id"`
	Normalized  string     `json:"normalized"`
	Variants    []string   `json:"variants"`
	Confidence  float64    `json:"confidence"`
	Status      Status     `json:"status"`
	SourceAgent string     `json:"source_agent"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// KnowledgeClusters holds every identity cluster collection
type KnowledgeClusters struct {
	Organizations []OrganizationCluster `json:"organizations"`
}
