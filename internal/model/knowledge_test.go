package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeStatus(t *testing.T) {
	tests := []struct {
		name     string
		existing Status
		incoming Status
		sticky   bool
		want     Status
	}{
		{"candidate takes incoming", StatusCandidate, StatusCandidate, true, StatusCandidate},
		{"approved is sticky", StatusApproved, StatusCandidate, false, StatusApproved},
		{"approved stays with sticky deprecated", StatusApproved, StatusCandidate, true, StatusApproved},
		{"deprecated protected when sticky", StatusDeprecated, StatusCandidate, true, StatusDeprecated},
		{"deprecated reverts when not sticky", StatusDeprecated, StatusCandidate, false, StatusCandidate},
		{"candidate escalates to approved", StatusCandidate, StatusApproved, false, StatusApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeStatus(tt.existing, tt.incoming, tt.sticky))
		})
	}
}

func TestKnowledgeRecord_MergeConfidenceMonotonic(t *testing.T) {
	rec := NewKnowledgeRecord("id", "person", "Jane", "associated_with", "Acme", 0.5, AgentKnowledgeBuilder, []string{"doc-1"})

	prev := rec.Confidence
	for _, c := range []float64{0.3, 0.9, 0.1, 0.95, 0.2} {
		rec.Merge(NewKnowledgeRecord("id", "person", "Jane", "associated_with", "Acme", c, AgentKnowledgeBuilder, []string{"doc-2"}), true)
		assert.GreaterOrEqual(t, rec.Confidence, prev)
		prev = rec.Confidence
	}

	assert.Equal(t, 0.95, rec.Confidence)
	assert.Equal(t, []string{"doc-1", "doc-2"}, rec.SourceDocuments)
	assert.NotNil(t, rec.UpdatedAt)
}

func TestKnowledgeRecord_MergeExtraFirstWriteWins(t *testing.T) {
	rec := NewKnowledgeRecord("id", "a", "b", "c", "d", 0.5, AgentKnowledgeBuilder, nil)
	rec.Extra["deprecated_reason"] = "user_ignored"

	incoming := NewKnowledgeRecord("id", "a", "b", "c", "d", 0.5, AgentKnowledgeBuilder, nil)
	incoming.Extra["deprecated_reason"] = "other"
	incoming.Extra["hint"] = "h"

	rec.Merge(incoming, true)

	assert.Equal(t, "user_ignored", rec.Extra["deprecated_reason"])
	assert.Equal(t, "h", rec.Extra["hint"])
}
