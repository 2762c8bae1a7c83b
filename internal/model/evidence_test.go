package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvidenceRecord_AddOccurrence(t *testing.T) {
	rec := NewEvidenceRecord("person:jane|associated_with|acme", "person", "Jane", PredicateAssociatedWith, "Acme")

	rec.AddOccurrence("doc-1", 0.8, "A")
	rec.AddOccurrence("doc-1", 0.6, "A")
	rec.AddOccurrence("doc-2", 0.4, "B")

	assert.Equal(t, 2, rec.Occurrences)
	assert.Equal(t, []string{"doc-1", "doc-2"}, rec.Documents)
	assert.Equal(t, []float64{0.8, 0.6, 0.4}, rec.Confidences)
	assert.Equal(t, []string{"A", "B"}, rec.SourceAgents)
	assert.Equal(t, len(rec.Documents), rec.Occurrences)
	assert.GreaterOrEqual(t, len(rec.Confidences), rec.Occurrences)
	assert.InDelta(t, 0.6, rec.AvgConfidence(), 1e-9)
}

func TestEvidenceRecord_AvgConfidenceEmpty(t *testing.T) {
	rec := NewEvidenceRecord("k", "a", "b", "c", "d")
	assert.Equal(t, 0.0, rec.AvgConfidence())
}

func TestEvidenceRecord_Merge(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	base := NewEvidenceRecord("k", "person", "Jane", PredicateAssociatedWith, "Acme")
	base.AddOccurrence("doc-1", 0.5, "A")
	base.Extra["origin"] = "first"
	base.FirstSeen = late
	base.LastSeen = late

	incoming := NewEvidenceRecord("k", "person", "Jane", PredicateAssociatedWith, "Acme")
	incoming.AddOccurrence("doc-1", 0.7, "B")
	incoming.AddOccurrence("doc-2", 0.9, "B")
	incoming.Extra["origin"] = "second"
	incoming.Extra["note"] = "x"
	incoming.FirstSeen = early
	incoming.LastSeen = late.Add(time.Hour)

	base.Merge(incoming)

	assert.Equal(t, []string{"doc-1", "doc-2"}, base.Documents)
	assert.Equal(t, 2, base.Occurrences)
	assert.Equal(t, []float64{0.5, 0.7, 0.9}, base.Confidences)
	assert.Equal(t, []string{"A", "B"}, base.SourceAgents)
	assert.Equal(t, "first", base.Extra["origin"])
	assert.Equal(t, "x", base.Extra["note"])
	assert.Equal(t, early, base.FirstSeen)
	assert.Equal(t, late.Add(time.Hour), base.LastSeen)
}

func TestEvidenceFromConfirmation(t *testing.T) {
	k := NewKnowledgeRecord("person:jane doe|associated_with|acme", "person", "Jane Doe",
		PredicateAssociatedWith, "Acme", 0.4, AgentKnowledgeBuilder, []string{"doc-1"})

	ev := EvidenceFromConfirmation(k)

	require.NotNil(t, ev)
	assert.Equal(t, "confirm:person:jane doe|associated_with|acme", ev.Key)
	assert.Equal(t, []string{AgentUserConfirmation}, ev.SourceAgents)
	assert.Equal(t, []float64{1.0}, ev.Confidences)
	assert.Equal(t, 0, ev.Occurrences)
	assert.Empty(t, ev.Documents)
	assert.Equal(t, k.ID, ev.Extra["confirmed_knowledge_id"])
	assert.Equal(t, []string{"doc-1"}, ev.Extra["confirmed_documents"])
	assert.Equal(t, k.ID, KnowledgeID(ev.SubjectType, ev.SubjectValue, ev.Predicate, ev.ObjectValue))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "person:jane|associated_with|organization:acme gmbh",
		TripleKey("Person", "Jane", "associated_with", "Organization", "ACME GmbH"))
	assert.Equal(t, "person:jane doe|associated_with|acme",
		PersonOrgKey("Jane Doe", "ACME"))
	assert.Equal(t, "person:jane doe|associated_with|acme",
		KnowledgeID("person", "Jane Doe", "associated_with", "Acme"))
}

func TestClone_IsDeep(t *testing.T) {
	rec := NewEvidenceRecord("k", "a", "b", "c", "d")
	rec.AddOccurrence("doc-1", 0.5, "A")

	c := rec.Clone()
	c.AddOccurrence("doc-2", 0.1, "B")
	c.Extra["x"] = 1

	assert.Len(t, rec.Documents, 1)
	assert.Len(t, rec.Confidences, 1)
	assert.NotContains(t, rec.Extra, "x")
}
