package aggregate

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/store"
)

func writeDocEvidence(t *testing.T, root, doc string, conf float64) {
	t.Helper()
	s, err := store.LoadEvidenceStore(filepath.Join(root, "2025", "03", doc))
	require.NoError(t, err)
	key := model.PersonOrgKey("Jane Doe", "Acme")
	s.AddOrUpdate(model.NewEvidenceRecord(key, "person", "Jane Doe", model.PredicateAssociatedWith, "Acme"), doc, conf, "PERSON_RELATION_AGENT")
	require.NoError(t, s.Save())
}

func TestEvidenceAggregator_Run(t *testing.T) {
	root := t.TempDir()
	writeDocEvidence(t, root, "record0001", 0.8)
	writeDocEvidence(t, root, "record0002", 0.6)

	stats, err := NewEvidenceAggregator(nil).Run(root)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 1, stats.Global)

	global, err := store.LoadEvidenceStore(root)
	require.NoError(t, err)
	rec, ok := global.Get(model.PersonOrgKey("Jane Doe", "Acme"))
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"record0001", "record0002"}, rec.Documents)
	assert.Equal(t, 2, rec.Occurrences)
	assert.Len(t, rec.Confidences, 2)
}

func TestEvidenceAggregator_RerunGrowsConfidencesOnly(t *testing.T) {
	root := t.TempDir()
	writeDocEvidence(t, root, "record0001", 0.8)
	writeDocEvidence(t, root, "record0002", 0.6)
	key := model.PersonOrgKey("Jane Doe", "Acme")

	agg := NewEvidenceAggregator(nil)
	_, err := agg.Run(root)
	require.NoError(t, err)
	first, err := store.LoadEvidenceStore(root)
	require.NoError(t, err)
	before, _ := first.Get(key)

	_, err = agg.Run(root)
	require.NoError(t, err)
	second, err := store.LoadEvidenceStore(root)
	require.NoError(t, err)
	after, _ := second.Get(key)

	assert.Equal(t, before.Documents, after.Documents)
	assert.Equal(t, before.Occurrences, after.Occurrences)
	assert.Len(t, before.Confidences, 2)
	assert.Len(t, after.Confidences, 4, "rescanning appends the same samples again")
	assert.InDelta(t, before.AvgConfidence(), after.AvgConfidence(), 1e-9)
}

func TestEvidenceAggregator_EmptyCorpus(t *testing.T) {
	root := t.TempDir()
	stats, err := NewEvidenceAggregator(nil).Run(root)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Files)
	assert.FileExists(t, filepath.Join(root, "evidence.json"))
}

func TestKnowledgeBuilder_Run(t *testing.T) {
	root := t.TempDir()
	writeDocEvidence(t, root, "record0001", 0.8)
	writeDocEvidence(t, root, "record0002", 0.4)
	_, err := NewEvidenceAggregator(nil).Run(root)
	require.NoError(t, err)

	b := NewKnowledgeBuilder(true, nil)
	stats, err := b.Run(root)
	require.NoError(t, err)
	assert.Equal(t, BuildStats{Created: 1}, stats)

	knowledge, err := store.LoadKnowledgeStore(root)
	require.NoError(t, err)
	rec, ok := knowledge.Get("person:jane doe|associated_with|acme")
	require.True(t, ok)
	assert.Equal(t, model.StatusCandidate, rec.Status)
	assert.Equal(t, model.ApprovedByNone, rec.ApprovedBy)
	assert.InDelta(t, 0.6, rec.Confidence, 1e-9)
	assert.ElementsMatch(t, []string{"record0001", "record0002"}, rec.SourceDocuments)

	stats, err = b.Run(root)
	require.NoError(t, err)
	assert.Equal(t, BuildStats{Updated: 1}, stats)

	again, err := store.LoadKnowledgeStore(root)
	require.NoError(t, err)
	rec2, _ := again.Get(rec.ID)
	assert.InDelta(t, rec.Confidence, rec2.Confidence, 1e-9)
	assert.Equal(t, rec.SourceDocuments, rec2.SourceDocuments)
	require.NotNil(t, rec2.UpdatedAt)
}

func TestKnowledgeBuilder_ApprovedSurvivesRebuild(t *testing.T) {
	root := t.TempDir()
	writeDocEvidence(t, root, "record0001", 0.3)
	_, err := NewEvidenceAggregator(nil).Run(root)
	require.NoError(t, err)

	b := NewKnowledgeBuilder(false, nil)
	_, err = b.Run(root)
	require.NoError(t, err)

	knowledge, err := store.LoadKnowledgeStore(root)
	require.NoError(t, err)
	id := "person:jane doe|associated_with|acme"
	require.NoError(t, knowledge.Update(id, func(r *model.KnowledgeRecord) {
		r.Status = model.StatusApproved
		r.ApprovedBy = model.ApprovedByUser
	}))
	require.NoError(t, knowledge.Save())

	_, err = b.Run(root)
	require.NoError(t, err)

	after, err := store.LoadKnowledgeStore(root)
	require.NoError(t, err)
	rec, _ := after.Get(id)
	assert.Equal(t, model.StatusApproved, rec.Status)
}
