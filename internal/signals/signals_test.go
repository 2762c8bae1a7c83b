package signals

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/paths"
)

func writeEntities(t *testing.T, root, doc string, entities ...model.Entity) {
	t.Helper()
	dir := filepath.Join(root, "2025", "03", doc)
	require.NoError(t, os.MkdirAll(dir, 0755))
	raw, err := json.Marshal(model.EntitiesFile{Entities: entities})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, paths.EntitiesFile), raw, 0644))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "acme gmbh", Normalize("  ACME, GmbH. "))
	assert.Equal(t, "jean-luc", Normalize("Jean-Luc"))
	assert.Equal(t, "person:jane", Key("Person", "Jane."))
}

func TestAggregator_Ranking(t *testing.T) {
	root := t.TempDir()
	writeEntities(t, root, "record0001", model.Entity{Type: "person", Text: "Jane"})
	writeEntities(t, root, "record0002", model.Entity{Type: "person", Text: "jane"})
	writeEntities(t, root, "record0003", model.Entity{Type: "person", Text: "Jane."}, model.Entity{Type: "person", Text: "Bob"})

	ranked, err := NewAggregator(nil).Run(root)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	assert.Equal(t, "person:jane", ranked[0].Key)
	assert.Equal(t, 3, ranked[0].Count)
	assert.Equal(t, "Jane", ranked[0].Value)
	assert.ElementsMatch(t, []string{"record0001", "record0002", "record0003"}, ranked[0].Documents)

	assert.Equal(t, "person:bob", ranked[1].Key)
	assert.Equal(t, 1, ranked[1].Count)

	persisted, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, ranked, persisted)
}

func TestAggregator_CountsRepeatsWithinDocument(t *testing.T) {
	root := t.TempDir()
	writeEntities(t, root, "record0001",
		model.Entity{Type: "organization", Text: "Acme"},
		model.Entity{Type: "organization", Text: "ACME"})

	ranked, err := NewAggregator(nil).Rebuild(root)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, 2, ranked[0].Count)
	assert.Equal(t, []string{"record0001"}, ranked[0].Documents)
}

func TestAggregator_SkipsMalformed(t *testing.T) {
	root := t.TempDir()
	writeEntities(t, root, "record0001", model.Entity{Type: "person", Text: "Jane"})

	bad := filepath.Join(root, "2025", "03", "record0002")
	require.NoError(t, os.MkdirAll(bad, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(bad, paths.EntitiesFile), []byte("nope"), 0644))

	ranked, err := NewAggregator(nil).Run(root)
	require.NoError(t, err)
	assert.Len(t, ranked, 1)
}

func TestAggregator_OverwritesSnapshot(t *testing.T) {
	root := t.TempDir()
	writeEntities(t, root, "record0001", model.Entity{Type: "person", Text: "Jane"})

	_, err := NewAggregator(nil).Run(root)
	require.NoError(t, err)
	_, err = NewAggregator(nil).Run(root)
	require.NoError(t, err)

	persisted, err := Load(root)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, 1, persisted[0].Count, "a rerun rebuilds instead of accumulating")
}

func TestLoad_Missing(t *testing.T) {
	got, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, got)
}
