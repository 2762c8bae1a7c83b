package agents

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/paths"
	"github.com/ppiankov/evidentia/internal/pipeline"
	"github.com/ppiankov/evidentia/internal/store"
)

type fakeCollaborator struct {
	out   string
	err   error
	calls []Request
}

func (f *fakeCollaborator) Call(ctx context.Context, req Request) ([]byte, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.out), nil
}

// newDocument creates data/2024/05/<name> and returns its record context
func newDocument(t *testing.T, name, content string) (*pipeline.RecordContext, string) {
	t.Helper()
	base := filepath.Join(t.TempDir(), "data", "2024", "05")
	require.NoError(t, os.MkdirAll(base, 0o755))
	src := filepath.Join(base, name)
	require.NoError(t, os.WriteFile(src, []byte(content), 0o644))

	rc := pipeline.NewRecordContext(src)
	rc.DocID = "doc-1"
	dir, err := rc.RecordDir()
	require.NoError(t, err)
	return rc, dir
}

func writeInputs(t *testing.T, dir string, entities []model.Entity) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, paths.TextFile), []byte("Jane Doe works at Acme GmbH."), 0o644))
	require.NoError(t, store.WriteJSON(filepath.Join(dir, paths.EntitiesFile), model.EntitiesFile{Entities: entities}))
}

func TestStripJSONFences(t *testing.T) {
	cases := map[string]string{
		"[1]":                   "[1]",
		"  {\"a\":1}  ":         `{"a":1}`,
		"```json\n[1, 2]\n```":  "[1, 2]",
		"```\n{\"a\": 1}\n```":  `{"a": 1}`,
		"```JSON\n[]\n```\n\n":  "[]",
	}
	for in, want := range cases {
		assert.Equal(t, want, string(StripJSONFences([]byte(in))), "input %q", in)
	}
}

func TestNormalizeEntities(t *testing.T) {
	t.Run("wrapped", func(t *testing.T) {
		f, err := NormalizeEntities([]byte(`{"entities":[{"type":"person","text":"Jane"},{"type":"person","text":""}]}`))
		require.NoError(t, err)
		assert.Equal(t, []model.Entity{{Type: "person", Text: "Jane"}}, f.Entities)
	})

	t.Run("bare array in fences", func(t *testing.T) {
		f, err := NormalizeEntities([]byte("```json\n[{\"type\":\"organization\",\"text\":\"Acme\"}]\n```"))
		require.NoError(t, err)
		assert.Equal(t, []model.Entity{{Type: "organization", Text: "Acme"}}, f.Entities)
	})

	t.Run("map of plural types", func(t *testing.T) {
		f, err := NormalizeEntities([]byte(`{"persons":["Jane","Bob"],"organizations":["Acme"],"note":"x"}`))
		require.NoError(t, err)
		assert.Equal(t, []model.Entity{
			{Type: "organization", Text: "Acme"},
			{Type: "person", Text: "Jane"},
			{Type: "person", Text: "Bob"},
		}, f.Entities)
	})

	t.Run("irregular plural keys", func(t *testing.T) {
		f, err := NormalizeEntities([]byte(`{"people":["Jane"],"addresses":["Main St 1"],"companies":["Acme"],"person":["Bob"]}`))
		require.NoError(t, err)
		assert.Equal(t, []model.Entity{
			{Type: "address", Text: "Main St 1"},
			{Type: "organization", Text: "Acme"},
			{Type: "person", Text: "Jane"},
			{Type: "person", Text: "Bob"},
		}, f.Entities)
	})

	t.Run("empty map", func(t *testing.T) {
		f, err := NormalizeEntities([]byte(`{}`))
		require.NoError(t, err)
		assert.NotNil(t, f.Entities)
		assert.Empty(t, f.Entities)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := NormalizeEntities([]byte("sorry, I cannot help"))
		assert.ErrorIs(t, err, model.ErrUpstream)
	})

	t.Run("scalar", func(t *testing.T) {
		_, err := NormalizeEntities([]byte(`42`))
		assert.ErrorIs(t, err, model.ErrUpstream)
	})
}

func TestTextStep(t *testing.T) {
	t.Run("copies plain text", func(t *testing.T) {
		rc, dir := newDocument(t, "record0001.txt", "Meeting notes")
		transcriber := &fakeCollaborator{}

		require.NoError(t, TextStep{Transcriber: transcriber}.Run(context.Background(), rc))

		data, err := os.ReadFile(filepath.Join(dir, paths.TextFile))
		require.NoError(t, err)
		assert.Equal(t, "Meeting notes", string(data))
		assert.Empty(t, transcriber.calls)
	})

	t.Run("strips html", func(t *testing.T) {
		rc, dir := newDocument(t, "record0001.html", "<h1>Notes</h1><p>Jane met <b>Acme</b>.</p>")
		transcriber := &fakeCollaborator{}

		require.NoError(t, TextStep{Transcriber: transcriber}.Run(context.Background(), rc))

		data, err := os.ReadFile(filepath.Join(dir, paths.TextFile))
		require.NoError(t, err)
		assert.Equal(t, "Notes\nJane met Acme .", string(data))
		assert.Empty(t, transcriber.calls)
	})

	t.Run("transcribes audio", func(t *testing.T) {
		rc, dir := newDocument(t, "record0001.wav", "RIFF")
		transcriber := &fakeCollaborator{out: "  hello there \n"}

		require.NoError(t, TextStep{Transcriber: transcriber}.Run(context.Background(), rc))

		data, err := os.ReadFile(filepath.Join(dir, paths.TextFile))
		require.NoError(t, err)
		assert.Equal(t, "hello there", string(data))
		require.Len(t, transcriber.calls, 1)
		assert.Equal(t, TaskTranscribe, transcriber.calls[0].Task)
		assert.Equal(t, rc.SourceFile, transcriber.calls[0].SourceFile)
	})

	t.Run("replaces text atomically", func(t *testing.T) {
		rc, dir := newDocument(t, "record0001.txt", "Second draft")
		textPath := filepath.Join(dir, paths.TextFile)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(textPath, []byte("First draft"), 0o644))

		// a reader holding the old file keeps seeing complete old content
		held := filepath.Join(filepath.Dir(dir), "held.txt")
		require.NoError(t, os.Link(textPath, held))

		require.NoError(t, TextStep{Transcriber: &fakeCollaborator{}}.Run(context.Background(), rc))

		data, err := os.ReadFile(textPath)
		require.NoError(t, err)
		assert.Equal(t, "Second draft", string(data))
		old, err := os.ReadFile(held)
		require.NoError(t, err)
		assert.Equal(t, "First draft", string(old))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".tmp")
		}
	})

	t.Run("unconfigured transcriber", func(t *testing.T) {
		rc, _ := newDocument(t, "record0001.wav", "RIFF")
		err := TextStep{Transcriber: Unconfigured{Task: TaskTranscribe}}.Run(context.Background(), rc)
		assert.ErrorIs(t, err, model.ErrUpstream)
	})

	t.Run("empty transcript", func(t *testing.T) {
		rc, _ := newDocument(t, "record0001.wav", "RIFF")
		err := TextStep{Transcriber: &fakeCollaborator{out: "   "}}.Run(context.Background(), rc)
		assert.ErrorIs(t, err, model.ErrUpstream)
	})
}

func TestEntityStep(t *testing.T) {
	rc, dir := newDocument(t, "record0001.txt", "x")
	require.NoError(t, os.WriteFile(filepath.Join(dir, paths.TextFile), []byte("Jane Doe works at Acme GmbH."), 0o644))

	extractor := &fakeCollaborator{out: `{"persons":["Jane Doe"],"organizations":["Acme GmbH"]}`}
	require.NoError(t, EntityStep{Extractor: extractor, Source: "openai"}.Run(context.Background(), rc))

	data, err := os.ReadFile(filepath.Join(dir, paths.EntitiesFile))
	require.NoError(t, err)
	var file model.EntitiesFile
	require.NoError(t, json.Unmarshal(data, &file))

	require.Len(t, file.Entities, 2)
	for _, e := range file.Entities {
		assert.Equal(t, "openai", e.Source)
		assert.Equal(t, EntityStatusSuggested, e.Status)
	}
	assert.Equal(t, "Jane Doe works at Acme GmbH.", extractor.calls[0].Text)
	assert.Equal(t, "doc-1", extractor.calls[0].DocID)
}

func TestEntityStep_MissingText(t *testing.T) {
	rc, _ := newDocument(t, "record0001.txt", "x")
	err := EntityStep{Extractor: &fakeCollaborator{out: "[]"}}.Run(context.Background(), rc)
	assert.ErrorIs(t, err, model.ErrIO)
}

func TestPersonRelationAgent(t *testing.T) {
	rc, dir := newDocument(t, "record0001.txt", "x")
	writeInputs(t, dir, []model.Entity{
		{Type: "Person", Text: "Jane Doe"},
		{Type: "organization", Text: "Acme GmbH"},
		{Type: "event", Text: "Kickoff"},
	})

	extractor := &fakeCollaborator{out: "```json\n" + `[
		{"person":"Jane Doe","organization":"Acme GmbH","confidence":0.8},
		{"person":"Jane Doe","organization":"Nobody","confidence":0}
	]` + "\n```"}
	agent := PersonRelationAgent{Extractor: extractor}

	require.NoError(t, agent.RunDocument(context.Background(), rc))
	require.NoError(t, agent.RunDocument(context.Background(), rc))

	require.Len(t, extractor.calls, 2)
	assert.Len(t, extractor.calls[0].Entities, 2, "only persons and organizations are sent")

	ev, err := store.LoadEvidenceStore(dir)
	require.NoError(t, err)
	require.Equal(t, 1, ev.Len())

	rec, ok := ev.Get("person:jane doe|associated_with|acme gmbh")
	require.True(t, ok)
	assert.Equal(t, "person", rec.SubjectType)
	assert.Equal(t, "Jane Doe", rec.SubjectValue)
	assert.Equal(t, "Acme GmbH", rec.ObjectValue)
	assert.Equal(t, 1, rec.Occurrences)
	assert.Equal(t, []string{"doc-1"}, rec.Documents)
	assert.Equal(t, []float64{0.8, 0.8}, rec.Confidences)
	assert.Equal(t, []string{AgentPersonRelation}, rec.SourceAgents)
	assert.Equal(t, false, rec.Extra["role_candidate"])
}

func TestPersonRelationAgent_Skips(t *testing.T) {
	t.Run("missing inputs", func(t *testing.T) {
		rc, dir := newDocument(t, "record0001.txt", "x")
		extractor := &fakeCollaborator{out: "[]"}
		require.NoError(t, PersonRelationAgent{Extractor: extractor}.RunDocument(context.Background(), rc))
		assert.Empty(t, extractor.calls)
		assert.NoFileExists(t, filepath.Join(dir, paths.EvidenceFile))
	})

	t.Run("no organizations", func(t *testing.T) {
		rc, dir := newDocument(t, "record0001.txt", "x")
		writeInputs(t, dir, []model.Entity{{Type: "person", Text: "Jane"}, {Type: "person", Text: "Bob"}})
		extractor := &fakeCollaborator{out: "[]"}
		require.NoError(t, PersonRelationAgent{Extractor: extractor}.RunDocument(context.Background(), rc))
		assert.Empty(t, extractor.calls)
	})

	t.Run("no candidates", func(t *testing.T) {
		rc, dir := newDocument(t, "record0001.txt", "x")
		writeInputs(t, dir, []model.Entity{{Type: "person", Text: "Jane"}, {Type: "organization", Text: "Acme"}})
		require.NoError(t, PersonRelationAgent{Extractor: &fakeCollaborator{out: "[]"}}.RunDocument(context.Background(), rc))
		assert.NoFileExists(t, filepath.Join(dir, paths.EvidenceFile))
	})

	t.Run("unusable output", func(t *testing.T) {
		rc, dir := newDocument(t, "record0001.txt", "x")
		writeInputs(t, dir, []model.Entity{{Type: "person", Text: "Jane"}, {Type: "organization", Text: "Acme"}})
		err := PersonRelationAgent{Extractor: &fakeCollaborator{out: "no idea"}}.RunDocument(context.Background(), rc)
		assert.ErrorIs(t, err, model.ErrUpstream)
	})

	t.Run("collaborator failure", func(t *testing.T) {
		rc, dir := newDocument(t, "record0001.txt", "x")
		writeInputs(t, dir, []model.Entity{{Type: "person", Text: "Jane"}, {Type: "organization", Text: "Acme"}})
		boom := errors.New("boom")
		err := PersonRelationAgent{Extractor: &fakeCollaborator{err: boom}}.RunDocument(context.Background(), rc)
		assert.ErrorIs(t, err, boom)
	})
}

func TestContextRelationAgent(t *testing.T) {
	rc, dir := newDocument(t, "record0001.txt", "x")
	writeInputs(t, dir, []model.Entity{
		{Type: "event", Text: "Kickoff"},
		{Type: "organization", Text: "Acme GmbH"},
	})

	extractor := &fakeCollaborator{out: `[
		{"from_type":"event","from":"Kickoff","to_type":"organization","to":"Acme GmbH","confidence":0.6},
		{"from_type":"event","from":"Kickoff","to_type":"organization","to":"Other","confidence":-1}
	]`}
	require.NoError(t, ContextRelationAgent{Extractor: extractor}.RunDocument(context.Background(), rc))

	ev, err := store.LoadEvidenceStore(dir)
	require.NoError(t, err)
	require.Equal(t, 1, ev.Len())

	rec, ok := ev.Get("event:kickoff|associated_with|organization:acme gmbh")
	require.True(t, ok)
	assert.Equal(t, "event", rec.SubjectType)
	assert.Equal(t, "Acme GmbH", rec.ObjectValue)
	assert.Equal(t, []float64{0.6}, rec.Confidences)
	assert.Equal(t, []string{AgentContextRelation}, rec.SourceAgents)
}

func TestContextRelationAgent_NotEnoughEntities(t *testing.T) {
	rc, dir := newDocument(t, "record0001.txt", "x")
	writeInputs(t, dir, []model.Entity{{Type: "event", Text: "Kickoff"}})

	extractor := &fakeCollaborator{out: "[]"}
	require.NoError(t, ContextRelationAgent{Extractor: extractor}.RunDocument(context.Background(), rc))
	assert.Empty(t, extractor.calls)
}

func TestRelationAgents_DocumentIDFromRunRecord(t *testing.T) {
	rc, dir := newDocument(t, "record0001.txt", "x")
	rc.DocID = ""
	writeInputs(t, dir, []model.Entity{{Type: "person", Text: "Jane"}, {Type: "organization", Text: "Acme"}})

	run, err := store.LoadOrCreateRunRecord(dir, rc.SourceFile)
	require.NoError(t, err)
	require.NoError(t, store.SaveRunRecord(dir, run))

	extractor := &fakeCollaborator{out: `[{"person":"Jane","organization":"Acme","confidence":0.5}]`}
	require.NoError(t, PersonRelationAgent{Extractor: extractor}.RunDocument(context.Background(), rc))

	ev, err := store.LoadEvidenceStore(dir)
	require.NoError(t, err)
	rec, ok := ev.Get(model.PersonOrgKey("Jane", "Acme"))
	require.True(t, ok)
	assert.Equal(t, []string{run.DocID}, rec.Documents)
}
