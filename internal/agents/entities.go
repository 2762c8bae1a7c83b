package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/paths"
	"github.com/ppiankov/evidentia/internal/pipeline"
	"github.com/ppiankov/evidentia/internal/store"
)

// EntityStatusSuggested marks entities nobody has reviewed yet
const EntityStatusSuggested = "suggested"

// EntityStep asks the entity collaborator for the document's entities and
// writes entities.json
type EntityStep struct {
	Extractor Collaborator

	// Source is stamped on every entity (defaults to "extractor")
	Source string
}

func (EntityStep) Name() string { return "entity-extraction" }

func (s EntityStep) Run(ctx context.Context, rc *pipeline.RecordContext) error {
	dir, err := rc.RecordDir()
	if err != nil {
		return err
	}

	text, err := os.ReadFile(filepath.Join(dir, paths.TextFile))
	if err != nil {
		return fmt.Errorf("read text: %w: %w", model.ErrIO, err)
	}

	rc.Emit(s.Name(), "extracting entities", 40)

	out, err := s.Extractor.Call(ctx, Request{
		Task:  TaskEntities,
		DocID: rc.DocID,
		Text:  string(text),
	})
	if err != nil {
		return err
	}

	file, err := NormalizeEntities(out)
	if err != nil {
		return err
	}

	source := s.Source
	if source == "" {
		source = "extractor"
	}
	for i := range file.Entities {
		file.Entities[i].Source = source
		file.Entities[i].Status = EntityStatusSuggested
	}

	return store.WriteJSON(filepath.Join(dir, paths.EntitiesFile), file)
}

// NormalizeEntities accepts {"entities": [...]}, a bare array of entities, or
// a map of type names to string lists such as {"persons": ["Jane"]}.
// Known plural keys map to their entity type; other keys are used as given.
// Items without text are dropped.
func NormalizeEntities(raw []byte) (model.EntitiesFile, error) {
	var value any
	if err := decodeOutput(TaskEntities, raw, &value); err != nil {
		return model.EntitiesFile{}, err
	}

	var entities []model.Entity
	switch v := value.(type) {
	case []any:
		entities = entitiesFromList(v)

	case map[string]any:
		if list, ok := v["entities"]; ok {
			items, ok := list.([]any)
			if !ok {
				return model.EntitiesFile{}, fmt.Errorf("%s: %w: entities is not a list", TaskEntities, model.ErrUpstream)
			}
			entities = entitiesFromList(items)
			break
		}

		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			items, ok := v[k].([]any)
			if !ok {
				continue
			}
			for _, item := range items {
				if text, ok := item.(string); ok && strings.TrimSpace(text) != "" {
					entities = append(entities, model.Entity{Type: entityType(k), Text: text})
				}
			}
		}

	default:
		return model.EntitiesFile{}, fmt.Errorf("%s: %w: unexpected output shape", TaskEntities, model.ErrUpstream)
	}

	if entities == nil {
		entities = []model.Entity{}
	}
	return model.EntitiesFile{Entities: entities}, nil
}

var pluralTypes = map[string]string{
	"persons":       "person",
	"people":        "person",
	"organizations": "organization",
	"organisations": "organization",
	"orgs":          "organization",
	"companies":     "organization",
	"locations":     "location",
	"places":        "location",
	"addresses":     "address",
	"events":        "event",
	"dates":         "date",
	"products":      "product",
	"topics":        "topic",
}

func entityType(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	if typ, ok := pluralTypes[key]; ok {
		return typ
	}
	return key
}

func entitiesFromList(items []any) []model.Entity {
	var out []model.Entity
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		typ, _ := obj["type"].(string)
		text, _ := obj["text"].(string)
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, model.Entity{Type: typ, Text: text})
	}
	return out
}

// loadDocumentInputs reads entities.json and text.txt from a record directory.
// ok is false when either file is missing.
func loadDocumentInputs(dir string) (entities []model.Entity, text string, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(dir, paths.EntitiesFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("read entities: %w: %w", model.ErrIO, err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, paths.TextFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("read text: %w: %w", model.ErrIO, err)
	}

	var file model.EntitiesFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, "", false, fmt.Errorf("entities: %w: %w", model.ErrParse, err)
	}

	return file.Entities, string(raw), true, nil
}
