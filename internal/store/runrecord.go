package store

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/paths"
)

// LoadRunRecord reads recordDir/processing.json; a missing file is an error
func LoadRunRecord(recordDir string) (*model.RunRecord, error) {
	path := filepath.Join(recordDir, paths.ProcessingFile)

	var rec model.RunRecord
	found, err := readJSON(path, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("processing file %s: %w", path, model.ErrNotFound)
	}
	normalizeRunRecord(&rec)
	return &rec, nil
}

// LoadOrCreateRunRecord reads recordDir/processing.json or starts a new run with a fresh doc id.
// An existing record made for a different source file is an ErrStructure.
func LoadOrCreateRunRecord(recordDir, sourceFile string) (*model.RunRecord, error) {
	path := filepath.Join(recordDir, paths.ProcessingFile)

	name := ""
	if sourceFile != "" {
		name = filepath.Base(sourceFile)
	}

	var rec model.RunRecord
	found, err := readJSON(path, &rec)
	if err != nil {
		return nil, err
	}
	if found {
		if name != "" && rec.SourceFile != "" && rec.SourceFile != name {
			return nil, fmt.Errorf("%s belongs to %s, not %s: %w", path, rec.SourceFile, name, model.ErrStructure)
		}
		normalizeRunRecord(&rec)
		return &rec, nil
	}

	return &model.RunRecord{
		DocID:      uuid.NewString(),
		SourceFile: name,
		StartedAt:  time.Now().UTC(),
		Steps:      make(map[string]model.StepOutcome),
		Errors:     []string{},
	}, nil
}

// SaveRunRecord writes rec to recordDir/processing.json
func SaveRunRecord(recordDir string, rec *model.RunRecord) error {
	return WriteJSON(filepath.Join(recordDir, paths.ProcessingFile), rec)
}

// DocumentIDFor returns the doc id persisted for recordDir
func DocumentIDFor(recordDir string) (string, error) {
	rec, err := LoadRunRecord(recordDir)
	if err != nil {
		return "", err
	}
	if rec.DocID == "" {
		return "", fmt.Errorf("processing.json missing doc_id: %w", model.ErrParse)
	}
	return rec.DocID, nil
}

func normalizeRunRecord(rec *model.RunRecord) {
	if rec.Steps == nil {
		rec.Steps = make(map[string]model.StepOutcome)
	}
	if rec.Errors == nil {
		rec.Errors = []string{}
	}
}
