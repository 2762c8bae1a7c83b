// Package store persists the evidence, knowledge and run-record artifacts.
//
// Every store follows the same cycle: whole-file load, in-memory mutation,
// whole-file replace. Writes go to a temp file in the same directory and are
// renamed into place so readers never observe a partial file.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/evidentia/internal/model"
)

// readJSON reads path into v. It reports false without error when the file does not exist.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w: %w", path, model.ErrIO, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("invalid %s: %w: %w", filepath.Base(path), model.ErrParse, err)
	}
	return true, nil
}

// WriteJSON marshals v with indentation and atomically replaces path
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return WriteFile(path, data)
}

// WriteFile atomically replaces path with data, creating its directory as needed
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w: %w", dir, model.ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w: %w", path, model.ErrIO, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w: %w", path, model.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w: %w", path, model.ErrIO, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w: %w", path, model.ErrIO, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w: %w", path, model.ErrIO, err)
	}
	return nil
}
