// Package paths describes the on-disk layout of the data root.
//
// Documents live in data/YYYY/MM/<doc>/ next to the source file they were
// created from; global artifacts live directly in data/.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/evidentia/internal/model"
)

// Artifact file names
const (
	EntitiesFile   = "entities.json"
	TextFile       = "text.txt"
	EvidenceFile   = "evidence.json"
	ProcessingFile = "processing.json"
	KnowledgeFile  = "knowledge.json"
	SignalsFile    = "signals.json"
	LockFile       = ".evidentia.lock"
)

// DataRootFromBase returns the data root two levels above a per-document base directory
func DataRootFromBase(baseDir string) (string, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("resolve base dir %s: %w", baseDir, err)
	}

	month := filepath.Dir(abs)
	root := filepath.Dir(month)
	if month == abs || root == month {
		return "", fmt.Errorf("base dir %s is not data/YYYY/MM: %w", baseDir, model.ErrStructure)
	}
	return root, nil
}

// CheckBase verifies that baseDir sits exactly two levels below dataRoot
func CheckBase(dataRoot, baseDir string) error {
	root, err := filepath.Abs(dataRoot)
	if err != nil {
		return fmt.Errorf("resolve data root %s: %w", dataRoot, err)
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("resolve base dir %s: %w", baseDir, err)
	}

	rel, err := filepath.Rel(root, base)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("base dir %s is outside data root %s: %w", baseDir, dataRoot, model.ErrStructure)
	}
	if parts := strings.Split(filepath.ToSlash(rel), "/"); len(parts) != 2 || rel == "." {
		return fmt.Errorf("base dir %s is not two levels below %s: %w", baseDir, dataRoot, model.ErrStructure)
	}
	return nil
}

// RecordDir returns <baseDir>/<source file stem> without creating it
func RecordDir(baseDir, sourceFile string) (string, error) {
	name := filepath.Base(sourceFile)
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return "", fmt.Errorf("source file %q has no valid file stem: %w", sourceFile, model.ErrStructure)
	}
	return filepath.Join(baseDir, stem), nil
}

// EnsureRecordDir returns the record directory for a source file, creating it
func EnsureRecordDir(baseDir, sourceFile string) (string, error) {
	dir, err := RecordDir(baseDir, sourceFile)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create record directory: %w: %w", model.ErrIO, err)
	}
	return dir, nil
}

// MonthDir returns data/YYYY/MM for t
func MonthDir(dataRoot string, t time.Time) string {
	return filepath.Join(dataRoot, t.Format("2006"), t.Format("01"))
}

// NextRecordingPath returns data/YYYY/MM/recordNNNN<ext> for the first index
// whose record name is unused and creates its month directory. A name is used
// when any file with that stem (whatever its extension) or a directory of that
// name exists, since both map to the same record directory.
func NextRecordingPath(dataRoot string, now time.Time, ext string) (string, error) {
	base := MonthDir(dataRoot, now)
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", fmt.Errorf("create month directory: %w: %w", model.ErrIO, err)
	}

	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		return "", fmt.Errorf("read month directory: %w: %w", model.ErrIO, err)
	}
	taken := make(map[string]bool, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() {
			name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		taken[name] = true
	}

	for index := 1; ; index++ {
		stem := fmt.Sprintf("record%04d", index)
		if !taken[stem] {
			return filepath.Join(base, stem+ext), nil
		}
	}
}

// DocumentID returns the id signals use for a record directory (its base name)
func DocumentID(recordDir string) string {
	return filepath.Base(recordDir)
}

// FindArtifacts walks dataRoot and returns every file named name, in lexical order.
// With skipRoot set, a file directly in dataRoot is excluded.
func FindArtifacts(dataRoot, name string, skipRoot bool) ([]string, error) {
	root := filepath.Clean(dataRoot)
	var found []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// unreadable subtrees are skipped like missing ones
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || d.Name() != name {
			return nil
		}
		if skipRoot && filepath.Dir(path) == root {
			return nil
		}
		found = append(found, path)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("walk %s: %w: %w", dataRoot, model.ErrIO, err)
	}

	return found, nil
}
