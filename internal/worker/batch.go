package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/paths"
)

// DocumentProcessor runs the per-document pipeline for one source file
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, sourceFile string) (*model.RunRecord, error)
}

// DocumentResult is the outcome of processing one source document
type DocumentResult struct {
	Path  string
	Run   *model.RunRecord
	Error error
}

// StepErrors reports how many steps recorded an error
func (r *DocumentResult) StepErrors() int {
	if r.Run == nil {
		return 0
	}
	return len(r.Run.Errors)
}

// BatchProcessor processes multiple documents concurrently
type BatchProcessor struct {
	processor   DocumentProcessor
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(processor DocumentProcessor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
	}
}

// ProcessDocuments processes files on the configured number of workers.
// Files not started before ctx is done are left out; results are ordered by path.
func (b *BatchProcessor) ProcessDocuments(ctx context.Context, files []string) []*DocumentResult {
	if len(files) == 0 {
		return []*DocumentResult{}
	}

	var rejected []*DocumentResult
	claimed := make(map[string]string, len(files))

	pool := NewPool[*DocumentResult](ctx, b.concurrency)
	for _, f := range files {
		// files sharing a stem share a record directory
		if dir, err := paths.RecordDir(filepath.Dir(f), f); err == nil {
			if owner, ok := claimed[dir]; ok {
				rejected = append(rejected, &DocumentResult{
					Path:  f,
					Error: fmt.Errorf("record directory %s already used by %s: %w", dir, owner, model.ErrStructure),
				})
				continue
			}
			claimed[dir] = f
		}
		if !pool.Go(b.task(f)) {
			break
		}
	}

	results := append(pool.Wait(), rejected...)
	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})
	return results
}

func (b *BatchProcessor) task(path string) Task[*DocumentResult] {
	return func(ctx context.Context) *DocumentResult {
		run, err := b.processor.ProcessDocument(ctx, path)
		if err != nil {
			return &DocumentResult{Path: path, Error: err}
		}
		return &DocumentResult{Path: path, Run: run}
	}
}

// ProcessList reads document paths from a list file and processes them concurrently
func (b *BatchProcessor) ProcessList(ctx context.Context, listPath string) ([]*DocumentResult, error) {
	files, err := ReadPathsFromFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read paths: %w", err)
	}

	return b.ProcessDocuments(ctx, files), nil
}

// ReadPathsFromFile reads document paths from a file (one per line).
// Relative paths resolve against the list file's directory.
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w: %w", model.ErrIO, err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(filePath)

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w: %w", model.ErrIO, err)
	}

	return paths, nil
}
