package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/evidentia/internal/worker"
)

var (
	concurrency  int
	listFile     string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [file...]",
	Short: "Process multiple documents in parallel",
	Long: `Batch processes multiple documents concurrently:
- Read document paths from the arguments or a list file (one per line)
- Run the per-document pipeline with a configurable worker count
- Rebuild the global state once, after every document is done

Documents only write inside their own record directory, so they can run
in parallel; the global update runs alone under the data-root lock.

Example:
  evidentia batch data/2025/03/record0001.m4a data/2025/03/record0002.m4a
  evidentia batch --list documents.txt --concurrency 8`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: batch.workers)")
	batchCmd.Flags().StringVar(&listFile, "list", "", "file listing one document path per line")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 2*time.Hour, "total timeout for batch processing")
}

func runBatch(cmd *cobra.Command, args []string) error {
	files := make([]string, 0, len(args))
	for _, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", a, err)
		}
		files = append(files, abs)
	}
	if listFile != "" {
		listed, err := worker.ReadPathsFromFile(listFile)
		if err != nil {
			return fmt.Errorf("read list: %w", err)
		}
		files = append(files, listed...)
	}
	if len(files) == 0 {
		return fmt.Errorf("no documents given (pass files or --list)")
	}
	slices.Sort(files)
	files = slices.Compact(files)

	workers := concurrency
	if workers <= 0 {
		workers = cfg.Batch.Workers
	}

	ctx, cancel := commandContext(batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Evidentia Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Documents:    %d\n", len(files))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Data root:    %s\n", cfg.DataRoot)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	p, err := newProcessor()
	if err != nil {
		return err
	}

	processor := worker.NewBatchProcessor(p, workers)
	results := processor.ProcessDocuments(ctx, files)

	successCount := 0
	failureCount := 0
	stepErrors := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		successCount++
		stepErrors += result.StepErrors()
		if n := result.StepErrors(); n > 0 {
			fmt.Fprintf(os.Stderr, "~ %s (%d step errors)\n", result.Path, n)
			continue
		}
		fmt.Fprintf(os.Stderr, "✓ %s\n", result.Path)
	}

	fmt.Fprintf(os.Stderr, "\n⚙️  Updating global state...\n")
	run, err := p.UpdateGlobalState(ctx, "")
	if err != nil {
		return fmt.Errorf("update global state: %w", err)
	}
	printRun(cfg.DataRoot, run)

	// Summary
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:        %d documents\n", len(files))
	fmt.Fprintf(os.Stderr, "  Processed:    %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:     %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Skipped:      %d\n", len(files)-len(results))
	fmt.Fprintf(os.Stderr, "  Step errors:  %d\n", stepErrors)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}
