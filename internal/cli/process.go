package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/paths"
	"github.com/ppiankov/evidentia/internal/processing"
)

var (
	deriveRoot     bool
	processTimeout time.Duration
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Process one document already placed in the data root",
	Long: `Process runs one document through the per-document pipeline and then
rebuilds the global state:

- transcribe or copy its text (text.txt)
- extract entities (entities.json)
- collect person and context relations (evidence.json)
- rebuild signals, global evidence, knowledge and organization clusters

The document must live in <data root>/YYYY/MM/. Step failures are recorded
in the document's processing.json and do not stop the run.

Example:
  evidentia process ~/.evidentia/data/2025/03/record0001.m4a
  evidentia process ./data/2025/03/notes.txt --derive-root`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Copy a document into the data root and process it",
	Long: `Ingest copies a document to the next free recordNNNN slot of the current
month (data/YYYY/MM/recordNNNN.<ext>) and processes it.

Example:
  evidentia ingest ~/Downloads/meeting.m4a`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Rebuild signals, global evidence, knowledge and clusters",
	Long: `Update runs only the global pipeline over every document in the data root.
Its run record is written to <data root>/processing.json.`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(updateCmd)

	processCmd.Flags().BoolVar(&deriveRoot, "derive-root", false, "use the directory two levels above the file as data root")
	for _, c := range []*cobra.Command{processCmd, ingestCmd, updateCmd} {
		c.Flags().DurationVar(&processTimeout, "timeout", 30*time.Minute, "overall processing timeout")
	}
}

func runProcess(cmd *cobra.Command, args []string) error {
	source, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve %s: %w", args[0], err)
	}
	if deriveRoot {
		root, err := paths.DataRootFromBase(filepath.Dir(source))
		if err != nil {
			return err
		}
		cfg.DataRoot = root
	}

	ctx, cancel := commandContext(processTimeout)
	defer cancel()

	p, err := newProcessor()
	if err != nil {
		return err
	}

	run, err := p.ProcessFile(ctx, source)
	if err != nil {
		return fmt.Errorf("process %s: %w", args[0], err)
	}

	printRun(filepath.Base(source), run)
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(processTimeout)
	defer cancel()

	p, err := newProcessor()
	if err != nil {
		return err
	}

	dest, run, err := p.Ingest(ctx, args[0], time.Now())
	if err != nil {
		return fmt.Errorf("ingest %s: %w", args[0], err)
	}

	fmt.Fprintf(os.Stderr, "✓ Stored as %s\n", dest)
	printRun(filepath.Base(dest), run)
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(processTimeout)
	defer cancel()

	p, err := newProcessor()
	if err != nil {
		return err
	}

	run, err := p.UpdateGlobalState(ctx, "")
	if err != nil {
		return fmt.Errorf("update global state: %w", err)
	}
	printRun(cfg.DataRoot, run)
	return nil
}

func newProcessor() (*processing.Processor, error) {
	return processing.New(cfg, logger)
}

// commandContext is cancelled on SIGINT/SIGTERM or after timeout
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// printRun reports the step outcomes of a run record on stderr
func printRun(name string, run *model.RunRecord) {
	if run == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  %s (doc %s)\n", name, run.DocID)
	for _, step := range sortedSteps(run) {
		outcome := run.Steps[step]
		mark := "✓"
		if outcome.Status == model.StepError {
			mark = "✗"
		}
		fmt.Fprintf(os.Stderr, "    %s %s\n", mark, step)
	}
	for _, e := range run.Errors {
		fmt.Fprintf(os.Stderr, "    ! %s\n", e)
	}
	fmt.Fprintf(os.Stderr, "\n")
}

// sortedSteps orders steps by finished_at, which is execution order
func sortedSteps(run *model.RunRecord) []string {
	finished := func(name string) time.Time {
		if t := run.Steps[name].FinishedAt; t != nil {
			return *t
		}
		return time.Time{}
	}

	steps := make([]string, 0, len(run.Steps))
	for name := range run.Steps {
		steps = append(steps, name)
	}
	sort.Slice(steps, func(i, j int) bool {
		a, b := finished(steps[i]), finished(steps[j])
		if a.Equal(b) {
			return steps[i] < steps[j]
		}
		return a.Before(b)
	})
	return steps
}
