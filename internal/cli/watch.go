package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/evidentia/internal/watch"
)

var watchDebounce time.Duration

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the global state whenever extraction output changes",
	Long: `Watch monitors every record directory below the data root. When an
entities.json or evidence.json file changes, the global pipeline re-runs
once the directory has been quiet for the debounce interval.

Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newProcessor()
		if err != nil {
			return err
		}

		w, err := watch.New(cfg.DataRoot, watchDebounce, func(ctx context.Context) error {
			run, err := p.UpdateGlobalState(ctx, "")
			printRun(cfg.DataRoot, run)
			return err
		}, logger)
		if err != nil {
			return err
		}

		ctx, cancel := commandContext(0)
		defer cancel()

		fmt.Fprintf(os.Stderr, "Watching %s (Ctrl+C to stop)\n", cfg.DataRoot)
		if err := w.Run(ctx); err != nil {
			return fmt.Errorf("watch: %w", err)
		}

		stats := w.Stats()
		fmt.Fprintf(os.Stderr, "Stopped after %d updates (%d errors)\n", stats.Updates, stats.Errors)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", time.Second, "quiet period before an update runs")
}
