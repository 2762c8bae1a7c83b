package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/evidentia/internal/model"
	"github.com/ppiankov/evidentia/internal/review"
	"github.com/ppiankov/evidentia/internal/store"
)

var todosJSON bool

// confirmCmd represents the confirm command
var confirmCmd = &cobra.Command{
	Use:   "confirm <knowledge-id>",
	Short: "Approve a candidate knowledge record",
	Long: `Confirm approves a knowledge record. A user confirmation is added to the
global evidence and the knowledge builder re-runs, so the record ends up
approved with full confidence. Approved records are never downgraded.

Example:
  evidentia confirm "person:jane doe|associated_with|acme"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := reviewService().Confirm(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("confirm: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Approved %s (confidence %.2f)\n", rec.ID, rec.Confidence)
		return nil
	},
}

// ignoreCmd represents the ignore command
var ignoreCmd = &cobra.Command{
	Use:   "ignore <knowledge-id>",
	Short: "Deprecate a knowledge record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := reviewService().Ignore(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("ignore: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Deprecated %s\n", rec.ID)
		return nil
	},
}

// todosCmd represents the todos command
var todosCmd = &cobra.Command{
	Use:   "todos",
	Short: "List candidate knowledge records awaiting a decision",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		todos, err := reviewService().Todos()
		if err != nil {
			return fmt.Errorf("todos: %w", err)
		}
		if todosJSON {
			return printJSON(todos)
		}

		if len(todos) == 0 {
			fmt.Println("No open todos.")
			return nil
		}
		for _, t := range todos {
			source := "-"
			if t.SourceDocument != nil {
				source = *t.SourceDocument
			}
			fmt.Printf("%s  %.2f  %-12s  %s\n", t.Date.Format("2006-01-02"), t.Confidence, source, t.Title)
			fmt.Printf("    id: %s\n", t.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(ignoreCmd)
	rootCmd.AddCommand(todosCmd)

	todosCmd.Flags().BoolVar(&todosJSON, "json", false, "print todos as JSON")
}

func reviewService() *review.Service {
	return &review.Service{
		DataRoot:         cfg.DataRoot,
		StickyDeprecated: cfg.Knowledge.StickyDeprecated,
		Lock:             dataRootLock(cfg),
		Logger:           logger,
	}
}

func dataRootLock(c *model.Config) review.LockFunc {
	return func(ctx context.Context) (store.Unlock, error) {
		if !c.Lock.Enabled {
			return store.NoopUnlock, nil
		}
		return store.LockDataRoot(ctx, c.DataRoot, c.Lock.Timeout)
	}
}
