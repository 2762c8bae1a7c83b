package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/evidentia/internal/cache"
	"github.com/ppiankov/evidentia/internal/query"
)

var (
	queryJSON  bool
	signalsTop int
	noCache    bool
)

// overviewCmd represents the overview command
var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Show approved persons, organizations, events and relations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ov, err := queryReader().Overview()
		if err != nil {
			return fmt.Errorf("overview: %w", err)
		}
		if queryJSON {
			return printJSON(ov)
		}

		printList("Persons", ov.Persons)
		printList("Organizations", ov.Organizations)
		printList("Events", ov.Events)
		fmt.Println("Relations:")
		for _, r := range ov.Relations {
			fmt.Printf("  %s %s %s (%.2f)\n", r.Subject, r.Predicate, r.Object, r.Confidence)
		}
		return nil
	},
}

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the knowledge graph as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := queryReader().Graph()
		if err != nil {
			return fmt.Errorf("graph: %w", err)
		}
		return printJSON(g)
	},
}

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List processed documents, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := queryReader().Sessions()
		if err != nil {
			return fmt.Errorf("sessions: %w", err)
		}
		if queryJSON {
			return printJSON(sessions)
		}

		for _, s := range sessions {
			fmt.Printf("%s  %s  %s\n", s.Date.Format("2006-01-02 15:04"), s.ID, s.Title)
			if len(s.Entities) > 0 {
				values := make([]string, 0, len(s.Entities))
				for _, e := range s.Entities {
					values = append(values, e.Type+":"+e.Value)
				}
				fmt.Printf("    %s\n", strings.Join(values, ", "))
			}
		}
		return nil
	},
}

// signalsCmd represents the signals command
var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Show the most frequent entities across all documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		signals, err := queryReader().Signals(signalsTop)
		if err != nil {
			return fmt.Errorf("signals: %w", err)
		}
		if queryJSON {
			return printJSON(signals)
		}

		for i, s := range signals {
			fmt.Printf("%3d. %-40s %-14s %d docs\n", i+1, s.Value, s.Type, s.Count)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{overviewCmd, graphCmd, sessionsCmd, signalsCmd} {
		rootCmd.AddCommand(c)
		c.Flags().BoolVar(&noCache, "no-cache", false, "disable the query cache")
	}
	for _, c := range []*cobra.Command{overviewCmd, sessionsCmd, signalsCmd} {
		c.Flags().BoolVar(&queryJSON, "json", false, "print as JSON")
	}
	signalsCmd.Flags().IntVar(&signalsTop, "top", 20, "number of signals to show (0 for all)")
}

func queryReader() *query.Reader {
	var c cache.Cache
	if cfg.Cache.Enabled && !noCache {
		c = cache.NewLayeredCache(cfg.Cache.TTL, cfg.Cache.Dir, cfg.Cache.TTL)
	}
	return query.NewReader(cfg.DataRoot, c, cfg.Cache.TTL, logger)
}

func printList(title string, values []string) {
	fmt.Printf("%s:\n", title)
	for _, v := range values {
		fmt.Printf("  %s\n", v)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
