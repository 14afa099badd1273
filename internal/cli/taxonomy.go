package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sitclass/internal/model"
	"github.com/ppiankov/sitclass/internal/taxonomy"
)

const showExamples = 3

// taxonomyCmd represents the taxonomy command
var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Manage the SITC taxonomy database",
	Long: `Load, browse and inspect the SITC code tree and training examples the
classifier reads from.

The database path comes from --db, SITCLASS_TAXONOMY_DB_PATH or
taxonomy.db_path in the config file.`,
}

var taxonomyLoadCmd = &cobra.Command{
	Use:   "load <seed.yaml>...",
	Short: "Load codes and training examples from YAML seed files",
	Long: `Load inserts codes and training examples from one or more YAML seed files.
Each file is loaded in a single transaction.

Seed format:
  codes:
    - code: "057.7"
      label: Edible nuts, fresh or dried
  examples:
    - text: Almendras peladas
      code: "057.72"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *taxonomy.Store) error {
			for _, path := range args {
				res, err := store.LoadSeedFile(ctx, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "✓ %s: %d codes, %d examples\n", path, res.Codes, res.Examples)
			}
			return nil
		})
	},
}

var taxonomyShowCmd = &cobra.Command{
	Use:   "show [code]",
	Short: "List the children of a code with sample training examples",
	Long: `Show lists the direct children of a code, or the top-level sections when no
code is given, each with up to three training examples.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *taxonomy.Store) error {
			parent := ""
			level := 1
			if len(args) == 1 {
				node, err := store.Lookup(ctx, model.NormalizeCode(args[0]))
				if errors.Is(err, taxonomy.ErrNotFound) {
					return fmt.Errorf("unknown code %q", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Printf("%s  %s (level %d)\n\n", node.Code, node.Label, node.Level)
				parent = node.Code
				level = node.Level + 1
			}

			if level > model.MaxLevel {
				fmt.Println("  (deepest level, no children)")
				return nil
			}

			children, err := store.Children(ctx, level, parent)
			if err != nil {
				return err
			}
			if len(children) == 0 {
				fmt.Println("  (no children)")
				return nil
			}

			for _, c := range children {
				fmt.Printf("  %-8s %s\n", c.Code, c.Label)
				examples, err := store.ExamplesFor(ctx, c.Code, showExamples)
				if err != nil {
					return err
				}
				for _, ex := range examples {
					fmt.Printf("             e.g. %s\n", ex)
				}
			}
			return nil
		})
	},
}

var taxonomyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show code and training example counts per level",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *taxonomy.Store) error {
			codes, examples, err := store.Stats(ctx)
			if err != nil {
				return err
			}

			levels := make(map[int]struct{})
			for l := range codes {
				levels[l] = struct{}{}
			}
			for l := range examples {
				levels[l] = struct{}{}
			}
			sorted := make([]int, 0, len(levels))
			for l := range levels {
				sorted = append(sorted, l)
			}
			sort.Ints(sorted)

			fmt.Printf("Taxonomy: %s\n\n", cfg.Taxonomy.DBPath)
			fmt.Printf("  %-6s %8s %10s\n", "Level", "Codes", "Examples")
			var totalCodes, totalExamples int
			for _, l := range sorted {
				fmt.Printf("  %-6d %8d %10d\n", l, codes[l], examples[l])
				totalCodes += codes[l]
				totalExamples += examples[l]
			}
			fmt.Printf("  %-6s %8d %10d\n", "Total", totalCodes, totalExamples)
			return nil
		})
	},
}

// withStore opens the configured taxonomy database for the duration of fn
func withStore(fn func(ctx context.Context, store *taxonomy.Store) error) error {
	store, err := taxonomy.Open(cfg.Taxonomy.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return fn(context.Background(), store)
}

func init() {
	rootCmd.AddCommand(taxonomyCmd)
	taxonomyCmd.AddCommand(taxonomyLoadCmd)
	taxonomyCmd.AddCommand(taxonomyShowCmd)
	taxonomyCmd.AddCommand(taxonomyStatsCmd)
}
