package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/sitclass/internal/pipeline"
	"github.com/ppiankov/sitclass/internal/worker"
)

var (
	batchList    string
	batchTimeout time.Duration
	batchQuiet   bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file|dir>...",
	Short: "Classify every description in one or more input files",
	Long: `Batch classifies descriptions from input files:
- CSV files are read through their Description (or Descriptions) column
- Any other file is read one description per line
- Directories expand to the .csv and .txt files they contain
- Rows of one file are classified in order and share recent context
- Several files can be processed in parallel with --concurrency

Results are written to <name>_classified.<format> in the output directory
(default: next to each input).

Example:
  sitclass batch imports.csv
  sitclass batch ./monthly --concurrency 4 --output-dir ./classified
  sitclass batch --list inputs.lst --format jsonl`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	flags := batchCmd.Flags()
	flags.StringVar(&batchList, "list", "", "file listing input paths, one per line")
	flags.DurationVar(&batchTimeout, "timeout", 0, "total timeout for batch processing (0 = none)")
	flags.BoolVarP(&batchQuiet, "quiet", "q", false, "suppress per-description progress")

	flags.String("output-dir", "", "output directory (default: next to each input)")
	flags.String("format", "", "output format (csv, json, jsonl)")
	flags.Int("concurrency", 0, "number of files processed in parallel")
	flags.Int("batch-size", 0, "descriptions per recent-context batch")

	_ = viper.BindPFlag("output.dir", flags.Lookup("output-dir"))
	_ = viper.BindPFlag("output.format", flags.Lookup("format"))
	_ = viper.BindPFlag("concurrency.workers", flags.Lookup("concurrency"))
	_ = viper.BindPFlag("classifier.batch_size", flags.Lookup("batch-size"))
}

func runBatch(cmd *cobra.Command, args []string) error {
	if batchList != "" {
		listed, err := worker.ReadInputsFromFile(batchList)
		if err != nil {
			return fmt.Errorf("read input list: %w", err)
		}
		args = append(args, listed...)
	}
	if len(args) == 0 {
		return fmt.Errorf("no input files given")
	}

	inputs, err := worker.ExpandInputs(args)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no .csv or .txt inputs found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if batchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, batchTimeout)
		defer cancel()
	}

	outDir := cfg.Output.Dir
	workers := cfg.Concurrency.Workers
	if workers <= 0 {
		workers = 1
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  sitclass Batch Classification\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Inputs:       %d file(s)\n", len(inputs))
	fmt.Fprintf(os.Stderr, "  Model:        %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Fprintf(os.Stderr, "  Taxonomy:     %s\n", cfg.Taxonomy.DBPath)
	fmt.Fprintf(os.Stderr, "  Attempts:     %d (max depth %d)\n", cfg.Classifier.Attempts, cfg.Classifier.MaxDepth)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Format:       %s\n", cfg.Output.Format)
	if outDir != "" {
		fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outDir)
	}
	fmt.Fprintf(os.Stderr, "  Cache:        %v\n", cfg.Cache.Enabled)
	fmt.Fprintf(os.Stderr, "\n")

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()
	if !batchQuiet {
		p.Progress = os.Stderr
	}

	start := time.Now()
	results := worker.NewBatchProcessor(p.ForDir(outDir), workers).ProcessFiles(ctx, inputs)

	var total, unclassified, arbitrated, failures int
	fmt.Fprintf(os.Stderr, "\n")
	for _, res := range results {
		if res.Error != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", res.Path, res.Error)
			continue
		}
		s := res.Summary
		total += s.Total
		unclassified += s.Unclassified
		arbitrated += s.Arbitrated
		fmt.Fprintf(os.Stderr, "✓ %s → %s (%d/%d classified)\n", s.Input, s.Output, s.Classified(), s.Total)
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Files:         %d (%d failed)\n", len(results), failures)
	fmt.Fprintf(os.Stderr, "  Descriptions:  %d\n", total)
	fmt.Fprintf(os.Stderr, "  Unclassified:  %d\n", unclassified)
	fmt.Fprintf(os.Stderr, "  Arbitrated:    %d\n", arbitrated)
	fmt.Fprintf(os.Stderr, "  Elapsed:       %v\n", time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "\n")

	if failures > 0 {
		return fmt.Errorf("%d of %d files failed", failures, len(results))
	}
	return nil
}
