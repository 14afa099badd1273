package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sitclass/internal/model"
	"github.com/ppiankov/sitclass/internal/pipeline"
)

var (
	classifyJSON    bool
	classifyTimeout time.Duration
)

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify <description>...",
	Short: "Classify one or more descriptions",
	Long: `Classify assigns an SITC code to each description given on the command line.

Several descriptions are classified in order and share recent context, the
same way rows of one input file do.

Example:
  sitclass classify "Almendras peladas"
  sitclass classify "Almendras peladas" "Nueces de coco" --json
  sitclass classify "Carbon vegetal" --provider anthropic --model claude-3-5-haiku-20241022`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "print results with attempt traces as JSON")
	classifyCmd.Flags().DurationVar(&classifyTimeout, "timeout", 2*time.Minute, "overall timeout")
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	var results []model.Result
	if len(args) == 1 {
		results = []model.Result{p.ClassifyOne(ctx, args[0])}
	} else {
		results, err = p.ClassifyAll(ctx, args)
		if err != nil {
			return fmt.Errorf("classify: %w", err)
		}
	}

	if classifyJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("encode results: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	for _, r := range results {
		marker := "✓"
		if r.Category.IsUnclassified() {
			marker = "✗"
		}
		fmt.Printf("%s %-8s %s\n", marker, r.Code(), r.Label())
		if len(results) > 1 || verbose {
			fmt.Printf("    %s\n", r.Description)
		}
		if verbose {
			printAttempts(r)
		}
	}
	return nil
}

// printAttempts writes a per-attempt trace to stderr
func printAttempts(r model.Result) {
	for _, a := range r.Attempts {
		fmt.Fprintf(os.Stderr, "    attempt %d (%s):", a.Number+1, a.Stop)
		for _, step := range a.Path {
			fmt.Fprintf(os.Stderr, " %s", step.Code)
		}
		if a.Error != "" {
			fmt.Fprintf(os.Stderr, " error: %s", a.Error)
		}
		fmt.Fprintln(os.Stderr)
	}
	if r.Arbitrated {
		fmt.Fprintf(os.Stderr, "    arbitrated between attempts\n")
	}
}
