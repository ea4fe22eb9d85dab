package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/siwzmap/siwzmap/internal/pipeline"
)

var (
	outPath       string
	outFormat     string
	heuristicOnly bool
	timeout       time.Duration
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Process one document into variant groups",
	Long: `Process loads a document, segments it into units, classifies every
unit and aggregates the units into variant groups.

Example:
  siwzmap process siwz.pdf
  siwzmap process siwz.pdf -o result.yaml
  siwzmap process opz.docx --heuristic -o result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVarP(&outPath, "output", "o", "", "output path (default: stdout)")
	processCmd.Flags().StringVar(&outFormat, "format", "", "output format: json or yaml (default: by output extension)")
	processCmd.Flags().BoolVar(&heuristicOnly, "heuristic", false, "classify with keyword heuristics only, no LLM")
	processCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall processing timeout")

	_ = viper.BindPFlag("heuristic_only", processCmd.Flags().Lookup("heuristic"))
}

func runProcess(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	cfg := loadConfig()
	log := newLogger()

	classifier, err := newClassifier(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := pipeline.RunDocument(ctx, cfg, classifier, log, path, data)
	if err != nil {
		return err
	}

	format := outFormat
	if format == "" {
		format = pipeline.FormatForPath(outPath)
	}

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := pipeline.Export(out, result, format); err != nil {
		return err
	}
	if outPath != "" && verbose {
		fmt.Fprintf(os.Stderr, "Wrote %s (%d units, %d groups)\n", outPath, result.Stats.Units, result.Stats.Groups)
	}
	return nil
}
