package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zoobzio/optz"
	"github.com/zoobzio/optz/internal/config"
	"github.com/zoobzio/optz/internal/logging"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "optz",
		Short: "Heuristic source-to-source optimizer for C and C++ snippets",
		Long: `optz rewrites C and C++ source text through an ordered set of
heuristic passes: constant folding, loop summation, dead code removal,
heap-to-stack conversion, inlining, unrolling, common subexpression
elimination, and loop-invariant hoisting.

Optimize files from the command line or serve the pipeline over HTTP.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Add commands
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(passesCmd)
}

var passesCmd = &cobra.Command{
	Use:   "passes",
	Short: "List the optimization passes",
	Long:  "Display the passes in execution order, followed by opt-in passes.",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Default passes:")
		fmt.Fprintln(out)
		for i, p := range optz.DefaultPasses() {
			fmt.Fprintf(out, "  %d. %-26s %s\n", i+1, p.Name(), p.Insight())
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Opt-in passes:")
		fmt.Fprintln(out)
		sr := optz.StrengthReducer()
		fmt.Fprintf(out, "     %-26s %s\n", sr.Name(), sr.Insight())
	},
}

// buildPipeline turns pipeline settings into a ready pipeline.
func buildPipeline(cfg config.PipelineConfig) *optz.Pipeline {
	passes := optz.DefaultPasses()
	if cfg.StrengthReduction {
		passes = append(passes, optz.StrengthReducer())
	}
	return optz.NewPipeline(optz.PipelineName, passes...).
		WithMaxInputBytes(cfg.MaxInputBytes).
		WithBudget(cfg.Budget)
}

// buildLogger turns logging settings into a logger.
func buildLogger(cfg config.LogConfig) (*logging.Logger, error) {
	base := logging.DefaultConfig()
	if cfg.Development {
		base = logging.DevelopmentConfig()
	}
	if cfg.Level != "" {
		base.Level = cfg.Level
	}
	logger, err := logging.New(base)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
