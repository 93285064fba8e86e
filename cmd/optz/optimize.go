package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/zoobzio/optz"
	"github.com/zoobzio/optz/internal/config"
)

var (
	optimizeFormat            string
	optimizeOutDir            string
	optimizeWorkers           int
	optimizeStrengthReduction bool
	optimizeBudget            time.Duration
	optimizeMaxBytes          int
	optimizeVerbose           bool

	optimizeCmd = &cobra.Command{
		Use:   "optimize [files...]",
		Short: "Optimize source files",
		Long: `Optimize one or more C or C++ source files.

With no arguments, or with "-", the source is read from stdin.
Files are processed concurrently; the report lists them in argument order.

Defaults come from OPTZ_* environment variables; flags override them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(cmd, args)
		},
	}
)

func init() {
	d := config.Default()
	optimizeCmd.Flags().StringVarP(&optimizeFormat, "format", "f", FormatText, "Report format: text, json, or yaml")
	optimizeCmd.Flags().StringVarP(&optimizeOutDir, "out", "o", "", "Write optimized sources into this directory")
	optimizeCmd.Flags().IntVarP(&optimizeWorkers, "workers", "w", d.Pipeline.Workers, "Files optimized at once")
	optimizeCmd.Flags().BoolVar(&optimizeStrengthReduction, "strength-reduction", d.Pipeline.StrengthReduction, "Append the strength reduction pass")
	optimizeCmd.Flags().DurationVar(&optimizeBudget, "budget", d.Pipeline.Budget, "Time budget per file (0 disables)")
	optimizeCmd.Flags().IntVar(&optimizeMaxBytes, "max-bytes", d.Pipeline.MaxInputBytes, "Size budget per file (0 disables)")
	optimizeCmd.Flags().BoolVarP(&optimizeVerbose, "verbose", "v", false, "Log pass progress and diagnostics")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	if _, err := renderer(optimizeFormat); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyOptimizeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	logCfg := cfg.Logging
	if optimizeVerbose {
		logCfg.Level = "debug"
	}
	logger, err := buildLogger(logCfg)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	names, inputs, err := readInputs(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	p := buildPipeline(cfg.Pipeline)
	defer p.Close()
	if optimizeVerbose {
		_ = p.OnPassComplete(func(_ context.Context, e optz.PipelineEvent) error { //nolint:errcheck
			logger.Pass(e)
			return nil
		})
	}

	results := p.OptimizeBatch(cmd.Context(), cfg.Pipeline.Workers, inputs)

	reports := make([]Report, len(results))
	failed := 0
	for i, r := range results {
		reports[i] = Report{File: names[i], Result: r.Result}
		if r.Err != nil {
			reports[i].Error = r.Err.Error()
			failed++
			continue
		}
		if optimizeVerbose {
			logger.Diagnostics(r.Result)
		}
		if optimizeOutDir != "" {
			if err := writeOutput(optimizeOutDir, names[i], r.Result.Code); err != nil {
				return err
			}
		}
	}

	if err := Render(cmd.OutOrStdout(), optimizeFormat, reports); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d input(s) failed", failed, len(inputs))
	}
	return nil
}

// applyOptimizeFlags overrides environment settings with flags the user set.
func applyOptimizeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Pipeline.Workers = optimizeWorkers
	}
	if flags.Changed("strength-reduction") {
		cfg.Pipeline.StrengthReduction = optimizeStrengthReduction
	}
	if flags.Changed("budget") {
		cfg.Pipeline.Budget = optimizeBudget
	}
	if flags.Changed("max-bytes") {
		cfg.Pipeline.MaxInputBytes = optimizeMaxBytes
	}
}

// readInputs loads every named file, or stdin when none are named.
func readInputs(stdin io.Reader, args []string) (names, inputs []string, err error) {
	if len(args) == 0 {
		args = []string{"-"}
	}
	for _, name := range args {
		var raw []byte
		if name == "-" {
			raw, err = io.ReadAll(stdin)
		} else {
			raw, err = os.ReadFile(name)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		names = append(names, name)
		inputs = append(inputs, string(raw))
	}
	return names, inputs, nil
}

// writeOutput stores code under dir, keeping the input's base name.
func writeOutput(dir, name, code string) error {
	base := filepath.Base(name)
	if name == "-" {
		base = "stdin.c"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, base)
	if err := os.WriteFile(path, []byte(code), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
