package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/paramsearch/internal/search"
	"github.com/GoSim-25-26J-441/paramsearch/pkg/config"
	"github.com/GoSim-25-26J-441/paramsearch/pkg/logger"
	"github.com/GoSim-25-26J-441/paramsearch/pkg/utils"
)

// Exit codes
const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	exitPartial = 3
)

type options struct {
	configPath  string
	logLevel    string
	asJSON      bool
	printConfig bool
	progress    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts options
	code := exitOK

	rootCmd := &cobra.Command{
		Use:           "paramsearch",
		Short:         "Exhaustively search a 4-axis integer space for the output closest to a target",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code = runSearch(cmd.Context(), opts, stdout, stderr)
			return nil
		},
	}
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to search config YAML (default: built-in APLL search)")
	rootCmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")
	rootCmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the full report as JSON")
	rootCmd.Flags().BoolVar(&opts.printConfig, "print-config", false, "Print the effective config as YAML and exit")
	rootCmd.Flags().BoolVar(&opts.progress, "progress", false, "Show a shard progress bar on stderr")

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	return code
}

func runSearch(ctx context.Context, opts options, stdout, stderr io.Writer) int {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := config.LoadConfig(opts.configPath)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitUsage
		}
		cfg = loaded
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.printConfig {
		out, err := config.MarshalYAML(cfg)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitFailed
		}
		if _, err := stdout.Write(out); err != nil {
			return exitFailed
		}
		return exitOK
	}

	runID := utils.GenerateRunID()
	logger.SetDefault(logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat, stderr))
	log := logger.ForRun(runID)

	searcher, err := search.FromConfig(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	searcher.WithLogger(log)

	var bar *progressbar.ProgressBar
	if opts.progress {
		bar = progressbar.NewOptions(searcher.Space().ShardCount(cfg.ShardAxis),
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("shards"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("searching"),
			progressbar.OptionClearOnFinish(),
		)
		searcher.WithProgress(func(completed, _ int) {
			// A widening pass starts counting again.
			if completed == 1 {
				bar.Reset()
			}
			_ = bar.Set(completed)
		})
	}

	log.Info("starting search", "points", searcher.Space().Size(), "workers", cfg.Workers)
	report, err := searcher.Run(ctx)
	if bar != nil {
		_ = bar.Finish()
	}

	code := exitOK
	switch {
	case err == nil:
	case errors.Is(err, search.ErrPartialResult):
		code = exitPartial
		for _, f := range report.Failures {
			log.Warn("shard failed", "shard", f.Index, "value", f.Value, "error", f.Err)
		}
	default:
		fmt.Fprintln(stderr, "search failed:", err)
		if report != nil {
			for _, f := range report.Failures {
				log.Warn("shard failed", "shard", f.Index, "value", f.Value, "error", f.Err)
			}
			printFailures(stderr, report)
		}
		return exitFailed
	}

	if opts.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintln(stderr, err)
			return exitFailed
		}
		return code
	}
	printReport(stdout, report, cfg.BaseScale)
	return code
}

func printReport(w io.Writer, r *search.Report, baseScale float64) {
	fmt.Fprintf(w, "base_scale=%.6f target=%.6f\n", baseScale, r.Target)
	p := r.Best.Point()
	for d, name := range r.AxisNames {
		fmt.Fprintf(w, "%s=%d ", name, p[d])
	}
	fmt.Fprintf(w, "output=%.6f distance=%.6f\n", r.Best.Output(), r.Best.Distance())
	if r.Partial() {
		fmt.Fprintf(w, "warning: shards %v failed; result may not be the global best\n", r.FailedShards)
	}
}

// printFailures reports failed shards on a run that found no candidate
func printFailures(w io.Writer, r *search.Report) {
	if !r.Partial() {
		return
	}
	fmt.Fprintf(w, "%d of %d shards failed: %v\n", len(r.FailedShards), r.Shards, r.FailedShards)
}
