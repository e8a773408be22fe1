package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/photosphere/tree-diff-go/lib"
	"github.com/spf13/cobra"
)

const (
	ExitNoDifferences = 0
	ExitDifferences   = 1
	ExitFatal         = 2
	ExitNonFatal      = 3
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitFatal)
	}
}

var configPath string
var scanWorkers int
var compareWorkers int
var compareMode string
var hashThreshold int
var chunkSize int
var dirBatchSize int
var outputFormat string
var excludePatterns []string
var quiet bool
var noEstimate bool

var rootCmd = &cobra.Command{
	Use:   "treediff <left-dir> <right-dir>",
	Short: "Progressive diff of two directory trees",
	Long:  "Compare two directory trees into a single merged difference tree. Left dir and right dir are required positional arguments; results stream in as the trees are scanned.",
	Args:  cobra.MatchAll(cobra.ArbitraryArgs, requireZeroOrTwoArgs),
	RunE:  runCompare,
}

var browseCmd = &cobra.Command{
	Use:   "browse <left-dir> <right-dir>",
	Short: "Explore the differences interactively while they are computed",
	Args:  cobra.ExactArgs(2),
	RunE:  runBrowse,
}

func init() {
	defaults := lib.DefaultConfig()
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (missing file means defaults)")
	rootCmd.PersistentFlags().IntVar(&scanWorkers, "scan-workers", defaults.ScanWorkers, "Number of worker goroutines listing directories")
	rootCmd.PersistentFlags().IntVar(&compareWorkers, "compare-workers", defaults.CompareWorkers, "Number of worker goroutines comparing file pairs")
	rootCmd.PersistentFlags().StringVar(&compareMode, "mode", defaults.CompareMode, "Content comparison mode: bytes, xxhash")
	rootCmd.PersistentFlags().IntVar(&hashThreshold, "threshold", defaults.HashThreshold, "Size threshold in bytes: files smaller are read in full to hash, larger are streamed")
	rootCmd.PersistentFlags().IntVar(&chunkSize, "chunk-size", defaults.ChunkSize, "Read size in bytes for content comparison")
	rootCmd.PersistentFlags().IntVar(&dirBatchSize, "dir-batch-size", defaults.DirBatchSize, "Batch size for directory reads (entries per syscall)")
	rootCmd.PersistentFlags().StringArrayVar(&excludePatterns, "exclude", nil, "Glob pattern to skip (repeatable; patterns with a slash match the relative path)")
	rootCmd.Flags().StringVar(&outputFormat, "format", "text", "Output format: text, table, json, yaml")
	rootCmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress progress and final error-log message (for scripting)")
	rootCmd.Flags().BoolVar(&noEstimate, "no-estimate", false, "Skip the background walk that sizes the progress display")
	rootCmd.AddCommand(browseCmd)
}

func requireZeroOrTwoArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 || len(args) == 2 {
		return nil
	}
	return fmt.Errorf("requires 0 or 2 arguments, got %d", len(args))
}

// loadCLIConfig layers the three sources: built-in defaults, then the YAML
// file, then any flag the user set explicitly.
func loadCLIConfig(cmd *cobra.Command) (lib.Config, error) {
	cfg, err := lib.LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("scan-workers") {
		cfg.ScanWorkers = scanWorkers
	}
	if flags.Changed("compare-workers") {
		cfg.CompareWorkers = compareWorkers
	}
	if flags.Changed("mode") {
		cfg.CompareMode = compareMode
	}
	if flags.Changed("threshold") {
		cfg.HashThreshold = hashThreshold
	}
	if flags.Changed("chunk-size") {
		cfg.ChunkSize = chunkSize
	}
	if flags.Changed("dir-batch-size") {
		cfg.DirBatchSize = dirBatchSize
	}
	if flags.Changed("exclude") {
		cfg.Exclude = append(cfg.Exclude, excludePatterns...)
	}
	return cfg, nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		cmd.SetOut(os.Stdout)
		return cmd.Usage()
	}
	left, right := args[0], args[1]
	cfg, err := loadCLIConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(ExitFatal)
	}
	logger, err := lib.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(ExitFatal)
	}
	defer logger.Close()
	if !quiet {
		defer logger.PrintLogPaths()
	}
	logger.Infof("started comparison of %v and %v", left, right)

	engine, err := lib.New(left, right, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(ExitFatal)
	}

	showProgress := !quiet && lib.IsTTY(os.Stderr)
	var est *lib.Estimate
	if showProgress && !noEstimate {
		est = lib.EstimateTotals(left, right, cfg.ScanWorkers, cfg.Exclude)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(ExitFatal)
	}
	progressDoneCh := make(chan struct{})
	if showProgress {
		go progressLoop(engine, est, progressDoneCh)
	}
	waitErr := engine.Wait(ctx)
	close(progressDoneCh)
	engine.Cancel()
	if showProgress {
		fmt.Fprintln(os.Stderr, "")
	}
	interrupted := waitErr != nil
	if interrupted && !quiet {
		fmt.Fprintln(os.Stderr, "interrupted; results below are partial")
	}

	summary := engine.Summarize()
	if !quiet {
		printSummary(summary, engine.Progress(), engine.Utilization().UtilizedPercentWholeRun())
	}
	diffs := lib.CollectDifferences(engine.Tree())
	switch outputFormat {
	case "table":
		lib.FormatTable(diffs, os.Stdout)
	case "json":
		lib.FormatJSON(diffs, os.Stdout)
	case "yaml":
		lib.FormatYAML(diffs, os.Stdout)
	default:
		lib.FormatTextTree(diffs, os.Stdout)
	}

	code := exitCodeFor(interrupted, logger.NonFatalCount(), summary)
	if code == ExitNonFatal && !quiet {
		fmt.Fprintln(os.Stderr, "Errors occurred; check the error log for details.")
	}
	if code != ExitNoDifferences {
		os.Exit(code)
	}
	return nil
}

// exitCodeFor maps a finished run to its process exit code. Interruption is
// fatal; recorded errors or unreadable paths outrank plain differences.
func exitCodeFor(interrupted bool, nonFatalErrors int, summary lib.Summary) int {
	switch {
	case interrupted:
		return ExitFatal
	case nonFatalErrors > 0 || summary.Inaccessible > 0:
		return ExitNonFatal
	case summary.Differences() > 0:
		return ExitDifferences
	}
	return ExitNoDifferences
}

func printSummary(summary lib.Summary, progress lib.Progress, utilized int) {
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintf(os.Stderr, "Summary:\n")
	fmt.Fprintf(os.Stderr, "  Directories scanned:     %d\n", progress.DirsScanned)
	fmt.Fprintf(os.Stderr, "  Files compared:          %d\n", progress.FilesCompared)
	fmt.Fprintf(os.Stderr, "  Bytes compared:          %s\n", humanize.Bytes(uint64(progress.BytesCompared)))
	fmt.Fprintf(os.Stderr, "  Identical:               %d\n", summary.Identical)
	fmt.Fprintf(os.Stderr, "  Only on left:            %d\n", summary.OnlyLeft)
	fmt.Fprintf(os.Stderr, "  Only on right:           %d\n", summary.OnlyRight)
	fmt.Fprintf(os.Stderr, "  Content different:       %d\n", summary.ContentDifferent)
	fmt.Fprintf(os.Stderr, "  Dirs containing changes: %d\n", summary.ContainsDifference)
	fmt.Fprintf(os.Stderr, "  Unreadable:              %d\n", summary.Inaccessible)
	fmt.Fprintf(os.Stderr, "  Workers utilized:        %d%%\n", utilized)
	fmt.Fprintf(os.Stderr, "  Total time:              %s\n", progress.Elapsed.Round(time.Millisecond))
}

func estimateRemainingFromElapsed(elapsed time.Duration, processed, pending int64) time.Duration {
	if processed <= 0 || pending <= 0 {
		return 0
	}
	averagePerTask := elapsed / time.Duration(processed)
	return averagePerTask * time.Duration(pending)
}

func progressLoop(engine *lib.Engine, est *lib.Estimate, doneCh <-chan struct{}) {
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-doneCh:
			return
		case <-tick.C:
			progress := engine.Progress()
			if progress.Enqueued == 0 && progress.Processed == 0 {
				continue
			}
			utilized := engine.Utilization().Tick()
			totalTasks := int64(0)
			if est != nil && est.Done() {
				totalTasks = est.ApproxTasks()
			}
			if totalTasks > 0 {
				pending := totalTasks - progress.Processed
				if pending < 0 {
					pending = 0
				}
				remaining := estimateRemainingFromElapsed(progress.Elapsed, progress.Processed, pending)
				if remaining > 0 {
					fmt.Fprintf(os.Stderr, "\rcomparing: %d of ~%d, ~%s remaining, %d%% utilized   ", progress.Processed, totalTasks, remaining.Round(time.Second), utilized)
				} else {
					fmt.Fprintf(os.Stderr, "\rcomparing: %d of ~%d, %d%% utilized   ", progress.Processed, totalTasks, utilized)
				}
			} else {
				queuedScans, queuedCompares := engine.PendingTasks()
				fmt.Fprintf(os.Stderr, "\rscanned %d dirs, compared %d files, %d queued, %d%% utilized   ", progress.DirsScanned, progress.FilesCompared, queuedScans+queuedCompares, utilized)
			}
		}
	}
}
