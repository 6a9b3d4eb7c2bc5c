package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/prefpack/prefpack/internal/config"
	"github.com/prefpack/prefpack/internal/dist"
	"github.com/prefpack/prefpack/internal/metrics"
	"github.com/prefpack/prefpack/internal/pipeline"
	"github.com/prefpack/prefpack/internal/writer"
	"github.com/prefpack/prefpack/pkg/models"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	outputDir  string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "prefpack",
		Short: "PrefPack - Preference-pair dataset packer",
		Long: `PrefPack prepares paired chosen/rejected conversational examples for
preference-optimization and reward-model training: it tokenizes rows in
parallel and packs them into length-bounded bins that respect group
ordering, emitting the position ids and cumulative sequence boundaries
required by variable-length attention.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the dataset preparation pipeline",
		Long: `Run the complete preparation pipeline:
1. Load JSONL preference rows (optionally through a registered map function)
2. Tokenize chosen/rejected continuations with a parallel worker pool
3. Pack tokenized pairs into capacity-bounded, group-ordered bins
4. Write packed batches (or unpacked pairs) to the session directory`,
		RunE: runPreparation,
	}

	runCmd.Flags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	runCmd.Flags().StringVar(&outputDir, "output-dir", "output", "Directory for session output")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	inspectCmd := &cobra.Command{
		Use:   "inspect <packed.jsonl>",
		Short: "Inspect a packed output file",
		Long:  "Display bin counts and length distribution for a packed dataset file",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectPacked,
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runPreparation(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	sessionMgr, err := writer.NewSessionManager(outputDir, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	logger, logFile, err := writer.SetupLogger(sessionMgr, logLevel)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer func() {
		if logFile != nil {
			_ = logFile.Sync()
			_ = logFile.Close()
		}
	}()

	logger.Info("PrefPack starting",
		"version", Version,
		"config", configPath,
		"session_dir", sessionMgr.SessionDir())

	if err := sessionMgr.BackupConfig(configPath); err != nil {
		return fmt.Errorf("failed to backup config: %w", err)
	}

	collector := metrics.NewCollector(logger)
	pipe := pipeline.New(cfg, dist.SingleProcess{}, sessionMgr, logger, collector)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pipe.Run(ctx); err != nil {
		return fmt.Errorf("preparation failed: %w", err)
	}

	stats := pipe.GetStats()
	logger.Info("Preparation complete",
		"examples", stats.TotalExamples,
		"pairs", stats.TokenizedPairs,
		"bins", stats.Bins,
		"dropped_oversize", stats.DroppedOversize,
		"duration", stats.TotalDuration,
		"session_dir", sessionMgr.SessionDir())
	return nil
}

// inspectPacked summarizes a packed output file
func inspectPacked(cmd *cobra.Command, args []string) error {
	path := args[0]

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open packed file: %w", err)
	}
	defer file.Close()

	var (
		bins     int
		segments int
		total    int
		minLen   = -1
		maxLen   int
	)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 256*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var batch models.PackedBatch
		if err := json.Unmarshal(line, &batch); err != nil {
			return fmt.Errorf("line %d: invalid packed batch: %w", bins+1, err)
		}

		last := 0
		if n := len(batch.CumulativeLen); n > 0 {
			last = batch.CumulativeLen[n-1]
		}
		if last != len(batch.InputIDs) {
			return fmt.Errorf("line %d: cumulative_len does not close the token stream (%d != %d)",
				bins+1, last, len(batch.InputIDs))
		}

		bins++
		segments += len(batch.CumulativeLen) - 1
		total += len(batch.InputIDs)
		if minLen < 0 || len(batch.InputIDs) < minLen {
			minLen = len(batch.InputIDs)
		}
		if len(batch.InputIDs) > maxLen {
			maxLen = len(batch.InputIDs)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan packed file: %w", err)
	}

	if bins == 0 {
		fmt.Println("No packed batches found.")
		return nil
	}

	fmt.Printf("Packed dataset: %s\n", path)
	fmt.Printf("  Bins:            %d\n", bins)
	fmt.Printf("  Sub-sequences:   %d\n", segments)
	fmt.Printf("  Total tokens:    %d\n", total)
	fmt.Printf("  Bin length:      min %d / avg %.1f / max %d\n",
		minLen, float64(total)/float64(bins), maxLen)
	return nil
}
