package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prefpack/prefpack/internal/config"
	"github.com/prefpack/prefpack/internal/dist"
	"github.com/prefpack/prefpack/internal/metrics"
	"github.com/prefpack/prefpack/internal/writer"
	"github.com/prefpack/prefpack/pkg/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const pairRow = `{"prompt":[{"role":"user","content":"What is two plus two?"}],"chosen":[{"role":"assistant","content":"Four."}],"rejected":[{"role":"assistant","content":"Five."}]}`

func writeInput(t *testing.T, rows int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.jsonl")
	lines := make([]string, rows)
	for i := range lines {
		lines[i] = pairRow
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(inputPath string, pack bool) *config.Config {
	return &config.Config{
		Dataset: config.DatasetConfig{DataFiles: []string{inputPath}},
		Tokenize: config.TokenizeConfig{
			Encoding:  "cl100k_base",
			MaxLength: 512,
			IsDPO:     true,
			NumProc:   2,
			ChunkSize: 2,
		},
		Pack: config.PackConfig{
			UseVarlenAttn:   pack,
			MaxPackedLength: 2048,
		},
	}
}

func runPipeline(t *testing.T, cfg *config.Config) (*Pipeline, *writer.SessionManager) {
	t.Helper()
	logger := discardLogger()
	sm, err := writer.NewSessionManager(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}

	p := New(cfg, dist.SingleProcess{}, sm, logger, metrics.NewCollector(logger))
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return p, sm
}

func TestPipelinePacked(t *testing.T) {
	const rows = 6
	cfg := testConfig(writeInput(t, rows), true)
	p, sm := runPipeline(t, cfg)

	stats := p.GetStats()
	if stats.TotalExamples != rows || stats.TokenizedPairs != rows {
		t.Errorf("stats = %+v, want %d examples tokenized", stats, rows)
	}
	if stats.Bins < 1 {
		t.Error("no bins produced")
	}
	if stats.DroppedOversize != 0 {
		t.Errorf("dropped %d pairs unexpectedly", stats.DroppedOversize)
	}

	file, err := os.Open(sm.PackedPath())
	if err != nil {
		t.Fatalf("open packed output: %v", err)
	}
	defer file.Close()

	binCount := 0
	subSeqs := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		binCount++
		var batch models.PackedBatch
		if err := json.Unmarshal(scanner.Bytes(), &batch); err != nil {
			t.Fatalf("bin %d: %v", binCount, err)
		}
		if len(batch.InputIDs) == 0 || len(batch.InputIDs) > cfg.Pack.MaxPackedLength {
			t.Errorf("bin %d has %d tokens, capacity %d", binCount, len(batch.InputIDs), cfg.Pack.MaxPackedLength)
		}
		if len(batch.Labels) != len(batch.InputIDs) || len(batch.PositionIDs) != len(batch.InputIDs) {
			t.Errorf("bin %d stream lengths diverge", binCount)
		}
		last := batch.CumulativeLen[len(batch.CumulativeLen)-1]
		if batch.CumulativeLen[0] != 0 || last != len(batch.InputIDs) {
			t.Errorf("bin %d boundaries do not close the stream: %v", binCount, batch.CumulativeLen)
		}
		subSeqs += len(batch.CumulativeLen) - 1
	}
	if binCount != stats.Bins {
		t.Errorf("output has %d bins, stats report %d", binCount, stats.Bins)
	}
	// Two sub-sequences per pair, chosen then rejected.
	if subSeqs != rows*2 {
		t.Errorf("output carries %d sub-sequences, want %d", subSeqs, rows*2)
	}
}

func TestPipelineUnpacked(t *testing.T) {
	const rows = 4
	cfg := testConfig(writeInput(t, rows), false)
	p, sm := runPipeline(t, cfg)

	if p.GetStats().Bins != 0 {
		t.Errorf("unpacked run reports %d bins", p.GetStats().Bins)
	}

	file, err := os.Open(sm.PairsPath())
	if err != nil {
		t.Fatalf("open pairs output: %v", err)
	}
	defer file.Close()

	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines++
		var pair models.TokenizedPair
		if err := json.Unmarshal(scanner.Bytes(), &pair); err != nil {
			t.Fatalf("pair %d: %v", lines, err)
		}
		if len(pair.ChosenLabels) != len(pair.ChosenIDs) {
			t.Errorf("pair %d label stream diverges from ids", lines)
		}
	}
	if lines != rows {
		t.Errorf("output has %d pairs, want %d", lines, rows)
	}
}

func TestPipelineLoadFailure(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "absent.jsonl"), true)
	logger := discardLogger()
	sm, err := writer.NewSessionManager(t.TempDir(), logger)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}

	p := New(cfg, dist.SingleProcess{}, sm, logger, metrics.NewCollector(logger))
	if err := p.Run(context.Background()); err == nil {
		t.Error("expected error for missing input, got nil")
	}
}
