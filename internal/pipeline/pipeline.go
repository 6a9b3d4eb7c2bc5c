package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prefpack/prefpack/internal/config"
	"github.com/prefpack/prefpack/internal/dataset"
	"github.com/prefpack/prefpack/internal/dist"
	"github.com/prefpack/prefpack/internal/metrics"
	"github.com/prefpack/prefpack/internal/packer"
	"github.com/prefpack/prefpack/internal/runner"
	"github.com/prefpack/prefpack/internal/tokenizer"
	"github.com/prefpack/prefpack/internal/writer"
	"github.com/prefpack/prefpack/pkg/models"
)

// Prepared is the broadcastable product of dataset preparation. Exactly one
// of Bins/Pairs is populated, depending on whether packing is enabled.
type Prepared struct {
	Bins    []models.Bin
	Pairs   []models.TokenizedPair
	Dropped int
}

// Pipeline manages the whole preparation flow: load, tokenize in parallel,
// pack, and emit. Construction happens once on rank 0 and is distributed
// through the gate; with a single-process communicator the gate is a
// passthrough.
type Pipeline struct {
	cfg        *config.Config
	comm       dist.Communicator
	sessionMgr *writer.SessionManager
	logger     *slog.Logger
	metrics    *metrics.Collector
	stats      *models.PackStats
}

// New creates a pipeline
func New(
	cfg *config.Config,
	comm dist.Communicator,
	sessionMgr *writer.SessionManager,
	logger *slog.Logger,
	collector *metrics.Collector,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		comm:       comm,
		sessionMgr: sessionMgr,
		logger:     logger,
		metrics:    collector,
		stats:      &models.PackStats{StartTime: time.Now()},
	}
}

// Run executes the complete preparation pipeline
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("Starting preparation pipeline",
		"mode", string(p.cfg.Mode()),
		"pack", p.cfg.Pack.UseVarlenAttn,
		"rank", p.comm.Rank(),
		"world_size", p.comm.WorldSize())

	gate := dist.NewGate(p.comm, p.logger)
	prepared, err := dist.Materialize(ctx, gate, func() (Prepared, error) {
		return p.build(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to prepare dataset: %w", err)
	}

	// Only the source rank persists output; the other participants hold
	// their broadcast copy in memory.
	if p.comm.Rank() == 0 {
		if err := p.write(prepared); err != nil {
			return err
		}
	}

	p.stats.EndTime = time.Now()
	p.stats.TotalDuration = p.stats.EndTime.Sub(p.stats.StartTime)

	p.logger.Info("Preparation pipeline completed",
		"examples", p.stats.TotalExamples,
		"pairs", p.stats.TokenizedPairs,
		"grouped", p.stats.GroupedPairs,
		"ungrouped", p.stats.UngroupedPairs,
		"bins", p.stats.Bins,
		"dropped_oversize", p.stats.DroppedOversize,
		"duration", p.stats.TotalDuration)

	if p.stats.DroppedOversize > 0 {
		p.logger.Warn("Oversize pairs were excluded from packing",
			"dropped", p.stats.DroppedOversize,
			"max_packed_length", p.cfg.Pack.MaxPackedLength)
	}
	return nil
}

// build runs on rank 0 only: load rows, tokenize with the worker pool, and
// pack when varlen attention is enabled.
func (p *Pipeline) build(ctx context.Context) (Prepared, error) {
	examples, err := dataset.Load(p.cfg.Dataset, p.logger)
	if err != nil {
		return Prepared{}, fmt.Errorf("failed to load dataset: %w", err)
	}
	p.stats.TotalExamples = len(examples)

	enc, err := tokenizer.NewBPEEncoder(p.cfg.Tokenize.Encoding)
	if err != nil {
		return Prepared{}, err
	}
	pairTok, err := tokenizer.NewPairTokenizer(enc, p.cfg.Tokenize.MaxLength, p.cfg.Mode(), p.cfg.Tokenize.RewardTokenID)
	if err != nil {
		return Prepared{}, err
	}

	run := runner.New(p.cfg.Tokenize.NumProc, p.cfg.Tokenize.ChunkSize, string(p.cfg.Mode()), p.logger, p.metrics)
	pairs, err := run.Run(ctx, examples, pairTok.Tokenize)
	if err != nil {
		return Prepared{}, err
	}
	p.stats.TokenizedPairs = len(pairs)

	if !p.cfg.Pack.UseVarlenAttn {
		p.stats.UngroupedPairs = len(pairs)
		return Prepared{Pairs: pairs}, nil
	}

	pk := packer.New(p.cfg.Pack, p.logger, p.metrics)
	packed := pk.Pack(pairs)

	p.stats.GroupedPairs = packed.GroupedPairs()
	p.stats.UngroupedPairs = packed.UngroupedPairs()
	p.stats.Bins = packed.Len()
	p.stats.DroppedOversize = packed.Dropped()

	bins := make([]models.Bin, packed.Len())
	for i := range bins {
		bins[i] = *packed.Bin(i)
	}
	return Prepared{Bins: bins, Dropped: packed.Dropped()}, nil
}

func (p *Pipeline) write(prepared Prepared) error {
	var path string
	if p.cfg.Pack.UseVarlenAttn {
		path = p.sessionMgr.PackedPath()
	} else {
		path = p.sessionMgr.PairsPath()
	}

	dw, err := writer.NewDatasetWriter(path, p.logger)
	if err != nil {
		return fmt.Errorf("failed to create dataset writer: %w", err)
	}
	defer func() {
		if err := dw.Close(); err != nil {
			p.logger.Error("Failed to close dataset writer", "error", err)
		}
	}()

	if p.cfg.Pack.UseVarlenAttn {
		for i := range prepared.Bins {
			if err := dw.WritePacked(prepared.Bins[i].Materialize()); err != nil {
				return fmt.Errorf("failed to write bin %d: %w", i, err)
			}
		}
		return nil
	}

	for i := range prepared.Pairs {
		if err := dw.WritePair(prepared.Pairs[i]); err != nil {
			return fmt.Errorf("failed to write pair %d: %w", i, err)
		}
	}
	return nil
}

// GetStats returns the session statistics
func (p *Pipeline) GetStats() *models.PackStats {
	return p.stats
}
