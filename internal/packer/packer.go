package packer

import (
	"log/slog"
	"math/rand"
	"sort"

	"github.com/prefpack/prefpack/internal/config"
	"github.com/prefpack/prefpack/internal/metrics"
	"github.com/prefpack/prefpack/pkg/models"
)

// Packer assigns tokenized pairs to capacity-bounded bins.
//
// Grouped pairs are packed first, group by group in sorted (group_id, seq_num)
// order. The current bin carries over across group boundaries when it still
// has capacity; only within-group overflow seals a bin early. Ungrouped pairs
// then top up the open bin and spill into fresh bins under the same greedy
// rule. A pair whose own combined length exceeds the capacity is dropped and
// counted, never split and never retried.
//
// Packing is deterministic for a fixed input order: the group sort is stable
// and the optional pre-pack shuffle of ungrouped pairs uses a seeded source.
type Packer struct {
	maxPackedLength int
	shuffle         bool
	seed            int64
	logger          *slog.Logger
	metrics         *metrics.Collector
}

// New creates a packer from validated pack settings.
func New(cfg config.PackConfig, logger *slog.Logger, collector *metrics.Collector) *Packer {
	return &Packer{
		maxPackedLength: cfg.MaxPackedLength,
		shuffle:         cfg.ShuffleBeforePack,
		seed:            cfg.ShuffleSeed,
		logger:          logger,
		metrics:         collector,
	}
}

// Pack runs one packing pass over the dataset. The input slice is not
// modified; bins are never mutated after the pass completes.
func (p *Packer) Pack(pairs []models.TokenizedPair) *PackedDataset {
	grouped, ungrouped := partition(pairs)

	sort.SliceStable(grouped, func(i, j int) bool {
		if grouped[i].GroupID != grouped[j].GroupID {
			return grouped[i].GroupID < grouped[j].GroupID
		}
		return grouped[i].SeqNum < grouped[j].SeqNum
	})

	if p.shuffle {
		rng := rand.New(rand.NewSource(p.seed))
		rng.Shuffle(len(ungrouped), func(i, j int) {
			ungrouped[i], ungrouped[j] = ungrouped[j], ungrouped[i]
		})
	}

	ds := &PackedDataset{
		maxPackedLength: p.maxPackedLength,
		groupedPairs:    len(grouped),
		ungroupedPairs:  len(ungrouped),
	}

	var bin []models.TokenizedPair
	binLen := 0

	seal := func() {
		if len(bin) == 0 {
			return
		}
		ds.bins = append(ds.bins, models.Bin{Pairs: bin, SeqLen: binLen})
		p.metrics.RecordBin(binLen, p.maxPackedLength)
		bin, binLen = nil, 0
	}

	place := func(pair models.TokenizedPair) {
		curLen := pair.Len()
		if curLen > p.maxPackedLength {
			ds.dropped++
			p.metrics.RecordDroppedPair()
			p.logger.Warn("Dropping oversize pair",
				"pair_len", curLen,
				"max_packed_length", p.maxPackedLength,
				"group_id", pair.GroupID)
			return
		}
		if binLen+curLen > p.maxPackedLength && len(bin) > 0 {
			seal()
		}
		bin = append(bin, pair)
		binLen += curLen
	}

	// Grouped pass. The scan stops at each group boundary, but the open bin
	// is intentionally not sealed there: the next group's leading pairs may
	// still fit its leftover capacity.
	for i := 0; i < len(grouped); {
		groupID := grouped[i].GroupID
		for ; i < len(grouped) && grouped[i].GroupID == groupID; i++ {
			place(grouped[i])
		}
	}

	// Ungrouped fill: leftover capacity of the open bin first, fresh bins
	// after, skipping individually-oversize pairs.
	for _, pair := range ungrouped {
		place(pair)
	}
	seal()

	p.logger.Info("Packed dataset",
		"pairs", len(pairs),
		"grouped", len(grouped),
		"ungrouped", len(ungrouped),
		"bins", len(ds.bins),
		"dropped_oversize", ds.dropped,
		"max_packed_length", p.maxPackedLength)

	return ds
}

// partition splits pairs into grouped and ungrouped sets, preserving input
// order in both.
func partition(pairs []models.TokenizedPair) (grouped, ungrouped []models.TokenizedPair) {
	for _, pair := range pairs {
		if pair.Grouped {
			grouped = append(grouped, pair)
		} else {
			ungrouped = append(ungrouped, pair)
		}
	}
	return grouped, ungrouped
}
