package packer

import "github.com/prefpack/prefpack/pkg/models"

// PackedDataset is the immutable result of one packing pass. Batches are
// derived lazily: each is a pure function of its bin.
type PackedDataset struct {
	bins            []models.Bin
	maxPackedLength int
	dropped         int
	groupedPairs    int
	ungroupedPairs  int
}

// Len returns the number of bins.
func (d *PackedDataset) Len() int {
	return len(d.bins)
}

// Bin returns the i-th bin.
func (d *PackedDataset) Bin(i int) *models.Bin {
	return &d.bins[i]
}

// Batch materializes the i-th bin into packed-attention streams.
func (d *PackedDataset) Batch(i int) models.PackedBatch {
	return d.bins[i].Materialize()
}

// Lengths returns the recorded sequence length of every bin.
func (d *PackedDataset) Lengths() []int {
	lengths := make([]int, len(d.bins))
	for i := range d.bins {
		lengths[i] = d.bins[i].SeqLen
	}
	return lengths
}

// Dropped returns how many oversize pairs were excluded from packing.
func (d *PackedDataset) Dropped() int {
	return d.dropped
}

// GroupedPairs returns the number of pairs that arrived with a group id.
func (d *PackedDataset) GroupedPairs() int {
	return d.groupedPairs
}

// UngroupedPairs returns the number of pairs that arrived without a group id.
func (d *PackedDataset) UngroupedPairs() int {
	return d.ungroupedPairs
}
