package models

// Materialize flattens the bin into the streams consumed by packed attention.
// Position ids restart at 0 for every sub-sequence (chosen, then rejected, per
// pair) so each logical sequence attends as if it were independent.
// CumulativeLen starts at 0 and gains two entries per pair, one boundary per
// sub-sequence.
func (b *Bin) Materialize() PackedBatch {
	batch := PackedBatch{
		InputIDs:      make([]int, 0, b.SeqLen),
		Labels:        make([]int, 0, b.SeqLen),
		PositionIDs:   make([]int, 0, b.SeqLen),
		CumulativeLen: make([]int, 1, 2*len(b.Pairs)+1),
	}

	appendSeq := func(ids, labels []int) {
		batch.InputIDs = append(batch.InputIDs, ids...)
		batch.Labels = append(batch.Labels, labels...)
		for pos := range ids {
			batch.PositionIDs = append(batch.PositionIDs, pos)
		}
		last := batch.CumulativeLen[len(batch.CumulativeLen)-1]
		batch.CumulativeLen = append(batch.CumulativeLen, last+len(ids))
	}

	for i := range b.Pairs {
		pair := &b.Pairs[i]
		appendSeq(pair.ChosenIDs, pair.ChosenLabels)
		appendSeq(pair.RejectedIDs, pair.RejectedLabels)
	}
	return batch
}

// UnpackSeq splits a packed stream back into its sub-sequences using the
// cumulative boundaries recorded at pack time.
func UnpackSeq(seq []int, cumulativeLen []int) [][]int {
	if len(cumulativeLen) < 2 {
		return nil
	}
	subseqs := make([][]int, 0, len(cumulativeLen)-1)
	for i := 1; i < len(cumulativeLen); i++ {
		subseqs = append(subseqs, seq[cumulativeLen[i-1]:cumulativeLen[i]])
	}
	return subseqs
}
