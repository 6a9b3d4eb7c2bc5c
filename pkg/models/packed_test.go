package models

import (
	"reflect"
	"testing"
)

func TestMaterialize(t *testing.T) {
	bin := Bin{
		Pairs: []TokenizedPair{
			{
				ChosenIDs:      []int{10, 11, 12},
				ChosenLabels:   []int{IgnoreLabel, 11, 12},
				RejectedIDs:    []int{20, 21},
				RejectedLabels: []int{IgnoreLabel, 21},
			},
			{
				ChosenIDs:      []int{30},
				ChosenLabels:   []int{0},
				RejectedIDs:    []int{40, 41},
				RejectedLabels: []int{IgnoreLabel, 1},
			},
		},
		SeqLen: 8,
	}

	batch := bin.Materialize()

	wantInput := []int{10, 11, 12, 20, 21, 30, 40, 41}
	if !reflect.DeepEqual(batch.InputIDs, wantInput) {
		t.Errorf("input ids = %v, want %v", batch.InputIDs, wantInput)
	}

	wantLabels := []int{IgnoreLabel, 11, 12, IgnoreLabel, 21, 0, IgnoreLabel, 1}
	if !reflect.DeepEqual(batch.Labels, wantLabels) {
		t.Errorf("labels = %v, want %v", batch.Labels, wantLabels)
	}

	// Position ids restart at 0 for every sub-sequence.
	wantPos := []int{0, 1, 2, 0, 1, 0, 0, 1}
	if !reflect.DeepEqual(batch.PositionIDs, wantPos) {
		t.Errorf("position ids = %v, want %v", batch.PositionIDs, wantPos)
	}

	// Two boundaries per pair, starting at 0 and closing the stream.
	wantCu := []int{0, 3, 5, 6, 8}
	if !reflect.DeepEqual(batch.CumulativeLen, wantCu) {
		t.Errorf("cumulative len = %v, want %v", batch.CumulativeLen, wantCu)
	}
}

func TestMaterializeInvariants(t *testing.T) {
	bin := Bin{
		Pairs: []TokenizedPair{
			{
				ChosenIDs:      []int{1, 2, 3, 4},
				ChosenLabels:   []int{1, 2, 3, 4},
				RejectedIDs:    []int{5},
				RejectedLabels: []int{5},
			},
		},
		SeqLen: 5,
	}

	batch := bin.Materialize()

	if len(batch.Labels) != len(batch.InputIDs) {
		t.Errorf("labels length %d != input length %d", len(batch.Labels), len(batch.InputIDs))
	}
	if len(batch.PositionIDs) != len(batch.InputIDs) {
		t.Errorf("position ids length %d != input length %d", len(batch.PositionIDs), len(batch.InputIDs))
	}
	if batch.CumulativeLen[0] != 0 {
		t.Errorf("cumulative len starts at %d, want 0", batch.CumulativeLen[0])
	}
	last := batch.CumulativeLen[len(batch.CumulativeLen)-1]
	if last != len(batch.InputIDs) {
		t.Errorf("cumulative len closes at %d, want %d", last, len(batch.InputIDs))
	}
	for i := 1; i < len(batch.CumulativeLen); i++ {
		if batch.CumulativeLen[i] < batch.CumulativeLen[i-1] {
			t.Errorf("cumulative len decreases at %d: %v", i, batch.CumulativeLen)
		}
	}
}

func TestUnpackSeq(t *testing.T) {
	seq := []int{10, 11, 12, 20, 21, 30}
	cu := []int{0, 3, 5, 6}

	got := UnpackSeq(seq, cu)
	want := [][]int{{10, 11, 12}, {20, 21}, {30}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unpacked = %v, want %v", got, want)
	}

	if got := UnpackSeq(nil, []int{0}); got != nil {
		t.Errorf("expected nil for boundary-only input, got %v", got)
	}
}

func TestTokenizedPairLen(t *testing.T) {
	p := TokenizedPair{
		ChosenIDs:   []int{1, 2, 3},
		RejectedIDs: []int{4, 5},
	}
	if got := p.Len(); got != 5 {
		t.Errorf("len = %d, want 5", got)
	}
}
