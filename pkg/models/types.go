package models

import "time"

// IgnoreLabel marks a position that is excluded from the loss.
const IgnoreLabel = -100

// LabelMode selects how continuation labels are computed
type LabelMode string

const (
	// LabelModeDPO masks the prompt region and supervises only the continuation tokens
	LabelModeDPO LabelMode = "dpo"
	// LabelModeReward supervises a single terminal classification token appended to each sequence
	LabelModeReward LabelMode = "reward"
)

// Message is a single role-tagged chat turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PairExample is one input row: a shared prompt with a chosen and a rejected
// continuation. Rows that belong to a multi-turn cluster carry a group id and
// a depth (intra-group sequence number).
type PairExample struct {
	Prompt   []Message `json:"prompt"`
	Chosen   []Message `json:"chosen"`
	Rejected []Message `json:"rejected"`

	// Group identity is normalized by the dataset loader: group_id may be a
	// string or a number on the wire, depth maps to SeqNum.
	GroupID string `json:"-"`
	Grouped bool   `json:"-"`
	SeqNum  int    `json:"-"`
}

// TokenizedPair is the immutable result of tokenizing one PairExample.
// Invariant: len(ChosenLabels) == len(ChosenIDs) and
// len(RejectedLabels) == len(RejectedIDs).
type TokenizedPair struct {
	ChosenIDs      []int  `json:"chosen_ids"`
	RejectedIDs    []int  `json:"rejected_ids"`
	ChosenLabels   []int  `json:"chosen_labels"`
	RejectedLabels []int  `json:"rejected_labels"`
	GroupID        string `json:"group_id,omitempty"`
	Grouped        bool   `json:"grouped,omitempty"`
	SeqNum         int    `json:"seq_num,omitempty"`
}

// Len returns the combined token count of both continuations, the unit the
// packer budgets against.
func (p *TokenizedPair) Len() int {
	return len(p.ChosenIDs) + len(p.RejectedIDs)
}

// Bin is one packed training unit. Bins are built once during packing and
// never mutated afterwards.
type Bin struct {
	Pairs  []TokenizedPair `json:"pairs"`
	SeqLen int             `json:"seq_len"`
}

// PackedBatch is the flattened view of a Bin consumed by variable-length
// attention: concatenated token and label streams, per-sub-sequence position
// ids and cumulative segment boundaries.
type PackedBatch struct {
	InputIDs      []int `json:"input_ids"`
	Labels        []int `json:"labels"`
	PositionIDs   []int `json:"position_ids"`
	CumulativeLen []int `json:"cumulative_len"`
}

// PackStats tracks statistics for one packing session
type PackStats struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalExamples   int
	TokenizedPairs  int
	GroupedPairs    int
	UngroupedPairs  int
	Bins            int
	DroppedOversize int
	TotalDuration   time.Duration
}
