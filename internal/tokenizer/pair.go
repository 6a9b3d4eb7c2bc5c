package tokenizer

import (
	"fmt"
	"slices"

	"github.com/prefpack/prefpack/pkg/models"
)

// PairTokenizer converts preference rows into token and label sequences.
// It is a pure function of its input and the encoder state, so a single
// instance is shared across tokenization workers.
type PairTokenizer struct {
	enc           Encoder
	maxLength     int
	mode          models.LabelMode
	rewardTokenID int
}

// NewPairTokenizer validates the mode flags and builds a tokenizer.
func NewPairTokenizer(enc Encoder, maxLength int, mode models.LabelMode, rewardTokenID int) (*PairTokenizer, error) {
	if enc == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if maxLength < 1 {
		return nil, fmt.Errorf("max_length must be at least 1 (got %d)", maxLength)
	}
	switch mode {
	case models.LabelModeDPO:
	case models.LabelModeReward:
		if rewardTokenID <= 0 {
			return nil, fmt.Errorf("reward_token_id must be set in reward mode")
		}
	default:
		return nil, fmt.Errorf("unknown label mode %q", mode)
	}

	return &PairTokenizer{
		enc:           enc,
		maxLength:     maxLength,
		mode:          mode,
		rewardTokenID: rewardTokenID,
	}, nil
}

// Tokenize renders and encodes one preference row. Malformed rows fail with a
// descriptive error rather than being coerced.
func (t *PairTokenizer) Tokenize(ex models.PairExample) (models.TokenizedPair, error) {
	var pair models.TokenizedPair

	if len(ex.Prompt) == 0 {
		return pair, fmt.Errorf("example has no prompt messages")
	}
	if len(ex.Chosen) == 0 {
		return pair, fmt.Errorf("example has no chosen continuation")
	}
	if len(ex.Rejected) == 0 {
		return pair, fmt.Errorf("example has no rejected continuation")
	}

	eos := t.enc.EOSToken()

	// A prompt whose first turn is not user-tagged is treated as
	// pre-rendered text and bypasses the template.
	var promptText string
	if ex.Prompt[0].Role != RoleUser {
		promptText = ex.Prompt[0].Content
	} else {
		rendered, err := renderMessages(ex.Prompt, eos)
		if err != nil {
			return pair, fmt.Errorf("failed to render prompt: %w", err)
		}
		promptText = rendered
	}

	chosenText, err := renderMessages(slices.Concat(ex.Prompt, ex.Chosen), eos)
	if err != nil {
		return pair, fmt.Errorf("failed to render chosen continuation: %w", err)
	}
	rejectedText, err := renderMessages(slices.Concat(ex.Prompt, ex.Rejected), eos)
	if err != nil {
		return pair, fmt.Errorf("failed to render rejected continuation: %w", err)
	}

	promptIDs := t.enc.Encode(promptText)
	chosenIDs := truncate(t.enc.Encode(chosenText), t.maxLength)
	rejectedIDs := truncate(t.enc.Encode(rejectedText), t.maxLength)

	pair = models.TokenizedPair{
		ChosenIDs:   chosenIDs,
		RejectedIDs: rejectedIDs,
		GroupID:     ex.GroupID,
		Grouped:     ex.Grouped,
		SeqNum:      ex.SeqNum,
	}

	if t.mode == models.LabelModeReward {
		// Classification target lives on the appended reward token:
		// class 0 marks chosen, class 1 marks rejected.
		pair.ChosenIDs = append(pair.ChosenIDs, t.rewardTokenID)
		pair.RejectedIDs = append(pair.RejectedIDs, t.rewardTokenID)
		pair.ChosenLabels = terminalLabels(len(pair.ChosenIDs), 0)
		pair.RejectedLabels = terminalLabels(len(pair.RejectedIDs), 1)
	} else {
		promptLen := min(len(promptIDs), t.maxLength)
		pair.ChosenLabels = continuationLabels(pair.ChosenIDs, promptLen)
		pair.RejectedLabels = continuationLabels(pair.RejectedIDs, promptLen)
	}

	return pair, nil
}

func truncate(ids []int, maxLength int) []int {
	if len(ids) > maxLength {
		return ids[:maxLength]
	}
	return ids
}

// terminalLabels ignores every position except the last, which carries the
// class value.
func terminalLabels(length, class int) []int {
	labels := make([]int, length)
	for i := range labels {
		labels[i] = models.IgnoreLabel
	}
	labels[length-1] = class
	return labels
}

// continuationLabels masks the prompt prefix and copies the continuation ids.
// The mask never extends past the (possibly truncated) sequence, keeping the
// label stream the same length as the id stream.
func continuationLabels(ids []int, promptLen int) []int {
	masked := min(promptLen, len(ids))
	labels := make([]int, len(ids))
	for i := 0; i < masked; i++ {
		labels[i] = models.IgnoreLabel
	}
	copy(labels[masked:], ids[masked:])
	return labels
}
