package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const eosToken = "<|endoftext|>"

func init() {
	// Use embedded dictionaries so encoding lookup never touches the network.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// BPEEncoder wraps OpenAI's tiktoken BPE tokenization.
type BPEEncoder struct {
	tiktoken *tiktoken.Tiktoken
}

// NewBPEEncoder creates a BPE encoder for the named tiktoken encoding
// (cl100k_base, o200k_base, p50k_base, r50k_base).
func NewBPEEncoder(encoding string) (*BPEEncoder, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}

	tk, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding %q: %w", encoding, err)
	}

	return &BPEEncoder{tiktoken: tk}, nil
}

// Encode converts text to token ids. Special tokens are allowed so the
// rendered eos marker encodes to its reserved id rather than being split.
func (e *BPEEncoder) Encode(text string) []int {
	if text == "" {
		return nil
	}
	return e.tiktoken.Encode(text, []string{"all"}, nil)
}

// EOSToken returns the end-of-sequence marker string.
func (e *BPEEncoder) EOSToken() string {
	return eosToken
}
