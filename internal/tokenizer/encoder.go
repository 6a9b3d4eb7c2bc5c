package tokenizer

// Encoder is the external text-encoder collaborator. Implementations must be
// safe for concurrent use: tokenization workers share a single Encoder.
type Encoder interface {
	// Encode converts text to token ids.
	Encode(text string) []int
	// EOSToken returns the end-of-sequence marker used by the chat template.
	EOSToken() string
}
