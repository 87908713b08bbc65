package tokenizer

import (
	"errors"
	"fmt"
)

// Kinds accepted by New.
const (
	KindWord     = "word"
	KindTikToken = "tiktoken"
)

// ErrUnknownKind is returned by New for an unsupported tokenizer kind.
var ErrUnknownKind = errors.New("unknown tokenizer kind")

// Tokenizer is the core interface for text tokenization.
//
// All tokenizer implementations must implement this interface.
type Tokenizer interface {
	// Encode converts text to token IDs.
	Encode(text string) ([]int32, error)

	// Decode converts token IDs back to text.
	Decode(tokens []int32) (string, error)

	// VocabSize returns the total vocabulary size, padding included.
	VocabSize() int

	// PadToken returns the padding token ID.
	PadToken() int32

	// UnkToken returns the unknown token ID.
	// Returns -1 if not applicable.
	UnkToken() int32
}

// New opens a tokenizer of the given kind. For KindWord, source is a
// vocabulary file path; for KindTikToken it is an encoding name such as
// "cl100k_base".
func New(kind, source string) (Tokenizer, error) {
	switch kind {
	case "", KindWord:
		return LoadWordVocabFile(source)
	case KindTikToken:
		return NewTikToken(source)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
