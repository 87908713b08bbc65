package dataset

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/born-ml/han/internal/tokenizer"
)

// ErrInvalidEncoder is returned for non-positive encoder dimensions.
var ErrInvalidEncoder = errors.New("encoder dimensions must be positive")

// Encoder turns a document into a MaxSentences×MaxSeq grid of token ids.
//
// With MaxSentences == 1 the whole text is one sentence. Otherwise the text
// is split by SplitSentences. Sentences and words beyond the limits are
// dropped from the end, and short rows are padded at the end with the
// tokenizer's pad id.
type Encoder struct {
	Tokenizer    tokenizer.Tokenizer
	MaxSentences int
	MaxSeq       int
}

// DocSize returns MaxSentences*MaxSeq.
func (e *Encoder) DocSize() int {
	return e.MaxSentences * e.MaxSeq
}

// Encode returns the flat id grid of text.
func (e *Encoder) Encode(text string) ([]int32, error) {
	if e.MaxSentences <= 0 || e.MaxSeq <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidEncoder, e.MaxSentences, e.MaxSeq)
	}

	sentences := []string{text}
	if e.MaxSentences > 1 {
		sentences = SplitSentences(text)
	}
	if len(sentences) > e.MaxSentences {
		sentences = sentences[:e.MaxSentences]
	}

	pad := e.Tokenizer.PadToken()
	out := make([]int32, e.DocSize())
	if pad != 0 {
		for i := range out {
			out[i] = pad
		}
	}
	for s, sentence := range sentences {
		ids, err := e.Tokenizer.Encode(sentence)
		if err != nil {
			return nil, fmt.Errorf("failed to tokenize sentence %d: %w", s, err)
		}
		if len(ids) > e.MaxSeq {
			ids = ids[:e.MaxSeq]
		}
		copy(out[s*e.MaxSeq:], ids)
	}
	return out, nil
}

// SplitSentences splits text after '.', '!' or '?' runs that are followed
// by whitespace, and at line breaks. Blank sentences are dropped.
func SplitSentences(text string) []string {
	var (
		sentences []string
		current   strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			next := i + 1
			if next == len(runes) || unicode.IsSpace(runes[next]) {
				flush()
			}
		}
	}
	flush()
	return sentences
}
