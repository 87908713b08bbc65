package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// idRange is the number of ids each encoding produces, special tokens
// included. tiktoken-go does not expose the size of an encoding.
var idRange = map[string]int{
	"cl100k_base": 100277,
	"p50k_base":   50281,
	"r50k_base":   50281,
}

const defaultIDRange = 100000

// TikToken encodes documents with an OpenAI BPE encoding. Every id is
// shifted up by one so that 0 stays the padding id, as in WordVocab.
type TikToken struct {
	enc  *tiktoken.Tiktoken
	name string
}

// NewTikToken loads the named encoding, e.g. "cl100k_base". The first load
// may download the ranks file.
func NewTikToken(name string) (*TikToken, error) {
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: tiktoken encoding %q: %w", name, err)
	}
	return &TikToken{enc: enc, name: name}, nil
}

func (t *TikToken) Encode(text string) ([]int32, error) {
	raw := t.enc.Encode(text, nil, nil)
	ids := make([]int32, len(raw))
	for i, id := range raw {
		ids[i] = int32(id + 1) //nolint:gosec // G115: encoding ids are far below 2^31
	}
	return ids, nil
}

// Decode drops padding and rejects ids outside the encoding.
func (t *TikToken) Decode(ids []int32) (string, error) {
	raw := make([]int, 0, len(ids))
	size := t.VocabSize()
	for _, id := range ids {
		switch {
		case id == PadID:
		case id < 0 || int(id) >= size:
			return "", fmt.Errorf("tokenizer: id %d out of range [0, %d)", id, size)
		default:
			raw = append(raw, int(id)-1)
		}
	}
	return t.enc.Decode(raw), nil
}

// VocabSize counts the padding id too.
func (t *TikToken) VocabSize() int {
	n, ok := idRange[t.name]
	if !ok {
		n = defaultIDRange
	}
	return n + 1
}

func (t *TikToken) PadToken() int32 { return PadID }

// UnkToken is -1: byte fallback means no text is unknown.
func (t *TikToken) UnkToken() int32 { return -1 }

// Name is the encoding name.
func (t *TikToken) Name() string { return t.name }
