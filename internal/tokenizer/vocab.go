package tokenizer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Reserved ids of a WordVocab.
const (
	PadID int32 = 0
	UnkID int32 = 1

	PadWord = "<pad>"
	UnkWord = "<unk>"
)

// ErrInvalidVocab is returned when a vocabulary file is malformed.
var ErrInvalidVocab = errors.New("invalid vocabulary")

// VocabOptions controls BuildWordVocab.
type VocabOptions struct {
	// MinCount drops words seen fewer times. Values below 1 keep everything.
	MinCount int
	// MaxSize caps the vocabulary, reserved tokens included. 0 means no cap.
	MaxSize int
}

// WordVocab is a word-level vocabulary. Id 0 is padding, id 1 stands for
// every word outside the vocabulary, and the remaining ids are assigned by
// descending corpus frequency with ties broken alphabetically.
type WordVocab struct {
	words []string
	ids   map[string]int32
}

// Words splits text into lower-cased words after NFKC normalization, so
// composed and decomposed spellings, full-width forms and ligatures map to
// the same word. Letters, digits and apostrophes form words; everything else
// separates them.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(norm.NFKC.String(text)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// BuildWordVocab counts the words of texts and keeps the most frequent ones.
func BuildWordVocab(texts []string, opts VocabOptions) *WordVocab {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, w := range Words(text) {
			counts[w]++
		}
	}

	words := make([]string, 0, len(counts))
	for w, c := range counts {
		if c >= opts.MinCount {
			words = append(words, w)
		}
	}
	sort.Slice(words, func(i, j int) bool {
		ci, cj := counts[words[i]], counts[words[j]]
		if ci != cj {
			return ci > cj
		}
		return words[i] < words[j]
	})

	if opts.MaxSize > 0 {
		limit := max(opts.MaxSize-2, 0)
		if len(words) > limit {
			words = words[:limit]
		}
	}
	return newWordVocab(append([]string{PadWord, UnkWord}, words...))
}

func newWordVocab(words []string) *WordVocab {
	ids := make(map[string]int32, len(words))
	for i, w := range words {
		ids[w] = int32(i) //nolint:gosec // vocabularies stay far below 2^31
	}
	return &WordVocab{words: words, ids: ids}
}

// Encode maps each word of text to its id, unknown words to UnkID.
func (v *WordVocab) Encode(text string) ([]int32, error) {
	words := Words(text)
	out := make([]int32, len(words))
	for i, w := range words {
		out[i] = v.ID(w)
	}
	return out, nil
}

// Decode joins the words of tokens with spaces, skipping padding.
func (v *WordVocab) Decode(tokens []int32) (string, error) {
	parts := make([]string, 0, len(tokens))
	for _, id := range tokens {
		if id == PadID {
			continue
		}
		w, ok := v.Word(id)
		if !ok {
			return "", fmt.Errorf("token id %d out of range [0, %d)", id, len(v.words))
		}
		parts = append(parts, w)
	}
	return strings.Join(parts, " "), nil
}

// ID returns the id of word, or UnkID.
func (v *WordVocab) ID(word string) int32 {
	if id, ok := v.ids[word]; ok {
		return id
	}
	return UnkID
}

// Word returns the word with the given id.
func (v *WordVocab) Word(id int32) (string, bool) {
	if id < 0 || int(id) >= len(v.words) {
		return "", false
	}
	return v.words[id], true
}

// VocabSize returns the number of ids, reserved ones included.
func (v *WordVocab) VocabSize() int { return len(v.words) }

// PadToken returns PadID.
func (v *WordVocab) PadToken() int32 { return PadID }

// UnkToken returns UnkID.
func (v *WordVocab) UnkToken() int32 { return UnkID }

// Save writes one token per line in id order.
func (v *WordVocab) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, word := range v.words {
		if _, err := bw.WriteString(word + "\n"); err != nil {
			return fmt.Errorf("failed to write vocabulary: %w", err)
		}
	}
	return bw.Flush()
}

// SaveFile writes the vocabulary to path.
func (v *WordVocab) SaveFile(path string) (err error) {
	//nolint:gosec // G304: path comes from the caller
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create vocabulary file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return v.Save(f)
}

// LoadWordVocab reads a vocabulary written by Save. The first two lines
// must be the padding and unknown tokens.
func LoadWordVocab(r io.Reader) (*WordVocab, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		words = append(words, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	if len(words) < 2 || words[PadID] != PadWord || words[UnkID] != UnkWord {
		return nil, fmt.Errorf("%w: first lines must be %s and %s", ErrInvalidVocab, PadWord, UnkWord)
	}

	v := newWordVocab(words)
	if len(v.ids) != len(words) {
		return nil, fmt.Errorf("%w: duplicate tokens", ErrInvalidVocab)
	}
	return v, nil
}

// LoadWordVocabFile reads a vocabulary file from path.
func LoadWordVocabFile(path string) (*WordVocab, error) {
	//nolint:gosec // G304: path comes from the caller
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary: %w", err)
	}
	defer f.Close()
	return LoadWordVocab(f)
}
