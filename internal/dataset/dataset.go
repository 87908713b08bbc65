// Package dataset reads labelled documents and encodes them into the padded
// (sentences, words) id grids the classifier consumes.
package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
)

// Dataset errors.
var (
	ErrInvalidLabel = errors.New("label must be 0 or 1")
	ErrEmptyText    = errors.New("empty text")
)

// Example is a labelled document.
type Example struct {
	Text  string  `json:"text"`
	Label float32 `json:"label"`
}

// maxLineSize bounds a single JSONL record.
const maxLineSize = 16 * 1024 * 1024

// ReadJSONL decodes one Example per non-blank line.
func ReadJSONL(r io.Reader) ([]Example, error) {
	var examples []Example
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var ex Example
		if err := json.Unmarshal([]byte(raw), &ex); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if ex.Label != 0 && ex.Label != 1 {
			return nil, fmt.Errorf("line %d: %w, got %v", line, ErrInvalidLabel, ex.Label)
		}
		examples = append(examples, ex)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read examples: %w", err)
	}
	return examples, nil
}

// ReadJSONLFile reads examples from path.
func ReadJSONLFile(path string) ([]Example, error) {
	//nolint:gosec // G304: path comes from the caller
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	examples, err := ReadJSONL(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return examples, nil
}

// Texts returns the text of every example.
func Texts(examples []Example) []string {
	out := make([]string, len(examples))
	for i, ex := range examples {
		out[i] = ex.Text
	}
	return out
}

// Dataset holds encoded documents as one flat id slice.
type Dataset struct {
	MaxSentences int
	MaxSeq       int

	ids    []int32
	labels []float32
}

// Batch is a contiguous group of documents.
//
// Indices has Size*MaxSentences*MaxSeq entries in row-major order.
type Batch struct {
	Indices []int32
	Labels  []float32
	Size    int
}

// New encodes every example with enc.
func New(examples []Example, enc *Encoder) (*Dataset, error) {
	ds := &Dataset{
		MaxSentences: enc.MaxSentences,
		MaxSeq:       enc.MaxSeq,
		ids:          make([]int32, 0, len(examples)*enc.DocSize()),
		labels:       make([]float32, 0, len(examples)),
	}
	for i, ex := range examples {
		doc, err := enc.Encode(ex.Text)
		if err != nil {
			return nil, fmt.Errorf("example %d: %w", i, err)
		}
		ds.ids = append(ds.ids, doc...)
		ds.labels = append(ds.labels, ex.Label)
	}
	return ds, nil
}

// Len returns the number of documents.
func (d *Dataset) Len() int {
	return len(d.labels)
}

// All returns the whole dataset as one batch.
func (d *Dataset) All() Batch {
	return Batch{Indices: d.ids, Labels: d.labels, Size: d.Len()}
}

// Batches splits the dataset into batches of at most size documents. With
// shuffle set, documents are permuted with rng first.
func (d *Dataset) Batches(size int, shuffle bool, rng *rand.Rand) []Batch {
	n := d.Len()
	if size <= 0 || size > n {
		size = n
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if shuffle {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	docSize := d.MaxSentences * d.MaxSeq
	batches := make([]Batch, 0, (n+size-1)/max(size, 1))
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		b := Batch{
			Indices: make([]int32, 0, (end-start)*docSize),
			Labels:  make([]float32, 0, end-start),
			Size:    end - start,
		}
		for _, idx := range order[start:end] {
			b.Indices = append(b.Indices, d.ids[idx*docSize:(idx+1)*docSize]...)
			b.Labels = append(b.Labels, d.labels[idx])
		}
		batches = append(batches, b)
	}
	return batches
}
