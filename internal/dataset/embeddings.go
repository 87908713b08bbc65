package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/born-ml/han/internal/tokenizer"
)

// ErrEmbeddingDim is returned when a vector line has the wrong width.
var ErrEmbeddingDim = errors.New("embedding dimension mismatch")

// LoadEmbeddings reads GloVe-style text vectors ("word v1 v2 ... vDim" per
// line) into a row-major [vocab.VocabSize(), dim] matrix.
//
// The padding row is zero. Words of vocab without a vector are drawn from
// U(-0.05, 0.05). Vectors for words outside vocab are ignored. A leading
// word2vec header line ("count dim") is skipped. found counts the rows
// filled from r.
func LoadEmbeddings(r io.Reader, vocab *tokenizer.WordVocab, dim int, rng *rand.Rand) (matrix []float32, found int, err error) {
	rows := vocab.VocabSize()
	matrix = make([]float32, rows*dim)
	filled := make([]bool, rows)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || (line == 1 && len(fields) == 2) {
			continue
		}
		if len(fields) != dim+1 {
			return nil, 0, fmt.Errorf("line %d: %w: want %d values, got %d", line, ErrEmbeddingDim, dim, len(fields)-1)
		}

		id := vocab.ID(fields[0])
		if id == tokenizer.UnkID && fields[0] != tokenizer.UnkWord {
			continue
		}
		if id == tokenizer.PadID || filled[id] {
			continue
		}
		row := matrix[int(id)*dim : (int(id)+1)*dim]
		for j, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 32)
			if err != nil {
				return nil, 0, fmt.Errorf("line %d: %w", line, err)
			}
			row[j] = float32(v)
		}
		filled[id] = true
		found++
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read embeddings: %w", err)
	}

	for id := 1; id < rows; id++ {
		if filled[id] {
			continue
		}
		for j := id * dim; j < (id+1)*dim; j++ {
			matrix[j] = float32(rng.Float64()*0.1 - 0.05)
		}
	}
	return matrix, found, nil
}

// LoadEmbeddingsFile is LoadEmbeddings over a file.
func LoadEmbeddingsFile(path string, vocab *tokenizer.WordVocab, dim int, rng *rand.Rand) ([]float32, int, error) {
	//nolint:gosec // G304: path comes from the caller
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open embeddings: %w", err)
	}
	defer f.Close()
	return LoadEmbeddings(f, vocab, dim, rng)
}
