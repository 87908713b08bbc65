package dataset_test

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/born-ml/han/internal/dataset"
	"github.com/born-ml/han/internal/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const corpus = `{"text": "A great film. Loved it!", "label": 1}

{"text": "Dull and slow.", "label": 0}
{"text": "great great great", "label": 1}
`

func TestReadJSONL(t *testing.T) {
	examples, err := dataset.ReadJSONL(strings.NewReader(corpus))
	require.NoError(t, err)
	require.Len(t, examples, 3)
	assert.Equal(t, "Dull and slow.", examples[1].Text)
	assert.Equal(t, float32(1), examples[2].Label)
	assert.Equal(t, []string{"A great film. Loved it!", "Dull and slow.", "great great great"}, dataset.Texts(examples))
}

func TestReadJSONL_Errors(t *testing.T) {
	_, err := dataset.ReadJSONL(strings.NewReader(`{"text": "x", "label": 2}`))
	require.ErrorIs(t, err, dataset.ErrInvalidLabel)

	_, err = dataset.ReadJSONL(strings.NewReader("{not json}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"punctuation", "One. Two! Three?", []string{"One.", "Two!", "Three?"}},
		{"decimal stays", "It cost 3.50 dollars. Cheap.", []string{"It cost 3.50 dollars.", "Cheap."}},
		{"newlines", "first line\nsecond line", []string{"first line", "second line"}},
		{"ellipsis", "Wait... what", []string{"Wait...", "what"}},
		{"blank", "  \n ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dataset.SplitSentences(tt.text))
		})
	}
}

func newVocab() *tokenizer.WordVocab {
	return tokenizer.BuildWordVocab([]string{"a great film loved it dull and slow great"}, tokenizer.VocabOptions{})
}

func TestEncoder_Grid(t *testing.T) {
	v := newVocab()
	enc := &dataset.Encoder{Tokenizer: v, MaxSentences: 3, MaxSeq: 2}

	ids, err := enc.Encode("A great film. Loved it!")
	require.NoError(t, err)
	assert.Equal(t, []int32{
		v.ID("a"), v.ID("great"), // "film" truncated
		v.ID("loved"), v.ID("it"),
		0, 0, // missing sentence
	}, ids)
}

func TestEncoder_SingleSentence(t *testing.T) {
	v := newVocab()
	enc := &dataset.Encoder{Tokenizer: v, MaxSentences: 1, MaxSeq: 6}

	ids, err := enc.Encode("Dull. And slow")
	require.NoError(t, err)
	assert.Equal(t, []int32{v.ID("dull"), v.ID("and"), v.ID("slow"), 0, 0, 0}, ids)

	_, err = (&dataset.Encoder{Tokenizer: v}).Encode("x")
	require.ErrorIs(t, err, dataset.ErrInvalidEncoder)
}

func TestDataset_Batches(t *testing.T) {
	examples, err := dataset.ReadJSONL(strings.NewReader(corpus))
	require.NoError(t, err)

	enc := &dataset.Encoder{Tokenizer: newVocab(), MaxSentences: 2, MaxSeq: 3}
	ds, err := dataset.New(examples, enc)
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())

	batches := ds.Batches(2, false, nil)
	require.Len(t, batches, 2)
	assert.Equal(t, 2, batches[0].Size)
	assert.Len(t, batches[0].Indices, 2*6)
	assert.Equal(t, []float32{1, 0}, batches[0].Labels)
	assert.Equal(t, 1, batches[1].Size)

	all := ds.All()
	assert.Equal(t, 3, all.Size)
	assert.Equal(t, batches[0].Indices, all.Indices[:12])

	shuffled := ds.Batches(0, true, rand.New(rand.NewSource(3)))
	require.Len(t, shuffled, 1)
	assert.ElementsMatch(t, all.Labels, shuffled[0].Labels)
}

func TestLoadEmbeddings(t *testing.T) {
	v := tokenizer.BuildWordVocab([]string{"good bad good"}, tokenizer.VocabOptions{})
	vectors := "2 3\ngood 1 2 3\nmissing 9 9 9\n\n"

	matrix, found, err := dataset.LoadEmbeddings(strings.NewReader(vectors), v, 3, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, 1, found)
	require.Len(t, matrix, v.VocabSize()*3)

	assert.Equal(t, []float32{0, 0, 0}, matrix[0:3])
	good := int(v.ID("good"))
	assert.Equal(t, []float32{1, 2, 3}, matrix[good*3:good*3+3])
	bad := int(v.ID("bad"))
	for _, x := range matrix[bad*3 : bad*3+3] {
		assert.LessOrEqual(t, x, float32(0.05))
		assert.GreaterOrEqual(t, x, float32(-0.05))
	}

	_, _, err = dataset.LoadEmbeddings(strings.NewReader("good 1 2\n"), v, 3, rand.New(rand.NewSource(1)))
	require.ErrorIs(t, err, dataset.ErrEmbeddingDim)
}
