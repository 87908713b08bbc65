package tokenizer

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"it's", "a", "great", "movie", "10", "10"}, Words("It's a GREAT movie... 10/10!"))
	assert.Empty(t, Words(" ,.; "))
}

func TestWords_Normalization(t *testing.T) {
	assert.Equal(t, Words("caf\u00e9"), Words("cafe\u0301"))
	assert.Equal(t, []string{"good", "fine"}, Words("\uff27\uff2f\uff2f\uff24 \ufb01ne"))
}

func TestBuildWordVocab(t *testing.T) {
	texts := []string{
		"the movie was good",
		"the movie was bad",
		"the end",
	}
	v := BuildWordVocab(texts, VocabOptions{})

	// the:3, movie:2, was:2, bad:1, end:1, good:1
	want := []string{PadWord, UnkWord, "the", "movie", "was", "bad", "end", "good"}
	require.Equal(t, len(want), v.VocabSize())
	for i, w := range want {
		got, ok := v.Word(int32(i))
		require.True(t, ok)
		assert.Equal(t, w, got)
	}

	ids, err := v.Encode("The movie was unseen")
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 3, 4, UnkID}, ids)
}

func TestBuildWordVocab_Limits(t *testing.T) {
	texts := []string{"a a a b b c"}

	v := BuildWordVocab(texts, VocabOptions{MinCount: 2})
	assert.Equal(t, 4, v.VocabSize())
	assert.Equal(t, UnkID, v.ID("c"))

	v = BuildWordVocab(texts, VocabOptions{MaxSize: 3})
	assert.Equal(t, 3, v.VocabSize())
	assert.Equal(t, int32(2), v.ID("a"))
	assert.Equal(t, UnkID, v.ID("b"))
}

func TestWordVocab_Decode(t *testing.T) {
	v := BuildWordVocab([]string{"good film"}, VocabOptions{})
	text, err := v.Decode([]int32{v.ID("good"), v.ID("film"), PadID, PadID})
	require.NoError(t, err)
	assert.Equal(t, "good film", text)

	_, err = v.Decode([]int32{99})
	assert.Error(t, err)
}

func TestWordVocab_SaveLoad(t *testing.T) {
	v := BuildWordVocab([]string{"one two two three three three"}, VocabOptions{})

	var buf bytes.Buffer
	require.NoError(t, v.Save(&buf))
	assert.Equal(t, "<pad>\n<unk>\nthree\ntwo\none\n", buf.String())

	loaded, err := LoadWordVocab(&buf)
	require.NoError(t, err)
	assert.Equal(t, v.VocabSize(), loaded.VocabSize())
	assert.Equal(t, v.ID("two"), loaded.ID("two"))

	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, v.SaveFile(path))
	tok, err := New(KindWord, path)
	require.NoError(t, err)
	assert.Equal(t, v.VocabSize(), tok.VocabSize())
}

func TestLoadWordVocab_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing reserved", "hello\nworld\n"},
		{"duplicate", "<pad>\n<unk>\nx\nx\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWordVocab(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrInvalidVocab)
		})
	}
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New("sentencepiece", "x")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
