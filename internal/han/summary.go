package han

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/born-ml/han/internal/nn"
)

// Summary renders the layer table: name, output shape and parameter count
// per layer, then totals. "?" stands for the batch dimension.
func (m *Model[B]) Summary() string {
	c := m.cfg
	rows := []struct {
		name  string
		shape string
		mod   nn.Module[B]
	}{
		{"embedding", shapeString(-1, c.MaxSentences, c.MaxSeq, c.EmbeddingSize), m.embedding},
		{"word_encoder (BiGRU)", shapeString(-1, c.MaxSentences, c.MaxSeq, 2*c.WordRNNSize), m.wordEncoder},
		{"word_dense", shapeString(-1, c.MaxSentences, c.MaxSeq, c.WordDenseSize), m.wordDense},
		{"word_attention", shapeString(-1, c.MaxSentences, c.WordDenseSize), m.wordAttention},
		{"sentence_encoder (BiGRU)", shapeString(-1, c.MaxSentences, 2*c.SentenceRNNSize), m.sentEncoder},
		{"sentence_dense", shapeString(-1, c.MaxSentences, c.SentenceDenseSize), m.sentDense},
		{"sentence_attention", shapeString(-1, c.SentenceDenseSize), m.sentAttention},
		{"output (sigmoid)", shapeString(-1, 1), m.head},
	}

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "Layer\tOutput shape\tParams")
	for _, r := range rows {
		total, _ := nn.CountParameters(r.mod)
		fmt.Fprintf(w, "%s\t%s\t%d\n", r.name, r.shape, total)
	}
	_ = w.Flush()

	total, trainable := nn.CountParameters[B](m)
	fmt.Fprintf(&sb, "Total params: %d\nTrainable params: %d\nNon-trainable params: %d\n",
		total, trainable, total-trainable)
	return sb.String()
}

func shapeString(dims ...int) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		if d < 0 {
			parts[i] = "?"
		} else {
			parts[i] = fmt.Sprint(d)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
