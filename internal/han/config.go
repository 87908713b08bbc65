package han

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/han/internal/nn"
)

// Configuration errors.
var (
	ErrNoEmbedding   = errors.New("han: no embedding source (set EmbeddingWeights or VocabSize and EmbeddingSize)")
	ErrInvalidConfig = errors.New("han: invalid config")
)

// Config describes the network.
//
// Dropout rates are validated and reported but not applied: the layer graph
// has no dropout.
type Config struct {
	MaxSeq       int `koanf:"max_seq" json:"max_seq"`             // words per sentence
	MaxSentences int `koanf:"max_sentences" json:"max_sentences"` // sentences per document, default 1

	// EmbeddingWeights is a pretrained row-major [VocabSize, EmbeddingSize]
	// table. When set it is frozen; otherwise a table of VocabSize x
	// EmbeddingSize is trained from scratch.
	EmbeddingWeights []float32 `koanf:"-" json:"-"`
	VocabSize        int       `koanf:"vocab_size" json:"vocab_size"`
	EmbeddingSize    int       `koanf:"embedding_size" json:"embedding_size"`

	// PretrainedEmbedding records that the table was pretrained and must stay
	// frozen when the model is rebuilt from a file.
	PretrainedEmbedding bool `koanf:"-" json:"pretrained_embedding,omitempty"`

	WordRNNSize       int `koanf:"word_rnn_size" json:"word_rnn_size"`
	SentenceRNNSize   int `koanf:"sentence_rnn_size" json:"sentence_rnn_size"`
	WordDenseSize     int `koanf:"word_dense_size" json:"word_dense_size"`
	SentenceDenseSize int `koanf:"sentence_dense_size" json:"sentence_dense_size"`

	DropWordEmb        float32 `koanf:"drop_word_emb" json:"drop_word_emb"`
	DropWordRNNOut     float32 `koanf:"drop_word_rnn_out" json:"drop_word_rnn_out"`
	DropSentenceRNNOut float32 `koanf:"drop_sentence_rnn_out" json:"drop_sentence_rnn_out"`

	// MaskPadding makes word id 0 invisible to the word encoder and
	// all-padding sentences invisible to the sentence encoder.
	MaskPadding bool `koanf:"mask_padding" json:"mask_padding"`

	// RecurrentActivation of both GRUs: "sigmoid" or "hard_sigmoid".
	RecurrentActivation string `koanf:"recurrent_activation" json:"recurrent_activation"`

	Optimizer    string  `koanf:"optimizer" json:"optimizer"` // "adam" or "sgd"
	LearningRate float32 `koanf:"learning_rate" json:"learning_rate"`

	// Seed drives weight initialization.
	Seed int64 `koanf:"seed" json:"seed"`
}

// DefaultConfig returns the reference hyperparameters. MaxSeq and the
// embedding source must still be set.
func DefaultConfig() Config {
	return Config{
		MaxSentences:        1,
		WordRNNSize:         100,
		SentenceRNNSize:     100,
		WordDenseSize:       200,
		SentenceDenseSize:   200,
		DropWordEmb:         0.2,
		DropWordRNNOut:      0.2,
		DropSentenceRNNOut:  0.5,
		RecurrentActivation: nn.ActivationSigmoid,
		Optimizer:           "adam",
		LearningRate:        0.001,
		Seed:                1,
	}
}

// withDefaults fills zero sizes and training knobs from DefaultConfig.
// Dropout rates are left as given.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxSentences == 0 {
		c.MaxSentences = d.MaxSentences
	}
	if c.WordRNNSize == 0 {
		c.WordRNNSize = d.WordRNNSize
	}
	if c.SentenceRNNSize == 0 {
		c.SentenceRNNSize = d.SentenceRNNSize
	}
	if c.WordDenseSize == 0 {
		c.WordDenseSize = d.WordDenseSize
	}
	if c.SentenceDenseSize == 0 {
		c.SentenceDenseSize = d.SentenceDenseSize
	}
	if c.RecurrentActivation == "" {
		c.RecurrentActivation = d.RecurrentActivation
	}
	if c.Optimizer == "" {
		c.Optimizer = d.Optimizer
	}
	if c.LearningRate == 0 {
		c.LearningRate = d.LearningRate
	}
	if c.EmbeddingWeights != nil {
		c.PretrainedEmbedding = true
		if c.EmbeddingSize > 0 && c.VocabSize == 0 {
			c.VocabSize = len(c.EmbeddingWeights) / c.EmbeddingSize
		}
	}
	return c
}

// Validate checks sizes, the embedding source and dropout ranges.
func (c Config) Validate() error {
	if c.MaxSeq <= 0 {
		return fmt.Errorf("%w: max_seq must be positive, got %d", ErrInvalidConfig, c.MaxSeq)
	}
	if c.MaxSentences <= 0 {
		return fmt.Errorf("%w: max_sentences must be positive, got %d", ErrInvalidConfig, c.MaxSentences)
	}

	switch {
	case c.EmbeddingWeights != nil:
		if c.EmbeddingSize <= 0 {
			return fmt.Errorf("%w: embedding_size is required with pretrained weights", ErrInvalidConfig)
		}
		if len(c.EmbeddingWeights) == 0 || len(c.EmbeddingWeights) != c.VocabSize*c.EmbeddingSize {
			return fmt.Errorf("%w: %d pretrained values do not form a %dx%d table",
				ErrInvalidConfig, len(c.EmbeddingWeights), c.VocabSize, c.EmbeddingSize)
		}
	case c.VocabSize <= 0 || c.EmbeddingSize <= 0:
		return ErrNoEmbedding
	}

	for name, v := range map[string]int{
		"word_rnn_size":       c.WordRNNSize,
		"sentence_rnn_size":   c.SentenceRNNSize,
		"word_dense_size":     c.WordDenseSize,
		"sentence_dense_size": c.SentenceDenseSize,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, name, v)
		}
	}
	for name, v := range map[string]float32{
		"drop_word_emb":         c.DropWordEmb,
		"drop_word_rnn_out":     c.DropWordRNNOut,
		"drop_sentence_rnn_out": c.DropSentenceRNNOut,
	} {
		if v < 0 || v >= 1 {
			return fmt.Errorf("%w: %s must be in [0, 1), got %v", ErrInvalidConfig, name, v)
		}
	}

	switch strings.ToLower(c.Optimizer) {
	case "adam", "sgd":
	default:
		return fmt.Errorf("%w: unknown optimizer %q", ErrInvalidConfig, c.Optimizer)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("%w: learning_rate must be positive, got %v", ErrInvalidConfig, c.LearningRate)
	}
	return nil
}
