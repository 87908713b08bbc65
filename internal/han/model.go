// Package han implements a hierarchical attention network for binary
// document classification.
//
// A document is a grid of word ids, MaxSentences rows of MaxSeq words. The
// word level encodes every sentence independently:
//
//	Embedding -> BiGRU (sequences) -> Dense(word_dense_size) -> Attention
//
// and the sentence level encodes the resulting sentence vectors:
//
//	BiGRU (sequences) -> Dense(sentence_dense_size) -> Attention -> Dense(1) -> sigmoid
//
// The output is the probability of the positive class.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	model, err := han.New(han.Config{MaxSeq: 50, MaxSentences: 15, VocabSize: 20000, EmbeddingSize: 100}, backend)
//	if err != nil {
//	    return err
//	}
//	hist, err := model.Fit(ctx, train, han.FitOptions{Epochs: 5, BatchSize: 32})
package han

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/born-ml/han/internal/autodiff"
	"github.com/born-ml/han/internal/metrics"
	"github.com/born-ml/han/internal/nn"
	"github.com/born-ml/han/internal/optim"
	"github.com/born-ml/han/internal/tensor"
)

// Backend is what the model needs from a compute backend: a gradient tape
// plus the tanh and sigmoid kernels.
type Backend interface {
	autodiff.BackwardCapable
	tensor.TanhBackend
	tensor.SigmoidBackend
}

// Option customizes a Model.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// WithLogger sets the training logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records training progress on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Model is a compiled hierarchical attention classifier: the layer graph
// plus its loss and optimizer.
type Model[B Backend] struct {
	cfg     Config
	backend B
	logger  *zap.Logger
	metrics *metrics.Metrics

	embedding     *nn.Embedding[B]
	wordEncoder   *nn.Bidirectional[B]
	wordDense     *nn.Dense[B]
	wordAttention *nn.Attention[B]
	sentEncoder   *nn.Bidirectional[B]
	sentDense     *nn.Dense[B]
	sentAttention *nn.Attention[B]
	head          *nn.Sequential[B]

	loss      *nn.BinaryCrossEntropy[B]
	optimizer optim.Optimizer
	step      int64
}

// New builds and compiles a model for cfg. Unset sizes take their
// DefaultConfig values.
func New[B Backend](cfg Config, backend B, opts ...Option) (*Model[B], error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // weight init, not crypto
	m := &Model[B]{
		cfg:     cfg,
		backend: backend,
		logger:  o.logger,
		metrics: o.metrics,
		loss:    nn.NewBinaryCrossEntropy[B](),
	}

	if cfg.EmbeddingWeights != nil {
		weight, err := tensor.FromSlice(append([]float32(nil), cfg.EmbeddingWeights...),
			tensor.Shape{cfg.VocabSize, cfg.EmbeddingSize}, backend)
		if err != nil {
			return nil, fmt.Errorf("han: embedding weights: %w", err)
		}
		m.embedding = nn.NewEmbeddingWithWeight("embedding", weight)
	} else {
		m.embedding = nn.NewEmbedding("embedding", cfg.VocabSize, cfg.EmbeddingSize, rng, backend)
	}

	var err error
	m.wordEncoder, err = nn.NewBidirectional(nn.GRUOptions{
		Name:                "word_encoder",
		In:                  cfg.EmbeddingSize,
		Units:               cfg.WordRNNSize,
		ReturnSequences:     true,
		RecurrentActivation: cfg.RecurrentActivation,
	}, rng, backend)
	if err != nil {
		return nil, fmt.Errorf("han: word encoder: %w", err)
	}
	m.wordDense = nn.NewDense(nn.DenseOptions{
		Name: "word_dense",
		In:   2 * cfg.WordRNNSize,
		Out:  cfg.WordDenseSize,
	}, rng, backend)
	m.wordAttention = nn.NewAttention[B](nn.AttentionOptions{Name: "word_attention", Rand: rng})
	if err := m.wordAttention.Build(tensor.Shape{1, cfg.MaxSeq, cfg.WordDenseSize}, backend); err != nil {
		return nil, fmt.Errorf("han: word attention: %w", err)
	}

	m.sentEncoder, err = nn.NewBidirectional(nn.GRUOptions{
		Name:                "sentence_encoder",
		In:                  cfg.WordDenseSize,
		Units:               cfg.SentenceRNNSize,
		ReturnSequences:     true,
		RecurrentActivation: cfg.RecurrentActivation,
	}, rng, backend)
	if err != nil {
		return nil, fmt.Errorf("han: sentence encoder: %w", err)
	}
	m.sentDense = nn.NewDense(nn.DenseOptions{
		Name: "sentence_dense",
		In:   2 * cfg.SentenceRNNSize,
		Out:  cfg.SentenceDenseSize,
	}, rng, backend)
	m.sentAttention = nn.NewAttention[B](nn.AttentionOptions{Name: "sentence_attention", Rand: rng})
	if err := m.sentAttention.Build(tensor.Shape{1, cfg.MaxSentences, cfg.SentenceDenseSize}, backend); err != nil {
		return nil, fmt.Errorf("han: sentence attention: %w", err)
	}

	m.head = nn.NewSequential[B](
		nn.NewDense(nn.DenseOptions{Name: "output", In: cfg.SentenceDenseSize, Out: 1}, rng, backend),
		nn.NewSigmoid[B](),
	)

	m.optimizer, err = optim.New(cfg.Optimizer, m.Parameters(), cfg.LearningRate, backend)
	if err != nil {
		return nil, fmt.Errorf("han: %w", err)
	}
	return m, nil
}

// Config returns the resolved configuration.
func (m *Model[B]) Config() Config {
	return m.cfg
}

// Backend returns the compute backend.
func (m *Model[B]) Backend() B {
	return m.backend
}

// Optimizer returns the compiled optimizer.
func (m *Model[B]) Optimizer() optim.Optimizer {
	return m.optimizer
}

// Step returns the number of optimizer steps taken.
func (m *Model[B]) Step() int64 {
	return m.step
}

// WordAttention returns the word-level attention layer.
func (m *Model[B]) WordAttention() *nn.Attention[B] {
	return m.wordAttention
}

// SentenceAttention returns the sentence-level attention layer.
func (m *Model[B]) SentenceAttention() *nn.Attention[B] {
	return m.sentAttention
}

// Parameters returns every weight in graph order.
func (m *Model[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, m.embedding.Parameters()...)
	params = append(params, m.wordEncoder.Parameters()...)
	params = append(params, m.wordDense.Parameters()...)
	params = append(params, m.wordAttention.Parameters()...)
	params = append(params, m.sentEncoder.Parameters()...)
	params = append(params, m.sentDense.Parameters()...)
	params = append(params, m.sentAttention.Parameters()...)
	params = append(params, m.head.Parameters()...)
	return params
}

// Forward maps word ids (batch, MaxSentences, MaxSeq) to probabilities
// (batch, 1). A rank 2 input (batch, MaxSeq) is read as one sentence per
// document and requires MaxSentences == 1.
func (m *Model[B]) Forward(indices *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	n, s, l := m.docShape(indices.Shape())
	words := indices.Reshape(n*s, l)

	var wordMask, sentMask *tensor.Tensor[float32, B]
	if m.cfg.MaskPadding {
		wordMask = nn.PaddingMask(words)
		sentMask = sentenceMask(words, n, s, m.backend)
	}

	h := m.embedding.Forward(words)
	h = m.wordEncoder.Forward(h, wordMask)
	h = m.wordDense.Forward(h)
	sentences := m.wordAttention.Forward(h, wordMask).Reshape(n, s, m.cfg.WordDenseSize)

	h = m.sentEncoder.Forward(sentences, sentMask)
	h = m.sentDense.Forward(h)
	doc := m.sentAttention.Forward(h, sentMask)
	return m.head.Forward(doc)
}

// Predict returns the positive class probability of each of the n documents
// in the flat id grid.
func (m *Model[B]) Predict(indices []int32, n int) ([]float32, error) {
	x, err := m.inputs(indices, n)
	if err != nil {
		return nil, err
	}
	probs := m.Forward(x).Data()
	return append([]float32(nil), probs...), nil
}

// inputs wraps a flat id grid of n documents as a (n, S, L) tensor.
func (m *Model[B]) inputs(indices []int32, n int) (*tensor.Tensor[int32, B], error) {
	docSize := m.cfg.MaxSentences * m.cfg.MaxSeq
	if n <= 0 || len(indices) != n*docSize {
		return nil, fmt.Errorf("%w: %d ids do not form %d documents of %dx%d",
			ErrInvalidConfig, len(indices), n, m.cfg.MaxSentences, m.cfg.MaxSeq)
	}
	x, err := tensor.FromSlice(indices, tensor.Shape{n, m.cfg.MaxSentences, m.cfg.MaxSeq}, m.backend)
	if err != nil {
		return nil, fmt.Errorf("han: inputs: %w", err)
	}
	return x, nil
}

func (m *Model[B]) docShape(shape tensor.Shape) (n, s, l int) {
	switch {
	case len(shape) == 3 && shape[1] == m.cfg.MaxSentences && shape[2] == m.cfg.MaxSeq:
		return shape[0], shape[1], shape[2]
	case len(shape) == 2 && m.cfg.MaxSentences == 1 && shape[1] == m.cfg.MaxSeq:
		return shape[0], 1, shape[1]
	}
	panic(fmt.Sprintf("han: input shape %v does not match documents of %dx%d",
		shape, m.cfg.MaxSentences, m.cfg.MaxSeq))
}

// sentenceMask marks a sentence valid when any of its words is not padding.
func sentenceMask[B tensor.Backend](words *tensor.Tensor[int32, B], n, s int, backend B) *tensor.Tensor[float32, B] {
	mask := tensor.Zeros[float32](tensor.Shape{n, s}, backend)
	data := mask.Data()
	l := words.Shape()[1]
	ids := words.Data()
	for row := range data {
		for _, id := range ids[row*l : (row+1)*l] {
			if id != 0 {
				data[row] = 1
				break
			}
		}
	}
	return mask
}
