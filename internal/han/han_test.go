package han_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/born-ml/han/internal/autodiff"
	"github.com/born-ml/han/internal/backend/cpu"
	"github.com/born-ml/han/internal/dataset"
	"github.com/born-ml/han/internal/han"
	"github.com/born-ml/han/internal/metrics"
	"github.com/born-ml/han/internal/nn"
	"github.com/born-ml/han/internal/serialization"
	"github.com/born-ml/han/internal/tensor"
	"github.com/born-ml/han/internal/tokenizer"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() Backend {
	return autodiff.New(cpu.New())
}

func smallConfig() han.Config {
	return han.Config{
		MaxSeq:            4,
		MaxSentences:      2,
		VocabSize:         12,
		EmbeddingSize:     6,
		WordRNNSize:       4,
		SentenceRNNSize:   4,
		WordDenseSize:     5,
		SentenceDenseSize: 5,
		LearningRate:      0.01,
	}
}

func newModel(t *testing.T, cfg han.Config, opts ...han.Option) *han.Model[Backend] {
	t.Helper()
	m, err := han.New(cfg, newBackend(), opts...)
	require.NoError(t, err)
	return m
}

var toyCorpus = []dataset.Example{
	{Text: "good fine. good day", Label: 1},
	{Text: "fine good good", Label: 1},
	{Text: "a good day. fine", Label: 1},
	{Text: "good. good good", Label: 1},
	{Text: "bad awful. bad day", Label: 0},
	{Text: "awful bad bad", Label: 0},
	{Text: "a bad day. awful", Label: 0},
	{Text: "bad. bad bad", Label: 0},
}

func toyDataset(t *testing.T, cfg han.Config) *dataset.Dataset {
	t.Helper()
	vocab := tokenizer.BuildWordVocab(dataset.Texts(toyCorpus), tokenizer.VocabOptions{})
	require.LessOrEqual(t, vocab.VocabSize(), cfg.VocabSize)
	ds, err := dataset.New(toyCorpus, &dataset.Encoder{
		Tokenizer:    vocab,
		MaxSentences: cfg.MaxSentences,
		MaxSeq:       cfg.MaxSeq,
	})
	require.NoError(t, err)
	return ds
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*han.Config)
		want   error
	}{
		{"valid", func(*han.Config) {}, nil},
		{"no max_seq", func(c *han.Config) { c.MaxSeq = 0 }, han.ErrInvalidConfig},
		{"no embedding", func(c *han.Config) { c.VocabSize = 0 }, han.ErrNoEmbedding},
		{"negative dense", func(c *han.Config) { c.WordDenseSize = -1 }, han.ErrInvalidConfig},
		{"dropout out of range", func(c *han.Config) { c.DropSentenceRNNOut = 1 }, han.ErrInvalidConfig},
		{"unknown optimizer", func(c *han.Config) { c.Optimizer = "rmsprop" }, han.ErrInvalidConfig},
		{"weights do not fit", func(c *han.Config) {
			c.EmbeddingWeights = make([]float32, 7)
		}, han.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smallConfig()
			cfg.Optimizer = "adam"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	m := newModel(t, han.Config{MaxSeq: 3, VocabSize: 5, EmbeddingSize: 2})
	cfg := m.Config()
	assert.Equal(t, 1, cfg.MaxSentences)
	assert.Equal(t, 100, cfg.WordRNNSize)
	assert.Equal(t, 200, cfg.SentenceDenseSize)
	assert.Equal(t, "adam", m.Optimizer().Name())
	assert.InDelta(t, 0.001, float64(m.Optimizer().GetLR()), 1e-9)
}

func TestNew_NoEmbedding(t *testing.T) {
	_, err := han.New(han.Config{MaxSeq: 4}, newBackend())
	require.ErrorIs(t, err, han.ErrNoEmbedding)
}

func TestNew_UnknownActivation(t *testing.T) {
	cfg := smallConfig()
	cfg.RecurrentActivation = "relu"
	_, err := han.New(cfg, newBackend())
	require.ErrorIs(t, err, nn.ErrUnknownActivation)
}

func TestForward_Shape(t *testing.T) {
	m := newModel(t, smallConfig())
	ids := []int32{
		2, 3, 4, 0, 5, 6, 0, 0,
		7, 0, 0, 0, 0, 0, 0, 0,
		1, 1, 1, 1, 8, 9, 10, 11,
	}
	x := tensor.MustFromSlice(ids, tensor.Shape{3, 2, 4}, m.Backend())
	out := m.Forward(x)
	require.Equal(t, tensor.Shape{3, 1}, out.Shape())
	for _, p := range out.Data() {
		assert.Greater(t, p, float32(0))
		assert.Less(t, p, float32(1))
	}
}

func TestForward_SingleSentenceRank2(t *testing.T) {
	cfg := smallConfig()
	cfg.MaxSentences = 1
	m := newModel(t, cfg)

	flat := tensor.MustFromSlice([]int32{2, 3, 4, 0, 5, 6, 0, 0}, tensor.Shape{2, 4}, m.Backend())
	grid := tensor.MustFromSlice([]int32{2, 3, 4, 0, 5, 6, 0, 0}, tensor.Shape{2, 1, 4}, m.Backend())
	assert.InDeltaSlice(t, m.Forward(grid).Data(), m.Forward(flat).Data(), 1e-7)
}

func TestForward_ShapeMismatchPanics(t *testing.T) {
	m := newModel(t, smallConfig())
	x := tensor.MustFromSlice([]int32{1, 2, 3}, tensor.Shape{1, 3}, m.Backend())
	assert.Panics(t, func() { m.Forward(x) })
}

// Layer weights do not depend on the document grid, so a model over a
// padded grid must agree with a model over the unpadded one when padding
// is masked.
func TestForward_MaskPaddingIgnoresPadding(t *testing.T) {
	big := smallConfig()
	big.MaskPadding = true
	small := big
	small.MaxSeq = 2
	small.MaxSentences = 1

	want, err := newModel(t, small).Predict([]int32{5, 6}, 1)
	require.NoError(t, err)
	got, err := newModel(t, big).Predict([]int32{5, 6, 0, 0, 0, 0, 0, 0}, 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-5)
}

func TestPredict_Errors(t *testing.T) {
	m := newModel(t, smallConfig())
	_, err := m.Predict([]int32{1, 2, 3}, 1)
	require.ErrorIs(t, err, han.ErrInvalidConfig)

	_, _, err = m.TrainBatch(make([]int32, 8), []float32{1, 0}, 1)
	require.ErrorIs(t, err, han.ErrInvalidConfig)
}

func TestFit_LearnsToyCorpus(t *testing.T) {
	cfg := smallConfig()
	ds := toyDataset(t, cfg)
	m := newModel(t, cfg)

	hist, err := m.Fit(context.Background(), ds, han.FitOptions{Epochs: 30, BatchSize: 4, Shuffle: true, Seed: 3})
	require.NoError(t, err)
	require.Len(t, hist.Loss, 30)
	assert.Less(t, hist.Loss[29], hist.Loss[0])
	assert.Equal(t, int64(60), m.Step())
	assert.Zero(t, m.Backend().Tape().NumOps())
}

func TestEvaluate_DoesNotTrain(t *testing.T) {
	cfg := smallConfig()
	ds := toyDataset(t, cfg)
	m := newModel(t, cfg)
	all := ds.All()

	before, err := m.Predict(all.Indices, all.Size)
	require.NoError(t, err)
	loss, acc, err := m.Evaluate(all.Indices, all.Labels, all.Size)
	require.NoError(t, err)
	after, err := m.Predict(all.Indices, all.Size)
	require.NoError(t, err)

	assert.Equal(t, before, after)
	assert.Greater(t, loss, 0.0)
	assert.GreaterOrEqual(t, acc, 0.0)
	assert.LessOrEqual(t, acc, 1.0)
	assert.Zero(t, m.Step())

	dsLoss, dsAcc, err := m.EvaluateDataset(ds, 3)
	require.NoError(t, err)
	assert.InDelta(t, loss, dsLoss, 1e-5)
	assert.InDelta(t, acc, dsAcc, 1e-9)
}

func TestTrainBatch_PretrainedEmbeddingFrozen(t *testing.T) {
	cfg := smallConfig()
	weights := make([]float32, cfg.VocabSize*cfg.EmbeddingSize)
	for i := range weights {
		weights[i] = float32(i%7) / 10
	}
	cfg.EmbeddingWeights = weights
	cfg.VocabSize = 0 // inferred from the table

	m := newModel(t, cfg)
	require.True(t, m.Config().PretrainedEmbedding)
	require.Equal(t, 12, m.Config().VocabSize)

	ds := toyDataset(t, m.Config())
	all := ds.All()
	for range 3 {
		_, _, err := m.TrainBatch(all.Indices, all.Labels, all.Size)
		require.NoError(t, err)
	}

	emb := m.Parameters()[0]
	assert.False(t, emb.Trainable())
	assert.Equal(t, weights, emb.Tensor().Data())

	total, trainable := nn.CountParameters[Backend](m)
	assert.Equal(t, len(weights), total-trainable)
}

func TestTrainBatch_RegularizerPenalty(t *testing.T) {
	cfg := smallConfig()
	ds := toyDataset(t, cfg)
	all := ds.All()

	plain := newModel(t, cfg)
	base, _, err := plain.Evaluate(all.Indices, all.Labels, all.Size)
	require.NoError(t, err)

	reg := newModel(t, cfg)
	w := reg.WordAttention().Parameters()[0]
	w.Regularizer = nn.L2(0.5)
	w.Constraint = nn.MaxNorm(0.1)
	withPenalty, _, err := reg.Evaluate(all.Indices, all.Labels, all.Size)
	require.NoError(t, err)
	assert.InDelta(t, base+w.Penalty(), withPenalty, 1e-5)

	_, _, err = reg.TrainBatch(all.Indices, all.Labels, all.Size)
	require.NoError(t, err)

	// MaxNorm caps every column of W after the step.
	data, f := w.Tensor().Data(), w.Tensor().Shape()[1]
	for col := 0; col < f; col++ {
		var sq float64
		for row := 0; row < w.Tensor().Shape()[0]; row++ {
			v := float64(data[row*f+col])
			sq += v * v
		}
		assert.LessOrEqual(t, sq, 0.1*0.1+1e-6)
	}
}

func TestFit_Cancelled(t *testing.T) {
	cfg := smallConfig()
	ds := toyDataset(t, cfg)
	m := newModel(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hist, err := m.Fit(ctx, ds, han.FitOptions{Epochs: 2})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, hist.Loss)
	assert.Zero(t, m.Step())
}

func TestFit_OnEpochStops(t *testing.T) {
	cfg := smallConfig()
	ds := toyDataset(t, cfg)
	m := newModel(t, cfg)
	stop := errors.New("stop")

	hist, err := m.Fit(context.Background(), ds, han.FitOptions{
		Epochs: 5,
		OnEpoch: func(epoch int, _ *han.History) error {
			if epoch == 2 {
				return stop
			}
			return nil
		},
	})
	require.ErrorIs(t, err, stop)
	assert.Len(t, hist.Loss, 2)
}

func TestFit_DatasetShapeMismatch(t *testing.T) {
	cfg := smallConfig()
	other := cfg
	other.MaxSeq = 3
	ds := toyDataset(t, other)

	_, err := newModel(t, cfg).Fit(context.Background(), ds, han.FitOptions{})
	require.ErrorIs(t, err, han.ErrDatasetShape)
}

func TestFit_LogsAndMetrics(t *testing.T) {
	cfg := smallConfig()
	ds := toyDataset(t, cfg)
	core, logs := observer.New(zapcore.InfoLevel)
	reg := metrics.New()
	m := newModel(t, cfg, han.WithLogger(zap.New(core)), han.WithMetrics(reg))

	hist, err := m.Fit(context.Background(), ds, han.FitOptions{Epochs: 2, BatchSize: 8, Validation: ds})
	require.NoError(t, err)
	require.Len(t, hist.ValLoss, 2)
	require.Len(t, hist.ValAccuracy, 2)

	entries := logs.FilterMessage("epoch complete").All()
	require.Len(t, entries, 2)
	fields := entries[1].ContextMap()
	assert.Equal(t, int64(2), fields["epoch"])
	assert.Contains(t, fields, "val_loss")

	body := scrape(t, reg)
	assert.Contains(t, body, "han_steps_total 2")
	assert.Contains(t, body, `han_loss{phase="validation"}`)
}

func TestFit_BatchProgressIsRateLimited(t *testing.T) {
	cfg := smallConfig()
	ds := toyDataset(t, cfg)
	core, logs := observer.New(zapcore.DebugLevel)
	m := newModel(t, cfg, han.WithLogger(zap.New(core)))

	_, err := m.Fit(context.Background(), ds, han.FitOptions{Epochs: 3, BatchSize: 2, ProgressInterval: time.Hour})
	require.NoError(t, err)

	batches := logs.FilterMessage("batch").All()
	require.Len(t, batches, 1)
	assert.Equal(t, int64(1), batches[0].ContextMap()["step"])
	assert.Len(t, logs.FilterMessage("epoch complete").All(), 3)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	cfg := smallConfig()
	cfg.MaskPadding = true
	ds := toyDataset(t, cfg)
	all := ds.All()

	m := newModel(t, cfg)
	_, _, err := m.TrainBatch(all.Indices, all.Labels, all.Size)
	require.NoError(t, err)
	want, err := m.Predict(all.Indices, all.Size)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.born")
	require.NoError(t, m.Save(path))

	loaded, err := han.LoadModel(path, newBackend())
	require.NoError(t, err)
	assert.Equal(t, m.Config(), loaded.Config())
	got, err := loaded.Predict(all.Indices, all.Size)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-7)

	fresh := smallConfig()
	fresh.MaskPadding = true
	fresh.Seed = 99
	other := newModel(t, fresh)
	require.NoError(t, other.Load(path))
	got, err = other.Predict(all.Indices, all.Size)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-7)
}

func TestLoadModel_PretrainedStaysFrozen(t *testing.T) {
	cfg := smallConfig()
	cfg.EmbeddingWeights = make([]float32, cfg.VocabSize*cfg.EmbeddingSize)
	for i := range cfg.EmbeddingWeights {
		cfg.EmbeddingWeights[i] = 0.01 * float32(i)
	}
	m := newModel(t, cfg)
	path := filepath.Join(t.TempDir(), "model.born")
	require.NoError(t, m.Save(path))

	loaded, err := han.LoadModel(path, newBackend())
	require.NoError(t, err)
	emb := loaded.Parameters()[0]
	assert.False(t, emb.Trainable())
	assert.Equal(t, cfg.EmbeddingWeights, emb.Tensor().Data())
}

func TestCheckpoint_RoundTrip(t *testing.T) {
	cfg := smallConfig()
	ds := toyDataset(t, cfg)
	all := ds.All()

	m := newModel(t, cfg)
	for range 2 {
		_, _, err := m.TrainBatch(all.Indices, all.Labels, all.Size)
		require.NoError(t, err)
	}
	path := filepath.Join(t.TempDir(), "ckpt.born")
	require.NoError(t, m.SaveCheckpoint(path, 4, 0.25))

	resumed := newModel(t, cfg)
	epoch, loss, err := resumed.LoadCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, 4, epoch)
	assert.InDelta(t, 0.25, loss, 1e-12)
	assert.Equal(t, int64(2), resumed.Step())

	// Identical weights and optimizer state give identical next steps.
	_, _, err = m.TrainBatch(all.Indices, all.Labels, all.Size)
	require.NoError(t, err)
	_, _, err = resumed.TrainBatch(all.Indices, all.Labels, all.Size)
	require.NoError(t, err)
	want, err := m.Predict(all.Indices, all.Size)
	require.NoError(t, err)
	got, err := resumed.Predict(all.Indices, all.Size)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-6)

	// A checkpoint also loads as plain weights.
	require.NoError(t, newModel(t, cfg).Load(path))
}

func TestLoad_NotHAN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.born")
	raw := tensor.MustNewRaw(tensor.Shape{2}, tensor.Float32, tensor.CPU)
	require.NoError(t, serialization.WriteFile(path, map[string]*tensor.RawTensor{"w": raw},
		serialization.Header{ModelType: "MLP"}))

	_, err := han.LoadModel(path, newBackend())
	require.ErrorIs(t, err, han.ErrNotHAN)
	require.ErrorIs(t, newModel(t, smallConfig()).Load(path), han.ErrNotHAN)
}

func TestSummary(t *testing.T) {
	m := newModel(t, smallConfig())
	s := m.Summary()
	for _, name := range []string{"embedding", "word_encoder (BiGRU)", "word_attention", "sentence_attention", "output (sigmoid)"} {
		assert.Contains(t, s, name)
	}
	assert.Contains(t, s, "(?, 2, 4, 6)")
	// attention: W 5x5 + b 5 + u 5.
	assert.Contains(t, s, "35")

	total, _ := nn.CountParameters[Backend](m)
	assert.Contains(t, s, "Total params: ")
	assert.Contains(t, s, "Non-trainable params: 0")
	assert.Contains(t, s, "Trainable params: "+strconv.Itoa(total))
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
