package han

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/born-ml/han/internal/autodiff"
	"github.com/born-ml/han/internal/dataset"
	"github.com/born-ml/han/internal/metrics"
	"github.com/born-ml/han/internal/nn"
	"github.com/born-ml/han/internal/tensor"
)

// ErrDatasetShape is returned when a dataset's document grid does not match
// the model.
var ErrDatasetShape = errors.New("han: dataset shape does not match model")

// FitOptions controls Fit.
type FitOptions struct {
	Epochs    int  // default 1
	BatchSize int  // default 32
	Shuffle   bool // reshuffle documents every epoch
	Seed      int64

	// Validation is evaluated after every epoch when set.
	Validation *dataset.Dataset

	// OnEpoch runs after each epoch. A non-nil error stops training.
	OnEpoch func(epoch int, h *History) error

	// ProgressInterval spaces the debug-level "batch" log lines. Default 5s.
	ProgressInterval time.Duration
}

// History holds per-epoch results.
type History struct {
	Loss        []float64
	Accuracy    []float64
	ValLoss     []float64
	ValAccuracy []float64
}

// TrainBatch takes one optimizer step on a batch of n documents and returns
// the batch loss (regularization penalties included) and accuracy measured
// before the step.
func (m *Model[B]) TrainBatch(indices []int32, labels []float32, n int) (float64, float64, error) {
	x, err := m.inputs(indices, n)
	if err != nil {
		return 0, 0, err
	}
	y, err := m.targets(labels, n)
	if err != nil {
		return 0, 0, err
	}

	start := time.Now()
	tape := m.backend.GetTape()
	tape.Clear()
	tape.StartRecording()
	probs := m.Forward(x)
	loss := m.loss.Forward(probs, y)
	grads := autodiff.Backward(loss, m.backend)
	tape.StopRecording()

	penalty := m.regularize(grads)
	m.optimizer.Step(grads)
	for _, p := range m.Parameters() {
		p.ApplyConstraint()
	}
	tape.Clear()
	m.step++

	total := float64(loss.Item()) + penalty
	acc := nn.BinaryAccuracy(probs, y)
	if m.metrics != nil {
		m.metrics.ObserveBatch(time.Since(start), total)
	}
	return total, acc, nil
}

// Evaluate returns the loss (penalties included) and accuracy on a batch
// without updating weights.
func (m *Model[B]) Evaluate(indices []int32, labels []float32, n int) (float64, float64, error) {
	x, err := m.inputs(indices, n)
	if err != nil {
		return 0, 0, err
	}
	y, err := m.targets(labels, n)
	if err != nil {
		return 0, 0, err
	}
	probs := m.Forward(x)
	loss := float64(m.loss.Forward(probs, y).Item()) + m.penalty()
	return loss, nn.BinaryAccuracy(probs, y), nil
}

// EvaluateDataset evaluates ds in batches of batchSize and returns the
// document-weighted mean loss and accuracy.
func (m *Model[B]) EvaluateDataset(ds *dataset.Dataset, batchSize int) (float64, float64, error) {
	if err := m.checkDataset(ds); err != nil {
		return 0, 0, err
	}
	var lossSum, accSum float64
	for _, b := range ds.Batches(batchSize, false, nil) {
		loss, acc, err := m.Evaluate(b.Indices, b.Labels, b.Size)
		if err != nil {
			return 0, 0, err
		}
		lossSum += loss * float64(b.Size)
		accSum += acc * float64(b.Size)
	}
	n := float64(ds.Len())
	return lossSum / n, accSum / n, nil
}

// Fit trains on ds for opts.Epochs epochs. It stops between batches when ctx
// is done and returns the history so far together with ctx.Err().
func (m *Model[B]) Fit(ctx context.Context, ds *dataset.Dataset, opts FitOptions) (*History, error) {
	if err := m.checkDataset(ds); err != nil {
		return nil, err
	}
	if opts.Validation != nil {
		if err := m.checkDataset(opts.Validation); err != nil {
			return nil, fmt.Errorf("validation: %w", err)
		}
	}
	if opts.Epochs <= 0 {
		opts.Epochs = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 5 * time.Second
	}
	rng := rand.New(rand.NewSource(opts.Seed)) //nolint:gosec // shuffling, not crypto
	var progress *rate.Limiter
	if m.logger.Core().Enabled(zap.DebugLevel) {
		progress = rate.NewLimiter(rate.Every(opts.ProgressInterval), 1)
	}

	hist := &History{}
	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		start := time.Now()
		var lossSum, accSum float64
		batches := ds.Batches(opts.BatchSize, opts.Shuffle, rng)
		for i, b := range batches {
			if err := ctx.Err(); err != nil {
				return hist, err
			}
			loss, acc, err := m.TrainBatch(b.Indices, b.Labels, b.Size)
			if err != nil {
				return hist, err
			}
			lossSum += loss * float64(b.Size)
			accSum += acc * float64(b.Size)
			if progress != nil && progress.Allow() {
				m.logger.Debug("batch",
					zap.Int("epoch", epoch),
					zap.Int("batch", i+1),
					zap.Int("batches", len(batches)),
					zap.Int64("step", m.step),
					zap.Float64("loss", loss))
			}
		}
		n := float64(ds.Len())
		hist.Loss = append(hist.Loss, lossSum/n)
		hist.Accuracy = append(hist.Accuracy, accSum/n)

		fields := []zap.Field{
			zap.Int("epoch", epoch),
			zap.Int("epochs", opts.Epochs),
			zap.Float64("loss", lossSum/n),
			zap.Float64("accuracy", accSum/n),
			zap.Duration("elapsed", time.Since(start)),
		}
		if m.metrics != nil {
			m.metrics.ObserveEpoch(metrics.PhaseTrain, lossSum/n, accSum/n)
		}

		if opts.Validation != nil {
			valLoss, valAcc, err := m.EvaluateDataset(opts.Validation, opts.BatchSize)
			if err != nil {
				return hist, fmt.Errorf("validation: %w", err)
			}
			hist.ValLoss = append(hist.ValLoss, valLoss)
			hist.ValAccuracy = append(hist.ValAccuracy, valAcc)
			fields = append(fields, zap.Float64("val_loss", valLoss), zap.Float64("val_accuracy", valAcc))
			if m.metrics != nil {
				m.metrics.ObserveEpoch(metrics.PhaseValidation, valLoss, valAcc)
			}
		}
		m.logger.Info("epoch complete", fields...)

		if opts.OnEpoch != nil {
			if err := opts.OnEpoch(epoch, hist); err != nil {
				return hist, err
			}
		}
	}
	return hist, nil
}

func (m *Model[B]) checkDataset(ds *dataset.Dataset) error {
	if ds == nil || ds.Len() == 0 {
		return fmt.Errorf("%w: empty dataset", ErrDatasetShape)
	}
	if ds.MaxSentences != m.cfg.MaxSentences || ds.MaxSeq != m.cfg.MaxSeq {
		return fmt.Errorf("%w: dataset is %dx%d, model is %dx%d", ErrDatasetShape,
			ds.MaxSentences, ds.MaxSeq, m.cfg.MaxSentences, m.cfg.MaxSeq)
	}
	return nil
}

func (m *Model[B]) targets(labels []float32, n int) (*tensor.Tensor[float32, B], error) {
	if len(labels) != n {
		return nil, fmt.Errorf("%w: %d labels for %d documents", ErrInvalidConfig, len(labels), n)
	}
	y, err := tensor.FromSlice(labels, tensor.Shape{n, 1}, m.backend)
	if err != nil {
		return nil, fmt.Errorf("han: targets: %w", err)
	}
	return y, nil
}

// penalty sums the regularization penalties of all parameters.
func (m *Model[B]) penalty() float64 {
	var total float64
	for _, p := range m.Parameters() {
		total += p.Penalty()
	}
	return total
}

// regularize adds penalty gradients to grads and returns the total penalty.
// A gradient is cloned before it is changed because the tape may share one
// raw between several inputs.
func (m *Model[B]) regularize(grads map[*tensor.RawTensor]*tensor.RawTensor) float64 {
	var total float64
	for _, p := range m.Parameters() {
		if p.Regularizer == nil || !p.Trainable() {
			continue
		}
		total += p.Penalty()
		raw := p.Tensor().Raw()
		var g *tensor.RawTensor
		if existing, ok := grads[raw]; ok {
			g = existing.Clone()
		} else {
			g = tensor.MustNewRaw(raw.Shape(), raw.DType(), raw.Device())
		}
		p.Regularizer.AddGradient(p.Tensor().Data(), g.AsFloat32())
		grads[raw] = g
	}
	return total
}
