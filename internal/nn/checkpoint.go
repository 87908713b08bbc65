package nn

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/born-ml/han/internal/serialization"
	"github.com/born-ml/han/internal/tensor"
)

// ErrNotCheckpoint is returned when loading a plain weight file as a checkpoint.
var ErrNotCheckpoint = errors.New("file is not a checkpoint")

const optimizerPrefix = "optimizer."

// OptimizerState represents an optimizer that can save/load its state.
//
// This interface is used by checkpoints to serialize optimizer state
// without creating import cycles. Optimizers from the optim package
// implement this interface.
type OptimizerState interface {
	// StateDict returns the optimizer state for serialization.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict loads optimizer state from serialization.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error

	// GetLR returns the current learning rate.
	GetLR() float32

	// Name identifies the algorithm, e.g. "adam".
	Name() string
}

// Checkpoint represents a complete training state snapshot.
//
// A checkpoint includes:
//   - Model parameters
//   - Optimizer state (momentum buffers, Adam moments)
//   - Training progress (epoch, step, loss)
//   - Model metadata, stored as header strings so a model can be rebuilt
//
// Example:
//
//	ckpt := &nn.Checkpoint[Backend]{
//	    Model:     model,
//	    Optimizer: optimizer,
//	    Epoch:     10,
//	    Loss:      0.123,
//	}
//	err := ckpt.Save("epoch_10.born")
//
// To resume training:
//
//	ckpt, err := nn.LoadCheckpoint[Backend]("epoch_10.born", model, optimizer)
//	startEpoch := ckpt.Epoch + 1
type Checkpoint[B tensor.Backend] struct {
	Model     Module[B]
	Optimizer OptimizerState
	Epoch     int
	Step      int64
	Loss      float64
	ModelType string            // header model_type
	Metadata  map[string]string // header metadata
	Training  map[string]any    // free-form training metadata
	CreatedAt time.Time
}

// Save writes the checkpoint to a .born file.
func (c *Checkpoint[B]) Save(path string) error {
	combined := StateDict(c.Model)
	for name, raw := range c.Optimizer.StateDict() {
		combined[optimizerPrefix+name] = raw
	}

	header := serialization.Header{
		ModelType: c.ModelType,
		CreatedAt: c.CreatedAt,
		Metadata:  c.Metadata,
		CheckpointMeta: &serialization.CheckpointMeta{
			IsCheckpoint:    true,
			Epoch:           c.Epoch,
			Step:            c.Step,
			Loss:            c.Loss,
			OptimizerType:   c.Optimizer.Name(),
			OptimizerConfig: map[string]any{"lr": c.Optimizer.GetLR()},
			TrainingMeta:    c.Training,
		},
	}
	if header.ModelType == "" {
		header.ModelType = "Checkpoint"
	}

	if err := serialization.WriteFile(path, combined, header); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint restores model and optimizer state from a .born file.
//
// The model and optimizer must be pre-constructed with the same architecture
// and configuration as when the checkpoint was saved.
func LoadCheckpoint[B tensor.Backend](path string, model Module[B], optimizer OptimizerState) (*Checkpoint[B], error) {
	file, err := serialization.ReadFile(path)
	if err != nil {
		return nil, err
	}
	meta := file.Header.CheckpointMeta
	if meta == nil || !meta.IsCheckpoint {
		return nil, fmt.Errorf("%s: %w", path, ErrNotCheckpoint)
	}

	modelState := make(map[string]*tensor.RawTensor)
	optimizerState := make(map[string]*tensor.RawTensor)
	for name, raw := range file.StateDict {
		if rest, ok := strings.CutPrefix(name, optimizerPrefix); ok {
			optimizerState[rest] = raw
		} else {
			modelState[name] = raw
		}
	}

	if err := LoadStateDict(model, modelState); err != nil {
		return nil, fmt.Errorf("failed to load model state: %w", err)
	}
	if err := optimizer.LoadStateDict(optimizerState); err != nil {
		return nil, fmt.Errorf("failed to load optimizer state: %w", err)
	}

	return &Checkpoint[B]{
		Model:     model,
		Optimizer: optimizer,
		Epoch:     meta.Epoch,
		Step:      meta.Step,
		Loss:      meta.Loss,
		ModelType: file.Header.ModelType,
		Metadata:  file.Header.Metadata,
		Training:  meta.TrainingMeta,
		CreatedAt: file.Header.CreatedAt,
	}, nil
}
