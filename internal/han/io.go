package han

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/han/internal/nn"
	"github.com/born-ml/han/internal/serialization"
	"github.com/born-ml/han/internal/tensor"
)

// ModelType is the header model type of saved models.
const ModelType = "HAN"

const configKey = "config"

// ErrNotHAN is returned when a file was not written by this package.
var ErrNotHAN = errors.New("han: file does not hold a hierarchical attention model")

// Save writes the model weights and configuration to path.
func (m *Model[B]) Save(path string) error {
	meta, err := m.metadata()
	if err != nil {
		return err
	}
	header := serialization.Header{ModelType: ModelType, Metadata: meta}
	if err := serialization.WriteFile(path, nn.StateDict[B](m), header); err != nil {
		return fmt.Errorf("han: save: %w", err)
	}
	return nil
}

// SaveCheckpoint writes weights, optimizer state and training progress.
func (m *Model[B]) SaveCheckpoint(path string, epoch int, loss float64) error {
	meta, err := m.metadata()
	if err != nil {
		return err
	}
	ckpt := &nn.Checkpoint[B]{
		Model:     m,
		Optimizer: m.optimizer,
		Epoch:     epoch,
		Step:      m.step,
		Loss:      loss,
		ModelType: ModelType,
		Metadata:  meta,
	}
	return ckpt.Save(path)
}

// Load restores weights saved by Save or SaveCheckpoint. Optimizer state in
// a checkpoint is ignored.
func (m *Model[B]) Load(path string) error {
	file, err := serialization.ReadFile(path)
	if err != nil {
		return fmt.Errorf("han: load: %w", err)
	}
	if file.Header.ModelType != ModelType {
		return fmt.Errorf("%w: model type %q", ErrNotHAN, file.Header.ModelType)
	}
	weights := make(map[string]*tensor.RawTensor, len(file.StateDict))
	for name, raw := range file.StateDict {
		if !strings.HasPrefix(name, "optimizer.") {
			weights[name] = raw
		}
	}
	if err := nn.LoadStateDict[B](m, weights); err != nil {
		return fmt.Errorf("han: load: %w", err)
	}
	return nil
}

// LoadCheckpoint restores weights, optimizer state and the step counter and
// returns the saved epoch and loss.
func (m *Model[B]) LoadCheckpoint(path string) (epoch int, loss float64, err error) {
	ckpt, err := nn.LoadCheckpoint[B](path, m, m.optimizer)
	if err != nil {
		return 0, 0, fmt.Errorf("han: load checkpoint: %w", err)
	}
	m.step = ckpt.Step
	return ckpt.Epoch, ckpt.Loss, nil
}

// LoadModel rebuilds a model from the configuration stored in path and
// loads its weights.
func LoadModel[B Backend](path string, backend B, opts ...Option) (*Model[B], error) {
	file, err := serialization.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("han: load: %w", err)
	}
	if file.Header.ModelType != ModelType {
		return nil, fmt.Errorf("%w: model type %q", ErrNotHAN, file.Header.ModelType)
	}
	raw, ok := file.Header.Metadata[configKey]
	if !ok {
		return nil, fmt.Errorf("%w: no stored config", ErrNotHAN)
	}
	var cfg Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("han: stored config: %w", err)
	}
	if cfg.PretrainedEmbedding {
		// Placeholder values; the stored table overwrites them and stays frozen.
		cfg.EmbeddingWeights = make([]float32, cfg.VocabSize*cfg.EmbeddingSize)
	}

	m, err := New(cfg, backend, opts...)
	if err != nil {
		return nil, err
	}
	if err := m.Load(path); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model[B]) metadata() (map[string]string, error) {
	cfg, err := json.Marshal(m.cfg)
	if err != nil {
		return nil, fmt.Errorf("han: encode config: %w", err)
	}
	return map[string]string{configKey: string(cfg)}, nil
}
