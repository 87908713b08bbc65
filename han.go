// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package han provides the public API of the hierarchical attention network
// document classifier.
//
// The package binds the model to the pure Go CPU backend with automatic
// differentiation and pairs it with the tokenizer that produced its word ids.
//
// Example:
//
//	vocab := han.BuildWordVocab(han.Texts(examples), han.VocabOptions{MinCount: 2})
//	clf, err := han.NewClassifier(han.Config{
//	    MaxSeq:        50,
//	    MaxSentences:  15,
//	    EmbeddingSize: 100,
//	}, vocab)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	hist, err := clf.Fit(ctx, examples, han.FitOptions{Epochs: 5, BatchSize: 32})
//	probs, err := clf.Predict("A wonderful film.", "Dull and slow.")
package han

import (
	"context"
	"fmt"

	"github.com/born-ml/han/internal/autodiff"
	"github.com/born-ml/han/internal/backend/cpu"
	"github.com/born-ml/han/internal/dataset"
	core "github.com/born-ml/han/internal/han"
	"github.com/born-ml/han/internal/tokenizer"
)

// Backend is the CPU backend wrapped for automatic differentiation.
type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// NewBackend creates a training-capable CPU backend.
func NewBackend() Backend {
	return autodiff.New(cpu.New())
}

// Model types.
type (
	// Model is the compiled classifier on the CPU backend.
	Model = core.Model[Backend]
	// Config describes the network and its optimizer.
	Config = core.Config
	// Option customizes a Model.
	Option = core.Option
	// FitOptions controls training.
	FitOptions = core.FitOptions
	// History holds per-epoch results.
	History = core.History
)

// Model options.
var (
	WithLogger  = core.WithLogger
	WithMetrics = core.WithMetrics
)

// DefaultConfig returns the reference hyperparameters.
func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewModel builds a model for cfg on a fresh backend.
func NewModel(cfg Config, opts ...Option) (*Model, error) {
	return core.New(cfg, NewBackend(), opts...)
}

// LoadModel rebuilds a model saved with Model.Save.
func LoadModel(path string, opts ...Option) (*Model, error) {
	return core.LoadModel(path, NewBackend(), opts...)
}

// Data and tokenizer types.
type (
	Example      = dataset.Example
	Dataset      = dataset.Dataset
	Encoder      = dataset.Encoder
	Tokenizer    = tokenizer.Tokenizer
	WordVocab    = tokenizer.WordVocab
	VocabOptions = tokenizer.VocabOptions
)

// Data and tokenizer helpers.
var (
	ReadJSONLFile     = dataset.ReadJSONLFile
	Texts             = dataset.Texts
	BuildWordVocab    = tokenizer.BuildWordVocab
	LoadWordVocabFile = tokenizer.LoadWordVocabFile
	NewTikToken       = tokenizer.NewTikToken
)

// Classifier ties a Model to the tokenizer its ids come from.
type Classifier struct {
	Model   *Model
	Encoder *Encoder
}

// NewClassifier builds a model whose vocabulary is tok's.
func NewClassifier(cfg Config, tok Tokenizer, opts ...Option) (*Classifier, error) {
	cfg.VocabSize = tok.VocabSize()
	m, err := NewModel(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return WrapModel(m, tok), nil
}

// WrapModel pairs a loaded model with its tokenizer.
func WrapModel(m *Model, tok Tokenizer) *Classifier {
	cfg := m.Config()
	return &Classifier{
		Model:   m,
		Encoder: &Encoder{Tokenizer: tok, MaxSentences: cfg.MaxSentences, MaxSeq: cfg.MaxSeq},
	}
}

// Dataset encodes examples into the model's document grid.
func (c *Classifier) Dataset(examples []Example) (*Dataset, error) {
	return dataset.New(examples, c.Encoder)
}

// Fit encodes examples and trains on them.
func (c *Classifier) Fit(ctx context.Context, examples []Example, opts FitOptions) (*History, error) {
	ds, err := c.Dataset(examples)
	if err != nil {
		return nil, err
	}
	return c.Model.Fit(ctx, ds, opts)
}

// Predict returns the positive class probability of each text.
func (c *Classifier) Predict(texts ...string) ([]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ids := make([]int32, 0, len(texts)*c.Encoder.DocSize())
	for i, text := range texts {
		doc, err := c.Encoder.Encode(text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		ids = append(ids, doc...)
	}
	return c.Model.Predict(ids, len(texts))
}
