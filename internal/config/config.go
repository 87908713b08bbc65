// Package config loads trainer configuration from a YAML file and HAN_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/born-ml/han/internal/han"
	"github.com/born-ml/han/internal/logging"
	"github.com/born-ml/han/internal/tokenizer"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix marks environment overrides.
	EnvPrefix = "HAN_"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full trainer configuration.
type Config struct {
	Model     han.Config      `koanf:"model"`
	Train     TrainConfig     `koanf:"train"`
	Tokenizer TokenizerConfig `koanf:"tokenizer"`
	Data      DataConfig      `koanf:"data"`
	Logging   logging.Config  `koanf:"logging"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// TrainConfig controls the training loop.
type TrainConfig struct {
	Epochs    int   `koanf:"epochs"`
	BatchSize int   `koanf:"batch_size"`
	Shuffle   bool  `koanf:"shuffle"`
	Seed      int64 `koanf:"seed"`
	// CheckpointDir receives one checkpoint per epoch when set.
	CheckpointDir string `koanf:"checkpoint_dir"`
}

// TokenizerConfig selects how text becomes word ids.
type TokenizerConfig struct {
	Kind string `koanf:"kind"` // "word" or "tiktoken"
	// Vocab is the word vocabulary file. When it does not exist it is built
	// from the training texts and written there.
	Vocab    string `koanf:"vocab"`
	Encoding string `koanf:"encoding"` // tiktoken encoding name
	MinCount int    `koanf:"min_count"`
	MaxSize  int    `koanf:"max_size"`
}

// DataConfig names the input files.
type DataConfig struct {
	Train      string `koanf:"train"`      // JSONL training set
	Validation string `koanf:"validation"` // JSONL validation set, optional
	// Embeddings is a word2vec/GloVe text file. Requires the word tokenizer.
	Embeddings string `koanf:"embeddings"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `koanf:"listen"` // e.g. ":9090"; empty disables
}

// Default returns the built-in configuration.
func Default() Config {
	model := han.DefaultConfig()
	model.MaxSeq = 100
	model.EmbeddingSize = 100
	return Config{
		Model: model,
		Train: TrainConfig{
			Epochs:    10,
			BatchSize: 32,
			Shuffle:   true,
			Seed:      1,
		},
		Tokenizer: TokenizerConfig{
			Kind:     tokenizer.KindWord,
			Encoding: "cl100k_base",
			MinCount: 1,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads configuration with precedence environment, then the YAML file
// at path (optional, empty skips it), then Default.
//
// Environment variables are HAN_ followed by the section and the field,
// split on the first underscore:
//
//	HAN_TRAIN_BATCH_SIZE  -> train.batch_size
//	HAN_MODEL_MAX_SEQ     -> model.max_seq
//	HAN_LOGGING_LEVEL     -> logging.level
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("%w: config file too large: %d bytes (max %d)", ErrInvalid, info.Size(), maxConfigFileSize)
		}
		//nolint:gosec // G304: path is supplied by the operator
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey maps HAN_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

// Validate checks the parts of the configuration known before data is read.
// Vocabulary size is only known once the tokenizer is loaded, so the model
// section is fully validated by han.New.
func (c *Config) Validate() error {
	if c.Model.MaxSeq <= 0 {
		return fmt.Errorf("%w: model.max_seq must be positive, got %d", ErrInvalid, c.Model.MaxSeq)
	}
	if c.Model.MaxSentences < 0 {
		return fmt.Errorf("%w: model.max_sentences must not be negative, got %d", ErrInvalid, c.Model.MaxSentences)
	}
	if c.Model.EmbeddingSize <= 0 {
		return fmt.Errorf("%w: model.embedding_size must be positive, got %d", ErrInvalid, c.Model.EmbeddingSize)
	}
	if c.Train.Epochs <= 0 {
		return fmt.Errorf("%w: train.epochs must be positive, got %d", ErrInvalid, c.Train.Epochs)
	}
	if c.Train.BatchSize <= 0 {
		return fmt.Errorf("%w: train.batch_size must be positive, got %d", ErrInvalid, c.Train.BatchSize)
	}

	switch c.Tokenizer.Kind {
	case tokenizer.KindWord:
	case tokenizer.KindTikToken:
		if c.Data.Embeddings != "" {
			return fmt.Errorf("%w: data.embeddings requires the word tokenizer", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown tokenizer.kind %q", ErrInvalid, c.Tokenizer.Kind)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("%w: logging: %w", ErrInvalid, err)
	}
	return nil
}
