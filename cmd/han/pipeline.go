package main

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand"

	"go.uber.org/zap"

	"github.com/born-ml/han/internal/autodiff"
	"github.com/born-ml/han/internal/backend/cpu"
	"github.com/born-ml/han/internal/config"
	"github.com/born-ml/han/internal/dataset"
	"github.com/born-ml/han/internal/han"
	"github.com/born-ml/han/internal/logging"
	"github.com/born-ml/han/internal/tokenizer"
)

type backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func newBackend() backend {
	return autodiff.New(cpu.New())
}

// setup loads configuration and builds the logger.
func setup(flags *globalFlags) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// vocabPath is where the word vocabulary lives: tokenizer.vocab, or next to
// the model file.
func vocabPath(cfg *config.Config, modelPath string) string {
	if cfg.Tokenizer.Vocab != "" {
		return cfg.Tokenizer.Vocab
	}
	return modelPath + ".vocab"
}

// openTokenizer opens the tokenizer a trained model was built with.
func openTokenizer(cfg *config.Config, modelPath string) (tokenizer.Tokenizer, error) {
	if cfg.Tokenizer.Kind == tokenizer.KindTikToken {
		return tokenizer.New(tokenizer.KindTikToken, cfg.Tokenizer.Encoding)
	}
	return tokenizer.New(tokenizer.KindWord, vocabPath(cfg, modelPath))
}

// trainingTokenizer opens the configured tokenizer. A missing word
// vocabulary is built from texts and saved.
func trainingTokenizer(cfg *config.Config, modelPath string, texts []string, logger *zap.Logger) (tokenizer.Tokenizer, error) {
	if cfg.Tokenizer.Kind == tokenizer.KindTikToken {
		return tokenizer.New(tokenizer.KindTikToken, cfg.Tokenizer.Encoding)
	}

	path := vocabPath(cfg, modelPath)
	vocab, err := tokenizer.LoadWordVocabFile(path)
	if err == nil {
		logger.Info("loaded vocabulary", zap.String("path", path), zap.Int("size", vocab.VocabSize()))
		return vocab, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	vocab = tokenizer.BuildWordVocab(texts, tokenizer.VocabOptions{
		MinCount: cfg.Tokenizer.MinCount,
		MaxSize:  cfg.Tokenizer.MaxSize,
	})
	if err := vocab.SaveFile(path); err != nil {
		return nil, err
	}
	logger.Info("built vocabulary", zap.String("path", path), zap.Int("size", vocab.VocabSize()))
	return vocab, nil
}

// modelConfig completes the model section with the vocabulary size and, when
// configured, the pretrained embedding table.
func modelConfig(cfg *config.Config, tok tokenizer.Tokenizer, logger *zap.Logger) (han.Config, error) {
	mc := cfg.Model
	mc.VocabSize = tok.VocabSize()
	if mc.MaxSentences == 0 {
		mc.MaxSentences = 1
	}
	if cfg.Data.Embeddings == "" {
		return mc, nil
	}

	vocab, ok := tok.(*tokenizer.WordVocab)
	if !ok {
		return mc, errors.New("pretrained embeddings require the word tokenizer")
	}
	rng := rand.New(rand.NewSource(mc.Seed)) //nolint:gosec // embedding init, not crypto
	weights, found, err := dataset.LoadEmbeddingsFile(cfg.Data.Embeddings, vocab, mc.EmbeddingSize, rng)
	if err != nil {
		return mc, err
	}
	logger.Info("loaded pretrained embeddings",
		zap.String("path", cfg.Data.Embeddings),
		zap.Int("found", found),
		zap.Int("vocab_size", vocab.VocabSize()))
	mc.EmbeddingWeights = weights
	return mc, nil
}

func encoderFor(tok tokenizer.Tokenizer, mc han.Config) *dataset.Encoder {
	return &dataset.Encoder{Tokenizer: tok, MaxSentences: mc.MaxSentences, MaxSeq: mc.MaxSeq}
}

func loadDataset(path string, enc *dataset.Encoder) (*dataset.Dataset, error) {
	examples, err := dataset.ReadJSONLFile(path)
	if err != nil {
		return nil, err
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("%s: no examples", path)
	}
	return dataset.New(examples, enc)
}
