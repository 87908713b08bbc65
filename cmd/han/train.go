package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/han/internal/config"
	"github.com/born-ml/han/internal/dataset"
	"github.com/born-ml/han/internal/han"
	"github.com/born-ml/han/internal/logging"
	"github.com/born-ml/han/internal/metrics"
)

type trainFlags struct {
	resume string
}

func newTrainCmd(flags *globalFlags) *cobra.Command {
	tf := &trainFlags{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a classifier on a JSONL dataset",
		Long: `Train a classifier on data.train and write it to --model.

Each dataset line is a JSON object {"text": "...", "label": 0|1}.

Examples:
  # Train with a config file
  han train --config han.yaml --model imdb.born

  # Override epochs from the environment
  HAN_TRAIN_EPOCHS=3 han train --config han.yaml

  # Resume from a checkpoint
  han train --config han.yaml --resume checkpoints/epoch-004.born`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, flags, tf)
		},
	}
	cmd.Flags().StringVar(&tf.resume, "resume", "", "checkpoint to resume from")
	return cmd
}

func runTrain(cmd *cobra.Command, flags *globalFlags, tf *trainFlags) error {
	cfg, logger, err := setup(flags)
	if err != nil {
		return err
	}
	defer func() { _ = logging.Sync(logger) }()
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	if cfg.Data.Train == "" {
		return fmt.Errorf("data.train is required")
	}
	examples, err := dataset.ReadJSONLFile(cfg.Data.Train)
	if err != nil {
		return err
	}
	tok, err := trainingTokenizer(cfg, flags.modelPath, dataset.Texts(examples), logger)
	if err != nil {
		return err
	}
	mc, err := modelConfig(cfg, tok, logger)
	if err != nil {
		return err
	}
	enc := encoderFor(tok, mc)
	train, err := dataset.New(examples, enc)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.Data.Train, err)
	}
	var validation *dataset.Dataset
	if cfg.Data.Validation != "" {
		if validation, err = loadDataset(cfg.Data.Validation, enc); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []han.Option{han.WithLogger(logger)}
	if cfg.Metrics.Listen != "" {
		m := metrics.New()
		opts = append(opts, han.WithMetrics(m))
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen, logger); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	model, err := han.New(mc, newBackend(), opts...)
	if err != nil {
		return err
	}
	startEpoch := 0
	if tf.resume != "" {
		startEpoch, _, err = model.LoadCheckpoint(tf.resume)
		if err != nil {
			return err
		}
		logger.Info("resumed", zap.String("checkpoint", tf.resume), zap.Int("epoch", startEpoch), zap.Int64("step", model.Step()))
		if startEpoch >= cfg.Train.Epochs {
			return fmt.Errorf("checkpoint is at epoch %d of %d, nothing to train", startEpoch, cfg.Train.Epochs)
		}
	}
	logger.Info("training",
		zap.Int("documents", train.Len()),
		zap.Int("vocab_size", mc.VocabSize),
		zap.Int("max_sentences", train.MaxSentences),
		zap.Int("max_seq", train.MaxSeq))

	hist, err := model.Fit(ctx, train, fitOptions(cfg, validation, model, startEpoch, logger))
	if err != nil {
		return err
	}
	if err := model.Save(flags.modelPath); err != nil {
		return err
	}

	last := len(hist.Loss) - 1
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "saved %s: loss %.4f accuracy %.4f", flags.modelPath, hist.Loss[last], hist.Accuracy[last])
	if len(hist.ValLoss) > 0 {
		fmt.Fprintf(out, " val_loss %.4f val_accuracy %.4f", hist.ValLoss[last], hist.ValAccuracy[last])
	}
	fmt.Fprintln(out)
	return nil
}

func fitOptions(cfg *config.Config, validation *dataset.Dataset, model *han.Model[backend], startEpoch int, logger *zap.Logger) han.FitOptions {
	opts := han.FitOptions{
		Epochs:     cfg.Train.Epochs - startEpoch,
		BatchSize:  cfg.Train.BatchSize,
		Shuffle:    cfg.Train.Shuffle,
		Seed:       cfg.Train.Seed + int64(startEpoch),
		Validation: validation,
	}
	if dir := cfg.Train.CheckpointDir; dir != "" {
		opts.OnEpoch = func(epoch int, h *han.History) error {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create checkpoint directory: %w", err)
			}
			n := startEpoch + epoch
			path := filepath.Join(dir, fmt.Sprintf("epoch-%03d.born", n))
			if err := model.SaveCheckpoint(path, n, h.Loss[epoch-1]); err != nil {
				return err
			}
			logger.Debug("checkpoint saved", zap.String("path", path))
			return nil
		}
	}
	return opts
}
