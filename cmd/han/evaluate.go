package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/born-ml/han/internal/dataset"
	"github.com/born-ml/han/internal/han"
	"github.com/born-ml/han/internal/logging"
)

type predictFlags struct {
	file string
}

func newEvaluateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate [dataset.jsonl]",
		Short: "Report loss and accuracy of a trained model",
		Long: `Evaluate --model on a labelled JSONL dataset. Without an argument the
configured data.validation set is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			defer func() { _ = logging.Sync(logger) }()

			path := cfg.Data.Validation
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no dataset given and data.validation is not set")
			}

			model, err := han.LoadModel(flags.modelPath, newBackend(), han.WithLogger(logger))
			if err != nil {
				return err
			}
			tok, err := openTokenizer(cfg, flags.modelPath)
			if err != nil {
				return err
			}
			ds, err := loadDataset(path, encoderFor(tok, model.Config()))
			if err != nil {
				return err
			}
			loss, acc, err := model.EvaluateDataset(ds, cfg.Train.BatchSize)
			if err != nil {
				return err
			}
			logger.Debug("evaluated", zap.String("dataset", path), zap.Int("documents", ds.Len()))
			fmt.Fprintf(cmd.OutOrStdout(), "documents %d loss %.4f accuracy %.4f\n", ds.Len(), loss, acc)
			return nil
		},
	}
}

func newPredictCmd(flags *globalFlags) *cobra.Command {
	pf := &predictFlags{}
	cmd := &cobra.Command{
		Use:   "predict [text...]",
		Short: "Print the positive class probability of documents",
		Long: `Score each text argument, or every document of --file (JSONL, labels
ignored), and print "probability<TAB>label<TAB>text" per document.

Examples:
  han predict --model imdb.born "A wonderful film. I laughed a lot."
  han predict --model imdb.born --file reviews.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			defer func() { _ = logging.Sync(logger) }()

			texts := args
			if pf.file != "" {
				examples, err := dataset.ReadJSONLFile(pf.file)
				if err != nil {
					return err
				}
				texts = append(texts, dataset.Texts(examples)...)
			}
			if len(texts) == 0 {
				return fmt.Errorf("no documents: pass text arguments or --file")
			}

			model, err := han.LoadModel(flags.modelPath, newBackend(), han.WithLogger(logger))
			if err != nil {
				return err
			}
			tok, err := openTokenizer(cfg, flags.modelPath)
			if err != nil {
				return err
			}
			enc := encoderFor(tok, model.Config())

			ids := make([]int32, 0, len(texts)*enc.DocSize())
			for i, text := range texts {
				doc, err := enc.Encode(text)
				if err != nil {
					return fmt.Errorf("document %d: %w", i, err)
				}
				ids = append(ids, doc...)
			}
			probs, err := model.Predict(ids, len(texts))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for i, p := range probs {
				label := 0
				if p > 0.5 {
					label = 1
				}
				fmt.Fprintf(w, "%.4f\t%d\t%s\n", p, label, texts[i])
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&pf.file, "file", "", "JSONL file of documents to score")
	return cmd
}

func newSummaryCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the layer table of a trained model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			model, err := han.LoadModel(flags.modelPath, newBackend())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), model.Summary())
			return nil
		},
	}
}
