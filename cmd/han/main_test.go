package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trainJSONL = `{"text": "good fine. good day", "label": 1}
{"text": "fine good good", "label": 1}
{"text": "a good day. fine", "label": 1}
{"text": "bad awful. bad day", "label": 0}
{"text": "awful bad bad", "label": 0}
{"text": "a bad day. awful", "label": 0}
`

const glove = `good 0.1 0.2 0.3 0.4
bad -0.1 -0.2 -0.3 -0.4
`

type workspace struct {
	dir    string
	config string
	model  string
}

func newWorkspace(t *testing.T, extra string) workspace {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}
	train := write("train.jsonl", trainJSONL)
	cfg := write("han.yaml", `
model:
  max_seq: 4
  max_sentences: 2
  embedding_size: 4
  word_rnn_size: 3
  sentence_rnn_size: 3
  word_dense_size: 4
  sentence_dense_size: 4
  mask_padding: true
train:
  epochs: 2
  batch_size: 3
data:
  train: `+train+`
  validation: `+train+`
logging:
  level: error
`+extra)
	return workspace{dir: dir, config: cfg, model: filepath.Join(dir, "model.born")}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "han "+version+"\n", out)
}

func TestTrainEvaluatePredict(t *testing.T) {
	ws := newWorkspace(t, "")

	out, err := run(t, "train", "--config", ws.config, "--model", ws.model)
	require.NoError(t, err, out)
	assert.Contains(t, out, "saved "+ws.model)
	assert.Contains(t, out, "val_accuracy")
	assert.FileExists(t, ws.model)
	assert.FileExists(t, ws.model+".vocab")

	out, err = run(t, "evaluate", "--config", ws.config, "--model", ws.model)
	require.NoError(t, err, out)
	assert.Contains(t, out, "documents 6")

	out, err = run(t, "predict", "--config", ws.config, "--model", ws.model, "good day", "bad day")
	require.NoError(t, err, out)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "good day")

	out, err = run(t, "summary", "--model", ws.model)
	require.NoError(t, err, out)
	assert.Contains(t, out, "sentence_attention")
}

func TestTrain_CheckpointsAndResume(t *testing.T) {
	ws := newWorkspace(t, "")
	ckpt := filepath.Join(ws.dir, "ckpt")
	t.Setenv("HAN_TRAIN_CHECKPOINT_DIR", ckpt)

	_, err := run(t, "train", "--config", ws.config, "--model", ws.model)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(ckpt, "epoch-001.born"))
	assert.FileExists(t, filepath.Join(ckpt, "epoch-002.born"))

	t.Setenv("HAN_TRAIN_EPOCHS", "3")
	out, err := run(t, "train", "--config", ws.config, "--model", ws.model, "--resume", filepath.Join(ckpt, "epoch-002.born"))
	require.NoError(t, err, out)
	assert.FileExists(t, filepath.Join(ckpt, "epoch-003.born"))

	_, err = run(t, "train", "--config", ws.config, "--model", ws.model, "--resume", filepath.Join(ckpt, "epoch-003.born"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to train")
}

func TestTrain_PretrainedEmbeddings(t *testing.T) {
	ws := newWorkspace(t, "")
	vectors := filepath.Join(ws.dir, "glove.txt")
	require.NoError(t, os.WriteFile(vectors, []byte(glove), 0o600))
	t.Setenv("HAN_DATA_EMBEDDINGS", vectors)

	_, err := run(t, "train", "--config", ws.config, "--model", ws.model)
	require.NoError(t, err)

	out, err := run(t, "summary", "--model", ws.model)
	require.NoError(t, err)
	assert.NotContains(t, out, "Non-trainable params: 0\n")
}

func TestTrain_RequiresData(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "han.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("model:\n  max_seq: 4\n"), 0o600))
	_, err := run(t, "train", "--config", cfg, "--model", filepath.Join(t.TempDir(), "m.born"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data.train")
}

func TestPredict_NoDocuments(t *testing.T) {
	ws := newWorkspace(t, "")
	_, err := run(t, "predict", "--config", ws.config, "--model", ws.model)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no documents")
}
