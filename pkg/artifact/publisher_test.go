package artifact_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/absmach/flclient/pkg/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errCrash = errors.New("process killed")

type bytesModel []byte

func (b bytesModel) Write(path string) error {
	return os.WriteFile(path, b, 0o644)
}

type failingModel struct{}

func (failingModel) Write(path string) error {
	if err := os.WriteFile(path, []byte("half a mod"), 0o644); err != nil {
		return err
	}

	return errors.New("disk full")
}

// crashFS stops just before the canonical file would be replaced.
type crashFS struct {
	artifact.OSFS
}

func (crashFS) Rename(_, _ string) error {
	return errCrash
}

func newPublisher(t *testing.T, fs artifact.FS) (*artifact.Publisher, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "models", "model.bin")

	return artifact.NewPublisher(path, fs, slog.New(slog.DiscardHandler)), path
}

func stagingFiles(t *testing.T, dir string) []string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, ".*.staging-*"))
	require.NoError(t, err)

	return matches
}

func TestPublish(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc    string
		fs      artifact.FS
		model   artifact.Writer
		err     error
		content string
	}{
		{
			desc:    "replaces canonical model",
			model:   bytesModel("model-v2"),
			content: "model-v2",
		},
		{
			desc:    "staging write fails",
			model:   failingModel{},
			err:     artifact.ErrStage,
			content: "model-v1",
		},
		{
			desc:    "crash between staging and replace",
			fs:      crashFS{},
			model:   bytesModel("model-v2"),
			err:     artifact.ErrReplace,
			content: "model-v1",
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			pub, path := newPublisher(t, tc.fs)
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, []byte("model-v1"), 0o644))

			err := pub.Publish(context.Background(), tc.model)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			} else {
				assert.NoError(t, err)
			}

			got, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tc.content, string(got))
			assert.Empty(t, stagingFiles(t, filepath.Dir(path)))
		})
	}
}

func TestPublishCreatesDirectory(t *testing.T) {
	t.Parallel()

	pub, path := newPublisher(t, nil)
	require.NoError(t, pub.Publish(context.Background(), bytesModel("fresh")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(got))
	assert.Equal(t, path, pub.Path())
}

func TestFileModel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "pulled.bin")
	require.NoError(t, os.WriteFile(src, []byte("pulled"), 0o644))

	pub, path := newPublisher(t, nil)
	require.NoError(t, pub.Publish(context.Background(), artifact.File(src)))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pulled", string(got))

	err = pub.Publish(context.Background(), artifact.File(filepath.Join(dir, "missing.bin")))
	assert.ErrorIs(t, err, artifact.ErrStage)
}
