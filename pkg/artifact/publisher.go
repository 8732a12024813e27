// Package artifact owns the canonical model file. A new model is written to a
// staging file next to the canonical one and moved into place with rename(2),
// which POSIX guarantees to be atomic within one filesystem: readers see the
// previous model or the new one, never a partial file. If the rename itself
// fails the canonical file is untouched.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const dirPermissions = 0o755

var (
	ErrStage   = errors.New("failed to stage model")
	ErrReplace = errors.New("failed to replace canonical model")
)

// Writer is anything that can serialise itself to a file path.
type Writer interface {
	Write(path string) error
}

// FS is the filesystem surface the publisher needs.
type FS interface {
	MkdirAll(path string, perm os.FileMode) error
	Rename(oldpath, newpath string) error
	Remove(path string) error
	// Sync flushes a file or directory to stable storage.
	Sync(path string) error
}

type Publisher struct {
	path   string
	fs     FS
	logger *slog.Logger
}

func NewPublisher(path string, fs FS, logger *slog.Logger) *Publisher {
	if fs == nil {
		fs = OSFS{}
	}

	return &Publisher{
		path:   path,
		fs:     fs,
		logger: logger,
	}
}

// Path is the canonical model location.
func (p *Publisher) Path() string {
	return p.path
}

func (p *Publisher) Publish(ctx context.Context, model Writer) error {
	dir := filepath.Dir(p.path)
	if err := p.fs.MkdirAll(dir, dirPermissions); err != nil {
		return errors.Join(ErrStage, err)
	}

	staging := p.stagingPath()
	if err := model.Write(staging); err != nil {
		p.discard(ctx, staging)

		return errors.Join(ErrStage, err)
	}
	if err := p.fs.Sync(staging); err != nil {
		p.discard(ctx, staging)

		return errors.Join(ErrStage, err)
	}

	if err := p.fs.Rename(staging, p.path); err != nil {
		p.discard(ctx, staging)

		return errors.Join(ErrReplace, err)
	}

	if err := p.fs.Sync(dir); err != nil {
		p.logger.WarnContext(ctx, "failed to sync model directory", slog.String("dir", dir), slog.Any("error", err))
	}

	p.logger.DebugContext(ctx, "published model", slog.String("path", p.path))

	return nil
}

func (p *Publisher) stagingPath() string {
	base := filepath.Base(p.path)

	return filepath.Join(filepath.Dir(p.path), fmt.Sprintf(".%s.staging-%s", base, uuid.NewString()))
}

func (p *Publisher) discard(ctx context.Context, staging string) {
	if err := p.fs.Remove(staging); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.WarnContext(ctx, "failed to remove staging model", slog.String("path", staging), slog.Any("error", err))
	}
}

type OSFS struct{}

var _ FS = OSFS{}

func (OSFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (OSFS) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (OSFS) Remove(path string) error {
	return os.Remove(path)
}

func (OSFS) Sync(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return f.Sync()
}
