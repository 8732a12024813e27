package artifact

import (
	"fmt"
	"io"
	"os"
)

const filePermissions = 0o644

// File is a model that already exists on disk, e.g. one pulled from a registry.
type File string

func (f File) Write(path string) error {
	src, err := os.Open(string(f))
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePermissions)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()

		return fmt.Errorf("failed to copy %s: %w", string(f), err)
	}

	return dst.Close()
}
