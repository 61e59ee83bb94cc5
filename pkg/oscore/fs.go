package oscore

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// Filesystem performs filesystem mutations as the current user and falls back
// to sudo when the current user lacks permission.
type Filesystem struct{}

func NewFilesystem() *Filesystem {
	return &Filesystem{}
}

func (f *Filesystem) MkdirAll(ctx context.Context, path string, perm os.FileMode) error {
	err := os.MkdirAll(path, perm)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrPermission) {
		return err
	}

	err = ExecPrivileged(ctx, "mkdir", "-p", "-m", strconv.FormatUint(uint64(perm.Perm()), 8), path)
	if err != nil {
		return errors.WithMessage(err, "failed to exec mkdir command")
	}

	return nil
}

func (f *Filesystem) Chown(ctx context.Context, path string, identity Identity) error {
	return ChownRecursive(ctx, path, identity)
}

// WriteFile writes data to path. If the destination directory is not writable
// the data is staged in a temporary file and installed with sudo.
func (f *Filesystem) WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	err := os.WriteFile(path, data, perm)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrPermission) {
		return err
	}

	tmp, err := os.CreateTemp("", filepath.Base(path))
	if err != nil {
		return errors.WithMessage(err, "failed to create temp file")
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.WithMessage(err, "failed to write temp file")
	}

	err = ExecPrivileged(
		ctx,
		"install", "-m", strconv.FormatUint(uint64(perm.Perm()), 8), tmp.Name(), path,
	)
	if err != nil {
		return errors.WithMessage(err, "failed to exec install command")
	}

	return nil
}

func (f *Filesystem) RemoveAll(ctx context.Context, path string) error {
	err := os.RemoveAll(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrPermission) {
		return err
	}

	err = ExecPrivileged(ctx, "rm", "-rf", "--", path)
	if err != nil {
		return errors.WithMessage(err, "failed to exec rm command")
	}

	return nil
}
