//go:build linux || darwin

package oscore

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ChownRecursive changes the ownership of path and everything under it.
// When the process is not allowed to do it directly, chown is run through sudo.
func ChownRecursive(ctx context.Context, path string, identity Identity) error {
	err := ChownR(ctx, path, identity.UID, identity.GID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrPermission) {
		return errors.Wrap(err, "failed to chown")
	}

	owner := strconv.Itoa(identity.UID) + ":" + strconv.Itoa(identity.GID)

	err = ExecPrivileged(ctx, "chown", "-R", owner, path)
	if err != nil {
		return errors.WithMessage(err, "failed to exec chown command")
	}

	return nil
}

// ChownR recursively changes the ownership of all files and directories under path.
// Based on https://github.com/gutengo/fil/blob/6109b2e0b5cfdefdef3a254cc1a3eaa35bc89284/file.go#L27
func ChownR(ctx context.Context, path string, uid, gid int) error {
	return filepath.Walk(path, func(name string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			// Ignore invalid
			//nolint:nilerr
			return nil
		}

		if owned, _ := isOwnedBy(info, uid, gid); owned {
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return os.Lchown(name, uid, gid)
		}

		return os.Chown(name, uid, gid)
	})
}

func isOwnedBy(info os.FileInfo, uid, gid int) (bool, error) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return false, errors.New("unsupported file info")
	}

	return int(st.Uid) == uid && int(st.Gid) == gid, nil
}

// IsWritableBy reports whether the directory can be written by the given uid.
func IsWritableBy(path string, uid int) bool {
	if uid == unix.Getuid() {
		return unix.Access(path, unix.W_OK) == nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}

	return int(st.Uid) == uid && info.Mode().Perm()&0o200 != 0
}
