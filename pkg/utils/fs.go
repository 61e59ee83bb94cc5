package utils

import (
	"bufio"
	"context"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/copy"
	"github.com/pkg/errors"
)

func IsFileExists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

// CopyFile copies a single regular file, failing if dst already exists.
func CopyFile(src string, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func(in *os.File) {
		err := in.Close()
		if err != nil {
			log.Println(err)
		}
	}(in)

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}

	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}

	return err
}

type CopyTreeOptions struct {
	// Skip returns true for paths (relative to the source root) that must not be copied.
	Skip func(rel string, info os.FileInfo) bool
	// OnError is called for every file that failed to copy. Returning nil
	// continues the copy, returning an error aborts it.
	OnError func(src, dst string, err error) error
}

func CopyTree(src string, dst string, opts CopyTreeOptions) error {
	o := copy.Options{
		OnSymlink: func(string) copy.SymlinkAction {
			return copy.Shallow
		},
		PreserveTimes: true,
	}

	if opts.Skip != nil {
		o.Skip = func(info os.FileInfo, path, _ string) (bool, error) {
			rel, err := filepath.Rel(src, path)
			if err != nil {
				return false, err
			}
			if rel == "." {
				return false, nil
			}

			return opts.Skip(filepath.ToSlash(rel), info), nil
		}
	}

	if opts.OnError != nil {
		o.OnError = func(srcPath, dstPath string, err error) error {
			if err == nil {
				return nil
			}

			return opts.OnError(srcPath, dstPath, err)
		}
	}

	return copy.Copy(src, dst, o)
}

// LineReplacement replaces the first line starting with Prefix (leading
// whitespace ignored) by Line.
type LineReplacement struct {
	Prefix string
	Line   string
}

// FindLineAndReplaceOrAdd replaces matching lines in place and appends the
// lines whose prefixes were not found, in the given order.
func FindLineAndReplaceOrAdd(ctx context.Context, path string, replacements []LineReplacement) error {
	return findInFileAndReplaceOrAdd(ctx, path, replacements, true)
}

func findInFileAndReplaceOrAdd(ctx context.Context, path string, replacements []LineReplacement, add bool) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil && !errors.Is(err, fs.ErrClosed) {
			log.Println(err)
		}
	}(file)

	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".replace-*")
	if err != nil {
		return err
	}
	defer func(tmpFile *os.File) {
		err := tmpFile.Close()
		if err != nil && !errors.Is(err, fs.ErrClosed) {
			log.Println(err)
		}
		_ = os.Remove(tmpFile.Name())
	}(tmpFile)

	err = findLineAndReplaceOrAdd(ctx, file, tmpFile, replacements, add)
	if err != nil {
		return err
	}

	err = tmpFile.Chmod(info.Mode().Perm())
	if err != nil {
		return err
	}

	err = file.Close()
	if err != nil {
		return err
	}
	err = tmpFile.Close()
	if err != nil {
		return err
	}

	return os.Rename(tmpFile.Name(), path)
}

func findLineAndReplaceOrAdd(
	_ context.Context,
	r io.Reader,
	w io.Writer,
	replacements []LineReplacement,
	add bool,
) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) //nolint:mnd
	writer := bufio.NewWriter(w)

	done := make([]bool, len(replacements))

	for scanner.Scan() {
		line := scanner.Text()
		trimmedLine := strings.TrimSpace(line)

		for i, replacement := range replacements {
			if done[i] || !strings.HasPrefix(trimmedLine, replacement.Prefix) {
				continue
			}

			fi := strings.Index(line, trimmedLine)

			line = line[:fi] + replacement.Line
			done[i] = true

			break
		}

		if _, err := writer.WriteString(line); err != nil {
			return err
		}
		if err := writer.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if add {
		for i, replacement := range replacements {
			if done[i] {
				continue
			}
			if _, err := writer.WriteString(replacement.Line); err != nil {
				return err
			}
			if err := writer.WriteByte('\n'); err != nil {
				return err
			}
		}
	}

	return writer.Flush()
}
