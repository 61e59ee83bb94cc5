package botctl

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const stateDirName = ".botctl"

// homeDir is replaced in tests.
var homeDir = os.UserHomeDir

func StateDirectory() (string, error) {
	home, err := homeDir()
	if err != nil {
		return "", errors.WithMessage(err, "failed to get user home dir")
	}

	dir := filepath.Join(home, stateDirName)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		err = os.Mkdir(dir, 0700)
		if err != nil {
			return "", errors.WithMessage(err, "failed to create state directory")
		}
	}

	return dir, nil
}

// LogsDirectory keeps one log file per run.
func LogsDirectory() (string, error) {
	dir, err := StateDirectory()
	if err != nil {
		return "", err
	}

	logsDir := filepath.Join(dir, "logs")
	if err = os.MkdirAll(logsDir, 0700); err != nil {
		return "", errors.WithMessage(err, "failed to create logs directory")
	}

	return logsDir, nil
}
