package botctl

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/xuibot/botctl/pkg/installer"
)

const (
	installStateFile = "install_state.json"
)

type InstallState struct {
	Target         installer.Target `json:"target"`
	CompletedSteps []string         `json:"completedSteps"`
	StartedAt      time.Time        `json:"startedAt"`
	FinishedAt     time.Time        `json:"finishedAt,omitempty"`
	Succeeded      bool             `json:"succeeded"`
	LastError      string           `json:"lastError,omitempty"`
}

// CompletedFor returns the steps completed for the same install directory
// and service, nothing for another target.
func (s InstallState) CompletedFor(target installer.Target) []string {
	if s.Target.InstallDir != target.InstallDir || s.Target.ServiceName != target.ServiceName {
		return nil
	}

	return s.CompletedSteps
}

func (s *InstallState) MarkCompleted(step string) {
	if !lo.Contains(s.CompletedSteps, step) {
		s.CompletedSteps = append(s.CompletedSteps, step)
	}
}

func SaveInstallState(_ context.Context, state InstallState) error {
	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.WithMessage(err, "failed to marshal json")
	}

	dir, err := StateDirectory()
	if err != nil {
		return errors.WithMessage(err, "failed to get state directory")
	}

	err = os.WriteFile(
		filepath.Join(dir, installStateFile),
		b,
		0600,
	)
	if err != nil {
		return errors.WithMessage(err, "failed to write file")
	}

	return nil
}

func LoadInstallState(_ context.Context) (InstallState, error) {
	var state InstallState

	dir, err := StateDirectory()
	if err != nil {
		return state, errors.WithMessage(err, "failed to get state directory")
	}

	b, err := os.ReadFile(filepath.Join(dir, installStateFile))
	if err != nil {
		return state, errors.WithMessage(err, "failed to read file")
	}

	err = json.Unmarshal(b, &state)
	if err != nil {
		return state, errors.WithMessage(err, "failed to unmarshal json")
	}

	return state, nil
}

func RemoveInstallState(_ context.Context) error {
	dir, err := StateDirectory()
	if err != nil {
		return errors.WithMessage(err, "failed to get state directory")
	}

	err = os.Remove(filepath.Join(dir, installStateFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.WithMessage(err, "failed to remove file")
	}

	return nil
}
