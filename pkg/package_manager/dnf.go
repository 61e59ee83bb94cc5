package packagemanager

import (
	"context"
	"errors"
	"os/exec"
)

// dnf drives dnf or its predecessor yum, both accept the same arguments here.
type dnf struct {
	command string
	run     commandRunner
}

// check-update exits with 100 when updates are available.
const dnfUpdatesAvailableExitCode = 100

func (d *dnf) CheckForUpdates(ctx context.Context) error {
	err := d.run(ctx, nil, d.command, "check-update", "-q")

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == dnfUpdatesAvailableExitCode {
		return nil
	}

	return err
}

func (d *dnf) Upgrade(ctx context.Context) error {
	return d.run(ctx, nil, d.command, "upgrade", "-y", "-q")
}

func (d *dnf) Install(ctx context.Context, packs ...string) error {
	return d.run(ctx, nil, d.command, installArgs([]string{"install", "-y", "-q"}, packs)...)
}
