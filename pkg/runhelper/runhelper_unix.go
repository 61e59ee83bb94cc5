//go:build linux || darwin

package runhelper

import (
	"context"
	"log"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	InitUnknown = "unknown"
	InitSystemd = "systemd"
)

func DetectInit(ctx context.Context) (string, error) {
	p, err := process.NewProcessWithContext(ctx, 1)
	if err != nil {
		return InitUnknown, errors.WithMessage(err, "failed to load process with pid 1")
	}

	exe, err := p.ExeWithContext(ctx)
	if err != nil {
		// Unprivileged users often can't read /proc/1/exe, the name is enough then.
		name, nameErr := p.NameWithContext(ctx)
		if nameErr != nil {
			return InitUnknown, errors.WithMessage(err, "failed to get executable path of the process")
		}

		return initByName(name), nil
	}

	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	return initByName(filepath.Base(exe)), nil
}

func initByName(name string) string {
	if name == InitSystemd {
		log.Println("Detected systemd init")

		return InitSystemd
	}

	log.Println("Unsupported init:", name)

	return InitUnknown
}

// ProcessInfo is a short description of a running process.
type ProcessInfo struct {
	PID        int32
	Name       string
	Cmdline    string
	RSS        uint64
	CreateTime int64
}

// FindProcess returns information about the process with pid,
// or nil if it is not running.
func FindProcess(ctx context.Context, pid int32) (*ProcessInfo, error) {
	if pid <= 0 {
		return nil, nil //nolint:nilnil
	}

	running, err := process.PidExistsWithContext(ctx, pid)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to check process existence")
	}
	if !running {
		return nil, nil //nolint:nilnil
	}

	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load process")
	}

	info := &ProcessInfo{PID: pid}
	info.Name, _ = p.NameWithContext(ctx)
	info.Cmdline, _ = p.CmdlineWithContext(ctx)
	info.CreateTime, _ = p.CreateTimeWithContext(ctx)
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		info.RSS = mem.RSS
	}

	return info, nil
}
