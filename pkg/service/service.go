package service

import (
	"bytes"
	"context"
	"log"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuibot/botctl/pkg/oscore"
	"github.com/xuibot/botctl/pkg/utils"
)

type Service interface {
	Start(ctx context.Context, serviceName string) error
	Stop(ctx context.Context, serviceName string) error
	Restart(ctx context.Context, serviceName string) error
	Status(ctx context.Context, serviceName string) error
}

// Manager is a Service that can also register units.
type Manager interface {
	Service
	DaemonReload(ctx context.Context) error
	Enable(ctx context.Context, serviceName string) error
	Disable(ctx context.Context, serviceName string) error
	// ActiveState returns the unit state as reported by systemctl is-active,
	// e.g. "active", "inactive", "failed", "activating".
	ActiveState(ctx context.Context, serviceName string) (string, error)
	MainPID(ctx context.Context, serviceName string) (int32, error)
}

const StateActive = "active"

// Load returns the host service manager.
//
//nolint:ireturn,nolintlint
func Load(_ context.Context) (Manager, error) {
	if !utils.IsCommandAvailable("systemctl") {
		return nil, ErrServiceManagerNotFound
	}

	return NewSystemd(), nil
}

// Restart restarts the service, falling back to stop and start.
func Restart(ctx context.Context, s Service, serviceName string) error {
	err := s.Restart(ctx, serviceName)
	if err != nil {
		slog.WarnContext(
			ctx,
			"failed to restart",
			slog.String("service", serviceName),
			slog.String("err", err.Error()),
		)
		err = s.Stop(ctx, serviceName)
		if err != nil {
			slog.WarnContext(
				ctx,
				"failed to stop",
				slog.String("service", serviceName),
				slog.String("err", err.Error()),
			)
		}

		return s.Start(ctx, serviceName)
	}

	return nil
}

// systemctlRunner runs systemctl and returns its stdout.
type systemctlRunner func(ctx context.Context, privileged bool, args ...string) (string, error)

func runSystemctl(ctx context.Context, privileged bool, args ...string) (string, error) {
	var cmd *exec.Cmd
	if privileged {
		cmd = oscore.PrivilegedCommand(ctx, "systemctl", args...)
	} else {
		cmd = exec.CommandContext(ctx, "systemctl", args...)
	}

	buf := &bytes.Buffer{}
	cmd.Stdout = buf
	cmd.Stderr = log.Writer()
	log.Println('\n', cmd.String())

	err := cmd.Run()
	log.Print(buf.String())

	return buf.String(), err
}

type Systemd struct {
	run systemctlRunner
}

func NewSystemd() *Systemd {
	return &Systemd{run: runSystemctl}
}

func (s *Systemd) Start(ctx context.Context, serviceName string) error {
	_, err := s.run(ctx, true, "start", unitName(serviceName))

	return err
}

func (s *Systemd) Stop(ctx context.Context, serviceName string) error {
	_, err := s.run(ctx, true, "stop", unitName(serviceName))

	return err
}

func (s *Systemd) Restart(ctx context.Context, serviceName string) error {
	_, err := s.run(ctx, true, "restart", unitName(serviceName))

	return err
}

func (s *Systemd) DaemonReload(ctx context.Context) error {
	_, err := s.run(ctx, true, "daemon-reload")

	return err
}

func (s *Systemd) Enable(ctx context.Context, serviceName string) error {
	_, err := s.run(ctx, true, "enable", unitName(serviceName))

	return err
}

func (s *Systemd) Disable(ctx context.Context, serviceName string) error {
	_, err := s.run(ctx, true, "disable", unitName(serviceName))

	return err
}

const (
	systemDStatusInactive = 3
	systemDStatusNotFound = 4
)

func (s *Systemd) Status(ctx context.Context, serviceName string) error {
	_, err := s.run(ctx, false, "--no-pager", "status", unitName(serviceName))
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return errors.WithMessage(err, "service status command failed")
	}

	switch exitErr.ExitCode() {
	case systemDStatusInactive:
		return ErrInactiveService
	case systemDStatusNotFound:
		return NewNotFoundError(serviceName)
	default:
		return errors.Wrapf(err, "service status command failed with exit code %d", exitErr.ExitCode())
	}
}

// ActiveState never fails on an inactive unit: is-active exits non-zero
// for every state but "active", the state itself is printed on stdout.
func (s *Systemd) ActiveState(ctx context.Context, serviceName string) (string, error) {
	out, err := s.run(ctx, false, "is-active", unitName(serviceName))
	state := strings.TrimSpace(out)

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return "", errors.WithMessage(err, "failed to query service state")
	}
	if state == "" {
		return "unknown", nil
	}

	return state, nil
}

func (s *Systemd) MainPID(ctx context.Context, serviceName string) (int32, error) {
	out, err := s.run(ctx, false, "show", "--property=MainPID", "--value", unitName(serviceName))
	if err != nil {
		return 0, errors.WithMessage(err, "failed to query main pid")
	}

	pid, err := strconv.ParseInt(strings.TrimSpace(out), 10, 32)
	if err != nil {
		return 0, errors.WithMessage(err, "failed to parse main pid")
	}

	return int32(pid), nil
}

func unitName(serviceName string) string {
	if strings.HasSuffix(serviceName, ".service") {
		return serviceName
	}

	return serviceName + ".service"
}
