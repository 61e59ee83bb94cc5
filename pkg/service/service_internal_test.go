package service

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exitWith returns a real *exec.ExitError with the given code.
func exitWith(t *testing.T, code string) error {
	t.Helper()

	err := exec.Command("sh", "-c", "exit "+code).Run()
	require.Error(t, err)

	return err
}

type fakeSystemctl struct {
	calls []string
	out   string
	err   error
}

func (f *fakeSystemctl) run(_ context.Context, privileged bool, args ...string) (string, error) {
	call := strings.Join(args, " ")
	if privileged {
		call = "sudo " + call
	}
	f.calls = append(f.calls, call)

	return f.out, f.err
}

func TestSystemd_registrationCommands(t *testing.T) {
	fake := &fakeSystemctl{}
	s := &Systemd{run: fake.run}
	ctx := context.Background()

	require.NoError(t, s.DaemonReload(ctx))
	require.NoError(t, s.Enable(ctx, "telegram-vpn-bot"))
	require.NoError(t, s.Start(ctx, "telegram-vpn-bot.service"))

	assert.Equal(t, []string{
		"sudo daemon-reload",
		"sudo enable telegram-vpn-bot.service",
		"sudo start telegram-vpn-bot.service",
	}, fake.calls)
}

func TestSystemd_ActiveState(t *testing.T) {
	tests := []struct {
		name      string
		out       string
		exitCode  string
		wantState string
	}{
		{
			name:      "active",
			out:       "active\n",
			wantState: "active",
		},
		{
			name:      "failed",
			out:       "failed\n",
			exitCode:  "3",
			wantState: "failed",
		},
		{
			name:      "empty_output",
			exitCode:  "4",
			wantState: "unknown",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			fake := &fakeSystemctl{out: test.out}
			if test.exitCode != "" {
				fake.err = exitWith(t, test.exitCode)
			}
			s := &Systemd{run: fake.run}

			state, err := s.ActiveState(context.Background(), "bot")

			require.NoError(t, err)
			assert.Equal(t, test.wantState, state)
			assert.Equal(t, []string{"is-active bot.service"}, fake.calls)
		})
	}
}

func TestSystemd_ActiveState_commandNotRunnable(t *testing.T) {
	s := &Systemd{run: (&fakeSystemctl{err: exec.ErrNotFound}).run}

	_, err := s.ActiveState(context.Background(), "bot")

	require.ErrorIs(t, err, exec.ErrNotFound)
}

func TestSystemd_Status(t *testing.T) {
	ctx := context.Background()

	s := &Systemd{run: (&fakeSystemctl{err: exitWith(t, "3")}).run}
	assert.ErrorIs(t, s.Status(ctx, "bot"), ErrInactiveService)

	s = &Systemd{run: (&fakeSystemctl{err: exitWith(t, "4")}).run}
	var notFound *NotFoundError
	require.ErrorAs(t, s.Status(ctx, "bot"), &notFound)
	assert.Equal(t, "bot", notFound.ServiceName)

	s = &Systemd{run: (&fakeSystemctl{}).run}
	assert.NoError(t, s.Status(ctx, "bot"))
}

func TestSystemd_MainPID(t *testing.T) {
	s := &Systemd{run: (&fakeSystemctl{out: "4242\n"}).run}

	pid, err := s.MainPID(context.Background(), "bot")

	require.NoError(t, err)
	assert.Equal(t, int32(4242), pid)
}

type restartFailingService struct {
	calls []string
}

func (s *restartFailingService) Start(_ context.Context, _ string) error {
	s.calls = append(s.calls, "start")

	return nil
}

func (s *restartFailingService) Stop(_ context.Context, _ string) error {
	s.calls = append(s.calls, "stop")

	return nil
}

func (s *restartFailingService) Restart(_ context.Context, _ string) error {
	s.calls = append(s.calls, "restart")

	return errors.New("restart failed")
}

func (s *restartFailingService) Status(_ context.Context, _ string) error {
	return nil
}

func TestRestart_fallsBackToStopStart(t *testing.T) {
	s := &restartFailingService{}

	require.NoError(t, Restart(context.Background(), s, "bot"))

	assert.Equal(t, []string{"restart", "stop", "start"}, s.calls)
}
