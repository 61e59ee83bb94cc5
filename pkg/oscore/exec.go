package oscore

import (
	"context"
	"log"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

const sudoCommand = "sudo"

// PrivilegedCommand builds a command that runs with superuser privileges.
// The command is prefixed with sudo unless the process already runs as root.
func PrivilegedCommand(ctx context.Context, command string, args ...string) *exec.Cmd {
	if unix.Geteuid() == 0 {
		return exec.CommandContext(ctx, command, args...)
	}

	sudoArgs := make([]string, 0, len(args)+2) //nolint:mnd
	sudoArgs = append(sudoArgs, "--", command)
	sudoArgs = append(sudoArgs, args...)

	return exec.CommandContext(ctx, sudoCommand, sudoArgs...)
}

func ExecPrivileged(ctx context.Context, command string, args ...string) error {
	cmd := PrivilegedCommand(ctx, command, args...)

	cmd.Stdin = os.Stdin
	cmd.Stdout = log.Writer()
	cmd.Stderr = log.Writer()
	log.Println('\n', cmd.String())

	return cmd.Run()
}

// ExecPrivilegedWithEnv runs the command through sudo keeping the given
// environment variables, e.g. DEBIAN_FRONTEND for apt.
func ExecPrivilegedWithEnv(ctx context.Context, env []string, command string, args ...string) error {
	if unix.Geteuid() != 0 && len(env) > 0 {
		envArgs := make([]string, 0, len(env)+len(args)+1)
		envArgs = append(envArgs, env...)
		envArgs = append(envArgs, command)
		envArgs = append(envArgs, args...)

		return ExecPrivileged(ctx, "env", envArgs...)
	}

	cmd := PrivilegedCommand(ctx, command, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = log.Writer()
	cmd.Stderr = log.Writer()
	log.Println('\n', cmd.String())

	return cmd.Run()
}

func IsSudoAvailable() bool {
	_, err := exec.LookPath(sudoCommand)

	return err == nil
}
