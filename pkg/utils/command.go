package utils

import (
	"os"
	"os/exec"

	"golang.org/x/term"
)

func IsCommandAvailable(command string) bool {
	_, err := exec.LookPath(command)

	return err == nil
}

// IsInteractive reports whether stdin is attached to a terminal,
// so prompts can actually be answered.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
