package install

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/xuibot/botctl/pkg/installer"
)

var (
	colorSuccess = lipgloss.Color("#10B981")
	colorError   = lipgloss.Color("#EF4444")
	colorWarning = lipgloss.Color("#F59E0B")
	colorMuted   = lipgloss.Color("#6B7280")

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// RenderReport builds the final banner: step results, warnings and
// the commands the operator should run next.
func RenderReport(report installer.Report, target installer.Target) string {
	var b strings.Builder

	if report.Succeeded() {
		b.WriteString(successStyle.Render("Telegram bot installed and running"))
	} else {
		b.WriteString(errorStyle.Render("Installation failed"))
	}
	b.WriteString("\n\n")

	for _, r := range report.Results {
		b.WriteString(resultLine(r))
		b.WriteString("\n")
	}

	if warnings := report.Warnings(); len(warnings) > 0 {
		b.WriteString("\n")
		b.WriteString(warningStyle.Render("Warnings:"))
		b.WriteString("\n")
		for _, w := range warnings {
			b.WriteString("  - " + w + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString("Next steps:\n")
	for _, c := range followUp(report, target) {
		b.WriteString("  " + c + "\n")
	}

	border := colorSuccess
	if !report.Succeeded() {
		border = colorError
	}

	return boxStyle.BorderForeground(border).Render(strings.TrimRight(b.String(), "\n"))
}

func resultLine(r installer.Result) string {
	switch r.Status {
	case installer.StatusSuccess:
		return fmt.Sprintf("%s %-22s %s", successStyle.Render("[ok]"), r.Step, r.Message)
	case installer.StatusSkipped:
		return fmt.Sprintf("%s %-22s %s", mutedStyle.Render("[--]"), r.Step, mutedStyle.Render(r.Message))
	case installer.StatusFailed:
		return fmt.Sprintf("%s %-22s %s", errorStyle.Render("[!!]"), r.Step, r.Err)
	}

	return r.Step
}

func followUp(report installer.Report, target installer.Target) []string {
	var startErr *installer.ServiceStartError
	if errors.As(report.Err, &startErr) {
		return startErr.Hints()
	}

	if errors.Is(report.Err, installer.ErrUserAborted) {
		return []string{
			"Run botctl from the bot project directory, or pass --source <dir>",
		}
	}

	var privilegeErr *installer.PrivilegeError
	if errors.As(report.Err, &privilegeErr) {
		return []string{
			"Run botctl as a regular user with sudo rights: botctl install",
		}
	}

	if report.Err != nil {
		return []string{
			"Fix the problem above, then continue: botctl install --resume",
			"Installer log: ~/.botctl/logs",
		}
	}

	return []string{
		"Status:  botctl status  (or sudo systemctl status " + target.ServiceName + ")",
		"Logs:    journalctl -u " + target.ServiceName + " -f",
		"Config:  " + target.EnvFile(),
		"Restart: botctl restart  (after editing the config)",
	}
}
