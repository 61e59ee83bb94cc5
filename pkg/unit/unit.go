// Package unit renders systemd service definitions.
package unit

import (
	"bytes"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/gopherclass/go-shellquote"
	"github.com/pkg/errors"
)

const (
	RestartAlways    = "always"
	RestartOnFailure = "on-failure"

	DefaultRestartSec = 10
	DefaultUnitDir    = "/etc/systemd/system"
)

var (
	ErrEmptyExecCommand     = errors.New("exec command is empty")
	ErrEmptyWorkingDir      = errors.New("working directory is empty")
	ErrRelativeExecutable   = errors.New("executable path must be absolute")
	ErrInvalidRestartPolicy = errors.New("invalid restart policy")
	ErrInvalidEnvironment   = errors.New("invalid environment variable name")
)

var validRestartPolicies = map[string]struct{}{
	"no":          {},
	"on-success":  {},
	"on-failure":  {},
	"on-abnormal": {},
	"on-watchdog": {},
	"on-abort":    {},
	RestartAlways: {},
}

// Spec describes a service the way it is registered in the service manager.
type Spec struct {
	Name             string
	Description      string
	Documentation    string
	User             string
	Group            string
	WorkingDirectory string
	ExecCommand      []string
	RestartPolicy    string
	RestartSec       int
	EnvironmentFile  string
	Environment      map[string]string
	After            []string
	Wants            []string
}

func (s Spec) FileName() string {
	return s.Name + ".service"
}

// Path returns the unit file location inside unitDir.
func (s Spec) Path(unitDir string) string {
	return filepath.Join(unitDir, s.FileName())
}

func (s Spec) withDefaults() Spec {
	if s.RestartPolicy == "" {
		s.RestartPolicy = RestartAlways
	}
	if s.RestartSec <= 0 {
		s.RestartSec = DefaultRestartSec
	}
	if s.Description == "" {
		s.Description = s.Name
	}
	if len(s.After) == 0 {
		s.After = []string{"network-online.target"}
	}
	if len(s.Wants) == 0 {
		s.Wants = []string{"network-online.target"}
	}
	if s.Group == "" {
		s.Group = s.User
	}

	return s
}

func (s Spec) Validate() error {
	if len(s.ExecCommand) == 0 || s.ExecCommand[0] == "" {
		return ErrEmptyExecCommand
	}
	if !filepath.IsAbs(s.ExecCommand[0]) {
		return errors.WithMessage(ErrRelativeExecutable, s.ExecCommand[0])
	}
	if s.WorkingDirectory == "" {
		return ErrEmptyWorkingDir
	}
	if s.RestartPolicy != "" {
		if _, ok := validRestartPolicies[s.RestartPolicy]; !ok {
			return errors.WithMessage(ErrInvalidRestartPolicy, s.RestartPolicy)
		}
	}
	for key := range s.Environment {
		if !isValidEnvName(key) {
			return errors.WithMessage(ErrInvalidEnvironment, key)
		}
	}

	return nil
}

type templateData struct {
	Spec
	EnvironmentLines []string
	SyslogIdentifier string
}

var funcMap = template.FuncMap{
	"join":   strings.Join,
	"escape": escapeSpecifiers,
	"execStart": func(args []string) string {
		return escapeSpecifiers(shellquote.Join(args...))
	},
}

// escapeSpecifiers keeps systemd from expanding '%' as a unit specifier.
func escapeSpecifiers(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}

// Render produces the unit file contents.
func Render(s Spec) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s = s.withDefaults()

	tmpl, err := template.New("systemd.unit").Funcs(funcMap).Parse(systemdUnitTemplate)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to parse systemd unit template")
	}

	data := templateData{
		Spec:             s,
		EnvironmentLines: environmentLines(s.Environment),
		SyslogIdentifier: s.Name,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, errors.WithMessage(err, "failed to execute systemd unit template")
	}

	return buf.Bytes(), nil
}

func environmentLines(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, escapeSpecifiers(strconv.Quote(k+"="+env[k])))
	}

	return lines
}

func isValidEnvName(name string) bool {
	if name == "" {
		return false
	}

	for i, r := range name {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}

	return true
}
