// Package pyenv manages an isolated Python runtime environment (a venv)
// and checks the system interpreter.
package pyenv

import (
	"bytes"
	"context"
	"log"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuibot/botctl/pkg/utils"
	"golang.org/x/mod/semver"
)

const (
	DefaultPython     = "python3"
	DefaultDirName    = "venv"
	MinimumVersion    = "v3.8"
	defaultPipTimeout = "120"
)

var (
	ErrPythonNotFound  = errors.New("python interpreter not found")
	ErrManifestMissing = errors.New("requirements manifest not found")
)

type PythonTooOldError struct {
	Version string
	Minimum string
}

func NewPythonTooOldError(version, minimum string) *PythonTooOldError {
	return &PythonTooOldError{
		Version: version,
		Minimum: minimum,
	}
}

func (e *PythonTooOldError) Error() string {
	return "python " + strings.TrimPrefix(e.Version, "v") +
		" is too old, at least " + strings.TrimPrefix(e.Minimum, "v") + " is required"
}

// commandRunner runs a command in dir and returns its combined output.
type commandRunner func(ctx context.Context, dir string, command string, args ...string) (string, error)

func runCommand(ctx context.Context, dir string, command string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = dir

	buf := &bytes.Buffer{}
	cmd.Stdout = buf
	cmd.Stderr = buf
	log.Println('\n', cmd.String())

	err := cmd.Run()
	log.Print(buf.String())

	return buf.String(), err
}

// Env is a virtual environment located in Dir.
type Env struct {
	Dir    string
	Python string

	run commandRunner
}

func New(dir string, python string) *Env {
	if python == "" {
		python = DefaultPython
	}

	return &Env{
		Dir:    dir,
		Python: python,
		run:    runCommand,
	}
}

// Interpreter is the python binary inside the environment.
func (e *Env) Interpreter() string {
	return filepath.Join(e.Dir, "bin", "python")
}

func (e *Env) Exists() bool {
	return utils.IsFileExists(e.Interpreter())
}

// Create creates the environment unless it already exists.
// It reports whether a new environment was created.
func (e *Env) Create(ctx context.Context) (bool, error) {
	if e.Exists() {
		return false, nil
	}

	out, err := e.run(ctx, filepath.Dir(e.Dir), e.Python, "-m", "venv", e.Dir)
	if err != nil {
		return false, errors.Wrapf(err, "failed to create virtual environment: %s", lastLine(out))
	}

	return true, nil
}

func (e *Env) UpgradePip(ctx context.Context) error {
	out, err := e.pip(ctx, "install", "--upgrade", "pip")
	if err != nil {
		return errors.Wrapf(err, "failed to upgrade pip: %s", lastLine(out))
	}

	return nil
}

// InstallRequirements installs the packages listed in the manifest.
func (e *Env) InstallRequirements(ctx context.Context, manifest string) error {
	if !utils.IsFileExists(manifest) {
		return errors.WithMessage(ErrManifestMissing, manifest)
	}

	out, err := e.pip(ctx, "install", "--timeout", defaultPipTimeout, "-r", manifest)
	if err != nil {
		return errors.Wrapf(err, "failed to install requirements: %s", lastLine(out))
	}

	return nil
}

func (e *Env) pip(ctx context.Context, args ...string) (string, error) {
	pipArgs := make([]string, 0, len(args)+3) //nolint:mnd
	pipArgs = append(pipArgs, "-m", "pip", "--disable-pip-version-check")
	pipArgs = append(pipArgs, args...)

	return e.run(ctx, filepath.Dir(e.Dir), e.Interpreter(), pipArgs...)
}

// Capabilities describes what the system interpreter can do.
type Capabilities struct {
	Interpreter bool
	Version     string
	Venv        bool
	Pip         bool
}

func (c Capabilities) Complete() bool {
	return c.Interpreter && c.Venv && c.Pip
}

// Probe checks the system interpreter and its venv and pip modules.
func (e *Env) Probe(ctx context.Context) Capabilities {
	var c Capabilities

	out, err := e.run(ctx, "", e.Python, "--version")
	if err != nil {
		return c
	}
	c.Interpreter = true
	c.Version, _ = ParseVersion(out)

	_, err = e.run(ctx, "", e.Python, "-m", "venv", "--help")
	c.Venv = err == nil

	_, err = e.run(ctx, "", e.Python, "-m", "pip", "--version")
	c.Pip = err == nil

	return c
}

// CheckVersion verifies the system interpreter is at least minimum.
func (e *Env) CheckVersion(ctx context.Context, minimum string) (string, error) {
	out, err := e.run(ctx, "", e.Python, "--version")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", errors.Wrap(err, "failed to get python version")
		}

		return "", errors.WithMessage(ErrPythonNotFound, e.Python)
	}

	version, err := ParseVersion(out)
	if err != nil {
		return "", err
	}

	return version, CompareMinimum(version, minimum)
}

var versionRegexp = regexp.MustCompile(`(?i)python\s+(\d+)\.(\d+)(?:\.(\d+))?`)

// ParseVersion turns "Python 3.11.2" into the semver string "v3.11.2".
func ParseVersion(out string) (string, error) {
	m := versionRegexp.FindStringSubmatch(out)
	if m == nil {
		return "", errors.Errorf("unexpected python version output %q", strings.TrimSpace(out))
	}

	version := "v" + m[1] + "." + m[2]
	if m[3] != "" {
		version += "." + m[3]
	}

	return version, nil
}

func CompareMinimum(version, minimum string) error {
	if !semver.IsValid(version) {
		return errors.Errorf("invalid version %q", version)
	}
	if !semver.IsValid(minimum) {
		return errors.Errorf("invalid minimum version %q", minimum)
	}

	if semver.Compare(version, minimum) < 0 {
		return NewPythonTooOldError(version, minimum)
	}

	return nil
}

func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")

	return strings.TrimSpace(lines[len(lines)-1])
}
