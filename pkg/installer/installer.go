// Package installer brings a host from "bot not installed" to
// "bot running as a supervised service".
package installer

import (
	"context"
	"io"
	"log"
	"os"
	"os/user"
	"time"

	"github.com/pkg/errors"
	packagemanager "github.com/xuibot/botctl/pkg/package_manager"
	"github.com/xuibot/botctl/pkg/oscore"
	"github.com/xuibot/botctl/pkg/pyenv"
	"github.com/xuibot/botctl/pkg/runhelper"
	"github.com/xuibot/botctl/pkg/service"
	"github.com/xuibot/botctl/pkg/unit"
	"github.com/xuibot/botctl/pkg/utils"
)

// Runtime is the isolated Python environment the bot runs in.
type Runtime interface {
	Interpreter() string
	Probe(ctx context.Context) pyenv.Capabilities
	CheckVersion(ctx context.Context, minimum string) (string, error)
	Create(ctx context.Context) (bool, error)
	UpgradePip(ctx context.Context) error
	InstallRequirements(ctx context.Context, manifest string) error
}

type Filesystem interface {
	MkdirAll(ctx context.Context, path string, perm os.FileMode) error
	Chown(ctx context.Context, path string, identity oscore.Identity) error
	WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error
}

// Dependencies are the host collaborators. Nil fields are replaced
// with the real implementations.
type Dependencies struct {
	LoadPackages func(ctx context.Context) (packagemanager.PackageManager, error)
	LoadServices func(ctx context.Context) (service.Manager, error)
	Runtime      Runtime
	FS           Filesystem
	Prompter     Prompter

	CurrentUser    func() (*user.User, error)
	LookupIdentity func(userName, groupName string) (oscore.Identity, error)
	DetectInit     func(ctx context.Context) (string, error)
	SudoAvailable  func() bool
	IsWritableBy   func(path string, uid int) bool
	Sleep          func(ctx context.Context, d time.Duration) error
}

func (d Dependencies) withDefaults(opts Options) Dependencies {
	if d.LoadPackages == nil {
		d.LoadPackages = packagemanager.Load
	}
	if d.LoadServices == nil {
		d.LoadServices = service.Load
	}
	if d.Runtime == nil {
		d.Runtime = pyenv.New(opts.Target.VenvDir(), "")
	}
	if d.FS == nil {
		d.FS = oscore.NewFilesystem()
	}
	if d.Prompter == nil {
		d.Prompter = NewTerminalPrompter(utils.NewStdAsker())
	}
	if d.CurrentUser == nil {
		d.CurrentUser = user.Current
	}
	if d.LookupIdentity == nil {
		d.LookupIdentity = oscore.LookupIdentity
	}
	if d.DetectInit == nil {
		d.DetectInit = runhelper.DetectInit
	}
	if d.SudoAvailable == nil {
		d.SudoAvailable = oscore.IsSudoAvailable
	}
	if d.IsWritableBy == nil {
		d.IsWritableBy = oscore.IsWritableBy
	}
	if d.Sleep == nil {
		d.Sleep = sleep
	}

	return d
}

type copyMode int

const (
	copyUndecided copyMode = iota
	copyProject
	copyNothing
	copyInPlace
)

type Installer struct {
	opts Options
	deps Dependencies
	out  io.Writer

	// Filled while planning.
	identity  oscore.Identity
	packages  packagemanager.PackageManager
	services  service.Manager
	sourceDir string
	copyMode  copyMode
}

func New(opts Options, deps Dependencies, out io.Writer) (*Installer, error) {
	opts = opts.withDefaults()
	if err := opts.Target.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid install target")
	}

	return &Installer{
		opts: opts,
		deps: deps.withDefaults(opts),
		out:  out,
	}, nil
}

func (i *Installer) Options() Options {
	return i.opts
}

// Target is the install target, with user and group resolved once planned.
func (i *Installer) Target() Target {
	return i.opts.Target
}

func (i *Installer) Steps() []Step {
	return []Step{
		&step{
			name: StepPreflight, title: "Running preflight checks", always: true,
			plan: i.planPreflight, run: i.runPreflight,
		},
		&step{
			name: StepSystemUpdate, title: "Updating system packages",
			plan: i.planPackages, run: i.runSystemUpdate,
		},
		&step{
			name: StepDependencyInstall, title: "Installing Python",
			plan: i.planPackages, run: i.runDependencyInstall,
		},
		&step{
			name: StepDirectoryProvision, title: "Preparing install directory",
			run: i.runDirectoryProvision,
		},
		&step{
			name: StepSourceCopy, title: "Copying project files",
			plan: i.planSourceCopy, run: i.runSourceCopy,
		},
		&step{
			name: StepEnvironmentSetup, title: "Setting up virtual environment",
			plan: i.planEnvironmentSetup, run: i.runEnvironmentSetup,
		},
		&step{
			name: StepConfigBootstrap, title: "Preparing configuration",
			run: i.runConfigBootstrap,
		},
		&step{
			name: StepServiceRegistration, title: "Registering service", always: true,
			plan: i.planServices, run: i.runServiceRegistration,
		},
		&step{
			name: StepHealthCheck, title: "Checking service health", always: true,
			plan: i.planServices, run: i.runHealthCheck,
		},
	}
}

// Run installs the bot. onResult, if set, is called after every step.
func (i *Installer) Run(ctx context.Context, onResult func(ctx context.Context, result Result)) Report {
	runner := NewRunner(i.out, i.opts.Completed, i.Steps()...)
	runner.OnResult = onResult

	return runner.Run(ctx)
}

// UnitSpec is the service definition registered for the bot.
func (i *Installer) UnitSpec() unit.Spec {
	execCommand := make([]string, 0, len(i.opts.EntryArgs)+2) //nolint:mnd
	execCommand = append(execCommand, i.deps.Runtime.Interpreter(), i.opts.inInstallDir(i.opts.Entry))
	execCommand = append(execCommand, i.opts.EntryArgs...)

	return unit.Spec{
		Name:             i.opts.Target.ServiceName,
		Description:      i.opts.Description,
		User:             i.opts.Target.User,
		Group:            i.opts.Target.Group,
		WorkingDirectory: i.opts.Target.InstallDir,
		ExecCommand:      execCommand,
		RestartPolicy:    unit.RestartAlways,
		RestartSec:       i.opts.RestartSec,
		EnvironmentFile:  i.opts.Target.EnvFile(),
		Environment: map[string]string{
			"PYTHONUNBUFFERED": "1",
		},
	}
}

func (i *Installer) confirm(ctx context.Context, question string) (bool, error) {
	if i.opts.AssumeYes {
		log.Println(question, "yes (assumed)")

		return true, nil
	}
	if i.opts.NonInteractive {
		log.Println(question, "no (non-interactive)")

		return false, nil
	}

	return i.deps.Prompter.Confirm(ctx, question, false)
}

func (i *Installer) planPackages(ctx context.Context) error {
	if i.packages != nil {
		return nil
	}

	pm, err := i.deps.LoadPackages(ctx)
	if err != nil {
		return NewPackageError(errors.WithMessage(err, "failed to load package manager"))
	}
	i.packages = pm

	return nil
}

func (i *Installer) planServices(ctx context.Context) error {
	if i.services != nil {
		return nil
	}

	sm, err := i.deps.LoadServices(ctx)
	if err != nil {
		return NewServiceError(i.opts.Target.ServiceName, errors.WithMessage(err, "failed to load service manager"))
	}
	i.services = sm

	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
