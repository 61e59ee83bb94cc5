package installer

import (
	"context"
	"fmt"
	"log"

	"github.com/pkg/errors"
	packagemanager "github.com/xuibot/botctl/pkg/package_manager"
	"github.com/xuibot/botctl/pkg/oscore"
	"github.com/xuibot/botctl/pkg/pyenv"
	"github.com/xuibot/botctl/pkg/runhelper"
)

var pythonPackages = []string{
	packagemanager.PythonPackage,
	packagemanager.PythonVenvPackage,
	packagemanager.PythonPipPackage,
}

func (i *Installer) planPreflight(_ context.Context) error {
	u, err := i.deps.CurrentUser()
	if err != nil {
		return errors.WithMessage(err, "failed to get current user")
	}

	if oscore.IsSuperuser(u) {
		return NewPrivilegeError(
			u.Username,
			"do not run the installer as root, run it as the user the bot should run as",
		)
	}

	if !i.deps.SudoAvailable() {
		return NewPrivilegeError(u.Username, "sudo is required to install packages and register the service")
	}

	userName := i.opts.Target.User
	if userName == "" {
		userName = u.Username
	}

	identity, err := i.deps.LookupIdentity(userName, i.opts.Target.Group)
	if err != nil {
		return errors.WithMessage(err, "failed to resolve service user")
	}

	if identity.UID == 0 {
		return NewPrivilegeError(identity.UserName, "the service must not run as root")
	}

	if identity.UserName != u.Username {
		return NewPrivilegeError(
			u.Username,
			fmt.Sprintf("the bot runs as '%s', run the installer as that user", identity.UserName),
		)
	}

	i.identity = identity
	i.opts.Target.User = identity.UserName
	i.opts.Target.Group = identity.GroupName

	return nil
}

func (i *Installer) runPreflight(ctx context.Context) Result {
	message := fmt.Sprintf("Running as %s:%s", i.identity.UserName, i.identity.GroupName)

	initSystem, err := i.deps.DetectInit(ctx)
	if err != nil {
		log.Println(errors.WithMessage(err, "failed to detect init system"))
	}
	if initSystem != runhelper.InitSystemd {
		return success(message, "systemd was not detected as the init system, the service may fail to register")
	}

	return success(message)
}

func (i *Installer) runSystemUpdate(ctx context.Context) Result {
	if err := i.packages.CheckForUpdates(ctx); err != nil {
		return failed(NewPackageError(errors.WithMessage(err, "failed to update package index")))
	}

	if i.opts.SkipUpgrade {
		return success("Package index updated, upgrade skipped")
	}

	if err := i.packages.Upgrade(ctx); err != nil {
		return failed(NewPackageError(errors.WithMessage(err, "failed to upgrade packages")))
	}

	return success("Packages upgraded")
}

func (i *Installer) runDependencyInstall(ctx context.Context) Result {
	caps := i.deps.Runtime.Probe(ctx)
	if caps.Complete() && caps.Version != "" {
		if err := pyenv.CompareMinimum(caps.Version, pyenv.MinimumVersion); err == nil {
			return skipped(fmt.Sprintf("python %s with venv and pip is already installed", caps.Version))
		}
	}

	if err := i.packages.Install(ctx, pythonPackages...); err != nil {
		return failed(NewPackageError(err, pythonPackages...))
	}

	version, err := i.deps.Runtime.CheckVersion(ctx, pyenv.MinimumVersion)
	if err != nil {
		return failed(NewPackageError(err))
	}

	return success("Installed python " + version)
}
