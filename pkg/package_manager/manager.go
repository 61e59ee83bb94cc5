package packagemanager

import (
	"context"
	"os/exec"

	contextInternal "github.com/xuibot/botctl/internal/context"
	osinfo "github.com/xuibot/botctl/pkg/os_info"
	"github.com/xuibot/botctl/pkg/oscore"
)

type PackageManager interface {
	// CheckForUpdates refreshes the package index.
	CheckForUpdates(ctx context.Context) error
	// Upgrade upgrades all installed packages.
	Upgrade(ctx context.Context) error
	Install(ctx context.Context, packs ...string) error
}

// commandRunner runs a package manager command with superuser privileges.
type commandRunner func(ctx context.Context, env []string, command string, args ...string) error

func privilegedRunner(ctx context.Context, env []string, command string, args ...string) error {
	return oscore.ExecPrivilegedWithEnv(ctx, env, command, args...)
}

//nolint:ireturn,nolintlint
func Load(ctx context.Context) (PackageManager, error) {
	return load(ctx, contextInternal.OSInfoFromContext(ctx), privilegedRunner, exec.LookPath)
}

//nolint:ireturn,nolintlint
func load(
	_ context.Context,
	osInfo osinfo.Info,
	run commandRunner,
	lookPath func(string) (string, error),
) (PackageManager, error) {
	aliases, err := loadAliases(osInfo)
	if err != nil {
		return nil, err
	}

	switch {
	case osInfo.IsLike(DistributionDebian), osInfo.IsLike(DistributionUbuntu):
		return newAliased(&apt{run: run}, aliases), nil
	case osInfo.IsLike(DistributionFedora),
		osInfo.IsLike(DistributionRHEL),
		osInfo.IsLike(DistributionCentOS),
		osInfo.IsLike(DistributionAmazon):
		if _, err := lookPath("dnf"); err == nil {
			return newAliased(
				newFallbackPackageManager(&dnf{command: "dnf", run: run}, &dnf{command: "yum", run: run}),
				aliases,
			), nil
		}

		return newAliased(&dnf{command: "yum", run: run}, aliases), nil
	}

	return nil, NewUnsupportedDistributionError(osInfo.Distribution)
}

func installArgs(base []string, packs []string) []string {
	args := make([]string, 0, len(base)+len(packs))
	args = append(args, base...)

	for _, pack := range packs {
		if pack == "" || pack == " " {
			continue
		}
		args = append(args, pack)
	}

	return args
}
