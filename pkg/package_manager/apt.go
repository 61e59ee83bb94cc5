package packagemanager

import (
	"context"
)

type apt struct {
	run commandRunner
}

// CheckForUpdates runs an apt update to retrieve new packages available
// from the repositories.
func (apt *apt) CheckForUpdates(ctx context.Context) error {
	return apt.run(ctx, []string{debianFrontendEnv}, "apt-get", "update", "-q")
}

func (apt *apt) Upgrade(ctx context.Context) error {
	return apt.run(
		ctx,
		[]string{debianFrontendEnv},
		"apt-get", "upgrade", "-y", "-q",
		"-o", "Dpkg::Options::=--force-confdef",
		"-o", "Dpkg::Options::=--force-confold",
	)
}

// Install installs a set of packages.
func (apt *apt) Install(ctx context.Context, packs ...string) error {
	return apt.run(ctx, []string{debianFrontendEnv}, "apt-get", installArgs([]string{"install", "-y", "-q"}, packs)...)
}
