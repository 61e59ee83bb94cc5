package installer

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/xuibot/botctl/pkg/utils"
)

func (i *Installer) planEnvironmentSetup(_ context.Context) error {
	manifest := i.opts.inInstallDir(i.opts.Requirements)
	if utils.IsFileExists(manifest) {
		return nil
	}

	if i.copyMode == copyProject && !filepath.IsAbs(i.opts.Requirements) &&
		utils.IsFileExists(filepath.Join(i.sourceDir, i.opts.Requirements)) {
		return nil
	}

	return NewDependencyError(errors.Errorf("requirements manifest %s not found", manifest))
}

func (i *Installer) runEnvironmentSetup(ctx context.Context) Result {
	created, err := i.deps.Runtime.Create(ctx)
	if err != nil {
		return failed(NewDependencyError(err))
	}

	if err = i.deps.Runtime.UpgradePip(ctx); err != nil {
		return failed(NewDependencyError(err))
	}

	if err = i.deps.Runtime.InstallRequirements(ctx, i.opts.inInstallDir(i.opts.Requirements)); err != nil {
		return failed(NewDependencyError(err))
	}

	if created {
		return success("Virtual environment created, requirements installed")
	}

	return success("Existing virtual environment updated")
}
