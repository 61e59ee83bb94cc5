package uninstall

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/xuibot/botctl/internal/actions"
	contextInternal "github.com/xuibot/botctl/internal/context"
	"github.com/xuibot/botctl/internal/pkg/botctl"
	"github.com/xuibot/botctl/pkg/installer"
	"github.com/xuibot/botctl/pkg/oscore"
	"github.com/xuibot/botctl/pkg/service"
	"github.com/xuibot/botctl/pkg/unit"
	"github.com/xuibot/botctl/pkg/utils"
)

func Flags() []cli.Flag {
	return append(actions.TargetFlags(),
		&cli.BoolFlag{
			Name:  "purge",
			Usage: "Also remove the install directory, including .env",
		},
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "Don't ask for confirmation",
		},
	)
}

type remover interface {
	RemoveAll(ctx context.Context, path string) error
}

func Handle(cliCtx *cli.Context) error {
	ctx := cliCtx.Context

	cfg, err := actions.LoadConfig(cliCtx)
	if err != nil {
		return err
	}

	sm, err := service.Load(ctx)
	if err != nil {
		return errors.WithMessage(err, "failed to load service manager")
	}

	purge := cliCtx.Bool("purge")
	target := installer.Target{InstallDir: filepath.Clean(cfg.Path), ServiceName: cfg.ServiceName}
	installDir := target.InstallDir

	if purge {
		ok, err := confirmPurge(cliCtx, target)
		if err != nil {
			return err
		}
		if !ok {
			return installer.ErrUserAborted
		}
	}

	fmt.Println("Uninstalling", cfg.ServiceName, "...")

	err = removeService(ctx, sm, oscore.NewFilesystem(), cfg.ServiceName, cfg.UnitDir)
	if err != nil {
		return err
	}

	if purge {
		fmt.Println("Removing", installDir, "...")
		if err = oscore.NewFilesystem().RemoveAll(ctx, installDir); err != nil {
			return errors.WithMessage(err, "failed to remove install directory")
		}
	} else {
		fmt.Println("Install directory kept:", installDir)
	}

	if err = botctl.RemoveInstallState(ctx); err != nil {
		log.Println(err)
	}

	fmt.Println()
	fmt.Println("The bot has been uninstalled")

	return nil
}

func confirmPurge(cliCtx *cli.Context, target installer.Target) (bool, error) {
	if err := target.Validate(); err != nil {
		return false, errors.WithMessage(err, "refusing to remove install directory")
	}

	if cliCtx.Bool("yes") {
		return true, nil
	}
	if contextInternal.NonInteractiveFromContext(cliCtx.Context) {
		return false, nil
	}

	return utils.NewStdAsker().AskYesNo(
		cliCtx.Context,
		fmt.Sprintf("Remove %s with the bot configuration?", target.InstallDir),
		false,
	)
}

// removeService stops and unregisters the unit. A unit that is already
// stopped or missing is not an error.
func removeService(ctx context.Context, sm service.Manager, fs remover, serviceName, unitDir string) error {
	if err := sm.Stop(ctx, serviceName); err != nil {
		log.Println(errors.WithMessage(err, "failed to stop service"))
	}

	if err := sm.Disable(ctx, serviceName); err != nil {
		log.Println(errors.WithMessage(err, "failed to disable service"))
	}

	unitPath := unit.Spec{Name: serviceName}.Path(unitDir)
	if err := fs.RemoveAll(ctx, unitPath); err != nil {
		return errors.WithMessage(err, "failed to remove unit file")
	}

	if err := sm.DaemonReload(ctx); err != nil {
		return errors.WithMessage(err, "failed to reload service manager")
	}

	return nil
}
