package stop

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/xuibot/botctl/internal/actions"
	"github.com/xuibot/botctl/pkg/service"
)

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

	fmt.Println("Stopping", cfg.ServiceName, "...")
	if err = sm.Stop(ctx, cfg.ServiceName); err != nil {
		return errors.WithMessage(err, "failed to stop service")
	}

	fmt.Println("Stopped")

	return nil
}
