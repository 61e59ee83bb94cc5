package restart

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

	fmt.Println("Restarting", cfg.ServiceName, "...")
	if err = service.Restart(ctx, sm, cfg.ServiceName); err != nil {
		return errors.WithMessage(err, "failed to restart service")
	}

	fmt.Println("Restarted")

	return nil
}
