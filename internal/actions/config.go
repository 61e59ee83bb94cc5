package actions

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/xuibot/botctl/internal/config"
)

// LoadConfig reads the configuration file given by the global --config flag
// and applies the target flags shared by all commands.
func LoadConfig(cliCtx *cli.Context) (config.Install, error) {
	cfg, err := config.Load(cliCtx.String("config"))
	if err != nil {
		return cfg, errors.WithMessage(err, "failed to load config")
	}

	return cfg.Merge(config.Install{
		Path:        cliCtx.String("path"),
		ServiceName: cliCtx.String("service-name"),
		UnitDir:     cliCtx.String("unit-dir"),
	}), nil
}

// TargetFlags are accepted by every command that works on an installed bot.
func TargetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "path",
			Usage: "Bot installation directory",
		},
		&cli.StringFlag{
			Name:  "service-name",
			Usage: "Systemd service name",
		},
		&cli.StringFlag{
			Name:  "unit-dir",
			Usage: "Directory for systemd unit files",
		},
	}
}
