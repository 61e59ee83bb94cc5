package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/xuibot/botctl/internal/actions"
	"github.com/xuibot/botctl/internal/actions/install"
	"github.com/xuibot/botctl/internal/actions/service/restart"
	"github.com/xuibot/botctl/internal/actions/service/start"
	"github.com/xuibot/botctl/internal/actions/service/status"
	"github.com/xuibot/botctl/internal/actions/service/stop"
	"github.com/xuibot/botctl/internal/actions/uninstall"
	"github.com/xuibot/botctl/internal/config"
	contextInternal "github.com/xuibot/botctl/internal/context"
	"github.com/xuibot/botctl/internal/pkg/botctl"
	"github.com/xuibot/botctl/pkg/utils"
)

// globalFlags are accepted before any command. --config has no value by
// default so that a missing default file is not an error.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "non-interactive",
			Usage: "Never prompt, decline confirmations unless --yes is given",
			Value: false,
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the botctl configuration file (default: " + config.DefaultPath + " when present)",
			EnvVars: []string{"BOTCTL_CONFIG"},
		},
	}
}

// nolint:funlen
func Run(args []string) {
	logsDir, err := botctl.LogsDirectory()
	if err != nil {
		log.Fatalf("Error creating log directory: %s", err)
	}

	logPath := filepath.Join(logsDir, fmt.Sprintf("%s.log", time.Now().Format("2006-01-02_15-04-05")))
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		log.Fatalf("error opening file: %v", err)
	}
	defer logFile.Close()

	log.SetOutput(logFile)

	app := &cli.App{
		Name:                      "botctl",
		Usage:                     "Telegram VPN bot installer",
		UsageText:                 "botctl [global options] command [command options]",
		DisableSliceFlagSeparator: true,
		Before: func(cliCtx *cli.Context) error {
			var err error
			cliCtx.Context, err = contextInternal.SetOSContext(cliCtx.Context)
			if err != nil {
				log.Println("failed to detect operating system:", err)
			}

			cliCtx.Context = contextInternal.ContextWithNonInteractive(
				cliCtx.Context,
				cliCtx.Bool("non-interactive") || !utils.IsInteractive(),
			)

			return nil
		},
		Flags: globalFlags(),
		Commands: []*cli.Command{
			{
				Name:        "install",
				Aliases:     []string{"i"},
				Description: "Install the bot and register it as a systemd service. Safe to run again.",
				Usage:       "Install the bot",
				Flags:       install.Flags(),
				Action:      install.Handle,
			},
			{
				Name:        "status",
				Description: "Show the service state, process and configuration problems",
				Usage:       "Show bot status",
				Flags:       actions.TargetFlags(),
				Action:      status.Handle,
			},
			{
				Name:        "start",
				Aliases:     []string{"s"},
				Description: "Start the bot service",
				Usage:       "Start the bot",
				Flags:       actions.TargetFlags(),
				Action:      start.Handle,
			},
			{
				Name:        "stop",
				Description: "Stop the bot service",
				Usage:       "Stop the bot",
				Flags:       actions.TargetFlags(),
				Action:      stop.Handle,
			},
			{
				Name:        "restart",
				Aliases:     []string{"r"},
				Description: "Restart the bot service, e.g. after editing .env",
				Usage:       "Restart the bot",
				Flags:       actions.TargetFlags(),
				Action:      restart.Handle,
			},
			{
				Name:        "uninstall",
				Description: "Stop the bot and remove the systemd unit. The install directory is kept unless --purge is given.",
				Usage:       "Uninstall the bot",
				Flags:       uninstall.Flags(),
				Action:      uninstall.Handle,
			},
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = app.RunContext(ctx, args)
	cancel()
	if err != nil {
		fmt.Println(err)
		fmt.Println("See details in log file: " + logPath)
		log.Println(err)
		logFile.Close()
		os.Exit(1)
	}
}
