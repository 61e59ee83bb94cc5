package status

import (
	"fmt"
	"log"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/xuibot/botctl/internal/actions"
	"github.com/xuibot/botctl/pkg/envfile"
	"github.com/xuibot/botctl/pkg/installer"
	"github.com/xuibot/botctl/pkg/runhelper"
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

	state, err := sm.ActiveState(ctx, cfg.ServiceName)
	if err != nil {
		return errors.WithMessage(err, "failed to get service state")
	}

	fmt.Println("Service:", cfg.ServiceName)
	fmt.Println("State:  ", state)

	pid, err := sm.MainPID(ctx, cfg.ServiceName)
	if err != nil {
		log.Println(err)
	}

	p, err := runhelper.FindProcess(ctx, pid)
	if err != nil {
		log.Println(errors.WithMessage(err, "failed to inspect main process"))
	}
	if p != nil {
		fmt.Println("PID:    ", p.PID)
		fmt.Println("Command:", p.Cmdline)
		fmt.Println("Memory: ", formatBytes(p.RSS))
		if p.CreateTime > 0 {
			started := time.UnixMilli(p.CreateTime)
			fmt.Println("Uptime: ", time.Since(started).Round(time.Second))
		}
	}

	envPath := installer.Target{InstallDir: cfg.Path}.EnvFile()
	values, err := envfile.Load(envPath)
	if err != nil {
		fmt.Println("Config: ", envPath, "(unreadable)")
		log.Println(errors.WithMessage(err, "failed to read config"))
	} else {
		fmt.Println("Config: ", envPath)
		for _, problem := range values.Problems() {
			fmt.Println("  Warning:", problem)
		}
	}

	if state != service.StateActive {
		fmt.Println()
		fmt.Println("Logs: journalctl -u", cfg.ServiceName, "-n 50")

		return errors.WithMessage(service.ErrInactiveService, cfg.ServiceName)
	}

	return nil
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}

	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
