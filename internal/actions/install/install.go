package install

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"github.com/xuibot/botctl/internal/actions"
	"github.com/xuibot/botctl/internal/config"
	contextInternal "github.com/xuibot/botctl/internal/context"
	"github.com/xuibot/botctl/internal/pkg/botctl"
	"github.com/xuibot/botctl/pkg/installer"
	"github.com/xuibot/botctl/pkg/utils"
)

func Flags() []cli.Flag {
	return append(actions.TargetFlags(),
		&cli.StringFlag{
			Name:  "user",
			Usage: "User the service runs as (defaults to the current user)",
		},
		&cli.StringFlag{
			Name:  "group",
			Usage: "Group the service runs as (defaults to the user's primary group)",
		},
		&cli.StringFlag{
			Name:  "source",
			Usage: "Project directory or remote source (git::https://..., https://.../bot.tar.gz)",
		},
		&cli.StringFlag{
			Name:  "marker",
			Usage: "File that must exist in the source directory",
		},
		&cli.StringFlag{
			Name:  "entry",
			Usage: "Bot entry script, relative to the install directory",
		},
		&cli.StringFlag{
			Name:  "requirements",
			Usage: "Requirements manifest, relative to the install directory",
		},
		&cli.StringSliceFlag{
			Name:  "env-template",
			Usage: "Configuration template file name, repeatable",
		},
		&cli.StringSliceFlag{
			Name:  "env",
			Usage: "KEY=VALUE written to a newly created .env, repeatable",
		},
		&cli.DurationFlag{
			Name:  "settle-delay",
			Usage: "Delay before the health check",
		},
		&cli.IntFlag{
			Name:  "restart-sec",
			Usage: "Delay before systemd restarts the bot",
		},
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "Answer yes to confirmation prompts",
		},
		&cli.BoolFlag{
			Name:  "skip-upgrade",
			Usage: "Refresh the package index without upgrading installed packages",
		},
		&cli.BoolFlag{
			Name:  "best-effort-copy",
			Usage: "Continue when some project files can't be copied",
		},
		&cli.BoolFlag{
			Name:  "resume",
			Usage: "Skip steps completed by the previous run",
		},
	)
}

func loadConfig(cliCtx *cli.Context) (config.Install, error) {
	cfg, err := actions.LoadConfig(cliCtx)
	if err != nil {
		return cfg, err
	}

	return cfg.Merge(config.Install{
		User:           cliCtx.String("user"),
		Group:          cliCtx.String("group"),
		Source:         cliCtx.String("source"),
		Marker:         cliCtx.String("marker"),
		Entry:          cliCtx.String("entry"),
		Requirements:   cliCtx.String("requirements"),
		EnvTemplates:   cliCtx.StringSlice("env-template"),
		Env:            cliCtx.StringSlice("env"),
		SettleDelay:    cliCtx.Duration("settle-delay"),
		RestartSec:     cliCtx.Int("restart-sec"),
		AssumeYes:      cliCtx.Bool("yes"),
		SkipUpgrade:    cliCtx.Bool("skip-upgrade"),
		BestEffortCopy: cliCtx.Bool("best-effort-copy"),
	}), nil
}

//nolint:funlen
func Handle(cliCtx *cli.Context) error {
	ctx := cliCtx.Context

	cfg, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}

	osInfo := contextInternal.OSInfoFromContext(ctx)
	fmt.Printf(
		"Detected operating system as %s/%s (%s).\n",
		osInfo.Distribution,
		osInfo.DistributionCodename,
		osInfo.Platform,
	)
	log.Println(osInfo.String())

	sourceDir, cleanup, err := prepareSource(ctx, cfg.Source)
	if err != nil {
		return err
	}
	defer cleanup()

	opts, err := cfg.InstallerOptions(sourceDir)
	if err != nil {
		return errors.WithMessage(err, "invalid --env value")
	}
	opts.NonInteractive = contextInternal.NonInteractiveFromContext(ctx)

	if cliCtx.Bool("resume") {
		opts.Completed = previouslyCompleted(ctx, opts.Target)
	}

	inst, err := installer.New(opts, installer.Dependencies{
		Prompter: installer.NewTerminalPrompter(utils.NewStdAsker()),
	}, os.Stdout)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Install directory:", inst.Target().InstallDir)
	fmt.Println("Service name:", inst.Target().ServiceName)
	fmt.Println()

	recorder := newStateRecorder(inst.Target(), opts.Completed, botctl.SaveInstallState)

	report := inst.Run(ctx, func(ctx context.Context, result installer.Result) {
		recorder.record(ctx, inst.Target(), result)
	})

	recorder.finish(ctx, inst.Target(), report)

	fmt.Println()
	fmt.Println(RenderReport(report, inst.Target()))

	if report.Err != nil {
		return errors.WithMessage(report.Err, "installation failed")
	}

	return nil
}

// stateRecorder persists install progress for --resume. Nothing is written
// until a step has finished without failure, so a run rejected while
// planning leaves the host untouched.
type stateRecorder struct {
	state botctl.InstallState
	save  func(ctx context.Context, state botctl.InstallState) error
	ran   bool
}

func newStateRecorder(
	target installer.Target,
	completed []string,
	save func(ctx context.Context, state botctl.InstallState) error,
) *stateRecorder {
	return &stateRecorder{
		state: botctl.InstallState{
			Target:         target,
			CompletedSteps: append([]string{}, completed...),
			StartedAt:      time.Now(),
		},
		save: save,
	}
}

func (r *stateRecorder) record(ctx context.Context, target installer.Target, result installer.Result) {
	r.state.Target = target

	if result.Status != installer.StatusFailed {
		r.state.MarkCompleted(result.Step)
		r.ran = true
	}

	r.persist(ctx)
}

func (r *stateRecorder) finish(ctx context.Context, target installer.Target, report installer.Report) {
	r.state.Target = target
	r.state.FinishedAt = time.Now()
	r.state.Succeeded = report.Succeeded()
	if report.Err != nil {
		r.state.LastError = report.Err.Error()
	}

	r.persist(ctx)
}

func (r *stateRecorder) persist(ctx context.Context) {
	if !r.ran {
		return
	}

	if err := r.save(ctx, r.state); err != nil {
		log.Println(errors.WithMessage(err, "failed to save install state"))
	}
}

func previouslyCompleted(ctx context.Context, target installer.Target) []string {
	state, err := botctl.LoadInstallState(ctx)
	if err != nil {
		log.Println(errors.WithMessage(err, "failed to load install state, nothing to resume"))

		return nil
	}

	target.InstallDir = filepath.Clean(target.InstallDir)
	completed := state.CompletedFor(target)
	if len(completed) > 0 {
		fmt.Println("Resuming, completed steps:", strings.Join(completed, ", "))
	}

	return completed
}

// prepareSource returns a local directory with the project files. Remote
// sources are fetched into a temporary directory removed by cleanup.
func prepareSource(ctx context.Context, source string) (string, func(), error) {
	noop := func() {}

	if !isRemoteSource(source) {
		return source, noop, nil
	}

	tmpDir, err := os.MkdirTemp("", "botctl-source-")
	if err != nil {
		return "", noop, errors.WithMessage(err, "failed to create temp directory")
	}
	cleanup := func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			log.Println(errors.WithMessage(err, "failed to remove temp directory"))
		}
	}

	dst := filepath.Join(tmpDir, "src")

	fmt.Println("Downloading project from", source, "...")
	if err = utils.Download(ctx, source, dst); err != nil {
		cleanup()

		return "", noop, errors.WithMessagef(err, "failed to download %s", source)
	}

	return dst, cleanup, nil
}

func isRemoteSource(source string) bool {
	return strings.Contains(source, "://") ||
		strings.Contains(source, "::") ||
		strings.HasPrefix(source, "git@") ||
		strings.HasPrefix(source, "github.com/")
}
