package installer

import (
	"context"
	"time"
)

const (
	StepPreflight           = "preflight"
	StepSystemUpdate        = "system-update"
	StepDependencyInstall   = "dependency-install"
	StepDirectoryProvision  = "directory-provision"
	StepSourceCopy          = "source-copy"
	StepEnvironmentSetup    = "environment-setup"
	StepConfigBootstrap     = "config-bootstrap"
	StepServiceRegistration = "service-registration"
	StepHealthCheck         = "health-check"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

type Result struct {
	Step     string
	Status   Status
	Message  string
	Warnings []string
	Err      error
	Duration time.Duration
}

func success(message string, warnings ...string) Result {
	return Result{Status: StatusSuccess, Message: message, Warnings: warnings}
}

func skipped(message string, warnings ...string) Result {
	return Result{Status: StatusSkipped, Message: message, Warnings: warnings}
}

func failed(err error) Result {
	return Result{Status: StatusFailed, Err: err}
}

// Step is one idempotent installation stage.
//
// Plan inspects the host and asks the operator whatever it needs,
// it must not change anything. Run performs the mutation.
type Step interface {
	Name() string
	Title() string
	// AlwaysRun steps are not skipped when resuming.
	AlwaysRun() bool
	Plan(ctx context.Context) error
	Run(ctx context.Context) Result
}

// step adapts a set of functions to Step.
type step struct {
	name   string
	title  string
	always bool
	plan   func(ctx context.Context) error
	run    func(ctx context.Context) Result
}

func (s *step) Name() string {
	return s.name
}

func (s *step) Title() string {
	return s.title
}

func (s *step) AlwaysRun() bool {
	return s.always
}

func (s *step) Plan(ctx context.Context) error {
	if s.plan == nil {
		return nil
	}

	return s.plan(ctx)
}

func (s *step) Run(ctx context.Context) Result {
	return s.run(ctx)
}
