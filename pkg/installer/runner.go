package installer

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/samber/lo"
)

// Report is the outcome of a run: one result per step that was reached.
type Report struct {
	Results []Result
	Err     error
}

func (r Report) Succeeded() bool {
	return r.Err == nil
}

// Completed returns the names of steps that finished without failure.
func (r Report) Completed() []string {
	return lo.FilterMap(r.Results, func(res Result, _ int) (string, bool) {
		return res.Step, res.Status != StatusFailed
	})
}

func (r Report) Warnings() []string {
	return lo.FlatMap(r.Results, func(res Result, _ int) []string {
		return res.Warnings
	})
}

// Runner plans every step first, then runs them one by one and stops
// at the first failure.
type Runner struct {
	steps     []Step
	completed map[string]struct{}
	out       io.Writer

	// OnResult is called after each step that ran.
	OnResult func(ctx context.Context, result Result)
}

func NewRunner(out io.Writer, completed []string, steps ...Step) *Runner {
	return &Runner{
		steps: steps,
		completed: lo.SliceToMap(completed, func(name string) (string, struct{}) {
			return name, struct{}{}
		}),
		out: out,
	}
}

func (r *Runner) resumed(s Step) bool {
	if s.AlwaysRun() {
		return false
	}

	_, ok := r.completed[s.Name()]

	return ok
}

func (r *Runner) Run(ctx context.Context) Report {
	var report Report

	for _, s := range r.steps {
		if r.resumed(s) {
			continue
		}

		if err := s.Plan(ctx); err != nil {
			log.Println("Planning", s.Name(), "failed:", err)

			report.Results = append(report.Results, Result{
				Step:   s.Name(),
				Status: StatusFailed,
				Err:    err,
			})
			report.Err = err

			return report
		}
	}

	for _, s := range r.steps {
		if r.resumed(s) {
			res := Result{
				Step:    s.Name(),
				Status:  StatusSkipped,
				Message: "completed by a previous run",
			}
			report.Results = append(report.Results, res)
			r.notify(ctx, res)

			continue
		}

		_, _ = fmt.Fprintln(r.out, s.Title(), "...")
		log.Println("Step", s.Name(), "started")

		started := time.Now()
		res := s.Run(ctx)
		res.Step = s.Name()
		res.Duration = time.Since(started)

		for _, w := range res.Warnings {
			_, _ = fmt.Fprintln(r.out, "  Warning:", w)
			log.Println("Warning:", w)
		}

		switch res.Status {
		case StatusSkipped:
			_, _ = fmt.Fprintln(r.out, "  Skipped:", res.Message)
		case StatusFailed:
			log.Println("Step", s.Name(), "failed:", res.Err)
		case StatusSuccess:
			if res.Message != "" {
				_, _ = fmt.Fprintln(r.out, "  "+res.Message)
			}
		}
		log.Printf("Step %s finished with status %s in %s\n", s.Name(), res.Status, res.Duration)

		report.Results = append(report.Results, res)
		r.notify(ctx, res)

		if res.Status == StatusFailed {
			report.Err = res.Err

			return report
		}
	}

	return report
}

func (r *Runner) notify(ctx context.Context, res Result) {
	if r.OnResult != nil {
		r.OnResult(ctx, res)
	}
}
