package installer

import (
	"context"

	"github.com/xuibot/botctl/pkg/utils"
)

// Prompter asks the operator for decisions during a run.
type Prompter interface {
	Confirm(ctx context.Context, question string, defaultAnswer bool) (bool, error)
	// Pause blocks until the operator is ready to continue.
	Pause(ctx context.Context, message string) error
}

type TerminalPrompter struct {
	asker *utils.Asker
}

func NewTerminalPrompter(asker *utils.Asker) *TerminalPrompter {
	return &TerminalPrompter{asker: asker}
}

func (p *TerminalPrompter) Confirm(ctx context.Context, question string, defaultAnswer bool) (bool, error) {
	return p.asker.AskYesNo(ctx, question, defaultAnswer)
}

func (p *TerminalPrompter) Pause(ctx context.Context, message string) error {
	return p.asker.WaitEnter(ctx, message)
}

// AutoPrompter answers every question with Answer and never blocks.
type AutoPrompter struct {
	Answer bool
}

func (p AutoPrompter) Confirm(_ context.Context, _ string, _ bool) (bool, error) {
	return p.Answer, nil
}

func (p AutoPrompter) Pause(_ context.Context, _ string) error {
	return nil
}
