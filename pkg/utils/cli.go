package utils

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Asker reads operator answers line by line.
type Asker struct {
	reader *bufio.Reader
	out    io.Writer

	// pending is the read still in flight after a cancelled question.
	pending chan readResult
}

type readResult struct {
	line string
	err  error
}

func NewAsker(in io.Reader, out io.Writer) *Asker {
	return &Asker{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

func NewStdAsker() *Asker {
	return NewAsker(os.Stdin, os.Stdout)
}

func (a *Asker) Ask(
	ctx context.Context,
	question string,
	allowEmpty bool,
	validate func(string) (bool, string, error),
) (string, error) {
	_, _ = fmt.Fprintln(a.out, "")

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		_, _ = fmt.Fprint(a.out, question)

		result, err := a.readLine(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		if err != nil && !(errors.Is(err, io.EOF) && result != "") {
			return result, errors.WithMessage(err, "failed to read string")
		}
		result = strings.TrimSpace(result)

		if allowEmpty && result == "" {
			return result, nil
		}

		if validate != nil {
			ok, message, err := validate(result)
			if err != nil {
				return "", err
			}
			if !ok {
				_, _ = fmt.Fprintln(a.out, message)

				continue
			}
		}

		if result != "" {
			return result, nil
		}
	}
}

// readLine returns the next input line or the context error, whichever
// comes first. A read interrupted by the context is picked up by the next call.
func (a *Asker) readLine(ctx context.Context) (string, error) {
	if a.pending == nil {
		ch := make(chan readResult, 1)
		go func() {
			line, err := a.reader.ReadString('\n')
			ch <- readResult{line: line, err: err}
		}()
		a.pending = ch
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-a.pending:
		a.pending = nil

		return res.line, res.err
	}
}

// AskYesNo asks a y/n question. An empty answer selects defaultAnswer.
func (a *Asker) AskYesNo(ctx context.Context, question string, defaultAnswer bool) (bool, error) {
	hint := " [y/N]: "
	if defaultAnswer {
		hint = " [Y/n]: "
	}

	answer, err := a.Ask(ctx, question+hint, true, func(s string) (bool, string, error) {
		switch strings.ToLower(s) {
		case "y", "yes", "n", "no":
			return true, "", nil
		}

		return false, "Please answer y or n", nil
	})
	if err != nil {
		return false, err
	}

	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	}

	return defaultAnswer, nil
}

// WaitEnter blocks until the operator presses Enter.
func (a *Asker) WaitEnter(ctx context.Context, message string) error {
	_, err := a.Ask(ctx, message, true, nil)
	if errors.Is(err, io.EOF) {
		return nil
	}

	return err
}
