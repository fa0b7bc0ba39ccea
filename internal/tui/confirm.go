package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/huh"
)

// ConfirmDecider asks the user through an interactive huh prompt.
type ConfirmDecider struct {
	Affirmative string
	Negative    string
}

// NewConfirmDecider returns a decider with Yes/No buttons.
func NewConfirmDecider() *ConfirmDecider {
	return &ConfirmDecider{Affirmative: "Yes", Negative: "No"}
}

// Confirm shows prompt and returns the user's answer. An aborted prompt
// counts as a decline.
func (d *ConfirmDecider) Confirm(ctx context.Context, prompt string) (bool, error) {
	var answer bool
	field := huh.NewConfirm().
		Title(prompt).
		Affirmative(d.Affirmative).
		Negative(d.Negative).
		Value(&answer)

	err := huh.NewForm(huh.NewGroup(field)).RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("confirm prompt: %w", err)
	}
	return answer, nil
}

// AutoDecider answers every prompt with a fixed value, optionally echoing
// the prompt and answer to Out.
type AutoDecider struct {
	Answer bool
	Out    io.Writer
}

// Confirm returns d.Answer.
func (d AutoDecider) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if d.Out != nil {
		reply := "no"
		if d.Answer {
			reply = "yes"
		}
		fmt.Fprintf(d.Out, "%s %s\n", prompt, reply)
	}
	return d.Answer, nil
}
