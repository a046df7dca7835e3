package clk

import (
	"errors"
	"io"

	"github.com/mfridman/clk/pkg/prompt"
)

// PromptRequest describes a value prompt.
type PromptRequest struct {
	Text string
	// Default is offered when the answer is empty.
	Default   any
	HideInput bool
	// Confirm asks twice and requires matching answers.
	Confirm          bool
	ConfirmationText string
	// Convert validates and converts an answer. A failed conversion repeats the prompt.
	Convert func(value any) (any, error)
}

// Prompter asks the user for missing option values. Implementations return [ErrAbort] when the
// user gives up.
type Prompter interface {
	Prompt(ctx *Context, req PromptRequest) (any, error)
	Confirm(ctx *Context, text string, def *bool) (bool, error)
}

// TerminalPrompter prompts on a pair of streams. Hidden input is read without echo when In is a
// terminal.
type TerminalPrompter struct {
	In  io.Reader
	Out io.Writer
}

var _ Prompter = (*TerminalPrompter)(nil)

func (t *TerminalPrompter) Prompt(ctx *Context, req PromptRequest) (any, error) {
	v, err := prompt.Ask(t.In, t.Out, req.Text, prompt.Options{
		Default:     req.Default,
		ShowDefault: !req.HideInput,
		HideInput:   req.HideInput,
		Confirm:     req.Confirm,
		ConfirmText: req.ConfirmationText,
	}, req.Convert)
	return v, abortOnEOF(err)
}

func (t *TerminalPrompter) Confirm(_ *Context, text string, def *bool) (bool, error) {
	v, err := prompt.Confirm(t.In, t.Out, text, def)
	return v, abortOnEOF(err)
}

func abortOnEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return ErrAbort
	}
	return err
}
