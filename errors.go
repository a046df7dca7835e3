package clk

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Exit codes used by [Main] when a command fails.
const (
	ExitCodeOK    = 0
	ExitCodeError = 1
	ExitCodeUsage = 2
)

var (
	// ErrAbort is returned when the user aborts the program, for example by closing stdin while a
	// prompt is waiting for input. [Main] prints "Aborted!" and exits with code 1.
	ErrAbort = errors.New("aborted")

	// ErrMissingCommand is wrapped by the usage error returned when a group is invoked without a
	// subcommand and does not allow that.
	ErrMissingCommand = errors.New("missing command")

	// ErrWrongValueCount is wrapped by the error returned when a parameter that takes a fixed
	// number of values receives a different number.
	ErrWrongValueCount = errors.New("wrong number of values")
)

// ExitError requests that the program exit with the given code. It is not a failure by itself: a
// code of 0 is a normal early exit, as done by the help option.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the requested exit code.
func (e *ExitError) ExitCode() int { return e.Code }

// UserError is implemented by errors that know how to present themselves to the user. [Main]
// calls Show with the error stream and exits with ExitCode.
type UserError interface {
	error
	ExitCode() int
	Show(w io.Writer)
}

// UsageError is an incorrect use of a command: unknown options, missing values, extra arguments.
type UsageError struct {
	Message string
	// Ctx is the context the error happened in. It is filled in as the error travels up through
	// the parsing pipeline when not set explicitly.
	Ctx *Context
	Err error
}

func (e *UsageError) Error() string { return e.Message }
func (e *UsageError) Unwrap() error { return e.Err }
func (e *UsageError) ExitCode() int { return ExitCodeUsage }

// Show writes the usage line, a help hint, and the message to w.
func (e *UsageError) Show(w io.Writer) { showUsageError(w, e.Ctx, e.Error()) }

func (e *UsageError) attach(ctx *Context, _ Parameter) {
	if e.Ctx == nil {
		e.Ctx = ctx
	}
}

// BadParameterError reports an invalid value for a parameter.
type BadParameterError struct {
	Message string
	Ctx     *Context
	Param   Parameter
	// ParamHint overrides the parameter description used in the message.
	ParamHint string
	Err       error
}

// NewBadParameter returns a [BadParameterError] with the given message. Parameter types and
// callbacks return it to reject a value; the pipeline attaches the parameter and context.
func NewBadParameter(format string, args ...any) *BadParameterError {
	return &BadParameterError{Message: fmt.Sprintf(format, args...)}
}

func (e *BadParameterError) Error() string {
	hint := e.ParamHint
	if hint == "" && e.Param != nil {
		hint = e.Param.ErrorHint(e.Ctx)
	}
	if hint == "" {
		return "Invalid value: " + e.Message
	}
	return fmt.Sprintf("Invalid value for %s: %s", hint, e.Message)
}

func (e *BadParameterError) Unwrap() error    { return e.Err }
func (e *BadParameterError) ExitCode() int    { return ExitCodeUsage }
func (e *BadParameterError) Show(w io.Writer) { showUsageError(w, e.Ctx, e.Error()) }

func (e *BadParameterError) attach(ctx *Context, p Parameter) {
	if e.Ctx == nil {
		e.Ctx = ctx
	}
	if e.Param == nil && p != nil {
		e.Param = p
	}
}

// MissingParameterError reports a required parameter that received no value.
type MissingParameterError struct {
	Message string
	Ctx     *Context
	Param   Parameter
}

func (e *MissingParameterError) Error() string {
	kind, hint := "parameter", ""
	if e.Param != nil {
		kind = e.Param.paramTypeName()
		hint = e.Param.ErrorHint(e.Ctx)
	}
	var b strings.Builder
	b.WriteString("Missing ")
	b.WriteString(kind)
	if hint != "" {
		b.WriteString(" " + hint)
	}
	b.WriteString(".")
	if e.Message != "" {
		b.WriteString(" " + e.Message)
	}
	return b.String()
}

func (e *MissingParameterError) ExitCode() int    { return ExitCodeUsage }
func (e *MissingParameterError) Show(w io.Writer) { showUsageError(w, e.Ctx, e.Error()) }

func (e *MissingParameterError) attach(ctx *Context, p Parameter) {
	if e.Ctx == nil {
		e.Ctx = ctx
	}
	if e.Param == nil && p != nil {
		e.Param = p
	}
}

// NoSuchOptionError reports an option token that no parameter declares.
type NoSuchOptionError struct {
	Option        string
	Possibilities []string
	Ctx           *Context
}

func (e *NoSuchOptionError) Error() string {
	msg := "No such option: " + e.Option
	switch len(e.Possibilities) {
	case 0:
		return msg
	case 1:
		return fmt.Sprintf("%s Did you mean %s?", msg, e.Possibilities[0])
	default:
		return fmt.Sprintf("%s (Possible options: %s)", msg, strings.Join(e.Possibilities, ", "))
	}
}

func (e *NoSuchOptionError) ExitCode() int    { return ExitCodeUsage }
func (e *NoSuchOptionError) Show(w io.Writer) { showUsageError(w, e.Ctx, e.Error()) }

func (e *NoSuchOptionError) attach(ctx *Context, _ Parameter) {
	if e.Ctx == nil {
		e.Ctx = ctx
	}
}

// NoSuchCommandError reports a subcommand name that the group cannot resolve.
type NoSuchCommandError struct {
	Name        string
	Suggestions []string
	Ctx         *Context
}

func (e *NoSuchCommandError) Error() string {
	msg := fmt.Sprintf("No such command '%s'.", e.Name)
	if len(e.Suggestions) > 0 {
		msg += " Did you mean one of these?\n\t" + strings.Join(e.Suggestions, "\n\t")
	}
	return msg
}

func (e *NoSuchCommandError) ExitCode() int    { return ExitCodeUsage }
func (e *NoSuchCommandError) Show(w io.Writer) { showUsageError(w, e.Ctx, e.Error()) }

func (e *NoSuchCommandError) attach(ctx *Context, _ Parameter) {
	if e.Ctx == nil {
		e.Ctx = ctx
	}
}

// ExtraArgumentsError reports leftover tokens on a command that does not accept them.
type ExtraArgumentsError struct {
	Args []string
	Ctx  *Context
}

func (e *ExtraArgumentsError) Error() string {
	noun := "argument"
	if len(e.Args) > 1 {
		noun = "arguments"
	}
	return fmt.Sprintf("Got unexpected extra %s (%s)", noun, strings.Join(e.Args, " "))
}

func (e *ExtraArgumentsError) ExitCode() int    { return ExitCodeUsage }
func (e *ExtraArgumentsError) Show(w io.Writer) { showUsageError(w, e.Ctx, e.Error()) }

func (e *ExtraArgumentsError) attach(ctx *Context, _ Parameter) {
	if e.Ctx == nil {
		e.Ctx = ctx
	}
}

// attacher is implemented by the usage error family so the pipeline can fill in the context and
// parameter an error belongs to.
type attacher interface {
	attach(ctx *Context, p Parameter)
}

// annotate attaches ctx and p to any usage error in err's chain that does not carry them yet.
func annotate(err error, ctx *Context, p Parameter) error {
	if err == nil {
		return nil
	}
	var a attacher
	if errors.As(err, &a) {
		a.attach(ctx, p)
	}
	return err
}

func showUsageError(w io.Writer, ctx *Context, msg string) {
	if ctx != nil {
		fmt.Fprintln(w, UsageLine(ctx))
		if names := helpNamesFor(ctx); len(names) > 0 {
			fmt.Fprintf(w, "Try '%s %s' for help.\n", ctx.CommandPath(), names[0])
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Error: %s\n", msg)
}

func helpNamesFor(ctx *Context) []string {
	if ctx.command == nil {
		return nil
	}
	return ctx.command.Base().helpOptionNames(ctx)
}
