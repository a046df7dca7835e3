package clk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// RunOptions specifies options for running a command tree.
type RunOptions struct {
	// Stdin, Stdout, and Stderr are the standard input, output, and error streams for the command.
	// If any of these are nil, the command will use the default streams ([os.Stdin], [os.Stdout],
	// and [os.Stderr], respectively).
	Stdin          io.Reader
	Stdout, Stderr io.Writer

	// ProgName is the name of the root command in usage lines. Defaults to the base name of
	// os.Args[0].
	ProgName string
	// ContextOptions configure the root context.
	ContextOptions []ContextOption
	// LookupEnv replaces [os.LookupEnv] for every environment lookup.
	LookupEnv func(string) (string, bool)

	// CompleteVar is the environment variable that requests shell completion. Defaults to
	// _PROG_COMPLETE with PROG derived from ProgName.
	CompleteVar string
	// Complete handles a completion request and returns the exit code. When nil, completion
	// requests are ignored.
	Complete func(ctx context.Context, cmd Commander, progName, instruction string) int

	// Exit is called by [Main] with the exit code. Defaults to [os.Exit].
	Exit func(code int)
}

// Run parses args for cmd and invokes it, returning the command's result. Errors are returned
// unchanged, except that an exit request ([Context.Exit], or the help option) makes Run return
// the exit code as the result with a nil error.
//
// The options parameter may be nil, in which case default values are used. See [RunOptions] for
// more details.
func Run(ctx context.Context, cmd Commander, args []string, options *RunOptions) (any, error) {
	options = checkAndSetRunOptions(options)
	rv, err := run(ctx, cmd, args, options)
	if exitErr := (*ExitError)(nil); errors.As(err, &exitErr) {
		return exitErr.Code, nil
	}
	return rv, err
}

func run(ctx context.Context, cmd Commander, args []string, options *RunOptions) (any, error) {
	opts := []ContextOption{
		WithGoContext(ctx),
		WithIO(options.Stdin, options.Stdout, options.Stderr),
	}
	if options.LookupEnv != nil {
		opts = append(opts, WithLookupEnv(options.LookupEnv))
	}
	opts = append(opts, options.ContextOptions...)

	c, err := MakeContext(cmd, options.ProgName, args, nil, opts...)
	if err != nil {
		return nil, err
	}
	var rv any
	err = c.Scope(true, func(c *Context) error {
		var err error
		rv, err = cmd.Invoke(c)
		return err
	})
	return rv, err
}

// Main runs cmd as a program: it handles completion requests, runs the command with args and
// exits. Usage errors are shown with the usage line and exit with code 2, aborts print
// "Aborted!" and exit with code 1, and a closed output pipe exits quietly with code 1. A nil args
// means os.Args[1:].
func Main(ctx context.Context, cmd Commander, args []string, options *RunOptions) {
	options = checkAndSetRunOptions(options)
	if args == nil {
		args = os.Args[1:]
	}
	lookupEnv := options.LookupEnv
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	if instruction, ok := lookupEnv(options.CompleteVar); ok && instruction != "" && options.Complete != nil {
		options.Exit(options.Complete(ctx, cmd, options.ProgName, instruction))
		return
	}
	_, err := run(ctx, cmd, args, options)
	options.Exit(exitCode(err, options.Stderr))
}

func exitCode(err error, stderr io.Writer) int {
	var (
		exitErr *ExitError
		userErr UserError
	)
	switch {
	case err == nil:
		return ExitCodeOK
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, ErrAbort), errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Aborted!")
		return ExitCodeError
	case errors.Is(err, syscall.EPIPE):
		return ExitCodeError
	case errors.As(err, &userErr):
		userErr.Show(stderr)
		return userErr.ExitCode()
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitCodeError
	}
}

func checkAndSetRunOptions(opt *RunOptions) *RunOptions {
	if opt == nil {
		opt = &RunOptions{}
	} else {
		copied := *opt
		opt = &copied
	}
	if opt.Stdin == nil {
		opt.Stdin = os.Stdin
	}
	if opt.Stdout == nil {
		opt.Stdout = os.Stdout
	}
	if opt.Stderr == nil {
		opt.Stderr = os.Stderr
	}
	if opt.ProgName == "" {
		opt.ProgName = filepath.Base(os.Args[0])
	}
	if opt.CompleteVar == "" {
		name := strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(opt.ProgName)
		opt.CompleteVar = "_" + strings.ToUpper(name) + "_COMPLETE"
	}
	if opt.Exit == nil {
		opt.Exit = os.Exit
	}
	return opt
}
