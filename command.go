package clk

import (
	"fmt"
	"slices"

	"github.com/gookit/color"
	"go.uber.org/zap"
)

// Callback is the body of a command. It receives the command's context and resolved parameters.
// The returned value becomes the command's result, see [Run].
type Callback func(ctx *Context, params *Params) (any, error)

// ContextFactory creates the context for a command. [NewContext] is the default.
type ContextFactory func(cmd Commander, parent *Context, infoName string, opts ...ContextOption) *Context

// Commander is implemented by [*Command], [*Group] and [*CommandCollection]. Custom command types
// embed one of them and override the methods they need.
type Commander interface {
	// Base returns the command definition shared by all command kinds.
	Base() *Command
	// ParseArgs resolves parameters from args into ctx and returns the leftover tokens.
	ParseArgs(ctx *Context, args []string) ([]string, error)
	// Invoke runs the command within a context that has been populated by ParseArgs.
	Invoke(ctx *Context) (any, error)
	InfoDict(ctx *Context) map[string]any
}

// Command is a single command: a set of parameters and a callback.
type Command struct {
	// Name identifies the command within its group and in help output.
	Name string
	// Help is the full description shown in the help page.
	Help string
	// ShortHelp is a one-line description shown in a group's command list.
	ShortHelp string
	Epilog    string
	// OptionsMetavar replaces "[OPTIONS]" in the usage line.
	OptionsMetavar string

	// Params are resolved in declaration order, except that eager parameters and parameters
	// given on the command line come first.
	Params   []Parameter
	Callback Callback

	// ContextSettings are applied to every context made for this command.
	ContextSettings []ContextOption
	ContextFactory  ContextFactory

	// NoArgsIsHelp shows the help page and exits when no arguments are given.
	NoArgsIsHelp bool
	// NoHelpOption disables the automatic help option.
	NoHelpOption bool
	Hidden       bool
	// Deprecated prints a warning to stderr on every invocation.
	Deprecated bool

	isGroup           bool
	subcommandMetavar string
}

var _ Commander = (*Command)(nil)

type parsingDefaults struct {
	allowExtraArgs        bool
	allowInterspersedArgs bool
	ignoreUnknownOptions  bool
}

func (c *Command) parsingDefaults() parsingDefaults {
	if c.isGroup {
		return parsingDefaults{allowExtraArgs: true}
	}
	return parsingDefaults{allowInterspersedArgs: true}
}

func (c *Command) Base() *Command { return c }

// MakeContext creates the context for cmd and parses args into it. Options are applied after the
// command's ContextSettings. Cleanup registered while parsing runs when the context is later
// closed, not when MakeContext returns.
func MakeContext(cmd Commander, infoName string, args []string, parent *Context, opts ...ContextOption) (*Context, error) {
	ctx := newContextFor(cmd, parent, infoName, opts...)
	err := ctx.Scope(false, func(ctx *Context) error {
		_, err := cmd.ParseArgs(ctx, args)
		return err
	})
	return ctx, err
}

func newContextFor(cmd Commander, parent *Context, infoName string, opts ...ContextOption) *Context {
	base := cmd.Base()
	all := append(slices.Clone(base.ContextSettings), opts...)
	factory := base.ContextFactory
	if factory == nil {
		factory = NewContext
	}
	return factory(cmd, parent, infoName, all...)
}

func (c *Command) ParseArgs(ctx *Context, args []string) ([]string, error) {
	return parseArgs(ctx, c, args)
}

func parseArgs(ctx *Context, cmd Commander, args []string) ([]string, error) {
	base := cmd.Base()
	if len(args) == 0 && base.NoArgsIsHelp && !ctx.resilientParsing {
		fmt.Fprintln(ctx.Stdout, FormatHelp(ctx))
		return nil, ctx.Exit(0)
	}
	params := base.GetParams(ctx)
	tokens, err := ctx.tokenizer.Tokenize(ctx, params, args)
	if err != nil && (tokens == nil || !ctx.resilientParsing) {
		return nil, annotate(err, ctx, nil)
	}
	for _, p := range paramsForProcessing(tokens.Order, params) {
		if _, _, err := Resolve(ctx, p, tokens.Opts); err != nil {
			return nil, err
		}
	}
	if len(tokens.Args) > 0 && !ctx.allowExtraArgs && !ctx.resilientParsing {
		return nil, &ExtraArgumentsError{Args: tokens.Args, Ctx: ctx}
	}
	ctx.Args = tokens.Args
	ctx.logger.Debug("parsed arguments",
		zap.String("command", ctx.infoName),
		zap.Int("params", ctx.Params.Len()),
		zap.Strings("args", ctx.Args),
	)
	return ctx.Args, nil
}

// Invoke prints the deprecation warning if needed and runs the callback. A command without a
// callback returns nil.
func (c *Command) Invoke(ctx *Context) (any, error) {
	if c.Deprecated {
		msg := fmt.Sprintf("DeprecationWarning: The command '%s' is deprecated.", c.Name)
		fmt.Fprintln(ctx.Stderr, color.FgRed.Render(msg))
	}
	if c.Callback == nil {
		return nil, nil
	}
	return ctx.invokeCallback(c.Callback)
}

// GetParams returns the declared parameters followed by the help option, if enabled.
func (c *Command) GetParams(ctx *Context) []Parameter {
	help := c.HelpOption(ctx)
	if help == nil {
		return c.Params
	}
	return append(slices.Clone(c.Params), help)
}

// HelpOption returns the automatic help option for ctx, or nil when it is disabled. Help option
// names already declared by another parameter are skipped.
func (c *Command) HelpOption(ctx *Context) *Option {
	names := c.helpOptionNames(ctx)
	if len(names) == 0 {
		return nil
	}
	return MustOption(names, OptionConfig{
		IsFlag:       true,
		NoExpose:     true,
		IsEager:      true,
		NoAutoEnvvar: true,
		Help:         "Show this message and exit.",
		Callback:     showHelp,
	})
}

func (c *Command) helpOptionNames(ctx *Context) []string {
	if c.NoHelpOption || ctx == nil {
		return nil
	}
	taken := make(map[string]bool)
	for _, p := range c.Params {
		for _, opt := range p.Opts() {
			taken[opt] = true
		}
		for _, opt := range p.SecondaryOpts() {
			taken[opt] = true
		}
	}
	var names []string
	for _, name := range ctx.helpOptionNames {
		if !taken[name] {
			names = append(names, name)
		}
	}
	return names
}

func showHelp(ctx *Context, _ Parameter, value any) (any, error) {
	if !truthy(value) || ctx.resilientParsing {
		return value, nil
	}
	fmt.Fprintln(ctx.Stdout, FormatHelp(ctx))
	return nil, ctx.Exit(0)
}

// usagePieces returns the parts of the usage line after the command path.
func (c *Command) usagePieces(ctx *Context) []string {
	metavar := c.OptionsMetavar
	if metavar == "" {
		metavar = "[OPTIONS]"
	}
	pieces := []string{metavar}
	for _, p := range c.GetParams(ctx) {
		pieces = append(pieces, p.UsagePieces(ctx)...)
	}
	if c.subcommandMetavar != "" {
		pieces = append(pieces, c.subcommandMetavar)
	}
	return pieces
}

func (c *Command) InfoDict(ctx *Context) map[string]any {
	params := make([]map[string]any, 0, len(c.Params)+1)
	for _, p := range c.GetParams(ctx) {
		params = append(params, p.InfoDict(ctx))
	}
	return map[string]any{
		"name":       c.Name,
		"params":     params,
		"help":       c.Help,
		"epilog":     c.Epilog,
		"short_help": c.ShortHelp,
		"hidden":     c.Hidden,
		"deprecated": c.Deprecated,
	}
}
