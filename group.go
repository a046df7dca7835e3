package clk

import (
	"fmt"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/mfridman/clk/pkg/suggest"
)

// ResultCallback post-processes the result of a group invocation. In chain mode result is a
// []any with one entry per invoked subcommand.
type ResultCallback func(ctx *Context, result any, params *Params) (any, error)

// Registry stores the subcommands of a group. Implementations can load commands lazily.
type Registry interface {
	// Lookup returns the command registered under name, or nil.
	Lookup(ctx *Context, name string) (Commander, error)
	// List returns the names of all registered commands.
	List(ctx *Context) []string
	Add(name string, cmd Commander)
}

// NewMapRegistry returns an in-memory [Registry].
func NewMapRegistry() Registry {
	return &mapRegistry{cmds: make(map[string]Commander)}
}

type mapRegistry struct {
	cmds map[string]Commander
}

func (r *mapRegistry) Lookup(_ *Context, name string) (Commander, error) {
	return r.cmds[name], nil
}

func (r *mapRegistry) List(*Context) []string {
	names := make([]string, 0, len(r.cmds))
	for name := range r.cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *mapRegistry) Add(name string, cmd Commander) { r.cmds[name] = cmd }

// GroupConfig configures a [Group].
type GroupConfig struct {
	Commands []Commander
	// Chain allows several subcommands in one invocation: "cli a --x 1 b c". Subcommands of a
	// chain group cannot be groups, and the group cannot have optional arguments.
	Chain bool
	// InvokeWithoutCommand runs the group callback even when no subcommand is given.
	InvokeWithoutCommand bool
	// NoArgsIsHelp defaults to the negation of InvokeWithoutCommand.
	NoArgsIsHelp      *bool
	SubcommandMetavar string
	ResultCallback    ResultCallback
	// Registry defaults to [NewMapRegistry].
	Registry Registry
	// CommandFactory builds the commands created with [Group.Subcommand].
	CommandFactory func(name string, cb Callback, params ...Parameter) (*Command, error)
	// GroupFactory builds the groups created with [Group.Subgroup]. Subgroups inherit both
	// factories unless their config sets their own.
	GroupFactory func(cmd Command, cfg GroupConfig) (*Group, error)
}

// Group is a command that dispatches to subcommands. The group's own parameters are parsed
// first; the first leftover token names the subcommand, which parses the rest.
type Group struct {
	Command

	chain                bool
	invokeWithoutCommand bool
	resultCallback       ResultCallback
	registry             Registry
	commandFactory       func(name string, cb Callback, params ...Parameter) (*Command, error)
	groupFactory         func(cmd Command, cfg GroupConfig) (*Group, error)
}

var _ Commander = (*Group)(nil)

// NewGroup creates a group from a command definition and registers cfg.Commands.
func NewGroup(cmd Command, cfg GroupConfig) (*Group, error) {
	g := &Group{
		Command:              cmd,
		chain:                cfg.Chain,
		invokeWithoutCommand: cfg.InvokeWithoutCommand,
		resultCallback:       cfg.ResultCallback,
		registry:             cfg.Registry,
		commandFactory:       cfg.CommandFactory,
		groupFactory:         cfg.GroupFactory,
	}
	g.isGroup = true
	g.NoArgsIsHelp = deref(cfg.NoArgsIsHelp, !cfg.InvokeWithoutCommand)
	if g.registry == nil {
		g.registry = NewMapRegistry()
	}
	g.subcommandMetavar = cfg.SubcommandMetavar
	if g.subcommandMetavar == "" {
		if g.chain {
			g.subcommandMetavar = "COMMAND1 [ARGS]... [COMMAND2 [ARGS]...]..."
		} else {
			g.subcommandMetavar = "COMMAND [ARGS]..."
		}
	}
	if g.chain {
		for _, p := range g.Params {
			if a, ok := p.(*Argument); ok && !a.Required() {
				return nil, fmt.Errorf("group %q: a group in chain mode cannot have optional arguments", g.Name)
			}
		}
	}
	for _, sub := range cfg.Commands {
		if err := g.AddCommand(sub); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// MustGroup is like [NewGroup] but panics on error.
func MustGroup(cmd Command, cfg GroupConfig) *Group {
	g, err := NewGroup(cmd, cfg)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Group) Chain() bool                { return g.chain }
func (g *Group) InvokeWithoutCommand() bool { return g.invokeWithoutCommand }

// AddCommand registers cmd under its name, or under name when given.
func (g *Group) AddCommand(cmd Commander, name ...string) error {
	n := cmd.Base().Name
	if len(name) > 0 {
		n = name[0]
	}
	if n == "" {
		return fmt.Errorf("group %q: command has no name", g.Name)
	}
	if err := checkNestedChain(g, n, cmd); err != nil {
		return err
	}
	g.registry.Add(n, cmd)
	return nil
}

func checkNestedChain(g *Group, name string, cmd Commander) error {
	if !g.chain || !cmd.Base().isGroup {
		return nil
	}
	return fmt.Errorf("it is not possible to add the group %q to another group %q that is in chain mode", name, g.Name)
}

// Subcommand creates a command with the group's command factory and registers it.
func (g *Group) Subcommand(name string, cb Callback, params ...Parameter) (*Command, error) {
	var (
		cmd *Command
		err error
	)
	if g.commandFactory != nil {
		cmd, err = g.commandFactory(name, cb, params...)
		if err != nil {
			return nil, err
		}
	} else {
		cmd = &Command{Name: name, Callback: cb, Params: params}
	}
	return cmd, g.AddCommand(cmd)
}

// Subgroup creates a group with the group's group factory and registers it.
func (g *Group) Subgroup(cmd Command, cfg GroupConfig) (*Group, error) {
	if cfg.CommandFactory == nil {
		cfg.CommandFactory = g.commandFactory
	}
	if cfg.GroupFactory == nil {
		cfg.GroupFactory = g.groupFactory
	}
	factory := cfg.GroupFactory
	if factory == nil {
		factory = NewGroup
	}
	sub, err := factory(cmd, cfg)
	if err != nil {
		return nil, err
	}
	return sub, g.AddCommand(sub)
}

// SetResultCallback installs fn as the result callback. Unless replace is set, an existing
// callback is kept and fn receives its output.
func (g *Group) SetResultCallback(fn ResultCallback, replace bool) {
	old := g.resultCallback
	if old == nil || replace {
		g.resultCallback = fn
		return
	}
	g.resultCallback = func(ctx *Context, result any, params *Params) (any, error) {
		inner, err := old(ctx, result, params)
		if err != nil {
			return nil, err
		}
		return fn(ctx, inner, params)
	}
}

// GetCommand returns the subcommand registered under name, or nil.
func (g *Group) GetCommand(ctx *Context, name string) (Commander, error) {
	return g.registry.Lookup(ctx, name)
}

// ListCommands returns the sorted names of the subcommands.
func (g *Group) ListCommands(ctx *Context) []string {
	names := slices.Clone(g.registry.List(ctx))
	slices.Sort(names)
	return names
}

func (g *Group) ParseArgs(ctx *Context, args []string) ([]string, error) {
	rest, err := parseArgs(ctx, g, args)
	if err != nil {
		return nil, err
	}
	if g.chain {
		ctx.protectedArgs = rest
		ctx.Args = nil
	} else if len(rest) > 0 {
		ctx.protectedArgs = rest[:1]
		ctx.Args = rest[1:]
	}
	return ctx.Args, nil
}

// ResolveCommand finds the subcommand named by args[0] and returns its name, the command, and the
// remaining tokens. Names are tried as given and then normalized.
func (g *Group) ResolveCommand(ctx *Context, args []string) (string, Commander, []string, error) {
	name := args[0]
	cmd, err := g.GetCommand(ctx, name)
	if err != nil {
		return "", nil, nil, annotate(err, ctx, nil)
	}
	if cmd == nil && ctx.tokenNormalize != nil {
		name = ctx.tokenNormalize(name)
		if cmd, err = g.GetCommand(ctx, name); err != nil {
			return "", nil, nil, annotate(err, ctx, nil)
		}
	}
	if cmd == nil && !ctx.resilientParsing {
		// An option here was not consumed by the group; parsing again reports it properly.
		if looksLikeOption(args[0]) {
			if _, err := g.ParseArgs(ctx, ctx.Args); err != nil {
				return "", nil, nil, err
			}
		}
		return "", nil, nil, &NoSuchCommandError{
			Name:        args[0],
			Suggestions: suggest.FindSimilar(args[0], g.ListCommands(ctx), 3),
			Ctx:         ctx,
		}
	}
	if cmd == nil {
		return "", nil, args[1:], nil
	}
	return name, cmd, args[1:], nil
}

func (g *Group) processResult(ctx *Context, value any) (any, error) {
	if g.resultCallback == nil {
		return value, nil
	}
	var rv any
	err := ctx.Scope(true, func(ctx *Context) error {
		var err error
		rv, err = g.resultCallback(ctx, value, ctx.Params)
		return err
	})
	return rv, annotate(err, ctx, nil)
}

// Invoke runs the group callback and then the selected subcommands.
func (g *Group) Invoke(ctx *Context) (any, error) {
	if len(ctx.protectedArgs) == 0 {
		if !g.invokeWithoutCommand {
			return nil, &UsageError{Message: "Missing command.", Ctx: ctx, Err: ErrMissingCommand}
		}
		var rv any
		err := ctx.Scope(true, func(ctx *Context) error {
			out, err := g.Command.Invoke(ctx)
			if err != nil {
				return err
			}
			if g.chain {
				out = []any{}
			}
			rv, err = g.processResult(ctx, out)
			return err
		})
		return rv, err
	}

	args := append(slices.Clone(ctx.protectedArgs), ctx.Args...)
	ctx.Args = nil
	ctx.protectedArgs = nil

	if !g.chain {
		var rv any
		err := ctx.Scope(true, func(ctx *Context) error {
			name, cmd, rest, err := g.ResolveCommand(ctx, args)
			if err != nil {
				return err
			}
			if cmd == nil {
				return &NoSuchCommandError{Name: args[0], Ctx: ctx}
			}
			ctx.InvokedSubcommand = name
			if _, err := g.Command.Invoke(ctx); err != nil {
				return err
			}
			ctx.logger.Debug("invoking subcommand", zap.String("group", ctx.infoName), zap.String("command", name))
			sub, err := MakeContext(cmd, name, rest, ctx)
			if err != nil {
				return err
			}
			return sub.Scope(true, func(sub *Context) error {
				out, err := cmd.Invoke(sub)
				if err != nil {
					return err
				}
				rv, err = g.processResult(ctx, out)
				return err
			})
		})
		return rv, err
	}

	var rv any
	err := ctx.Scope(true, func(ctx *Context) error {
		if len(args) > 0 {
			ctx.InvokedSubcommand = "*"
		}
		if _, err := g.Command.Invoke(ctx); err != nil {
			return err
		}
		// Every subcommand is parsed before any of them runs, so a usage error anywhere in the
		// chain stops the whole invocation.
		var contexts []*Context
		for len(args) > 0 {
			name, cmd, rest, err := g.ResolveCommand(ctx, args)
			if err != nil {
				return err
			}
			if cmd == nil {
				return &NoSuchCommandError{Name: args[0], Ctx: ctx}
			}
			sub, err := MakeContext(cmd, name, rest, ctx,
				WithAllowExtraArgs(true),
				WithAllowInterspersedArgs(false),
			)
			if err != nil {
				return err
			}
			contexts = append(contexts, sub)
			args, sub.Args = sub.Args, nil
		}
		results := make([]any, 0, len(contexts))
		for _, sub := range contexts {
			ctx.logger.Debug("invoking chained subcommand", zap.String("group", ctx.infoName), zap.String("command", sub.infoName))
			err := sub.Scope(true, func(sub *Context) error {
				out, err := sub.command.Invoke(sub)
				results = append(results, out)
				return err
			})
			if err != nil {
				return err
			}
		}
		var err error
		rv, err = g.processResult(ctx, results)
		return err
	})
	return rv, err
}

func (g *Group) InfoDict(ctx *Context) map[string]any {
	info := g.Command.InfoDict(ctx)
	commands := make(map[string]any)
	for _, name := range g.ListCommands(ctx) {
		cmd, err := g.GetCommand(ctx, name)
		if err != nil || cmd == nil {
			continue
		}
		sub := newContextFor(cmd, ctx, name)
		_ = sub.Scope(false, func(sub *Context) error {
			commands[name] = cmd.InfoDict(sub)
			return nil
		})
	}
	info["commands"] = commands
	info["chain"] = g.chain
	return info
}
