package clk

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestContextScope(t *testing.T) {
	t.Parallel()

	t.Run("cleanup runs once in reverse order", func(t *testing.T) {
		t.Parallel()
		ctx := NewContext(&Command{Name: "prog"}, nil, "prog")
		var order []string
		err := ctx.Scope(true, func(ctx *Context) error {
			ctx.CallOnClose(func() error { order = append(order, "first"); return nil })
			WithResource(ctx, closerFunc(func() error { order = append(order, "second"); return nil }))
			return ctx.Scope(true, func(*Context) error {
				assert.Empty(t, order, "inner scope must not close")
				return nil
			})
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"second", "first"}, order)

		require.NoError(t, ctx.Close())
		assert.Len(t, order, 2)
	})
	t.Run("scope without cleanup", func(t *testing.T) {
		t.Parallel()
		ctx := NewContext(&Command{Name: "prog"}, nil, "prog")
		closed := false
		err := ctx.Scope(false, func(ctx *Context) error {
			ctx.CallOnClose(func() error { closed = true; return nil })
			return nil
		})
		require.NoError(t, err)
		assert.False(t, closed)
		require.NoError(t, ctx.Scope(true, func(*Context) error { return nil }))
		assert.True(t, closed)
	})
	t.Run("errors are joined", func(t *testing.T) {
		t.Parallel()
		ctx := NewContext(&Command{Name: "prog"}, nil, "prog")
		errA, errB, errFn := errors.New("a"), errors.New("b"), errors.New("fn")
		err := ctx.Scope(true, func(ctx *Context) error {
			ctx.CallOnClose(func() error { return errA })
			ctx.CallOnClose(func() error { return errB })
			return errFn
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, errA)
		assert.ErrorIs(t, err, errB)
		assert.ErrorIs(t, err, errFn)
	})
	t.Run("command cleanup runs after invocation", func(t *testing.T) {
		t.Parallel()
		var events []string
		cmd := &Command{
			Name: "prog",
			Params: []Parameter{MustOption([]string{"--file"}, OptionConfig{
				Callback: func(ctx *Context, _ Parameter, value any) (any, error) {
					ctx.CallOnClose(func() error { events = append(events, "closed"); return nil })
					return value, nil
				},
			})},
			Callback: func(*Context, *Params) (any, error) {
				events = append(events, "invoked")
				return nil, nil
			},
		}
		res := runWith(t, cmd, []string{"--file", "x"}, nil)
		require.NoError(t, res.err)
		assert.Equal(t, []string{"invoked", "closed"}, events)
	})
}

func TestContextInheritance(t *testing.T) {
	t.Parallel()

	root := NewContext(&Command{Name: "prog"}, nil, "prog",
		WithObj("shared"),
		WithAutoEnvvarPrefix("my-app"),
		WithDefaultMap(map[string]any{"sub": map[string]any{"n": 5}}),
		WithTerminalWidth(100),
		WithShowDefault(true),
		WithHelpOptionNames("-h", "--help"),
		WithIO(nil, io.Discard, io.Discard),
	)
	sub := NewContext(&Command{Name: "sub"}, root, "sub")

	assert.Equal(t, "shared", sub.Obj)
	assert.Equal(t, "MY_APP", root.AutoEnvvarPrefix())
	assert.Equal(t, "MY_APP_SUB", sub.AutoEnvvarPrefix())
	assert.Equal(t, 100, sub.TerminalWidth())
	assert.True(t, sub.ShowDefault())
	assert.Equal(t, []string{"-h", "--help"}, sub.HelpOptionNames())
	assert.Equal(t, io.Discard, sub.Stdout)
	assert.Same(t, root, sub.FindRoot())
	assert.Same(t, sub, FromContext(sub.Context()))

	v, ok := sub.LookupDefault("n")
	require.True(t, ok)
	assert.Equal(t, 5, v)

	// The child holds its own copy of the default map.
	sub.DefaultMap()["n"] = 6
	assert.Equal(t, 5, root.DefaultMap()["sub"].(map[string]any)["n"])

	// Defaults are captured when the child is built; later parent changes do not leak in.
	fresh := NewContext(&Command{Name: "sub"}, root, "sub")
	root.DefaultMap()["sub"].(map[string]any)["n"] = 7
	root.DefaultMap()["sub"].(map[string]any)["extra"] = true
	v, ok = fresh.LookupDefault("n")
	require.True(t, ok)
	assert.Equal(t, 5, v)
	_, ok = fresh.LookupDefault("extra")
	assert.False(t, ok)

	root.Meta()["key"] = "value"
	assert.Equal(t, "value", sub.Meta()["key"])

	assert.Equal(t, 80, NewContext(&Command{Name: "x"}, nil, "x").TerminalWidth())
}

func TestContextParsingDefaults(t *testing.T) {
	t.Parallel()

	cmd := NewContext(&Command{Name: "cmd"}, nil, "cmd")
	assert.False(t, cmd.AllowExtraArgs())
	assert.True(t, cmd.AllowInterspersedArgs())
	assert.False(t, cmd.IgnoreUnknownOptions())

	group := NewContext(MustGroup(Command{Name: "grp"}, GroupConfig{}), nil, "grp")
	assert.True(t, group.AllowExtraArgs())
	assert.False(t, group.AllowInterspersedArgs())

	resilient := NewContext(&Command{Name: "cmd"}, nil, "cmd", WithResilientParsing(true))
	assert.True(t, NewContext(&Command{Name: "sub"}, resilient, "sub").ResilientParsing())
}

type config struct{ verbose bool }

func TestObjects(t *testing.T) {
	t.Parallel()

	root := NewContext(&Command{Name: "prog"}, nil, "prog")
	sub := NewContext(&Command{Name: "sub"}, root, "sub")

	_, ok := FindObject[*config](sub)
	assert.False(t, ok)

	cfg := EnsureObject(root, func() *config { return &config{verbose: true} })
	assert.True(t, cfg.verbose)
	assert.Same(t, cfg, EnsureObject(root, func() *config { return &config{} }))

	found, ok := FindObject[*config](NewContext(&Command{Name: "leaf"}, root, "leaf"))
	require.True(t, ok)
	assert.Same(t, cfg, found)
}

func TestContextInvoke(t *testing.T) {
	t.Parallel()

	target := &Command{
		Name: "target",
		Params: []Parameter{
			MustOption([]string{"--a"}, OptionConfig{Type: Int, Default: Static(1)}),
			MustOption([]string{"--b"}, OptionConfig{Type: Int, Default: Static(2)}),
		},
		Callback: func(ctx *Context, params *Params) (any, error) {
			return GetParam[int](ctx, "a")*10 + GetParam[int](ctx, "b"), nil
		},
	}
	caller := &Command{
		Name:   "caller",
		Params: []Parameter{MustOption([]string{"--b"}, OptionConfig{Type: Int})},
		Callback: func(ctx *Context, _ *Params) (any, error) {
			direct, err := ctx.Invoke(target, map[string]any{"b": 7})
			if err != nil {
				return nil, err
			}
			forwarded, err := ctx.Forward(target, nil)
			if err != nil {
				return nil, err
			}
			return []any{direct, forwarded}, nil
		},
	}
	res := runWith(t, caller, []string{"--b", "3"}, nil)
	require.NoError(t, res.err)
	assert.Equal(t, []any{17, 13}, res.value)
}

func TestContextForwardParamOrder(t *testing.T) {
	t.Parallel()

	var names [][]string
	target := &Command{
		Name: "target",
		Params: []Parameter{
			MustOption([]string{"--b"}, OptionConfig{Type: Int, Default: Static(2)}),
			MustOption([]string{"--a"}, OptionConfig{Type: Int, Default: Static(1)}),
		},
		Callback: func(ctx *Context, params *Params) (any, error) {
			names = append(names, params.Names())
			return nil, nil
		},
	}
	caller := &Command{
		Name: "caller",
		Params: []Parameter{
			MustOption([]string{"--zeta"}, OptionConfig{}),
			MustOption([]string{"--a"}, OptionConfig{Type: Int}),
			MustOption([]string{"--alpha"}, OptionConfig{}),
		},
		Callback: func(ctx *Context, _ *Params) (any, error) {
			for range 10 {
				if _, err := ctx.Forward(target, map[string]any{"mid": 1}); err != nil {
					return nil, err
				}
			}
			return nil, nil
		},
	}
	res := runWith(t, caller, []string{"--a", "5"}, nil)
	require.NoError(t, res.err)
	require.Len(t, names, 10)
	for _, got := range names {
		assert.Equal(t, []string{"b", "a", "alpha", "mid", "zeta"}, got)
	}
}

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	ctx := NewContext(&Command{Name: "prog"}, nil, "prog")
	err := ctx.Fail("bad %s", "input")
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
	assert.Equal(t, "bad input", usageErr.Message)
	assert.Same(t, ctx, usageErr.Ctx)

	assert.ErrorIs(t, ctx.Abort(), ErrAbort)

	var exitErr *ExitError
	require.ErrorAs(t, ctx.Exit(4), &exitErr)
	assert.Equal(t, 4, exitErr.Code)

	assert.Equal(t, SourceUnset, ctx.ParameterSource("nothing"))
	ctx.SetParameterSource("x", SourcePrompt)
	assert.Equal(t, SourcePrompt, ctx.ParameterSource("x"))
	assert.Equal(t, "PROMPT", SourcePrompt.String())
}

func TestCommandPathIncludesParentArguments(t *testing.T) {
	t.Parallel()

	sub, got := capture("deploy")
	g := MustGroup(Command{
		Name:   "prog",
		Params: []Parameter{MustArgument("env", ArgumentConfig{})},
	}, GroupConfig{Commands: []Commander{sub}})
	res := runWith(t, g, []string{"staging", "deploy"}, nil)
	require.NoError(t, res.err)
	assert.Equal(t, "prog ENV deploy", (*got).CommandPath())
	assert.Equal(t, "staging", GetParam[string](*got, "env"))
}
