package clk

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSyncGroup(t *testing.T) (*Group, **Context, **Context) {
	t.Helper()
	var groupCtx *Context
	sync, syncCtx := capture("sync",
		MustOption([]string{"--n"}, OptionConfig{Type: Int, Default: Static(1)}),
		MustArgument("target", ArgumentConfig{Required: Ptr(false)}),
	)
	g, err := NewGroup(Command{
		Name:   "prog",
		Params: []Parameter{MustOption([]string{"--debug"}, OptionConfig{IsFlag: true})},
		Callback: func(ctx *Context, _ *Params) (any, error) {
			groupCtx = ctx
			return nil, nil
		},
	}, GroupConfig{Commands: []Commander{sync}})
	require.NoError(t, err)
	return g, &groupCtx, syncCtx
}

func TestGroupDispatch(t *testing.T) {
	t.Parallel()

	t.Run("single subcommand", func(t *testing.T) {
		t.Parallel()
		g, groupCtx, syncCtx := newSyncGroup(t)
		res := runWith(t, g, []string{"--debug", "sync", "--n", "3", "here"}, nil)
		require.NoError(t, res.err)
		assert.Equal(t, "sync", res.value)
		assert.Equal(t, "sync", (*groupCtx).InvokedSubcommand)
		assert.True(t, GetParam[bool](*groupCtx, "debug"))
		assert.Equal(t, 3, GetParam[int](*syncCtx, "n"))
		assert.Equal(t, "here", GetParam[string](*syncCtx, "target"))
		// Parent values are visible from the subcommand.
		assert.True(t, GetParam[bool](*syncCtx, "debug"))
		assert.Same(t, *groupCtx, (*syncCtx).Parent())
		assert.Equal(t, "prog sync", (*syncCtx).CommandPath())
	})
	t.Run("options after the subcommand belong to it", func(t *testing.T) {
		t.Parallel()
		g, _, _ := newSyncGroup(t)
		res := runWith(t, g, []string{"sync", "--debug"}, nil)
		var noSuch *NoSuchOptionError
		require.ErrorAs(t, res.err, &noSuch)
		assert.Equal(t, "--debug", noSuch.Option)
		assert.Equal(t, "sync", noSuch.Ctx.InfoName())
	})
	t.Run("unknown option before the subcommand", func(t *testing.T) {
		t.Parallel()
		g, _, _ := newSyncGroup(t)
		res := runWith(t, g, []string{"--debgu", "sync"}, nil)
		var noSuch *NoSuchOptionError
		require.ErrorAs(t, res.err, &noSuch)
		assert.Equal(t, "--debgu", noSuch.Option)
		assert.Equal(t, []string{"--debug"}, noSuch.Possibilities)
		assert.Equal(t, "No such option: --debgu Did you mean --debug?", noSuch.Error())
	})
	t.Run("unknown command", func(t *testing.T) {
		t.Parallel()
		g, groupCtx, _ := newSyncGroup(t)
		res := runWith(t, g, []string{"synk"}, nil)
		var noSuch *NoSuchCommandError
		require.ErrorAs(t, res.err, &noSuch)
		assert.Equal(t, "synk", noSuch.Name)
		assert.Equal(t, []string{"sync"}, noSuch.Suggestions)
		assert.Nil(t, *groupCtx, "group callback must not run")
	})
	t.Run("missing command", func(t *testing.T) {
		t.Parallel()
		sync, _ := capture("sync")
		g := MustGroup(Command{Name: "prog"}, GroupConfig{Commands: []Commander{sync}, NoArgsIsHelp: Ptr(false)})
		res := runWith(t, g, nil, nil)
		require.Error(t, res.err)
		assert.True(t, errors.Is(res.err, ErrMissingCommand))
		var usageErr *UsageError
		require.ErrorAs(t, res.err, &usageErr)
		assert.Equal(t, "Missing command.", usageErr.Message)
	})
	t.Run("no args shows help", func(t *testing.T) {
		t.Parallel()
		g, groupCtx, _ := newSyncGroup(t)
		res := runWith(t, g, nil, nil)
		require.NoError(t, res.err)
		assert.Equal(t, 0, res.value)
		assert.Contains(t, res.stdout.String(), "Usage: prog [OPTIONS] COMMAND [ARGS]...")
		assert.Contains(t, res.stdout.String(), "Commands:\n  sync")
		assert.Nil(t, *groupCtx)
	})
	t.Run("invoke without command", func(t *testing.T) {
		t.Parallel()
		var invoked *Context
		g := MustGroup(Command{
			Name: "prog",
			Callback: func(ctx *Context, _ *Params) (any, error) {
				invoked = ctx
				return "group", nil
			},
		}, GroupConfig{InvokeWithoutCommand: true})
		res := runWith(t, g, nil, nil)
		require.NoError(t, res.err)
		assert.Equal(t, "group", res.value)
		require.NotNil(t, invoked)
		assert.Empty(t, invoked.InvokedSubcommand)
	})
	t.Run("normalized command name", func(t *testing.T) {
		t.Parallel()
		g, groupCtx, _ := newSyncGroup(t)
		res := runWith(t, g, []string{"SYNC"}, nil, WithTokenNormalize(strings.ToLower))
		require.NoError(t, res.err)
		assert.Equal(t, "sync", (*groupCtx).InvokedSubcommand)
	})
}

func TestGroupChain(t *testing.T) {
	t.Parallel()

	newChain := func(t *testing.T, calls *[]string) *Group {
		t.Helper()
		a := &Command{
			Name: "a",
			Callback: func(*Context, *Params) (any, error) {
				*calls = append(*calls, "a")
				return "a", nil
			},
		}
		b := &Command{
			Name:   "b",
			Params: []Parameter{MustArgument("value", ArgumentConfig{Required: Ptr(false)})},
			Callback: func(ctx *Context, _ *Params) (any, error) {
				v := GetParam[string](ctx, "value")
				*calls = append(*calls, "b:"+v)
				return "b:" + v, nil
			},
		}
		g, err := NewGroup(Command{Name: "prog"}, GroupConfig{Chain: true, Commands: []Commander{a, b}})
		require.NoError(t, err)
		return g
	}

	t.Run("invokes in order", func(t *testing.T) {
		t.Parallel()
		var calls []string
		res := runWith(t, newChain(t, &calls), []string{"a", "b", "x"}, nil)
		require.NoError(t, res.err)
		assert.Equal(t, []any{"a", "b:x"}, res.value)
		assert.Equal(t, []string{"a", "b:x"}, calls)
	})
	t.Run("repeated subcommands", func(t *testing.T) {
		t.Parallel()
		var calls []string
		res := runWith(t, newChain(t, &calls), []string{"b", "1", "a", "b"}, nil)
		require.NoError(t, res.err)
		assert.Equal(t, []any{"b:1", "a", "b:"}, res.value)
	})
	t.Run("parses everything before invoking", func(t *testing.T) {
		t.Parallel()
		var calls []string
		res := runWith(t, newChain(t, &calls), []string{"a", "nope"}, nil)
		var noSuch *NoSuchCommandError
		require.ErrorAs(t, res.err, &noSuch)
		assert.Equal(t, "nope", noSuch.Name)
		assert.Empty(t, calls)
	})
	t.Run("result callbacks compose", func(t *testing.T) {
		t.Parallel()
		var calls []string
		g := newChain(t, &calls)
		g.SetResultCallback(func(_ *Context, result any, _ *Params) (any, error) {
			return len(result.([]any)), nil
		}, false)
		g.SetResultCallback(func(_ *Context, result any, _ *Params) (any, error) {
			return result.(int) * 10, nil
		}, false)
		res := runWith(t, g, []string{"a", "a", "a"}, nil)
		require.NoError(t, res.err)
		assert.Equal(t, 30, res.value)

		g.SetResultCallback(func(_ *Context, result any, _ *Params) (any, error) {
			return "replaced", nil
		}, true)
		res = runWith(t, g, []string{"a"}, nil)
		require.NoError(t, res.err)
		assert.Equal(t, "replaced", res.value)
	})
	t.Run("invoke without command yields empty results", func(t *testing.T) {
		t.Parallel()
		g := MustGroup(Command{Name: "prog"}, GroupConfig{Chain: true, InvokeWithoutCommand: true})
		res := runWith(t, g, nil, nil)
		require.NoError(t, res.err)
		assert.Equal(t, []any{}, res.value)
	})
	t.Run("optional group argument is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := NewGroup(Command{
			Name:   "prog",
			Params: []Parameter{MustArgument("src", ArgumentConfig{Required: Ptr(false)})},
		}, GroupConfig{Chain: true})
		assert.ErrorContains(t, err, "a group in chain mode cannot have optional arguments")
	})
	t.Run("nested group is rejected", func(t *testing.T) {
		t.Parallel()
		g := MustGroup(Command{Name: "prog"}, GroupConfig{Chain: true})
		err := g.AddCommand(MustGroup(Command{Name: "inner"}, GroupConfig{}))
		assert.ErrorContains(t, err, `it is not possible to add the group "inner"`)
	})
}

func TestGroupFactories(t *testing.T) {
	t.Parallel()

	var made []string
	root := MustGroup(Command{Name: "prog"}, GroupConfig{
		CommandFactory: func(name string, cb Callback, params ...Parameter) (*Command, error) {
			made = append(made, name)
			return &Command{Name: name, Callback: cb, Params: params, ShortHelp: "made by factory"}, nil
		},
	})
	sub, err := root.Subgroup(Command{Name: "db"}, GroupConfig{})
	require.NoError(t, err)
	cmd, err := sub.Subcommand("migrate", func(*Context, *Params) (any, error) { return "migrated", nil })
	require.NoError(t, err)
	assert.Equal(t, "made by factory", cmd.ShortHelp)
	assert.Equal(t, []string{"migrate"}, made)

	res := runWith(t, root, []string{"db", "migrate"}, nil)
	require.NoError(t, res.err)
	assert.Equal(t, "migrated", res.value)
	assert.Equal(t, []string{"db"}, root.ListCommands(nil))
}

func TestDeprecatedCommand(t *testing.T) {
	t.Parallel()

	cmd := &Command{Name: "old", Deprecated: true, Callback: func(*Context, *Params) (any, error) { return nil, nil }}
	res := runWith(t, cmd, nil, nil)
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr.String(), "DeprecationWarning: The command 'old' is deprecated.")
}

func TestCommandCollection(t *testing.T) {
	t.Parallel()

	first := MustGroup(Command{Name: "first"}, GroupConfig{})
	_, err := first.Subcommand("a", func(*Context, *Params) (any, error) { return "first a", nil })
	require.NoError(t, err)
	second := MustGroup(Command{Name: "second"}, GroupConfig{})
	_, err = second.Subcommand("a", func(*Context, *Params) (any, error) { return "second a", nil })
	require.NoError(t, err)
	_, err = second.Subcommand("b", func(*Context, *Params) (any, error) { return "second b", nil })
	require.NoError(t, err)

	cc, err := NewCommandCollection(Command{Name: "prog"}, GroupConfig{}, first, second)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cc.ListCommands(nil))
	assert.Len(t, cc.Sources(), 2)

	res := runWith(t, cc, []string{"a"}, nil)
	require.NoError(t, res.err)
	assert.Equal(t, "first a", res.value)

	res = runWith(t, cc, []string{"b"}, nil)
	require.NoError(t, res.err)
	assert.Equal(t, "second b", res.value)

	t.Run("own commands win", func(t *testing.T) {
		t.Parallel()
		cc, err := NewCommandCollection(Command{Name: "prog"}, GroupConfig{}, first, second)
		require.NoError(t, err)
		_, err = cc.Subcommand("a", func(*Context, *Params) (any, error) { return "own a", nil })
		require.NoError(t, err)
		res := runWith(t, cc, []string{"a"}, nil)
		require.NoError(t, res.err)
		assert.Equal(t, "own a", res.value)
	})
	t.Run("chain rejects group sources with groups", func(t *testing.T) {
		t.Parallel()
		withGroup := MustGroup(Command{Name: "src"}, GroupConfig{})
		require.NoError(t, withGroup.AddCommand(MustGroup(Command{Name: "nested"}, GroupConfig{})))
		_, err := NewCommandCollection(Command{Name: "prog"}, GroupConfig{Chain: true}, withGroup)
		assert.ErrorContains(t, err, "chain mode")
	})
	t.Run("help lists every source", func(t *testing.T) {
		t.Parallel()
		res := runWith(t, cc, []string{"--help"}, nil)
		require.NoError(t, res.err)
		assert.Contains(t, res.stdout.String(), "  a")
		assert.Contains(t, res.stdout.String(), "  b")
	})
}
