package clk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnpackArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		nargs    []int
		want     []any
		wantRest []string
	}{
		{name: "singles", args: []string{"a", "b", "c"}, nargs: []int{1, 1}, want: []any{"a", "b"}, wantRest: []string{"c"}},
		{name: "missing single", args: []string{"a"}, nargs: []int{1, 1}, want: []any{"a", nil}, wantRest: []string{}},
		{name: "fixed group", args: []string{"a", "b", "c"}, nargs: []int{2, 1}, want: []any{[]any{"a", "b"}, "c"}, wantRest: []string{}},
		{name: "variadic first", args: []string{"a", "b", "c"}, nargs: []int{-1, 1}, want: []any{[]any{"a", "b"}, "c"}, wantRest: []string{}},
		{name: "variadic last", args: []string{"a", "b", "c"}, nargs: []int{1, -1}, want: []any{"a", []any{"b", "c"}}, wantRest: []string{}},
		{name: "variadic middle", args: []string{"a", "b", "c", "d", "e"}, nargs: []int{1, -1, 2}, want: []any{"a", []any{"b", "c"}, []any{"d", "e"}}, wantRest: []string{}},
		{name: "variadic empty", args: []string{"a"}, nargs: []int{-1, 1}, want: []any{[]any{}, "a"}, wantRest: []string{}},
		{name: "no slots", args: []string{"a"}, nargs: nil, want: nil, wantRest: []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, rest, err := unpackArgs(tt.args, tt.nargs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantRest, rest)
		})
	}

	t.Run("two variadics", func(t *testing.T) {
		t.Parallel()
		_, _, err := unpackArgs([]string{"a"}, []int{-1, -1})
		assert.ErrorContains(t, err, "cannot have two nargs < 0")
	})
}

func TestParamsForProcessing(t *testing.T) {
	t.Parallel()

	a := MustOption([]string{"--a"}, OptionConfig{})
	b := MustOption([]string{"--b"}, OptionConfig{})
	c := MustOption([]string{"--c"}, OptionConfig{})
	eager := MustOption([]string{"--e"}, OptionConfig{IsEager: true, IsFlag: true})
	declared := []Parameter{a, b, c, eager}

	assert.Equal(t, []Parameter{eager, c, a, b}, paramsForProcessing([]Parameter{c}, declared))
	assert.Equal(t, []Parameter{eager, b, a, c}, paramsForProcessing([]Parameter{b, eager, a}, declared))
	assert.Equal(t, []Parameter{eager, a, b, c}, paramsForProcessing(nil, declared))
}

func TestTokenizers(t *testing.T) {
	t.Parallel()

	params := func() []Parameter {
		return []Parameter{
			MustOption([]string{"--name", "-n"}, OptionConfig{}),
			MustOption([]string{"--verbose", "-v"}, OptionConfig{IsFlag: true}),
			MustOption([]string{"--tag"}, OptionConfig{Multiple: true}),
			MustArgument("files", ArgumentConfig{Nargs: -1}),
		}
	}
	tokenizers := map[string]Tokenizer{
		"posix":  PosixTokenizer{},
		"goflag": GoFlagTokenizer{},
	}
	for name, tok := range tokenizers {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cmd, got := capture("prog", params()...)
			res := runWith(t, cmd, []string{"a", "--name", "x", "--verbose", "--tag=1", "b", "--tag", "2", "--", "--name"}, nil,
				WithTokenizer(tok))
			require.NoError(t, res.err)
			ctx := *got
			assert.Equal(t, "x", GetParam[string](ctx, "name"))
			assert.True(t, GetParam[bool](ctx, "verbose"))
			assert.Equal(t, []any{"1", "2"}, GetParam[[]any](ctx, "tag"))
			assert.Equal(t, []any{"a", "b", "--name"}, GetParam[[]any](ctx, "files"))
		})
		t.Run(name+" unknown option", func(t *testing.T) {
			t.Parallel()
			cmd, _ := capture("prog", params()...)
			res := runWith(t, cmd, []string{"--nam", "x"}, nil, WithTokenizer(tok))
			var noSuch *NoSuchOptionError
			require.ErrorAs(t, res.err, &noSuch)
			assert.Equal(t, "--nam", noSuch.Option)
			assert.Equal(t, []string{"--name"}, noSuch.Possibilities)
		})
		t.Run(name+" missing value", func(t *testing.T) {
			t.Parallel()
			cmd, _ := capture("prog", params()...)
			res := runWith(t, cmd, []string{"--name"}, nil, WithTokenizer(tok))
			var usageErr *UsageError
			require.ErrorAs(t, res.err, &usageErr)
			assert.Equal(t, "Option '--name' requires an argument.", usageErr.Message)
		})
	}
}

func TestPosixShortOptions(t *testing.T) {
	t.Parallel()

	cmd, got := capture("prog",
		MustOption([]string{"-n"}, OptionConfig{Type: Int}),
		MustOption([]string{"-a"}, OptionConfig{IsFlag: true}),
		MustOption([]string{"-b"}, OptionConfig{IsFlag: true}),
	)
	res := runWith(t, cmd, []string{"-ab", "-n5"}, nil)
	require.NoError(t, res.err)
	assert.True(t, GetParam[bool](*got, "a"))
	assert.True(t, GetParam[bool](*got, "b"))
	assert.Equal(t, 5, GetParam[int](*got, "n"))
}

func TestPosixEmptyValues(t *testing.T) {
	t.Parallel()

	params := func() []Parameter {
		return []Parameter{
			MustOption([]string{"--name", "-n"}, OptionConfig{}),
			MustOption([]string{"--color", "-c"}, OptionConfig{FlagValue: "auto", Default: Static("never")}),
		}
	}
	tests := []struct {
		name      string
		args      []string
		wantName  string
		wantColor string
	}{
		{name: "short separate", args: []string{"-n", ""}, wantName: "", wantColor: "never"},
		{name: "short attached", args: []string{"-n="}, wantName: "", wantColor: "never"},
		{name: "long attached", args: []string{"--name="}, wantName: "", wantColor: "never"},
		{name: "short value with equals", args: []string{"-n=a=b"}, wantName: "a=b", wantColor: "never"},
		{name: "optional short empty", args: []string{"-c="}, wantColor: ""},
		{name: "optional long empty", args: []string{"--color="}, wantColor: ""},
		{name: "optional bare", args: []string{"-c"}, wantColor: "auto"},
		{name: "optional separate", args: []string{"-c", "always"}, wantColor: "always"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cmd, got := capture("prog", params()...)
			res := runWith(t, cmd, tt.args, nil)
			require.NoError(t, res.err)
			assert.Equal(t, tt.wantName, GetParam[string](*got, "name"))
			assert.Equal(t, tt.wantColor, GetParam[string](*got, "color"))
		})
	}
}

func TestPosixClusters(t *testing.T) {
	t.Parallel()

	params := func() []Parameter {
		return []Parameter{
			MustOption([]string{"-f"}, OptionConfig{IsFlag: true}),
			MustOption([]string{"-v"}, OptionConfig{Count: true}),
			MustOption([]string{"-p"}, OptionConfig{Nargs: 2}),
			MustOption([]string{"-n"}, OptionConfig{}),
		}
	}

	t.Run("value option ends cluster", func(t *testing.T) {
		t.Parallel()
		cmd, got := capture("prog", params()...)
		res := runWith(t, cmd, []string{"-fp", "1", "2", "-vvn", "x"}, nil)
		require.NoError(t, res.err)
		assert.True(t, GetParam[bool](*got, "f"))
		assert.Equal(t, []any{"1", "2"}, GetParam[[]any](*got, "p"))
		assert.Equal(t, 2, GetParam[int](*got, "v"))
		assert.Equal(t, "x", GetParam[string](*got, "n"))
	})
	t.Run("attached value counts toward nargs", func(t *testing.T) {
		t.Parallel()
		cmd, got := capture("prog", params()...)
		res := runWith(t, cmd, []string{"-fp1", "2"}, nil)
		require.NoError(t, res.err)
		assert.Equal(t, []any{"1", "2"}, GetParam[[]any](*got, "p"))
	})
	t.Run("too few values", func(t *testing.T) {
		t.Parallel()
		cmd, _ := capture("prog", params()...)
		res := runWith(t, cmd, []string{"-fp", "1"}, nil)
		var usageErr *UsageError
		require.ErrorAs(t, res.err, &usageErr)
		assert.Equal(t, "Option '-p' requires 2 arguments.", usageErr.Message)
	})
	t.Run("unknown letter", func(t *testing.T) {
		t.Parallel()
		cmd, _ := capture("prog", params()...)
		res := runWith(t, cmd, []string{"-fx"}, nil)
		var noSuch *NoSuchOptionError
		require.ErrorAs(t, res.err, &noSuch)
		assert.Equal(t, "-x", noSuch.Option)
	})
	t.Run("flag given a value", func(t *testing.T) {
		t.Parallel()
		cmd, _ := capture("prog", params()...)
		res := runWith(t, cmd, []string{"-f=yes"}, nil)
		var usageErr *UsageError
		require.ErrorAs(t, res.err, &usageErr)
		assert.Equal(t, "Option '-f' does not take a value.", usageErr.Message)
	})
	t.Run("unknown letters ignored", func(t *testing.T) {
		t.Parallel()
		cmd, got := capture("prog", params()...)
		res := runWith(t, cmd, []string{"-fxy", "a"}, nil, WithIgnoreUnknownOptions(true), WithAllowExtraArgs(true))
		require.NoError(t, res.err)
		assert.True(t, GetParam[bool](*got, "f"))
		assert.Equal(t, []string{"-xy", "a"}, (*got).Args)
	})
}

func TestDeclaredPrefixes(t *testing.T) {
	t.Parallel()

	tokenizers := map[string]Tokenizer{
		"posix":  PosixTokenizer{},
		"goflag": GoFlagTokenizer{},
	}
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{name: "on", args: []string{"/debug"}, want: true},
		{name: "off", args: []string{"/no-debug"}, want: false},
		{name: "last wins", args: []string{"/no-debug", "/debug"}, want: true},
		{name: "absent", args: nil, want: false},
	}
	for tokName, tok := range tokenizers {
		for _, tt := range tests {
			t.Run(tokName+" "+tt.name, func(t *testing.T) {
				t.Parallel()
				cmd, got := capture("prog", MustOption([]string{"/debug;/no-debug"}, OptionConfig{IsFlag: true}))
				res := runWith(t, cmd, tt.args, nil, WithTokenizer(tok))
				require.NoError(t, res.err)
				assert.Equal(t, tt.want, GetParam[bool](*got, "debug"))
			})
		}
	}

	t.Run("posix mixed with dash options", func(t *testing.T) {
		t.Parallel()
		cmd, got := capture("prog",
			MustOption([]string{"/debug;/no-debug"}, OptionConfig{IsFlag: true}),
			MustOption([]string{"--level", "-l"}, OptionConfig{Type: Int}),
			MustArgument("file", ArgumentConfig{}),
		)
		res := runWith(t, cmd, []string{"-l", "3", "/debug", "x"}, nil)
		require.NoError(t, res.err)
		assert.True(t, GetParam[bool](*got, "debug"))
		assert.Equal(t, 3, GetParam[int](*got, "level"))
		assert.Equal(t, "x", GetParam[string](*got, "file"))
	})
	t.Run("posix unknown with declared prefix", func(t *testing.T) {
		t.Parallel()
		cmd, _ := capture("prog", MustOption([]string{"/debug;/no-debug"}, OptionConfig{IsFlag: true}))
		res := runWith(t, cmd, []string{"/debgu"}, nil)
		var noSuch *NoSuchOptionError
		require.ErrorAs(t, res.err, &noSuch)
		assert.Equal(t, "/debgu", noSuch.Option)
		assert.Contains(t, noSuch.Possibilities, "/debug")
	})
	t.Run("goflag undeclared prefix is positional", func(t *testing.T) {
		t.Parallel()
		cmd, got := capture("prog",
			MustOption([]string{"/debug;/no-debug"}, OptionConfig{IsFlag: true}),
			MustArgument("file", ArgumentConfig{}),
		)
		res := runWith(t, cmd, []string{"/tmp/x", "/debug"}, nil, WithTokenizer(GoFlagTokenizer{}))
		require.NoError(t, res.err)
		assert.True(t, GetParam[bool](*got, "debug"))
		assert.Equal(t, "/tmp/x", GetParam[string](*got, "file"))
	})
}

func TestGoFlagFlagPair(t *testing.T) {
	t.Parallel()

	cmd, got := capture("prog", MustOption([]string{"--shout/--no-shout"}, OptionConfig{IsFlag: true, Default: Static(true)}))
	res := runWith(t, cmd, []string{"-no-shout"}, nil, WithTokenizer(GoFlagTokenizer{}))
	require.NoError(t, res.err)
	assert.False(t, GetParam[bool](*got, "shout"))

	res = runWith(t, cmd, []string{"-shout=false"}, nil, WithTokenizer(GoFlagTokenizer{}))
	require.NoError(t, res.err)
	assert.False(t, GetParam[bool](*got, "shout"))
}

func TestIgnoreUnknownOptions(t *testing.T) {
	t.Parallel()

	t.Run("interspersed keeps position", func(t *testing.T) {
		t.Parallel()
		cmd, got := capture("prog", MustOption([]string{"--n"}, OptionConfig{}))
		res := runWith(t, cmd, []string{"x", "--bogus", "--n", "1", "y"}, nil,
			WithIgnoreUnknownOptions(true), WithAllowExtraArgs(true))
		require.NoError(t, res.err)
		assert.Equal(t, "1", GetParam[string](*got, "n"))
		assert.Equal(t, []string{"x", "--bogus", "y"}, (*got).Args)
	})
	t.Run("not interspersed", func(t *testing.T) {
		t.Parallel()
		cmd, got := capture("prog", MustOption([]string{"--n"}, OptionConfig{}))
		res := runWith(t, cmd, []string{"--bogus", "--n", "1", "y", "--n", "2"}, nil,
			WithIgnoreUnknownOptions(true), WithAllowExtraArgs(true), WithAllowInterspersedArgs(false))
		require.NoError(t, res.err)
		assert.Equal(t, "1", GetParam[string](*got, "n"))
		assert.Equal(t, []string{"--bogus", "y", "--n", "2"}, (*got).Args)
	})
}

func TestTokenNormalize(t *testing.T) {
	t.Parallel()

	cmd, got := capture("prog", MustOption([]string{"--dry-run"}, OptionConfig{IsFlag: true}))
	normalize := func(s string) string {
		if s == "dry_run" {
			return "dry-run"
		}
		return s
	}
	res := runWith(t, cmd, []string{"--dry_run"}, nil, WithTokenNormalize(normalize))
	require.NoError(t, res.err)
	assert.True(t, GetParam[bool](*got, "dry_run"))
}
