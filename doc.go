// Package clk is a toolkit for composing command-line programs from declarative pieces: commands
// with typed options and positional arguments, groups that dispatch to subcommands, and
// collections that merge several groups into one.
//
// Every parameter value is resolved through one pipeline. Sources are consulted in order: the
// command line, environment variables, the context's default map, and the parameter default.
// Options can also prompt for missing values. [Context.ParameterSource] reports which source won.
//
// A minimal program:
//
//	hello := &clk.Command{
//		Name: "hello",
//		Params: []clk.Parameter{
//			clk.MustOption([]string{"--name", "-n"}, clk.OptionConfig{Default: clk.Static("world")}),
//		},
//		Callback: func(ctx *clk.Context, params *clk.Params) (any, error) {
//			fmt.Fprintf(ctx.Stdout, "Hello, %s!\n", clk.GetParam[string](ctx, "name"))
//			return nil, nil
//		},
//	}
//	clk.Main(context.Background(), hello, nil, nil)
//
// Groups created with [NewGroup] dispatch to subcommands; in chain mode several subcommands run
// in one invocation and their results are collected.
package clk
