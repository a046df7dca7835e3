package clk

import (
	"bytes"
	"context"
	"testing"
)

// env returns a lookup function over a fixed set of variables, so tests never touch the process
// environment.
func env(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

type result struct {
	value  any
	err    error
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func runWith(t *testing.T, cmd Commander, args []string, vars map[string]string, opts ...ContextOption) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	v, err := Run(context.Background(), cmd, args, &RunOptions{
		Stdout:         &stdout,
		Stderr:         &stderr,
		ProgName:       "prog",
		LookupEnv:      env(vars),
		ContextOptions: opts,
	})
	return result{value: v, err: err, stdout: &stdout, stderr: &stderr}
}

// capture returns a command that records its context when invoked.
func capture(name string, params ...Parameter) (*Command, **Context) {
	var got *Context
	cmd := &Command{
		Name:   name,
		Params: params,
		Callback: func(ctx *Context, _ *Params) (any, error) {
			got = ctx
			return name, nil
		},
	}
	return cmd, &got
}
