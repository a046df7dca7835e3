package clk

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/ef-ds/deque"

	"github.com/mfridman/clk/pkg/suggest"
)

// Tokenizer splits raw command line tokens into per-parameter raw values and leftover tokens.
// Option values are keyed by parameter name; see [Tokens] for the value shapes. Leftover tokens
// are positional values not consumed by any [Argument], plus unknown options when the context
// ignores them.
type Tokenizer interface {
	Tokenize(ctx *Context, params []Parameter, args []string) (*Tokens, error)
}

// Tokens is the result of tokenizing a command's arguments.
//
// Opts maps a parameter name to its raw value: a string for single values, a []any of strings for
// nargs > 1, a []any of those for repeated options, the flag value for flags, and an int for
// counting options. A positional argument with no value is recorded as nil.
type Tokens struct {
	Opts map[string]any
	Args []string
	// Order lists parameters in the order they were first seen on the command line.
	Order []Parameter
}

type flagSentinel struct{}

// flagNeedsValue marks an optional-value option given without a value. It is replaced by the
// flag value or a prompted value during resolution.
var flagNeedsValue = flagSentinel{}

type tokenState struct {
	opts  map[string]any
	order []Parameter
	seen  map[Parameter]struct{}
}

func newTokenState() *tokenState {
	return &tokenState{
		opts: make(map[string]any),
		seen: make(map[Parameter]struct{}),
	}
}

func (s *tokenState) record(p Parameter) {
	if _, ok := s.seen[p]; ok {
		return
	}
	s.seen[p] = struct{}{}
	s.order = append(s.order, p)
}

// store records a value for o, appending when the option may be repeated.
func (s *tokenState) store(o *Option, v any) {
	if o.multiple {
		prev, _ := s.opts[o.name].([]any)
		s.opts[o.name] = append(prev, v)
	} else {
		s.opts[o.name] = v
	}
	s.record(o)
}

// storeConst records an occurrence of a flag or counting option.
func (s *tokenState) storeConst(o *Option, v any) {
	if o.count {
		n, _ := s.opts[o.name].(int)
		s.opts[o.name] = n + 1
		s.record(o)
		return
	}
	s.store(o, v)
}

func (s *tokenState) tokens(rest []string) *Tokens {
	return &Tokens{Opts: s.opts, Args: rest, Order: s.order}
}

// bindArguments assigns positional tokens to arguments and returns the leftover tokens.
func (s *tokenState) bindArguments(ctx *Context, arguments []*Argument, tokens []string) ([]string, error) {
	nargs := make([]int, len(arguments))
	for i, a := range arguments {
		nargs[i] = a.nargs
	}
	values, rest, err := unpackArgs(tokens, nargs)
	if err != nil {
		return nil, err
	}
	for i, a := range arguments {
		v := values[i]
		switch {
		case a.nargs > 1:
			items := v.([]any)
			holes := 0
			for _, item := range items {
				if item == nil {
					holes++
				}
			}
			if holes == len(items) {
				v = nil
			} else if holes > 0 {
				return nil, &UsageError{Message: fmt.Sprintf("Argument '%s' takes %d values.", a.name, a.nargs), Ctx: ctx}
			}
		case a.nargs == -1 && len(a.envvars) > 0:
			if items, _ := v.([]any); len(items) == 0 {
				v = nil
			}
		}
		s.opts[a.name] = v
		s.record(a)
	}
	return rest, nil
}

// unpackArgs distributes args over slots with the given nargs. A slot with nargs 1 gets a string
// or nil, nargs > 1 a []any with nil holes for missing values, and at most one slot with nargs -1
// gets every value not claimed by the slots after it.
func unpackArgs(args []string, nargs []int) ([]any, []string, error) {
	queue := deque.New()
	for _, a := range args {
		queue.PushBack(a)
	}
	spec := deque.New()
	for _, n := range nargs {
		spec.PushBack(n)
	}

	var out []any
	spos := -1
	fetch := func(d *deque.Deque) any {
		var (
			v  any
			ok bool
		)
		if spos < 0 {
			v, ok = d.PopFront()
		} else {
			v, ok = d.PopBack()
		}
		if !ok {
			return nil
		}
		return v
	}

	for spec.Len() > 0 {
		n := fetch(spec).(int)
		switch {
		case n == 1:
			out = append(out, fetch(queue))
		case n > 1:
			x := make([]any, n)
			for i := range x {
				x[i] = fetch(queue)
			}
			if spos >= 0 {
				slices.Reverse(x)
			}
			out = append(out, x)
		case n < 0:
			if spos >= 0 {
				return nil, nil, errors.New("cannot have two nargs < 0")
			}
			spos = len(out)
			out = append(out, nil)
		}
	}

	if spos >= 0 {
		rest := make([]any, 0, queue.Len())
		for queue.Len() > 0 {
			v, _ := queue.PopFront()
			rest = append(rest, v)
		}
		out[spos] = rest
		slices.Reverse(out[spos+1:])
	}

	remaining := make([]string, 0, queue.Len())
	for queue.Len() > 0 {
		v, _ := queue.PopFront()
		remaining = append(remaining, v.(string))
	}
	return out, remaining, nil
}

// paramsForProcessing orders params for resolution: eager parameters first, then everything in
// the order first seen on the command line, then parameters that were not given at all in
// declaration order.
func paramsForProcessing(seen []Parameter, declared []Parameter) []Parameter {
	index := make(map[Parameter]int, len(seen))
	for i, p := range seen {
		index[p] = i
	}
	position := func(p Parameter) int {
		if i, ok := index[p]; ok {
			return i
		}
		return math.MaxInt
	}
	out := slices.Clone(declared)
	slices.SortStableFunc(out, func(a, b Parameter) int {
		if a.IsEager() != b.IsEager() {
			if a.IsEager() {
				return -1
			}
			return 1
		}
		return cmp.Compare(position(a), position(b))
	})
	return out
}

// splitParams separates options and arguments, keeping declaration order.
func splitParams(params []Parameter) ([]*Option, []*Argument) {
	var (
		options   []*Option
		arguments []*Argument
	)
	for _, p := range params {
		switch p := p.(type) {
		case *Option:
			options = append(options, p)
		case *Argument:
			arguments = append(arguments, p)
		}
	}
	return options, arguments
}

func noSuchOption(ctx *Context, opt string, known []string) *NoSuchOptionError {
	return &NoSuchOptionError{
		Option:        opt,
		Possibilities: suggest.FindSimilar(opt, known, 3),
		Ctx:           ctx,
	}
}

func looksLikeOption(tok string) bool {
	return len(tok) > 1 && tok[0] == '-'
}
