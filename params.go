package clk

import (
	"fmt"
	"iter"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Params holds resolved parameter values by name, in resolution order.
type Params struct {
	m *orderedmap.OrderedMap[string, any]
}

func newParams() *Params {
	return &Params{m: orderedmap.New[string, any]()}
}

// Get returns the value stored under name.
func (p *Params) Get(name string) (any, bool) {
	return p.m.Get(name)
}

// Set stores v under name. Setting an existing name keeps its position.
func (p *Params) Set(name string, v any) {
	p.m.Set(name, v)
}

// Delete removes name and reports whether it was present.
func (p *Params) Delete(name string) bool {
	_, ok := p.m.Delete(name)
	return ok
}

func (p *Params) Len() int { return p.m.Len() }

// Names returns the stored names in order.
func (p *Params) Names() []string {
	names := make([]string, 0, p.m.Len())
	for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// All iterates over the stored values in order.
func (p *Params) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for pair := p.m.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Map returns a copy of the values as a plain map.
func (p *Params) Map() map[string]any {
	out := make(map[string]any, p.m.Len())
	for k, v := range p.All() {
		out[k] = v
	}
	return out
}

// GetParam retrieves a resolved parameter value by name, with type inference. It walks up the
// context hierarchy so subcommands can read values owned by their parent groups. Example usage:
//
//	verbose := clk.GetParam[bool](ctx, "verbose")
//	count := clk.GetParam[int](ctx, "count")
//	files := clk.GetParam[[]any](ctx, "files")
//
// A parameter that resolved to no value yields the zero value of T. If the parameter is unknown
// or holds a value of another type, GetParam panics: both are programming errors and are better
// caught loud and early.
func GetParam[T any](ctx *Context, name string) T {
	for c := ctx; c != nil; c = c.parent {
		v, ok := c.Params.Get(name)
		if !ok {
			continue
		}
		if v == nil {
			var zero T
			return zero
		}
		if t, ok := v.(T); ok {
			return t
		}
		panic(fmt.Sprintf("internal error: type mismatch for parameter %q: resolved %T, requested %T", name, v, *new(T)))
	}
	panic(fmt.Sprintf("internal error: parameter not found: %q in %s", name, ctx.CommandPath()))
}

// LookupParam is like [GetParam] but reports a missing parameter instead of panicking.
func LookupParam[T any](ctx *Context, name string) (T, bool) {
	var zero T
	for c := ctx; c != nil; c = c.parent {
		v, ok := c.Params.Get(name)
		if !ok {
			continue
		}
		t, ok := v.(T)
		if !ok {
			return zero, v == nil
		}
		return t, true
	}
	return zero, false
}
