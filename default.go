package clk

// Default is a parameter default: either a fixed value or a function evaluated when the default is
// needed. Create one with [Static] or [Computed].
type Default interface {
	value(ctx *Context, call bool) any
}

type staticDefault struct{ v any }

func (d staticDefault) value(*Context, bool) any { return d.v }

type computedDefault struct{ fn func(*Context) any }

func (d computedDefault) value(ctx *Context, call bool) any {
	if !call {
		return d.fn
	}
	return d.fn(ctx)
}

// Static returns a default that always yields v.
func Static(v any) Default { return staticDefault{v} }

// Computed returns a default evaluated on demand with the active context.
func Computed(fn func(ctx *Context) any) Default { return computedDefault{fn} }

// staticValue returns the fixed value of d, if it has one.
func staticValue(d Default) (any, bool) {
	if s, ok := d.(staticDefault); ok {
		return s.v, true
	}
	return nil, false
}
