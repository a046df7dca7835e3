package clk

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Parameter is a named input of a command, either an [Option] or an [Argument].
//
// Every parameter runs through the same resolution pipeline, see [Resolve]. The set of parameter
// kinds is closed.
type Parameter interface {
	// Name is the key the resolved value is stored under.
	Name() string
	Opts() []string
	SecondaryOpts() []string
	Type() ParamType
	// Nargs is the number of values consumed per occurrence; -1 means any number.
	Nargs() int
	Multiple() bool
	Required() bool
	IsEager() bool
	ExposeValue() bool
	Envvars() []string
	Metavar() string
	HumanReadableName() string
	// ErrorHint describes the parameter in error messages.
	ErrorHint(ctx *Context) string
	UsagePieces(ctx *Context) []string
	InfoDict(ctx *Context) map[string]any

	// GetDefault returns the default value, evaluating computed defaults when call is set.
	GetDefault(ctx *Context, call bool) any
	// TypeCastValue converts a raw value according to the type, nargs and multiple.
	TypeCastValue(ctx *Context, value any) (any, error)
	// ValueIsMissing reports whether a converted value counts as no value.
	ValueIsMissing(value any) bool
	// ProcessValue converts value, checks the required constraint and runs the callback.
	ProcessValue(ctx *Context, value any) (any, error)

	base() *param
	paramTypeName() string
	consumeValue(ctx *Context, opts map[string]any) (any, ParameterSource, error)
	resolveEnvvarValue(ctx *Context) (string, bool)
	valueFromEnvvar(ctx *Context) any
}

// ParamCallback post-processes a converted parameter value. The returned value replaces it.
type ParamCallback func(ctx *Context, p Parameter, value any) (any, error)

// param holds the state and behavior shared by options and arguments.
type param struct {
	self Parameter

	name          string
	opts          []string
	secondaryOpts []string
	typ           ParamType
	required      bool
	def           Default
	callback      ParamCallback
	nargs         int
	multiple      bool
	metavar       string
	exposeValue   bool
	isEager       bool
	envvars       []string
}

type paramConfig struct {
	typ         ParamType
	required    bool
	def         Default
	callback    ParamCallback
	nargs       int
	multiple    bool
	metavar     string
	exposeValue bool
	isEager     bool
	envvars     []string
}

func (p *param) init(self Parameter, cfg paramConfig) error {
	p.self = self
	p.required = cfg.required
	p.def = cfg.def
	p.callback = cfg.callback
	p.multiple = cfg.multiple
	p.metavar = cfg.metavar
	p.exposeValue = cfg.exposeValue
	p.isEager = cfg.isEager
	p.envvars = cfg.envvars

	p.typ = cfg.typ
	if p.typ == nil {
		p.typ = inferDefaultType(p.def, cfg.multiple, cfg.nargs)
	}
	p.nargs = cfg.nargs
	if p.nargs == 0 {
		p.nargs = 1
		if c, ok := p.typ.(CompositeType); ok {
			p.nargs = c.Arity()
		}
	}
	if c, ok := p.typ.(CompositeType); ok && c.Arity() != p.nargs {
		return fmt.Errorf("%s: 'nargs' must be %d (or unset) for type %s", p.describe(), c.Arity(), c.Name())
	}

	v, ok := staticValue(p.def)
	if !ok || v == nil {
		return nil
	}
	checkDefault := v
	if p.multiple {
		items, err := toSlice(v)
		if err != nil {
			return fmt.Errorf("%s: 'default' must be a list when 'multiple' is true", p.describe())
		}
		if len(items) == 0 {
			return nil
		}
		checkDefault = items[0]
	}
	if p.nargs != 1 {
		items, err := toSlice(checkDefault)
		if err != nil {
			return fmt.Errorf("%s: 'default' must be a list when 'nargs' != 1", p.describe())
		}
		if p.nargs > 1 && len(items) != p.nargs {
			subject := "item length"
			if !p.multiple {
				subject = "length"
			}
			return fmt.Errorf("%s: 'default' %s must match nargs=%d", p.describe(), subject, p.nargs)
		}
	}
	return nil
}

func (p *param) describe() string {
	if p.name != "" {
		return fmt.Sprintf("parameter %q", p.name)
	}
	return fmt.Sprintf("parameter %v", p.opts)
}

// inferDefaultType guesses a type from a static default. A default for a multi-valued parameter
// is inspected through its first item, and an item that is itself a list yields a tuple type.
func inferDefaultType(d Default, multiple bool, nargs int) ParamType {
	v, ok := staticValue(d)
	if !ok || v == nil {
		return String
	}
	if nargs == 0 {
		nargs = 1
	}
	if !multiple && nargs == 1 {
		return guessType(v)
	}
	items, err := toSlice(v)
	if err != nil || len(items) == 0 {
		return guessType(v)
	}
	item := v
	if multiple {
		item = items[0]
	}
	if multiple && nargs <= 1 {
		return guessType(item)
	}
	elems, err := toSlice(item)
	if err != nil || len(elems) == 0 {
		return guessType(item)
	}
	// A default of the wrong length is reported by the nargs check, not as a tuple mismatch.
	if nargs > 1 && len(elems) != nargs {
		return guessType(elems[0])
	}
	types := make([]ParamType, len(elems))
	for i, e := range elems {
		types[i] = guessType(e)
	}
	if nargs == -1 {
		return types[0]
	}
	return Tuple(types...)
}

func (p *param) base() *param            { return p }
func (p *param) Name() string            { return p.name }
func (p *param) Opts() []string          { return p.opts }
func (p *param) SecondaryOpts() []string { return p.secondaryOpts }
func (p *param) Type() ParamType         { return p.typ }
func (p *param) Nargs() int              { return p.nargs }
func (p *param) Multiple() bool          { return p.multiple }
func (p *param) Required() bool          { return p.required }
func (p *param) IsEager() bool           { return p.isEager }
func (p *param) ExposeValue() bool       { return p.exposeValue }
func (p *param) Envvars() []string       { return p.envvars }

func (p *param) HumanReadableName() string { return p.name }

func (p *param) Metavar() string {
	if p.metavar != "" {
		return p.metavar
	}
	var mv string
	if m, ok := p.typ.(interface{ Metavar() string }); ok {
		mv = m.Metavar()
	} else {
		mv = strings.ToUpper(p.typ.Name())
	}
	if p.nargs != 1 {
		mv += "..."
	}
	return mv
}

func (p *param) ErrorHint(*Context) string {
	names := p.opts
	if len(names) == 0 {
		names = []string{p.self.HumanReadableName()}
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return strings.Join(quoted, " / ")
}

func (p *param) UsagePieces(*Context) []string { return nil }

func (p *param) InfoDict(ctx *Context) map[string]any {
	info := map[string]any{
		"name":            p.name,
		"param_type_name": p.self.paramTypeName(),
		"opts":            p.opts,
		"secondary_opts":  p.secondaryOpts,
		"type":            typeInfo(p.typ),
		"required":        p.required,
		"nargs":           p.nargs,
		"multiple":        p.multiple,
		"envvar":          p.envvars,
	}
	if v, ok := staticValue(p.def); ok {
		info["default"] = v
	} else if p.def != nil {
		info["default"] = "(dynamic)"
	} else {
		info["default"] = nil
	}
	return info
}

func typeInfo(t ParamType) map[string]any {
	if i, ok := t.(interface{ InfoDict() map[string]any }); ok {
		return i.InfoDict()
	}
	info := map[string]any{"param_type": t.Name(), "name": t.Name()}
	if c, ok := t.(*ChoiceType); ok {
		info["choices"] = c.Choices
		info["case_sensitive"] = c.CaseSensitive
	}
	return info
}

func (p *param) GetDefault(ctx *Context, call bool) any {
	if ctx != nil {
		if v, ok := ctx.lookupDefault(p.name, call); ok {
			return v
		}
	}
	if p.def == nil {
		return nil
	}
	return p.def.value(ctx, call)
}

func (p *param) consumeValue(ctx *Context, opts map[string]any) (any, ParameterSource, error) {
	if v, ok := opts[p.name]; ok && v != nil {
		return v, SourceCommandLine, nil
	}
	if v := p.self.valueFromEnvvar(ctx); v != nil {
		return v, SourceEnvironment, nil
	}
	if v, ok := ctx.lookupDefault(p.name, true); ok && v != nil {
		return v, SourceDefaultMap, nil
	}
	return p.self.GetDefault(ctx, true), SourceDefault, nil
}

func (p *param) resolveEnvvarValue(ctx *Context) (string, bool) {
	for _, name := range p.envvars {
		if v, ok := ctx.lookupEnv(name); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func (p *param) valueFromEnvvar(ctx *Context) any {
	raw, ok := p.self.resolveEnvvarValue(ctx)
	if !ok {
		return nil
	}
	if p.nargs != 1 {
		return stringsToAny(p.typ.SplitEnvValue(raw))
	}
	return raw
}

func (p *param) TypeCastValue(ctx *Context, value any) (any, error) {
	if value == nil {
		if p.multiple || p.nargs == -1 {
			return []any{}, nil
		}
		return nil, nil
	}
	_, composite := p.typ.(CompositeType)
	convert := func(v any) (any, error) { return p.typ.Convert(v, p.self, ctx) }
	switch {
	case p.nargs == -1:
		convert = func(v any) (any, error) { return p.convertEach(ctx, v) }
	case p.nargs > 1 && !composite:
		convert = func(v any) (any, error) { return p.convertFixed(ctx, v) }
	}
	if !p.multiple {
		return convert(value)
	}
	items, err := toSlice(value)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(items))
	for i, item := range items {
		if out[i], err = convert(item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *param) convertEach(ctx *Context, value any) (any, error) {
	items, err := toSlice(value)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(items))
	for i, item := range items {
		if out[i], err = p.typ.Convert(item, p.self, ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *param) convertFixed(ctx *Context, value any) (any, error) {
	items, err := toSlice(value)
	if err != nil {
		return nil, err
	}
	if len(items) != p.nargs {
		verb := "were"
		if len(items) == 1 {
			verb = "was"
		}
		return nil, &BadParameterError{
			Message: fmt.Sprintf("Takes %d values but %d %s given.", p.nargs, len(items), verb),
			Err:     ErrWrongValueCount,
		}
	}
	return p.convertEach(ctx, items)
}

func (p *param) ValueIsMissing(value any) bool {
	if value == nil {
		return true
	}
	if p.nargs != 1 || p.multiple {
		if items, err := toSlice(value); err == nil && len(items) == 0 {
			return true
		}
	}
	return false
}

func (p *param) ProcessValue(ctx *Context, value any) (any, error) {
	value, err := p.self.TypeCastValue(ctx, value)
	if err != nil {
		return nil, err
	}
	if p.required && p.self.ValueIsMissing(value) {
		return nil, &MissingParameterError{Ctx: ctx, Param: p.self}
	}
	if p.callback != nil {
		return p.callback(ctx, p.self, value)
	}
	return value, nil
}

// Resolve runs the full resolution pipeline for p against the tokens parsed for the current
// command. Sources are consulted in precedence order: command line, environment, default map,
// then the parameter's own default. Options may also prompt. The winning source is recorded on
// ctx even when the parameter does not expose its value; the value itself is stored in
// ctx.Params when it is exposed.
//
// With resilient parsing enabled on ctx, conversion and validation errors are swallowed and the
// value is reset to nil.
func Resolve(ctx *Context, p Parameter, opts map[string]any) (any, ParameterSource, error) {
	value, source, err := p.consumeValue(ctx, opts)
	if err != nil {
		return nil, source, annotate(err, ctx, p)
	}
	ctx.SetParameterSource(p.Name(), source)

	value, err = p.ProcessValue(ctx, value)
	if err != nil {
		var exit *ExitError
		if !ctx.ResilientParsing() || errors.As(err, &exit) {
			return nil, source, annotate(err, ctx, p)
		}
		value = nil
	}
	ctx.Logger().Debug("parameter resolved",
		zap.String("command", ctx.InfoName()),
		zap.String("param", p.Name()),
		zap.Stringer("source", source),
	)
	if p.ExposeValue() {
		ctx.Params.Set(p.Name(), value)
	}
	return value, source, nil
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
