package clk

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/spf13/pflag"
)

// PosixTokenizer parses GNU style command lines with [pflag]: long options ("--name value",
// "--name=value"), short options ("-n value", "-nvalue", "-n=value") and clustered short options
// ("-abc", "-vn5"). It is the default tokenizer.
//
// Prefixes other than "-" work the same way once an option declares them: with "/debug;/no-debug"
// declared, "/debug" is an option, and so is every other token starting with "/".
type PosixTokenizer struct{}

var _ Tokenizer = PosixTokenizer{}

const (
	// posixFlagMarker is the value pflag hands to a bare flag occurrence.
	posixFlagMarker = "\x00clk:flag"
	// posixPackSep joins the values of an option with nargs > 1 into one pflag value.
	posixPackSep = "\x1f"
	// posixHolePrefix marks an unknown option kept in place among the positional tokens.
	posixHolePrefix = "\x00clk:unknown:"
)

type posixSpec struct {
	opt *Option
	// isConst is set for flags, flag pair secondaries and counters.
	isConst bool
	value   any
	// short is set for one character options behind a one character prefix, which may be clustered.
	short bool
	// flagName is the long pflag name every occurrence is rewritten to.
	flagName string
}

type posixValue struct {
	st   *tokenState
	spec posixSpec
}

func (v *posixValue) String() string { return "" }
func (v *posixValue) Type() string   { return "value" }

func (v *posixValue) Set(s string) error {
	o := v.spec.opt
	switch {
	case v.spec.isConst:
		v.st.storeConst(o, v.spec.value)
	case o.takesOptionalValue() && s == posixFlagMarker:
		v.st.store(o, flagNeedsValue)
	case o.nargs > 1:
		v.st.store(o, stringsToAny(strings.Split(s, posixPackSep)))
	default:
		v.st.store(o, s)
	}
	return nil
}

func (PosixTokenizer) Tokenize(ctx *Context, params []Parameter, args []string) (*Tokens, error) {
	st := newTokenState()
	fs := pflag.NewFlagSet(ctx.InfoName(), pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	fs.SetInterspersed(ctx.AllowInterspersedArgs())
	normalize := ctx.TokenNormalize()

	options, arguments := splitParams(params)
	p := &posixParser{
		ctx:      ctx,
		index:    make(map[string]posixSpec),
		prefixes: []string{"-"},
		unknown:  &unknownTokens{},
	}
	register := func(opt string, spec posixSpec, n int) error {
		prefix, name := splitOpt(opt)
		if prefix == "" || name == "" {
			return fmt.Errorf("option %q: missing prefix or name", opt)
		}
		spec.short = utf8.RuneCountInString(prefix) == 1 && utf8.RuneCountInString(name) == 1
		if !spec.short && normalize != nil {
			name = normalize(name)
		}
		key := prefix + name
		if _, dup := p.index[key]; dup {
			return fmt.Errorf("option %q is declared more than once", opt)
		}
		// pflag only sees "--flagName" tokens; other forms get a name that can never be typed.
		spec.flagName = name
		if prefix != "--" {
			spec.flagName = fmt.Sprintf("%s\x00%d", spec.opt.name, n)
		}
		f := fs.VarPF(&posixValue{st: st, spec: spec}, spec.flagName, "", "")
		if spec.isConst || spec.opt.takesOptionalValue() {
			f.NoOptDefVal = posixFlagMarker
		}
		p.index[key] = spec
		_, size := utf8.DecodeRuneInString(prefix)
		if !slices.Contains(p.prefixes, prefix[:size]) {
			p.prefixes = append(p.prefixes, prefix[:size])
		}
		p.known = append(p.known, opt)
		return nil
	}
	n := 0
	for _, o := range options {
		for _, opt := range o.opts {
			n++
			if err := register(opt, posixSpec{opt: o, isConst: o.isFlag || o.count, value: o.primaryValue()}, n); err != nil {
				return nil, err
			}
		}
		for _, opt := range o.secondaryOpts {
			n++
			if err := register(opt, posixSpec{opt: o, isConst: true, value: false}, n); err != nil {
				return nil, err
			}
		}
	}

	normalized, err := p.normalize(args)
	if err != nil {
		return st.tokens(nil), err
	}
	if err := fs.Parse(normalized); err != nil {
		return st.tokens(nil), &UsageError{Message: capitalize(err.Error()), Ctx: ctx, Err: err}
	}
	unknown := p.unknown
	positional := make([]string, 0, unknown.len()+fs.NArg())
	positional = append(positional, unknown.leading...)
	for _, tok := range fs.Args() {
		if i, ok := unknown.hole(tok); ok {
			positional = append(positional, unknown.held[i])
			continue
		}
		positional = append(positional, tok)
	}
	rest, err := st.bindArguments(ctx, arguments, positional)
	if err != nil {
		return st.tokens(nil), err
	}
	return st.tokens(rest), nil
}

// unknownTokens holds unknown options set aside while ignoring them. With interspersed
// arguments they are kept in place through placeholders; otherwise they lead the positional
// tokens, ahead of everything after the first positional.
type unknownTokens struct {
	leading []string
	held    []string
}

func (u *unknownTokens) len() int { return len(u.leading) + len(u.held) }

func (u *unknownTokens) placeholder(tok string) string {
	u.held = append(u.held, tok)
	return fmt.Sprintf("%s%d", posixHolePrefix, len(u.held)-1)
}

func (u *unknownTokens) hole(tok string) (int, bool) {
	rest, ok := strings.CutPrefix(tok, posixHolePrefix)
	if !ok {
		return 0, false
	}
	var i int
	if _, err := fmt.Sscanf(rest, "%d", &i); err != nil || i >= len(u.held) {
		return 0, false
	}
	return i, true
}

// posixParser rewrites a command line so pflag sees exactly one "--flagName" or
// "--flagName=value" token per option occurrence. Short clusters are expanded, values of options
// with nargs > 1 are packed into one token, and unknown options are rejected or set aside.
type posixParser struct {
	ctx *Context
	// index maps a declared option string, with its name normalized, to its spec.
	index    map[string]posixSpec
	prefixes []string
	known    []string

	out     []string
	unknown *unknownTokens
}

func (p *posixParser) isOption(tok string) bool {
	if len(tok) < 2 {
		return false
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(tok, prefix) {
			return true
		}
	}
	return false
}

func (p *posixParser) setAside(tok string) {
	if p.ctx.AllowInterspersedArgs() {
		p.out = append(p.out, p.unknown.placeholder(tok))
		return
	}
	p.unknown.leading = append(p.unknown.leading, tok)
}

func (p *posixParser) normalize(args []string) ([]string, error) {
	p.out = make([]string, 0, len(args))
	normalize := p.ctx.TokenNormalize()
	for i := 0; i < len(args); i++ {
		tok := args[i]
		if tok == "--" {
			p.out = append(p.out, args[i:]...)
			break
		}
		if !p.isOption(tok) {
			if !p.ctx.AllowInterspersedArgs() {
				p.out = append(p.out, args[i:]...)
				break
			}
			p.out = append(p.out, tok)
			continue
		}

		head, value, hasValue := strings.Cut(tok, "=")
		prefix, name := splitOpt(head)
		if normalize != nil {
			name = normalize(name)
		}
		if spec, ok := p.index[prefix+name]; ok && !spec.short {
			n, err := p.emit(spec, head, value, hasValue, args[i+1:])
			if err != nil {
				return nil, err
			}
			i += n
			continue
		}
		if utf8.RuneCountInString(prefix) == 1 {
			n, err := p.cluster(tok, prefix, args[i+1:])
			if err != nil {
				return nil, err
			}
			i += n
			continue
		}
		if p.ctx.IgnoreUnknownOptions() {
			p.setAside(tok)
			continue
		}
		return nil, noSuchOption(p.ctx, head, p.known)
	}
	return p.out, nil
}

// cluster walks the one character options in tok. The first option taking a value ends the
// cluster: the rest of tok, less a leading "=", is its value.
func (p *posixParser) cluster(tok, prefix string, following []string) (int, error) {
	var unknown strings.Builder
	for pos := len(prefix); pos < len(tok); {
		r, size := utf8.DecodeRuneInString(tok[pos:])
		pos += size
		flagTok := prefix + string(r)
		spec, ok := p.index[flagTok]
		if !ok || !spec.short {
			if !p.ctx.IgnoreUnknownOptions() {
				return 0, noSuchOption(p.ctx, flagTok, p.known)
			}
			unknown.WriteRune(r)
			continue
		}
		if spec.isConst {
			attached := pos == len(prefix)+size && strings.HasPrefix(tok[pos:], "=")
			if _, err := p.emit(spec, flagTok, "", attached, nil); err != nil {
				return 0, err
			}
			continue
		}
		rest := tok[pos:]
		value, hasValue := rest, rest != ""
		if v, ok := strings.CutPrefix(rest, "="); ok && pos == len(prefix)+size {
			value = v
		}
		n, err := p.emit(spec, flagTok, value, hasValue, following)
		if unknown.Len() > 0 {
			p.setAside(prefix + unknown.String())
		}
		return n, err
	}
	if unknown.Len() > 0 {
		p.setAside(prefix + unknown.String())
	}
	return 0, nil
}

// emit writes one occurrence of spec and returns how many of the following args it consumed.
// flagTok is the option as typed, for error messages.
func (p *posixParser) emit(spec posixSpec, flagTok, value string, hasValue bool, following []string) (int, error) {
	o := spec.opt
	name := "--" + spec.flagName
	switch {
	case spec.isConst:
		if hasValue {
			return 0, &UsageError{Message: fmt.Sprintf("Option '%s' does not take a value.", flagTok), Ctx: p.ctx}
		}
		p.out = append(p.out, name)
	case o.takesOptionalValue():
		switch {
		case hasValue:
			p.out = append(p.out, name+"="+value)
		case len(following) > 0 && !p.isOption(following[0]):
			p.out = append(p.out, name+"="+following[0])
			return 1, nil
		default:
			p.out = append(p.out, name)
		}
	case o.nargs > 1:
		var values []string
		if hasValue {
			values = append(values, value)
		}
		need := o.nargs - len(values)
		if len(following) < need {
			return 0, &UsageError{Message: fmt.Sprintf("Option '%s' requires %d arguments.", flagTok, o.nargs), Ctx: p.ctx}
		}
		values = append(values, following[:need]...)
		p.out = append(p.out, name+"="+strings.Join(values, posixPackSep))
		return need, nil
	default:
		if hasValue {
			p.out = append(p.out, name+"="+value)
			return 0, nil
		}
		if len(following) == 0 {
			return 0, &UsageError{Message: fmt.Sprintf("Option '%s' requires an argument.", flagTok), Ctx: p.ctx}
		}
		p.out = append(p.out, name+"="+following[0])
		return 1, nil
	}
	return 0, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
