package clk

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mfridman/xflag"
)

// GoFlagTokenizer parses command lines the way the standard [flag] package does: "-name value",
// "--name=value" and bare boolean flags, with one or two dashes accepted for every option. Options
// may follow positional arguments when the context allows interspersed arguments.
//
// Options declared with a prefix other than "-", such as "/debug", are matched by their full
// option string; a token with such a prefix that names no declared option is positional. Options
// with nargs > 1 are not supported.
type GoFlagTokenizer struct{}

var _ Tokenizer = GoFlagTokenizer{}

const goFlagMarker = "\x00clk:flag"

type goFlagValue struct {
	st      *tokenState
	opt     *Option
	isConst bool
	value   any
}

func (v *goFlagValue) String() string { return "" }

// IsBoolFlag lets the flag package accept flags without a value.
func (v *goFlagValue) IsBoolFlag() bool { return v.isConst }

func (v *goFlagValue) Set(s string) error {
	switch {
	case v.isConst:
		on, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("invalid boolean value %q", s)
		}
		if on {
			v.st.storeConst(v.opt, v.value)
			return nil
		}
		b, ok := v.value.(bool)
		if !ok || v.opt.count {
			return errors.New("flag cannot be disabled")
		}
		v.st.store(v.opt, !b)
	case v.opt.takesOptionalValue() && s == goFlagMarker:
		v.st.store(v.opt, flagNeedsValue)
	default:
		v.st.store(v.opt, s)
	}
	return nil
}

func (GoFlagTokenizer) Tokenize(ctx *Context, params []Parameter, args []string) (*Tokens, error) {
	st := newTokenState()
	fs := flag.NewFlagSet(ctx.InfoName(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	options, arguments := splitParams(params)
	specs := make(map[string]*goFlagValue)
	normalize := ctx.TokenNormalize()
	var known []string
	register := func(opt string, v *goFlagValue) error {
		prefix, name := splitOpt(opt)
		if prefix == "" || name == "" || strings.HasPrefix(name, "-") {
			return fmt.Errorf("option %q: invalid flag name", opt)
		}
		if normalize != nil {
			name = normalize(name)
		}
		if prefix[0] != '-' {
			name = prefix + name
		}
		if _, dup := specs[name]; dup {
			return fmt.Errorf("option %q is declared more than once", opt)
		}
		specs[name] = v
		fs.Var(v, name, "")
		known = append(known, opt)
		return nil
	}
	for _, o := range options {
		if o.nargs > 1 {
			return nil, fmt.Errorf("option %q: nargs > 1 is not supported by the go flag tokenizer", o.name)
		}
		for _, opt := range o.opts {
			if err := register(opt, &goFlagValue{st: st, opt: o, isConst: o.isFlag || o.count, value: o.primaryValue()}); err != nil {
				return nil, err
			}
		}
		for _, opt := range o.secondaryOpts {
			if err := register(opt, &goFlagValue{st: st, opt: o, isConst: true, value: false}); err != nil {
				return nil, err
			}
		}
	}

	// Everything after "--" is positional and never seen by the flag package.
	toParse, afterDash := args, []string(nil)
	for i, arg := range args {
		if arg == "--" {
			toParse, afterDash = args[:i], args[i+1:]
			break
		}
	}
	normalized, unknown, err := normalizeGoFlagArgs(ctx, toParse, specs, known)
	if err != nil {
		return st.tokens(nil), err
	}
	if ctx.AllowInterspersedArgs() {
		err = xflag.ParseToEnd(fs, normalized)
	} else {
		err = fs.Parse(normalized)
	}
	if err != nil {
		return st.tokens(nil), &UsageError{Message: capitalize(err.Error()), Ctx: ctx, Err: err}
	}
	positional := append(unknown, fs.Args()...)
	positional = append(positional, afterDash...)
	rest, err := st.bindArguments(ctx, arguments, positional)
	if err != nil {
		return st.tokens(nil), err
	}
	return st.tokens(rest), nil
}

// goFlagName splits an option token into its flag name and attached value. Dash tokens are always
// options; tokens with another prefix only when they name a declared flag.
func goFlagName(tok string, specs map[string]*goFlagValue, normalize func(string) string) (name, value string, hasValue, ok bool) {
	if looksLikeOption(tok) {
		name, value, hasValue = strings.Cut(strings.TrimPrefix(strings.TrimPrefix(tok, "-"), "-"), "=")
		if normalize != nil {
			name = normalize(name)
		}
		return name, value, hasValue, true
	}
	head, value, hasValue := strings.Cut(tok, "=")
	prefix, name := splitOpt(head)
	if prefix == "" || name == "" {
		return "", "", false, false
	}
	if normalize != nil {
		name = normalize(name)
	}
	if _, declared := specs[prefix+name]; !declared {
		return "", "", false, false
	}
	return prefix + name, value, hasValue, true
}

// normalizeGoFlagArgs validates option tokens and attaches optional values so the flag package
// sees them as one token. Unknown options are rejected or moved in front of the positional tokens.
func normalizeGoFlagArgs(ctx *Context, args []string, specs map[string]*goFlagValue, known []string) ([]string, []string, error) {
	out := make([]string, 0, len(args))
	var unknown []string
	interspersed := ctx.AllowInterspersedArgs()
	normalize := ctx.TokenNormalize()
	nextIsOption := func(tok string) bool {
		_, _, _, ok := goFlagName(tok, specs, normalize)
		return ok
	}
	for i := 0; i < len(args); i++ {
		tok := args[i]
		name, value, hasValue, isOption := goFlagName(tok, specs, normalize)
		if !isOption {
			if !interspersed {
				out = append(out, args[i:]...)
				break
			}
			out = append(out, tok)
			continue
		}
		v, ok := specs[name]
		if !ok {
			if ctx.IgnoreUnknownOptions() {
				unknown = append(unknown, tok)
				continue
			}
			flagTok, _, _ := strings.Cut(tok, "=")
			return nil, nil, noSuchOption(ctx, flagTok, known)
		}
		switch {
		case v.opt.takesOptionalValue() && !v.isConst:
			switch {
			case hasValue:
				out = append(out, "-"+name+"="+value)
			case i+1 < len(args) && !nextIsOption(args[i+1]):
				out = append(out, "-"+name+"="+args[i+1])
				i++
			default:
				out = append(out, "-"+name+"="+goFlagMarker)
			}
		case hasValue:
			out = append(out, "-"+name+"="+value)
		case v.isConst:
			out = append(out, "-"+name)
		case i+1 < len(args):
			out = append(out, "-"+name+"="+args[i+1])
			i++
		default:
			return nil, nil, &UsageError{Message: fmt.Sprintf("Option '%s' requires an argument.", tok), Ctx: ctx}
		}
	}
	return out, unknown, nil
}
