package clk

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// OptionConfig configures an [Option]. The zero value describes an optional string option.
type OptionConfig struct {
	// Type converts raw values. When nil it is inferred from Default, or from FlagValue for flags.
	Type ParamType
	// Required makes a missing value a usage error.
	Required bool
	Default  Default
	Callback ParamCallback
	// Nargs is the number of values per occurrence. Zero means 1, or the arity of a composite
	// type. Options cannot take an unbounded number of values.
	Nargs int
	// Multiple allows the option to be repeated; values are collected into a list.
	Multiple bool
	Metavar  string
	// NoExpose resolves the option but leaves it out of [Context.Params].
	NoExpose bool
	// IsEager resolves the option before non-eager parameters, like the help option.
	IsEager bool
	Envvar  []string
	// NoAutoEnvvar opts out of the environment variable derived from the auto envvar prefix.
	NoAutoEnvvar bool

	Help        string
	Hidden      bool
	ShowDefault bool
	ShowEnvvar  bool

	// Prompt is the text shown when asking for a missing value. AutoPrompt derives it from the
	// option name.
	Prompt             string
	AutoPrompt         bool
	ConfirmationPrompt bool
	// ConfirmationText replaces the default "Repeat for confirmation" text.
	ConfirmationText string
	// PromptOptional only prompts when the option is given on the command line without a value.
	PromptOptional bool
	HideInput      bool

	// IsFlag makes the option take no value. Declarations like "--shout/--no-shout" declare a
	// boolean flag pair.
	IsFlag bool
	// FlagValue is stored when a flag is present. It defaults to the negation of Default. On an
	// option that is not a flag, setting it makes the value optional: a bare occurrence stores
	// FlagValue.
	FlagValue any
	// Count makes the option count its occurrences, like -vvv.
	Count bool
}

// Option is a named parameter given on the command line with a prefixed token like "--name" or
// "-n", optionally followed by values.
type Option struct {
	param

	help               string
	hidden             bool
	showDefault        bool
	showEnvvar         bool
	prompt             string
	confirmationPrompt bool
	confirmationText   string
	promptRequired     bool
	hideInput          bool
	isFlag             bool
	isBoolFlag         bool
	flagValue          any
	count              bool
	allowFromAutoenv   bool
	flagNeedsValue     bool
}

// NewOption builds an option from its declarations and configuration. Each declaration is either
// an option string like "--name" or "-n", a pair like "--shout/--no-shout", or a bare identifier
// that sets the parameter name explicitly. Invalid combinations are reported as errors.
func NewOption(decls []string, cfg OptionConfig) (*Option, error) {
	o := &Option{
		help:               cfg.Help,
		hidden:             cfg.Hidden,
		showDefault:        cfg.ShowDefault,
		showEnvvar:         cfg.ShowEnvvar,
		confirmationPrompt: cfg.ConfirmationPrompt || cfg.ConfirmationText != "",
		confirmationText:   cfg.ConfirmationText,
		promptRequired:     !cfg.PromptOptional,
		hideInput:          cfg.HideInput,
		isFlag:             cfg.IsFlag,
		count:              cfg.Count,
		allowFromAutoenv:   !cfg.NoAutoEnvvar,
	}
	var err error
	o.name, o.opts, o.secondaryOpts, err = parseOptionDecls(decls, !cfg.NoExpose)
	if err != nil {
		return nil, err
	}
	if cfg.Nargs == -1 {
		return nil, fmt.Errorf("%s: nargs=-1 is not supported for options", o.describe())
	}
	if cfg.Count && cfg.Multiple {
		return nil, fmt.Errorf("%s: 'count' is not valid with 'multiple'", o.describe())
	}
	if cfg.Count && cfg.IsFlag {
		return nil, fmt.Errorf("%s: 'count' is not valid with 'is_flag'", o.describe())
	}
	defaultIsMissing := cfg.Default == nil
	err = o.init(o, paramConfig{
		typ:         cfg.Type,
		required:    cfg.Required,
		def:         cfg.Default,
		callback:    cfg.Callback,
		nargs:       cfg.Nargs,
		multiple:    cfg.Multiple,
		metavar:     cfg.Metavar,
		exposeValue: !cfg.NoExpose,
		isEager:     cfg.IsEager,
		envvars:     cfg.Envvar,
	})
	if err != nil {
		return nil, err
	}

	o.prompt = cfg.Prompt
	if cfg.AutoPrompt {
		if o.name == "" {
			return nil, fmt.Errorf("%s: cannot derive a prompt without a name", o.describe())
		}
		o.prompt = promptText(o.name)
	}
	o.flagNeedsValue = o.prompt != "" && cfg.PromptOptional
	if cfg.FlagValue != nil && !o.isFlag {
		o.flagNeedsValue = true
	}

	if o.isFlag && defaultIsMissing && !o.required {
		if o.multiple {
			o.def = Static([]any{})
		} else {
			o.def = Static(false)
		}
	}
	o.flagValue = cfg.FlagValue
	if o.flagValue == nil {
		v, ok := staticValue(o.def)
		o.flagValue = ok && !truthy(v)
	}
	if o.isFlag && cfg.Type == nil {
		o.typ = guessType(o.flagValue)
	}
	o.isBoolFlag = o.isFlag && o.typ == Bool

	if o.count {
		if cfg.Type == nil {
			o.typ = &IntRangeType{Min: Ptr(0)}
		}
		if defaultIsMissing {
			o.def = Static(0)
		}
	}

	switch {
	case o.prompt != "" && o.isFlag && !o.isBoolFlag:
		return nil, fmt.Errorf("%s: cannot prompt for flags that are not bool", o.describe())
	case !o.isBoolFlag && len(o.secondaryOpts) > 0:
		return nil, fmt.Errorf("%s: secondary flag is not valid for non-boolean flag", o.describe())
	case o.isBoolFlag && o.hideInput && o.prompt != "":
		return nil, fmt.Errorf("%s: 'prompt' with 'hide_input' is not valid for boolean flag", o.describe())
	}
	return o, nil
}

// MustOption is like [NewOption] but panics on an invalid declaration.
func MustOption(decls []string, cfg OptionConfig) *Option {
	o, err := NewOption(decls, cfg)
	if err != nil {
		panic(err)
	}
	return o
}

func (o *Option) IsFlag() bool          { return o.isFlag }
func (o *Option) IsBoolFlag() bool      { return o.isBoolFlag }
func (o *Option) IsCount() bool         { return o.count }
func (o *Option) FlagValue() any        { return o.flagValue }
func (o *Option) Prompt() string        { return o.prompt }
func (o *Option) Hidden() bool          { return o.hidden }
func (o *Option) Help() string          { return o.help }
func (o *Option) paramTypeName() string { return "option" }

// takesOptionalValue reports whether a bare occurrence is allowed and yields the flag value or a
// prompt.
func (o *Option) takesOptionalValue() bool { return o.flagNeedsValue }

// primaryValue is stored when one of the primary opts of a flag is given. The opts of a flag pair
// always store true; the secondary opts store false.
func (o *Option) primaryValue() any {
	if o.isBoolFlag && len(o.secondaryOpts) > 0 {
		return true
	}
	return o.flagValue
}

func (o *Option) GetDefault(ctx *Context, call bool) any {
	if o.isFlag && !o.isBoolFlag {
		if ctx == nil || ctx.command == nil {
			return nil
		}
		for _, p := range ctx.command.Base().Params {
			other, ok := p.(*Option)
			if !ok || other.name != o.name || other.def == nil {
				continue
			}
			if v, ok := staticValue(other.def); !ok || truthy(v) {
				return other.flagValue
			}
		}
		return nil
	}
	return o.param.GetDefault(ctx, call)
}

func (o *Option) consumeValue(ctx *Context, opts map[string]any) (any, ParameterSource, error) {
	value, source, err := o.param.consumeValue(ctx, opts)
	if err != nil {
		return nil, source, err
	}
	switch {
	case value == any(flagNeedsValue):
		if o.prompt != "" && !ctx.ResilientParsing() {
			value, err = o.promptForValue(ctx)
			source = SourcePrompt
		} else {
			value = o.flagValue
			source = SourceCommandLine
		}
	case o.multiple:
		if items, ok := value.([]any); ok && slices.Contains(items, any(flagNeedsValue)) {
			out := make([]any, len(items))
			for i, item := range items {
				if item == any(flagNeedsValue) {
					item = o.flagValue
				}
				out[i] = item
			}
			value = out
		}
	}
	if (source == SourceDefault || source == SourceUnset) && o.prompt != "" &&
		(o.required || o.promptRequired) && !ctx.ResilientParsing() {
		value, err = o.promptForValue(ctx)
		source = SourcePrompt
	}
	return value, source, err
}

func (o *Option) promptForValue(ctx *Context) (any, error) {
	def := o.GetDefault(ctx, true)
	prompter := ctx.Prompter()
	if o.isBoolFlag {
		var dflt *bool
		if def != nil {
			b, err := Bool.Convert(def, o, ctx)
			if err == nil {
				dflt = Ptr(b.(bool))
			}
		}
		return prompter.Confirm(ctx, o.prompt, dflt)
	}
	return prompter.Prompt(ctx, PromptRequest{
		Text:             o.prompt,
		Default:          def,
		HideInput:        o.hideInput,
		Confirm:          o.confirmationPrompt,
		ConfirmationText: o.confirmationText,
		Convert: func(v any) (any, error) {
			return o.ProcessValue(ctx, v)
		},
	})
}

func (o *Option) resolveEnvvarValue(ctx *Context) (string, bool) {
	if v, ok := o.param.resolveEnvvarValue(ctx); ok {
		return v, true
	}
	if o.allowFromAutoenv && o.name != "" {
		if prefix := ctx.AutoEnvvarPrefix(); prefix != "" {
			if v, ok := ctx.lookupEnv(prefix + "_" + strings.ToUpper(o.name)); ok && v != "" {
				return v, true
			}
		}
	}
	return "", false
}

func (o *Option) valueFromEnvvar(ctx *Context) any {
	raw, ok := o.resolveEnvvarValue(ctx)
	if !ok {
		return nil
	}
	depth := 0
	if o.nargs != 1 {
		depth++
	}
	if o.multiple {
		depth++
	}
	if depth == 0 {
		return raw
	}
	parts := stringsToAny(o.typ.SplitEnvValue(raw))
	if o.multiple && o.nargs != 1 {
		return batch(parts, o.nargs)
	}
	return parts
}

// autoEnvvar returns the environment variable name derived from the auto envvar prefix, if any.
func (o *Option) autoEnvvar(ctx *Context) string {
	if !o.allowFromAutoenv || o.name == "" || ctx == nil || ctx.AutoEnvvarPrefix() == "" {
		return ""
	}
	return ctx.AutoEnvvarPrefix() + "_" + strings.ToUpper(o.name)
}

func (o *Option) InfoDict(ctx *Context) map[string]any {
	info := o.param.InfoDict(ctx)
	info["help"] = o.help
	info["prompt"] = o.prompt
	info["is_flag"] = o.isFlag
	info["flag_value"] = o.flagValue
	info["count"] = o.count
	info["hidden"] = o.hidden
	return info
}

// batch groups items into lists of size n, dropping an incomplete trailing group.
func batch(items []any, n int) []any {
	var out []any
	for i := 0; i+n <= len(items); i += n {
		out = append(out, slices.Clone(items[i:i+n]))
	}
	if out == nil {
		return []any{}
	}
	return out
}

func promptText(name string) string {
	text := strings.ReplaceAll(name, "_", " ")
	r, size := utf8.DecodeRuneInString(text)
	if r == utf8.RuneError {
		return text
	}
	return cases.Upper(language.Und).String(text[:size]) + cases.Lower(language.Und).String(text[size:])
}

func parseOptionDecls(decls []string, exposeValue bool) (string, []string, []string, error) {
	var (
		name      string
		opts      []string
		secondary []string
		possible  []struct{ prefix, name string }
	)
	for _, decl := range decls {
		if isIdentifier(decl) {
			if name != "" {
				return "", nil, nil, fmt.Errorf("name %q defined twice", decl)
			}
			name = decl
			continue
		}
		sep := "/"
		if strings.HasPrefix(decl, "/") {
			sep = ";"
		}
		if first, second, ok := strings.Cut(decl, sep); ok {
			first = strings.TrimRightFunc(first, unicode.IsSpace)
			if first != "" {
				prefix, n := splitOpt(first)
				possible = append(possible, struct{ prefix, name string }{prefix, n})
				opts = append(opts, first)
			}
			second = strings.TrimLeftFunc(second, unicode.IsSpace)
			if second != "" {
				secondary = append(secondary, second)
			}
			if first == second {
				return "", nil, nil, fmt.Errorf("boolean option %q cannot use the same flag for true/false", decl)
			}
			continue
		}
		prefix, n := splitOpt(decl)
		possible = append(possible, struct{ prefix, name string }{prefix, n})
		opts = append(opts, decl)
	}

	for _, opt := range slices.Concat(opts, secondary) {
		if prefix, n := splitOpt(opt); prefix == "" || n == "" {
			return "", nil, nil, fmt.Errorf("option %q must be a prefix followed by a name, as in '--name' or '/name'", opt)
		}
	}
	if name == "" && len(possible) > 0 {
		slices.SortStableFunc(possible, func(a, b struct{ prefix, name string }) int {
			return cmp.Compare(len(b.prefix), len(a.prefix))
		})
		name = strings.ToLower(strings.ReplaceAll(possible[0].name, "-", "_"))
		if !isIdentifier(name) {
			name = ""
		}
	}
	if name == "" && exposeValue {
		return "", nil, nil, fmt.Errorf("could not determine name for option %v", decls)
	}
	if len(opts) == 0 && len(secondary) == 0 {
		return "", nil, nil, fmt.Errorf(
			"no options defined but a name was passed (%s); did you mean to declare an argument instead, or to pass '--%s'?",
			name, name)
	}
	return name, opts, secondary, nil
}

// splitOpt splits an option string into its prefix and name: "--name" into "--" and "name".
func splitOpt(opt string) (string, string) {
	first, size := utf8.DecodeRuneInString(opt)
	if first == utf8.RuneError || unicode.IsLetter(first) || unicode.IsDigit(first) {
		return "", opt
	}
	if strings.HasPrefix(opt[size:], opt[:size]) {
		return opt[:2*size], opt[2*size:]
	}
	return opt[:size], opt[size:]
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
