package clk

import (
	"fmt"
	"strings"
)

// ArgumentConfig configures an [Argument].
type ArgumentConfig struct {
	Type ParamType
	// Required defaults to true unless a default is set or Nargs is -1.
	Required *bool
	Default  Default
	Callback ParamCallback
	// Nargs is the number of values consumed. Zero means 1, or the arity of a composite type; -1
	// consumes all remaining positional values.
	Nargs    int
	Metavar  string
	NoExpose bool
	IsEager  bool
	Envvar   []string
}

// Argument is a positional parameter.
type Argument struct {
	param
}

// NewArgument builds a positional argument. The declaration is its name; dashes become
// underscores and the name is lowercased.
func NewArgument(decl string, cfg ArgumentConfig) (*Argument, error) {
	a := &Argument{}
	decl = strings.TrimSpace(decl)
	if decl == "" {
		if !cfg.NoExpose {
			return nil, fmt.Errorf("argument is marked as exposed, but does not have a name")
		}
	} else {
		if strings.ContainsAny(decl, " \t") {
			return nil, fmt.Errorf("arguments take exactly one parameter declaration, got %q", decl)
		}
		a.name = strings.ToLower(strings.ReplaceAll(decl, "-", "_"))
		a.opts = []string{decl}
	}
	if cfg.Nargs == -1 && cfg.Default != nil {
		return nil, fmt.Errorf("%s: 'default' is not supported for nargs=-1", a.describe())
	}
	required := cfg.Default == nil && cfg.Nargs >= 0
	if cfg.Required != nil {
		required = *cfg.Required
	}
	err := a.init(a, paramConfig{
		typ:         cfg.Type,
		required:    required,
		def:         cfg.Default,
		callback:    cfg.Callback,
		nargs:       cfg.Nargs,
		metavar:     cfg.Metavar,
		exposeValue: !cfg.NoExpose,
		isEager:     cfg.IsEager,
		envvars:     cfg.Envvar,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// MustArgument is like [NewArgument] but panics on an invalid declaration.
func MustArgument(decl string, cfg ArgumentConfig) *Argument {
	a, err := NewArgument(decl, cfg)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *Argument) paramTypeName() string { return "argument" }

func (a *Argument) HumanReadableName() string {
	if a.metavar != "" {
		return a.metavar
	}
	return strings.ToUpper(a.name)
}

func (a *Argument) Metavar() string {
	if a.metavar != "" {
		return a.metavar
	}
	var mv string
	if m, ok := a.typ.(interface{ Metavar() string }); ok {
		mv = m.Metavar()
	} else {
		mv = strings.ToUpper(a.name)
	}
	if !a.required {
		mv = "[" + mv + "]"
	}
	if a.nargs != 1 {
		mv += "..."
	}
	return mv
}

func (a *Argument) ErrorHint(*Context) string {
	return "'" + a.Metavar() + "'"
}

func (a *Argument) UsagePieces(*Context) []string {
	return []string{a.Metavar()}
}
