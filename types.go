package clk

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/spf13/cast"
)

// ParamType converts raw values into the typed values a parameter exposes. Raw values are usually
// strings from the command line or the environment, but defaults and default maps can hold values
// of any type.
//
// Convert must accept values that are already converted and return them unchanged.
type ParamType interface {
	// Name is a short descriptive name, also used as the metavar in help output.
	Name() string
	Convert(value any, p Parameter, ctx *Context) (any, error)
	// SplitEnvValue splits an environment variable value for parameters that take more than one
	// value.
	SplitEnvValue(s string) []string
}

// CompositeType is a [ParamType] that consumes a fixed number of values at once, like [Tuple]. A
// parameter with a composite type takes its nargs from Arity.
type CompositeType interface {
	ParamType
	Arity() int
}

// Built-in types.
var (
	String   ParamType = stringType{}
	Int      ParamType = intType{}
	Float    ParamType = floatType{}
	Bool     ParamType = boolType{}
	Duration ParamType = durationType{}
)

// splitFields splits on whitespace, honoring shell quoting. Values that do not parse as shell
// words fall back to plain whitespace splitting.
func splitFields(s string) []string {
	fields, err := shlex.Split(s)
	if err != nil {
		return strings.Fields(s)
	}
	return fields
}

type stringType struct{}

func (stringType) Name() string                    { return "text" }
func (stringType) SplitEnvValue(s string) []string { return splitFields(s) }

func (stringType) Convert(value any, _ Parameter, _ *Context) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	s, err := cast.ToStringE(value)
	if err != nil {
		return fmt.Sprint(value), nil
	}
	return s, nil
}

type intType struct{}

func (intType) Name() string                    { return "integer" }
func (intType) SplitEnvValue(s string) []string { return splitFields(s) }

func (intType) Convert(value any, _ Parameter, _ *Context) (any, error) {
	if s, ok := value.(string); ok {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, NewBadParameter("'%s' is not a valid integer.", s)
		}
		return n, nil
	}
	n, err := cast.ToIntE(value)
	if err != nil {
		return nil, NewBadParameter("%v is not a valid integer.", value)
	}
	return n, nil
}

type floatType struct{}

func (floatType) Name() string                    { return "float" }
func (floatType) SplitEnvValue(s string) []string { return splitFields(s) }

func (floatType) Convert(value any, _ Parameter, _ *Context) (any, error) {
	if s, ok := value.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, NewBadParameter("'%s' is not a valid float.", s)
		}
		return f, nil
	}
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return nil, NewBadParameter("%v is not a valid float.", value)
	}
	return f, nil
}

type boolType struct{}

func (boolType) Name() string                    { return "boolean" }
func (boolType) SplitEnvValue(s string) []string { return splitFields(s) }

func (boolType) Convert(value any, _ Parameter, _ *Context) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "t", "yes", "y", "on":
			return true, nil
		case "0", "false", "f", "no", "n", "off":
			return false, nil
		}
		return nil, NewBadParameter("'%s' is not a valid boolean.", v)
	}
	b, err := cast.ToBoolE(value)
	if err != nil {
		return nil, NewBadParameter("%v is not a valid boolean.", value)
	}
	return b, nil
}

type durationType struct{}

func (durationType) Name() string                    { return "duration" }
func (durationType) SplitEnvValue(s string) []string { return splitFields(s) }

func (durationType) Convert(value any, _ Parameter, _ *Context) (any, error) {
	if s, ok := value.(string); ok {
		d, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil {
			return nil, NewBadParameter("'%s' is not a valid duration.", s)
		}
		return d, nil
	}
	d, err := cast.ToDurationE(value)
	if err != nil {
		return nil, NewBadParameter("%v is not a valid duration.", value)
	}
	return d, nil
}

// ChoiceType accepts one of a fixed set of strings.
type ChoiceType struct {
	Choices       []string
	CaseSensitive bool
}

// Choice returns a case sensitive [ChoiceType] for the given choices.
func Choice(choices ...string) *ChoiceType {
	return &ChoiceType{Choices: choices, CaseSensitive: true}
}

func (c *ChoiceType) Name() string                    { return "choice" }
func (c *ChoiceType) SplitEnvValue(s string) []string { return splitFields(s) }

// Metavar renders the choices for help output.
func (c *ChoiceType) Metavar() string {
	return "[" + strings.Join(c.Choices, "|") + "]"
}

func (c *ChoiceType) Convert(value any, p Parameter, ctx *Context) (any, error) {
	s, err := String.Convert(value, p, ctx)
	if err != nil {
		return nil, err
	}
	str := s.(string)
	for _, choice := range c.Choices {
		if choice == str || (!c.CaseSensitive && strings.EqualFold(choice, str)) {
			return choice, nil
		}
	}
	quoted := make([]string, len(c.Choices))
	for i, choice := range c.Choices {
		quoted[i] = "'" + choice + "'"
	}
	if len(quoted) == 1 {
		return nil, NewBadParameter("'%s' is not %s.", str, quoted[0])
	}
	return nil, NewBadParameter("'%s' is not one of %s.", str, strings.Join(quoted, ", "))
}

// IntRangeType accepts integers within optional bounds. With Clamp set, out of range values are
// moved to the nearest bound instead of failing.
type IntRangeType struct {
	Min, Max *int
	Clamp    bool
}

func (r *IntRangeType) Name() string                    { return "integer range" }
func (r *IntRangeType) SplitEnvValue(s string) []string { return splitFields(s) }

func (r *IntRangeType) Convert(value any, p Parameter, ctx *Context) (any, error) {
	v, err := Int.Convert(value, p, ctx)
	if err != nil {
		return nil, err
	}
	n := v.(int)
	lowOK := r.Min == nil || n >= *r.Min
	highOK := r.Max == nil || n <= *r.Max
	if lowOK && highOK {
		return n, nil
	}
	if r.Clamp {
		if !lowOK {
			return *r.Min, nil
		}
		return *r.Max, nil
	}
	return nil, NewBadParameter("%d is not in the range %s.", n, r.describe())
}

func (r *IntRangeType) describe() string {
	switch {
	case r.Min != nil && r.Max != nil:
		return fmt.Sprintf("%d<=x<=%d", *r.Min, *r.Max)
	case r.Min != nil:
		return fmt.Sprintf("x>=%d", *r.Min)
	case r.Max != nil:
		return fmt.Sprintf("x<=%d", *r.Max)
	}
	return "x"
}

// TupleType converts a fixed-size group of values, each with its own type.
type TupleType struct {
	Types []ParamType
}

// Tuple returns a composite type with one element per given type.
func Tuple(types ...ParamType) *TupleType {
	return &TupleType{Types: types}
}

func (t *TupleType) Name() string {
	names := make([]string, len(t.Types))
	for i, typ := range t.Types {
		names[i] = typ.Name()
	}
	return "<" + strings.Join(names, " ") + ">"
}

func (t *TupleType) Arity() int                      { return len(t.Types) }
func (t *TupleType) SplitEnvValue(s string) []string { return splitFields(s) }

func (t *TupleType) Convert(value any, p Parameter, ctx *Context) (any, error) {
	items, err := toSlice(value)
	if err != nil {
		return nil, err
	}
	if len(items) != len(t.Types) {
		return nil, NewBadParameter("%d values are required, but %d were given.", len(t.Types), len(items))
	}
	out := make([]any, len(items))
	for i, item := range items {
		if out[i], err = t.Types[i].Convert(item, p, ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// PathType accepts a filesystem path. Environment values are split on the OS path list separator.
type PathType struct {
	MustExist bool
	// Resolve makes the path absolute.
	Resolve bool
}

func (pt *PathType) Name() string { return "path" }

func (pt *PathType) SplitEnvValue(s string) []string {
	return slices.DeleteFunc(filepath.SplitList(s), func(e string) bool { return e == "" })
}

func (pt *PathType) Convert(value any, p Parameter, ctx *Context) (any, error) {
	v, err := String.Convert(value, p, ctx)
	if err != nil {
		return nil, err
	}
	path := v.(string)
	if pt.Resolve {
		if path, err = filepath.Abs(path); err != nil {
			return nil, NewBadParameter("%v", err)
		}
	}
	if pt.MustExist {
		if _, err := os.Stat(path); err != nil {
			return nil, NewBadParameter("Path '%s' does not exist.", path)
		}
	}
	return path, nil
}

// FuncType adapts a conversion function to a [ParamType].
type FuncType struct {
	TypeName string
	Fn       func(value any) (any, error)
}

func (f *FuncType) Name() string                    { return f.TypeName }
func (f *FuncType) SplitEnvValue(s string) []string { return splitFields(s) }

func (f *FuncType) Convert(value any, _ Parameter, _ *Context) (any, error) {
	return f.Fn(value)
}

// guessType infers a parameter type from a default or flag value.
func guessType(v any) ParamType {
	switch v := v.(type) {
	case nil, string:
		return String
	case bool:
		return Bool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return Int
	case float32, float64:
		return Float
	case time.Duration:
		return Duration
	case []any:
		if len(v) == 0 {
			return String
		}
		// A default for a multi-valued parameter: the first element decides.
		return guessType(v[0])
	}
	return String
}

// toSlice turns a sequence value into []any. Strings are rejected because they are not meant to
// be iterated as values.
func toSlice(value any) ([]any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case string, nil:
		return nil, NewBadParameter("Value must be an iterable.")
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, NewBadParameter("Value must be an iterable.")
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// truthy mirrors the usual notion of an empty or zero value being false.
func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return !rv.IsZero()
}

// Ptr returns a pointer to v. It is convenient for optional configuration fields.
func Ptr[T any](v T) *T { return &v }
