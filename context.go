package clk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/ef-ds/deque"
	"go.uber.org/zap"
)

// Context is the per-invocation state of one command. Contexts form a chain from the innermost
// subcommand to the root; configuration such as the default map, the auto envvar prefix and the
// I/O streams is inherited from the parent unless overridden with a [ContextOption].
//
// A context is not safe for concurrent use.
type Context struct {
	// Params holds the resolved parameter values of this command.
	Params *Params
	// Args holds the tokens left over after parsing.
	Args []string
	// Obj is user data shared down the chain. It is inherited from the parent unless set.
	Obj any
	// InvokedSubcommand is the name of the subcommand being invoked, "*" in chain mode, or empty.
	InvokedSubcommand string

	// Standard I/O streams.
	Stdin          io.Reader
	Stdout, Stderr io.Writer

	parent        *Context
	command       Commander
	infoName      string
	protectedArgs []string
	meta          map[string]any
	defaultMap    map[string]any

	autoEnvvarPrefix      string
	allowExtraArgs        bool
	allowInterspersedArgs bool
	ignoreUnknownOptions  bool
	resilientParsing      bool
	helpOptionNames       []string
	tokenNormalize        func(string) string
	showDefault           bool
	terminalWidth         int

	logger    *zap.Logger
	prompter  Prompter
	lookupEnv func(string) (string, bool)
	tokenizer Tokenizer
	goctx     context.Context

	depth    int
	cleanups *deque.Deque
	sources  map[string]ParameterSource
}

// ContextOption configures a [Context] at construction. Options given to [MakeContext] are
// applied after the command's own context settings.
type ContextOption func(*contextConfig)

type contextConfig struct {
	obj                   any
	objSet                bool
	autoEnvvarPrefix      *string
	defaultMap            map[string]any
	defaultMapSet         bool
	allowExtraArgs        *bool
	allowInterspersedArgs *bool
	ignoreUnknownOptions  *bool
	resilientParsing      *bool
	helpOptionNames       []string
	tokenNormalize        func(string) string
	showDefault           *bool
	terminalWidth         int
	logger                *zap.Logger
	prompter              Prompter
	lookupEnv             func(string) (string, bool)
	stdin                 io.Reader
	stdout, stderr        io.Writer
	tokenizer             Tokenizer
	goctx                 context.Context
}

// WithObj sets the user object of the context.
func WithObj(obj any) ContextOption {
	return func(c *contextConfig) { c.obj, c.objSet = obj, true }
}

// WithAutoEnvvarPrefix enables environment variables named PREFIX_NAME for every option. Child
// contexts extend the prefix with their uppercased command name.
func WithAutoEnvvarPrefix(prefix string) ContextOption {
	return func(c *contextConfig) { c.autoEnvvarPrefix = &prefix }
}

// WithDefaultMap sets the default map consulted before parameter defaults. Nested maps keyed by
// subcommand name provide the default maps of child contexts.
func WithDefaultMap(m map[string]any) ContextOption {
	return func(c *contextConfig) { c.defaultMap, c.defaultMapSet = m, true }
}

func WithAllowExtraArgs(v bool) ContextOption {
	return func(c *contextConfig) { c.allowExtraArgs = &v }
}

func WithAllowInterspersedArgs(v bool) ContextOption {
	return func(c *contextConfig) { c.allowInterspersedArgs = &v }
}

func WithIgnoreUnknownOptions(v bool) ContextOption {
	return func(c *contextConfig) { c.ignoreUnknownOptions = &v }
}

// WithResilientParsing makes parsing tolerate errors and skip interactive and exiting behavior.
// It is meant for tooling such as shell completion.
func WithResilientParsing(v bool) ContextOption {
	return func(c *contextConfig) { c.resilientParsing = &v }
}

// WithHelpOptionNames sets the option strings of the automatic help option. With no names the
// help option is disabled.
func WithHelpOptionNames(names ...string) ContextOption {
	return func(c *contextConfig) {
		if names == nil {
			names = []string{}
		}
		c.helpOptionNames = names
	}
}

// WithTokenNormalize sets a function applied to option names and subcommand names before lookup.
func WithTokenNormalize(fn func(string) string) ContextOption {
	return func(c *contextConfig) { c.tokenNormalize = fn }
}

func WithShowDefault(v bool) ContextOption {
	return func(c *contextConfig) { c.showDefault = &v }
}

func WithTerminalWidth(width int) ContextOption {
	return func(c *contextConfig) { c.terminalWidth = width }
}

func WithLogger(logger *zap.Logger) ContextOption {
	return func(c *contextConfig) { c.logger = logger }
}

func WithPrompter(p Prompter) ContextOption {
	return func(c *contextConfig) { c.prompter = p }
}

// WithLookupEnv replaces [os.LookupEnv] for environment variable resolution.
func WithLookupEnv(fn func(string) (string, bool)) ContextOption {
	return func(c *contextConfig) { c.lookupEnv = fn }
}

// WithIO sets the standard streams. Nil streams are inherited.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) ContextOption {
	return func(c *contextConfig) { c.stdin, c.stdout, c.stderr = stdin, stdout, stderr }
}

func WithTokenizer(t Tokenizer) ContextOption {
	return func(c *contextConfig) { c.tokenizer = t }
}

// WithGoContext sets the Go context the command tree runs under.
func WithGoContext(ctx context.Context) ContextOption {
	return func(c *contextConfig) { c.goctx = ctx }
}

// NewContext creates the context for cmd. Most callers use [MakeContext], which also parses
// arguments.
func NewContext(cmd Commander, parent *Context, infoName string, opts ...ContextOption) *Context {
	var cfg contextConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	c := &Context{
		Params:   newParams(),
		parent:   parent,
		command:  cmd,
		infoName: infoName,
		cleanups: deque.New(),
		sources:  make(map[string]ParameterSource),
	}
	base := cmd.Base()
	defaults := base.parsingDefaults()

	c.Obj = pick(cfg.objSet, cfg.obj, func(p *Context) any { return p.Obj }, parent, nil)
	c.meta = pick(false, nil, func(p *Context) map[string]any { return p.meta }, parent, make(map[string]any))

	switch {
	case cfg.defaultMapSet:
		c.defaultMap = cfg.defaultMap
	case parent != nil && parent.defaultMap != nil && infoName != "":
		if sub, ok := parent.defaultMap[infoName].(map[string]any); ok {
			c.defaultMap = cloneDefaultMap(sub)
		}
	}

	switch {
	case cfg.autoEnvvarPrefix != nil:
		c.autoEnvvarPrefix = *cfg.autoEnvvarPrefix
	case parent != nil && parent.autoEnvvarPrefix != "" && infoName != "":
		c.autoEnvvarPrefix = parent.autoEnvvarPrefix + "_" + infoName
	}
	c.autoEnvvarPrefix = strings.ToUpper(strings.ReplaceAll(c.autoEnvvarPrefix, "-", "_"))

	c.allowExtraArgs = deref(cfg.allowExtraArgs, defaults.allowExtraArgs)
	c.allowInterspersedArgs = deref(cfg.allowInterspersedArgs, defaults.allowInterspersedArgs)
	c.ignoreUnknownOptions = deref(cfg.ignoreUnknownOptions, defaults.ignoreUnknownOptions)
	c.resilientParsing = deref(cfg.resilientParsing, parent != nil && parent.resilientParsing)

	c.helpOptionNames = cfg.helpOptionNames
	if c.helpOptionNames == nil {
		c.helpOptionNames = pick(false, nil, func(p *Context) []string { return p.helpOptionNames }, parent, []string{"--help"})
	}
	c.tokenNormalize = pick(cfg.tokenNormalize != nil, cfg.tokenNormalize, func(p *Context) func(string) string { return p.tokenNormalize }, parent, nil)
	c.showDefault = deref(cfg.showDefault, parent != nil && parent.showDefault)
	c.terminalWidth = pick(cfg.terminalWidth > 0, cfg.terminalWidth, func(p *Context) int { return p.terminalWidth }, parent, 0)

	c.logger = pick(cfg.logger != nil, cfg.logger, func(p *Context) *zap.Logger { return p.logger }, parent, zap.NewNop())
	c.prompter = pick(cfg.prompter != nil, cfg.prompter, func(p *Context) Prompter { return p.prompter }, parent, nil)
	c.lookupEnv = pick(cfg.lookupEnv != nil, cfg.lookupEnv, func(p *Context) func(string) (string, bool) { return p.lookupEnv }, parent, os.LookupEnv)
	c.tokenizer = pick(cfg.tokenizer != nil, cfg.tokenizer, func(p *Context) Tokenizer { return p.tokenizer }, parent, Tokenizer(PosixTokenizer{}))
	c.Stdin = pick(cfg.stdin != nil, cfg.stdin, func(p *Context) io.Reader { return p.Stdin }, parent, io.Reader(os.Stdin))
	c.Stdout = pick(cfg.stdout != nil, cfg.stdout, func(p *Context) io.Writer { return p.Stdout }, parent, io.Writer(os.Stdout))
	c.Stderr = pick(cfg.stderr != nil, cfg.stderr, func(p *Context) io.Writer { return p.Stderr }, parent, io.Writer(os.Stderr))

	goctx := pick(cfg.goctx != nil, cfg.goctx, func(p *Context) context.Context { return p.goctx }, parent, context.Background())
	c.goctx = context.WithValue(goctx, contextKey{}, c)
	return c
}

// pick returns the configured value when set, the parent's value when there is a parent, and
// fallback otherwise.
func pick[T any](set bool, v T, fromParent func(*Context) T, parent *Context, fallback T) T {
	if set {
		return v
	}
	if parent != nil {
		return fromParent(parent)
	}
	return fallback
}

func deref[T any](p *T, fallback T) T {
	if p != nil {
		return *p
	}
	return fallback
}

func cloneDefaultMap(m map[string]any) map[string]any {
	out := maps.Clone(m)
	for k, v := range out {
		if sub, ok := v.(map[string]any); ok {
			out[k] = cloneDefaultMap(sub)
		}
	}
	return out
}

type contextKey struct{}

// FromContext returns the command context carried by ctx, or nil. Every context returned by
// [Context.Context] carries the command context it came from.
func FromContext(ctx context.Context) *Context {
	c, _ := ctx.Value(contextKey{}).(*Context)
	return c
}

// Context returns a Go context that carries c. Cancellation follows the context given to
// [WithGoContext], usually the one passed to [Run].
func (c *Context) Context() context.Context { return c.goctx }

func (c *Context) Parent() *Context    { return c.parent }
func (c *Context) Command() Commander  { return c.command }
func (c *Context) InfoName() string    { return c.infoName }
func (c *Context) Logger() *zap.Logger { return c.logger }

// ProtectedArgs holds the tokens a group reserved for its subcommands.
func (c *Context) ProtectedArgs() []string { return c.protectedArgs }

// Meta is a map shared by every context in the chain, for extensions to store state.
func (c *Context) Meta() map[string]any { return c.meta }

// DefaultMap returns the default map of this context, possibly nil.
func (c *Context) DefaultMap() map[string]any { return c.defaultMap }

func (c *Context) AutoEnvvarPrefix() string            { return c.autoEnvvarPrefix }
func (c *Context) AllowExtraArgs() bool                { return c.allowExtraArgs }
func (c *Context) AllowInterspersedArgs() bool         { return c.allowInterspersedArgs }
func (c *Context) IgnoreUnknownOptions() bool          { return c.ignoreUnknownOptions }
func (c *Context) ResilientParsing() bool              { return c.resilientParsing }
func (c *Context) HelpOptionNames() []string           { return c.helpOptionNames }
func (c *Context) TokenNormalize() func(string) string { return c.tokenNormalize }
func (c *Context) ShowDefault() bool                   { return c.showDefault }
func (c *Context) Tokenizer() Tokenizer                { return c.tokenizer }

// TerminalWidth returns the configured width for help output, defaulting to 80.
func (c *Context) TerminalWidth() int {
	if c.terminalWidth > 0 {
		return c.terminalWidth
	}
	return 80
}

// Prompter returns the prompter used for interactive input. Without one configured, prompts read
// from the context's stdin and write to its stdout.
func (c *Context) Prompter() Prompter {
	if c.prompter != nil {
		return c.prompter
	}
	return &TerminalPrompter{In: c.Stdin, Out: c.Stdout}
}

// Scope runs fn with c entered. When the outermost scope of c exits, the cleanup functions
// registered on c run in reverse order. With cleanup false, exiting this scope never triggers
// them; [MakeContext] parses arguments that way so cleanup waits for the invocation.
func (c *Context) Scope(cleanup bool, fn func(*Context) error) (err error) {
	if !cleanup {
		c.depth++
		defer func() { c.depth-- }()
	}
	c.depth++
	defer func() {
		c.depth--
		if c.depth == 0 {
			err = errors.Join(err, c.Close())
		}
	}()
	return fn(c)
}

// CallOnClose registers fn to run when the context closes. Functions run in reverse order of
// registration.
func (c *Context) CallOnClose(fn func() error) {
	c.cleanups.PushBack(fn)
}

// WithResource registers r to be closed with the context and returns it.
func WithResource[T io.Closer](c *Context, r T) T {
	c.CallOnClose(r.Close)
	return r
}

// Close runs the registered cleanup functions and forgets them. Errors are joined.
func (c *Context) Close() error {
	var errs []error
	for c.cleanups.Len() > 0 {
		v, _ := c.cleanups.PopBack()
		if err := v.(func() error)(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InfoDict describes the context and its command for tooling and documentation.
func (c *Context) InfoDict() map[string]any {
	return map[string]any{
		"command":                 c.command.InfoDict(c),
		"info_name":               c.infoName,
		"allow_extra_args":        c.allowExtraArgs,
		"allow_interspersed_args": c.allowInterspersedArgs,
		"ignore_unknown_options":  c.ignoreUnknownOptions,
		"auto_envvar_prefix":      c.autoEnvvarPrefix,
	}
}

// CommandPath is the space separated chain of command names from the root, including the
// positional arguments of each parent, as used in usage lines.
func (c *Context) CommandPath() string {
	rv := c.infoName
	if c.parent != nil {
		parts := []string{c.parent.CommandPath()}
		if c.parent.command != nil {
			for _, p := range c.parent.command.Base().GetParams(c.parent) {
				parts = append(parts, p.UsagePieces(c.parent)...)
			}
		}
		rv = strings.Join(parts, " ") + " " + rv
	}
	return strings.TrimLeft(rv, " ")
}

// FindRoot returns the outermost context.
func (c *Context) FindRoot() *Context {
	node := c
	for node.parent != nil {
		node = node.parent
	}
	return node
}

// FindObject returns the closest Obj of type T, starting at c.
func FindObject[T any](c *Context) (T, bool) {
	for node := c; node != nil; node = node.parent {
		if v, ok := node.Obj.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// EnsureObject returns the closest Obj of type T, creating one with newFn and storing it on c when
// there is none.
func EnsureObject[T any](c *Context, newFn func() T) T {
	if v, ok := FindObject[T](c); ok {
		return v
	}
	v := newFn()
	c.Obj = v
	return v
}

// LookupDefault returns the default map entry for name. Function values are called.
func (c *Context) LookupDefault(name string) (any, bool) {
	return c.lookupDefault(name, true)
}

func (c *Context) lookupDefault(name string, call bool) (any, bool) {
	if c.defaultMap == nil {
		return nil, false
	}
	v, ok := c.defaultMap[name]
	if !ok {
		return nil, false
	}
	if call {
		switch fn := v.(type) {
		case func() any:
			return fn(), true
		case func(*Context) any:
			return fn(c), true
		}
	}
	return v, true
}

// SetParameterSource records where the value of parameter name came from.
func (c *Context) SetParameterSource(name string, source ParameterSource) {
	c.sources[name] = source
}

// ParameterSource returns where the value of parameter name came from, or [SourceUnset].
func (c *Context) ParameterSource(name string) ParameterSource {
	return c.sources[name]
}

// Fail returns a usage error with the given message for this context.
func (c *Context) Fail(format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...), Ctx: c}
}

// Abort returns [ErrAbort].
func (c *Context) Abort() error { return ErrAbort }

// Exit returns an error requesting exit with code.
func (c *Context) Exit(code int) error { return &ExitError{Code: code} }

// Invoke runs another command's callback within a new child context. Parameters of cmd not given
// in overrides are filled with their defaults. The child's params follow cmd's declaration order.
func (c *Context) Invoke(cmd Commander, overrides map[string]any) (any, error) {
	base := cmd.Base()
	if base.Callback == nil {
		return nil, fmt.Errorf("command %q has no callback", base.Name)
	}
	sub := c.subContext(cmd)
	declared := make(map[string]bool, len(base.Params))
	for _, p := range base.Params {
		declared[p.Name()] = true
		if v, ok := overrides[p.Name()]; ok {
			sub.Params.Set(p.Name(), v)
			continue
		}
		if !p.ExposeValue() {
			continue
		}
		v, err := p.TypeCastValue(sub, p.GetDefault(sub, true))
		if err != nil {
			return nil, annotate(err, c, p)
		}
		sub.Params.Set(p.Name(), v)
	}
	// Overrides for names cmd does not declare follow in sorted order.
	for _, k := range slices.Sorted(maps.Keys(overrides)) {
		if !declared[k] {
			sub.Params.Set(k, overrides[k])
		}
	}
	rv, err := sub.invokeCallback(base.Callback)
	return rv, annotate(err, c, nil)
}

// Forward is like [Context.Invoke] but passes this context's parameter values.
func (c *Context) Forward(cmd Commander, overrides map[string]any) (any, error) {
	merged := c.Params.Map()
	maps.Copy(merged, overrides)
	return c.Invoke(cmd, merged)
}

func (c *Context) subContext(cmd Commander) *Context {
	return newContextFor(cmd, c, cmd.Base().Name)
}

func (c *Context) invokeCallback(cb Callback) (any, error) {
	var rv any
	err := c.Scope(true, func(c *Context) error {
		var err error
		rv, err = cb(c, c.Params)
		return err
	})
	return rv, annotate(err, c, nil)
}
