package clk

// ParameterSource identifies which precedence tier supplied a parameter's final value. Use
// [Context.ParameterSource] to look it up by parameter name after parsing.
type ParameterSource int

const (
	// SourceUnset means no value has been resolved for the parameter yet.
	SourceUnset ParameterSource = iota
	// SourceCommandLine is a value given in the command line arguments.
	SourceCommandLine
	// SourceEnvironment is a value read from an environment variable.
	SourceEnvironment
	// SourceDefault is the parameter's own static or computed default.
	SourceDefault
	// SourceDefaultMap is a value taken from [Context.DefaultMap].
	SourceDefaultMap
	// SourcePrompt is a value entered at an interactive prompt.
	SourcePrompt
)

func (s ParameterSource) String() string {
	switch s {
	case SourceCommandLine:
		return "COMMANDLINE"
	case SourceEnvironment:
		return "ENVIRONMENT"
	case SourceDefault:
		return "DEFAULT"
	case SourceDefaultMap:
		return "DEFAULT_MAP"
	case SourcePrompt:
		return "PROMPT"
	default:
		return "UNSET"
	}
}
