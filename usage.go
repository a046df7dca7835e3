package clk

import (
	"fmt"
	"strings"

	"github.com/mfridman/clk/pkg/textutil"
)

type commandLister interface {
	ListCommands(ctx *Context) []string
	GetCommand(ctx *Context, name string) (Commander, error)
}

// UsageLine returns the "Usage: ..." line for the command of ctx.
func UsageLine(ctx *Context) string {
	pieces := ctx.command.Base().usagePieces(ctx)
	return "Usage: " + ctx.CommandPath() + " " + strings.Join(pieces, " ")
}

// FormatHelp renders the help page for the command of ctx: usage, description, options and, for
// groups, the list of subcommands.
func FormatHelp(ctx *Context) string {
	base := ctx.command.Base()
	width := ctx.TerminalWidth()
	var b strings.Builder

	b.WriteString(UsageLine(ctx))
	b.WriteString("\n")

	if help := base.Help; help != "" {
		b.WriteString("\n")
		if base.Deprecated {
			help += " (Deprecated)"
		}
		b.WriteString(textutil.Indent(help, width, "  "))
		b.WriteString("\n")
	}

	var options [][2]string
	for _, p := range base.GetParams(ctx) {
		o, ok := p.(*Option)
		if !ok || o.hidden {
			continue
		}
		options = append(options, o.helpRecord(ctx))
	}
	if len(options) > 0 {
		b.WriteString("\nOptions:\n")
		writeDefinitions(&b, options, width)
	}

	if lister, ok := ctx.command.(commandLister); ok {
		var commands [][2]string
		for _, name := range lister.ListCommands(ctx) {
			cmd, err := lister.GetCommand(ctx, name)
			if err != nil || cmd == nil || cmd.Base().Hidden {
				continue
			}
			commands = append(commands, [2]string{name, shortHelp(cmd.Base())})
		}
		if len(commands) > 0 {
			b.WriteString("\nCommands:\n")
			writeDefinitions(&b, commands, width)
		}
	}

	if base.Epilog != "" {
		b.WriteString("\n")
		b.WriteString(textutil.Indent(base.Epilog, width, "  "))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func shortHelp(c *Command) string {
	text := c.ShortHelp
	if text == "" {
		text, _, _ = strings.Cut(strings.TrimSpace(c.Help), "\n")
		if i := strings.Index(text, ". "); i >= 0 {
			text = text[:i+1]
		}
	}
	if c.Deprecated {
		text = strings.TrimSpace("(Deprecated) " + text)
	}
	return text
}

func writeDefinitions(b *strings.Builder, rows [][2]string, width int) {
	maxLen := 0
	for _, row := range rows {
		maxLen = max(maxLen, len(row[0]))
	}
	nameWidth := min(maxLen, 30) + 4
	wrapWidth := max(width-nameWidth-2, 20)
	for _, row := range rows {
		lines := textutil.Wrap(row[1], wrapWidth)
		if len(lines) == 0 {
			fmt.Fprintf(b, "  %s\n", row[0])
			continue
		}
		if len(row[0]) > nameWidth-2 {
			fmt.Fprintf(b, "  %s\n%s%s\n", row[0], strings.Repeat(" ", nameWidth+2), lines[0])
		} else {
			padding := strings.Repeat(" ", nameWidth-len(row[0]))
			fmt.Fprintf(b, "  %s%s%s\n", row[0], padding, lines[0])
		}
		indentPadding := strings.Repeat(" ", nameWidth+2)
		for _, line := range lines[1:] {
			fmt.Fprintf(b, "%s%s\n", indentPadding, line)
		}
	}
}

// helpRecord returns the option's declaration column and description for the help page.
func (o *Option) helpRecord(ctx *Context) [2]string {
	decl := strings.Join(o.opts, ", ")
	if len(o.secondaryOpts) > 0 {
		decl += " / " + strings.Join(o.secondaryOpts, ", ")
	}
	if !o.isFlag && !o.count {
		metavar := o.Metavar()
		if o.flagNeedsValue {
			metavar = "[" + metavar + "]"
		}
		decl += " " + metavar
	}

	var extra []string
	if o.showEnvvar {
		envvars := o.envvars
		if auto := o.autoEnvvar(ctx); auto != "" && len(envvars) == 0 {
			envvars = []string{auto}
		}
		if len(envvars) > 0 {
			extra = append(extra, "env var: "+strings.Join(envvars, ", "))
		}
	}
	if o.showDefault || ctx.showDefault {
		if v, ok := staticValue(o.def); ok && v != nil && !(o.isFlag && !truthy(v)) {
			extra = append(extra, fmt.Sprintf("default: %v", formatDefault(v)))
		} else if !ok && o.def != nil {
			extra = append(extra, "default: (dynamic)")
		}
	}
	if o.required {
		extra = append(extra, "required")
	}
	help := o.help
	if len(extra) > 0 {
		help = strings.TrimSpace(help + "  [" + strings.Join(extra, "; ") + "]")
	}
	return [2]string{decl, help}
}

func formatDefault(v any) string {
	if items, ok := v.([]any); ok {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}
