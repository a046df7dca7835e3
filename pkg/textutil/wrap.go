// Package textutil formats text for terminal output.
package textutil

import (
	"strings"

	"github.com/mitchellh/go-wordwrap"
)

// Wrap breaks text into lines of at most width characters, collapsing whitespace. Words longer
// than width are kept whole on their own line; a width of 1 or less puts every word on its own
// line.
func Wrap(text string, width int) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}
	if width <= 1 {
		return strings.Fields(text)
	}
	return strings.Split(wordwrap.WrapString(text, uint(width)), "\n")
}

// Indent wraps text to width and prefixes every line with indent.
func Indent(text string, width int, indent string) string {
	lines := Wrap(text, width-len(indent))
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
