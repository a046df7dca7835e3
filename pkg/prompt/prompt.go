// Package prompt reads answers to interactive questions from a terminal or any reader.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Options configures [Ask].
type Options struct {
	// Default is used when the answer is empty. Nil means an answer is required.
	Default any
	// ShowDefault renders the default after the question text.
	ShowDefault bool
	// HideInput disables echo when reading from a terminal.
	HideInput bool
	// Confirm asks a second time and requires both answers to match.
	Confirm bool
	// ConfirmText is the text of the confirmation question.
	ConfirmText string
}

// Ask writes text to out and reads a line from in until convert accepts it. Conversion errors are
// reported and the question is repeated. It returns [io.EOF] when in is exhausted.
func Ask(in io.Reader, out io.Writer, text string, opts Options, convert func(any) (any, error)) (any, error) {
	question := text
	if opts.Default != nil && opts.ShowDefault {
		question += fmt.Sprintf(" [%v]", opts.Default)
	}
	question += ": "
	confirmText := opts.ConfirmText
	if confirmText == "" {
		confirmText = "Repeat for confirmation"
	}
	for {
		var value any
		for {
			line, err := readAnswer(in, out, question, opts.HideInput)
			if err != nil {
				return nil, err
			}
			if line != "" {
				value = line
				break
			}
			if opts.Default != nil {
				value = opts.Default
				break
			}
		}
		result, err := convert(value)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if !opts.Confirm {
			return result, nil
		}
		again, err := readAnswer(in, out, confirmText+": ", opts.HideInput)
		if err != nil {
			return nil, err
		}
		if again == fmt.Sprint(value) {
			return result, nil
		}
		fmt.Fprintln(out, "Error: The two entered values do not match.")
	}
}

// Confirm asks a yes/no question. With def set, an empty answer selects it.
func Confirm(in io.Reader, out io.Writer, text string, def *bool) (bool, error) {
	suffix := " [y/n]: "
	if def != nil {
		suffix = " [y/N]: "
		if *def {
			suffix = " [Y/n]: "
		}
	}
	for {
		line, err := readAnswer(in, out, text+suffix, false)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		case "":
			if def != nil {
				return *def, nil
			}
		}
		fmt.Fprintln(out, "Error: invalid input")
	}
}

func readAnswer(in io.Reader, out io.Writer, question string, hide bool) (string, error) {
	fmt.Fprint(out, question)
	if f, ok := in.(*os.File); ok && hide && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := readLine(in)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readLine reads up to and including the next newline one byte at a time, so nothing past the
// line is consumed from in. A final line without a newline is returned as is.
func readLine(in io.Reader) (string, error) {
	var b strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				return strings.TrimSuffix(b.String(), "\r"), nil
			}
			b.WriteByte(buf[0])
		}
		if errors.Is(err, io.EOF) {
			if b.Len() > 0 {
				return b.String(), nil
			}
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}
	}
}
