package script

import (
	"fmt"
	"strings"
)

// LineError is a single diagnostic attached to a 1-based source line.
type LineError struct {
	Line int    `json:"line"`
	Msg  string `json:"msg"`
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Errors is the full diagnostic list for a script, sorted by line
// number.
type Errors []LineError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, le := range e {
		msgs[i] = le.Error()
	}
	return strings.Join(msgs, "; ")
}

// Summary formats the list the way the editor shows it.
func (e Errors) Summary() string {
	if len(e) == 0 {
		return "no errors found - script is valid"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "found %d error(s):", len(e))
	for _, le := range e {
		b.WriteString("\n  ")
		b.WriteString(le.Error())
	}
	return b.String()
}
