package script

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Parse scans the script in a single pass, building the loop tree and
// collecting every diagnostic. The returned Script is only meaningful
// when the error list is empty.
//
// Blank lines and lines starting with '#' are skipped. Per-line
// errors never stop the scan; structural errors (unmatched endloop,
// unclosed loop) are attached to the offending line and merged with
// the per-line errors, sorted by line number.
func Parse(text string, d Dialect) (*Script, Errors) {
	var errs Errors
	root := &LoopFrame{Count: 1}
	stack := []*LoopFrame{root}
	top := func() *LoopFrame { return stack[len(stack)-1] }

	for i, raw := range strings.Split(text, "\n") {
		ln := i + 1
		s := strings.TrimSpace(raw)
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		parts := strings.Fields(s)

		switch strings.ToLower(parts[0]) {
		case "loop":
			count, msg := parseLoop(parts)
			if msg != "" {
				errs = append(errs, LineError{ln, msg})
				count = 1
			}
			// Open a frame even on a bad count so nesting
			// diagnostics stay accurate.
			f := &LoopFrame{Count: count, Line: ln}
			top().Body = append(top().Body, f)
			stack = append(stack, f)
		case "endloop":
			if len(parts) != 1 {
				errs = append(errs, LineError{ln, fmt.Sprintf("endloop takes no parameters, got %d", len(parts)-1)})
			}
			if len(stack) == 1 {
				errs = append(errs, LineError{ln, "endloop without matching loop"})
				continue
			}
			stack = stack[:len(stack)-1]
		default:
			c, msg := d.parseLine(parts)
			if msg != "" {
				errs = append(errs, LineError{ln, msg})
				continue
			}
			top().Body = append(top().Body, c)
		}
	}

	for _, f := range stack[1:] {
		errs = append(errs, LineError{f.Line, "loop without matching endloop"})
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Line < errs[j].Line })

	return &Script{Nodes: root.Body, Dialect: d}, errs
}

func parseLoop(parts []string) (count int, msg string) {
	if len(parts) != 2 {
		return 0, fmt.Sprintf("loop requires 1 parameter (iterations), got %d", len(parts)-1)
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Sprintf("invalid iterations '%s', must be an integer", parts[1])
	}
	if n <= 0 {
		return 0, fmt.Sprintf("iterations must be positive, got %d", n)
	}
	return n, ""
}

// Validate runs the full parse and reports only the diagnostics.
func Validate(text string, d Dialect) Errors {
	_, errs := Parse(text, d)
	return errs
}

// MustParse parses or panics. For fixtures and tests.
func MustParse(text string, d Dialect) *Script {
	s, errs := Parse(text, d)
	if len(errs) > 0 {
		panic(errs.Summary())
	}
	return s
}
