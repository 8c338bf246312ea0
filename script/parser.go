package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	rxSigned   = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
	rxUnsigned = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
)

// PulseCeiling is the longest pulse the firmware accepts, in ms.
const PulseCeiling = 5000

// parseLine validates one non-blank, non-comment line and produces
// its Command. Loop constructs are handled by Parse, not here.
// A non-empty msg means the line is invalid; at most one message is
// produced per line.
func (d Dialect) parseLine(parts []string) (c Command, msg string) {
	switch strings.ToLower(parts[0]) {
	case "move":
		return d.parseMove(parts, KindMove)
	case "movetrap":
		if !d.AllowTrap {
			return c, fmt.Sprintf("unknown command '%s'", parts[0])
		}
		return d.parseMove(parts, KindMoveTrap)
	case "speed":
		return d.parseSpeed(parts)
	case "wait":
		return parseMillis(parts, KindWait)
	case "pulse":
		return parseMillis(parts, KindPulse)
	case "zero":
		return parseZAxisOnly(parts, KindZero)
	case "report":
		return parseZAxisOnly(parts, KindReport)
	}
	return c, fmt.Sprintf("unknown command '%s'", parts[0])
}

func (d Dialect) parseMove(parts []string, kind Kind) (c Command, msg string) {
	name, want := "move", 3
	if kind == KindMoveTrap {
		name, want = "movetrap", 4
	}
	if len(parts) != want {
		if kind == KindMoveTrap {
			return c, fmt.Sprintf("%s requires 3 parameters (axis, distance, speed), got %d", name, len(parts)-1)
		}
		return c, fmt.Sprintf("%s requires 2 parameters (axis, distance), got %d", name, len(parts)-1)
	}
	axis, ok := parseAxis(parts[1])
	if !ok {
		return c, fmt.Sprintf("invalid axis '%s', must be 'x' or 'z'", parts[1])
	}
	dist, ok := d.parseFixed(parts[2], rxSigned)
	if !ok {
		return c, fmt.Sprintf("invalid distance '%s', must be a number with at most %d decimal digit(s)", parts[2], d.FracDigits)
	}
	c = Command{Kind: kind, Axis: axis, Dist: dist}
	if kind == KindMoveTrap {
		speed, ok := d.parseFixed(parts[3], rxUnsigned)
		if !ok || speed <= 0 {
			return Command{}, fmt.Sprintf("invalid speed '%s', must be a positive number", parts[3])
		}
		c.Speed = speed
	}
	return c, ""
}

func (d Dialect) parseSpeed(parts []string) (c Command, msg string) {
	if len(parts) != 3 {
		return c, fmt.Sprintf("speed requires 2 parameters (axis, value), got %d", len(parts)-1)
	}
	axis, ok := parseAxis(parts[1])
	if !ok {
		return c, fmt.Sprintf("invalid axis '%s', must be 'x' or 'z'", parts[1])
	}
	speed, ok := d.parseFixed(parts[2], rxUnsigned)
	if !ok || speed <= 0 {
		return c, fmt.Sprintf("invalid speed '%s', must be a positive number", parts[2])
	}
	return Command{Kind: KindSpeed, Axis: axis, Speed: speed}, ""
}

func parseMillis(parts []string, kind Kind) (c Command, msg string) {
	name := "wait"
	if kind == KindPulse {
		name = "pulse"
	}
	if len(parts) != 2 {
		return c, fmt.Sprintf("%s requires 1 parameter (milliseconds), got %d", name, len(parts)-1)
	}
	ms, err := strconv.Atoi(parts[1])
	if err != nil {
		return c, fmt.Sprintf("invalid milliseconds '%s', must be an integer", parts[1])
	}
	if ms < 0 {
		return c, fmt.Sprintf("%s time cannot be negative, got %d", name, ms)
	}
	if kind == KindPulse && ms > PulseCeiling {
		return c, fmt.Sprintf("pulse time cannot exceed %d ms, got %d", PulseCeiling, ms)
	}
	return Command{Kind: kind, Millis: ms}, ""
}

func parseZAxisOnly(parts []string, kind Kind) (c Command, msg string) {
	name := "zero"
	if kind == KindReport {
		name = "report"
	}
	if len(parts) != 2 {
		return c, fmt.Sprintf("%s requires 1 parameter (axis), got %d", name, len(parts)-1)
	}
	if strings.ToLower(parts[1]) != "z" {
		return c, fmt.Sprintf("%s only supports the z axis, got '%s'", name, parts[1])
	}
	return Command{Kind: kind, Axis: AxisZ}, ""
}

func parseAxis(s string) (Axis, bool) {
	switch strings.ToLower(s) {
	case "x":
		return AxisX, true
	case "z":
		return AxisZ, true
	}
	return 0, false
}

// parseFixed parses a decimal operand, enforcing the dialect's
// fractional digit limit.
func (d Dialect) parseFixed(tok string, rx *regexp.Regexp) (float64, bool) {
	if !rx.MatchString(tok) {
		return 0, false
	}
	if i := strings.IndexByte(tok, '.'); i >= 0 && len(tok)-i-1 > d.FracDigits {
		return 0, false
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
