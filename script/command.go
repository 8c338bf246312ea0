package script

import (
	"strconv"
	"strings"
)

// Kind identifies a primitive rig command.
type Kind int

const (
	KindInvalid Kind = iota
	KindMove
	KindMoveTrap
	KindSpeed
	KindWait
	KindPulse
	KindZero
	KindReport
)

// Axis is a rig axis letter.
type Axis byte

const (
	AxisX Axis = 'x'
	AxisZ Axis = 'z'
)

// Command is a single primitive command, produced only by a
// successful parse. Loop constructs never appear as Commands.
type Command struct {
	Kind Kind
	Axis Axis

	// Dist is the signed move distance in mm (move, movetrap).
	Dist float64

	// Speed is the speed operand (speed, movetrap).
	Speed float64

	// Millis is the time operand in ms (wait, pulse).
	Millis int
}

func (c Command) node() {}

// String renders the wire form of the command, one line without
// the terminating newline.
func (c Command) String() string {
	switch c.Kind {
	case KindMove:
		return "move " + string(c.Axis) + " " + formatNum(c.Dist)
	case KindMoveTrap:
		return "movetrap " + string(c.Axis) + " " + formatNum(c.Dist) + " " + formatNum(c.Speed)
	case KindSpeed:
		return "speed " + string(c.Axis) + " " + formatNum(c.Speed)
	case KindWait:
		return "wait " + strconv.Itoa(c.Millis)
	case KindPulse:
		return "pulse " + strconv.Itoa(c.Millis)
	case KindZero:
		return "zero " + string(c.Axis)
	case KindReport:
		return "report " + string(c.Axis)
	}
	return ""
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Program is a flat, loop-free command sequence ready for the
// transport.
type Program []Command

// Lines renders each command in wire form.
func (p Program) Lines() []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = c.String()
	}
	return out
}

// Join renders the whole program as a single line, commands
// separated by sep. Used by the CSV export collaborator.
func (p Program) Join(sep string) string {
	return strings.Join(p.Lines(), sep)
}
