// Package sim replays a flattened command sequence against the
// z-axis soft limit before anything is transmitted.
package sim

import (
	"fmt"

	"rigctl/script"
)

// ZBuffer is the soft-limit position in mm, matching the firmware's
// tolerance past the contact point.
const ZBuffer = 2.0

// DefaultZ is the session-start z position, a safe distance off the
// physical limit.
const DefaultZ = -50.0

// LimitError reports the command that would cross the soft limit.
// Index is 1-based into the flattened program, not the source line.
type LimitError struct {
	Index int
	Pos   float64
	Limit float64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("command #%d would move z past the soft limit (to %.1f, limit %.1f); zero z at the contact point or reduce the move", e.Index, e.Pos, e.Limit)
}

// Check walks the program tracking the z position from start. A
// `zero z` resets the running position to 0, mirroring the device
// re-zeroing mid-run, so the returned end position is always relative
// to the most recent zero. A move that would land past ZBuffer stops
// evaluation and returns a *LimitError; no later commands are
// examined and the start position stands.
func Check(p script.Program, start float64) (end float64, err error) {
	z := start
	for i, c := range p {
		switch {
		case c.Kind == script.KindZero && c.Axis == script.AxisZ:
			z = 0
		case movesZ(c):
			if z+c.Dist > ZBuffer {
				return start, &LimitError{Index: i + 1, Pos: z + c.Dist, Limit: ZBuffer}
			}
			z += c.Dist
		}
	}
	return z, nil
}

func movesZ(c script.Command) bool {
	return (c.Kind == script.KindMove || c.Kind == script.KindMoveTrap) && c.Axis == script.AxisZ
}

// State is the persistent z position for one operator session. It is
// threaded through successive sends and only changes when a program
// passes the gate.
type State struct {
	Z float64
}

// NewState starts at DefaultZ.
func NewState() *State {
	return &State{Z: DefaultZ}
}

// Apply gates the program against the current position and, on
// acceptance, commits the resulting position. On rejection the state
// is unchanged and the returned error is a *LimitError.
func (s *State) Apply(p script.Program) error {
	end, err := Check(p, s.Z)
	if err != nil {
		return err
	}
	s.Z = end
	return nil
}
