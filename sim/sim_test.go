package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rigctl/script"
)

func program(t *testing.T, text string) script.Program {
	t.Helper()
	return script.MustParse(text, script.Standard).Expand()
}

func TestCheck_RejectsPastBuffer(t *testing.T) {
	p := program(t, "move z 1.5\nmove z 1.0")
	_, err := Check(p, 0)
	require.Error(t, err)

	var le *LimitError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 2, le.Index)
	assert.InDelta(t, 2.5, le.Pos, 1e-9)
	assert.InDelta(t, 2.0, le.Limit, 1e-9)
	assert.Contains(t, err.Error(), "command #2")
}

func TestCheck_AcceptsAtBuffer(t *testing.T) {
	p := program(t, "move z 1.0\nmove z 1.0")
	end, err := Check(p, 0)
	assert.NoError(t, err)
	assert.InDelta(t, 2.0, end, 1e-9)
}

func TestCheck_FromSafeStart(t *testing.T) {
	end, err := Check(program(t, "move z 10"), -50)
	assert.NoError(t, err)
	assert.InDelta(t, -40.0, end, 1e-9)
}

func TestCheck_ZeroResetsBaseline(t *testing.T) {
	// Position persists relative to the last zero, not the start.
	p := program(t, "move z 1.0\nzero z\nmove z 0.5")
	end, err := Check(p, -7)
	assert.NoError(t, err)
	assert.InDelta(t, 0.5, end, 1e-9)
}

func TestCheck_MoveAfterZeroStillGated(t *testing.T) {
	p := program(t, "zero z\nmove z 2.5")
	_, err := Check(p, -50)
	var le *LimitError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 2, le.Index)
}

func TestCheck_IgnoresOtherCommands(t *testing.T) {
	p := program(t, "move x 100\nwait 500\npulse 100\nspeed z 5\nreport z")
	end, err := Check(p, 1.5)
	assert.NoError(t, err)
	assert.InDelta(t, 1.5, end, 1e-9)
}

func TestCheck_MoveTrapCounts(t *testing.T) {
	p := script.MustParse("movetrap z 3 500", script.Trap).Expand()
	_, err := Check(p, 0)
	var le *LimitError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 1, le.Index)
	assert.InDelta(t, 3.0, le.Pos, 1e-9)
}

func TestCheck_IndexIsFlatPosition(t *testing.T) {
	// The loop expands before the gate runs; index counts expanded
	// commands, not source lines.
	p := program(t, "loop 3\nmove z 0.8\nendloop")
	_, err := Check(p, 0)
	var le *LimitError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 3, le.Index)
	assert.InDelta(t, 2.4, le.Pos, 1e-9)
}

func TestState_ApplyCommitsOnlyOnAccept(t *testing.T) {
	s := NewState()
	assert.InDelta(t, DefaultZ, s.Z, 1e-9)

	require.NoError(t, s.Apply(program(t, "move z 10")))
	assert.InDelta(t, -40.0, s.Z, 1e-9)

	err := s.Apply(program(t, "move z 50"))
	require.Error(t, err)
	assert.InDelta(t, -40.0, s.Z, 1e-9)

	// State persists across runs until a zero resets the baseline.
	require.NoError(t, s.Apply(program(t, "zero z\nmove z 0.5")))
	assert.InDelta(t, 0.5, s.Z, 1e-9)
}
