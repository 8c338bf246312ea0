package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand_FlatIsNoop(t *testing.T) {
	s := MustParse("move x 1\nwait 100\nmove z -2", Standard)
	p := s.Expand()
	require.Len(t, p, 3)
	assert.Equal(t, []string{"move x 1", "wait 100", "move z -2"}, p.Lines())
}

func TestExpand_LoopMultiplies(t *testing.T) {
	s := MustParse(`loop 3
move x 10
wait 200
endloop`, Standard)
	p := s.Expand()
	require.Len(t, p, 6)
	assert.Equal(t, "move x 10", p[0].String())
	assert.Equal(t, "wait 200", p[1].String())
	assert.Equal(t, "move x 10", p[2].String())
	assert.Equal(t, "wait 200", p[5].String())
}

func TestExpand_NestedCountsMultiply(t *testing.T) {
	s := MustParse(`loop 2
move x 1
loop 3
move z -1
endloop
endloop`, Standard)
	p := s.Expand()
	// 2 * (1 + 3*1) = 8 commands total.
	require.Len(t, p, 8)
	// Document order: outer command precedes inner repetitions.
	assert.Equal(t, "move x 1", p[0].String())
	assert.Equal(t, "move z -1", p[1].String())
	assert.Equal(t, "move z -1", p[3].String())
	assert.Equal(t, "move x 1", p[4].String())
}

func TestExpand_SurroundingCommandsKeepOrder(t *testing.T) {
	s := MustParse(`zero z
loop 2
move z 0.5
endloop
report z`, Standard)
	assert.Equal(t, []string{
		"zero z",
		"move z 0.5",
		"move z 0.5",
		"report z",
	}, s.Expand().Lines())
}

func TestProgram_Join(t *testing.T) {
	s := MustParse("move x 1\nwait 100", Standard)
	assert.Equal(t, "move x 1 | wait 100", s.Expand().Join(" | "))
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "move z -5.5", Command{Kind: KindMove, Axis: AxisZ, Dist: -5.5}.String())
	assert.Equal(t, "movetrap x 10 500", Command{Kind: KindMoveTrap, Axis: AxisX, Dist: 10, Speed: 500}.String())
	assert.Equal(t, "speed x 5", Command{Kind: KindSpeed, Axis: AxisX, Speed: 5}.String())
	assert.Equal(t, "pulse 250", Command{Kind: KindPulse, Millis: 250}.String())
	assert.Equal(t, "zero z", Command{Kind: KindZero, Axis: AxisZ}.String())
}
