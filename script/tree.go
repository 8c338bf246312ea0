package script

// Node is either a Command or a nested *LoopFrame.
type Node interface {
	node()
}

// LoopFrame is one loop/endloop block: its body replayed Count times.
type LoopFrame struct {
	Count int
	Body  []Node

	// Line is the source line of the opening loop statement.
	Line int
}

func (f *LoopFrame) node() {}

// Script is a parsed, structurally valid script.
type Script struct {
	Nodes   []Node
	Dialect Dialect
}
