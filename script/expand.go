package script

// Expand flattens the loop tree into the primitive command sequence
// the transport will stream. Each frame's body is replayed Count
// times in document order; nested frames replay once per outer
// iteration, so repetition counts multiply.
//
// Expand assumes the script parsed cleanly and never fails.
func (s *Script) Expand() Program {
	var out Program
	expandInto(&out, s.Nodes)
	return out
}

func expandInto(out *Program, nodes []Node) {
	for _, n := range nodes {
		switch v := n.(type) {
		case Command:
			*out = append(*out, v)
		case *LoopFrame:
			for i := 0; i < v.Count; i++ {
				expandInto(out, v.Body)
			}
		}
	}
}
