package script

import "fmt"

// Dialect selects the script grammar variant. The two dialects differ
// in movement command shape and allowed decimal precision.
type Dialect struct {
	Name string

	// FracDigits is the maximum number of digits after the decimal
	// point in distance and speed operands.
	FracDigits int

	// AllowTrap enables the movetrap command, which carries an
	// explicit speed operand.
	AllowTrap bool
}

var (
	// Standard is the move/speed/wait/pulse/zero/report grammar.
	Standard = Dialect{Name: "standard", FracDigits: 1}

	// Trap additionally accepts movetrap and two decimal digits.
	Trap = Dialect{Name: "trap", FracDigits: 2, AllowTrap: true}
)

// DialectByName resolves a dialect from its name.
func DialectByName(name string) (Dialect, error) {
	switch name {
	case "", Standard.Name:
		return Standard, nil
	case Trap.Name:
		return Trap, nil
	}
	return Dialect{}, fmt.Errorf("unknown dialect %q", name)
}
