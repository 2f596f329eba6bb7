// Package sim provides the local circuit-execution backend: a gate-list
// circuit model and a complex128 statevector simulator returning
// measurement probabilities over a qubit range.
package sim

import "fmt"

// Gate types understood by the simulator.
const (
	GateX      = "x"      // Pauli-X on Target
	GateH      = "h"      // Hadamard on Target
	GateSdg    = "sdg"    // S-dagger on Target
	GateCX     = "cx"     // controlled-X, Control -> Target
	GatePhase  = "phase"  // diag(1, e^{i Phi}) on Target
	GateGivens = "givens" // number-conserving rotation on modes (Target, Target+1)
)

// Gate is one instruction of a circuit. Givens gates act on the adjacent
// mode pair (Target, Target+1) with mixing angle Theta and phase Phi:
//
//	u = [[cos t, -e^{+i p} sin t], [e^{-i p} sin t, cos t]]
type Gate struct {
	Type    string
	Target  int
	Control int
	Theta   float64
	Phi     float64
}

// Circuit is an ordered gate list on a fixed qubit register. Qubit q maps
// to fermionic mode q under the Jordan-Wigner convention used throughout.
type Circuit struct {
	NumQubits int
	Gates     []Gate
}

// Add appends a gate.
func (c *Circuit) Add(g Gate) {
	c.Gates = append(c.Gates, g)
}

// Validate checks gate targets against the register size.
func (c *Circuit) Validate() error {
	for i, g := range c.Gates {
		switch g.Type {
		case GateX, GateH, GateSdg, GatePhase:
			if g.Target < 0 || g.Target >= c.NumQubits {
				return fmt.Errorf("gate %d: target %d out of range", i, g.Target)
			}
		case GateCX:
			if g.Target < 0 || g.Target >= c.NumQubits || g.Control < 0 || g.Control >= c.NumQubits {
				return fmt.Errorf("gate %d: qubits (%d,%d) out of range", i, g.Control, g.Target)
			}
			if g.Target == g.Control {
				return fmt.Errorf("gate %d: control equals target", i)
			}
		case GateGivens:
			if g.Target < 0 || g.Target+1 >= c.NumQubits {
				return fmt.Errorf("gate %d: givens pair (%d,%d) out of range", i, g.Target, g.Target+1)
			}
		default:
			return fmt.Errorf("gate %d: unknown type %q", i, g.Type)
		}
	}
	return nil
}
