// Package qest estimates walker local energies from circuit-execution
// measurement probabilities: the walker determinant is encoded by a
// Givens-rotation network, amplitude components are read out by
// ancilla-free parity interference, and the mixed Green's function is
// reconstructed from overlap ratios.
package qest

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/phaseless-team/afqmc-engine/sim"
)

type givensRotation struct {
	pos   int // acts on modes (pos, pos+1)
	theta float64
	phi   float64
}

// PrepareCircuit builds a circuit preparing the Slater determinant of the
// orthonormal isometry q (orbitals x particles) on one qubit per orbital,
// relative to the reference determinant occupying the first k modes. The
// isometry is completed to a unitary, triangularized by adjacent-mode
// Givens rotations, and replayed in reverse onto the reference state.
func PrepareCircuit(q *mat.CDense) (sim.Circuit, error) {
	n, k := q.Dims()
	u, err := completeToUnitary(q)
	if err != nil {
		return sim.Circuit{}, err
	}

	var rots []givensRotation
	for col := 0; col < n; col++ {
		for row := n - 1; row > col; row-- {
			a := u.At(row-1, col)
			b := u.At(row, col)
			if cmplx.Abs(b) < 1e-14 {
				continue
			}
			var theta, phi float64
			if cmplx.Abs(a) < 1e-14 {
				theta = math.Pi / 2
				phi = 0
			} else {
				rho := -b / a
				theta = math.Atan(cmplx.Abs(rho))
				phi = -cmplx.Phase(rho)
			}
			applyGivensLeft(u, row-1, theta, phi)
			rots = append(rots, givensRotation{pos: row - 1, theta: theta, phi: phi})
		}
	}

	c := sim.Circuit{NumQubits: n}
	for p := 0; p < k; p++ {
		c.Add(sim.Gate{Type: sim.GateX, Target: p})
	}
	// residual diagonal phases of the triangularized unitary
	for p := 0; p < n; p++ {
		if phase := cmplx.Phase(u.At(p, p)); math.Abs(phase) > 1e-14 {
			c.Add(sim.Gate{Type: sim.GatePhase, Target: p, Phi: phase})
		}
	}
	// U = G_1^H ... G_m^H D, rightmost factor applied first
	for i := len(rots) - 1; i >= 0; i-- {
		r := rots[i]
		c.Add(sim.Gate{Type: sim.GateGivens, Target: r.pos, Theta: -r.theta, Phi: r.phi})
	}
	return c, nil
}

// applyGivensLeft multiplies rows (row, row+1) of u from the left by
// [[cos t, -e^{+i p} sin t], [e^{-i p} sin t, cos t]].
func applyGivensLeft(u *mat.CDense, row int, theta, phi float64) {
	_, cols := u.Dims()
	ct := complex(math.Cos(theta), 0)
	st := complex(math.Sin(theta), 0)
	ep := cmplx.Exp(complex(0, phi))
	for j := 0; j < cols; j++ {
		a := u.At(row, j)
		b := u.At(row+1, j)
		u.Set(row, j, ct*a-ep*st*b)
		u.Set(row+1, j, cmplx.Conj(ep)*st*a+ct*b)
	}
}

// completeToUnitary extends an orthonormal isometry with Gram-Schmidt
// orthogonalized standard basis vectors.
func completeToUnitary(q *mat.CDense) (*mat.CDense, error) {
	n, k := q.Dims()
	u := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			u.Set(i, j, q.At(i, j))
		}
	}
	col := k
	for cand := 0; cand < n && col < n; cand++ {
		v := make([]complex128, n)
		v[cand] = 1
		for prev := 0; prev < col; prev++ {
			var proj complex128
			for i := 0; i < n; i++ {
				proj += cmplx.Conj(u.At(i, prev)) * v[i]
			}
			for i := 0; i < n; i++ {
				v[i] -= proj * u.At(i, prev)
			}
		}
		norm := 0.0
		for i := 0; i < n; i++ {
			norm += real(v[i])*real(v[i]) + imag(v[i])*imag(v[i])
		}
		norm = math.Sqrt(norm)
		if norm < 1e-10 {
			continue
		}
		for i := 0; i < n; i++ {
			u.Set(i, col, v[i]/complex(norm, 0))
		}
		col++
	}
	if col != n {
		return nil, fmt.Errorf("failed to complete isometry to a unitary")
	}
	return u, nil
}
