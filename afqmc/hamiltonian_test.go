//go:build unit
// +build unit

package afqmc

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func minimalHamiltonian(t *testing.T) *Hamiltonian {
	t.Helper()
	h1, eri, ecore := MinimalH2()
	h, err := NewHamiltonian(h1, eri, ecore)
	assert.NoError(t, err)
	return h
}

func TestEriSymmetry(t *testing.T) {
	h := minimalHamiltonian(t)
	n := h.NumOrbitals
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			for r := 0; r < n; r++ {
				for s := 0; s < n; s++ {
					assert.InDelta(t, h.EriAt(p, q, r, s), h.EriAt(r, s, p, q), 1e-14)
					assert.InDelta(t, h.EriAt(p, q, r, s), h.EriAt(q, p, s, r), 1e-14)
				}
			}
		}
	}
}

func TestFieldDecomposition(t *testing.T) {
	h := minimalHamiltonian(t)
	n := h.NumOrbitals
	assert.NotEmpty(t, h.Fields)
	assert.LessOrEqual(t, len(h.Fields), n*n)

	// sum_f (F_f)_pq (F_f)_rs must rebuild -(pq|rs)
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			for r := 0; r < n; r++ {
				for s := 0; s < n; s++ {
					var sum complex128
					for _, f := range h.Fields {
						sum += f.At(p, q) * f.At(r, s)
					}
					assert.InDelta(t, 0, cmplx.Abs(sum+complex(h.EriAt(p, q, r, s), 0)), 1e-10,
						"(%d%d|%d%d)", p, q, r, s)
				}
			}
		}
	}
}

func TestTrialEnergyIsHartreeFock(t *testing.T) {
	h := minimalHamiltonian(t)
	trial := NewTrialFromOccupied(h.NumOrbitals, []int{0, 2})

	e := LocalEnergy(h, trial.Greens())
	assert.InDelta(t, -1.116685, real(e), 1e-5)
	assert.InDelta(t, 0, imag(e), 1e-12)
	assert.Greater(t, real(e), MinimalH2Exact,
		"variational bound against the exact ground state")
}

func TestMeanFieldShift(t *testing.T) {
	h := minimalHamiltonian(t)
	trial := NewTrialFromOccupied(h.NumOrbitals, []int{0, 2})

	mf := h.MeanFieldShift(trial)
	assert.Len(t, mf, len(h.Fields))

	g := trial.Greens()
	for f, field := range h.Fields {
		assert.InDelta(t, 0, cmplx.Abs(mf[f]-contract(field, g)), 1e-12)
	}
}

func TestNewHamiltonianRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name string
		h1   *mat.Dense
		eri  []float64
	}{
		{name: "non-square one-body", h1: mat.NewDense(2, 3, nil), eri: make([]float64, 16)},
		{name: "eri length mismatch", h1: mat.NewDense(2, 2, nil), eri: make([]float64, 15)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHamiltonian(tt.h1, tt.eri, 0)
			assert.Error(t, err)
		})
	}
}

func TestLocalEnergyRealForRealGreens(t *testing.T) {
	h := minimalHamiltonian(t)
	trial := NewTrialFromOccupied(h.NumOrbitals, []int{0, 2})
	g := trial.Greens()
	e := LocalEnergy(h, g)
	assert.True(t, math.Abs(imag(e)) < 1e-12)
}
