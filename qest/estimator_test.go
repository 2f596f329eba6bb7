//go:build unit
// +build unit

package qest

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/phaseless-team/afqmc-engine/afqmc"
	"github.com/phaseless-team/afqmc-engine/sim"
)

func h2Trial(t *testing.T) (*afqmc.Hamiltonian, *afqmc.Trial) {
	t.Helper()
	h1, eri, ecore := afqmc.MinimalH2()
	ham, err := afqmc.NewHamiltonian(h1, eri, ecore)
	assert.NoError(t, err)
	return ham, afqmc.NewTrialFromOccupied(ham.NumOrbitals, []int{0, 2})
}

func perturbedWalker(trial *afqmc.Trial) *afqmc.Walker {
	w := &afqmc.Walker{Mat: mat.NewCDense(4, 2, nil), Weight: 1}
	w.Mat.Copy(trial.Mat)
	w.Mat.Set(0, 1, complex(0, 0.10))
	w.Mat.Set(1, 0, complex(0.20, 0))
	w.Mat.Set(1, 1, complex(0.05, 0))
	w.Mat.Set(2, 0, complex(0, 0.10))
	w.Mat.Set(3, 0, complex(0.05, 0))
	w.Mat.Set(3, 1, complex(0, -0.30))
	return w
}

func TestPrepareCircuitTrialDeterminant(t *testing.T) {
	_, trial := h2Trial(t)
	q, _, err := afqmc.Reortho(trial.Mat)
	assert.NoError(t, err)

	circ, err := PrepareCircuit(q)
	assert.NoError(t, err)

	sv := sim.NewStatevector(8)
	probs, err := sv.Run(circ, 0, 4)
	assert.NoError(t, err)

	refIdx := 1<<0 | 1<<2
	assert.InDelta(t, 1.0, probs[refIdx], 1e-10,
		"trial preparation must concentrate on the reference determinant")
}

func TestPrepareCircuitAmplitudes(t *testing.T) {
	_, trial := h2Trial(t)
	w := perturbedWalker(trial)
	q, _, err := afqmc.Reortho(w.Mat)
	assert.NoError(t, err)

	circ, err := PrepareCircuit(q)
	assert.NoError(t, err)

	sv := sim.NewStatevector(8)
	probs, err := sv.Run(circ, 0, 4)
	assert.NoError(t, err)

	// every two-particle bitstring probability equals the squared minor of
	// the encoded isometry
	for _, tc := range []struct {
		rows []int
		idx  int
	}{
		{[]int{0, 1}, 0b0011},
		{[]int{0, 2}, 0b0101},
		{[]int{0, 3}, 0b1001},
		{[]int{1, 2}, 0b0110},
		{[]int{1, 3}, 0b1010},
		{[]int{2, 3}, 0b1100},
	} {
		minor := q.At(tc.rows[0], 0)*q.At(tc.rows[1], 1) -
			q.At(tc.rows[0], 1)*q.At(tc.rows[1], 0)
		assert.InDelta(t, cmplx.Abs(minor)*cmplx.Abs(minor), probs[tc.idx], 1e-10)
	}
	total := 0.0
	for _, p := range probs {
		total += p
	}
	assert.InDelta(t, 1.0, total, 1e-10)
}

func TestEstimateMatchesClassicalContraction(t *testing.T) {
	ham, trial := h2Trial(t)

	tests := []struct {
		name   string
		walker *afqmc.Walker
	}{
		{name: "trial state", walker: &afqmc.Walker{Mat: cloneTrial(trial), Weight: 1}},
		{name: "perturbed walker", walker: perturbedWalker(trial)},
	}

	est := NewEstimator(sim.NewStatevector(8))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := afqmc.GreensFunction(trial, tt.walker.Mat)
			assert.NoError(t, err)
			want := afqmc.LocalEnergy(ham, g)

			got, err := est.Estimate(ham, trial, tt.walker)
			assert.NoError(t, err)
			assert.InDelta(t, real(want), real(got), 1e-8)
			assert.InDelta(t, imag(want), imag(got), 1e-8)
		})
	}
}

func TestEstimateTrialEnergyIsHartreeFock(t *testing.T) {
	ham, trial := h2Trial(t)
	est := NewEstimator(sim.NewStatevector(8))

	got, err := est.Estimate(ham, trial, &afqmc.Walker{Mat: cloneTrial(trial), Weight: 1})
	assert.NoError(t, err)
	assert.InDelta(t, -1.116685, real(got), 1e-5)
	assert.True(t, math.Abs(imag(got)) < 1e-10)
}

func TestEstimateBackendFailure(t *testing.T) {
	ham, trial := h2Trial(t)
	est := NewEstimator(&sim.DummyRunner{FailEvery: 1})

	_, err := est.Estimate(ham, trial, perturbedWalker(trial))
	assert.Error(t, err)
}

func TestExchangeSign(t *testing.T) {
	tests := []struct {
		name     string
		occupied []int
		p, q     int
		want     complex128
	}{
		{name: "adjacent move", occupied: []int{0, 2}, p: 0, q: 1, want: 1},
		{name: "hop over occupied", occupied: []int{0, 2}, p: 0, q: 3, want: -1},
		{name: "downward hop", occupied: []int{0, 2}, p: 2, q: 1, want: 1},
		{name: "no crossing", occupied: []int{0, 2}, p: 2, q: 3, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exchangeSign(tt.occupied, tt.p, tt.q))
		})
	}
}

func cloneTrial(trial *afqmc.Trial) *mat.CDense {
	r, c := trial.Mat.Dims()
	m := mat.NewCDense(r, c, nil)
	m.Copy(trial.Mat)
	return m
}
