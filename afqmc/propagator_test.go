//go:build unit
// +build unit

package afqmc

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPropagatorStepDeterministic(t *testing.T) {
	h := minimalHamiltonian(t)
	trial := NewTrialFromOccupied(h.NumOrbitals, []int{0, 2})
	prop := NewPropagator(h, trial, 0.01)

	rng := WalkerRNG(42, 0, 0)
	fields := SampleFields(rng, prop.NumFields())

	g := trial.Greens()
	a, err := prop.Step(fields, trial.Mat, g)
	assert.NoError(t, err)
	b, err := prop.Step(fields, trial.Mat, g)
	assert.NoError(t, err)
	assertCDenseInDelta(t, a, b, 0)
}

func TestPropagatorStepKeepsOverlap(t *testing.T) {
	h := minimalHamiltonian(t)
	trial := NewTrialFromOccupied(h.NumOrbitals, []int{0, 2})
	prop := NewPropagator(h, trial, 0.005)

	w := cloneC(trial.Mat)
	g := trial.Greens()
	for step := 0; step < 20; step++ {
		fields := SampleFields(WalkerRNG(7, step, 0), prop.NumFields())
		next, err := prop.Step(fields, w, g)
		assert.NoError(t, err)

		ov := Overlap(trial, next)
		assert.Greater(t, cmplx.Abs(ov), 0.0,
			"short-time propagation must not annihilate the trial overlap")

		q, _, err := Reortho(next)
		assert.NoError(t, err)
		w = q
		g, err = GreensFunction(trial, w)
		assert.NoError(t, err)
	}
}

func TestPropagatorZeroTimestep(t *testing.T) {
	h := minimalHamiltonian(t)
	trial := NewTrialFromOccupied(h.NumOrbitals, []int{0, 2})
	prop := NewPropagator(h, trial, 0)

	fields := make([]float64, prop.NumFields())
	out, err := prop.Step(fields, trial.Mat, trial.Greens())
	assert.NoError(t, err)
	assertCDenseInDelta(t, trial.Mat, out, 1e-12)
}

func TestReweight(t *testing.T) {
	tests := []struct {
		name       string
		oldWeight  float64
		eloc       complex128
		eshift     float64
		newOverlap complex128
		oldOverlap complex128
		dt         float64
		want       float64
	}{
		{
			name:      "stationary walker keeps weight",
			oldWeight: 0.8, eloc: complex(-1.1, 0), eshift: -1.1,
			newOverlap: 1, oldOverlap: 1, dt: 0.01,
			want: 0.8,
		},
		{
			name:      "energy below shift grows weight",
			oldWeight: 1, eloc: complex(-1.2, 0), eshift: -1.1,
			newOverlap: 1, oldOverlap: 1, dt: 0.01,
			want: math.Exp(0.001),
		},
		{
			name:      "imaginary part of the local energy is discarded",
			oldWeight: 1, eloc: complex(-1.1, 5.0), eshift: -1.1,
			newOverlap: 1, oldOverlap: 1, dt: 0.01,
			want: 1,
		},
		{
			name:      "quarter-turn overlap rotation zeroes the walker",
			oldWeight: 1, eloc: complex(-1.1, 0), eshift: -1.1,
			newOverlap: complex(0, 1), oldOverlap: 1, dt: 0.01,
			want: 0,
		},
		{
			name:      "sign flip zeroes the walker",
			oldWeight: 1, eloc: complex(-1.1, 0), eshift: -1.1,
			newOverlap: -1, oldOverlap: 1, dt: 0.01,
			want: 0,
		},
		{
			name:      "small rotation damps by its cosine",
			oldWeight: 1, eloc: complex(-1.1, 0), eshift: -1.1,
			newOverlap: cmplx.Exp(complex(0, 0.3)), oldOverlap: 1, dt: 0.01,
			want: math.Cos(0.3),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reweight(tt.oldWeight, tt.eloc, tt.eshift, tt.newOverlap, tt.oldOverlap, tt.dt)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, 0.0)
		})
	}
}

func TestWalkerRNG(t *testing.T) {
	t.Run("reproducible", func(t *testing.T) {
		a := SampleFields(WalkerRNG(1234, 5, 17), 8)
		b := SampleFields(WalkerRNG(1234, 5, 17), 8)
		assert.Equal(t, a, b)
	})

	t.Run("decorrelated across walkers and steps", func(t *testing.T) {
		base := SampleFields(WalkerRNG(1234, 5, 17), 8)
		assert.NotEqual(t, base, SampleFields(WalkerRNG(1234, 5, 18), 8))
		assert.NotEqual(t, base, SampleFields(WalkerRNG(1234, 6, 17), 8))
		assert.NotEqual(t, base, SampleFields(WalkerRNG(1235, 5, 17), 8))
	})
}

func TestNewPopulation(t *testing.T) {
	trial := NewTrialFromOccupied(4, []int{0, 2})
	pop := NewPopulation(trial, 5)
	assert.Len(t, pop, 5)
	for _, w := range pop {
		assert.Equal(t, 1.0, w.Weight)
		assertCDenseInDelta(t, trial.Mat, w.Mat, 0)
	}

	// clones are independent
	pop[0].Mat.Set(0, 0, 5)
	assert.NotEqual(t, pop[0].Mat.At(0, 0), pop[1].Mat.At(0, 0))
}
