//go:build unit
// +build unit

package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phaseless-team/afqmc-engine/afqmc"
	"github.com/phaseless-team/afqmc-engine/common"
)

func TestLoadMolecularIntegrals(t *testing.T) {
	path, err := common.GetAssetAbsPath("minimal_h2.json")
	require.Nil(t, err)
	m, err := LoadMolecularIntegrals(path)
	require.Nil(t, err)
	assert.Equal(t, 2, m.NumOrbitals)
	assert.Equal(t, 2, m.NumElectrons)
	assert.InDelta(t, 0.713776, m.Ecore, 1e-12)
	assert.Len(t, m.H1, 4)
	assert.Len(t, m.Eri, 16)
}

func TestLoadMolecularIntegralsNotFound(t *testing.T) {
	_, err := LoadMolecularIntegrals("no_such_file.json")
	assert.Error(t, err)
}

func TestMolecularIntegralsValidate(t *testing.T) {
	tests := []struct {
		name string
		m    MolecularIntegrals
	}{
		{
			name: "no orbitals",
			m:    MolecularIntegrals{NumOrbitals: 0, NumElectrons: 2},
		},
		{
			name: "too many electrons",
			m:    MolecularIntegrals{NumOrbitals: 2, NumElectrons: 5},
		},
		{
			name: "one-body size mismatch",
			m:    MolecularIntegrals{NumOrbitals: 2, NumElectrons: 2, H1: make([]float64, 3), Eri: make([]float64, 16)},
		},
		{
			name: "two-body size mismatch",
			m:    MolecularIntegrals{NumOrbitals: 2, NumElectrons: 2, H1: make([]float64, 4), Eri: make([]float64, 15)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.m.validate())
		})
	}
}

func TestSpinOrbitalMatchesBuiltin(t *testing.T) {
	wantH1, wantEri, wantEcore := afqmc.MinimalH2()
	h1, eri, ecore := builtinH2().SpinOrbital()
	assert.InDelta(t, wantEcore, ecore, 1e-15)
	assert.True(t, len(eri) == len(wantEri))
	for i := range eri {
		assert.InDelta(t, wantEri[i], eri[i], 1e-15)
	}
	r, c := h1.Dims()
	assert.Equal(t, 4, r)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			assert.InDelta(t, wantH1.At(i, j), h1.At(i, j), 1e-15)
		}
	}
}

func TestGroundTrial(t *testing.T) {
	trial := builtinH2().GroundTrial()
	assert.Equal(t, []int{0, 2}, trial.Occupied)
	assert.Equal(t, 2, trial.NumParticles())

	odd := &MolecularIntegrals{NumOrbitals: 3, NumElectrons: 3}
	assert.Equal(t, []int{0, 1, 3}, odd.GroundTrial().Occupied)
}
