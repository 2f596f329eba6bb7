//go:build unit
// +build unit

package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phaseless-team/afqmc-engine/afqmc"
)

func TestCheckpointRoundTrip(t *testing.T) {
	trial := afqmc.NewTrialFromOccupied(4, []int{0, 2})
	pop := afqmc.NewPopulation(trial, 3)
	pop[0].Weight = 0.25
	pop[1].Mat.Set(1, 0, complex(0.125, -0.5))

	raw, err := snapshotPopulation(7, 0.07, -1.125, pop)
	require.Nil(t, err)

	cp, restored, err := restorePopulation(raw)
	require.Nil(t, err)
	assert.Equal(t, 7, cp.Step)
	assert.Equal(t, 0.07, cp.Tau)
	assert.Equal(t, -1.125, cp.EnergyShift)
	require.Len(t, restored, 3)
	for i, w := range restored {
		assert.Equal(t, pop[i].Weight, w.Weight)
		n, k := w.Mat.Dims()
		assert.Equal(t, 4, n)
		assert.Equal(t, 2, k)
		for p := 0; p < n; p++ {
			for c := 0; c < k; c++ {
				assert.Equal(t, pop[i].Mat.At(p, c), w.Mat.At(p, c))
			}
		}
	}
}

func TestSnapshotEmptyPopulation(t *testing.T) {
	_, err := snapshotPopulation(1, 0.01, 0, nil)
	assert.Error(t, err)
}

func TestRestoreRejectsGarbage(t *testing.T) {
	_, _, err := restorePopulation([]byte(`{"step":1}`))
	assert.Error(t, err)
	_, _, err = restorePopulation([]byte(`not json`))
	assert.Error(t, err)
}
