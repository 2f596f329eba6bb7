package driver

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/phaseless-team/afqmc-engine/afqmc"
	"github.com/phaseless-team/afqmc-engine/core"
)

// walkerSnapshot flattens one walker row-major into separate real and
// imaginary parts.
type walkerSnapshot struct {
	Weight float64   `json:"weight"`
	Re     []float64 `json:"re"`
	Im     []float64 `json:"im"`
}

// checkpointData is the JSON layout of core.CheckpointRaw. Tau is the
// simulated time of the snapshot, rounded to 4 decimals.
type checkpointData struct {
	Step        int              `json:"step"`
	Tau         float64          `json:"tau"`
	EnergyShift float64          `json:"energy_shift"`
	NumOrbitals int              `json:"num_orbitals"`
	NumParts    int              `json:"num_particles"`
	Walkers     []walkerSnapshot `json:"walkers"`
}

func snapshotPopulation(step int, tau, eshift float64, pop []*afqmc.Walker) (core.CheckpointRaw, error) {
	if len(pop) == 0 {
		return nil, fmt.Errorf("nothing to snapshot")
	}
	n, k := pop[0].Mat.Dims()
	cp := checkpointData{
		Step:        step,
		Tau:         tau,
		EnergyShift: eshift,
		NumOrbitals: n,
		NumParts:    k,
		Walkers:     make([]walkerSnapshot, len(pop)),
	}
	for i, w := range pop {
		ws := walkerSnapshot{
			Weight: w.Weight,
			Re:     make([]float64, n*k),
			Im:     make([]float64, n*k),
		}
		for p := 0; p < n; p++ {
			for c := 0; c < k; c++ {
				v := w.Mat.At(p, c)
				ws.Re[p*k+c] = real(v)
				ws.Im[p*k+c] = imag(v)
			}
		}
		cp.Walkers[i] = ws
	}
	raw, err := jsonIter.Marshal(&cp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint/reason:%s", err)
	}
	return core.CheckpointRaw(raw), nil
}

func restorePopulation(raw core.CheckpointRaw) (*checkpointData, []*afqmc.Walker, error) {
	var cp checkpointData
	if err := jsonIter.Unmarshal([]byte(raw), &cp); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal checkpoint/reason:%s", err)
	}
	n, k := cp.NumOrbitals, cp.NumParts
	if n <= 0 || k <= 0 || len(cp.Walkers) == 0 {
		return nil, nil, fmt.Errorf("checkpoint is empty")
	}
	pop := make([]*afqmc.Walker, len(cp.Walkers))
	for i, ws := range cp.Walkers {
		if len(ws.Re) != n*k || len(ws.Im) != n*k {
			return nil, nil, fmt.Errorf("walker %d has %d/%d entries, want %d", i, len(ws.Re), len(ws.Im), n*k)
		}
		m := mat.NewCDense(n, k, nil)
		for p := 0; p < n; p++ {
			for c := 0; c < k; c++ {
				m.Set(p, c, complex(ws.Re[p*k+c], ws.Im[p*k+c]))
			}
		}
		pop[i] = &afqmc.Walker{Mat: m, Weight: ws.Weight}
	}
	return &cp, pop, nil
}
