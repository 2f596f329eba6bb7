package driver

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"gonum.org/v1/gonum/mat"

	"github.com/phaseless-team/afqmc-engine/afqmc"
	"github.com/phaseless-team/afqmc-engine/common"
)

var jsonIter = jsoniter.ConfigCompatibleWithStandardLibrary

// MolecularIntegrals is the on-disk description of a molecular system in a
// spatial-orbital basis: the one-body matrix and the chemists' (pq|rs)
// two-body tensor, both flattened row-major.
type MolecularIntegrals struct {
	NumOrbitals  int       `json:"num_orbitals"` // spatial orbitals
	NumElectrons int       `json:"num_electrons"`
	Ecore        float64   `json:"ecore"`
	H1           []float64 `json:"h1"`
	Eri          []float64 `json:"eri"`
}

func (m *MolecularIntegrals) validate() error {
	n := m.NumOrbitals
	if n <= 0 {
		return fmt.Errorf("num_orbitals(%d) must be greater than 0", n)
	}
	if m.NumElectrons <= 0 || m.NumElectrons > 2*n {
		return fmt.Errorf("num_electrons(%d) must be in [1, %d]", m.NumElectrons, 2*n)
	}
	if len(m.H1) != n*n {
		return fmt.Errorf("h1 has %d entries, want %d", len(m.H1), n*n)
	}
	if len(m.Eri) != n*n*n*n {
		return fmt.Errorf("eri has %d entries, want %d", len(m.Eri), n*n*n*n)
	}
	return nil
}

// LoadMolecularIntegrals reads a spatial-orbital integral file.
func LoadMolecularIntegrals(path string) (*MolecularIntegrals, error) {
	raw, err := common.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read integrals file %s/reason:%s", path, err)
	}
	var m MolecularIntegrals
	if err := jsonIter.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal integrals file %s/reason:%s", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// SpinOrbital expands the spatial integrals to the spin-orbital basis, alpha
// block first, and returns them in the form the Hamiltonian constructor
// takes. Same-spin blocks carry the spatial values; cross-spin one-body
// elements vanish.
func (m *MolecularIntegrals) SpinOrbital() (h1 *mat.Dense, eri []float64, ecore float64) {
	ns := m.NumOrbitals
	n := 2 * ns
	spin := func(p int) int { return p / ns }
	spatial := func(p int) int { return p % ns }

	h1 = mat.NewDense(n, n, nil)
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			if spin(p) == spin(q) {
				h1.Set(p, q, m.H1[spatial(p)*ns+spatial(q)])
			}
		}
	}
	eri = make([]float64, n*n*n*n)
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			if spin(p) != spin(q) {
				continue
			}
			for r := 0; r < n; r++ {
				for s := 0; s < n; s++ {
					if spin(r) != spin(s) {
						continue
					}
					v := m.Eri[((spatial(p)*ns+spatial(q))*ns+spatial(r))*ns+spatial(s)]
					eri[((p*n+q)*n+r)*n+s] = v
				}
			}
		}
	}
	return h1, eri, m.Ecore
}

// GroundTrial returns the restricted reference determinant: the lowest
// spatial orbitals doubly occupied, an extra alpha electron when the count
// is odd.
func (m *MolecularIntegrals) GroundTrial() *afqmc.Trial {
	ns := m.NumOrbitals
	na := m.NumElectrons/2 + m.NumElectrons%2
	nb := m.NumElectrons / 2
	occupied := make([]int, 0, m.NumElectrons)
	for i := 0; i < na; i++ {
		occupied = append(occupied, i)
	}
	for i := 0; i < nb; i++ {
		occupied = append(occupied, ns+i)
	}
	return afqmc.NewTrialFromOccupied(2*ns, occupied)
}

// builtinH2 is the integral set used when no integrals file is configured.
func builtinH2() *MolecularIntegrals {
	h1, eri, ecore := afqmc.MinimalH2()
	// fold the spin-orbital integrals back to their spatial blocks
	const ns = 2
	spatialH1 := make([]float64, ns*ns)
	for p := 0; p < ns; p++ {
		for q := 0; q < ns; q++ {
			spatialH1[p*ns+q] = h1.At(p, q)
		}
	}
	n := 2 * ns
	spatialEri := make([]float64, ns*ns*ns*ns)
	for p := 0; p < ns; p++ {
		for q := 0; q < ns; q++ {
			for r := 0; r < ns; r++ {
				for s := 0; s < ns; s++ {
					spatialEri[((p*ns+q)*ns+r)*ns+s] = eri[((p*n+q)*n+r)*n+s]
				}
			}
		}
	}
	return &MolecularIntegrals{
		NumOrbitals:  ns,
		NumElectrons: 2,
		Ecore:        ecore,
		H1:           spatialH1,
		Eri:          spatialEri,
	}
}
