package afqmc

import (
	"gonum.org/v1/gonum/mat"
)

// WeightCutoff is the threshold at or below which a walker is evicted from
// the population.
const WeightCutoff = 1e-14

// Walker is one member of the AFQMC ensemble: an unnormalized orbital
// matrix of shape (orbitals x particles) and its importance weight.
type Walker struct {
	Mat    *mat.CDense
	Weight float64
}

// Clone returns a deep copy of the walker.
func (w *Walker) Clone() *Walker {
	return &Walker{Mat: cloneC(w.Mat), Weight: w.Weight}
}

// Trial is the fixed reference determinant of a run. Its columns are
// orthonormal; every overlap and Green's function is taken against it.
type Trial struct {
	Mat *mat.CDense

	// Occupied lists the orbital indices with a unit entry when the trial
	// is a computational-basis determinant, in ascending order. Empty for
	// general trial matrices.
	Occupied []int
}

// NewTrialFromOccupied builds a basis-determinant trial on n orbitals with
// the given occupied orbitals.
func NewTrialFromOccupied(n int, occupied []int) *Trial {
	m := mat.NewCDense(n, len(occupied), nil)
	for col, p := range occupied {
		m.Set(p, col, 1)
	}
	return &Trial{Mat: m, Occupied: append([]int(nil), occupied...)}
}

// NumParticles returns the number of columns of the trial determinant.
func (t *Trial) NumParticles() int {
	_, c := t.Mat.Dims()
	return c
}

// Greens returns the trial's own one-body Green's function, G_pq evaluated
// with walker equal to trial.
func (t *Trial) Greens() *mat.CDense {
	g, err := GreensFunction(t, t.Mat)
	if err != nil {
		// the trial has orthonormal columns by construction
		panic(err)
	}
	return g
}

// NewPopulation creates size walkers, each equal to the trial determinant
// with unit weight.
func NewPopulation(t *Trial, size int) []*Walker {
	pop := make([]*Walker, size)
	for i := range pop {
		pop[i] = &Walker{Mat: cloneC(t.Mat), Weight: 1.0}
	}
	return pop
}

// Overlap computes det(T^H W), the overlap of the trial determinant with a
// walker matrix.
func Overlap(t *Trial, w *mat.CDense) complex128 {
	return Det(Mul(t.Mat.H(), w))
}

// GreensFunction computes the mixed one-body Green's function
// G_pq = <a+_p a_q> = [W (T^H W)^-1 T^H]^T_pq against the trial state.
func GreensFunction(t *Trial, w *mat.CDense) (*mat.CDense, error) {
	n, _ := w.Dims()
	inv, err := Inverse(Mul(t.Mat.H(), w))
	if err != nil {
		return nil, err
	}
	m := Mul(Mul(w, inv), t.Mat.H())
	g := mat.NewCDense(n, n, nil)
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			g.Set(p, q, m.At(q, p))
		}
	}
	return g, nil
}
