package afqmc

import (
	"fmt"
	"math/cmplx"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// eigenvalue cutoff below which a Cholesky field carries no weight
const fieldEigCutoff = 1e-8

// Hamiltonian bundles the immutable electronic-structure inputs of a run:
// the spin-orbital one-body matrix, the two-body tensor in chemists'
// notation (pq|rs), the core (nuclear repulsion) energy, and the Cholesky
// fields obtained from the spectral decomposition of the two-body tensor.
type Hamiltonian struct {
	NumOrbitals int // spin orbitals

	Ecore float64
	H1    *mat.Dense
	ERI   []float64 // flat, chemists' (pq|rs), length NumOrbitals^4

	// V0 is the one-body operator entering the propagator: H1 minus the
	// contraction term picked up when normal-ordering the two-body part.
	V0 *mat.Dense

	// Fields holds F_f = sqrt(-lambda_f) * L_f for every retained
	// eigenpair of the reshaped two-body tensor.
	Fields []*mat.CDense
}

// EriAt returns (pq|rs).
func (h *Hamiltonian) EriAt(p, q, r, s int) float64 {
	n := h.NumOrbitals
	return h.ERI[((p*n+q)*n+r)*n+s]
}

// NewHamiltonian builds the propagation bundle from raw spin-orbital
// integrals. The two-body tensor is reshaped to an N^2 x N^2 symmetric
// matrix and eigendecomposed; eigenpairs with |lambda| below a fixed cutoff
// are dropped.
func NewHamiltonian(h1 *mat.Dense, eri []float64, ecore float64) (*Hamiltonian, error) {
	n, c := h1.Dims()
	if n != c {
		return nil, fmt.Errorf("one-body matrix must be square, got %dx%d", n, c)
	}
	if len(eri) != n*n*n*n {
		return nil, fmt.Errorf("two-body tensor has %d entries, want %d", len(eri), n*n*n*n)
	}
	h := &Hamiltonian{
		NumOrbitals: n,
		Ecore:       ecore,
		H1:          mat.DenseCopyOf(h1),
		ERI:         append([]float64(nil), eri...),
	}

	// v0_pq = h_pq - 1/2 sum_r (pr|rq)
	v0 := mat.DenseCopyOf(h1)
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			s := 0.0
			for r := 0; r < n; r++ {
				s += h.EriAt(p, r, r, q)
			}
			v0.Set(p, q, v0.At(p, q)-0.5*s)
		}
	}
	h.V0 = v0

	// Spectral decomposition of M_{(pq),(rs)} = (pq|rs).
	m := n * n
	sym := mat.NewSymDense(m, nil)
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			for r := 0; r < n; r++ {
				for s := 0; s < n; s++ {
					sym.SetSym(p*n+q, r*n+s, h.EriAt(p, q, r, s))
				}
			}
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return nil, fmt.Errorf("eigendecomposition of the two-body tensor failed")
	}
	vals := make([]float64, m)
	eig.Values(vals)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	for f := 0; f < m; f++ {
		lambda := vals[f]
		if lambda > -fieldEigCutoff && lambda < fieldEigCutoff {
			continue
		}
		// F_f = sqrt(-lambda) L_f; for lambda > 0 the factor is imaginary.
		factor := cmplx.Sqrt(complex(-lambda, 0))
		field := mat.NewCDense(n, n, nil)
		for p := 0; p < n; p++ {
			for q := 0; q < n; q++ {
				field.Set(p, q, factor*complex(vecs.At(p*n+q, f), 0))
			}
		}
		h.Fields = append(h.Fields, field)
	}
	zap.L().Debug(fmt.Sprintf("built Hamiltonian with %d orbitals and %d auxiliary fields", n, len(h.Fields)))
	return h, nil
}

// MeanFieldShift evaluates <F_f> in the trial state for every field. The
// shifts recenter the sampled auxiliary fields and reduce the variance of
// the stochastic propagator.
func (h *Hamiltonian) MeanFieldShift(trial *Trial) []complex128 {
	g := trial.Greens()
	shifts := make([]complex128, len(h.Fields))
	for f, field := range h.Fields {
		shifts[f] = contract(field, g)
	}
	return shifts
}

// contract computes sum_pq a_pq * g_pq.
func contract(a, g *mat.CDense) complex128 {
	r, c := a.Dims()
	var s complex128
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			s += a.At(i, j) * g.At(i, j)
		}
	}
	return s
}

// MinimalH2 returns the spin-orbital integrals of the minimal-basis H2
// molecule at the equilibrium bond length, in the molecular-orbital basis.
// The spin-orbital ordering is alpha block first: [1a, 2a, 1b, 2b]. The
// restricted Hartree-Fock determinant occupies orbitals 0 and 2.
func MinimalH2() (h1 *mat.Dense, eri []float64, ecore float64) {
	const (
		h11  = -1.252477
		h22  = -0.475934
		v111 = 0.674493 // (11|11)
		v222 = 0.697397 // (22|22)
		v122 = 0.663472 // (11|22)
		v121 = 0.181287 // (12|12)
	)
	hs := [2][2]float64{{h11, 0}, {0, h22}}
	var vs [2][2][2][2]float64
	vs[0][0][0][0] = v111
	vs[1][1][1][1] = v222
	vs[0][0][1][1] = v122
	vs[1][1][0][0] = v122
	vs[0][1][0][1] = v121
	vs[1][0][0][1] = v121
	vs[0][1][1][0] = v121
	vs[1][0][1][0] = v121

	const n = 4
	spin := func(p int) int { return p / 2 }
	spatial := func(p int) int { return p % 2 }

	h1 = mat.NewDense(n, n, nil)
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			if spin(p) == spin(q) {
				h1.Set(p, q, hs[spatial(p)][spatial(q)])
			}
		}
	}
	eri = make([]float64, n*n*n*n)
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			for r := 0; r < n; r++ {
				for s := 0; s < n; s++ {
					if spin(p) == spin(q) && spin(r) == spin(s) {
						eri[((p*n+q)*n+r)*n+s] = vs[spatial(p)][spatial(q)][spatial(r)][spatial(s)]
					}
				}
			}
		}
	}
	ecore = 0.713776
	return h1, eri, ecore
}

// MinimalH2Exact is the full-CI ground-state energy of the MinimalH2 system,
// used as the reference value in convergence checks.
const MinimalH2Exact = -1.137284
