package afqmc

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Propagator advances walkers by one imaginary-time step. It owns the
// precomputed half-step one-body exponential and the trial mean-field
// shifts; it holds no per-walker state and is safe for concurrent use.
type Propagator struct {
	ham     *Hamiltonian
	dt      float64
	mfShift []complex128
	halfV0  *mat.CDense // exp(-dt/2 * V0)
}

// NewPropagator precomputes the symmetric-Trotter half-step factor
// exp(-dt/2 V0) and the trial mean-field shifts.
func NewPropagator(h *Hamiltonian, trial *Trial, dt float64) *Propagator {
	n := h.NumOrbitals
	scaled := mat.NewDense(n, n, nil)
	scaled.Scale(-dt/2, h.V0)
	var expV0 mat.Dense
	expV0.Exp(scaled)
	return &Propagator{
		ham:     h,
		dt:      dt,
		mfShift: h.MeanFieldShift(trial),
		halfV0:  realToC(&expV0),
	}
}

// Dt returns the imaginary-time step size.
func (p *Propagator) Dt() float64 { return p.dt }

// Step applies one symmetric-Trotter propagation step to the walker matrix:
// the sampled auxiliary fields are recentered by the force bias, the
// two-body factor exp(sqrt(dt) sum_f x_f F_f) is sandwiched between two
// half-step one-body exponentials, and the result is left-multiplied onto
// the walker. The returned matrix is NOT reorthonormalized; the caller
// takes the post-step overlap first and then restores orthonormal columns.
func (p *Propagator) Step(fields []float64, w *mat.CDense, g *mat.CDense) (*mat.CDense, error) {
	n, _ := w.Dims()
	sqrtDt := complex(math.Sqrt(p.dt), 0)

	a := zeros(n, n)
	for f, field := range p.ham.Fields {
		// force bias: xbar_f = -sqrt(dt) (<F_f>_G - mf_f)
		xbar := -sqrtDt * (contract(field, g) - p.mfShift[f])
		shifted := complex(fields[f], 0) - xbar
		addScaled(a, sqrtDt*shifted, field)
	}
	expA := Expm(a)
	b := Mul(Mul(p.halfV0, expA), p.halfV0)
	return Mul(b, w), nil
}

// NumFields returns the number of auxiliary fields a step consumes.
func (p *Propagator) NumFields() int { return len(p.ham.Fields) }
