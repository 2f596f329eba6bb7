package qest

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/phaseless-team/afqmc-engine/afqmc"
	"github.com/phaseless-team/afqmc-engine/core"
	"github.com/phaseless-team/afqmc-engine/sim"
)

// CircuitRunner executes a circuit and returns the marginal measurement
// probabilities of numQubits consecutive qubits beginning at start.
type CircuitRunner interface {
	Run(c sim.Circuit, start, numQubits int) ([]float64, error)
	Name() string
}

// Estimator reconstructs the mixed Green's function of a walker against a
// basis-determinant trial state from circuit measurement probabilities and
// contracts it with the Hamiltonian. The trial must occupy computational
// basis orbitals so that its overlap with a prepared determinant is a single
// amplitude.
type Estimator struct {
	runner CircuitRunner

	// OverlapFloor rejects walkers whose reference-determinant weight is
	// too small for stable amplitude ratios.
	OverlapFloor float64

	// FidelityTol bounds the deviation of measured occupation moments from
	// the ideal walker density matrix before the preparation is rejected.
	FidelityTol float64
}

type QestSetting struct {
	OverlapFloor float64 `toml:"overlap_floor"`
	FidelityTol  float64 `toml:"fidelity_tol"`
}

func NewQestSetting() QestSetting {
	return QestSetting{
		OverlapFloor: 1e-10,
		FidelityTol:  1e-6,
	}
}

func NewEstimator(r CircuitRunner) *Estimator {
	return &Estimator{
		runner:       r,
		OverlapFloor: 1e-10,
		FidelityTol:  1e-6,
	}
}

func (e *Estimator) Setup(_ *core.Conf) error {
	if e.OverlapFloor == 0 {
		e.OverlapFloor = 1e-10
	}
	if e.FidelityTol == 0 {
		e.FidelityTol = 1e-6
	}
	s, ok := core.GetComponentSetting("qest")
	if !ok {
		zap.L().Debug("qest setting is not found. using defaults")
		return nil
	}
	zap.L().Debug(fmt.Sprintf("qest setting:%v", s))
	switch setting := s.(type) {
	case QestSetting:
		if setting.OverlapFloor != 0 {
			e.OverlapFloor = setting.OverlapFloor
		}
		if setting.FidelityTol != 0 {
			e.FidelityTol = setting.FidelityTol
		}
	case map[string]interface{}:
		if v, ok := setting["overlap_floor"].(float64); ok {
			e.OverlapFloor = v
		}
		if v, ok := setting["fidelity_tol"].(float64); ok {
			e.FidelityTol = v
		}
	}
	return nil
}

func (e *Estimator) Name() string {
	return fmt.Sprintf("quantum-assisted/%s", e.runner.Name())
}

// Accepts reports whether name selects this estimator. An empty name means
// the classical contraction and is resolved before dispatch.
func (e *Estimator) Accepts(name string) bool {
	return name == "quantum-assisted" || name == e.runner.Name() || name == e.Name()
}

// Estimate computes the local energy of walker w. The walker orbitals are
// reorthonormalized before encoding; the returned energy is invariant under
// that transformation.
func (e *Estimator) Estimate(h *afqmc.Hamiltonian, trial *afqmc.Trial, w *afqmc.Walker) (complex128, error) {
	if len(trial.Occupied) == 0 {
		return 0, errors.New("trial state is not a basis determinant")
	}
	q, _, err := afqmc.Reortho(w.Mat)
	if err != nil {
		return 0, errors.Wrap(err, "reorthonormalize walker")
	}
	n, k := q.Dims()
	if len(trial.Occupied) != k {
		return 0, errors.Errorf("trial occupies %d orbitals, walker has %d particles", len(trial.Occupied), k)
	}

	circ, err := PrepareCircuit(q)
	if err != nil {
		return 0, errors.Wrap(err, "prepare walker circuit")
	}

	if err := e.verifyPreparation(circ, q); err != nil {
		return 0, err
	}

	occ := make(map[int]int, k)
	refIdx := 0
	for i, p := range trial.Occupied {
		occ[p] = i
		refIdx |= 1 << p
	}

	full, err := e.runner.Run(circ, 0, n)
	if err != nil {
		return 0, errors.Wrap(err, "reference amplitude readout")
	}
	refProb := full[refIdx]
	if refProb < e.OverlapFloor {
		return 0, errors.Errorf("reference determinant weight %.3e below floor %.3e", refProb, e.OverlapFloor)
	}

	theta := mat.NewCDense(n, k, nil)
	for _, p := range trial.Occupied {
		theta.Set(p, occ[p], 1)
	}
	for qb := 0; qb < n; qb++ {
		if _, ok := occ[qb]; ok {
			continue
		}
		for _, p := range trial.Occupied {
			prod, err := e.amplitudeProduct(circ, p, qb, refIdx)
			if err != nil {
				return 0, errors.Wrapf(err, "amplitude ratio for modes (%d,%d)", p, qb)
			}
			// a_x'/a_ref with the fermionic reordering sign for moving
			// the particle from mode p to mode q
			ratio := cmplx.Conj(prod) / complex(refProb, 0)
			theta.Set(qb, occ[p], exchangeSign(trial.Occupied, p, qb)*ratio)
		}
	}

	g := mat.NewCDense(n, n, nil)
	for _, p := range trial.Occupied {
		for qb := 0; qb < n; qb++ {
			g.Set(p, qb, theta.At(qb, occ[p]))
		}
	}
	return afqmc.LocalEnergy(h, g), nil
}

// amplitudeProduct measures a_ref * conj(a') where a' is the amplitude of
// the reference determinant with its particle moved from mode p to mode q.
// A CNOT maps the two determinants onto the same target-register value and
// a Hadamard on the control interferes them, so the probability difference
// of the two control outcomes reads off the real part. A leading S-dagger
// rotates the imaginary part into the same quadrature.
func (e *Estimator) amplitudeProduct(base sim.Circuit, p, qb, refIdx int) (complex128, error) {
	y0 := refIdx
	y1 := refIdx | 1<<qb

	re := base
	re.Gates = append(append([]sim.Gate{}, base.Gates...),
		sim.Gate{Type: sim.GateCX, Control: qb, Target: p},
		sim.Gate{Type: sim.GateH, Target: qb},
	)
	probs, err := e.runner.Run(re, 0, base.NumQubits)
	if err != nil {
		return 0, err
	}
	rePart := (probs[y0] - probs[y1]) / 2

	im := base
	im.Gates = append(append([]sim.Gate{}, base.Gates...),
		sim.Gate{Type: sim.GateSdg, Target: qb},
		sim.Gate{Type: sim.GateCX, Control: qb, Target: p},
		sim.Gate{Type: sim.GateH, Target: qb},
	)
	probs, err = e.runner.Run(im, 0, base.NumQubits)
	if err != nil {
		return 0, err
	}
	imPart := -(probs[y0] - probs[y1]) / 2

	return complex(rePart, imPart), nil
}

// exchangeSign is the parity of trial orbitals strictly between p and q,
// accounting for the anticommutation string picked up when the determinant
// index set is restored to ascending order.
func exchangeSign(occupied []int, p, qb int) complex128 {
	lo, hi := p, qb
	if lo > hi {
		lo, hi = hi, lo
	}
	count := 0
	for _, t := range occupied {
		if t > lo && t < hi && t != p {
			count++
		}
	}
	if count%2 == 1 {
		return -1
	}
	return 1
}

// verifyPreparation cross-checks measured one- and two-mode occupation
// moments against the walker density matrix. On ideal simulators this
// detects encoding bugs; on noisy backends it bounds preparation fidelity.
func (e *Estimator) verifyPreparation(circ sim.Circuit, q *mat.CDense) error {
	n, _ := q.Dims()
	rho := afqmc.Mul(q, q.H())

	for p := 0; p < n; p++ {
		probs, err := e.runner.Run(circ, p, 1)
		if err != nil {
			return errors.Wrapf(err, "occupation readout for mode %d", p)
		}
		want := real(rho.At(p, p))
		if d := math.Abs(probs[1] - want); d > e.FidelityTol {
			zap.L().Warn(fmt.Sprintf("occupation mismatch on mode %d: measured %.8f, walker %.8f", p, probs[1], want))
			return errors.Errorf("preparation fidelity check failed on mode %d (deviation %.3e)", p, d)
		}
	}
	for p := 0; p < n; p++ {
		for qb := p + 1; qb < n; qb++ {
			span := qb - p + 1
			probs, err := e.runner.Run(circ, p, span)
			if err != nil {
				return errors.Wrapf(err, "pair occupation readout for modes (%d,%d)", p, qb)
			}
			both := 0.0
			mask := 1 | 1<<(qb-p)
			for m, pr := range probs {
				if m&mask == mask {
					both += pr
				}
			}
			// Wick pairing of the free-fermion walker state
			want := real(rho.At(p, p))*real(rho.At(qb, qb)) -
				real(rho.At(p, qb)*cmplx.Conj(rho.At(p, qb)))
			if d := math.Abs(both - want); d > e.FidelityTol {
				return errors.Errorf("preparation fidelity check failed on modes (%d,%d) (deviation %.3e)", p, qb, d)
			}
		}
	}
	return nil
}
