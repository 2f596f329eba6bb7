package afqmc

import (
	"math"
	"math/cmplx"
)

// Reweight applies the phaseless importance-sampling correction:
//
//	w' = w * exp(-dt (Re(E_loc) - E_shift)) * max(0, cos(d_theta))
//
// where d_theta is the argument of the ratio of the new to the old overlap.
// Walkers that rotate past a quarter turn in the complex overlap plane are
// forced to zero weight; this is the population control for the phase
// problem.
func Reweight(oldWeight float64, eloc complex128, eshift float64, newOverlap, oldOverlap complex128, dt float64) float64 {
	dTheta := cmplx.Phase(newOverlap / oldOverlap)
	cosFactor := math.Max(0, math.Cos(dTheta))
	return oldWeight * math.Exp(-dt*(real(eloc)-eshift)) * cosFactor
}
