package afqmc

import (
	"gonum.org/v1/gonum/mat"
)

// LocalEnergy computes the mixed local-energy estimator of a walker from
// the integral bundle and its Green's function:
//
//	E = E_core + sum_pq h_pq G_pq
//	    + 1/2 sum_pqrs (pq|rs) (G_pq G_rs - G_ps G_rq)
//
// The imaginary part vanishes up to numerical noise for a physical walker.
func LocalEnergy(h *Hamiltonian, g *mat.CDense) complex128 {
	n := h.NumOrbitals
	var e1 complex128
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			e1 += complex(h.H1.At(p, q), 0) * g.At(p, q)
		}
	}
	var e2 complex128
	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			gpq := g.At(p, q)
			for r := 0; r < n; r++ {
				grq := g.At(r, q)
				for s := 0; s < n; s++ {
					v := h.EriAt(p, q, r, s)
					if v == 0 {
						continue
					}
					e2 += complex(v, 0) * (gpq*g.At(r, s) - g.At(p, s)*grq)
				}
			}
		}
	}
	return e1 + 0.5*e2 + complex(h.Ecore, 0)
}
