package afqmc

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"
)

// ErrSingularMatrix is returned when a walker loses column rank and the
// overlap or Green's function can no longer be formed.
var ErrSingularMatrix = fmt.Errorf("singular matrix")

func zeros(r, c int) *mat.CDense {
	return mat.NewCDense(r, c, nil)
}

func cloneC(a *mat.CDense) *mat.CDense {
	r, c := a.Dims()
	out := mat.NewCDense(r, c, nil)
	out.Copy(a)
	return out
}

// addScaled sets dst += f*a. Shapes must match.
func addScaled(dst *mat.CDense, f complex128, a *mat.CDense) {
	r, c := dst.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, j, dst.At(i, j)+f*a.At(i, j))
		}
	}
}

// Mul returns the matrix product a*b. CDense carries no arithmetic of its
// own, so the product runs as a cblas128 Gemm over the raw data.
func Mul(a, b mat.CMatrix) *mat.CDense {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		panic("afqmc: dimension mismatch in Mul")
	}
	out := mat.NewCDense(ar, bc, nil)
	cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1, rawC(a), rawC(b), 0, out.RawCMatrix())
	return out
}

// rawC exposes the blas view of a, materializing views such as conjugate
// transposes first.
func rawC(a mat.CMatrix) cblas128.General {
	if d, ok := a.(*mat.CDense); ok {
		return d.RawCMatrix()
	}
	r, c := a.Dims()
	d := mat.NewCDense(r, c, nil)
	d.Copy(a)
	return d.RawCMatrix()
}

// realToC lifts a real dense matrix into a complex one.
func realToC(a *mat.Dense) *mat.CDense {
	r, c := a.Dims()
	out := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, complex(a.At(i, j), 0))
		}
	}
	return out
}

// oneNorm is the maximum absolute column sum.
func oneNorm(a *mat.CDense) float64 {
	r, c := a.Dims()
	max := 0.0
	for j := 0; j < c; j++ {
		s := 0.0
		for i := 0; i < r; i++ {
			s += cmplx.Abs(a.At(i, j))
		}
		if s > max {
			max = s
		}
	}
	return max
}

// Expm computes the matrix exponential of a square complex matrix by
// scaling-and-squaring with a truncated Taylor series. The scaling brings
// the 1-norm under 1/2, for which 18 terms reach machine precision.
func Expm(a *mat.CDense) *mat.CDense {
	n, c := a.Dims()
	if n != c {
		panic("afqmc: Expm of non-square matrix")
	}
	s := 0
	norm := oneNorm(a)
	for norm > 0.5 {
		norm /= 2
		s++
	}
	scaled := zeros(n, n)
	f := complex(1/math.Pow(2, float64(s)), 0)
	addScaled(scaled, f, a)

	result := eyeC(n)
	term := eyeC(n)
	for k := 1; k <= 18; k++ {
		next := Mul(term, scaled)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				next.Set(i, j, next.At(i, j)/complex(float64(k), 0))
			}
		}
		term = next
		addScaled(result, 1, term)
	}
	for i := 0; i < s; i++ {
		result = Mul(result, result)
	}
	return result
}

func eyeC(n int) *mat.CDense {
	out := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		out.Set(i, i, 1)
	}
	return out
}

// Det computes the determinant of a square complex matrix by LU
// factorization with partial pivoting.
func Det(a *mat.CDense) complex128 {
	n, c := a.Dims()
	if n != c {
		panic("afqmc: Det of non-square matrix")
	}
	lu := cloneC(a)
	det := complex(1, 0)
	for col := 0; col < n; col++ {
		pivot := col
		best := cmplx.Abs(lu.At(col, col))
		for row := col + 1; row < n; row++ {
			if v := cmplx.Abs(lu.At(row, col)); v > best {
				best = v
				pivot = row
			}
		}
		if best == 0 {
			return 0
		}
		if pivot != col {
			swapRows(lu, pivot, col)
			det = -det
		}
		det *= lu.At(col, col)
		for row := col + 1; row < n; row++ {
			f := lu.At(row, col) / lu.At(col, col)
			for k := col; k < n; k++ {
				lu.Set(row, k, lu.At(row, k)-f*lu.At(col, k))
			}
		}
	}
	return det
}

func swapRows(a *mat.CDense, i, j int) {
	_, c := a.Dims()
	for k := 0; k < c; k++ {
		vi, vj := a.At(i, k), a.At(j, k)
		a.Set(i, k, vj)
		a.Set(j, k, vi)
	}
}

// Inverse computes the inverse of a square complex matrix by Gauss-Jordan
// elimination with partial pivoting. Returns ErrSingularMatrix when the
// matrix has no inverse.
func Inverse(a *mat.CDense) (*mat.CDense, error) {
	n, c := a.Dims()
	if n != c {
		panic("afqmc: Inverse of non-square matrix")
	}
	work := cloneC(a)
	inv := eyeC(n)
	for col := 0; col < n; col++ {
		pivot := col
		best := cmplx.Abs(work.At(col, col))
		for row := col + 1; row < n; row++ {
			if v := cmplx.Abs(work.At(row, col)); v > best {
				best = v
				pivot = row
			}
		}
		if best < 1e-300 {
			return nil, ErrSingularMatrix
		}
		if pivot != col {
			swapRows(work, pivot, col)
			swapRows(inv, pivot, col)
		}
		d := work.At(col, col)
		for k := 0; k < n; k++ {
			work.Set(col, k, work.At(col, k)/d)
			inv.Set(col, k, inv.At(col, k)/d)
		}
		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			f := work.At(row, col)
			if f == 0 {
				continue
			}
			for k := 0; k < n; k++ {
				work.Set(row, k, work.At(row, k)-f*work.At(col, k))
				inv.Set(row, k, inv.At(row, k)-f*inv.At(col, k))
			}
		}
	}
	return inv, nil
}

// Reortho restores orthonormal columns by modified Gram-Schmidt and returns
// the orthonormalized matrix together with the determinant of the upper
// triangular factor. The caller typically discards the factor; the phaseless
// weight update works on overlap ratios taken before reorthonormalization.
func Reortho(a *mat.CDense) (*mat.CDense, complex128, error) {
	r, c := a.Dims()
	q := cloneC(a)
	detR := complex(1, 0)
	for j := 0; j < c; j++ {
		for prev := 0; prev < j; prev++ {
			var proj complex128
			for i := 0; i < r; i++ {
				proj += cmplx.Conj(q.At(i, prev)) * q.At(i, j)
			}
			for i := 0; i < r; i++ {
				q.Set(i, j, q.At(i, j)-proj*q.At(i, prev))
			}
		}
		norm := 0.0
		for i := 0; i < r; i++ {
			norm += real(q.At(i, j))*real(q.At(i, j)) + imag(q.At(i, j))*imag(q.At(i, j))
		}
		norm = math.Sqrt(norm)
		if norm < 1e-300 {
			return nil, 0, ErrSingularMatrix
		}
		detR *= complex(norm, 0)
		for i := 0; i < r; i++ {
			q.Set(i, j, q.At(i, j)/complex(norm, 0))
		}
	}
	return q, detR, nil
}
