//go:build unit
// +build unit

package afqmc

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func assertCDenseInDelta(t *testing.T, want, got *mat.CDense, tol float64) {
	t.Helper()
	r, c := want.Dims()
	gr, gc := got.Dims()
	assert.Equal(t, r, gr)
	assert.Equal(t, c, gc)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			assert.InDelta(t, 0, cmplx.Abs(want.At(i, j)-got.At(i, j)), tol,
				"entry (%d,%d)", i, j)
		}
	}
}

func TestMul(t *testing.T) {
	t.Run("plain product", func(t *testing.T) {
		a := mat.NewCDense(2, 3, []complex128{
			complex(1, 0), complex(0, 1), complex(2, 0),
			complex(0, -1), complex(1, 1), complex(0, 0),
		})
		b := mat.NewCDense(3, 2, []complex128{
			complex(1, 0), complex(0, 0),
			complex(0, 0), complex(0, 1),
			complex(1, 1), complex(0, 0),
		})
		got := Mul(a, b)
		want := mat.NewCDense(2, 2, nil)
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				var s complex128
				for k := 0; k < 3; k++ {
					s += a.At(i, k) * b.At(k, j)
				}
				want.Set(i, j, s)
			}
		}
		assertCDenseInDelta(t, want, got, 1e-14)
	})

	t.Run("conjugate transpose operand", func(t *testing.T) {
		a := mat.NewCDense(3, 2, []complex128{
			complex(1, 2), complex(0, 0),
			complex(0, -1), complex(1, 0),
			complex(2, 0), complex(0, 1),
		})
		got := Mul(a.H(), a)
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				var s complex128
				for k := 0; k < 3; k++ {
					s += cmplx.Conj(a.At(k, i)) * a.At(k, j)
				}
				assert.InDelta(t, 0, cmplx.Abs(got.At(i, j)-s), 1e-14)
			}
		}
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		assert.Panics(t, func() { Mul(zeros(2, 3), zeros(2, 3)) })
	})
}

func TestExpm(t *testing.T) {
	t.Run("zero matrix", func(t *testing.T) {
		assertCDenseInDelta(t, eyeC(3), Expm(zeros(3, 3)), 1e-14)
	})

	t.Run("diagonal", func(t *testing.T) {
		a := zeros(2, 2)
		a.Set(0, 0, complex(0.3, 0.7))
		a.Set(1, 1, complex(-1.1, 0.2))
		got := Expm(a)
		assert.InDelta(t, 0, cmplx.Abs(got.At(0, 0)-cmplx.Exp(complex(0.3, 0.7))), 1e-12)
		assert.InDelta(t, 0, cmplx.Abs(got.At(1, 1)-cmplx.Exp(complex(-1.1, 0.2))), 1e-12)
		assert.InDelta(t, 0, cmplx.Abs(got.At(0, 1)), 1e-14)
	})

	t.Run("inverse relation", func(t *testing.T) {
		a := mat.NewCDense(2, 2, []complex128{
			complex(0.4, 0.3), complex(-0.8, 1.2),
			complex(0.9, -0.5), complex(-0.2, 0.1),
		})
		neg := zeros(2, 2)
		addScaled(neg, -1, a)
		assertCDenseInDelta(t, eyeC(2), Mul(Expm(a), Expm(neg)), 1e-10)
	})
}

func TestDet(t *testing.T) {
	tests := []struct {
		name string
		m    *mat.CDense
		want complex128
	}{
		{
			name: "identity",
			m:    eyeC(3),
			want: 1,
		},
		{
			name: "complex 2x2",
			m: mat.NewCDense(2, 2, []complex128{
				complex(1, 1), complex(2, 0),
				complex(0, 3), complex(1, -1),
			}),
			want: complex(1, 1)*complex(1, -1) - complex(2, 0)*complex(0, 3),
		},
		{
			name: "needs pivoting",
			m: mat.NewCDense(2, 2, []complex128{
				0, complex(2, 0),
				complex(3, 0), complex(1, 0),
			}),
			want: complex(-6, 0),
		},
		{
			name: "singular",
			m: mat.NewCDense(2, 2, []complex128{
				complex(1, 0), complex(2, 0),
				complex(2, 0), complex(4, 0),
			}),
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, 0, cmplx.Abs(Det(tt.m)-tt.want), 1e-12)
		})
	}
}

func TestInverse(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		a := mat.NewCDense(3, 3, []complex128{
			complex(2, 1), complex(0, -1), complex(1, 0),
			complex(0, 0), complex(1, 2), complex(-1, 1),
			complex(1, -1), complex(0, 0), complex(3, 0),
		})
		inv, err := Inverse(a)
		assert.NoError(t, err)
		assertCDenseInDelta(t, eyeC(3), Mul(a, inv), 1e-12)
	})

	t.Run("singular", func(t *testing.T) {
		a := mat.NewCDense(2, 2, []complex128{
			complex(1, 0), complex(2, 0),
			complex(2, 0), complex(4, 0),
		})
		_, err := Inverse(a)
		assert.ErrorIs(t, err, ErrSingularMatrix)
	})
}

func TestReortho(t *testing.T) {
	a := mat.NewCDense(4, 2, []complex128{
		complex(1, 0), complex(0, 0.1),
		complex(0.2, 0), complex(0.05, 0),
		complex(0, 0.1), complex(1, 0),
		complex(0.05, 0), complex(0, -0.3),
	})

	q, detR, err := Reortho(a)
	assert.NoError(t, err)

	// columns orthonormal
	ov := Mul(q.H(), q)
	r, c := ov.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assertCDenseInDelta(t, eyeC(2), ov, 1e-12)

	// any trial overlap factors through detR
	trial := NewTrialFromOccupied(4, []int{0, 2})
	assert.InDelta(t, 0, cmplx.Abs(Overlap(trial, a)-Overlap(trial, q)*detR), 1e-12)

	// reorthonormalization is idempotent up to a unit-determinant factor
	q2, detR2, err := Reortho(q)
	assert.NoError(t, err)
	assert.InDelta(t, 1.0, cmplx.Abs(detR2), 1e-12)
	assertCDenseInDelta(t, q, q2, 1e-12)
}
