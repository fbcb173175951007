package givens

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Every helper here returns a new matrix; inputs are never written.

// mul returns the product a*b.
func mul(a, b mat.CMatrix) *mat.CDense {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		panic(mat.ErrShape)
	}
	out := mat.NewCDense(ar, bc, nil)
	for i := 0; i < ar; i++ {
		for j := 0; j < bc; j++ {
			var sum complex128
			for k := 0; k < ac; k++ {
				sum += a.At(i, k) * b.At(k, j)
			}
			out.Set(i, j, sum)
		}
	}
	return out
}

// phaseDiag returns diag(exp(j*phases[0]), exp(j*phases[1]), ...).
func phaseDiag(phases ...float64) *mat.CDense {
	n := len(phases)
	d := mat.NewCDense(n, n, nil)
	for i, p := range phases {
		d.Set(i, i, cmplx.Exp(complex(0, p)))
	}
	return d
}

// rotation returns the n x n Givens rotation acting on plane (i, k):
// [cos, sin; -sin, cos] on rows/cols i and k, identity elsewhere.
func rotation(n, i, k int, psi float64) *mat.CDense {
	g := mat.NewCDense(n, n, nil)
	for d := 0; d < n; d++ {
		g.Set(d, d, 1)
	}
	c, s := math.Cos(psi), math.Sin(psi)
	g.Set(i, i, complex(c, 0))
	g.Set(i, k, complex(s, 0))
	g.Set(k, i, complex(-s, 0))
	g.Set(k, k, complex(c, 0))
	return g
}

// normalizePhase maps a phase in (-pi, pi] onto [0, 2pi).
func normalizePhase(p float64) float64 {
	if p < 0 {
		p += 2 * math.Pi
	}
	return p
}
