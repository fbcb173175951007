// Package givens reduces a 3x3 channel matrix to the six 802.11n compressed
// beamforming angles by successive phase corrections and Givens rotations,
// and rebuilds the steering matrix from those angles.
package givens

import (
	"fmt"
	"math/cmplx"

	"github.com/banshee-data/csi.report/internal/beamform"
	"github.com/banshee-data/csi.report/internal/csi"
	"gonum.org/v1/gonum/mat"
)

// Streams is the only matrix size the decomposition supports.
const Streams = 3

// Decompose returns the angle set of v, which must be 3x3 and unitary up to
// scaling. The steps run in a fixed order; each one consumes the matrix
// produced by the previous step:
//
//  1. D~ from the phase of each column's last-row entry
//  2. T1 = V D~^H; phi11, phi21 = arg T1[0,0], arg T1[1,0]
//  3. T2 = D1^H T1; psi21 from T2[0,0], T2[1,0]
//  4. T3 = G21 T2; psi31 from T3[0,0], T3[2,0]
//  5. V2 = G31 T3; phi22 = arg V2[1,1]
//  6. T4 = D2^H V2; psi32 from T4[1,1], T4[2,1]
func Decompose(v mat.CMatrix) (beamform.AngleSet, error) {
	r, c := v.Dims()
	if r != Streams || c != Streams {
		return beamform.AngleSet{}, fmt.Errorf("%w: got %dx%d, want %dx%d",
			csi.ErrUnsupportedDimension, r, c, Streams, Streams)
	}

	dTilde := phaseDiag(
		cmplx.Phase(v.At(Streams-1, 0)),
		cmplx.Phase(v.At(Streams-1, 1)),
		cmplx.Phase(v.At(Streams-1, 2)),
	)
	t1 := mul(v, dTilde.H())
	phi11 := normalizePhase(cmplx.Phase(t1.At(0, 0)))
	phi21 := normalizePhase(cmplx.Phase(t1.At(1, 0)))

	d1 := phaseDiag(phi11, phi21, 0)
	t2 := mul(d1.H(), t1)
	psi21 := calcPsi(t2.At(0, 0), t2.At(1, 0))

	g21 := rotation(Streams, 0, 1, psi21)
	t3 := mul(g21, t2)
	psi31 := calcPsi(t3.At(0, 0), t3.At(2, 0))

	g31 := rotation(Streams, 0, 2, psi31)
	v2 := mul(g31, t3)
	phi22 := normalizePhase(cmplx.Phase(v2.At(1, 1)))

	d2 := phaseDiag(0, phi22, 0)
	t4 := mul(d2.H(), v2)
	psi32 := calcPsi(t4.At(1, 1), t4.At(2, 1))

	return beamform.NewAngleSet([beamform.NumAngles]float64{
		phi11, phi21, psi21, psi31, phi22, psi32,
	}), nil
}

// calcPsi returns Re(acos(x1 / sqrt(x1^2 + x2^2))) using complex principal
// branches, so the result is always in [0, pi] whatever the signs of the
// inputs. Squares are complex squares, not magnitudes. A zero norm gives 0.
func calcPsi(x1, x2 complex128) float64 {
	y := cmplx.Sqrt(x1*x1 + x2*x2)
	if y == 0 {
		return 0
	}
	return real(cmplx.Acos(x1 / y))
}

// Compose rebuilds the 3x3 steering matrix described by angles:
//
//	V = D1 G21^T G31^T D2 G32^T
//
// Decompose(Compose(a)) returns a for phases in [0, 2pi) and psi angles in
// (0, pi/2).
func Compose(angles beamform.AngleSet) (*mat.CDense, error) {
	for i, a := range angles {
		if a.Tag != beamform.Layout3x3[i] {
			return nil, fmt.Errorf("%w: %s at %s", csi.ErrInvalidAngleTag, a.Tag, beamform.PositionName(i))
		}
	}

	d1 := phaseDiag(angles[beamform.Phi11].Value, angles[beamform.Phi21].Value, 0)
	g21 := rotation(Streams, 0, 1, angles[beamform.Psi21].Value)
	g31 := rotation(Streams, 0, 2, angles[beamform.Psi31].Value)
	d2 := phaseDiag(0, angles[beamform.Phi22].Value, 0)
	g32 := rotation(Streams, 1, 2, angles[beamform.Psi32].Value)

	v := mul(d1, g21.H())
	v = mul(v, g31.H())
	v = mul(v, d2)
	v = mul(v, g32.H())
	return v, nil
}
