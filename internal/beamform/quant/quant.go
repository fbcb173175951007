// Package quant maps compressed beamforming angles to fixed-width integer
// codes and back, following the 802.11n angle quantization rules.
package quant

import (
	"fmt"
	"math"

	"github.com/banshee-data/csi.report/internal/beamform"
	"github.com/banshee-data/csi.report/internal/csi"
)

// Supported psi bit widths. Phi angles always use two more bits.
const (
	MinBits = 1
	MaxBits = 4
)

// QuantizedAngle is a quantization result: the code K and the angle it
// reconstructs to.
type QuantizedAngle struct {
	Tag   beamform.Tag
	Angle float64
	K     uint64
}

// Bounds are the clamp thresholds for one (tag, bits) pair.
type Bounds struct {
	Min  float64 // Angles at or below Min clamp to code 0
	Max  float64 // Angles at or above Max clamp to KMax
	KMax uint64
}

func check(tag beamform.Tag, bits int) error {
	if bits < MinBits || bits > MaxBits {
		return fmt.Errorf("%w: %d not in [%d,%d]", csi.ErrInvalidBitWidth, bits, MinBits, MaxBits)
	}
	return tag.Check()
}

// scales returns a = 2^(bits+1) and b = 2^(bits+2).
func scales(bits int) (a, b float64) {
	return math.Exp2(float64(bits + 1)), math.Exp2(float64(bits + 2))
}

// Width returns the field width of a code: bits for psi, bits+2 for phi.
func Width(tag beamform.Tag, bits int) (uint, error) {
	if err := check(tag, bits); err != nil {
		return 0, err
	}
	if tag == beamform.TagPhi {
		return uint(bits + 2), nil
	}
	return uint(bits), nil
}

// Thresholds returns the clamp bounds for tag at the given psi bit width.
//
// Min is pi / bits^(2^(bits+2)). That is the formula the driver tooling has
// always used; it does not mirror the structure of Max and is almost
// certainly not the intended threshold (for bits=1 it even exceeds Max), but
// codes must stay bit-exact with existing captures, so it is kept as is.
func Thresholds(tag beamform.Tag, bits int) (Bounds, error) {
	if err := check(tag, bits); err != nil {
		return Bounds{}, err
	}
	a, b := scales(bits)

	var kMax uint64
	if tag == beamform.TagPsi {
		kMax = 1 << uint(bits-1)
	} else {
		kMax = 1<<uint(bits+2) - 1
	}

	return Bounds{
		Min:  math.Pi / math.Pow(float64(bits), b),
		Max:  float64(kMax)*math.Pi/a + math.Pi/b,
		KMax: kMax,
	}, nil
}

// reconstruct is the inverse affine map k -> k*pi/a + pi/b.
func reconstruct(k uint64, bits int) float64 {
	a, b := scales(bits)
	return float64(k)*math.Pi/a + math.Pi/b
}

// Quantize returns the code for angle and the angle that code reconstructs
// to. Angles at or below the lower threshold return (Min, 0); angles at or
// above the upper threshold return (Max, KMax).
func Quantize(angle float64, tag beamform.Tag, bits int) (QuantizedAngle, error) {
	bounds, err := Thresholds(tag, bits)
	if err != nil {
		return QuantizedAngle{}, err
	}
	if math.IsNaN(angle) {
		return QuantizedAngle{}, fmt.Errorf("cannot quantize NaN %s angle", tag)
	}

	if angle <= bounds.Min {
		return QuantizedAngle{Tag: tag, Angle: bounds.Min, K: 0}, nil
	}
	if angle >= bounds.Max {
		return QuantizedAngle{Tag: tag, Angle: bounds.Max, K: bounds.KMax}, nil
	}

	a, b := scales(bits)
	k := uint64(math.Ceil(angle/math.Pi*a - a/b))
	return QuantizedAngle{Tag: tag, Angle: reconstruct(k, bits), K: k}, nil
}

// Dequantize maps a code back to its angle. Code 0 always maps to pi/b,
// which differs from the Min angle Quantize reports for clamped inputs, so
// only codes above the lower clamp round-trip to the same angle.
func Dequantize(k uint64, tag beamform.Tag, bits int) (float64, error) {
	bounds, err := Thresholds(tag, bits)
	if err != nil {
		return 0, err
	}
	if k > bounds.KMax {
		return 0, fmt.Errorf("%w: %s code %d exceeds %d", csi.ErrCodeOverflow, tag, k, bounds.KMax)
	}
	return reconstruct(k, bits), nil
}

// QuantizeSet quantizes every angle of a subcarrier at the same psi width.
func QuantizeSet(set beamform.AngleSet, bits int) ([beamform.NumAngles]QuantizedAngle, error) {
	var out [beamform.NumAngles]QuantizedAngle
	for i, a := range set {
		q, err := Quantize(a.Value, a.Tag, bits)
		if err != nil {
			return out, fmt.Errorf("%s: %w", beamform.PositionName(i), err)
		}
		out[i] = q
	}
	return out, nil
}
