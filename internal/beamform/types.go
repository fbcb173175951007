package beamform

import (
	"fmt"

	"github.com/banshee-data/csi.report/internal/csi"
)

// Tag identifies which kind of feedback angle a value is. Phi angles are
// phase rotations, psi angles are Givens rotations.
type Tag uint8

const (
	TagPhi Tag = iota + 1
	TagPsi
)

func (t Tag) String() string {
	switch t {
	case TagPhi:
		return "phi"
	case TagPsi:
		return "psi"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Valid reports whether t is phi or psi.
func (t Tag) Valid() bool {
	return t == TagPhi || t == TagPsi
}

// Check returns csi.ErrInvalidAngleTag for anything but phi or psi.
func (t Tag) Check() error {
	if !t.Valid() {
		return fmt.Errorf("%w: %s", csi.ErrInvalidAngleTag, t)
	}
	return nil
}

// ParseTag maps "phi" or "psi" to its Tag.
func ParseTag(s string) (Tag, error) {
	switch s {
	case "phi":
		return TagPhi, nil
	case "psi":
		return TagPsi, nil
	default:
		return 0, fmt.Errorf("%w: %q", csi.ErrInvalidAngleTag, s)
	}
}

// Angle is one tagged feedback angle in radians.
type Angle struct {
	Tag   Tag
	Value float64
}

// NumAngles is the number of angles a 3x3 report decomposes into.
const NumAngles = 6

// Positions of each angle inside an AngleSet.
const (
	Phi11 = iota
	Phi21
	Psi21
	Psi31
	Phi22
	Psi32
)

// Layout3x3 is the tag at every AngleSet position. The order fixes both the
// rotation that produced each angle and its serialization order.
var Layout3x3 = [NumAngles]Tag{TagPhi, TagPhi, TagPsi, TagPsi, TagPhi, TagPsi}

// AngleSet is the ordered angle list of one subcarrier:
// phi11, phi21, psi21, psi31, phi22, psi32.
type AngleSet [NumAngles]Angle

// NewAngleSet tags raw values with Layout3x3.
func NewAngleSet(values [NumAngles]float64) AngleSet {
	var s AngleSet
	for i, v := range values {
		s[i] = Angle{Tag: Layout3x3[i], Value: v}
	}
	return s
}

// Values returns the untagged angle values in order.
func (s AngleSet) Values() [NumAngles]float64 {
	var out [NumAngles]float64
	for i, a := range s {
		out[i] = a.Value
	}
	return out
}

var positionNames = [NumAngles]string{"phi11", "phi21", "psi21", "psi31", "phi22", "psi32"}

// PositionName returns the conventional name of AngleSet position i.
func PositionName(i int) string {
	if i < 0 || i >= NumAngles {
		return fmt.Sprintf("angle%d", i)
	}
	return positionNames[i]
}
