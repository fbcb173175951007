package beamform

import (
	"testing"

	"github.com/banshee-data/csi.report/internal/csi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTag(t *testing.T) {
	tag, err := ParseTag("phi")
	require.NoError(t, err)
	assert.Equal(t, TagPhi, tag)

	tag, err = ParseTag("psi")
	require.NoError(t, err)
	assert.Equal(t, TagPsi, tag)

	_, err = ParseTag("theta")
	assert.ErrorIs(t, err, csi.ErrInvalidAngleTag)
}

func TestTagCheck(t *testing.T) {
	assert.NoError(t, TagPhi.Check())
	assert.NoError(t, TagPsi.Check())
	assert.ErrorIs(t, Tag(0).Check(), csi.ErrInvalidAngleTag)
	assert.ErrorIs(t, Tag(7).Check(), csi.ErrInvalidAngleTag)
	assert.Equal(t, "Tag(7)", Tag(7).String())
}

func TestNewAngleSetLayout(t *testing.T) {
	s := NewAngleSet([NumAngles]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6})

	assert.Equal(t, Angle{TagPhi, 0.1}, s[Phi11])
	assert.Equal(t, Angle{TagPhi, 0.2}, s[Phi21])
	assert.Equal(t, Angle{TagPsi, 0.3}, s[Psi21])
	assert.Equal(t, Angle{TagPsi, 0.4}, s[Psi31])
	assert.Equal(t, Angle{TagPhi, 0.5}, s[Phi22])
	assert.Equal(t, Angle{TagPsi, 0.6}, s[Psi32])
	assert.Equal(t, [NumAngles]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, s.Values())

	assert.Equal(t, "psi32", PositionName(Psi32))
	assert.Equal(t, "angle9", PositionName(9))
}
