package feedback

import (
	"context"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/banshee-data/csi.report/internal/beamform"
	"github.com/banshee-data/csi.report/internal/beamform/bitpack"
	"github.com/banshee-data/csi.report/internal/beamform/givens"
	"github.com/banshee-data/csi.report/internal/csi"
	"github.com/banshee-data/csi.report/internal/monitoring"
	"github.com/banshee-data/csi.report/internal/testutil"
	"github.com/google/go-cmp/cmp"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var referenceAngles = [beamform.NumAngles]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}

// composedTensor returns a tensor whose every subcarrier is the steering
// matrix of angles.
func composedTensor(t *testing.T, angles [beamform.NumAngles]float64) csi.Tensor {
	t.Helper()
	v, err := givens.Compose(beamform.NewAngleSet(angles))
	require.NoError(t, err)

	var subcarriers [csi.NumSubcarriers]*mat.CDense
	for sc := range subcarriers {
		subcarriers[sc] = v
	}
	tensor, err := csi.NewTensor(subcarriers)
	require.NoError(t, err)
	return tensor
}

// gram returns v^H v.
func gram(v mat.CMatrix) *mat.CDense {
	r, c := v.Dims()
	out := mat.NewCDense(c, c, nil)
	for i := 0; i < c; i++ {
		for j := 0; j < c; j++ {
			var sum complex128
			for k := 0; k < r; k++ {
				sum += cmplx.Conj(v.At(k, i)) * v.At(k, j)
			}
			out.Set(i, j, sum)
		}
	}
	return out
}

func TestCompressReferenceAngles(t *testing.T) {
	report, err := Compress(context.Background(), composedTensor(t, referenceAngles), Options{Bits: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Bits)

	wantCodes := []uint64{1, 1, 2, 2, 3, 3}
	for sc, s := range report.Subcarriers {
		for i, a := range s.Angles {
			assert.InDelta(t, referenceAngles[i], a.Value, 1e-7, "subcarrier %d %s", sc, beamform.PositionName(i))
		}
		codes, err := bitpack.Unpack(s.Packed)
		require.NoError(t, err)
		assert.Equal(t, wantCodes, codes, "subcarrier %d", sc)
		assert.Equal(t, []uint{3, 5, 3, 3, 5, 5}, s.Packed.Widths)
	}
}

func TestExpandMatchesQuantizedAngles(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	report, err := Compress(context.Background(), testutil.RandomTensor(t, rng, 3, 3), Options{Bits: 2, Workers: 3})
	require.NoError(t, err)

	sets, err := ExpandReport(report)
	require.NoError(t, err)
	require.Len(t, sets, csi.NumSubcarriers)

	for sc, set := range sets {
		for i, a := range set {
			assert.Equal(t, beamform.Layout3x3[i], a.Tag)
			assert.Equal(t, report.Subcarriers[sc].Quantized[i].Angle, a.Value,
				"subcarrier %d %s", sc, beamform.PositionName(i))
		}
	}
}

func TestCompressWorkerCountDoesNotChangeResult(t *testing.T) {
	tensor := testutil.RandomTensor(t, rand.New(rand.NewSource(17)), 3, 3)

	serial, err := Compress(context.Background(), tensor, Options{Bits: 4, Workers: 1})
	require.NoError(t, err)
	parallel, err := Compress(context.Background(), tensor, Options{Bits: 4, Workers: csi.NumSubcarriers})
	require.NoError(t, err)

	if diff := cmp.Diff(serial.Packed(), parallel.Packed()); diff != "" {
		t.Errorf("packed feedback differs between worker counts (-serial +parallel):\n%s", diff)
	}
}

func TestCompressDefaults(t *testing.T) {
	report, err := Compress(context.Background(), composedTensor(t, referenceAngles), Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBits, report.Bits)
}

func TestCompressErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	t.Run("non 3x3 tensor", func(t *testing.T) {
		report, err := Compress(context.Background(), testutil.RandomTensor(t, rng, 2, 3), Options{})
		testutil.AssertErrorIs(t, err, csi.ErrUnsupportedDimension)
		assert.Nil(t, report)
	})

	t.Run("invalid bits", func(t *testing.T) {
		report, err := Compress(context.Background(), testutil.RandomTensor(t, rng, 3, 3), Options{Bits: 7})
		testutil.AssertErrorIs(t, err, csi.ErrInvalidBitWidth)
		assert.Nil(t, report)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		report, err := Compress(ctx, testutil.RandomTensor(t, rng, 3, 3), Options{})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, report)
	})
}

func TestCompressUpdatesMetrics(t *testing.T) {
	before := promtest.ToFloat64(monitoring.SubcarriersCompressed)
	failures := promtest.ToFloat64(monitoring.CompressFailures)

	_, err := Compress(context.Background(), composedTensor(t, referenceAngles), Options{})
	require.NoError(t, err)
	assert.Equal(t, before+csi.NumSubcarriers, promtest.ToFloat64(monitoring.SubcarriersCompressed))

	_, err = Compress(context.Background(), composedTensor(t, referenceAngles), Options{Bits: -1})
	require.Error(t, err)
	assert.Equal(t, failures+1, promtest.ToFloat64(monitoring.CompressFailures))
}

func TestExpandErrors(t *testing.T) {
	_, err := Expand([]bitpack.PackedSubcarrier{{Widths: []uint{3, 5}, Value: 1}}, 3)
	testutil.AssertErrorIs(t, err, csi.ErrUnsupportedDimension)

	// A 5-bit phi field can hold 31; a 3-bit psi field holds 7 but psi codes
	// stop at 4.
	p, err := bitpack.Pack([]bitpack.Code{
		{Tag: beamform.TagPhi}, {Tag: beamform.TagPhi},
		{Tag: beamform.TagPsi, K: 7},
		{Tag: beamform.TagPsi}, {Tag: beamform.TagPhi}, {Tag: beamform.TagPsi},
	}, 3)
	require.NoError(t, err)
	_, err = Expand([]bitpack.PackedSubcarrier{p}, 3)
	testutil.AssertErrorIs(t, err, csi.ErrCodeOverflow)
	assert.Contains(t, err.Error(), "psi21")
}

func TestSteeringMatricesAreUnitary(t *testing.T) {
	report, err := Compress(context.Background(), composedTensor(t, referenceAngles), Options{Bits: 4})
	require.NoError(t, err)
	sets, err := ExpandReport(report)
	require.NoError(t, err)

	vs, err := SteeringMatrices(sets)
	require.NoError(t, err)
	require.Len(t, vs, csi.NumSubcarriers)

	identity := mat.NewCDense(3, 3, []complex128{1, 0, 0, 0, 1, 0, 0, 0, 1})
	for sc, v := range vs {
		assert.True(t, mat.CEqualApprox(gram(v), identity, 1e-12), "subcarrier %d", sc)
	}

	// Coarse reconstruction stays close to the original steering matrix.
	orig, err := givens.Compose(beamform.NewAngleSet(referenceAngles))
	require.NoError(t, err)
	assert.True(t, mat.CEqualApprox(vs[0], orig, 0.5))

	bad := []beamform.AngleSet{{}}
	_, err = SteeringMatrices(bad)
	testutil.AssertErrorIs(t, err, csi.ErrInvalidAngleTag)
}
