package parse

import (
	"testing"

	"github.com/banshee-data/csi.report/internal/csi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func patternTensor(t *testing.T, nrx, ntx int) csi.Tensor {
	t.Helper()
	var subcarriers [csi.NumSubcarriers]*mat.CDense
	for sc := range subcarriers {
		m := mat.NewCDense(nrx, ntx, nil)
		for r := 0; r < nrx; r++ {
			for c := 0; c < ntx; c++ {
				re, im := patternSample(sc, r, c)
				m.Set(r, c, complex(float64(re), float64(im)))
			}
		}
		subcarriers[sc] = m
	}
	tensor, err := csi.NewTensor(subcarriers)
	require.NoError(t, err)
	return tensor
}

func TestEncodeRecordRoundTrip(t *testing.T) {
	header := csi.FrameHeader{
		NoiseA: 1, NoiseB: 2, NoiseC: 3,
		BfeeCount: 0x1234,
		RSSIA:     40, RSSIB: 41, RSSIC: 42,
		Noise:      -92,
		AGC:        30,
		AntennaSel: 0b10_01_00,
		Length:     552,
		Rate:       0x0100,
	}

	for _, src := range []Source{SourceFile, SourceNetlink} {
		for _, dims := range [][2]int{{3, 3}, {2, 3}, {1, 1}} {
			tensor := patternTensor(t, dims[0], dims[1])
			buf, err := EncodeRecord(header, tensor, src)
			require.NoError(t, err)

			prefix, _ := src.PrefixSize()
			assert.Len(t, buf, prefix+HEADER_SIZE+ExpectedPayloadLen(dims[0], dims[1]))

			frame, err := ParseFrame(buf, src)
			require.NoError(t, err, "%s %v", src, dims)
			assert.Equal(t, uint16(0x1234), frame.Header.BfeeCount)
			assert.Equal(t, int8(-92), frame.Header.Noise)
			assert.Equal(t, [3]int{1, 2, 3}, frame.Header.Perm)
			assert.Equal(t, uint8(dims[0]), frame.Header.Nrx)
			for sc := 0; sc < csi.NumSubcarriers; sc++ {
				assert.True(t, mat.CEqual(tensor.Subcarrier(sc), frame.CSI.Subcarrier(sc)), "%s %v subcarrier %d", src, dims, sc)
			}
		}
	}
}

func TestEncodeRecordFileCode(t *testing.T) {
	buf, err := EncodeRecord(csi.FrameHeader{}, patternTensor(t, 3, 3), SourceFile)
	require.NoError(t, err)
	assert.Equal(t, byte(BFEE_RECORD_CODE), buf[0])
}

func TestEncodeRecordRejectsNonSamples(t *testing.T) {
	var subcarriers [csi.NumSubcarriers]*mat.CDense
	for sc := range subcarriers {
		subcarriers[sc] = mat.NewCDense(3, 3, nil)
	}
	subcarriers[4].Set(1, 1, complex(0.5, 0))
	tensor, err := csi.NewTensor(subcarriers)
	require.NoError(t, err)

	_, err = EncodeRecord(csi.FrameHeader{}, tensor, SourceFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subcarrier 4")

	subcarriers[4].Set(1, 1, complex(0, 200))
	tensor, err = csi.NewTensor(subcarriers)
	require.NoError(t, err)
	_, err = EncodeRecord(csi.FrameHeader{}, tensor, SourceFile)
	assert.Error(t, err)
}
