package parse

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/banshee-data/csi.report/internal/csi"
)

// BFEE_RECORD_CODE is the log-file code byte of a beamforming report record.
const BFEE_RECORD_CODE = 0xBB

// EncodeRecord lays a frame out the way the firmware delivers it: transport
// prefix for src, the fixed header, then the bit-packed payload. Header
// fields are written as given (Perm is ignored; AntennaSel carries it) except
// Nrx and Ntx, which come from the tensor. Every tensor component must be an
// integer in the int8 range.
func EncodeRecord(h csi.FrameHeader, t csi.Tensor, src Source) ([]byte, error) {
	prefix, err := src.PrefixSize()
	if err != nil {
		return nil, err
	}
	nrx, ntx := t.Dims()
	if nrx < 1 || nrx > csi.MaxAntennas || ntx < 1 || ntx > csi.MaxAntennas {
		return nil, fmt.Errorf("%w: antenna counts %dx%d outside [1,%d]",
			csi.ErrUnsupportedDimension, nrx, ntx, csi.MaxAntennas)
	}

	payload := make([]byte, ExpectedPayloadLen(nrx, ntx))
	pos := 0
	for sc := 0; sc < csi.NumSubcarriers; sc++ {
		pos += SUBCARRIER_PAD_BITS
		for r := 0; r < nrx; r++ {
			for c := 0; c < ntx; c++ {
				v := t.At(sc, r, c)
				re, err := toSample(real(v))
				if err != nil {
					return nil, fmt.Errorf("subcarrier %d rx %d tx %d real: %w", sc, r, c, err)
				}
				im, err := toSample(imag(v))
				if err != nil {
					return nil, fmt.Errorf("subcarrier %d rx %d tx %d imag: %w", sc, r, c, err)
				}
				writeByteAt(payload, pos, uint8(re))
				writeByteAt(payload, pos+8, uint8(im))
				pos += SAMPLE_BITS
			}
		}
	}

	buf := make([]byte, prefix+HEADER_SIZE, prefix+HEADER_SIZE+len(payload))
	if src == SourceFile {
		buf[0] = BFEE_RECORD_CODE
	}
	b := buf[prefix:]
	b[0], b[1], b[2] = h.NoiseA, h.NoiseB, h.NoiseC
	binary.LittleEndian.PutUint16(b[3:5], h.BfeeCount)
	b[7], b[8] = uint8(nrx), uint8(ntx)
	b[9], b[10], b[11] = h.RSSIA, h.RSSIB, h.RSSIC
	b[12] = uint8(h.Noise)
	b[13] = h.AGC
	b[14] = h.AntennaSel
	binary.LittleEndian.PutUint16(b[15:17], h.Length)
	binary.LittleEndian.PutUint16(b[17:19], h.Rate)

	return append(buf, payload...), nil
}

func toSample(f float64) (int8, error) {
	if f != math.Trunc(f) || f < math.MinInt8 || f > math.MaxInt8 {
		return 0, fmt.Errorf("sample %v is not an 8-bit integer", f)
	}
	return int8(f), nil
}

// writeByteAt stores v at bit offset pos, LSB first, possibly straddling
// two bytes.
func writeByteAt(buf []byte, pos int, v uint8) {
	i, r := pos/8, uint(pos%8)
	buf[i] = buf[i]&(1<<r-1) | v<<r
	if r != 0 {
		buf[i+1] = buf[i+1]&^(1<<r-1) | v>>(8-r)
	}
}
