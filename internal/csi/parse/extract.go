package parse

import (
	"fmt"

	"github.com/banshee-data/csi.report/internal/csi"
	"gonum.org/v1/gonum/mat"
)

// Payload layout constants.
const (
	SUBCARRIER_PAD_BITS = 3  // Padding bits ahead of every subcarrier
	SAMPLE_BITS         = 16 // 8-bit real + 8-bit imaginary per antenna pair
)

// ExpectedPayloadLen returns the CSI payload size in bytes the firmware
// emits for an nrx x ntx report.
func ExpectedPayloadLen(nrx, ntx int) int {
	bits := csi.NumSubcarriers * (nrx*ntx*SAMPLE_BITS + SUBCARRIER_PAD_BITS)
	return (bits + 7) / 8
}

// ExtractTensor decodes csi.NumSubcarriers channel matrices of shape
// nrx x ntx from the payload that follows the header. Entries are visited in
// row-major (rx, tx) order; each is an 8-bit real then an 8-bit imaginary
// sample read at the current (unaligned) bit position.
func ExtractTensor(payload []byte, nrx, ntx int) (csi.Tensor, error) {
	if nrx < 1 || nrx > csi.MaxAntennas || ntx < 1 || ntx > csi.MaxAntennas {
		return csi.Tensor{}, fmt.Errorf("%w: antenna counts %dx%d outside [1,%d]",
			csi.ErrMalformedHeader, nrx, ntx, csi.MaxAntennas)
	}

	var subcarriers [csi.NumSubcarriers]*mat.CDense
	cur := NewBitCursor(payload)

	for sc := 0; sc < csi.NumSubcarriers; sc++ {
		cur.Skip(SUBCARRIER_PAD_BITS)

		h := mat.NewCDense(nrx, ntx, nil)
		for r := 0; r < nrx; r++ {
			for t := 0; t < ntx; t++ {
				re, err := cur.ReadInt8()
				if err != nil {
					return csi.Tensor{}, fmt.Errorf("subcarrier %d rx %d tx %d real: %w", sc, r, t, err)
				}
				im, err := cur.ReadInt8()
				if err != nil {
					return csi.Tensor{}, fmt.Errorf("subcarrier %d rx %d tx %d imag: %w", sc, r, t, err)
				}
				h.Set(r, t, complex(float64(re), float64(im)))
			}
		}
		subcarriers[sc] = h
	}

	return csi.NewTensor(subcarriers)
}

// ParseFrame decodes a complete record: transport prefix, header, tensor.
func ParseFrame(buf []byte, src Source) (*csi.Frame, error) {
	h, payload, err := ParseHeader(buf, src)
	if err != nil {
		return nil, err
	}
	tensor, err := ExtractTensor(payload, int(h.Nrx), int(h.Ntx))
	if err != nil {
		return nil, err
	}
	return &csi.Frame{Header: h, CSI: tensor}, nil
}
