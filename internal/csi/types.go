package csi

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Beamforming report geometry.
const (
	NumSubcarriers = 30 // Subcarriers per report (fixed by the firmware format)
	MaxAntennas    = 3  // Upper bound on both Nrx and Ntx
)

// FrameHeader holds the fixed-offset scalar fields at the start of a
// beamforming report record.
type FrameHeader struct {
	NoiseA     uint8  // Byte 0: noise floor, chain A
	NoiseB     uint8  // Byte 1: noise floor, chain B
	NoiseC     uint8  // Byte 2: noise floor, chain C
	BfeeCount  uint16 // Bytes 3-4: beamforming report counter (little-endian)
	Nrx        uint8  // Byte 7: receive antennas
	Ntx        uint8  // Byte 8: transmit antennas
	RSSIA      uint8  // Byte 9: RSSI, chain A
	RSSIB      uint8  // Byte 10: RSSI, chain B
	RSSIC      uint8  // Byte 11: RSSI, chain C
	Noise      int8   // Byte 12: residual noise (signed)
	AGC        uint8  // Byte 13: automatic gain control setting
	AntennaSel uint8  // Byte 14: raw antenna selection
	Length     uint16 // Bytes 15-16: CSI payload length (little-endian)
	Rate       uint16 // Bytes 17-18: PHY rate (little-endian)

	// Perm is the receive antenna permutation decoded from AntennaSel: three
	// 2-bit groups (bits 0-1, 2-3, 4-5), each shifted to a 1-based index.
	Perm [3]int
}

// String renders the same one-line summary the capture tools print.
func (h FrameHeader) String() string {
	return fmt.Sprintf("NOISE(A,B,C)=[%d %d %d] Nrx=%d Ntx=%d RSSI(A,B,C)=[%d %d %d] Noise=%d AGC=%d",
		h.NoiseA, h.NoiseB, h.NoiseC, h.Nrx, h.Ntx, h.RSSIA, h.RSSIB, h.RSSIC, h.Noise, h.AGC)
}

// Tensor is the ordered sequence of per-subcarrier channel matrices of one
// frame. Each matrix is Nrx x Ntx. A Tensor is immutable once built: all
// accessors hand out copies.
type Tensor struct {
	nrx, ntx    int
	subcarriers [NumSubcarriers]*mat.CDense
}

// NewTensor builds a Tensor from per-subcarrier matrices. The matrices are
// copied, so the caller may keep mutating its own.
func NewTensor(subcarriers [NumSubcarriers]*mat.CDense) (Tensor, error) {
	var t Tensor
	for i, m := range subcarriers {
		if m == nil {
			return Tensor{}, fmt.Errorf("subcarrier %d: nil matrix", i)
		}
		r, c := m.Dims()
		if i == 0 {
			t.nrx, t.ntx = r, c
		} else if r != t.nrx || c != t.ntx {
			return Tensor{}, fmt.Errorf("subcarrier %d: shape %dx%d differs from %dx%d", i, r, c, t.nrx, t.ntx)
		}
		t.subcarriers[i] = CloneMatrix(m)
	}
	return t, nil
}

// Dims returns the receive and transmit antenna counts.
func (t Tensor) Dims() (nrx, ntx int) {
	return t.nrx, t.ntx
}

// Subcarrier returns a copy of the channel matrix for subcarrier i.
func (t Tensor) Subcarrier(i int) *mat.CDense {
	return CloneMatrix(t.subcarriers[i])
}

// At returns the channel entry for (subcarrier, rx, tx).
func (t Tensor) At(sc, rx, tx int) complex128 {
	return t.subcarriers[sc].At(rx, tx)
}

// CloneMatrix returns a freshly allocated copy of m.
func CloneMatrix(m mat.CMatrix) *mat.CDense {
	r, c := m.Dims()
	out := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(i, j))
		}
	}
	return out
}

// Frame is one parsed beamforming report.
type Frame struct {
	Header FrameHeader
	CSI    Tensor
}

func (f *Frame) String() string {
	return f.Header.String()
}
