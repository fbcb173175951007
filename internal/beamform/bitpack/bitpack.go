// Package bitpack serializes the quantization codes of one subcarrier into
// the single integer the driver applies to the card, and splits it back.
//
// Codes are given in angle-set order (phi11 first). Packing walks them in
// reverse, so the last angle ends up in the most-significant bits and phi11
// in the least-significant bits. The width list is needed to decode; the
// integer on its own does not say where fields start.
package bitpack

import (
	"fmt"

	"github.com/banshee-data/csi.report/internal/beamform"
	"github.com/banshee-data/csi.report/internal/beamform/quant"
	"github.com/banshee-data/csi.report/internal/csi"
)

// MaxPackedBits is the capacity of a packed subcarrier value.
const MaxPackedBits = 64

// Code is one tagged quantization code.
type Code struct {
	Tag beamform.Tag
	K   uint64
}

// PackedSubcarrier is the packed form of one subcarrier. Widths lists the
// field widths most-significant field first, i.e. reversed angle-set order.
type PackedSubcarrier struct {
	Widths []uint
	Value  uint64
}

// TotalBits returns the sum of the field widths.
func (p PackedSubcarrier) TotalBits() uint {
	var n uint
	for _, w := range p.Widths {
		n += w
	}
	return n
}

// CodesFromQuantized drops the reconstructed angles and keeps tag and code.
func CodesFromQuantized(qs []quant.QuantizedAngle) []Code {
	codes := make([]Code, len(qs))
	for i, q := range qs {
		codes[i] = Code{Tag: q.Tag, K: q.K}
	}
	return codes
}

// Pack concatenates codes: for each code in reverse order the accumulator
// is shifted left by the code's width and the code is added. Psi fields
// are bits wide, phi fields bits+2.
func Pack(codes []Code, bits int) (PackedSubcarrier, error) {
	if len(codes) == 0 {
		return PackedSubcarrier{}, fmt.Errorf("no codes to pack")
	}

	widths := make([]uint, 0, len(codes))
	var total uint
	var acc uint64
	for i := len(codes) - 1; i >= 0; i-- {
		c := codes[i]
		w, err := quant.Width(c.Tag, bits)
		if err != nil {
			return PackedSubcarrier{}, fmt.Errorf("code %d: %w", i, err)
		}
		if c.K>>w != 0 {
			return PackedSubcarrier{}, fmt.Errorf("%w: code %d (%s) value %d does not fit %d bits",
				csi.ErrCodeOverflow, i, c.Tag, c.K, w)
		}
		total += w
		if total > MaxPackedBits {
			return PackedSubcarrier{}, fmt.Errorf("%w: layout needs more than %d bits", csi.ErrCodeOverflow, MaxPackedBits)
		}
		widths = append(widths, w)
		acc = acc<<w + c.K
	}

	return PackedSubcarrier{Widths: widths, Value: acc}, nil
}

// Unpack splits p back into codes, returned in angle-set order: the width
// list is walked in reverse, each field is masked off the low end of the
// value and the value shifted right past it.
func Unpack(p PackedSubcarrier) ([]uint64, error) {
	if len(p.Widths) == 0 {
		return nil, fmt.Errorf("packed subcarrier has no widths")
	}
	var total uint
	for i, w := range p.Widths {
		if w == 0 || w > MaxPackedBits {
			return nil, fmt.Errorf("field %d: width %d out of range [1,%d]", i, w, MaxPackedBits)
		}
		total += w
	}
	if total > MaxPackedBits {
		return nil, fmt.Errorf("%w: layout needs %d bits", csi.ErrCodeOverflow, total)
	}
	if total < MaxPackedBits && p.Value>>total != 0 {
		return nil, fmt.Errorf("packed value 0x%x has bits above its %d-bit layout", p.Value, total)
	}

	v := p.Value
	codes := make([]uint64, 0, len(p.Widths))
	for i := len(p.Widths) - 1; i >= 0; i-- {
		w := p.Widths[i]
		codes = append(codes, v&mask(w))
		v >>= w
	}
	return codes, nil
}

func mask(w uint) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return 1<<w - 1
}

// PackAll packs every subcarrier of a report.
func PackAll(subcarriers [][]Code, bits int) ([]PackedSubcarrier, error) {
	out := make([]PackedSubcarrier, len(subcarriers))
	for sc, codes := range subcarriers {
		p, err := Pack(codes, bits)
		if err != nil {
			return nil, fmt.Errorf("subcarrier %d: %w", sc, err)
		}
		out[sc] = p
	}
	return out, nil
}

// UnpackAll unpacks every subcarrier of a report.
func UnpackAll(packed []PackedSubcarrier) ([][]uint64, error) {
	out := make([][]uint64, len(packed))
	for sc, p := range packed {
		codes, err := Unpack(p)
		if err != nil {
			return nil, fmt.Errorf("subcarrier %d: %w", sc, err)
		}
		out[sc] = codes
	}
	return out, nil
}
