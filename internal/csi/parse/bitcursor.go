package parse

import (
	"fmt"

	"github.com/banshee-data/csi.report/internal/csi"
)

// BitCursor reads little-endian bit fields from a byte slice starting at an
// arbitrary bit offset. Bit 0 of the stream is the least-significant bit of
// the first byte.
type BitCursor struct {
	buf []byte
	pos int // absolute bit position
}

// NewBitCursor returns a cursor positioned at bit 0 of buf.
func NewBitCursor(buf []byte) *BitCursor {
	return &BitCursor{buf: buf}
}

// Pos returns the absolute bit position.
func (c *BitCursor) Pos() int { return c.pos }

// Remainder returns the bit offset inside the current byte.
func (c *BitCursor) Remainder() int { return c.pos % 8 }

// Len returns the size of the underlying stream in bits.
func (c *BitCursor) Len() int { return len(c.buf) * 8 }

// Skip advances the cursor by n bits without reading.
func (c *BitCursor) Skip(n int) {
	c.pos += n
}

// ReadBits reads n bits (0..64) and returns them right-aligned. Only the
// bytes that hold the requested bits must be present.
func (c *BitCursor) ReadBits(n int) (uint64, error) {
	if n < 0 || n > 64 {
		return 0, fmt.Errorf("bit count %d out of range [0,64]", n)
	}
	if c.pos+n > c.Len() {
		return 0, fmt.Errorf("%w: need bits [%d,%d), have %d", csi.ErrTruncatedCSI, c.pos, c.pos+n, c.Len())
	}
	var v uint64
	for i := 0; i < n; i++ {
		p := c.pos + i
		bit := (c.buf[p/8] >> (p % 8)) & 1
		v |= uint64(bit) << i
	}
	c.pos += n
	return v, nil
}

// ReadSigned reads n bits (1..64) and sign-extends them from bit n-1.
func (c *BitCursor) ReadSigned(n int) (int64, error) {
	if n < 1 {
		return 0, fmt.Errorf("bit count %d out of range [1,64]", n)
	}
	v, err := c.ReadBits(n)
	if err != nil {
		return 0, err
	}
	shift := 64 - n
	return int64(v<<shift) >> shift, nil
}

// ReadUint8 reads one 8-bit sample the way the firmware lays it out: the
// byte under the cursor shifted right by the remainder, OR-ed with the next
// byte shifted left into the vacated high bits. The next byte is always
// consumed, even when the cursor is byte aligned.
func (c *BitCursor) ReadUint8() (uint8, error) {
	i := c.pos / 8
	if i+1 >= len(c.buf) {
		return 0, fmt.Errorf("%w: sample at bit %d needs bytes %d-%d, have %d",
			csi.ErrTruncatedCSI, c.pos, i, i+1, len(c.buf))
	}
	r := uint(c.pos % 8)
	v := c.buf[i]>>r | c.buf[i+1]<<(8-r)
	c.pos += 8
	return v, nil
}

// ReadInt8 is ReadUint8 reinterpreted as a two's complement value.
func (c *BitCursor) ReadInt8() (int8, error) {
	v, err := c.ReadUint8()
	return int8(v), err
}
