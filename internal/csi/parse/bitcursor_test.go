package parse

import (
	"errors"
	"testing"

	"github.com/banshee-data/csi.report/internal/csi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// putBits writes the low n bits of v at bit position pos, LSB first.
func putBits(buf []byte, pos, n int, v uint64) {
	for i := 0; i < n; i++ {
		p := pos + i
		if (v>>i)&1 == 1 {
			buf[p/8] |= 1 << (p % 8)
		} else {
			buf[p/8] &^= 1 << (p % 8)
		}
	}
}

func TestBitCursorReadInt8AllAlignments(t *testing.T) {
	values := []int8{0, 1, -1, 127, -128, 0x55, -0x56, 42}

	for offset := 0; offset < 8; offset++ {
		for _, want := range values {
			buf := make([]byte, 3)
			// Fill padding with ones so stray bits would show up in the result.
			for i := range buf {
				buf[i] = 0xFF
			}
			putBits(buf, offset, 8, uint64(uint8(want)))

			cur := NewBitCursor(buf)
			cur.Skip(offset)
			require.Equal(t, offset, cur.Remainder())

			got, err := cur.ReadInt8()
			require.NoError(t, err)
			assert.Equal(t, want, got, "offset %d", offset)
			assert.Equal(t, offset+8, cur.Pos())
		}
	}
}

func TestBitCursorReadUint8NeedsFollowingByte(t *testing.T) {
	// A byte-aligned sample still touches the next byte.
	cur := NewBitCursor([]byte{0x7F})
	_, err := cur.ReadUint8()
	require.Error(t, err)
	assert.True(t, errors.Is(err, csi.ErrTruncatedCSI))

	cur = NewBitCursor([]byte{0x7F, 0x00})
	v, err := cur.ReadUint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x7F), v)
}

func TestBitCursorReadBits(t *testing.T) {
	buf := make([]byte, 4)
	putBits(buf, 3, 5, 0x15)
	putBits(buf, 8, 12, 0xABC)

	cur := NewBitCursor(buf)
	cur.Skip(3)
	v, err := cur.ReadBits(5)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x15), v)

	v, err = cur.ReadBits(12)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xABC), v)

	_, err = cur.ReadBits(13)
	assert.ErrorIs(t, err, csi.ErrTruncatedCSI)

	_, err = cur.ReadBits(65)
	assert.Error(t, err)
}

func TestBitCursorReadSigned(t *testing.T) {
	buf := make([]byte, 2)
	putBits(buf, 2, 4, 0xA) // 1010b = -6 in 4-bit two's complement

	cur := NewBitCursor(buf)
	cur.Skip(2)
	v, err := cur.ReadSigned(4)
	require.NoError(t, err)
	assert.Equal(t, int64(-6), v)

	_, err = cur.ReadSigned(0)
	assert.Error(t, err)
}
