package parse

import (
	"encoding/binary"
	"fmt"

	"github.com/banshee-data/csi.report/internal/csi"
)

// Record layout constants.
const (
	NETLINK_PREFIX_SIZE = 38 // Netlink + connector headers ahead of a socket record
	FILE_PREFIX_SIZE    = 1  // Record code byte ahead of a log-file record
	HEADER_SIZE         = 19 // Fixed header region; CSI payload starts right after it
)

// Source tells the parser which transport prefix precedes the header.
type Source int

const (
	SourceNetlink Source = iota // Record read from the netlink connector socket
	SourceFile                  // Record read from a log file
)

func (s Source) String() string {
	switch s {
	case SourceNetlink:
		return "netlink"
	case SourceFile:
		return "file"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// ParseSource maps the configuration spelling of a source to its value.
func ParseSource(name string) (Source, error) {
	switch name {
	case "netlink":
		return SourceNetlink, nil
	case "file":
		return SourceFile, nil
	default:
		return 0, fmt.Errorf("unknown capture source %q (want netlink or file)", name)
	}
}

// PrefixSize returns the number of transport bytes to strip for src.
func (s Source) PrefixSize() (int, error) {
	switch s {
	case SourceNetlink:
		return NETLINK_PREFIX_SIZE, nil
	case SourceFile:
		return FILE_PREFIX_SIZE, nil
	default:
		return 0, fmt.Errorf("%w: unknown source %s", csi.ErrMalformedHeader, s)
	}
}

// ParseHeader strips the transport prefix selected by src and decodes the
// fixed header. It returns the header and the CSI payload that follows it.
func ParseHeader(buf []byte, src Source) (csi.FrameHeader, []byte, error) {
	prefix, err := src.PrefixSize()
	if err != nil {
		return csi.FrameHeader{}, nil, err
	}
	if len(buf) < prefix+HEADER_SIZE {
		return csi.FrameHeader{}, nil, fmt.Errorf("%w: need %d bytes (%s prefix %d + header %d), have %d",
			csi.ErrMalformedHeader, prefix+HEADER_SIZE, src, prefix, HEADER_SIZE, len(buf))
	}
	b := buf[prefix:]

	h := csi.FrameHeader{
		NoiseA:     b[0],                                 // Byte 0
		NoiseB:     b[1],                                 // Byte 1
		NoiseC:     b[2],                                 // Byte 2
		BfeeCount:  binary.LittleEndian.Uint16(b[3:5]),   // Bytes 3-4
		Nrx:        b[7],                                 // Byte 7
		Ntx:        b[8],                                 // Byte 8
		RSSIA:      b[9],                                 // Byte 9
		RSSIB:      b[10],                                // Byte 10
		RSSIC:      b[11],                                // Byte 11
		Noise:      int8(b[12]),                          // Byte 12 (signed)
		AGC:        b[13],                                // Byte 13
		AntennaSel: b[14],                                // Byte 14
		Length:     binary.LittleEndian.Uint16(b[15:17]), // Bytes 15-16
		Rate:       binary.LittleEndian.Uint16(b[17:19]), // Bytes 17-18
	}
	h.Perm = AntennaPermutation(h.AntennaSel)

	if h.Nrx < 1 || h.Nrx > csi.MaxAntennas {
		return csi.FrameHeader{}, nil, fmt.Errorf("%w: Nrx=%d outside [1,%d]", csi.ErrMalformedHeader, h.Nrx, csi.MaxAntennas)
	}
	if h.Ntx < 1 || h.Ntx > csi.MaxAntennas {
		return csi.FrameHeader{}, nil, fmt.Errorf("%w: Ntx=%d outside [1,%d]", csi.ErrMalformedHeader, h.Ntx, csi.MaxAntennas)
	}

	return h, b[HEADER_SIZE:], nil
}

// AntennaPermutation decodes the three 2-bit groups of the antenna selection
// byte into 1-based receive chain indices.
func AntennaPermutation(sel uint8) [3]int {
	return [3]int{
		int(sel&0x3) + 1,
		int((sel>>2)&0x3) + 1,
		int((sel>>4)&0x3) + 1,
	}
}
