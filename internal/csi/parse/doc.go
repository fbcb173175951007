// Package parse decodes beamforming report records into csi.Frame values.
//
// A record is a transport prefix (netlink or log-file), a 19-byte header of
// fixed-offset scalar fields, and a bit-packed CSI payload. Payload samples
// are not byte aligned: each subcarrier starts with 3 bits of padding, so the
// alignment of every 8-bit component shifts with the cumulative bit position.
// BitCursor owns that arithmetic.
package parse
