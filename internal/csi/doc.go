// Package csi owns the Channel State Information data model recovered from
// beamforming report records emitted by the NIC monitoring firmware.
//
// Responsibilities: the frame header value, the per-subcarrier channel
// tensor, and the error kinds shared by every stage of the feedback
// pipeline. Byte-level parsing lives in csi/parse; angle compression lives
// in the beamform packages.
//
// Dependency rule: csi has no dependencies on the parse or beamform layers.
package csi
