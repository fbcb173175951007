// Package beamform defines the compressed beamforming feedback model: the
// phi/psi angle tags and the fixed angle layout of a 3-stream report.
//
// Subpackages implement the stages of the feedback codec:
//   - givens: channel matrix -> ordered angle set
//   - quant:  angle -> fixed-width code and back
//   - bitpack: per-subcarrier codes <-> single packed integer
package beamform
