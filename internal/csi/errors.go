package csi

import "errors"

// Error kinds reported by the capture parser and the feedback codec. They are
// always wrapped with context; test with errors.Is.
var (
	// ErrMalformedHeader means the buffer is too short for the fixed header
	// region or carries header values outside the supported range.
	ErrMalformedHeader = errors.New("malformed frame header")

	// ErrTruncatedCSI means the bit cursor would read past the end of the
	// buffer while extracting the channel tensor.
	ErrTruncatedCSI = errors.New("truncated csi data")

	// ErrUnsupportedDimension means a stage was handed a matrix shape it
	// cannot handle: anything but 3x3 for the decomposition, or antenna
	// counts outside [1,3] for the record encoder.
	ErrUnsupportedDimension = errors.New("unsupported matrix dimension")

	// ErrInvalidBitWidth means a quantization bit width outside [1,4].
	ErrInvalidBitWidth = errors.New("invalid quantization bit width")

	// ErrInvalidAngleTag means an angle tag that is neither phi nor psi.
	ErrInvalidAngleTag = errors.New("invalid angle tag")

	// ErrCodeOverflow means a quantization code does not fit its bit field.
	ErrCodeOverflow = errors.New("quantization code overflows field width")
)
