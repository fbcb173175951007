// Package capture reads beamforming report records out of capture files and
// feeds them through the CSI parser.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/csi.report/internal/csi"
	"github.com/banshee-data/csi.report/internal/csi/parse"
	"github.com/banshee-data/csi.report/internal/monitoring"
)

// Record is one raw record, transport prefix included.
type Record struct {
	Index     int       // Position among the records the reader returned
	Offset    int64     // Byte offset of the record in its container, if known
	Timestamp time.Time // Capture time; zero for log files
	Data      []byte
}

// RecordReader yields records until it returns io.EOF.
type RecordReader interface {
	Next() (Record, error)
}

// FrameHandler receives every successfully parsed frame.
type FrameHandler func(rec Record, frame *csi.Frame) error

// Stats summarises a ReadFrames pass.
type Stats struct {
	Records int
	Frames  int
	Failed  int
}

// ReadFrames parses every record of r as src and hands the frames to fn.
// Records that fail to parse are logged, counted and skipped; an error from
// the reader or from fn stops the pass.
func ReadFrames(ctx context.Context, r RecordReader, src parse.Source, fn FrameHandler) (Stats, error) {
	var stats Stats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}
		stats.Records++

		frame, err := parse.ParseFrame(rec.Data, src)
		if err != nil {
			stats.Failed++
			monitoring.ParseFailures.WithLabelValues(FailureKind(err)).Inc()
			monitoring.Logf("capture: record %d (offset %d): %v", rec.Index, rec.Offset, err)
			continue
		}
		stats.Frames++
		monitoring.FramesParsed.WithLabelValues(src.String()).Inc()

		if err := fn(rec, frame); err != nil {
			return stats, fmt.Errorf("record %d: %w", rec.Index, err)
		}
	}
}

// FailureKind names the parse failure class of err for metrics labels.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, csi.ErrMalformedHeader):
		return "malformed_header"
	case errors.Is(err, csi.ErrTruncatedCSI):
		return "truncated"
	case errors.Is(err, csi.ErrUnsupportedDimension):
		return "unsupported_dimension"
	default:
		return "other"
	}
}
