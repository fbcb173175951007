package monitoring

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Registry holds every collector of the feedback tools. It is separate from
// the prometheus default registry so a CLI run only reports its own work.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// FramesParsed counts beamforming records decoded into frames, by source.
	FramesParsed = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csi_frames_parsed_total",
			Help: "Beamforming report records decoded into CSI frames",
		},
		[]string{"source"},
	)

	// ParseFailures counts records that could not be decoded, by failure kind.
	ParseFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csi_parse_failures_total",
			Help: "Beamforming report records rejected by the parser",
		},
		[]string{"kind"},
	)

	// RecordsSkipped counts log records that are not beamforming reports.
	RecordsSkipped = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "csi_records_skipped_total",
			Help: "Capture records skipped because they carry no beamforming report",
		},
	)

	// SubcarriersCompressed counts subcarriers decomposed, quantized and packed.
	SubcarriersCompressed = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "csi_subcarriers_compressed_total",
			Help: "Subcarriers turned into packed beamforming feedback",
		},
	)

	// CompressFailures counts frames whose compression aborted.
	CompressFailures = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "csi_compress_failures_total",
			Help: "Frames whose feedback compression failed",
		},
	)

	// CompressSeconds observes wall time per compressed frame.
	CompressSeconds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "csi_compress_seconds",
			Help:    "Time to compress the feedback of one frame",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
	)
)

// WriteMetrics dumps every registered metric to w in the text exposition
// format.
func WriteMetrics(w io.Writer) error {
	families, err := Registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
