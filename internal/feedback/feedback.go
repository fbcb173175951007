// Package feedback turns the CSI tensor of one frame into the compressed
// beamforming feedback the driver applies, and expands that feedback back
// into angles and steering matrices.
//
// Each subcarrier goes through decomposition, quantization and bit packing
// in that order. Subcarriers are independent and are processed in parallel.
package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/csi.report/internal/beamform"
	"github.com/banshee-data/csi.report/internal/beamform/bitpack"
	"github.com/banshee-data/csi.report/internal/beamform/givens"
	"github.com/banshee-data/csi.report/internal/beamform/quant"
	"github.com/banshee-data/csi.report/internal/csi"
	"github.com/banshee-data/csi.report/internal/monitoring"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Defaults used when Options fields are left zero.
const (
	DefaultBits    = 3
	DefaultWorkers = 4
)

// Options controls Compress.
type Options struct {
	Bits    int // Psi quantization width; phi uses Bits+2. Zero means DefaultBits.
	Workers int // Subcarriers processed at once. Zero or less means DefaultWorkers.
}

func (o Options) withDefaults() Options {
	if o.Bits == 0 {
		o.Bits = DefaultBits
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	return o
}

// Subcarrier is the feedback of one subcarrier at every stage.
type Subcarrier struct {
	Angles    beamform.AngleSet
	Quantized [beamform.NumAngles]quant.QuantizedAngle
	Packed    bitpack.PackedSubcarrier
}

// Report is the compressed feedback of one frame.
type Report struct {
	Bits        int
	Subcarriers [csi.NumSubcarriers]Subcarrier
}

// Packed returns the packed value of every subcarrier in order.
func (r *Report) Packed() []bitpack.PackedSubcarrier {
	out := make([]bitpack.PackedSubcarrier, len(r.Subcarriers))
	for i := range r.Subcarriers {
		out[i] = r.Subcarriers[i].Packed
	}
	return out
}

// Compress decomposes, quantizes and packs every subcarrier of t. The tensor
// must be 3x3. Any subcarrier failure aborts the whole frame; no partial
// report is returned. Cancelling ctx stops further subcarriers from being
// scheduled.
func Compress(ctx context.Context, t csi.Tensor, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	nrx, ntx := t.Dims()
	if nrx != givens.Streams || ntx != givens.Streams {
		monitoring.CompressFailures.Inc()
		return nil, fmt.Errorf("%w: feedback needs a %dx%d tensor, got %dx%d",
			csi.ErrUnsupportedDimension, givens.Streams, givens.Streams, nrx, ntx)
	}
	if _, err := quant.Thresholds(beamform.TagPsi, opts.Bits); err != nil {
		monitoring.CompressFailures.Inc()
		return nil, err
	}

	start := time.Now()
	report := &Report{Bits: opts.Bits}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for sc := 0; sc < csi.NumSubcarriers; sc++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := compressSubcarrier(t.Subcarrier(sc), opts.Bits)
			if err != nil {
				return fmt.Errorf("subcarrier %d: %w", sc, err)
			}
			report.Subcarriers[sc] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		monitoring.CompressFailures.Inc()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		monitoring.CompressFailures.Inc()
		return nil, err
	}

	monitoring.SubcarriersCompressed.Add(csi.NumSubcarriers)
	monitoring.CompressSeconds.Observe(time.Since(start).Seconds())
	return report, nil
}

func compressSubcarrier(h *mat.CDense, bits int) (Subcarrier, error) {
	angles, err := givens.Decompose(h)
	if err != nil {
		return Subcarrier{}, err
	}
	qs, err := quant.QuantizeSet(angles, bits)
	if err != nil {
		return Subcarrier{}, err
	}
	packed, err := bitpack.Pack(bitpack.CodesFromQuantized(qs[:]), bits)
	if err != nil {
		return Subcarrier{}, err
	}
	return Subcarrier{Angles: angles, Quantized: qs, Packed: packed}, nil
}

// Expand unpacks and dequantizes packed feedback at the given psi width back
// into one reconstructed angle set per subcarrier. Only the packed values
// and widths are used, as a receiver of the feedback would.
func Expand(packed []bitpack.PackedSubcarrier, bits int) ([]beamform.AngleSet, error) {
	codes, err := bitpack.UnpackAll(packed)
	if err != nil {
		return nil, err
	}

	out := make([]beamform.AngleSet, len(codes))
	for sc, ks := range codes {
		if len(ks) != beamform.NumAngles {
			return nil, fmt.Errorf("%w: subcarrier %d has %d fields, want %d",
				csi.ErrUnsupportedDimension, sc, len(ks), beamform.NumAngles)
		}
		for i, k := range ks {
			tag := beamform.Layout3x3[i]
			angle, err := quant.Dequantize(k, tag, bits)
			if err != nil {
				return nil, fmt.Errorf("subcarrier %d %s: %w", sc, beamform.PositionName(i), err)
			}
			out[sc][i] = beamform.Angle{Tag: tag, Value: angle}
		}
	}
	return out, nil
}

// ExpandReport is Expand over a report's own packed values.
func ExpandReport(r *Report) ([]beamform.AngleSet, error) {
	return Expand(r.Packed(), r.Bits)
}

// SteeringMatrices rebuilds the 3x3 steering matrix of every subcarrier from
// its reconstructed angles.
func SteeringMatrices(sets []beamform.AngleSet) ([]*mat.CDense, error) {
	out := make([]*mat.CDense, len(sets))
	for sc, set := range sets {
		v, err := givens.Compose(set)
		if err != nil {
			return nil, fmt.Errorf("subcarrier %d: %w", sc, err)
		}
		out[sc] = v
	}
	return out, nil
}
