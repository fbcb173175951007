// Package report renders compressed feedback as PNG plots (gonum/plot) and
// interactive HTML charts (go-echarts).
package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/banshee-data/csi.report/internal/beamform"
	"github.com/banshee-data/csi.report/internal/feedback"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// AnglePlotter writes one angle-per-subcarrier PNG per frame.
type AnglePlotter struct {
	outputDir string
}

// NewAnglePlotter creates outputDir if needed.
func NewAnglePlotter(outputDir string) (*AnglePlotter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plot dir %s: %w", outputDir, err)
	}
	return &AnglePlotter{outputDir: outputDir}, nil
}

// PlotFrame draws the decomposed angles of every subcarrier (solid) and
// their quantized reconstructions (dashed) and returns the file written.
func (ap *AnglePlotter) PlotFrame(frameIndex int, r *feedback.Report) (string, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Frame %d - Feedback Angles (psi %d bits)", frameIndex, r.Bits)
	p.X.Label.Text = "Subcarrier"
	p.Y.Label.Text = "Angle (rad)"
	p.Legend.Top = true

	colors := generateColors(beamform.NumAngles)

	for i := 0; i < beamform.NumAngles; i++ {
		exact := make(plotter.XYs, len(r.Subcarriers))
		quantized := make(plotter.XYs, len(r.Subcarriers))
		for sc, s := range r.Subcarriers {
			exact[sc] = plotter.XY{X: float64(sc), Y: s.Angles[i].Value}
			quantized[sc] = plotter.XY{X: float64(sc), Y: s.Quantized[i].Angle}
		}

		exactLine, err := plotter.NewLine(exact)
		if err != nil {
			return "", fmt.Errorf("%s line: %w", beamform.PositionName(i), err)
		}
		exactLine.Color = colors[i]
		exactLine.Width = vg.Points(1)

		quantLine, err := plotter.NewLine(quantized)
		if err != nil {
			return "", fmt.Errorf("%s quantized line: %w", beamform.PositionName(i), err)
		}
		quantLine.Color = colors[i]
		quantLine.Width = vg.Points(1)
		quantLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		quantLine.StepStyle = plotter.MidStep

		p.Add(exactLine, quantLine)
		p.Legend.Add(beamform.PositionName(i), exactLine)
	}
	p.Add(plotter.NewGrid())
	p.Legend.ThumbnailWidth = vg.Points(20)

	file := filepath.Join(ap.outputDir, fmt.Sprintf("frame_%05d_angles.png", frameIndex))
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", file, err)
	}
	return file, nil
}

// generateColors creates a palette of n distinct colors.
func generateColors(n int) []color.Color {
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hsvToRGB(hue, 0.8, 0.85)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

func hsvToRGB(h, s, v float64) (uint8, uint8, uint8) {
	i := int(h * 6)
	f := h*6 - float64(i)
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var r, g, b float64
	switch i % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return uint8(r * 255), uint8(g * 255), uint8(b * 255)
}
