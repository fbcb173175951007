package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/csi.report/internal/beamform"
	"github.com/banshee-data/csi.report/internal/feedback"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// FrameFeedback pairs a report with the record it came from.
type FrameFeedback struct {
	RecordIndex int
	Report      *feedback.Report
}

// RenderCodeChart writes an HTML page with one line chart per frame showing
// the quantization code of every angle across subcarriers, followed by a bar
// chart of the packed width per frame.
func RenderCodeChart(w io.Writer, title string, frames []FrameFeedback) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to chart")
	}

	subcarriers := make([]string, len(frames[0].Report.Subcarriers))
	for sc := range subcarriers {
		subcarriers[sc] = strconv.Itoa(sc)
	}

	page := components.NewPage()
	page.PageTitle = title

	for _, f := range frames {
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
			charts.WithTitleOpts(opts.Title{
				Title:    fmt.Sprintf("Record %d", f.RecordIndex),
				Subtitle: fmt.Sprintf("psi bits=%d phi bits=%d", f.Report.Bits, f.Report.Bits+2),
			}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "Subcarrier", NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Name: "Code", NameLocation: "middle", NameGap: 30}),
		)
		line.SetXAxis(subcarriers)

		for i := 0; i < beamform.NumAngles; i++ {
			data := make([]opts.LineData, len(f.Report.Subcarriers))
			for sc, s := range f.Report.Subcarriers {
				data[sc] = opts.LineData{Value: s.Quantized[i].K}
			}
			line.AddSeries(beamform.PositionName(i), data)
		}
		page.AddCharts(line)
	}

	x := make([]string, len(frames))
	y := make([]opts.BarData, len(frames))
	for i, f := range frames {
		x[i] = strconv.Itoa(f.RecordIndex)
		y[i] = opts.BarData{Value: f.Report.Subcarriers[0].Packed.TotalBits()}
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: "Packed bits per subcarrier"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("bits", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	page.AddCharts(bar)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}
