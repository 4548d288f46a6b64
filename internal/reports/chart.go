package reports

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/jjckrbbt/pharmatrade/internal/analytics"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var trendLineColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}

// TrendChartPNG draws the monthly value trend as a line chart.
func TrendChartPNG(title string, trend []analytics.MonthPoint) ([]byte, error) {
	if len(trend) == 0 {
		return nil, fmt.Errorf("cannot chart an empty trend")
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "Value (USD)"
	p.X.Label.Text = "Month"

	pts := make(plotter.XYs, len(trend))
	labels := make([]string, len(trend))
	for i, pt := range trend {
		pts[i].X = float64(i)
		pts[i].Y = pt.Value.InexactFloat64()
		labels[i] = pt.Month
	}

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build trend line: %w", err)
	}
	line.Color = trendLineColor
	points.Color = trendLineColor
	p.Add(line, points, plotter.NewGrid())
	p.NominalX(labels...)

	wt, err := p.WriterTo(9*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to render trend chart: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode trend chart: %w", err)
	}
	return buf.Bytes(), nil
}
