package monitor

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// RenderPNG draws the probe series as one line per (index, pixel) and
// saves a PNG. Nodata samples are left out of the line; the line joins
// the neighbouring valid samples straight across them.
func RenderPNG(path string, series []ProbeSeries) error {
	if len(series) == 0 {
		return fmt.Errorf("no probe series to plot")
	}

	p := plot.New()
	p.Title.Text = "Index time series"
	p.X.Label.Text = "date index"
	p.Y.Label.Text = "scaled index value"
	p.Add(plotter.NewGrid())

	for i, s := range series {
		pts := make(plotter.XYs, 0, len(s.Values))
		for t, v := range s.Values {
			if v == s.Nodata {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(t), Y: float64(v)})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to build line for %s px %d: %w", s.Index, s.Pixel, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s px %d", s.Index, s.Pixel), line)
	}

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}

// RenderHTML writes an interactive line chart of the probe series.
func RenderHTML(path string, series []ProbeSeries) error {
	if len(series) == 0 {
		return fmt.Errorf("no probe series to chart")
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Index time series", Width: "1100px", Height: "550px"}),
		charts.WithTitleOpts(opts.Title{Title: "Index time series", Subtitle: fmt.Sprintf("series=%d dates=%d", len(series), len(series[0].Values))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "date index"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "scaled value"}),
	)

	dates := make([]string, len(series[0].Values))
	for t := range dates {
		dates[t] = fmt.Sprintf("%d", t)
	}
	line.SetXAxis(dates)

	for _, s := range series {
		data := make([]opts.LineData, len(s.Values))
		for t, v := range s.Values {
			if v == s.Nodata {
				data[t] = opts.LineData{Value: nil}
				continue
			}
			data[t] = opts.LineData{Value: v}
		}
		line.AddSeries(fmt.Sprintf("%s px %d", s.Index, s.Pixel), data)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()

	if err := line.Render(f); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
