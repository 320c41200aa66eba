package chart

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Renderer draws a closing-price series as an image.
type Renderer interface {
	Render(w io.Writer, title string, bars []Bar) error
}

// PlotRenderer renders PNG line charts with gonum/plot.
type PlotRenderer struct {
	Width      vg.Length
	Height     vg.Length
	TimeFormat string
}

// NewPlotRenderer returns a 10x5 inch renderer.
func NewPlotRenderer() *PlotRenderer {
	return &PlotRenderer{
		Width:      10 * vg.Inch,
		Height:     5 * vg.Inch,
		TimeFormat: "2006-01-02",
	}
}

func (r *PlotRenderer) Render(w io.Writer, title string, bars []Bar) error {
	if len(bars) == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Date"
	p.Y.Label.Text = "Price (INR)"
	p.X.Tick.Marker = plot.TimeTicks{Format: r.TimeFormat}
	p.Add(plotter.NewGrid())

	points := make(plotter.XYs, len(bars))
	for i, bar := range bars {
		points[i].X = float64(bar.Time.Unix())
		points[i].Y = bar.Close
	}

	line, err := plotter.NewLine(points)
	if err != nil {
		return fmt.Errorf("build line: %w", err)
	}
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}

	p.Add(line)
	p.Legend.Add("Close Price", line)
	p.Legend.Top = true

	writer, err := p.WriterTo(r.Width, r.Height, "png")
	if err != nil {
		return fmt.Errorf("prepare png: %w", err)
	}

	if _, err := writer.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}

	return nil
}
