// Package chart renders calibration runs as PNG scatter plots with their fitted line.
package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/lox/flowcal/internal/calibration"
)

const (
	Width  = 640
	Height = 480

	marginLeft   = 90
	marginRight  = 30
	marginTop    = 40
	marginBottom = 60
	ticks        = 4
)

var (
	background = color.RGBA{255, 255, 255, 255}
	axisColor  = color.RGBA{60, 60, 60, 255}
	gridColor  = color.RGBA{225, 225, 225, 255}
	pointColor = color.RGBA{33, 102, 172, 255}
	lineColor  = color.RGBA{214, 96, 77, 255}
	textColor  = color.RGBA{30, 30, 30, 255}
)

// Data is what gets plotted.
type Data struct {
	Title  string
	XLabel string
	YLabel string
	Points []calibration.Point
	Fit    calibration.BestFit
}

// FromRecord builds chart data for a normalized record using its schema's fit axes.
func FromRecord(rec calibration.Record, s calibration.Schema) Data {
	agg := calibration.Aggregate(rec.ComputedRows, s)
	return Data{
		Title:  s.Title,
		XLabel: s.FitX,
		YLabel: s.FitY,
		Points: calibration.FitPoints(rec.ComputedRows, s),
		Fit:    agg.BestFit,
	}
}

// bounds is the data window mapped onto the plot area.
type bounds struct {
	minX, maxX, minY, maxY float64
}

func dataBounds(points []calibration.Point) bounds {
	b := bounds{minX: math.Inf(1), maxX: math.Inf(-1), minY: math.Inf(1), maxY: math.Inf(-1)}
	for _, p := range points {
		b.minX = math.Min(b.minX, p.X)
		b.maxX = math.Max(b.maxX, p.X)
		b.minY = math.Min(b.minY, p.Y)
		b.maxY = math.Max(b.maxY, p.Y)
	}
	if len(points) == 0 {
		return bounds{0, 1, 0, 1}
	}
	b.minX, b.maxX = pad(b.minX, b.maxX)
	b.minY, b.maxY = pad(b.minY, b.maxY)
	return b
}

// pad widens a range by 5% on each side, or by a unit around a single value.
func pad(lo, hi float64) (float64, float64) {
	span := hi - lo
	if span == 0 {
		if lo == 0 {
			return -1, 1
		}
		span = math.Abs(lo)
		return lo - span/2, hi + span/2
	}
	return lo - span*0.05, hi + span*0.05
}

func (b bounds) px(x float64) int {
	w := float64(Width - marginLeft - marginRight)
	return marginLeft + int(math.Round((x-b.minX)/(b.maxX-b.minX)*w))
}

func (b bounds) py(y float64) int {
	h := float64(Height - marginTop - marginBottom)
	return Height - marginBottom - int(math.Round((y-b.minY)/(b.maxY-b.minY)*h))
}

// fitLine returns the line to draw for a fit. A pairwise slope has no intercept of its own,
// so it is drawn through the centroid of the points.
func fitLine(d Data) (calibration.Line, bool) {
	if !d.Fit.OK || len(d.Points) == 0 {
		return calibration.Line{}, false
	}
	if d.Fit.Intercept != nil {
		return calibration.Line{Slope: d.Fit.Slope, Intercept: *d.Fit.Intercept}, true
	}
	var sx, sy float64
	for _, p := range d.Points {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(d.Points))
	return calibration.Line{Slope: d.Fit.Slope, Intercept: sy/n - d.Fit.Slope*sx/n}, true
}

// Render draws the chart and encodes it as PNG.
func Render(d Data) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	b := dataBounds(d.Points)
	drawAxes(img, b, d)

	if line, ok := fitLine(d); ok {
		drawSegment(img, b.px(b.minX), b.py(line.At(b.minX)), b.px(b.maxX), b.py(line.At(b.maxX)), lineColor)
	}

	for _, p := range d.Points {
		fillSquare(img, b.px(p.X), b.py(p.Y), 3, pointColor)
	}

	drawText(img, d.Title, marginLeft, marginTop-18, textColor)
	if d.Fit.OK {
		label := "slope " + calibration.FormatSlope(d.Fit)
		drawText(img, label, Width-marginRight-textWidth(label), marginTop-18, lineColor)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func drawAxes(img *image.RGBA, b bounds, d Data) {
	left, right := marginLeft, Width-marginRight
	top, bottom := marginTop, Height-marginBottom

	for i := 0; i <= ticks; i++ {
		fx := b.minX + (b.maxX-b.minX)*float64(i)/ticks
		fy := b.minY + (b.maxY-b.minY)*float64(i)/ticks
		x, y := b.px(fx), b.py(fy)

		drawSegment(img, x, top, x, bottom, gridColor)
		drawSegment(img, left, y, right, y, gridColor)

		xl := tickLabel(fx)
		drawText(img, xl, x-textWidth(xl)/2, bottom+16, textColor)
		yl := tickLabel(fy)
		drawText(img, yl, left-textWidth(yl)-6, y+4, textColor)
	}

	drawSegment(img, left, bottom, right, bottom, axisColor)
	drawSegment(img, left, top, left, bottom, axisColor)

	drawText(img, d.XLabel, (left+right-textWidth(d.XLabel))/2, Height-16, textColor)
	drawText(img, d.YLabel, 8, marginTop-4, textColor)
}

func tickLabel(v float64) string {
	if v == 0 {
		return "0"
	}
	return fmt.Sprintf("%.2e", v)
}

func drawSegment(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx, dy := x1-x0, y1-y0
	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		setClipped(img, x0, y0, c)
		return
	}
	for i := 0; i <= steps; i++ {
		x := x0 + int(math.Round(float64(dx*i)/float64(steps)))
		y := y0 + int(math.Round(float64(dy*i)/float64(steps)))
		setClipped(img, x, y, c)
	}
}

func fillSquare(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			setClipped(img, x, y, c)
		}
	}
}

// setClipped ignores pixels outside the plot area so lines past the data window are cut.
func setClipped(img *image.RGBA, x, y int, c color.RGBA) {
	if x < marginLeft || x > Width-marginRight || y < marginTop || y > Height-marginBottom {
		return
	}
	img.SetRGBA(x, y, c)
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func textWidth(text string) int {
	return font.MeasureString(basicfont.Face7x13, text).Round()
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
