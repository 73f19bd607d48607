package chart

import (
	"fmt"
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"AirlineInsights/src/processor"
)

const (
	barWidth   = 40
	barSpacing = 24
)

// CountLabels 在标签后附上计数，如 "0 (2)"
func CountLabels(items []processor.BarItem) []processor.BarItem {
	out := make([]processor.BarItem, len(items))
	for i, it := range items {
		out[i] = it
		out[i].Label = fmt.Sprintf("%s (%d)", it.Label, int(math.Round(it.Value)))
	}
	return out
}

// Bars 柱状图，rotate 为 true 时 X 轴标签倾斜 45 度
func Bars(title string, items []processor.BarItem, rotate bool) (string, error) {
	if len(items) == 0 {
		return "", ErrEmpty
	}

	top := 0.0
	bars := make([]gochart.Value, 0, len(items))
	for _, it := range items {
		v := it.Value
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		if v > top {
			top = v
		}
		c := toDrawing(ParseHex(it.Color))
		bars = append(bars, gochart.Value{
			Label: it.Label,
			Value: v,
			Style: gochart.Style{FillColor: c, StrokeColor: c, StrokeWidth: 1},
		})
	}
	if top == 0 {
		top = 1
	}

	w := len(items)*(barWidth+barSpacing) + 200
	if w < pixelWidth {
		w = pixelWidth
	}
	h := pixelHeight
	xStyle := gochart.Style{FontSize: 9}
	if rotate {
		xStyle.TextRotationDegrees = 45
		h += 120
	}

	bc := gochart.BarChart{
		Title:      title,
		Width:      w,
		Height:     h,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      xStyle,
		YAxis: gochart.YAxis{
			Range: &gochart.ContinuousRange{Min: 0, Max: top * 1.1},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		Bars: bars,
	}
	return renderChart(bc)
}

// DaysLeftTrend 提前天数与票价的散点及 LOWESS 趋势线
func DaysLeftTrend(d processor.DaysLeft) (string, error) {
	xs, ys := finite(d.X, d.Y)
	if len(xs) == 0 {
		return "", ErrEmpty
	}
	xs, ys = sample(xs, ys, MaxScatterPoints)

	series := []gochart.Series{
		gochart.ContinuousSeries{
			Name:    "price",
			XValues: xs,
			YValues: ys,
			Style: gochart.Style{
				StrokeColor: drawing.ColorTransparent,
				DotWidth:    2,
				DotColor:    toDrawing(withAlpha(ParseHex("#636efa"), 0x66)),
			},
		},
	}
	if len(d.TrendX) > 1 {
		series = append(series, gochart.ContinuousSeries{
			Name:    "LOWESS trend",
			XValues: d.TrendX,
			YValues: d.TrendY,
			Style: gochart.Style{
				StrokeColor: toDrawing(ParseHex("#ef553b")),
				StrokeWidth: 2.5,
			},
		})
	}

	xMin, xMax := valueRange(xs, d.TrendX)
	yMin, yMax := valueRange(ys, d.TrendY)
	ch := gochart.Chart{
		Title:      "Price vs Days Left Before Departure",
		Width:      pixelWidth,
		Height:     pixelHeight,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		XAxis:      gochart.XAxis{Name: "days_left", Range: &gochart.ContinuousRange{Min: xMin, Max: xMax}},
		YAxis:      gochart.YAxis{Name: "price", Range: &gochart.ContinuousRange{Min: yMin, Max: yMax}},
		Series:     series,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}
	return renderChart(ch)
}

// finite 去掉任一坐标为 NaN 或 Inf 的点
func finite(xs, ys []float64) ([]float64, []float64) {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	outX := make([]float64, 0, n)
	outY := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) || math.IsInf(xs[i], 0) || math.IsInf(ys[i], 0) {
			continue
		}
		outX = append(outX, xs[i])
		outY = append(outY, ys[i])
	}
	return outX, outY
}
