package chart

import (
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AirlineInsights/src/processor"
)

func requireSVG(t *testing.T, svg string, err error) {
	t.Helper()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(svg, "<svg"), "svg prefix: %.40q", svg)
	assert.Contains(t, svg, "</svg>")
}

func TestParseHex(t *testing.T) {
	assert.Equal(t, color.NRGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}, ParseHex("#1f77b4"))
	assert.Equal(t, color.NRGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}, ParseHex("1F77B4"))
	assert.Equal(t, fallback, ParseHex("#12"))
	assert.Equal(t, fallback, ParseHex("#zzzzzz"))
	assert.Equal(t, "#1f77b4", ToHex(ParseHex("#1f77b4")))
}

func TestScaleColors(t *testing.T) {
	items := []processor.BarItem{{Label: "a", Value: 1}, {Label: "b", Value: 5}, {Label: "c", Value: 10}}
	out := ScaleColors(items)
	require.Len(t, out, 3)
	for _, it := range out {
		assert.Regexp(t, `^#[0-9a-f]{6}$`, it.Color)
	}
	assert.NotEqual(t, out[0].Color, out[2].Color)
	assert.Empty(t, items[0].Color)

	same := ScaleColors([]processor.BarItem{{Value: 3}, {Value: 3}})
	assert.Equal(t, same[0].Color, same[1].Color)
	assert.Empty(t, ScaleColors(nil))
}

func TestSample(t *testing.T) {
	xs := make([]float64, 100)
	ys := make([]float64, 100)
	for i := range xs {
		xs[i], ys[i] = float64(i), float64(-i)
	}
	sx, sy := sample(xs, ys, 10)
	assert.Len(t, sx, 10)
	assert.Equal(t, []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90}, sx)
	assert.Equal(t, -sx[3], sy[3])

	sx, _ = sample(xs[:5], ys, 10)
	assert.Len(t, sx, 5)
}

func TestValueRange(t *testing.T) {
	lo, hi := valueRange([]float64{0, 10})
	assert.InDelta(t, -0.5, lo, 1e-9)
	assert.InDelta(t, 10.5, hi, 1e-9)

	lo, hi = valueRange([]float64{3}, nil)
	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 4.0, hi)

	lo, hi = valueRange()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)
}

func TestStripProlog(t *testing.T) {
	assert.Equal(t, "<svg/>", stripProlog(`<?xml version="1.0"?>`+"\n<svg/>"))
	assert.Equal(t, "<svg/>", stripProlog("<svg/>"))
}

func TestClusterScatter(t *testing.T) {
	svg, err := ClusterScatter([]processor.ScatterSeries{
		{Name: "🧳 Budget Nomads", Color: "#1f77b4", X: []float64{0, 1, 2}, Y: []float64{0, 1, 4}},
		{Name: "👑 Elite Gliders", Color: "#ff7f0e", X: []float64{5, 6}, Y: []float64{-1, -2}},
	})
	requireSVG(t, svg, err)

	_, err = ClusterScatter(nil)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestClusterScatterDownsamples(t *testing.T) {
	n := MaxScatterPoints * 2
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range xs {
		xs[i], ys[i] = float64(i), math.Sin(float64(i))
	}
	svg, err := ClusterScatter([]processor.ScatterSeries{{Name: "c", Color: "#1f77b4", X: xs, Y: ys}})
	requireSVG(t, svg, err)
}

func TestClusterRadar(t *testing.T) {
	svg, err := ClusterRadar(processor.Radar{
		Attributes: processor.RadarAttributes,
		Series: []processor.RadarSeries{
			{Name: "a", Color: "#1f77b4", Values: []float64{1, 2, 3}, Scaled: []float64{0.5, 1, 1}},
			{Name: "b", Color: "#ff7f0e", Values: []float64{2, 1, 1}, Scaled: []float64{1, 0.5, 0.33}},
		},
	})
	requireSVG(t, svg, err)
	assert.Contains(t, svg, processor.RadarAttributes[0])

	_, err = ClusterRadar(processor.Radar{Attributes: []string{"x", "y"}})
	assert.Error(t, err)
}

func TestBars(t *testing.T) {
	items := []processor.BarItem{
		{Label: "Economy", Value: 4400, Color: "#636efa"},
		{Label: "Business", Value: 41000, Color: "#ef553b"},
	}
	svg, err := Bars("Average Price per Travel Class", items, false)
	requireSVG(t, svg, err)
	assert.Contains(t, svg, "Business")

	svg, err = Bars("Top 15 Most Frequent Routes", ScaleColors(items), true)
	requireSVG(t, svg, err)

	svg, err = Bars("zero", []processor.BarItem{{Label: "x", Value: 0}, {Label: "y", Value: math.NaN()}}, false)
	requireSVG(t, svg, err)

	_, err = Bars("empty", nil, false)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestCountLabels(t *testing.T) {
	out := CountLabels([]processor.BarItem{{Label: "0", Value: 2}, {Label: "1", Value: 12}})
	assert.Equal(t, "0 (2)", out[0].Label)
	assert.Equal(t, "1 (12)", out[1].Label)
}

func TestDaysLeftTrend(t *testing.T) {
	svg, err := DaysLeftTrend(processor.DaysLeft{
		X:      []float64{1, 10, 20, math.NaN()},
		Y:      []float64{6000, 5000, 4000, 1},
		TrendX: []float64{1, 10, 20},
		TrendY: []float64{5900, 5000, 4100},
	})
	requireSVG(t, svg, err)
	assert.Contains(t, svg, "LOWESS trend")

	_, err = DaysLeftTrend(processor.DaysLeft{X: []float64{math.NaN()}, Y: []float64{1}})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestBoxes(t *testing.T) {
	svg, err := Boxes("Price by Departure Time", "price", []processor.BoxGroup{
		{Label: "Morning", Values: []float64{5000, 6000, 7000}},
		{Label: "Night", Values: nil},
		{Label: "Evening", Values: []float64{40000, 42000, math.NaN()}},
	})
	requireSVG(t, svg, err)

	_, err = Boxes("empty", "price", []processor.BoxGroup{{Label: "x"}})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestGroupedBoxes(t *testing.T) {
	svg, err := GroupedBoxes("Price by Airline", "price", []processor.BoxGroup{
		{Label: "Indigo", Group: "Early Morning", Color: "#636efa", Values: []float64{6000, 6500}},
		{Label: "Indigo", Group: "Morning", Color: "#ef553b", Values: []float64{5000}},
		{Label: "Vistara", Group: "Evening", Color: "#ab63fa", Values: []float64{40000, 42000}},
	})
	requireSVG(t, svg, err)
	assert.Contains(t, svg, "Evening")

	_, err = GroupedBoxes("empty", "price", nil)
	assert.ErrorIs(t, err, ErrEmpty)
}
