// cluster.go
package chart

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"AirlineInsights/src/processor"
)

// ClusterScatter 投影平面上的聚类分布，每个聚类一种颜色
func ClusterScatter(series []processor.ScatterSeries) (string, error) {
	p := plot.New()
	p.X.Label.Text = "PCA 1"
	p.Y.Label.Text = "PCA 2"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	total := 0
	for _, s := range series {
		total += len(s.X)
	}
	if total == 0 {
		return "", ErrEmpty
	}

	for _, s := range series {
		if len(s.X) == 0 {
			continue
		}
		limit := 0
		if total > MaxScatterPoints {
			limit = int(math.Max(1, float64(MaxScatterPoints*len(s.X)/total)))
		}
		xs, ys := sample(s.X, s.Y, limit)

		points := make(plotter.XYs, len(xs))
		for i := range xs {
			points[i].X = xs[i]
			points[i].Y = ys[i]
		}
		scatter, err := plotter.NewScatter(points)
		if err != nil {
			return "", fmt.Errorf("聚类 %s 散点创建失败: %w", s.Name, err)
		}
		scatter.GlyphStyle.Color = ParseHex(s.Color)
		scatter.GlyphStyle.Radius = vg.Points(2)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}

		p.Add(scatter)
		p.Legend.Add(s.Name, scatter)
	}
	return renderPlot(p)
}

// spokeAngle 第 i 条辐射轴的角度，第一条朝上，顺时针排列
func spokeAngle(i, n int) float64 {
	return math.Pi/2 - 2*math.Pi*float64(i)/float64(n)
}

// ClusterRadar 雷达图，每个维度按各聚类最大值归一
func ClusterRadar(radar processor.Radar) (string, error) {
	p := plot.New()
	p.HideAxes()
	p.Legend.Top = true
	p.X.Min, p.X.Max = -1.35, 1.35
	p.Y.Min, p.Y.Max = -1.25, 1.25

	n := len(radar.Attributes)
	if n < 3 {
		return "", fmt.Errorf("雷达图至少需要 3 个维度, 当前 %d", n)
	}

	grid := ParseHex("#cccccc")
	for _, r := range []float64{0.25, 0.5, 0.75, 1} {
		ring := make(plotter.XYs, n+1)
		for i := 0; i <= n; i++ {
			a := spokeAngle(i%n, n)
			ring[i].X, ring[i].Y = r*math.Cos(a), r*math.Sin(a)
		}
		line, err := plotter.NewLine(ring)
		if err != nil {
			return "", err
		}
		line.Color = grid
		p.Add(line)
	}

	labels := plotter.XYLabels{}
	for i, attr := range radar.Attributes {
		a := spokeAngle(i, n)
		spoke, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: math.Cos(a), Y: math.Sin(a)}})
		if err != nil {
			return "", err
		}
		spoke.Color = grid
		p.Add(spoke)

		labels.XYs = append(labels.XYs, plotter.XY{X: 1.12 * math.Cos(a), Y: 1.12 * math.Sin(a)})
		labels.Labels = append(labels.Labels, attr)
	}
	names, err := plotter.NewLabels(labels)
	if err != nil {
		return "", err
	}
	for i := range names.TextStyle {
		names.TextStyle[i].XAlign = draw.XCenter
	}
	p.Add(names)

	for _, s := range radar.Series {
		pts := make(plotter.XYs, n)
		for i := 0; i < n && i < len(s.Scaled); i++ {
			a := spokeAngle(i, n)
			pts[i].X, pts[i].Y = s.Scaled[i]*math.Cos(a), s.Scaled[i]*math.Sin(a)
		}
		poly, err := plotter.NewPolygon(pts)
		if err != nil {
			return "", fmt.Errorf("聚类 %s 雷达图创建失败: %w", s.Name, err)
		}
		c := ParseHex(s.Color)
		poly.Color = withAlpha(c, 0x55)
		poly.LineStyle.Color = c
		poly.LineStyle.Width = vg.Points(1.5)
		p.Add(poly)
		p.Legend.Add(s.Name, poly)
	}
	return renderPlot(p)
}
