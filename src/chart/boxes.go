package chart

import (
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"AirlineInsights/src/processor"
)

func finiteValues(values []float64) plotter.Values {
	out := make(plotter.Values, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Boxes 每组一个箱线图，按给定顺序排列在 X 轴
func Boxes(title, yLabel string, groups []processor.BoxGroup) (string, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel

	var names []string
	for _, g := range groups {
		values := finiteValues(g.Values)
		if len(values) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(30), float64(len(names)), values)
		if err != nil {
			return "", err
		}
		if g.Color != "" {
			box.FillColor = withAlpha(ParseHex(g.Color), 0x99)
		}
		p.Add(box)
		names = append(names, g.Label)
	}
	if len(names) == 0 {
		return "", ErrEmpty
	}
	p.NominalX(names...)
	return renderPlot(p)
}

// GroupedBoxes 按 Label 分类、按 Group 并排的箱线图，Group 以颜色区分并列入图例
func GroupedBoxes(title, yLabel string, groups []processor.BoxGroup) (string, error) {
	var labels, keys []string
	labelIdx := map[string]int{}
	keyIdx := map[string]int{}
	for _, g := range groups {
		if _, ok := labelIdx[g.Label]; !ok {
			labelIdx[g.Label] = len(labels)
			labels = append(labels, g.Label)
		}
		if _, ok := keyIdx[g.Group]; !ok {
			keyIdx[g.Group] = len(keys)
			keys = append(keys, g.Group)
		}
	}
	if len(labels) == 0 {
		return "", ErrEmpty
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel
	p.Legend.Top = true

	boxW := vg.Points(math.Min(20, 360/float64(len(labels)*len(keys))))
	legend := map[string]bool{}
	drawn := 0
	for _, g := range groups {
		values := finiteValues(g.Values)
		if len(values) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(boxW, float64(labelIdx[g.Label]), values)
		if err != nil {
			return "", err
		}
		box.Offset = vg.Length(float64(keyIdx[g.Group])-float64(len(keys)-1)/2) * boxW * 1.1
		box.FillColor = withAlpha(ParseHex(g.Color), 0x99)
		p.Add(box)
		drawn++

		if !legend[g.Group] {
			legend[g.Group] = true
			p.Legend.Add(g.Group, &plotter.Line{LineStyle: draw.LineStyle{Color: ParseHex(g.Color), Width: vg.Points(6)}})
		}
	}
	if drawn == 0 {
		return "", ErrEmpty
	}
	p.NominalX(labels...)
	return renderPlot(p)
}
