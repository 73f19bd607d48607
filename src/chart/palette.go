// Package chart 将统计结果渲染为可内嵌页面的 SVG
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"strconv"
	"strings"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/vg"

	"AirlineInsights/src/processor"
)

const (
	// MaxScatterPoints 散点图最多绘制的点数，超过时等距抽样
	MaxScatterPoints = 4000

	width  = 7 * vg.Inch
	height = 4.5 * vg.Inch

	pixelWidth  = 720
	pixelHeight = 420
)

// ErrEmpty 没有可绘制的数据
var ErrEmpty = errors.New("no data to plot")

var fallback = color.NRGBA{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff}

// ParseHex 解析 #rrggbb，格式错误时返回灰色
func ParseHex(s string) color.NRGBA {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return fallback
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fallback
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// toDrawing 转为 go-chart 使用的颜色
func toDrawing(c color.Color) drawing.Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return drawing.Color{R: n.R, G: n.G, B: n.B, A: n.A}
}

func withAlpha(c color.NRGBA, a uint8) color.NRGBA {
	c.A = a
	return c
}

// ToHex 颜色转为 #rrggbb
func ToHex(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
}

// ScaleColors 按数值在黑体色带上着色，两端各留出一段避免纯黑和纯白
func ScaleColors(items []processor.BarItem) []processor.BarItem {
	if len(items) == 0 {
		return items
	}
	lo, hi := items[0].Value, items[0].Value
	for _, it := range items {
		if it.Value < lo {
			lo = it.Value
		}
		if it.Value > hi {
			hi = it.Value
		}
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	cm := moreland.BlackBody()
	cm.SetMin(lo - 0.2*span)
	cm.SetMax(hi + 0.15*span)

	out := make([]processor.BarItem, len(items))
	for i, it := range items {
		out[i] = it
		c, err := cm.At(it.Value)
		if err != nil {
			out[i].Color = ToHex(fallback)
			continue
		}
		out[i].Color = ToHex(c)
	}
	return out
}

// sample 等距抽样到最多 limit 个点
func sample(xs, ys []float64, limit int) ([]float64, []float64) {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	if limit <= 0 || n <= limit {
		return xs[:n], ys[:n]
	}
	outX := make([]float64, 0, limit)
	outY := make([]float64, 0, limit)
	step := float64(n) / float64(limit)
	for i := 0; i < limit; i++ {
		j := int(float64(i) * step)
		outX = append(outX, xs[j])
		outY = append(outY, ys[j])
	}
	return outX, outY
}

// renderPlot 输出 gonum 图表的 SVG 文本，去掉 XML 声明以便内嵌
func renderPlot(p *plot.Plot) (string, error) {
	wt, err := p.WriterTo(width, height, "svg")
	if err != nil {
		return "", fmt.Errorf("创建SVG失败: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("渲染SVG失败: %w", err)
	}
	return stripProlog(buf.String()), nil
}

// renderer go-chart 的 Chart 与 BarChart
type renderer interface {
	Render(rp gochart.RendererProvider, w io.Writer) error
}

// renderChart 输出 go-chart 图表的 SVG 文本
func renderChart(r renderer) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(gochart.SVG, &buf); err != nil {
		return "", err
	}
	return stripProlog(buf.String()), nil
}

func stripProlog(svg string) string {
	if i := strings.Index(svg, "<svg"); i > 0 {
		return svg[i:]
	}
	return svg
}

// valueRange 给数据留出边距，避免零跨度
func valueRange(values ...[]float64) (lo, hi float64) {
	first := true
	for _, vs := range values {
		for _, v := range vs {
			if first {
				lo, hi, first = v, v, false
				continue
			}
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	if first {
		return 0, 1
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = 1
	}
	return lo - pad, hi + pad
}
