package web

import (
	"errors"
	"html/template"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"AirlineInsights/src/chart"
	"AirlineInsights/src/processor"
	"AirlineInsights/src/report"
)

const (
	segmentationMissingMsg = "🚫 Segmentation data files not found. Please run the preprocessing script first."
	analysisMissingMsg     = "🚫 airline_analysis_dataset.csv not found. Please run the preprocessing script."
	noDataMsg              = "No data to display."
)

type modeOption struct {
	Value   report.Mode
	Label   string
	Checked bool
}

type tableView struct {
	Columns []string
	Numeric []bool
	Rows    [][]string
}

type section struct {
	Heading string
	Table   *tableView
	Chart   template.HTML
	Note    string
}

// page 模板数据
type page struct {
	Title    string
	Mode     report.Mode
	Modes    []modeOption
	Error    string
	Warning  string
	Sections []section
	Footer   string
}

func newPage(mode report.Mode, footer string) *page {
	p := &page{Title: mode.Title(), Mode: mode, Footer: footer}
	for _, m := range report.Modes {
		p.Modes = append(p.Modes, modeOption{Value: m, Label: m.Label(), Checked: m == mode})
	}
	return p
}

var printer = message.NewPrinter(language.English)

// formatCell 千分位，浮点数两位小数
func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		if math.IsNaN(x) {
			return ""
		}
		return printer.Sprintf("%.2f", x)
	case int:
		return printer.Sprintf("%d", x)
	case string:
		return x
	}
	return printer.Sprint(v)
}

func newTableView(t processor.Table) *tableView {
	tv := &tableView{Columns: t.Columns, Numeric: make([]bool, len(t.Columns))}
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
			if i < len(tv.Numeric) {
				switch v.(type) {
				case int, float64:
					tv.Numeric[i] = true
				}
			}
		}
		tv.Rows = append(tv.Rows, cells)
	}
	return tv
}

func (p *page) table(heading string, t processor.Table) {
	p.Sections = append(p.Sections, section{Heading: heading, Table: newTableView(t)})
}

// chart 没有数据时显示提示，其它错误向上返回
func (p *page) chart(heading string, svg string, err error) error {
	switch {
	case errors.Is(err, chart.ErrEmpty):
		p.Sections = append(p.Sections, section{Heading: heading, Note: noDataMsg})
	case err != nil:
		return err
	default:
		p.Sections = append(p.Sections, section{Heading: heading, Chart: template.HTML(svg)})
	}
	return nil
}

func travelerSections(p *page, t *processor.Traveler) error {
	p.table("📊 Cluster Averages", t.Averages)
	p.table("🔎 Sample Profiles", t.Samples)

	svg, err := chart.ClusterScatter(t.Scatter)
	if err := p.chart("🎨 Visual Cluster Distribution", svg, err); err != nil {
		return err
	}
	svg, err = chart.ClusterRadar(t.Radar)
	if err := p.chart("📡 Cluster Radar Profiles", svg, err); err != nil {
		return err
	}
	svg, err = chart.Bars("Avg Flight Price by Stop Count", t.StopPrices, false)
	return p.chart("💰 Avg Flight Price by Stop Count", svg, err)
}

func analystSections(p *page, a *processor.Analyst) error {
	if a.Performance != nil {
		p.table("🏆 Airline Performance", *a.Performance)
	}
	p.table("💸 Top Profitable Routes", a.TopRoutes)

	steps := []struct {
		heading string
		render  func() (string, error)
	}{
		{"🕒 Departure Time vs Price", func() (string, error) {
			return chart.Boxes("Price by Departure Time", "price", a.DepartureBoxes)
		}},
		{"🎫 Economy vs Business Pricing", func() (string, error) {
			return chart.Bars("Average Price per Travel Class", a.ClassPrices, false)
		}},
		{"⏳ Price Trend by Days Left", func() (string, error) {
			return chart.DaysLeftTrend(a.DaysLeft)
		}},
		{"✈️ Number of Flights by Stop Count", func() (string, error) {
			return chart.Bars("Number of Flights by Stop Count", chart.CountLabels(a.StopCounts), false)
		}},
		{"💸 Price Distribution by Airline", func() (string, error) {
			return chart.GroupedBoxes("Price Distribution by Airline and Departure Time", "price", a.AirlineBoxes)
		}},
		{"🧭 Top 15 Most Frequent Routes", func() (string, error) {
			return chart.Bars("Top 15 Most Frequent Routes", chart.ScaleColors(a.FrequentRoutes), true)
		}},
	}
	for _, st := range steps {
		svg, err := st.render()
		if err := p.chart(st.heading, svg, err); err != nil {
			return err
		}
	}
	return nil
}
