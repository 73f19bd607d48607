// analyst.go
package processor

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"AirlineInsights/src/config"
	"AirlineInsights/src/utils"
)

const (
	// TopRouteLimit 收益排行展示的航线数
	TopRouteLimit = 10
	// FrequentRouteLimit 热门航线展示数
	FrequentRouteLimit = 15
	// RouteSeparator 航线名称中出发地与目的地之间的分隔
	RouteSeparator = " → "
)

// AnalysisColumns 航司分析数据必需的列
var AnalysisColumns = []string{"airline", "source_city", "destination_city", "departure_time", "class", "stops", "duration", "days_left", "price"}

// DaysLeft 提前天数与票价的散点及趋势线
type DaysLeft struct {
	X      []float64 `json:"-"`
	Y      []float64 `json:"-"`
	TrendX []float64 `json:"trend_x"`
	TrendY []float64 `json:"trend_y"`
}

// Analyst 航司分析视角的全部表格和图表数据
type Analyst struct {
	Performance    *Table     `json:"performance,omitempty"`
	TopRoutes      Table      `json:"top_routes"`
	DepartureBoxes []BoxGroup `json:"departure_boxes"`
	ClassPrices    []BarItem  `json:"class_prices"`
	DaysLeft       DaysLeft   `json:"days_left"`
	StopCounts     []BarItem  `json:"stop_counts"`
	AirlineBoxes   []BoxGroup `json:"airline_boxes"`
	FrequentRoutes []BarItem  `json:"frequent_routes"`
}

// Tables 可导出的表格
func (a *Analyst) Tables() []Table {
	var out []Table
	if a.Performance != nil {
		out = append(out, *a.Performance)
	}
	out = append(out, a.TopRoutes)
	out = append(out, barTable("Average Price per Travel Class", []string{"Class", "price"}, a.ClassPrices, true))
	out = append(out, barTable("Number of Flights by Stop Count", []string{"stops", "Number of Flights"}, a.StopCounts, false))
	out = append(out, barTable("Top 15 Most Frequent Routes", []string{"Route", "Count"}, a.FrequentRoutes, false))
	return out
}

func barTable(title string, columns []string, items []BarItem, round bool) Table {
	t := Table{Title: title, Columns: columns}
	for _, b := range items {
		var v interface{} = int(b.Value)
		if round {
			v = Round2(b.Value)
		}
		t.Rows = append(t.Rows, []interface{}{b.Label, v})
	}
	return t
}

// PerformanceTable 航司绩效表原样展示
func PerformanceTable(df dataframe.DataFrame) *Table {
	t := FromDataFrame("Airline Performance", df)
	return &t
}

// BuildAnalyst 依次计算航司分析视角的各项统计
// 经停筛选之后的步骤使用筛选后的数据
func BuildAnalyst(df dataframe.DataFrame, dc *config.DataConfig) (*Analyst, error) {
	if err := requireColumns(df, "airline analysis dataset", AnalysisColumns...); err != nil {
		return nil, err
	}

	a := &Analyst{}
	var err error

	if a.TopRoutes, err = topRoutes(df); err != nil {
		return nil, err
	}

	labelled, err := withDepartureLabels(df, dc)
	if err != nil {
		return nil, err
	}
	a.DepartureBoxes = departureBoxes(labelled, dc)
	a.ClassPrices = classPrices(labelled, dc)
	a.DaysLeft = daysLeft(labelled)

	filtered, err := filterStops(labelled)
	if err != nil {
		return nil, err
	}
	a.StopCounts = stopCounts(filtered, dc)
	a.AirlineBoxes = airlineBoxes(filtered, dc)
	if a.FrequentRoutes, err = frequentRoutes(filtered); err != nil {
		return nil, err
	}
	return a, nil
}

// aggName 与 Aggregation 生成的列名一致
func aggName(col string, typ dataframe.AggregationType) string {
	return fmt.Sprintf("%s_%s", col, typ)
}

// topRoutes 按出发地+目的地汇总收益，总收入降序取前 10
// 城市缺失的行不参与分组，各指标只跳过本列的缺失值
func topRoutes(df dataframe.DataFrame) (Table, error) {
	t := Table{
		Title:   "Top Profitable Routes",
		Columns: []string{"source_city", "destination_city", "avg_price", "total_revenue", "avg_duration", "num_flights"},
	}

	keyed := dropMissing(df, "source_city", "destination_city")
	if keyed.Err != nil {
		return t, fmt.Errorf("筛选航线失败: %w", keyed.Err)
	}
	if keyed.Nrow() == 0 {
		return t, nil
	}

	groups := keyed.GroupBy("source_city", "destination_city")
	if groups.Err != nil {
		return t, fmt.Errorf("按航线分组失败: %w", groups.Err)
	}

	type route struct {
		source, destination string
		avgPrice, revenue   float64
		avgDuration         float64
		flights             int
	}
	var routes []route
	for _, g := range groups.GetGroups() {
		if g.Nrow() == 0 {
			continue
		}
		price := utils.NumericColumn(g, "price")
		routes = append(routes, route{
			source:      g.Col("source_city").Elem(0).String(),
			destination: g.Col("destination_city").Elem(0).String(),
			avgPrice:    nanMean(price),
			revenue:     nanSum(price),
			avgDuration: nanMean(utils.NumericColumn(g, "duration")),
			flights:     countPresent(g.Col("airline")),
		})
	}
	sort.Slice(routes, func(i, j int) bool {
		a, b := routes[i], routes[j]
		if a.revenue != b.revenue {
			return a.revenue > b.revenue
		}
		if a.source != b.source {
			return a.source < b.source
		}
		return a.destination < b.destination
	})

	if len(routes) > TopRouteLimit {
		routes = routes[:TopRouteLimit]
	}
	for _, r := range routes {
		t.Rows = append(t.Rows, []interface{}{
			r.source,
			r.destination,
			Round2(r.avgPrice),
			Round2(r.revenue),
			Round2(r.avgDuration),
			r.flights,
		})
	}
	return t, nil
}

// dropMissing 去掉指定列为缺失值的行
func dropMissing(df dataframe.DataFrame, cols ...string) dataframe.DataFrame {
	for _, col := range cols {
		df = df.Filter(dataframe.F{
			Colname:    col,
			Comparator: series.CompFunc,
			Comparando: func(el series.Element) bool { return !el.IsNA() },
		})
	}
	return df
}

// DepartureLabelColumn 起飞时段标签列
const DepartureLabelColumn = "departure_label"

// withDepartureLabels 按 departure_time 编码追加时段标签，未知编码为空
func withDepartureLabels(df dataframe.DataFrame, dc *config.DataConfig) (dataframe.DataFrame, error) {
	codes := utils.NumericColumn(df, "departure_time")
	labels := make([]string, len(codes))
	for i, c := range codes {
		if !math.IsNaN(c) && c == math.Trunc(c) {
			labels[i] = config.Label(dc.DepartureLabels, int(c))
		}
	}
	out := df.Mutate(series.New(labels, series.String, DepartureLabelColumn))
	if out.Err != nil {
		return df, fmt.Errorf("生成起飞时段失败: %w", out.Err)
	}
	return out, nil
}

// departureCode 标签在配置中的下标，用于排序和配色
func departureCode(dc *config.DataConfig, label string) int {
	for i, l := range dc.DepartureLabels {
		if l == label {
			return i
		}
	}
	return len(dc.DepartureLabels)
}

// departureBoxes 每个起飞时段的票价分布，按时段顺序
func departureBoxes(df dataframe.DataFrame, dc *config.DataConfig) []BoxGroup {
	labels := df.Col(DepartureLabelColumn).Records()
	price := utils.NumericColumn(df, "price")

	values := map[string][]float64{}
	for i, l := range labels {
		if l == "" || math.IsNaN(price[i]) {
			continue
		}
		values[l] = append(values[l], price[i])
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return departureCode(dc, keys[i]) < departureCode(dc, keys[j]) })

	out := make([]BoxGroup, 0, len(keys))
	for _, k := range keys {
		out = append(out, BoxGroup{Label: k, Values: values[k]})
	}
	return out
}

// classPrices 各舱位平均票价
func classPrices(df dataframe.DataFrame, dc *config.DataConfig) []BarItem {
	codes := utils.NumericColumn(df, "class")
	price := utils.NumericColumn(df, "price")

	byClass := map[int][]float64{}
	for i, c := range codes {
		if math.IsNaN(c) {
			continue
		}
		byClass[int(c)] = append(byClass[int(c)], price[i])
	}

	var out []BarItem
	for _, k := range intKeys(byClass) {
		label := config.Label(dc.ClassLabels, k)
		if label == "" {
			label = fmt.Sprintf("Class %d", k)
		}
		out = append(out, BarItem{Label: label, Value: nanMean(byClass[k]), Color: pick(dc.ClassColors, k)})
	}
	return out
}

// daysLeft 散点数据及 LOWESS 趋势线
func daysLeft(df dataframe.DataFrame) DaysLeft {
	x := utils.NumericColumn(df, "days_left")
	y := utils.NumericColumn(df, "price")

	d := DaysLeft{}
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		d.X = append(d.X, x[i])
		d.Y = append(d.Y, y[i])
	}
	d.TrendX, d.TrendY = Lowess(d.X, d.Y, LowessFrac, LowessIter)
	return d
}

// filterStops 经停次数四舍五入后只保留 0/1/2
func filterStops(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	raw := utils.NumericColumn(df, "stops")
	rounded := make([]float64, len(raw))
	for i, v := range raw {
		rounded[i] = math.RoundToEven(v)
	}

	out := df.Mutate(series.New(rounded, series.Float, "stops")).
		Filter(dataframe.F{
			Colname:    "stops",
			Comparator: series.CompFunc,
			Comparando: func(el series.Element) bool {
				v := el.Float()
				return v == 0 || v == 1 || v == 2
			},
		})
	if out.Err != nil {
		return df, fmt.Errorf("筛选经停次数失败: %w", out.Err)
	}
	return out, nil
}

// stopCounts 每个经停次数的航班数，升序
func stopCounts(df dataframe.DataFrame, dc *config.DataConfig) []BarItem {
	counts := map[int]int{}
	for _, v := range df.Col("stops").Float() {
		counts[int(v)]++
	}

	var out []BarItem
	for i, k := range intKeys(counts) {
		out = append(out, BarItem{Label: strconv.Itoa(k), Value: float64(counts[k]), Color: pick(dc.StopCountColors, i)})
	}
	return out
}

// airlineBoxes 每家航司按起飞时段分组的票价分布
// 航司按首次出现的顺序，时段按编码顺序
func airlineBoxes(df dataframe.DataFrame, dc *config.DataConfig) []BoxGroup {
	airlines := df.Col("airline").Records()
	labels := df.Col(DepartureLabelColumn).Records()
	price := utils.NumericColumn(df, "price")

	type key struct{ airline, label string }
	values := map[key][]float64{}
	var order []string
	seen := map[string]bool{}
	for i, a := range airlines {
		if !seen[a] {
			seen[a] = true
			order = append(order, a)
		}
		if labels[i] == "" || math.IsNaN(price[i]) {
			continue
		}
		k := key{a, labels[i]}
		values[k] = append(values[k], price[i])
	}

	var out []BoxGroup
	for _, a := range order {
		for code, l := range dc.DepartureLabels {
			v, ok := values[key{a, l}]
			if !ok {
				continue
			}
			out = append(out, BoxGroup{Label: a, Group: l, Color: pick(dc.DepartureColors, code), Values: v})
		}
	}
	return out
}

// frequentRoutes 出现次数最多的航线，次数降序，同次数按名称
// 城市缺失的行不计入
func frequentRoutes(df dataframe.DataFrame) ([]BarItem, error) {
	df = dropMissing(df, "source_city", "destination_city")
	if df.Err != nil {
		return nil, fmt.Errorf("筛选航线失败: %w", df.Err)
	}
	if df.Nrow() == 0 {
		return nil, nil
	}
	src := df.Col("source_city").Records()
	dst := df.Col("destination_city").Records()
	routes := make([]string, len(src))
	for i := range src {
		routes[i] = src[i] + RouteSeparator + dst[i]
	}

	withRoute := df.Mutate(series.New(routes, series.String, "route"))
	groups := withRoute.GroupBy("route")
	if groups.Err != nil {
		return nil, fmt.Errorf("按航线分组失败: %w", groups.Err)
	}
	agg := groups.Aggregation([]dataframe.AggregationType{dataframe.Aggregation_COUNT}, []string{"route"})
	if agg.Err != nil {
		return nil, fmt.Errorf("统计航线失败: %w", agg.Err)
	}

	names := agg.Col("route").Records()
	counts := agg.Col(aggName("route", dataframe.Aggregation_COUNT)).Float()
	items := make([]BarItem, len(names))
	for i := range names {
		items[i] = BarItem{Label: names[i], Value: counts[i]}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Value != items[j].Value {
			return items[i].Value > items[j].Value
		}
		return items[i].Label < items[j].Label
	})

	if len(items) > FrequentRouteLimit {
		items = items[:FrequentRouteLimit]
	}
	return items, nil
}
