// traveler.go
package processor

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"

	"AirlineInsights/src/config"
	"AirlineInsights/src/utils"
)

// ClusterNameColumn 聚类名称列
const ClusterNameColumn = "Cluster Name"

var (
	// SampleColumns 样本画像展示的列
	SampleColumns = []string{ClusterNameColumn, "price", "duration", "class_enc", "departure_time_enc", "stops"}
	// RadarAttributes 雷达图的维度
	RadarAttributes = []string{"price", "duration", "stops"}
	// SamplesPerCluster 每个聚类展示的样本数
	SamplesPerCluster = 3
)

// ScatterSeries 一个聚类在投影平面上的点
type ScatterSeries struct {
	Name  string    `json:"name"`
	Color string    `json:"color"`
	X     []float64 `json:"-"`
	Y     []float64 `json:"-"`
}

// RadarSeries 一个聚类的雷达图多边形
type RadarSeries struct {
	Name   string    `json:"name"`
	Color  string    `json:"color"`
	Values []float64 `json:"values"` // 原始均值
	Scaled []float64 `json:"scaled"` // 除以该维度在各聚类中的最大值
}

// Radar 雷达图数据
type Radar struct {
	Attributes []string      `json:"attributes"`
	Series     []RadarSeries `json:"series"`
}

// Traveler 旅客视角的全部表格和图表数据
type Traveler struct {
	Averages   Table           `json:"averages"`
	Samples    Table           `json:"samples"`
	Scatter    []ScatterSeries `json:"scatter"`
	Radar      Radar           `json:"radar"`
	StopPrices []BarItem       `json:"stop_prices"`
}

// Tables 可导出的表格
func (t *Traveler) Tables() []Table {
	stops := Table{Title: "Avg Flight Price by Stop Count", Columns: []string{"Flight Type", "Avg Price ($)"}}
	for _, b := range t.StopPrices {
		stops.Rows = append(stops.Rows, []interface{}{b.Label, Round2(b.Value)})
	}
	return []Table{t.Averages, t.Samples, stops}
}

// BuildTraveler 计算旅客视角，components 第 i 行对应 df 第 i 行
func BuildTraveler(df dataframe.DataFrame, components mat.Matrix, dc *config.DataConfig) (*Traveler, error) {
	if err := requireColumns(df, "segmentation data", "cluster", "price", "duration", "class_enc", "departure_time_enc", "stops"); err != nil {
		return nil, err
	}
	r, c := components.Dims()
	if r != df.Nrow() || c < 2 {
		return nil, fmt.Errorf("%w: components are %dx%d, segmentation has %d rows", ErrShapeMismatch, r, c, df.Nrow())
	}

	named, err := WithClusterNames(df, dc)
	if err != nil {
		return nil, err
	}

	groups := named.GroupBy(ClusterNameColumn)
	if groups.Err != nil {
		return nil, fmt.Errorf("按聚类分组失败: %w", groups.Err)
	}
	byName := clusterGroups(groups.GetGroups())

	t := &Traveler{}
	t.Averages = clusterAverages(df, byName)
	t.Samples, err = sampleProfiles(named)
	if err != nil {
		return nil, err
	}
	t.Scatter = clusterScatter(named, components, dc)
	t.Radar = clusterRadar(byName, dc)
	t.StopPrices, err = stopPrices(named, dc)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// WithClusterNames 按 cluster 编号追加 "Cluster Name" 列
func WithClusterNames(df dataframe.DataFrame, dc *config.DataConfig) (dataframe.DataFrame, error) {
	if err := requireColumns(df, "segmentation data", "cluster"); err != nil {
		return df, err
	}
	ids := utils.NumericColumn(df, "cluster")
	names := make([]string, len(ids))
	for i, id := range ids {
		if math.IsNaN(id) {
			return df, fmt.Errorf("第 %d 行 cluster 不是数字: %q", i, df.Col("cluster").Elem(i).String())
		}
		names[i] = dc.ClusterName(int(id))
	}

	named := df.Mutate(series.New(names, series.String, ClusterNameColumn))
	if named.Err != nil {
		return df, named.Err
	}
	return named, nil
}

// clusterAverages 每个聚类各数值列的均值，按名称排序
func clusterAverages(df dataframe.DataFrame, byName map[string]dataframe.DataFrame) Table {
	var numeric []string
	for _, name := range df.Names() {
		if utils.IsNumeric(df.Col(name)) {
			numeric = append(numeric, name)
		}
	}

	t := Table{Title: "Cluster Averages", Columns: append([]string{ClusterNameColumn}, numeric...)}
	for _, key := range sortedKeys(byName) {
		group := byName[key]
		row := []interface{}{key}
		for _, col := range numeric {
			row = append(row, Round2(nanMean(utils.NumericColumn(group, col))))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// clusterGroups 以分组内的 Cluster Name 为键
func clusterGroups(groups map[string]dataframe.DataFrame) map[string]dataframe.DataFrame {
	byName := make(map[string]dataframe.DataFrame, len(groups))
	for key, group := range groups {
		name := key
		if group.Nrow() > 0 {
			name = group.Col(ClusterNameColumn).Elem(0).String()
		}
		byName[name] = group
	}
	return byName
}

// sampleProfiles 每个聚类按原始顺序取前几行，数值不做舍入
func sampleProfiles(named dataframe.DataFrame) (Table, error) {
	names := named.Col(ClusterNameColumn).Records()
	picked := map[string][]int{}
	for i, name := range names {
		if len(picked[name]) < SamplesPerCluster {
			picked[name] = append(picked[name], i)
		}
	}

	var rows []int
	for _, name := range sortedKeys(picked) {
		rows = append(rows, picked[name]...)
	}

	t := Table{Title: "Sample Profiles", Columns: SampleColumns}
	if len(rows) == 0 {
		return t, nil
	}
	sub := named.Subset(rows).Select(SampleColumns)
	if sub.Err != nil {
		return t, fmt.Errorf("选取样本失败: %w", sub.Err)
	}
	t.Rows = rawRows(sub)
	return t, nil
}

// clusterScatter 每个聚类一组点，顺序为聚类首次出现的顺序
func clusterScatter(named dataframe.DataFrame, components mat.Matrix, dc *config.DataConfig) []ScatterSeries {
	index := map[string]int{}
	var out []ScatterSeries
	for i, name := range named.Col(ClusterNameColumn).Records() {
		k, ok := index[name]
		if !ok {
			k = len(out)
			index[name] = k
			out = append(out, ScatterSeries{Name: name, Color: dc.ColorFor(name)})
		}
		out[k].X = append(out[k].X, components.At(i, 0))
		out[k].Y = append(out[k].Y, components.At(i, 1))
	}
	return out
}

// clusterRadar 各聚类在价格/时长/经停上的均值
func clusterRadar(byName map[string]dataframe.DataFrame, dc *config.DataConfig) Radar {
	radar := Radar{Attributes: RadarAttributes}
	maxima := make([]float64, len(RadarAttributes))

	for _, name := range sortedKeys(byName) {
		s := RadarSeries{Name: name, Color: dc.ColorFor(name)}
		for i, attr := range RadarAttributes {
			v := nanMean(utils.NumericColumn(byName[name], attr))
			s.Values = append(s.Values, v)
			if !math.IsNaN(v) && v > maxima[i] {
				maxima[i] = v
			}
		}
		radar.Series = append(radar.Series, s)
	}

	for i := range radar.Series {
		s := &radar.Series[i]
		s.Scaled = make([]float64, len(s.Values))
		for j, v := range s.Values {
			if maxima[j] > 0 && !math.IsNaN(v) {
				s.Scaled[j] = v / maxima[j]
			}
		}
	}
	return radar
}

// stopPrices 经停次数 0/1/2 的平均票价，非数字经停被丢弃，小数截断取整
func stopPrices(df dataframe.DataFrame, dc *config.DataConfig) ([]BarItem, error) {
	filtered := df.Mutate(series.New(utils.NumericColumn(df, "stops"), series.Float, "stops")).
		Filter(dataframe.F{
			Colname:    "stops",
			Comparator: series.CompFunc,
			Comparando: func(el series.Element) bool {
				v := el.Float()
				if math.IsNaN(v) {
					return false
				}
				t := math.Trunc(v)
				return t >= 0 && t <= 2
			},
		})
	if filtered.Err != nil {
		return nil, fmt.Errorf("筛选经停次数失败: %w", filtered.Err)
	}

	prices := map[int][]float64{}
	stops := filtered.Col("stops").Float()
	price := utils.NumericColumn(filtered, "price")
	for i, s := range stops {
		k := int(math.Trunc(s))
		prices[k] = append(prices[k], price[i])
	}

	// 颜色按柱子出现的位置依次取
	var out []BarItem
	for i, k := range intKeys(prices) {
		out = append(out, BarItem{
			Label: config.Label(dc.StopLabels, k),
			Value: nanMean(prices[k]),
			Color: pick(dc.StopColors, i),
		})
	}
	return out, nil
}
