// table.go
package processor

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"AirlineInsights/src/utils"
)

var (
	// ErrColumnMissing 数据集缺少必需的列
	ErrColumnMissing = errors.New("required column missing")
	// ErrShapeMismatch 投影坐标与分群数据行数不一致
	ErrShapeMismatch = errors.New("component shape mismatch")
)

// Table 页面/导出/终端共用的表格，单元格为 string、int、float64 或 nil
type Table struct {
	Title   string          `json:"title"`
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// BarItem 柱状图的一根柱子
type BarItem struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// BoxGroup 箱线图的一组数据
type BoxGroup struct {
	Label  string    `json:"label"`
	Group  string    `json:"group,omitempty"`
	Color  string    `json:"color,omitempty"`
	Values []float64 `json:"-"`
}

// Round2 保留两位小数(银行家舍入)
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).RoundBank(2).Float64()
	return f
}

// FromDataFrame 将 DataFrame 原样转为表格，浮点数保留两位小数
func FromDataFrame(title string, df dataframe.DataFrame) Table {
	t := Table{Title: title, Columns: df.Names(), Rows: rawRows(df)}
	for _, row := range t.Rows {
		for c, v := range row {
			row[c] = roundCell(v)
		}
	}
	return t
}

// rawRows 按列顺序取出每行的原始值
func rawRows(df dataframe.DataFrame) [][]interface{} {
	names := df.Names()
	var rows [][]interface{}
	for r := 0; r < df.Nrow(); r++ {
		row := make([]interface{}, len(names))
		for c, name := range names {
			row[c] = utils.CellValue(df.Col(name).Elem(r))
		}
		rows = append(rows, row)
	}
	return rows
}

func roundCell(v interface{}) interface{} {
	if f, ok := v.(float64); ok {
		return Round2(f)
	}
	return v
}

// requireColumns 缺列时返回 ErrColumnMissing
func requireColumns(df dataframe.DataFrame, dataset string, names ...string) error {
	if missing := utils.MissingColumns(df, names...); len(missing) > 0 {
		return fmt.Errorf("%w: %s lacks %s", ErrColumnMissing, dataset, strings.Join(missing, ", "))
	}
	return nil
}

// nanMean 跳过 NaN 的平均值，没有有效值返回 NaN
func nanMean(values []float64) float64 {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return math.NaN()
	}
	return stat.Mean(valid, nil)
}

// nanSum 跳过 NaN 的和，没有有效值时为 0
func nanSum(values []float64) float64 {
	var sum float64
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
		}
	}
	return sum
}

// countPresent 非缺失元素个数
func countPresent(s series.Series) int {
	n := 0
	for i := 0; i < s.Len(); i++ {
		if !s.Elem(i).IsNA() {
			n++
		}
	}
	return n
}

// sortedKeys 返回排序后的 map 键
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// intKeys 返回排序后的整数键
func intKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func pick(palette []string, i int) string {
	if len(palette) == 0 {
		return ""
	}
	return palette[i%len(palette)]
}
