package utils

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// MissingColumns 返回 df 中不存在的列名
func MissingColumns(df dataframe.DataFrame, names ...string) []string {
	var missing []string
	for _, name := range names {
		if !HasColumn(df, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// ToFloat 将元素转为数值，缺失或无法解析时 ok 为 false
func ToFloat(el series.Element) (float64, bool) {
	if el.IsNA() {
		return math.NaN(), false
	}
	switch el.Type() {
	case series.Int, series.Float:
		v := el.Float()
		return v, !math.IsNaN(v)
	case series.Bool:
		b, err := el.Bool()
		if err != nil {
			return math.NaN(), false
		}
		if b {
			return 1, true
		}
		return 0, true
	default:
		v, err := strconv.ParseFloat(strings.TrimSpace(el.String()), 64)
		if err != nil || math.IsNaN(v) {
			return math.NaN(), false
		}
		return v, true
	}
}

// NumericColumn 将列强制转为数值，无法转换的值为 NaN
func NumericColumn(df dataframe.DataFrame, name string) []float64 {
	col := df.Col(name)
	values := make([]float64, col.Len())
	for i := range values {
		values[i], _ = ToFloat(col.Elem(i))
	}
	return values
}

// IsNumeric 判断列类型是否可求均值，布尔列按 0/1 计
func IsNumeric(s series.Series) bool {
	switch s.Type() {
	case series.Int, series.Float, series.Bool:
		return true
	}
	return false
}

// CellValue 取出元素的原始值，缺失返回 nil
func CellValue(el series.Element) interface{} {
	if el.IsNA() {
		return nil
	}
	switch el.Type() {
	case series.Int:
		v, err := el.Int()
		if err != nil {
			return nil
		}
		return v
	case series.Float:
		return el.Float()
	case series.Bool:
		v, err := el.Bool()
		if err != nil {
			return nil
		}
		return v
	default:
		return el.String()
	}
}
