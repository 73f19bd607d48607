// lowess.go
package processor

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// LowessFrac 局部回归使用的样本比例
const LowessFrac = 2.0 / 3.0

// LowessIter 稳健化迭代次数
const LowessIter = 3

// Lowess 局部加权回归，返回按 x 升序去重后的点及其拟合值
// x、y 中含 NaN 的点被忽略
func Lowess(x, y []float64, frac float64, iter int) (xs, fitted []float64) {
	px, py := make([]float64, 0, len(x)), make([]float64, 0, len(x))
	for i := range x {
		if i < len(y) && !math.IsNaN(x[i]) && !math.IsNaN(y[i]) {
			px = append(px, x[i])
			py = append(py, y[i])
		}
	}
	n := len(px)
	if n == 0 {
		return nil, nil
	}

	xs, counts := uniqueCounts(px)
	k := neighbourCount(frac, n)

	robust := make([]float64, n)
	for i := range robust {
		robust[i] = 1
	}

	fitAt := make(map[float64]float64, len(xs))
	dist := make([]float64, n)
	weights := make([]float64, n)

	for it := 0; it <= iter; it++ {
		for _, x0 := range xs {
			for i, xi := range px {
				dist[i] = math.Abs(xi - x0)
			}
			h := neighbourRadius(xs, counts, x0, k)
			for i, d := range dist {
				weights[i] = tricube(d, h) * robust[i]
			}
			fitAt[x0] = localLinear(px, py, weights, x0)
		}

		if it == iter {
			break
		}

		// 残差的中位绝对值为 0 时拟合已精确，无需继续
		residuals := make([]float64, n)
		for i := range px {
			residuals[i] = math.Abs(py[i] - fitAt[px[i]])
		}
		s := median(residuals)
		if s == 0 {
			break
		}
		for i, r := range residuals {
			u := r / (6 * s)
			if u < 1 {
				robust[i] = (1 - u*u) * (1 - u*u)
			} else {
				robust[i] = 0
			}
		}
	}

	fitted = make([]float64, len(xs))
	for i, x0 := range xs {
		fitted[i] = fitAt[x0]
	}
	return xs, fitted
}

// localLinear 在 x0 处的加权线性拟合，退化时用加权平均
func localLinear(x, y, w []float64, x0 float64) float64 {
	var sw, sx float64
	for i, wi := range w {
		sw += wi
		sx += wi * x[i]
	}
	if sw == 0 {
		return stat.Mean(y, nil)
	}

	mean := sx / sw
	var spread float64
	for i, wi := range w {
		d := x[i] - mean
		spread += wi * d * d
	}
	if spread/sw < 1e-12 {
		return stat.Mean(y, w)
	}

	alpha, beta := stat.LinearRegression(x, y, w, false)
	return alpha + beta*x0
}

// neighbourCount 每次局部回归使用的点数，frac*n 向下取整，至少 2 个
func neighbourCount(frac float64, n int) int {
	k := int(frac*float64(n) + 1e-10)
	if k < 2 {
		k = 2
	}
	if k > n {
		k = n
	}
	return k
}

func tricube(d, h float64) float64 {
	if h <= 0 {
		if d == 0 {
			return 1
		}
		return 0
	}
	u := d / h
	if u >= 1 {
		return 0
	}
	v := 1 - u*u*u
	return v * v * v
}

// neighbourRadius 覆盖 k 个最近点所需的距离
func neighbourRadius(xs []float64, counts []int, x0 float64, k int) float64 {
	type span struct {
		d float64
		n int
	}
	spans := make([]span, len(xs))
	for i, x := range xs {
		spans[i] = span{math.Abs(x - x0), counts[i]}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].d < spans[j].d })

	covered := 0
	for _, s := range spans {
		covered += s.n
		if covered >= k {
			return s.d
		}
	}
	return spans[len(spans)-1].d
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// uniqueCounts 升序去重并统计每个值出现的次数
func uniqueCounts(values []float64) ([]float64, []int) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	var xs []float64
	var counts []int
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			xs = append(xs, v)
			counts = append(counts, 0)
		}
		counts[len(counts)-1]++
	}
	return xs, counts
}
