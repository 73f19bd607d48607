package processor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowessLinear(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 2*v + 1
	}

	xs, fitted := Lowess(x, y, LowessFrac, LowessIter)
	require.Equal(t, x, xs)
	for i, v := range xs {
		assert.InDelta(t, 2*v+1, fitted[i], 1e-6)
	}
}

func TestLowessRobustToOutlier(t *testing.T) {
	var x, y []float64
	for i := 1; i <= 20; i++ {
		x = append(x, float64(i))
		y = append(y, 3*float64(i))
	}
	y[10] = 1000

	xs, fitted := Lowess(x, y, LowessFrac, LowessIter)
	require.Len(t, xs, 20)
	for i, v := range xs {
		assert.InDelta(t, 3*v, fitted[i], 1e-6, "x=%v", v)
	}
}

func TestLowessRepeatedX(t *testing.T) {
	x := []float64{5, 1, 5, 1, 3, 3}
	y := []float64{10, 2, 10, 2, 6, 6}

	xs, fitted := Lowess(x, y, LowessFrac, LowessIter)
	assert.Equal(t, []float64{1, 3, 5}, xs)
	assert.InDeltaSlice(t, []float64{2, 6, 10}, fitted, 1e-6)
}

func TestLowessDegenerate(t *testing.T) {
	xs, fitted := Lowess([]float64{4, 4, 4}, []float64{1, 3, 5}, LowessFrac, LowessIter)
	assert.Equal(t, []float64{4}, xs)
	assert.InDelta(t, 3.0, fitted[0], 1e-9)

	xs, fitted = Lowess([]float64{math.NaN(), 1}, []float64{1, math.NaN()}, LowessFrac, LowessIter)
	assert.Empty(t, xs)
	assert.Empty(t, fitted)
}

func TestLowessNeighbourCount(t *testing.T) {
	assert.Equal(t, 4, neighbourCount(LowessFrac, 7))
	assert.Equal(t, 6, neighbourCount(LowessFrac, 10))
	assert.Equal(t, 2, neighbourCount(LowessFrac, 3))
	assert.Equal(t, 1, neighbourCount(LowessFrac, 1))
	assert.Equal(t, 4, neighbourCount(0.5, 8))
}
