// Package matrix provides small reductions over gonum matrices.
package matrix

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// RowSums returns a slice containing m row sums.
// It panics if m is nil.
func RowSums(m *mat.Dense) []float64 {
	rows, _ := m.Dims()
	sum := make([]float64, rows)

	for i := 0; i < rows; i++ {
		sum[i] = floats.Sum(m.RawRowView(i))
	}

	return sum
}

// ColSums returns a slice containing m column sums.
// It panics if m is nil.
func ColSums(m *mat.Dense) []float64 {
	_, cols := m.Dims()
	sum := make([]float64, cols)

	for i := 0; i < cols; i++ {
		sum[i] = mat.Sum(m.ColView(i))
	}

	return sum
}

// ColMeans returns a slice containing m column means.
// It panics if m is nil.
func ColMeans(m *mat.Dense) []float64 {
	_, cols := m.Dims()
	means := make([]float64, cols)

	for i := 0; i < cols; i++ {
		means[i] = stat.Mean(mat.Col(nil, i, m), nil)
	}

	return means
}

// ColStds returns a slice containing the population standard deviation of every
// column of m.
// It panics if m is nil.
func ColStds(m *mat.Dense) []float64 {
	_, cols := m.Dims()
	stds := make([]float64, cols)

	for i := 0; i < cols; i++ {
		stds[i] = stat.PopStdDev(mat.Col(nil, i, m), nil)
	}

	return stds
}
