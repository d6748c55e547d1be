package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

var m = mat.NewDense(2, 3, []float64{
	1, 2, 3,
	4, 5, 6,
})

func TestRowSums(t *testing.T) {
	assert := assert.New(t)

	sums := RowSums(mat.DenseCopyOf(m))
	assert.EqualValues([]float64{6, 15}, sums)
}

func TestColSums(t *testing.T) {
	assert := assert.New(t)

	sums := ColSums(mat.DenseCopyOf(m))
	assert.EqualValues([]float64{5, 7, 9}, sums)
}

func TestColMeans(t *testing.T) {
	assert := assert.New(t)

	means := ColMeans(mat.DenseCopyOf(m))
	assert.EqualValues([]float64{2.5, 3.5, 4.5}, means)
}

func TestColStds(t *testing.T) {
	assert := assert.New(t)

	stds := ColStds(mat.DenseCopyOf(m))
	for _, s := range stds {
		assert.InDelta(1.5, s, 1e-12)
	}
}
