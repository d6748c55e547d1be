package eigfn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestNew(t *testing.T) {
	assert := assert.New(t)

	aCl := mat.NewDense(2, 2, []float64{-1, 0, 0, -2})
	bk := mat.NewDense(2, 1, nil)

	e, err := New(2, 1, aCl, bk)
	assert.NotNil(e)
	assert.NoError(err)

	e, err = New(0, 1, aCl, bk)
	assert.Nil(e)
	assert.Error(err)

	e, err = New(2, -1, aCl, bk)
	assert.Nil(e)
	assert.Error(err)

	e, err = New(2, 1, nil, bk)
	assert.Nil(e)
	assert.Error(err)

	e, err = New(3, 1, aCl, bk)
	assert.Nil(e)
	assert.Error(err)

	e, err = New(2, 1, aCl, mat.NewDense(3, 1, nil))
	assert.Nil(e)
	assert.Error(err)
}

func TestPowerRows(t *testing.T) {
	assert := assert.New(t)

	rows := powerRows(2, 1)
	assert.Equal([][]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}}, rows)

	// number of distinct length-n sequences over {0,...,maxPower}
	rows = powerRows(3, 2)
	assert.Equal(27, len(rows))

	rows = powerRows(1, 4)
	assert.Equal(5, len(rows))

	rows = powerRows(2, 0)
	assert.Equal([][]int{{0, 0}}, rows)
}

func TestConstructBasisLambda(t *testing.T) {
	assert := assert.New(t)

	aCl := mat.NewDense(2, 2, []float64{-1, 0, 0, -2})
	e, err := New(2, 1, aCl, nil)
	assert.NoError(err)

	b, err := e.ConstructBasis([]float64{1, 1}, []float64{-1, -1})
	assert.NoError(err)
	assert.False(b.TruncatedComplex)
	assert.Equal(4, b.NumLifted())

	// Lambda[i] = log(prod_j exp(lambda_j)^powers[i][j]), row-aligned with powers
	lambda := b.Lambda()
	powers := b.Powers()
	eigs := []float64{-1, -2}
	for i, row := range powers {
		var want float64
		for j, p := range row {
			want += eigs[j] * float64(p)
		}
		assert.InDelta(want, lambda[i], 1e-12, "row %d", i)
	}
	assert.InDeltaSlice([]float64{0, -2, -1, -3}, lambda, 1e-12)
}

func TestConstructBasisComplexTruncation(t *testing.T) {
	assert := assert.New(t)

	// rotation dynamics have purely imaginary eigenvalues
	aCl := mat.NewDense(2, 2, []float64{0, -1, 1, 0})
	e, err := New(2, 1, aCl, nil)
	assert.NoError(err)

	b, err := e.ConstructBasis([]float64{1, 1}, []float64{-1, -1})
	assert.NoError(err)
	assert.True(b.TruncatedComplex)
}

func TestConstructBasisInvalidBounds(t *testing.T) {
	assert := assert.New(t)

	aCl := mat.NewDense(2, 2, []float64{-1, 0, 0, -2})
	e, err := New(2, 1, aCl, nil)
	assert.NoError(err)

	b, err := e.ConstructBasis([]float64{1}, []float64{-1, -1})
	assert.Nil(b)
	assert.Error(err)
}

func TestScalingRoundTrip(t *testing.T) {
	assert := assert.New(t)

	ub := []float64{1, 2, 5}
	lb := []float64{-1, 0, -3}
	s, err := NewScaling(ub, lb)
	assert.NoError(err)

	q := []float64{0.3, -1.7, 4.2}
	scaled := s.Apply(q)
	for i := range q {
		assert.InDelta(q[i], scaled[i]*(ub[i]-lb[i]), 1e-12)
	}

	s, err = NewScaling([]float64{1}, []float64{-1, 0})
	assert.Nil(s)
	assert.Error(err)
}

func TestBasisZeroState(t *testing.T) {
	assert := assert.New(t)

	// principal eigenfunctions vanish at the origin: W^T*0 = 0, 0^p = 0 for p > 0
	// and 0^0 = 1 for the constant eigenfunction
	aCl := mat.NewDense(2, 2, []float64{-1, 0, 0, -2})
	e, err := New(2, 1, aCl, mat.NewDense(2, 1, nil))
	assert.NoError(err)

	b, err := e.ConstructBasis([]float64{1, 1}, []float64{-1, -1})
	assert.NoError(err)

	z, err := b.Lift(mat.NewDense(2, 1, nil), mat.NewDense(2, 1, nil))
	assert.NoError(err)

	r, c := z.Dims()
	assert.Equal(4, r)
	assert.Equal(1, c)

	powers := b.Powers()
	for i := 0; i < r; i++ {
		want := 0.0
		if allZero(powers[i]) {
			want = 1.0
		}
		assert.InDelta(want, z.At(i, 0), 1e-12, "eigenfunction %d", i)
	}
}

func TestLiftPerColumn(t *testing.T) {
	assert := assert.New(t)

	aCl := mat.NewDense(2, 2, []float64{-1, 0.5, 0, -2})
	e, err := New(2, 2, aCl, nil)
	assert.NoError(err)

	b, err := e.ConstructBasis([]float64{2, 2}, []float64{-2, -2})
	assert.NoError(err)

	const nt = 7
	q := mat.NewDense(2, nt, nil)
	qd := mat.NewDense(2, nt, nil)
	for i := 0; i < nt; i++ {
		q.Set(0, i, math.Sin(float64(i)))
		q.Set(1, i, math.Cos(float64(i)))
		qd.Set(0, i, 0.1*float64(i))
	}

	z, err := b.Lift(q, qd)
	assert.NoError(err)

	r, c := z.Dims()
	assert.Equal(b.NumLifted(), r)
	assert.Equal(nt, c)

	// lift is a pure per-column map
	for ii := 0; ii < nt; ii++ {
		col := b.Eval(mat.Col(nil, ii, q), mat.Col(nil, ii, qd))
		for j := range col {
			assert.InDelta(col[j], z.At(j, ii), 1e-12)
		}
	}

	z, err = b.Lift(q, mat.NewDense(2, nt+1, nil))
	assert.Nil(z)
	assert.Error(err)
}

// fixedCorrector returns a constant correction.
type fixedCorrector struct {
	d []float64
}

func (f fixedCorrector) Correct(q, qd []float64) []float64 {
	d := make([]float64, len(f.d))
	copy(d, f.d)
	return d
}

func TestBasisCorrection(t *testing.T) {
	assert := assert.New(t)

	aCl := mat.NewDense(2, 2, []float64{-1, 0, 0, -2})
	e, err := New(2, 1, aCl, nil)
	assert.NoError(err)

	b, err := e.ConstructBasis([]float64{1, 1}, []float64{-1, -1})
	assert.NoError(err)

	q := []float64{0.2, -0.4}
	qd := []float64{0, 0}
	raw := b.Eval(q, qd)
	shifted := b.Eval([]float64{0.3, -0.3}, qd)

	// by default the correction is evaluated but not applied
	b.Corrector = fixedCorrector{d: []float64{0.1, 0.1}}
	assert.InDeltaSlice(raw, b.Eval(q, qd), 1e-12)

	// the corrected branch shifts the state before scaling
	b.ApplyCorrection = true
	assert.InDeltaSlice(shifted, b.Eval(q, qd), 1e-12)
}

func allZero(row []int) bool {
	for _, p := range row {
		if p != 0 {
			return false
		}
	}
	return true
}
