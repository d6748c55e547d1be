// Package deriv provides numerical differentiation of sampled trajectories.
package deriv

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Gradient differentiates trajectories with second-order finite differences: central
// differences in the interior and one-sided second-order stencils at the endpoints.
// It supports non-uniform time grids. Gradient implements koopman.Differentiator.
type Gradient struct{}

// Differentiate returns the time derivative of x, an Nt x n matrix of states sampled
// at times t. The result has the same shape as x.
// It returns error if the time vector does not match x or has fewer than two samples.
func (Gradient) Differentiate(x *mat.Dense, t []float64) (*mat.Dense, error) {
	if x == nil {
		return nil, fmt.Errorf("invalid trajectory supplied")
	}

	rows, cols := x.Dims()
	if rows != len(t) {
		return nil, fmt.Errorf("mismatched time vector length: %d, %d", len(t), rows)
	}
	if rows < 2 {
		return nil, fmt.Errorf("not enough samples to differentiate: %d", rows)
	}

	out := mat.NewDense(rows, cols, nil)

	if rows == 2 {
		dt := t[1] - t[0]
		for c := 0; c < cols; c++ {
			d := (x.At(1, c) - x.At(0, c)) / dt
			out.Set(0, c, d)
			out.Set(1, c, d)
		}
		return out, nil
	}

	for c := 0; c < cols; c++ {
		// second-order one-sided stencils at the endpoints
		h0 := t[1] - t[0]
		h1 := t[2] - t[1]
		out.Set(0, c, -(2*h0+h1)/(h0*(h0+h1))*x.At(0, c)+
			(h0+h1)/(h0*h1)*x.At(1, c)-
			h0/(h1*(h0+h1))*x.At(2, c))

		hm := t[rows-2] - t[rows-3]
		hn := t[rows-1] - t[rows-2]
		out.Set(rows-1, c, hn/(hm*(hm+hn))*x.At(rows-3, c)-
			(hm+hn)/(hm*hn)*x.At(rows-2, c)+
			(2*hn+hm)/(hn*(hm+hn))*x.At(rows-1, c))

		// central differences on the (possibly non-uniform) interior
		for r := 1; r < rows-1; r++ {
			ha := t[r] - t[r-1]
			hb := t[r+1] - t[r]
			out.Set(r, c, (ha*ha*x.At(r+1, c)+
				(hb*hb-ha*ha)*x.At(r, c)-
				hb*hb*x.At(r-1, c))/(ha*hb*(ha+hb)))
		}
	}

	return out, nil
}
