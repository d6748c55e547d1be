package eigfn

import "fmt"

// Scaling rescales state into a bounded domain by elementwise division with the
// per-dimension range ub-lb. The caller guarantees ub > lb elementwise; a zero range
// propagates as infinities in the scaled state.
type Scaling struct {
	factor []float64
}

// NewScaling creates new Scaling from the given per-dimension bounds and returns it.
// It returns error if the bound vectors have mismatched lengths.
func NewScaling(ub, lb []float64) (*Scaling, error) {
	if len(ub) != len(lb) {
		return nil, fmt.Errorf("mismatched bound vectors: %d vs %d", len(ub), len(lb))
	}

	factor := make([]float64, len(ub))
	for i := range ub {
		factor[i] = ub[i] - lb[i]
	}

	return &Scaling{factor: factor}, nil
}

// Apply returns the scaled state q/(ub-lb).
func (s *Scaling) Apply(q []float64) []float64 {
	out := make([]float64, len(q))
	for i := range q {
		out[i] = q[i] / s.factor[i]
	}

	return out
}

// Factor returns a copy of the scaling range ub-lb.
func (s *Scaling) Factor() []float64 {
	f := make([]float64, len(s.factor))
	copy(f, s.factor)

	return f
}
