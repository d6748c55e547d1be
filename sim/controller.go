package sim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ConstantController outputs a fixed control input regardless of time and state.
type ConstantController struct {
	u *mat.VecDense
}

// NewConstantController creates new ConstantController with the given constant input
// and returns it.
// It returns error if the input vector is nil.
func NewConstantController(u mat.Vector) (*ConstantController, error) {
	if u == nil {
		return nil, fmt.Errorf("control input must be defined")
	}

	v := &mat.VecDense{}
	v.CloneFromVec(u)

	return &ConstantController{u: v}, nil
}

// Output returns the constant control input.
func (c *ConstantController) Output(t float64, x mat.Vector) mat.Vector {
	u := mat.NewVecDense(c.u.Len(), nil)
	u.CloneFromVec(c.u)

	return u
}
