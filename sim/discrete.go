package sim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Discrete is a basic model of a linear, discrete-time, dynamical system
//
//	x[n+1] = A*x[n] + B*u[n]
type Discrete struct {
	System
}

// NewDiscrete creates a linear discrete-time model and returns it.
// It returns error if the system matrix is nil.
func NewDiscrete(A, B *mat.Dense) (*Discrete, error) {
	if A == nil {
		return nil, fmt.Errorf("system matrix must be defined for a model")
	}
	return &Discrete{System: newSystem(A, B)}, nil
}

// Propagate returns the next internal state x of the system given an input vector u
// and a process noise vector wd.
func (dt *Discrete) Propagate(x, u, wd mat.Vector) (mat.Vector, error) {
	nx, nu := dt.SystemDims()
	if u != nil && u.Len() != nu {
		return nil, fmt.Errorf("invalid input vector")
	}

	if x.Len() != nx {
		return nil, fmt.Errorf("invalid state vector")
	}

	out := new(mat.Dense)
	out.Mul(dt.A, x)
	if u != nil && dt.B != nil {
		outU := new(mat.Dense)
		outU.Mul(dt.B, u)

		out.Add(out, outU)
	}

	if wd != nil && wd.Len() == nx {
		out.Add(out, wd)
	}
	return out.ColView(0), nil
}
