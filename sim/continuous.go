package sim

import (
	"fmt"

	koopman "github.com/eigenlift/go-koopman"
	"github.com/milosgajdos/matrix"
	"gonum.org/v1/gonum/mat"
)

// Continuous is a basic model of a linear, continuous-time, dynamical system
//
//	dx/dt = A*x + B*u
type Continuous struct {
	System
}

// NewContinuous creates a linear continuous-time model and returns it.
// It returns error if the system matrix is nil.
func NewContinuous(A, B *mat.Dense) (*Continuous, error) {
	if A == nil {
		return nil, fmt.Errorf("system matrix must be defined for a model")
	}
	return &Continuous{System: newSystem(A, B)}, nil
}

// ToDiscrete creates a discrete-time model from a continuous time model using Ts as
// the sampling time. The state matrix is discretized exactly via the matrix
// exponential; the control matrix via (exp(A*Ts) - I)*inv(A)*B when A is invertible
// and by closed-form integration otherwise.
func (ct *Continuous) ToDiscrete(Ts float64) (*Discrete, error) {
	nx, _ := ct.SystemDims()
	dsys := newSystem(ct.A, ct.B)

	dsys.A.Scale(Ts, dsys.A)
	dsys.A.Exp(dsys.A)

	if ct.B == nil {
		return &Discrete{dsys}, nil
	}

	Bd := dsys.B
	Aaux := mat.NewDense(nx, nx, nil)
	eye, _ := matrix.NewDenseValIdentity(nx, 1.0)

	Aaux.Sub(dsys.A, eye)
	Ainv := mat.NewDense(nx, nx, nil)
	if err := Ainv.Inverse(ct.A); err == nil {
		Aaux.Mul(Aaux, Ainv)
		Bd.Mul(Aaux, ct.B)
		return &Discrete{dsys}, nil
	}

	// A is singular: integrate exp(A*t) over [0, Ts]
	Asum := mat.NewDense(nx, nx, nil)
	const steps = 100
	dt := Ts / float64(steps-1)
	for i := 0; i < steps; i++ {
		Aaux.Scale(dt*float64(i), ct.A)
		Aaux.Exp(Aaux)
		Aaux.Scale(dt, Aaux)
		Asum.Add(Asum, Aaux)
	}
	Bd.Mul(Asum, ct.B)

	return &Discrete{dsys}, nil
}

// Propagate returns the next internal state x of the system given an input vector u
// and a process noise vector wd, advancing the solution by a timestep dt with Euler's
// method.
func (ct *Continuous) Propagate(x, u, wd mat.Vector, dt float64) (mat.Vector, error) {
	nx, nu := ct.SystemDims()
	if u != nil && u.Len() != nu {
		return nil, fmt.Errorf("invalid input vector")
	}

	if x.Len() != nx {
		return nil, fmt.Errorf("invalid state vector")
	}

	out := new(mat.Dense)
	out.Mul(ct.A, x)
	if u != nil && ct.B != nil {
		outU := new(mat.Dense)
		outU.Mul(ct.B, u)

		out.Add(out, outU)
	}

	if wd != nil && wd.Len() == nx {
		out.Add(out, wd)
	}
	// integrate the first order derivative: dx/dt = A*x + B*u + wd
	out.Scale(dt, out)
	out.Add(x, out)
	return out.ColView(0), nil
}

// Simulate propagates the system from the initial state x0 through the time grid t
// under the given controller, discretizing each interval exactly via the matrix
// exponential. An optional process noise wd is added at every step.
// It returns the state trajectory as an Nt x nx matrix, one row per time sample.
func (ct *Continuous) Simulate(x0 mat.Vector, ctrl koopman.Controller, t []float64, wd koopman.Noise) (*mat.Dense, error) {
	nx, _ := ct.SystemDims()
	if x0.Len() != nx {
		return nil, fmt.Errorf("invalid initial state vector")
	}

	if len(t) == 0 {
		return nil, fmt.Errorf("empty time vector")
	}

	out := mat.NewDense(len(t), nx, nil)
	out.SetRow(0, mat.Col(nil, 0, x0))

	x := x0
	var d *Discrete
	lastTs := 0.0
	for i := 1; i < len(t); i++ {
		Ts := t[i] - t[i-1]
		if d == nil || Ts != lastTs {
			var err error
			if d, err = ct.ToDiscrete(Ts); err != nil {
				return nil, err
			}
			lastTs = Ts
		}

		var u, noise mat.Vector
		if ctrl != nil {
			u = ctrl.Output(t[i-1], x)
		}
		if wd != nil {
			noise = wd.Sample()
		}

		next, err := d.Propagate(x, u, noise)
		if err != nil {
			return nil, err
		}
		out.SetRow(i, mat.Col(nil, 0, next))
		x = next
	}

	return out, nil
}
