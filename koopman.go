package koopman

import "gonum.org/v1/gonum/mat"

// BasisFunctions lifts raw state into eigenfunction coordinates.
type BasisFunctions interface {
	// Lift maps state and desired state trajectories into lifted coordinates
	Lift(q, qd *mat.Dense) (*mat.Dense, error)
	// NumLifted returns the dimension of the lifted space
	NumLifted() int
}

// Corrector predicts a state correction from a (state, desired state) pair.
type Corrector interface {
	// Correct returns the correction for state q given desired state qd
	Correct(q, qd []float64) []float64
}

// Differentiator computes numerical derivatives of sampled trajectories.
type Differentiator interface {
	// Differentiate returns the time derivative of x sampled at times t
	Differentiate(x *mat.Dense, t []float64) (*mat.Dense, error)
}

// Propagator propagates internal state of the system to the next step
type Propagator interface {
	// Propagate propagates internal state of the system to the next step
	Propagate(x, u, wd mat.Vector) (mat.Vector, error)
}

// Controller computes control input to the system
type Controller interface {
	// Output returns control input given time and system state
	Output(t float64, x mat.Vector) mat.Vector
}

// Noise is dynamical system noise
type Noise interface {
	// Mean returns noise mean
	Mean() []float64
	// Cov returns covariance matrix of the noise
	Cov() mat.Symmetric
	// Sample returns a sample of the noise
	Sample() mat.Vector
	// Reset resets the noise
	Reset() error
}
