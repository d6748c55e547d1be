// Package sim simulates linear dynamical systems. It provides the closed-loop
// propagation used by the eigenvalue-evolution diagnostic and for generating training
// trajectories.
package sim

import (
	"gonum.org/v1/gonum/mat"
)

// System defines a linear model of a plant using the state (A) and control (B)
// matrices of modern control theory.
type System struct {
	// System/State matrix A
	A *mat.Dense
	// Control/Input matrix B
	B *mat.Dense
}

func newSystem(A, B *mat.Dense) System {
	sys := System{A: mat.DenseCopyOf(A)}
	if B != nil {
		sys.B = mat.DenseCopyOf(B)
	}
	return sys
}

// SystemDims returns internal state length (nx) and input vector length (nu).
func (s System) SystemDims() (nx, nu int) {
	nx, _ = s.A.Dims()
	if s.B != nil {
		_, nu = s.B.Dims()
	}
	return nx, nu
}

// SystemMatrix returns state propagation matrix `A`.
func (s System) SystemMatrix() (A mat.Matrix) { return s.A }

// ControlMatrix returns state propagation control matrix `B`
func (s System) ControlMatrix() (B mat.Matrix) {
	if s.B == nil {
		return nil
	}
	return s.B
}
