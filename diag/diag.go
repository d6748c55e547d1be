// Package diag compares lifted-state evolution under the linear eigenvalue dynamics
// against directly lifted ground-truth trajectories.
package diag

import (
	"fmt"

	"github.com/eigenlift/go-koopman/eigfn"
	"github.com/eigenlift/go-koopman/matrix"
	"github.com/eigenlift/go-koopman/sim"
	"gonum.org/v1/gonum/mat"
)

// EvolutionStats holds per-eigenfunction error statistics of the eigenvalue evolution
// across trajectories.
type EvolutionStats struct {
	// T is the shared time grid
	T []float64
	// Mean is the mean normalized absolute error, NumLifted x Nt
	Mean *mat.Dense
	// Std is the standard deviation of the normalized absolute error, NumLifted x Nt
	Std *mat.Dense
}

// EvolutionError lifts every trajectory's initial condition, propagates it forward
// under the diagonal linear system defined by the basis eigenvalues and compares the
// result against directly lifting the ground-truth trajectory. X and Xd hold one
// Nt x n matrix per trajectory sampled on the shared time grid t.
// It returns the per-eigenfunction mean and standard deviation of the normalized
// absolute error across trajectories.
func EvolutionError(b *eigfn.Basis, X, Xd []*mat.Dense, t []float64) (*EvolutionStats, error) {
	if len(X) == 0 || len(X) != len(Xd) {
		return nil, fmt.Errorf("mismatched trajectory counts: %d, %d", len(X), len(Xd))
	}

	nlift := b.NumLifted()
	nt := len(t)

	// diagonal linear system governing the lifted state
	lambda := b.Lambda()
	A := mat.NewDense(nlift, nlift, nil)
	for i, l := range lambda {
		A.Set(i, i, l)
	}
	eigSys, err := sim.NewContinuous(A, mat.NewDense(nlift, 1, nil))
	if err != nil {
		return nil, err
	}
	ctrl, err := sim.NewConstantController(mat.NewVecDense(1, nil))
	if err != nil {
		return nil, err
	}

	eigvalEvo := make([]*mat.Dense, len(X))
	eigfuncEvo := make([]*mat.Dense, len(X))

	for ii := range X {
		rows, n := X[ii].Dims()
		if rows != nt {
			return nil, fmt.Errorf("mismatched sample count in trajectory %d: %d, %d", ii, rows, nt)
		}

		q := mat.DenseCopyOf(X[ii].T())
		qd := mat.DenseCopyOf(Xd[ii].T())

		// lift the initial condition and evolve it under the eigenvalue dynamics
		z0, err := b.Lift(q.Slice(0, n, 0, 1).(*mat.Dense), qd.Slice(0, n, 0, 1).(*mat.Dense))
		if err != nil {
			return nil, err
		}

		evo, err := eigSys.Simulate(z0.ColView(0), ctrl, t, nil)
		if err != nil {
			return nil, err
		}
		eigvalEvo[ii] = mat.DenseCopyOf(evo.T())

		// lift the full ground-truth trajectory
		lifted, err := b.Lift(q, qd)
		if err != nil {
			return nil, err
		}
		eigfuncEvo[ii] = lifted
	}

	// normalization factor: mean over trajectories of the squared evolution energy
	norm := make([]float64, nlift)
	for _, evo := range eigvalEvo {
		sq := mat.NewDense(nlift, nt, nil)
		sq.MulElem(evo, evo)
		for j, s := range matrix.RowSums(sq) {
			norm[j] += s / float64(len(eigvalEvo))
		}
	}

	mean := mat.NewDense(nlift, nt, nil)
	std := mat.NewDense(nlift, nt, nil)

	for j := 0; j < nlift; j++ {
		// per-trajectory normalized absolute error of eigenfunction j
		errs := mat.NewDense(len(X), nt, nil)
		for ii := range X {
			for k := 0; k < nt; k++ {
				e := eigvalEvo[ii].At(j, k) - eigfuncEvo[ii].At(j, k)
				if e < 0 {
					e = -e
				}
				errs.Set(ii, k, e/norm[j])
			}
		}
		mean.SetRow(j, matrix.ColMeans(errs))
		std.SetRow(j, matrix.ColStds(errs))
	}

	return &EvolutionStats{T: t, Mean: mean, Std: std}, nil
}
