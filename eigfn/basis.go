package eigfn

import (
	"fmt"
	"math"

	koopman "github.com/eigenlift/go-koopman"
	"gonum.org/v1/gonum/mat"
)

// Basis is a Koopman eigenfunction basis composed of a diffeomorphism correction, an
// affine state scaling and products of principal eigenfunctions of the linearized
// closed-loop dynamics.
type Basis struct {
	// n is the state dimension
	n int
	// w holds left eigenvectors of the closed loop matrix in its columns
	w *mat.Dense
	// powers enumerates the eigenfunction exponents, one row per basis function
	powers [][]int
	// lambda holds the eigenvalue governing each basis function
	lambda []float64
	// scale maps state into the bounded domain
	scale *Scaling

	// Corrector supplies the learned diffeomorphism correction. A nil Corrector
	// leaves the state untouched.
	Corrector koopman.Corrector
	// ApplyCorrection adds the Corrector output to the state before scaling. When
	// false the correction is still evaluated but the raw state passes through.
	ApplyCorrection bool
	// TruncatedComplex reports that complex eigenvalues or eigenvector entries were
	// truncated to their real parts during construction.
	TruncatedComplex bool
}

// NumLifted returns the number of basis functions.
func (b *Basis) NumLifted() int {
	return len(b.powers)
}

// Lambda returns a copy of the eigenvalues governing the basis functions, row-aligned
// with Powers.
func (b *Basis) Lambda() []float64 {
	l := make([]float64, len(b.lambda))
	copy(l, b.lambda)

	return l
}

// Powers returns a copy of the integer power matrix, row-aligned with Lambda.
func (b *Basis) Powers() [][]int {
	rows := make([][]int, len(b.powers))
	for i, r := range b.powers {
		rows[i] = make([]int, len(r))
		copy(rows[i], r)
	}

	return rows
}

// Eval evaluates all basis functions for a single (state, desired state) pair and
// returns the lifted vector of length NumLifted.
func (b *Basis) Eval(q, qd []float64) []float64 {
	h := b.diffeomorphism(q, qd)
	scaled := b.scale.Apply(h)

	// principal eigenfunctions of the linearized system: psi = W^T * q
	psi := make([]float64, b.n)
	for j := 0; j < b.n; j++ {
		var s float64
		for i := 0; i < b.n; i++ {
			s += b.w.At(i, j) * scaled[i]
		}
		psi[j] = s
	}

	out := make([]float64, len(b.powers))
	for i, row := range b.powers {
		prod := 1.0
		for j, p := range row {
			// math.Pow(0, 0) == 1, so the constant eigenfunction is exactly one
			prod *= math.Pow(psi[j], float64(p))
		}
		out[i] = prod
	}

	return out
}

// Lift applies the basis independently to each time column of the state and desired
// state trajectories q and qd (both n x Nt) and returns the lifted trajectory as an
// NumLifted x Nt matrix.
// It returns error if the trajectory dimensions do not match.
func (b *Basis) Lift(q, qd *mat.Dense) (*mat.Dense, error) {
	if q == nil || qd == nil {
		return nil, fmt.Errorf("invalid trajectory supplied")
	}

	rq, cq := q.Dims()
	rd, cd := qd.Dims()
	if rq != b.n || rd != b.n || cq != cd {
		return nil, fmt.Errorf("invalid trajectory dimensions: [%d x %d], [%d x %d]", rq, cq, rd, cd)
	}

	out := mat.NewDense(b.NumLifted(), cq, nil)
	for ii := 0; ii < cq; ii++ {
		z := b.Eval(mat.Col(nil, ii, q), mat.Col(nil, ii, qd))
		out.SetCol(ii, z)
	}

	return out, nil
}

// diffeomorphism applies the learned correction to the state. The corrected branch is
// gated by ApplyCorrection; the default returns the raw state.
func (b *Basis) diffeomorphism(q, qd []float64) []float64 {
	out := make([]float64, len(q))
	copy(out, q)

	if b.Corrector == nil {
		return out
	}

	d := b.Corrector.Correct(q, qd)
	if b.ApplyCorrection {
		for i := range out {
			out[i] += d[i]
		}
	}

	return out
}
