// Package eigfn constructs Koopman eigenfunction bases for lifting nonlinear
// state-space dynamics into approximately linear coordinates.
//
// Principal eigenfunctions of the linearized closed-loop dynamics are combined into a
// product basis enumerated by an integer power matrix, optionally composed with a
// learned diffeomorphism correction and an affine state scaling.
package eigfn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Eigenfunctions builds principal eigenfunctions of the linearized closed-loop
// dynamics xdot = A_cl*x.
type Eigenfunctions struct {
	// n is the state dimension
	n int
	// maxPower is the largest exponent applied to any principal eigenfunction
	maxPower int
	// aCl is the closed loop matrix in continuous time
	aCl *mat.Dense
	// bk is the control gain matrix
	bk *mat.Dense
}

// New creates new Eigenfunctions for an n dimensional system with closed loop matrix
// aCl and control gain matrix bk and returns it.
// It returns error if either of the following conditions is met:
// - n or maxPower is not a valid dimension: n must be positive, maxPower non-negative
// - aCl is not an n x n matrix
// - bk is non-nil and does not have n rows
func New(n, maxPower int, aCl, bk *mat.Dense) (*Eigenfunctions, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid state dimension: %d", n)
	}

	if maxPower < 0 {
		return nil, fmt.Errorf("invalid max power: %d", maxPower)
	}

	if aCl == nil {
		return nil, fmt.Errorf("closed loop matrix must be defined")
	}

	if r, c := aCl.Dims(); r != n || c != n {
		return nil, fmt.Errorf("invalid closed loop matrix dimensions: [%d x %d]", r, c)
	}

	if bk != nil {
		if r, _ := bk.Dims(); r != n {
			return nil, fmt.Errorf("invalid control gain matrix rows: %d", r)
		}
	}

	return &Eigenfunctions{
		n:        n,
		maxPower: maxPower,
		aCl:      mat.DenseCopyOf(aCl),
		bk:       cloneOrNil(bk),
	}, nil
}

// ConstructBasis builds the eigenfunction basis for states scaled into the bounds
// given by ub and lb and returns it.
// Eigenvalues of aCl and left eigenvectors with non-zero imaginary parts are truncated
// to their real parts; the returned basis reports this via its TruncatedComplex flag.
// It returns error if the bound vectors do not have length n or if the
// eigendecomposition fails.
func (e *Eigenfunctions) ConstructBasis(ub, lb []float64) (*Basis, error) {
	if len(ub) != e.n || len(lb) != e.n {
		return nil, fmt.Errorf("invalid bound vector lengths: %d, %d", len(ub), len(lb))
	}

	scale, err := NewScaling(ub, lb)
	if err != nil {
		return nil, err
	}

	lambda, w, truncated, err := leftEigen(e.aCl)
	if err != nil {
		return nil, err
	}

	powers := powerRows(e.n, e.maxPower)

	// Lambda[i] = log(prod_j exp(lambda_j)^powers[i][j]), the eigenvalue governing
	// eigenfunction i under a diagonal linear generator.
	bigLambda := make([]float64, len(powers))
	for i, row := range powers {
		prod := 1.0
		for j, p := range row {
			prod *= math.Pow(math.Exp(lambda[j]), float64(p))
		}
		bigLambda[i] = math.Log(prod)
	}

	return &Basis{
		n:                e.n,
		w:                w,
		powers:           powers,
		lambda:           bigLambda,
		scale:            scale,
		TruncatedComplex: truncated,
	}, nil
}

// StateMatrix returns the closed loop matrix aCl.
func (e *Eigenfunctions) StateMatrix() *mat.Dense {
	return mat.DenseCopyOf(e.aCl)
}

// ControlGainMatrix returns the control gain matrix bk.
func (e *Eigenfunctions) ControlGainMatrix() *mat.Dense {
	return cloneOrNil(e.bk)
}

// Dims returns the state dimension and the max eigenfunction power.
func (e *Eigenfunctions) Dims() (n, maxPower int) {
	return e.n, e.maxPower
}

// leftEigen computes the eigenvalues of a and the eigenvectors of its transpose.
// Non-zero imaginary parts are dropped and reported via truncated.
func leftEigen(a *mat.Dense) (lambda []float64, w *mat.Dense, truncated bool, err error) {
	n, _ := a.Dims()

	var eig mat.Eigen
	if ok := eig.Factorize(a, mat.EigenRight); !ok {
		return nil, nil, false, fmt.Errorf("eigendecomposition of closed loop matrix failed")
	}
	vals := eig.Values(nil)

	var left mat.Eigen
	at := mat.DenseCopyOf(a.T())
	if ok := left.Factorize(at, mat.EigenRight); !ok {
		return nil, nil, false, fmt.Errorf("eigendecomposition of transposed closed loop matrix failed")
	}
	var cw mat.CDense
	left.VectorsTo(&cw)

	lambda = make([]float64, n)
	for i, v := range vals {
		if imag(v) != 0 {
			truncated = true
		}
		lambda[i] = real(v)
	}

	w = mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := cw.At(i, j)
			if imag(v) != 0 {
				truncated = true
			}
			w.Set(i, j, real(v))
		}
	}

	return lambda, w, truncated, nil
}

func cloneOrNil(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	return mat.DenseCopyOf(m)
}
