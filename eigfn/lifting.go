package eigfn

import (
	"fmt"

	koopman "github.com/eigenlift/go-koopman"
	"github.com/eigenlift/go-koopman/deriv"
	"github.com/eigenlift/go-koopman/diffeo"
	"gonum.org/v1/gonum/mat"
)

// Koopman constructs and lifts with Koopman eigenfunctions: it owns the linear
// eigenfunction basis, the learned diffeomorphism network and its trainer.
type Koopman struct {
	eig   *Eigenfunctions
	basis *Basis
	net   *diffeo.Net
	tr    *diffeo.Trainer
	diff  koopman.Differentiator
}

// NewKoopman creates new Koopman for an n dimensional system with closed loop matrix
// aCl, control gain matrix bk and maximum eigenfunction power maxPower and returns it.
func NewKoopman(n, maxPower int, aCl, bk *mat.Dense) (*Koopman, error) {
	eig, err := New(n, maxPower, aCl, bk)
	if err != nil {
		return nil, err
	}

	return &Koopman{
		eig:  eig,
		diff: deriv.Gradient{},
	}, nil
}

// SetDifferentiator replaces the numerical differentiation collaborator used when
// processing training trajectories.
func (k *Koopman) SetDifferentiator(d koopman.Differentiator) {
	k.diff = d
}

// ConstructBasis builds the eigenfunction basis for states bounded by ub and lb.
// The learned diffeomorphism, if built, is composed into the basis.
func (k *Koopman) ConstructBasis(ub, lb []float64) error {
	basis, err := k.eig.ConstructBasis(ub, lb)
	if err != nil {
		return err
	}
	if k.net != nil {
		basis.Corrector = k.net
	}
	k.basis = basis

	return nil
}

// Basis returns the constructed eigenfunction basis.
func (k *Koopman) Basis() *Basis {
	return k.basis
}

// BuildDiffeomorphismModel builds the diffeomorphism network and its trainer with the
// given configuration.
func (k *Koopman) BuildDiffeomorphismModel(cfg diffeo.Config) error {
	n, _ := k.eig.Dims()

	net, err := diffeo.NewNet(n, cfg)
	if err != nil {
		return err
	}

	tr, err := diffeo.NewTrainer(net, k.eig.aCl, k.diff)
	if err != nil {
		return err
	}

	k.net = net
	k.tr = tr
	if k.basis != nil {
		k.basis.Corrector = net
	}

	return nil
}

// Net returns the diffeomorphism network.
func (k *Koopman) Net() *diffeo.Net {
	return k.net
}

// FitDiffeomorphismModel trains the diffeomorphism network on the given trajectories
// and returns the final epoch's mean validation loss.
func (k *Koopman) FitDiffeomorphismModel(X []*mat.Dense, t [][]float64, Xd []*mat.Dense, cfg diffeo.FitConfig) (float64, error) {
	if k.tr == nil {
		return 0, fmt.Errorf("diffeomorphism model must be built before fitting")
	}

	return k.tr.Fit(X, t, Xd, cfg)
}

// FitDiffeomorphismModelWithValidation trains the diffeomorphism network on the given
// trajectories with an explicit validation set and returns the final epoch's mean
// validation loss.
func (k *Koopman) FitDiffeomorphismModelWithValidation(X []*mat.Dense, t [][]float64, Xd []*mat.Dense, Xv []*mat.Dense, tv [][]float64, Xdv []*mat.Dense, cfg diffeo.FitConfig) (float64, error) {
	if k.tr == nil {
		return 0, fmt.Errorf("diffeomorphism model must be built before fitting")
	}

	return k.tr.FitWithValidation(X, t, Xd, Xv, tv, Xdv, cfg)
}

// Lift maps the state and desired state trajectories q and qd (both n x Nt) into
// lifted coordinates, one NumLifted column per time sample.
func (k *Koopman) Lift(q, qd *mat.Dense) (*mat.Dense, error) {
	if k.basis == nil {
		return nil, fmt.Errorf("basis must be constructed before lifting")
	}

	return k.basis.Lift(q, qd)
}

// NumLifted returns the dimension of the lifted space.
func (k *Koopman) NumLifted() int {
	if k.basis == nil {
		return 0
	}

	return k.basis.NumLifted()
}

// SaveDiffeomorphismModel writes the diffeomorphism parameters to the file at path.
func (k *Koopman) SaveDiffeomorphismModel(path string) error {
	if k.net == nil {
		return fmt.Errorf("diffeomorphism model must be built before saving")
	}

	return k.net.SaveState(path)
}

// LoadDiffeomorphismModel restores the diffeomorphism parameters from the file at
// path. The network architecture must have been built first.
func (k *Koopman) LoadDiffeomorphismModel(path string) error {
	if k.net == nil {
		return fmt.Errorf("diffeomorphism model must be built before loading")
	}

	return k.net.LoadState(path)
}
