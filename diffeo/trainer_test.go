package diffeo

import (
	"math"
	"testing"

	"github.com/eigenlift/go-koopman/deriv"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

// linearTrajectories generates trajectories of xdot = A*x for a diagonal A, sampled
// on a uniform grid, with zero desired state. The true diffeomorphism correction for
// this data is exactly zero.
func linearTrajectories(ntraj, nt int, eigs []float64, dt float64) (X []*mat.Dense, t [][]float64, Xd []*mat.Dense) {
	n := len(eigs)
	for i := 0; i < ntraj; i++ {
		traj := mat.NewDense(nt, n, nil)
		ts := make([]float64, nt)
		for k := 0; k < nt; k++ {
			ts[k] = dt * float64(k)
			for j := 0; j < n; j++ {
				x0 := 0.5 + 0.1*float64(i+j)
				traj.Set(k, j, x0*math.Exp(eigs[j]*ts[k]))
			}
		}
		X = append(X, traj)
		t = append(t, ts)
		Xd = append(Xd, mat.NewDense(nt, n, nil))
	}

	return X, t, Xd
}

func newTestTrainer(t *testing.T, n int, aCl *mat.Dense) *Trainer {
	t.Helper()

	net, err := NewNet(n, Config{NHiddenLayers: 1, LayerWidth: 16, BatchSize: 32, DropoutProb: 0})
	assert.NoError(t, err)

	tr, err := NewTrainer(net, aCl, deriv.Gradient{})
	assert.NoError(t, err)

	return tr
}

func TestNewTrainer(t *testing.T) {
	assert := assert.New(t)

	aCl := mat.NewDense(2, 2, []float64{-1, 0, 0, -2})
	net, err := NewNet(2, DefaultConfig())
	assert.NoError(err)

	tr, err := NewTrainer(net, aCl, deriv.Gradient{})
	assert.NotNil(tr)
	assert.NoError(err)

	tr, err = NewTrainer(nil, aCl, deriv.Gradient{})
	assert.Nil(tr)
	assert.Error(err)

	tr, err = NewTrainer(net, aCl, nil)
	assert.Nil(tr)
	assert.Error(err)

	tr, err = NewTrainer(net, mat.NewDense(3, 3, nil), deriv.Gradient{})
	assert.Nil(tr)
	assert.Error(err)
}

func TestProcessShapes(t *testing.T) {
	assert := assert.New(t)

	aCl := mat.NewDense(2, 2, []float64{-1, 0, 0, -2})
	tr := newTestTrainer(t, 2, aCl)

	const (
		ntraj = 3
		nt    = 5
	)
	X, ts, Xd := linearTrajectories(ntraj, nt, []float64{-1, -2}, 0.1)

	xs, xdot, xd, flat, err := tr.Process(X, ts, Xd)
	assert.NoError(err)

	rs, cs := xs.Dims()
	rdot, cdot := xdot.Dims()
	rd, cd := xd.Dims()
	assert.Equal(ntraj*nt, rs)
	assert.Equal(rs, rdot)
	assert.Equal(rs, rd)
	assert.Equal(2, cs)
	assert.Equal(cs, cdot)
	assert.Equal(cs, cd)
	assert.Equal(ntraj*nt, len(flat))
}

func TestProcessShift(t *testing.T) {
	assert := assert.New(t)

	aCl := mat.NewDense(2, 2, []float64{-1, 0, 0, -2})
	tr := newTestTrainer(t, 2, aCl)

	// constant desired state: the shifted state must end at the origin offset
	X := []*mat.Dense{mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})}
	Xd := []*mat.Dense{mat.NewDense(3, 2, []float64{1, 1, 1, 1, 1, 1})}
	ts := [][]float64{{0, 0.1, 0.2}}

	xs, _, xd, _, err := tr.Process(X, ts, Xd)
	assert.NoError(err)

	assert.InDelta(0.0, xs.At(0, 0), 1e-12)
	assert.InDelta(1.0, xs.At(0, 1), 1e-12)
	assert.InDelta(4.0, xs.At(2, 0), 1e-12)
	for i := 0; i < 3; i++ {
		assert.InDelta(0.0, xd.At(i, 0), 1e-12)
		assert.InDelta(0.0, xd.At(i, 1), 1e-12)
	}
}

func TestProcessShapeMismatch(t *testing.T) {
	assert := assert.New(t)

	aCl := mat.NewDense(2, 2, []float64{-1, 0, 0, -2})
	tr := newTestTrainer(t, 2, aCl)

	X, ts, Xd := linearTrajectories(2, 5, []float64{-1, -2}, 0.1)

	_, _, _, _, err := tr.Process(X[:1], ts, Xd)
	assert.Error(err)

	// time vector length mismatch
	bad := [][]float64{ts[0], ts[1][:3]}
	_, _, _, _, err = tr.Process(X, bad, Xd)
	assert.Error(err)

	// state dimension mismatch
	_, _, _, _, err = tr.Process([]*mat.Dense{mat.NewDense(5, 3, nil), X[1]}, ts, Xd)
	assert.Error(err)
}

func TestFitLossDecreases(t *testing.T) {
	assert := assert.New(t)

	aCl := mat.NewDense(2, 2, []float64{-1, 0, 0, -2})
	tr := newTestTrainer(t, 2, aCl)

	X, ts, Xd := linearTrajectories(5, 40, []float64{-1, -2}, 0.05)

	cfg := FitConfig{
		LearningRate:    5e-3,
		LearningDecay:   0.95,
		Epochs:          15,
		TrainFrac:       0.8,
		L2:              1e-4,
		JacobianPenalty: 0.1,
		BatchSize:       32,
		Initialize:      true,
		Verbose:         false,
		Seed:            42,
	}

	loss, err := tr.Fit(X, ts, Xd, cfg)
	assert.NoError(err)
	assert.Equal(cfg.Epochs, len(tr.TrainLoss))
	assert.Equal(cfg.Epochs, len(tr.ValLoss))
	assert.Equal(tr.ValLoss[len(tr.ValLoss)-1], loss)

	// on a linear system the true correction is zero; training must reduce the loss
	assert.Less(tr.TrainLoss[len(tr.TrainLoss)-1], tr.TrainLoss[0])
	assert.False(math.IsNaN(loss))
}

func TestFitJacobianPenaltyDrivesProbeJacobian(t *testing.T) {
	assert := assert.New(t)

	aCl := mat.NewDense(2, 2, []float64{-1, 0, 0, -2})
	X, ts, Xd := linearTrajectories(5, 40, []float64{-1, -2}, 0.05)

	cfg := FitConfig{
		LearningRate:    5e-3,
		LearningDecay:   0.95,
		Epochs:          15,
		TrainFrac:       0.8,
		L2:              0,
		BatchSize:       32,
		Initialize:      true,
		Verbose:         false,
		Seed:            42,
	}

	norms := make([]float64, 2)
	for i, penalty := range []float64{0, 10} {
		tr := newTestTrainer(t, 2, aCl)
		cfg.JacobianPenalty = penalty
		_, err := tr.Fit(X, ts, Xd, cfg)
		assert.NoError(err)
		norms[i] = probeJacobianNorm(tr.Net())
	}

	assert.Less(norms[1], norms[0])
}

// probeJacobianNorm measures the Frobenius norm of the state block of the network
// Jacobian at the origin probe input.
func probeJacobianNorm(net *Net) float64 {
	net.Eval()
	in, out := net.Dims()
	n := out

	probe := mat.NewDense(1, in, nil)
	for j := n; j < in; j++ {
		probe.Set(0, j, 0.3)
	}

	jac := net.Forward(probe).Jacobian(0)
	var s float64
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			s += jac.At(r, c) * jac.At(r, c)
		}
	}

	return math.Sqrt(s)
}

func TestFitWithValidation(t *testing.T) {
	assert := assert.New(t)

	aCl := mat.NewDense(2, 2, []float64{-1, 0, 0, -2})
	tr := newTestTrainer(t, 2, aCl)

	X, ts, Xd := linearTrajectories(4, 20, []float64{-1, -2}, 0.05)
	Xv, tv, Xdv := linearTrajectories(2, 20, []float64{-1, -2}, 0.05)

	cfg := DefaultFitConfig()
	cfg.Epochs = 2
	cfg.BatchSize = 16
	cfg.Verbose = false

	loss, err := tr.FitWithValidation(X, ts, Xd, Xv, tv, Xdv, cfg)
	assert.NoError(err)
	assert.False(math.IsNaN(loss))

	_, err = tr.FitWithValidation(X, ts, Xd, nil, nil, nil, cfg)
	assert.Error(err)
}

func TestFitInvalidConfig(t *testing.T) {
	assert := assert.New(t)

	aCl := mat.NewDense(2, 2, []float64{-1, 0, 0, -2})
	tr := newTestTrainer(t, 2, aCl)

	X, ts, Xd := linearTrajectories(2, 10, []float64{-1, -2}, 0.05)

	cfg := DefaultFitConfig()
	cfg.BatchSize = 0
	_, err := tr.Fit(X, ts, Xd, cfg)
	assert.Error(err)

	cfg = DefaultFitConfig()
	cfg.Epochs = 0
	_, err = tr.Fit(X, ts, Xd, cfg)
	assert.Error(err)
}
