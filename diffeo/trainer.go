package diffeo

import (
	"fmt"
	"math"

	koopman "github.com/eigenlift/go-koopman"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// FitConfig configures one training run of the diffeomorphism network.
type FitConfig struct {
	// LearningRate is the initial Adam learning rate
	LearningRate float64
	// LearningDecay scales the learning rate geometrically per epoch
	LearningDecay float64
	// Epochs is the number of training epochs
	Epochs int
	// TrainFrac is the fraction of samples used for training when no explicit
	// validation set is given
	TrainFrac float64
	// L2 is the weight decay coefficient
	L2 float64
	// JacobianPenalty scales the penalty on the network Jacobian at the origin
	JacobianPenalty float64
	// BatchSize is the mini-batch size
	BatchSize int
	// Initialize reinitializes the network weights before training (cold start);
	// leave false to continue from previously loaded parameters
	Initialize bool
	// Verbose prints per-epoch training and validation loss
	Verbose bool
	// Seed seeds splitting, shuffling, dropout and initialization
	Seed uint64
}

// DefaultFitConfig returns the default training configuration.
func DefaultFitConfig() FitConfig {
	return FitConfig{
		LearningRate:    1e-2,
		LearningDecay:   0.95,
		Epochs:          50,
		TrainFrac:       0.8,
		L2:              1e1,
		JacobianPenalty: 1.0,
		BatchSize:       64,
		Initialize:      true,
		Verbose:         true,
		Seed:            42,
	}
}

// Trainer fits the diffeomorphism network so that the lifted state evolves
// consistently with the eigenvalue structure declared by the closed loop matrix.
type Trainer struct {
	// n is the state dimension
	n int
	// net is the trained network, exclusively owned by the trainer
	net *Net
	// aCl is the closed loop matrix
	aCl *mat.Dense
	// diff supplies numerical derivatives of the shifted trajectories
	diff koopman.Differentiator

	// TrainLoss and ValLoss hold the per-epoch mean losses of the last fit
	TrainLoss []float64
	ValLoss   []float64
}

// NewTrainer creates new Trainer for the given network, closed loop matrix and
// differentiation collaborator and returns it.
// It returns error if either of the following conditions is met:
// - net or diff is nil
// - aCl dimensions do not match the network state dimension
func NewTrainer(net *Net, aCl *mat.Dense, diff koopman.Differentiator) (*Trainer, error) {
	if net == nil {
		return nil, fmt.Errorf("network must be defined")
	}

	if diff == nil {
		return nil, fmt.Errorf("differentiator must be defined")
	}

	if r, c := aCl.Dims(); r != net.n || c != net.n {
		return nil, fmt.Errorf("invalid closed loop matrix dimensions: [%d x %d]", r, c)
	}

	return &Trainer{
		n:    net.n,
		net:  net,
		aCl:  mat.DenseCopyOf(aCl),
		diff: diff,
	}, nil
}

// Net returns the trained network.
func (tr *Trainer) Net() *Net {
	return tr.net
}

// Process shifts every trajectory so its final desired state is the origin, computes
// the numerical derivative of the shifted state and flattens the trajectory and time
// axes into a single sample axis.
// X and Xd hold one Nt x n matrix per trajectory, t one time vector per trajectory.
// It returns the shifted state, its derivative and the shifted desired state as
// (total samples) x n matrices together with the flattened time vector.
// It fails fast with a shape-mismatch error on any inconsistent input.
func (tr *Trainer) Process(X []*mat.Dense, t [][]float64, Xd []*mat.Dense) (xs, xdot, xd *mat.Dense, ts []float64, err error) {
	if len(X) == 0 || len(X) != len(t) || len(X) != len(Xd) {
		return nil, nil, nil, nil, fmt.Errorf("mismatched trajectory counts: %d, %d, %d", len(X), len(t), len(Xd))
	}

	total := 0
	for i := range X {
		rx, cx := X[i].Dims()
		rd, cd := Xd[i].Dims()
		if cx != tr.n || cd != tr.n {
			return nil, nil, nil, nil, fmt.Errorf("invalid state dimension in trajectory %d: %d, %d", i, cx, cd)
		}
		if rx != rd || rx != len(t[i]) {
			return nil, nil, nil, nil, fmt.Errorf("mismatched sample counts in trajectory %d: %d, %d, %d", i, rx, rd, len(t[i]))
		}
		total += rx
	}

	xs = mat.NewDense(total, tr.n, nil)
	xdot = mat.NewDense(total, tr.n, nil)
	xd = mat.NewDense(total, tr.n, nil)
	ts = make([]float64, 0, total)

	row := 0
	for i := range X {
		nt, _ := X[i].Dims()

		// shift dynamics so the final desired state is a fixed point at the origin
		final := mat.Row(nil, nt-1, Xd[i])

		shifted := mat.NewDense(nt, tr.n, nil)
		for r := 0; r < nt; r++ {
			for c := 0; c < tr.n; c++ {
				shifted.Set(r, c, X[i].At(r, c)-final[c])
				xd.Set(row+r, c, Xd[i].At(r, c)-final[c])
			}
		}

		dot, derr := tr.diff.Differentiate(shifted, t[i])
		if derr != nil {
			return nil, nil, nil, nil, derr
		}
		if rd, cd := dot.Dims(); rd != nt || cd != tr.n {
			return nil, nil, nil, nil, fmt.Errorf("invalid derivative dimensions in trajectory %d: [%d x %d]", i, rd, cd)
		}

		for r := 0; r < nt; r++ {
			for c := 0; c < tr.n; c++ {
				xs.Set(row+r, c, shifted.At(r, c))
				xdot.Set(row+r, c, dot.At(r, c))
			}
		}
		ts = append(ts, t[i]...)
		row += nt
	}

	return xs, xdot, xd, ts, nil
}

// Fit trains the network on the given trajectories, splitting off a validation set by
// cfg.TrainFrac, and returns the final epoch's mean validation loss.
func (tr *Trainer) Fit(X []*mat.Dense, t [][]float64, Xd []*mat.Dense, cfg FitConfig) (float64, error) {
	return tr.fit(X, t, Xd, nil, nil, nil, cfg)
}

// FitWithValidation trains the network on the given trajectories using an explicitly
// supplied validation set, processed through the same pipeline, and returns the final
// epoch's mean validation loss.
func (tr *Trainer) FitWithValidation(X []*mat.Dense, t [][]float64, Xd []*mat.Dense, Xv []*mat.Dense, tv [][]float64, Xdv []*mat.Dense, cfg FitConfig) (float64, error) {
	if Xv == nil || tv == nil || Xdv == nil {
		return 0, fmt.Errorf("validation set must be defined")
	}
	return tr.fit(X, t, Xd, Xv, tv, Xdv, cfg)
}

func (tr *Trainer) fit(X []*mat.Dense, t [][]float64, Xd []*mat.Dense, Xv []*mat.Dense, tv [][]float64, Xdv []*mat.Dense, cfg FitConfig) (float64, error) {
	if cfg.BatchSize <= 0 {
		return 0, fmt.Errorf("invalid batch size: %d", cfg.BatchSize)
	}

	if cfg.Epochs <= 0 {
		return 0, fmt.Errorf("invalid epoch count: %d", cfg.Epochs)
	}

	xs, xdot, xd, _, err := tr.Process(X, t, Xd)
	if err != nil {
		return 0, err
	}
	y := tr.target(xs, xdot)

	rng := rand.New(rand.NewSource(cfg.Seed))
	tr.net.rng = rng

	var trainIdx, valIdx []int
	var vxs, vxdot, vxd, vy *mat.Dense

	if Xv == nil {
		// random split of the processed samples
		total, _ := xs.Dims()
		nTrain := int(cfg.TrainFrac * float64(total))
		perm := rng.Perm(total)
		trainIdx = perm[:nTrain]
		valIdx = perm[nTrain:]
		vxs, vxdot, vxd, vy = xs, xdot, xd, y
	} else {
		vxs, vxdot, vxd, _, err = tr.Process(Xv, tv, Xdv)
		if err != nil {
			return 0, err
		}
		vy = tr.target(vxs, vxdot)

		total, _ := xs.Dims()
		vtotal, _ := vxs.Dims()
		trainIdx = sequential(total)
		valIdx = sequential(vtotal)
	}

	if cfg.Initialize {
		tr.net.XavierNormal(rng)
	}

	opt := NewAdam(tr.net, cfg.L2)
	tr.TrainLoss = nil
	tr.ValLoss = nil

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		lr := cfg.LearningRate * math.Pow(cfg.LearningDecay, float64(epoch))

		rng.Shuffle(len(trainIdx), func(i, j int) {
			trainIdx[i], trainIdx[j] = trainIdx[j], trainIdx[i]
		})

		var batchLoss []float64
		for start := 0; start < len(trainIdx); start += cfg.BatchSize {
			end := min(start+cfg.BatchSize, len(trainIdx))
			bxt, bxdot, by := gather(xs, xd, xdot, y, trainIdx[start:end], tr.n)
			batchLoss = append(batchLoss, tr.trainStep(bxt, bxdot, by, opt, lr, cfg.JacobianPenalty))
		}
		tr.TrainLoss = append(tr.TrainLoss, mean(batchLoss))

		var valLoss []float64
		for start := 0; start < len(valIdx); start += cfg.BatchSize {
			end := min(start+cfg.BatchSize, len(valIdx))
			bxt, bxdot, by := gather(vxs, vxd, vxdot, vy, valIdx[start:end], tr.n)
			valLoss = append(valLoss, tr.validateStep(bxt, bxdot, by))
		}
		tr.ValLoss = append(tr.ValLoss, mean(valLoss))

		if cfg.Verbose {
			fmt.Printf(" - Epoch: %d Training loss: %08f Validation loss: %08f\n", epoch, tr.TrainLoss[epoch], tr.ValLoss[epoch])
		}
	}

	return tr.ValLoss[len(tr.ValLoss)-1], nil
}

// target computes the regression target Y = Xdot - X*A_cl^T, the residual derivative
// the diffeomorphism Jacobian must account for.
func (tr *Trainer) target(xs, xdot *mat.Dense) *mat.Dense {
	rows, _ := xs.Dims()
	y := mat.NewDense(rows, tr.n, nil)
	y.Mul(xs, tr.aCl.T())
	y.Sub(xdot, y)

	return y
}

// trainStep runs one forward/backward pass on a mini-batch and applies an optimizer
// update. It returns the batch training loss.
func (tr *Trainer) trainStep(xt, xdot, y *mat.Dense, opt *Adam, lr, jacobianPenalty float64) float64 {
	net := tr.net
	net.Train()
	net.ZeroGrad()

	b, _ := xt.Dims()
	n := tr.n

	act := net.Forward(xt)

	// probe the network at the origin with the same desired states to penalize its
	// Jacobian there, keeping the diffeomorphism linearizable at the fixed point
	probe := mat.NewDense(b, 2*n, nil)
	for i := 0; i < b; i++ {
		for j := n; j < 2*n; j++ {
			probe.Set(i, j, xt.At(i, j))
		}
	}
	pact := net.Forward(probe)

	jacs := make([]*mat.Dense, b)
	for i := range jacs {
		jacs[i] = act.Jacobian(i)
	}
	hdot := contract(jacs, xdot, n)

	res := tr.residual(y, hdot, act.Output)
	loss := meanSq(res)

	// origin-probe Jacobian penalty over the state block
	var pen float64
	pjacs := make([]*mat.Dense, b)
	for i := range pjacs {
		pjacs[i] = pact.Jacobian(i)
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				v := pjacs[i].At(r, c)
				pen += v * v
			}
		}
	}
	pen /= float64(b * n * n)
	loss += jacobianPenalty * pen

	// gradient through the network output: dL/dout = 2/(b*n) * res * A_cl
	gOut := mat.NewDense(b, n, nil)
	gOut.Mul(res, tr.aCl)
	gOut.Scale(2/float64(b*n), gOut)
	act.Backward(gOut)

	// gradient through the Jacobian contraction:
	// dL/dJ_i[r,c] = -2/(b*n) * res[i,r] * xdot[i,c] for c < n
	jgrads := make([]*mat.Dense, b)
	for i := 0; i < b; i++ {
		g := mat.NewDense(n, 2*n, nil)
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				g.Set(r, c, -2/float64(b*n)*res.At(i, r)*xdot.At(i, c))
			}
		}
		jgrads[i] = g
	}
	act.JacobianBackward(jgrads)

	// gradient through the penalty: dL/dJ0_i[r,c] = 2*penalty/(b*n*n) * J0_i[r,c]
	pgrads := make([]*mat.Dense, b)
	for i := 0; i < b; i++ {
		g := mat.NewDense(n, 2*n, nil)
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				g.Set(r, c, 2*jacobianPenalty/float64(b*n*n)*pjacs[i].At(r, c))
			}
		}
		pgrads[i] = g
	}
	pact.JacobianBackward(pgrads)

	opt.Step(net, lr)

	return loss
}

// validateStep computes the batch loss without the Jacobian penalty and without
// updating any parameters.
func (tr *Trainer) validateStep(xt, xdot, y *mat.Dense) float64 {
	net := tr.net
	net.Eval()

	b, _ := xt.Dims()

	act := net.Forward(xt)
	jacs := make([]*mat.Dense, b)
	for i := range jacs {
		jacs[i] = act.Jacobian(i)
	}
	hdot := contract(jacs, xdot, tr.n)

	return meanSq(tr.residual(y, hdot, act.Output))
}

// residual computes y - (hdot - A_cl*out) per sample row.
func (tr *Trainer) residual(y, hdot, out *mat.Dense) *mat.Dense {
	rows, _ := y.Dims()

	res := mat.NewDense(rows, tr.n, nil)
	res.Mul(out, tr.aCl.T())
	res.Sub(res, hdot)
	res.Add(y, res)

	return res
}

// contract multiplies the state block of each per-sample Jacobian with that sample's
// state derivative, yielding the predicted derivative of the learned correction.
func contract(jacs []*mat.Dense, xdot *mat.Dense, n int) *mat.Dense {
	hdot := mat.NewDense(len(jacs), n, nil)
	for i, j := range jacs {
		for r := 0; r < n; r++ {
			var s float64
			for c := 0; c < n; c++ {
				s += j.At(r, c) * xdot.At(i, c)
			}
			hdot.Set(i, r, s)
		}
	}

	return hdot
}

// gather assembles the network input [x, x_d], the state derivative and the target
// for the given sample rows.
func gather(xs, xd, xdot, y *mat.Dense, idx []int, n int) (bxt, bxdot, by *mat.Dense) {
	bxt = mat.NewDense(len(idx), 2*n, nil)
	bxdot = mat.NewDense(len(idx), n, nil)
	by = mat.NewDense(len(idx), n, nil)

	for i, row := range idx {
		for c := 0; c < n; c++ {
			bxt.Set(i, c, xs.At(row, c))
			bxt.Set(i, n+c, xd.At(row, c))
			bxdot.Set(i, c, xdot.At(row, c))
			by.Set(i, c, y.At(row, c))
		}
	}

	return bxt, bxdot, by
}

func meanSq(m *mat.Dense) float64 {
	rows, cols := m.Dims()
	var s float64
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			s += v * v
		}
	}

	return s / float64(rows*cols)
}

func mean(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}

	return s / float64(len(xs))
}

func sequential(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	return idx
}
