// Package diffeo learns a diffeomorphism correction mapping (state, desired state)
// pairs to a state-space correction, trained against a Jacobian-consistency loss that
// penalizes deviation from the eigenvalue-evolution equations and non-smoothness at
// the origin.
package diffeo

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Config configures the diffeomorphism network architecture.
type Config struct {
	// NHiddenLayers is the number of hidden blocks after the input layer
	NHiddenLayers int
	// LayerWidth is the width of every hidden layer
	LayerWidth int
	// BatchSize is the mini-batch size used during training
	BatchSize int
	// DropoutProb is the dropout probability applied between hidden blocks
	DropoutProb float64
}

// DefaultConfig returns the default network configuration.
func DefaultConfig() Config {
	return Config{
		NHiddenLayers: 2,
		LayerWidth:    50,
		BatchSize:     64,
		DropoutProb:   0.1,
	}
}

// linear is a fully connected layer with accumulated parameter gradients.
type linear struct {
	// w is the weight matrix, out x in
	w *mat.Dense
	// b is the bias vector
	b []float64
	// gw accumulates the weight gradient
	gw *mat.Dense
	// gb accumulates the bias gradient
	gb []float64
}

func newLinear(in, out int) *linear {
	return &linear{
		w:  mat.NewDense(out, in, nil),
		b:  make([]float64, out),
		gw: mat.NewDense(out, in, nil),
		gb: make([]float64, out),
	}
}

// Net is a feed-forward diffeomorphism network mapping 2n inputs (state concatenated
// with desired state) to n outputs. Hidden blocks use rectified-linear activations
// with dropout between all but the last hidden block; the output layer is linear.
// All computation is in double precision.
type Net struct {
	// n is the state dimension; the input dimension is 2n
	n int
	// layers holds the linear layers, output layer last
	layers []*linear
	// dropAfter marks hidden layers followed by dropout
	dropAfter []bool
	// p is the dropout probability
	p float64
	// training gates dropout
	training bool
	// rng draws dropout masks and initial weights
	rng *rand.Rand
}

// NewNet creates new Net for an n dimensional system and returns it.
// It returns error if either of the following conditions is met:
// - n or cfg.LayerWidth is not positive
// - cfg.NHiddenLayers is negative
// - cfg.DropoutProb is outside [0,1)
func NewNet(n int, cfg Config) (*Net, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid state dimension: %d", n)
	}

	if cfg.LayerWidth <= 0 {
		return nil, fmt.Errorf("invalid layer width: %d", cfg.LayerWidth)
	}

	if cfg.NHiddenLayers < 0 {
		return nil, fmt.Errorf("invalid hidden layer count: %d", cfg.NHiddenLayers)
	}

	if cfg.DropoutProb < 0 || cfg.DropoutProb >= 1 {
		return nil, fmt.Errorf("invalid dropout probability: %f", cfg.DropoutProb)
	}

	in, h, out := 2*n, cfg.LayerWidth, n

	layers := []*linear{newLinear(in, h)}
	dropAfter := []bool{false}
	for ii := 0; ii < cfg.NHiddenLayers; ii++ {
		layers = append(layers, newLinear(h, h))
		dropAfter = append(dropAfter, ii < cfg.NHiddenLayers-1)
	}
	layers = append(layers, newLinear(h, out))

	net := &Net{
		n:         n,
		layers:    layers,
		dropAfter: dropAfter,
		p:         cfg.DropoutProb,
		rng:       rand.New(rand.NewSource(1)),
	}
	net.XavierNormal(net.rng)

	return net, nil
}

// Dims returns the input and output dimensions of the network.
func (net *Net) Dims() (in, out int) {
	return 2 * net.n, net.n
}

// Train switches the network to training mode, enabling dropout.
func (net *Net) Train() { net.training = true }

// Eval switches the network to evaluation mode, disabling dropout.
func (net *Net) Eval() { net.training = false }

// Training reports whether the network is in training mode.
func (net *Net) Training() bool { return net.training }

// Seed reseeds the dropout and initialization source.
func (net *Net) Seed(seed uint64) {
	net.rng = rand.New(rand.NewSource(seed))
}

// XavierNormal reinitializes every linear layer with a variance-preserving normal
// distribution, std = sqrt(2/(fanIn+fanOut)). Biases are reset to zero.
func (net *Net) XavierNormal(rng *rand.Rand) {
	for _, l := range net.layers {
		out, in := l.w.Dims()
		dist := distuv.Normal{Mu: 0, Sigma: math.Sqrt(2 / float64(in+out)), Src: rng}
		for i := 0; i < out; i++ {
			for j := 0; j < in; j++ {
				l.w.Set(i, j, dist.Rand())
			}
			l.b[i] = 0
		}
	}
}

// Activation records one forward pass through the network. It retains the layer
// activations and the combined rectifier/dropout masks needed by backward passes.
type Activation struct {
	net *Net
	// input is the forward input batch
	input *mat.Dense
	// acts holds the post-activation output of each hidden layer
	acts []*mat.Dense
	// masks holds d(activation)/d(preactivation) for each hidden layer, folding the
	// rectifier derivative and the inverted dropout scale into one diagonal factor
	masks []*mat.Dense
	// Output is the network output batch
	Output *mat.Dense
}

// Forward runs the network on a batch (rows are samples, 2n columns) and returns the
// activation record needed for backward passes.
func (net *Net) Forward(x *mat.Dense) *Activation {
	nh := len(net.layers) - 1

	a := &Activation{
		net:   net,
		input: x,
		acts:  make([]*mat.Dense, nh),
		masks: make([]*mat.Dense, nh),
	}

	cur := x
	for l := 0; l < nh; l++ {
		z := affine(cur, net.layers[l])
		rows, cols := z.Dims()

		mask := mat.NewDense(rows, cols, nil)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				d := 0.0
				if z.At(i, j) > 0 {
					d = 1.0
				}
				if d > 0 && net.training && net.dropAfter[l] && net.p > 0 {
					if net.rng.Float64() < net.p {
						d = 0
					} else {
						d = 1 / (1 - net.p)
					}
				}
				mask.Set(i, j, d)
				z.Set(i, j, z.At(i, j)*d)
			}
		}

		a.masks[l] = mask
		a.acts[l] = z
		cur = z
	}

	a.Output = affine(cur, net.layers[nh])

	return a
}

// Predict evaluates the network on a batch without recording activations and with
// dropout disabled.
func (net *Net) Predict(x *mat.Dense) *mat.Dense {
	training := net.training
	net.training = false
	out := net.Forward(x).Output
	net.training = training

	return out
}

// Correct implements koopman.Corrector for a single (state, desired state) pair.
func (net *Net) Correct(q, qd []float64) []float64 {
	in := mat.NewDense(1, 2*net.n, nil)
	for i := 0; i < net.n; i++ {
		in.Set(0, i, q[i])
		in.Set(0, net.n+i, qd[i])
	}

	return net.Predict(in).RawRowView(0)
}

// ZeroGrad resets all accumulated parameter gradients.
func (net *Net) ZeroGrad() {
	for _, l := range net.layers {
		l.gw.Zero()
		for i := range l.gb {
			l.gb[i] = 0
		}
	}
}

// affine computes x*W^T + b for a batch x.
func affine(x *mat.Dense, l *linear) *mat.Dense {
	rows, _ := x.Dims()
	out, _ := l.w.Dims()

	z := mat.NewDense(rows, out, nil)
	z.Mul(x, l.w.T())
	for i := 0; i < rows; i++ {
		for j := 0; j < out; j++ {
			z.Set(i, j, z.At(i, j)+l.b[j])
		}
	}

	return z
}
