package diffeo

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam is an adaptive moment optimizer with decoupled L2 weight decay applied to the
// gradients. Moment estimates are kept per parameter tensor.
type Adam struct {
	beta1, beta2, eps float64
	// weightDecay is the L2 penalty coefficient added to every weight gradient
	weightDecay float64
	// t counts optimizer steps for bias correction
	t int

	mw, vw []*mat.Dense
	mb, vb [][]float64
}

// NewAdam creates new Adam optimizer state for the given network with L2 weight decay
// coefficient weightDecay and returns it.
func NewAdam(net *Net, weightDecay float64) *Adam {
	a := &Adam{
		beta1:       0.9,
		beta2:       0.999,
		eps:         1e-8,
		weightDecay: weightDecay,
	}

	for _, l := range net.layers {
		r, c := l.w.Dims()
		a.mw = append(a.mw, mat.NewDense(r, c, nil))
		a.vw = append(a.vw, mat.NewDense(r, c, nil))
		a.mb = append(a.mb, make([]float64, len(l.b)))
		a.vb = append(a.vb, make([]float64, len(l.b)))
	}

	return a
}

// Step applies one optimizer update to the network parameters from the accumulated
// gradients using learning rate lr, then clears the gradients.
func (a *Adam) Step(net *Net, lr float64) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))

	for li, l := range net.layers {
		rows, cols := l.w.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				g := l.gw.At(i, j) + a.weightDecay*l.w.At(i, j)
				m := a.beta1*a.mw[li].At(i, j) + (1-a.beta1)*g
				v := a.beta2*a.vw[li].At(i, j) + (1-a.beta2)*g*g
				a.mw[li].Set(i, j, m)
				a.vw[li].Set(i, j, v)
				l.w.Set(i, j, l.w.At(i, j)-lr*(m/c1)/(math.Sqrt(v/c2)+a.eps))
			}
		}

		for i := range l.b {
			g := l.gb[i]
			m := a.beta1*a.mb[li][i] + (1-a.beta1)*g
			v := a.beta2*a.vb[li][i] + (1-a.beta2)*g*g
			a.mb[li][i] = m
			a.vb[li][i] = v
			l.b[i] -= lr * (m / c1) / (math.Sqrt(v/c2) + a.eps)
		}
	}

	net.ZeroGrad()
}
