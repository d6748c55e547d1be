package diffeo

import "gonum.org/v1/gonum/mat"

// Backward backpropagates the upstream gradient of a scalar loss with respect to the
// recorded network output, accumulating parameter gradients in the network. It returns
// the gradient with respect to the forward input batch.
// It panics if the activation record does not hold a forward pass.
func (a *Activation) Backward(grad *mat.Dense) *mat.Dense {
	a.mustRecord()

	g := grad
	for l := len(a.net.layers) - 1; l >= 0; l-- {
		layer := a.net.layers[l]

		prev := a.input
		if l > 0 {
			prev = a.acts[l-1]
		}

		var gw mat.Dense
		gw.Mul(g.T(), prev)
		layer.gw.Add(layer.gw, &gw)

		rows, cols := g.Dims()
		for j := 0; j < cols; j++ {
			for i := 0; i < rows; i++ {
				layer.gb[j] += g.At(i, j)
			}
		}

		next := new(mat.Dense)
		next.Mul(g, layer.w)
		if l > 0 {
			next.MulElem(next, a.masks[l-1])
		}
		g = next
	}

	return g
}

// Jacobian returns the Jacobian of the network output with respect to the forward
// input for sample i of the recorded batch, as an out x in matrix. Each row is
// assembled by one backward pass for the corresponding output coordinate; this is the
// dominant cost of training.
// It panics if the activation record does not hold a forward pass.
func (a *Activation) Jacobian(i int) *mat.Dense {
	a.mustRecord()

	in, out := a.net.Dims()
	jac := mat.NewDense(out, in, nil)

	for k := 0; k < out; k++ {
		g := make([]float64, out)
		g[k] = 1

		for l := len(a.net.layers) - 1; l >= 0; l-- {
			layer := a.net.layers[l]
			rows, cols := layer.w.Dims()

			next := make([]float64, cols)
			for c := 0; c < cols; c++ {
				var s float64
				for r := 0; r < rows; r++ {
					s += layer.w.At(r, c) * g[r]
				}
				next[c] = s
			}
			if l > 0 {
				mask := a.masks[l-1].RawRowView(i)
				for c := range next {
					next[c] *= mask[c]
				}
			}
			g = next
		}

		jac.SetRow(k, g)
	}

	return jac
}

// JacobianBackward accumulates parameter gradients for a loss term that is linear in
// the per-sample input Jacobians. grads holds, for each sample of the recorded batch,
// the gradient of the loss with respect to that sample's Jacobian (out x in); a nil
// entry skips the sample. Biases do not enter the Jacobian and receive no gradient.
// It panics if the activation record does not hold a forward pass.
func (a *Activation) JacobianBackward(grads []*mat.Dense) {
	a.mustRecord()

	nl := len(a.net.layers)

	for i, g := range grads {
		if g == nil {
			continue
		}

		// tangent prefixes: bs[l] is the Jacobian of layer l's input with respect
		// to the network input, for this sample's masks; bs[0] is the identity and
		// kept nil
		bs := make([]*mat.Dense, nl)
		for l := 1; l < nl; l++ {
			var b mat.Dense
			if bs[l-1] == nil {
				b.CloneFrom(a.net.layers[l-1].w)
			} else {
				b.Mul(a.net.layers[l-1].w, bs[l-1])
			}
			mulRows(&b, a.masks[l-1].RawRowView(i))
			bs[l] = &b
		}

		// cotangent suffix swept from the output layer down
		c := mat.DenseCopyOf(g)
		for l := nl - 1; l >= 0; l-- {
			layer := a.net.layers[l]

			if bs[l] == nil {
				layer.gw.Add(layer.gw, c)
			} else {
				var gw mat.Dense
				gw.Mul(c, bs[l].T())
				layer.gw.Add(layer.gw, &gw)
			}

			if l > 0 {
				next := new(mat.Dense)
				next.Mul(layer.w.T(), c)
				mulRows(next, a.masks[l-1].RawRowView(i))
				c = next
			}
		}
	}
}

func (a *Activation) mustRecord() {
	if a == nil || a.Output == nil {
		panic("diffeo: backward pass without a recorded forward pass")
	}
}

// mulRows scales each row of m by the corresponding entry of d.
func mulRows(m *mat.Dense, d []float64) {
	rows, cols := m.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.Set(r, c, m.At(r, c)*d[r])
		}
	}
}
