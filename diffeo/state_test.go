package diffeo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestStateMapRoundTrip(t *testing.T) {
	assert := assert.New(t)

	cfg := Config{NHiddenLayers: 2, LayerWidth: 8, BatchSize: 4, DropoutProb: 0}
	net, err := NewNet(2, cfg)
	assert.NoError(err)

	state := net.StateMap()
	assert.Contains(state, "layer_0.weight")
	assert.Contains(state, "layer_0.bias")

	other, err := NewNet(2, cfg)
	assert.NoError(err)
	assert.NoError(other.LoadStateMap(state))

	x := mat.NewDense(1, 4, []float64{0.2, -0.1, 0.5, 0.3})
	assert.True(mat.EqualApprox(net.Predict(x), other.Predict(x), 1e-15))

	// missing and malformed parameters
	assert.Error(other.LoadStateMap(map[string][]float64{}))
	state["layer_0.weight"] = state["layer_0.weight"][:1]
	assert.Error(other.LoadStateMap(state))
}

func TestSaveLoadState(t *testing.T) {
	assert := assert.New(t)

	cfg := Config{NHiddenLayers: 1, LayerWidth: 6, BatchSize: 4, DropoutProb: 0}
	net, err := NewNet(3, cfg)
	assert.NoError(err)

	path := filepath.Join(t.TempDir(), "diffeo.gob")
	assert.NoError(net.SaveState(path))

	// warm start: a freshly built network restores the trained parameters
	other, err := NewNet(3, cfg)
	assert.NoError(err)
	assert.NoError(other.LoadState(path))

	x := mat.NewDense(2, 6, []float64{
		0.2, -0.1, 0.5, 0.3, -0.4, 0.6,
		-0.3, 0.7, 0.1, -0.2, 0.0, 0.4,
	})
	assert.True(mat.EqualApprox(net.Predict(x), other.Predict(x), 1e-15))

	assert.Error(other.LoadState(filepath.Join(t.TempDir(), "missing.gob")))
}
