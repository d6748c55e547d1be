package diffeo

import (
	"encoding/gob"
	"fmt"
	"os"
)

// StateMap returns the network parameters as a flat blob keyed by parameter name.
// Weights are stored row-major as "layer_<i>.weight", biases as "layer_<i>.bias".
func (net *Net) StateMap() map[string][]float64 {
	state := make(map[string][]float64, 2*len(net.layers))

	for i, l := range net.layers {
		raw := l.w.RawMatrix()
		w := make([]float64, len(raw.Data))
		copy(w, raw.Data)
		state[fmt.Sprintf("layer_%d.weight", i)] = w

		b := make([]float64, len(l.b))
		copy(b, l.b)
		state[fmt.Sprintf("layer_%d.bias", i)] = b
	}

	return state
}

// LoadStateMap restores the network parameters from a state map produced by StateMap.
// It returns error if a parameter is missing or has the wrong size.
func (net *Net) LoadStateMap(state map[string][]float64) error {
	for i, l := range net.layers {
		wKey := fmt.Sprintf("layer_%d.weight", i)
		bKey := fmt.Sprintf("layer_%d.bias", i)

		w, ok := state[wKey]
		if !ok {
			return fmt.Errorf("missing parameter: %s", wKey)
		}
		raw := l.w.RawMatrix()
		if len(w) != len(raw.Data) {
			return fmt.Errorf("invalid parameter size for %s: %d", wKey, len(w))
		}
		copy(raw.Data, w)

		b, ok := state[bKey]
		if !ok {
			return fmt.Errorf("missing parameter: %s", bKey)
		}
		if len(b) != len(l.b) {
			return fmt.Errorf("invalid parameter size for %s: %d", bKey, len(b))
		}
		copy(l.b, b)
	}

	return nil
}

// SaveState writes the network parameters to the file at path.
func (net *Net) SaveState(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return gob.NewEncoder(f).Encode(net.StateMap())
}

// LoadState restores the network parameters from the file at path.
func (net *Net) LoadState(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var state map[string][]float64
	if err := gob.NewDecoder(f).Decode(&state); err != nil {
		return err
	}

	return net.LoadStateMap(state)
}
