// Package noise provides process noise models for simulated trajectories.
package noise

import (
	"fmt"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Gaussian is gaussian process noise
type Gaussian struct {
	// dist is a multivariate normal distribution
	dist *distmv.Normal
	// mean is Gaussian mean
	mean []float64
	// cov is Gaussian covariance
	cov mat.Symmetric
	// seed seeds the noise source
	seed uint64
}

// NewGaussian creates new Gaussian noise with given mean, covariance and seed.
// It returns error if the dimensions are mismatched or the covariance is not positive
// definite.
func NewGaussian(mean []float64, cov mat.Symmetric, seed uint64) (*Gaussian, error) {
	if size := cov.SymmetricDim(); size != len(mean) {
		return nil, fmt.Errorf("mismatched noise dimensions: %d, %d", len(mean), size)
	}

	dist, ok := distmv.NewNormal(mean, cov, rand.New(rand.NewSource(seed)))
	if !ok {
		return nil, fmt.Errorf("failed to create new Gaussian noise")
	}

	return &Gaussian{
		dist: dist,
		mean: mean,
		cov:  cov,
		seed: seed,
	}, nil
}

// Sample generates a sample from Gaussian noise and returns it.
func (g *Gaussian) Sample() mat.Vector {
	r := g.dist.Rand(nil)
	return mat.NewVecDense(len(r), r)
}

// Cov returns covariance matrix of Gaussian noise.
func (g *Gaussian) Cov() mat.Symmetric {
	return g.cov
}

// Mean returns Gaussian mean.
func (g *Gaussian) Mean() []float64 {
	return g.mean
}

// Reset reseeds Gaussian noise.
// It returns error if it fails to reset the noise.
func (g *Gaussian) Reset() error {
	dist, ok := distmv.NewNormal(g.mean, g.cov, rand.New(rand.NewSource(g.seed)))
	if !ok {
		return fmt.Errorf("failed to reset Gaussian noise")
	}
	g.dist = dist

	return nil
}

// String implements the Stringer interface.
func (g *Gaussian) String() string {
	return fmt.Sprintf("Gaussian{\nMean=%v\nCov=%v\n}", g.mean, mat.Formatted(g.cov, mat.Prefix("    "), mat.Squeeze()))
}

// None is noise that isn't: its samples are zero vectors.
type None struct {
	size int
}

// NewNone creates new None noise of the given dimension and returns it.
func NewNone(size int) (*None, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid noise dimension: %d", size)
	}

	return &None{size: size}, nil
}

// Sample returns a zero vector.
func (n *None) Sample() mat.Vector {
	return mat.NewVecDense(n.size, nil)
}

// Cov returns a zero covariance matrix.
func (n *None) Cov() mat.Symmetric {
	return mat.NewSymDense(n.size, nil)
}

// Mean returns a zero mean.
func (n *None) Mean() []float64 {
	return make([]float64, n.size)
}

// Reset does nothing.
func (n *None) Reset() error {
	return nil
}
