package exchange

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// fakePE is a minimal filter.LocalParticleFilter used to exercise
// ExchangeRecipes without depending on the pe package (which itself
// imports exchange for Likelihood Consensus support).
type fakePE struct {
	x  *mat.Dense
	lw []float64
	aw float64
}

func newFakePE(k, dim int, seed float64) *fakePE {
	x := mat.NewDense(dim, k, nil)
	lw := make([]float64, k)
	for c := 0; c < k; c++ {
		for r := 0; r < dim; r++ {
			x.Set(r, c, seed+float64(c)+float64(r)*0.1)
		}
		lw[c] = -math.Log(float64(k))
	}
	return &fakePE{x: x, lw: lw, aw: 1}
}

func (f *fakePE) Initialize() error { return nil }

func (f *fakePE) Step(observations []float64) error { return nil }

func (f *fakePE) GetParticle(i int) (mat.Vector, float64, error) {
	if i < 0 || i >= len(f.lw) {
		return nil, 0, fmt.Errorf("index out of range")
	}
	return mat.VecDenseCopyOf(f.x.ColView(i)), f.lw[i], nil
}

func (f *fakePE) SetParticle(i int, x mat.Vector, logWeight float64) error {
	rows, _ := f.x.Dims()
	f.x.Slice(0, rows, i, i+1).(*mat.Dense).Copy(x)
	f.lw[i] = logWeight
	f.UpdateAggregatedWeight()
	return nil
}

func (f *fakePE) GetSamplesAt(indices []int) (*mat.Dense, error) {
	rows, _ := f.x.Dims()
	out := mat.NewDense(rows, len(indices), nil)
	for c, idx := range indices {
		out.Slice(0, rows, c, c+1).(*mat.Dense).Copy(f.x.ColView(idx))
	}
	return out, nil
}

func (f *fakePE) ComputeMean() (mat.Vector, error) {
	rows, _ := f.x.Dims()
	return mat.NewVecDense(rows, nil), nil
}

func (f *fakePE) AggregatedWeight() float64 { return f.aw }

func (f *fakePE) UpdateAggregatedWeight() {
	sum := 0.0
	for _, w := range f.lw {
		sum += math.Exp(w)
	}
	f.aw = sum
}
