package median

import (
	"math"

	filter "github.com/pebbledata/dpf"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Mposterior is a MposteriorPrimitive: it combines a list of weighted
// subset posteriors into one joint particle set by running Weiszfeld
// over each subset's weighted mean to obtain a subset-level centrality
// weight, then pools every subset's particles scaled by that weight.
// Subsets whose mean sits closer to the consensus geometric median
// contribute more of the joint posterior mass, the combining step the
// DRNA Mposterior and Iterated Mposterior exchange recipes and the
// Mposterior/PartialMposterior estimators all delegate to.
type Mposterior struct{}

// NewMposterior returns an Mposterior primitive.
func NewMposterior() *Mposterior {
	return &Mposterior{}
}

// FindWeiszfeldMedian implements filter.MposteriorPrimitive.
func (m *Mposterior) FindWeiszfeldMedian(subsets []filter.Subset, maxIterations int, tolerance float64) (*mat.Dense, []float64, error) {
	if len(subsets) == 0 {
		return nil, nil, &filter.ConfigurationError{Msg: "median: no subset posteriors supplied"}
	}

	dim, _ := subsets[0].Samples.Dims()
	means := mat.NewDense(dim, len(subsets), nil)
	for s, subset := range subsets {
		mean := subsetMean(subset)
		for r := 0; r < dim; r++ {
			means.Set(r, s, mean.AtVec(r))
		}
	}

	solver := NewWeiszfeld()
	estimate, err := solver.Median(means, maxIterations, tolerance)
	if err != nil {
		return nil, nil, err
	}

	subsetWeights := make([]float64, len(subsets))
	for s := range subsets {
		sumSq := 0.0
		for r := 0; r < dim; r++ {
			d := means.At(r, s) - estimate.AtVec(r)
			sumSq += d * d
		}
		dist := math.Sqrt(sumSq)
		if dist < 1e-12 {
			dist = 1e-12
		}
		subsetWeights[s] = 1 / dist
	}
	floats.Scale(1/floats.Sum(subsetWeights), subsetWeights)

	totalParticles := 0
	for _, subset := range subsets {
		_, n := subset.Samples.Dims()
		totalParticles += n
	}

	joint := mat.NewDense(dim, totalParticles, nil)
	jointWeights := make([]float64, 0, totalParticles)
	col := 0
	for s, subset := range subsets {
		_, n := subset.Samples.Dims()
		for c := 0; c < n; c++ {
			joint.Slice(0, dim, col, col+1).(*mat.Dense).Copy(subset.Samples.ColView(c))
			jointWeights = append(jointWeights, subset.Weights[c]*subsetWeights[s])
			col++
		}
	}

	floats.Scale(1/floats.Sum(jointWeights), jointWeights)

	return joint, jointWeights, nil
}

func subsetMean(s filter.Subset) mat.Vector {
	rows, cols := s.Samples.Dims()
	mean := mat.NewVecDense(rows, nil)
	for r := 0; r < rows; r++ {
		row := s.Samples.RawRowView(r)
		mean.SetVec(r, floats.Dot(row, s.Weights[:cols]))
	}
	return mean
}

var _ filter.MposteriorPrimitive = (*Mposterior)(nil)
