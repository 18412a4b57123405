package estimator

import (
	"fmt"
	"math"

	filter "github.com/pebbledata/dpf"
	"github.com/pebbledata/dpf/topology"
	"gonum.org/v1/gonum/mat"
)

// fullStateProvider exposes a PE's raw particle matrix and log-weights,
// the extra state Mposterior/GeometricMedian estimators need beyond the
// filter.LocalParticleFilter contract; satisfied structurally by
// pe.PE and pe.ConsensusPE.
type fullStateProvider interface {
	Particles() mat.Matrix
	LogWeights() []float64
	K() int
}

func subsetOf(pe filter.LocalParticleFilter) (filter.Subset, error) {
	fp, ok := pe.(fullStateProvider)
	if !ok {
		return filter.Subset{}, fmt.Errorf("estimator: PE does not expose its full particle state")
	}

	aw := pe.AggregatedWeight()
	lw := fp.LogWeights()
	weights := make([]float64, len(lw))
	if aw > 0 {
		logAW := math.Log(aw)
		for i, w := range lw {
			weights[i] = math.Exp(w - logAW)
		}
	} else {
		for i := range weights {
			weights[i] = 1 / float64(len(weights))
		}
	}

	return filter.Subset{Samples: mat.DenseCopyOf(fp.Particles()), Weights: weights}, nil
}

// Mposterior combines every PE's full posterior via the M-posterior
// primitive and reports the estimate as its particle-weighted mean.
type Mposterior struct {
	base
	primitive     filter.MposteriorPrimitive
	maxIterations int
	tolerance     float64
	k             int
}

// NewMposterior returns an Mposterior estimator. k is the per-PE
// particle count, used only for NMessages' cost accounting.
func NewMposterior(topo *topology.Topology, sink int, primitive filter.MposteriorPrimitive, k, maxIterations int, tolerance float64) (*Mposterior, error) {
	b, err := newBase(topo, sink)
	if err != nil {
		return nil, err
	}
	if primitive == nil {
		return nil, &filter.ConfigurationError{Msg: "estimator: an Mposterior primitive is required"}
	}
	return &Mposterior{base: b, primitive: primitive, maxIterations: maxIterations, tolerance: tolerance, k: k}, nil
}

// Estimate implements Estimator.
func (e *Mposterior) Estimate(pes []filter.LocalParticleFilter) (mat.Vector, error) {
	subsets := make([]filter.Subset, len(pes))
	for i, p := range pes {
		s, err := subsetOf(p)
		if err != nil {
			return nil, err
		}
		subsets[i] = s
	}

	joint, weights, err := e.primitive.FindWeiszfeldMedian(subsets, e.maxIterations, e.tolerance)
	if err != nil {
		return nil, err
	}
	return weightedMeanOf(joint, weights), nil
}

// NMessages implements Estimator: Σ_j hops(sink,j)·K·n_state_elements.
func (e *Mposterior) NMessages() int {
	return e.hopsSum() * e.k * stateElementsPosition
}

// PartialMposterior draws N' equally-weighted samples from each PE via
// a resampling algorithm before running the same combining step as
// Mposterior, trading estimate quality for a lower message cost.
type PartialMposterior struct {
	Mposterior
	nPrime   int
	resample filter.ResamplingAlgorithm
}

// NewPartialMposterior returns a PartialMposterior estimator drawing
// nPrime samples per PE via resample before combining.
func NewPartialMposterior(topo *topology.Topology, sink int, primitive filter.MposteriorPrimitive, nPrime int, resample filter.ResamplingAlgorithm, maxIterations int, tolerance float64) (*PartialMposterior, error) {
	b, err := newBase(topo, sink)
	if err != nil {
		return nil, err
	}
	if primitive == nil {
		return nil, &filter.ConfigurationError{Msg: "estimator: an Mposterior primitive is required"}
	}
	if resample == nil {
		return nil, &filter.ConfigurationError{Msg: "estimator: a resampling algorithm is required"}
	}
	if nPrime <= 0 {
		return nil, &filter.ConfigurationError{Msg: "estimator: nPrime must be positive"}
	}
	return &PartialMposterior{
		Mposterior: Mposterior{base: b, primitive: primitive, maxIterations: maxIterations, tolerance: tolerance, k: nPrime},
		nPrime:     nPrime,
		resample:   resample,
	}, nil
}

// Estimate implements Estimator.
func (e *PartialMposterior) Estimate(pes []filter.LocalParticleFilter) (mat.Vector, error) {
	subsets := make([]filter.Subset, len(pes))
	for i, p := range pes {
		full, err := subsetOf(p)
		if err != nil {
			return nil, err
		}

		indices, err := e.resample.GetIndexes(full.Weights, e.nPrime)
		if err != nil {
			return nil, err
		}

		rows, _ := full.Samples.Dims()
		samples := mat.NewDense(rows, e.nPrime, nil)
		weights := make([]float64, e.nPrime)
		for c, idx := range indices {
			samples.Slice(0, rows, c, c+1).(*mat.Dense).Copy(full.Samples.ColView(idx))
			weights[c] = 1.0 / float64(e.nPrime)
		}
		subsets[i] = filter.Subset{Samples: samples, Weights: weights}
	}

	joint, weights, err := e.primitive.FindWeiszfeldMedian(subsets, e.maxIterations, e.tolerance)
	if err != nil {
		return nil, err
	}
	return weightedMeanOf(joint, weights), nil
}

// NMessages implements Estimator: Σ_j hops(sink,j)·N'·n_state_elements.
func (e *PartialMposterior) NMessages() int {
	return e.hopsSum() * e.nPrime * stateElementsPosition
}

func weightedMeanOf(samples *mat.Dense, weights []float64) mat.Vector {
	rows, cols := samples.Dims()
	out := mat.NewVecDense(rows, nil)
	for c := 0; c < cols; c++ {
		w := weights[c]
		for r := 0; r < rows; r++ {
			out.SetVec(r, out.AtVec(r)+samples.At(r, c)*w)
		}
	}
	return out
}

var (
	_ Estimator = (*Mposterior)(nil)
	_ Estimator = (*PartialMposterior)(nil)
)
