// Package estimator implements the point estimators that read a
// DistributedPF's state and produce a target-state estimate: delegating,
// mean, weighted mean, full/partial Mposterior, full/stochastic
// geometric median, single-PE, and single-PE-within-radius (spec
// §4.4). Every estimator also reports an exchanged-message cost,
// grounded on original_source/smc/estimator.py's messages() methods.
package estimator

import (
	"fmt"

	filter "github.com/pebbledata/dpf"
	"github.com/pebbledata/dpf/topology"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// stateElementsPosition is the number of floats needed to represent a
// particle's position subspace on the wire, used by message-cost
// accounting (mirrors exchange.stateElements' role for exchange
// recipes, scoped here to position only as estimator.py's
// state.n_elements_position does).
const stateElementsPosition = 2

// Estimator produces a point estimate of the target state from a
// DistributedPF's PEs, plus the message cost of computing it.
type Estimator interface {
	Estimate(pes []filter.LocalParticleFilter) (mat.Vector, error)
	NMessages() int
}

// Delegating returns the DistributedPF's own aggregated-weight-weighted
// mean across PEs: Σ_i (aggregatedWeight_i / S) · PE_i.ComputeMean().
type Delegating struct{}

// NewDelegating returns a Delegating estimator.
func NewDelegating() *Delegating { return &Delegating{} }

// Estimate implements Estimator.
func (e *Delegating) Estimate(pes []filter.LocalParticleFilter) (mat.Vector, error) {
	return weightedMeanOfMeans(pes)
}

// NMessages implements Estimator: the delegating estimate is computed
// from state DistributedPF already holds, no further communication.
func (e *Delegating) NMessages() int { return 0 }

func weightedMeanOfMeans(pes []filter.LocalParticleFilter) (mat.Vector, error) {
	if len(pes) == 0 {
		return nil, fmt.Errorf("estimator: no PEs supplied")
	}

	sum := 0.0
	for _, pe := range pes {
		sum += pe.AggregatedWeight()
	}

	means, err := localMeans(pes)
	if err != nil {
		return nil, err
	}
	dim := means[0].Len()
	out := mat.NewVecDense(dim, nil)

	if sum <= 0 {
		return out, nil
	}

	for i, pe := range pes {
		w := pe.AggregatedWeight() / sum
		for r := 0; r < dim; r++ {
			out.SetVec(r, out.AtVec(r)+means[i].AtVec(r)*w)
		}
	}

	return out, nil
}

func localMeans(pes []filter.LocalParticleFilter) ([]mat.Vector, error) {
	means := make([]mat.Vector, len(pes))
	for i, pe := range pes {
		m, err := pe.ComputeMean()
		if err != nil {
			return nil, err
		}
		means[i] = m
	}
	return means, nil
}

// base gathers the sink PE index and topology every hop-counting
// estimator needs for its NMessages.
type base struct {
	topo *topology.Topology
	sink int
}

func newBase(topo *topology.Topology, sink int) (base, error) {
	if sink < 0 || sink >= topo.NumPEs() {
		return base{}, &filter.ConfigurationError{Msg: fmt.Sprintf("estimator: sink PE index %d out of range", sink)}
	}
	return base{topo: topo, sink: sink}, nil
}

func (b base) hopsSum() int {
	sum := 0
	for j := 0; j < b.topo.NumPEs(); j++ {
		sum += b.topo.Hops(b.sink, j)
	}
	return sum
}

// Mean is the arithmetic mean of every PE-local mean (unweighted,
// unlike Delegating/WeightedMean).
type Mean struct {
	base
}

// NewMean returns a Mean estimator reporting message costs as seen from sink.
func NewMean(topo *topology.Topology, sink int) (*Mean, error) {
	b, err := newBase(topo, sink)
	if err != nil {
		return nil, err
	}
	return &Mean{base: b}, nil
}

// Estimate implements Estimator.
func (e *Mean) Estimate(pes []filter.LocalParticleFilter) (mat.Vector, error) {
	means, err := localMeans(pes)
	if err != nil {
		return nil, err
	}
	dim := means[0].Len()
	out := mat.NewVecDense(dim, nil)
	for _, m := range means {
		for r := 0; r < dim; r++ {
			out.SetVec(r, out.AtVec(r)+m.AtVec(r))
		}
	}
	floats.Scale(1/float64(len(means)), out.RawVector().Data)

	return out, nil
}

// NMessages implements Estimator: Σ_j hops(sink,j)·n_state_elements.
func (e *Mean) NMessages() int {
	return e.hopsSum() * stateElementsPosition
}

// WeightedMean is Mean weighted by each PE's normalized aggregated
// weight instead of an unweighted average.
type WeightedMean struct {
	base
}

// NewWeightedMean returns a WeightedMean estimator.
func NewWeightedMean(topo *topology.Topology, sink int) (*WeightedMean, error) {
	b, err := newBase(topo, sink)
	if err != nil {
		return nil, err
	}
	return &WeightedMean{base: b}, nil
}

// Estimate implements Estimator.
func (e *WeightedMean) Estimate(pes []filter.LocalParticleFilter) (mat.Vector, error) {
	return weightedMeanOfMeans(pes)
}

// NMessages implements Estimator: same cost as Mean.
func (e *WeightedMean) NMessages() int {
	return e.hopsSum() * stateElementsPosition
}

// SinglePEMean is the local mean of the designated PE; it requires no
// communication.
type SinglePEMean struct {
	sink int
}

// NewSinglePEMean returns a SinglePEMean estimator reading PE sink.
func NewSinglePEMean(sink int) *SinglePEMean {
	return &SinglePEMean{sink: sink}
}

// Estimate implements Estimator.
func (e *SinglePEMean) Estimate(pes []filter.LocalParticleFilter) (mat.Vector, error) {
	if e.sink < 0 || e.sink >= len(pes) {
		return nil, fmt.Errorf("estimator: sink PE index %d out of range", e.sink)
	}
	return pes[e.sink].ComputeMean()
}

// NMessages implements Estimator.
func (e *SinglePEMean) NMessages() int { return 0 }

var (
	_ Estimator = (*Delegating)(nil)
	_ Estimator = (*Mean)(nil)
	_ Estimator = (*WeightedMean)(nil)
	_ Estimator = (*SinglePEMean)(nil)
)
