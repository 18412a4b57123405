package estimator

import (
	filter "github.com/pebbledata/dpf"
	"github.com/pebbledata/dpf/topology"
	"gonum.org/v1/gonum/mat"
)

// GeometricMedian takes one particle (slot 0) from every PE and
// estimates the target state as the geometric median of the stack via
// solver.
type GeometricMedian struct {
	base
	solver        filter.GeometricMedianSolver
	maxIterations int
	tolerance     float64
}

// NewGeometricMedian returns a GeometricMedian estimator.
func NewGeometricMedian(topo *topology.Topology, sink int, solver filter.GeometricMedianSolver, maxIterations int, tolerance float64) (*GeometricMedian, error) {
	b, err := newBase(topo, sink)
	if err != nil {
		return nil, err
	}
	if solver == nil {
		return nil, &filter.ConfigurationError{Msg: "estimator: a geometric median solver is required"}
	}
	return &GeometricMedian{base: b, solver: solver, maxIterations: maxIterations, tolerance: tolerance}, nil
}

// Estimate implements Estimator.
func (e *GeometricMedian) Estimate(pes []filter.LocalParticleFilter) (mat.Vector, error) {
	points, err := stackOneSamplePerPE(pes, 0)
	if err != nil {
		return nil, err
	}
	return e.solver.Median(points, e.maxIterations, e.tolerance)
}

// NMessages implements Estimator: Σ_j hops(sink,j)·n_state_elements, one
// sample per PE.
func (e *GeometricMedian) NMessages() int {
	return e.hopsSum() * stateElementsPosition
}

func stackOneSamplePerPE(pes []filter.LocalParticleFilter, slot int) (*mat.Dense, error) {
	cols := make([]mat.Vector, len(pes))
	for i, p := range pes {
		x, _, err := p.GetParticle(slot)
		if err != nil {
			return nil, err
		}
		cols[i] = x
	}
	return stackColumns(cols), nil
}

func stackColumns(cols []mat.Vector) *mat.Dense {
	rows := cols[0].Len()
	out := mat.NewDense(rows, len(cols), nil)
	for c, v := range cols {
		for r := 0; r < rows; r++ {
			out.Set(r, c, v.AtVec(r))
		}
	}
	return out
}

// StochasticGeoMedian takes the particles in slots 0..nPrime-1 of every
// PE (all K slots where K < nPrime), stacks them, and runs solver over
// the combined set. No resampling is performed: the slots are chosen
// deterministically, not drawn according to the particle weights.
type StochasticGeoMedian struct {
	base
	solver        filter.GeometricMedianSolver
	nPrime        int
	maxIterations int
	tolerance     float64
}

// NewStochasticGeoMedian returns a StochasticGeoMedian estimator.
func NewStochasticGeoMedian(topo *topology.Topology, sink int, solver filter.GeometricMedianSolver, nPrime, maxIterations int, tolerance float64) (*StochasticGeoMedian, error) {
	b, err := newBase(topo, sink)
	if err != nil {
		return nil, err
	}
	if solver == nil {
		return nil, &filter.ConfigurationError{Msg: "estimator: a geometric median solver is required"}
	}
	if nPrime <= 0 {
		return nil, &filter.ConfigurationError{Msg: "estimator: nPrime must be positive"}
	}
	return &StochasticGeoMedian{base: b, solver: solver, nPrime: nPrime, maxIterations: maxIterations, tolerance: tolerance}, nil
}

// Estimate implements Estimator.
func (e *StochasticGeoMedian) Estimate(pes []filter.LocalParticleFilter) (mat.Vector, error) {
	var cols []mat.Vector
	for _, p := range pes {
		k := e.nPrime
		if fp, ok := p.(fullStateProvider); ok && fp.K() < k {
			k = fp.K()
		}
		for s := 0; s < k; s++ {
			x, _, err := p.GetParticle(s)
			if err != nil {
				return nil, err
			}
			cols = append(cols, x)
		}
	}
	return e.solver.Median(stackColumns(cols), e.maxIterations, e.tolerance)
}

// NMessages implements Estimator: Σ_j hops(sink,j)·N'·n_state_elements.
func (e *StochasticGeoMedian) NMessages() int {
	return e.hopsSum() * e.nPrime * stateElementsPosition
}

// SinglePEWithinRadius runs the geometric median over one sample from
// every PE reachable from sink within radius hops (inclusive of sink
// itself), trading GeometricMedian's full broadcast for a bounded
// neighbourhood.
type SinglePEWithinRadius struct {
	base
	solver        filter.GeometricMedianSolver
	radius        int
	maxIterations int
	tolerance     float64
}

// NewSinglePEWithinRadius returns a SinglePEWithinRadius estimator.
func NewSinglePEWithinRadius(topo *topology.Topology, sink, radius int, solver filter.GeometricMedianSolver, maxIterations int, tolerance float64) (*SinglePEWithinRadius, error) {
	b, err := newBase(topo, sink)
	if err != nil {
		return nil, err
	}
	if solver == nil {
		return nil, &filter.ConfigurationError{Msg: "estimator: a geometric median solver is required"}
	}
	if radius < 0 {
		return nil, &filter.ConfigurationError{Msg: "estimator: radius must be >= 0"}
	}
	return &SinglePEWithinRadius{base: b, solver: solver, radius: radius, maxIterations: maxIterations, tolerance: tolerance}, nil
}

func (e *SinglePEWithinRadius) relevant() []int {
	var relevant []int
	for j := 0; j < e.topo.NumPEs(); j++ {
		if e.topo.Hops(e.sink, j) <= e.radius {
			relevant = append(relevant, j)
		}
	}
	return relevant
}

// Estimate implements Estimator.
func (e *SinglePEWithinRadius) Estimate(pes []filter.LocalParticleFilter) (mat.Vector, error) {
	relevant := e.relevant()
	cols := make([]mat.Vector, len(relevant))
	for i, j := range relevant {
		x, _, err := pes[j].GetParticle(0)
		if err != nil {
			return nil, err
		}
		cols[i] = x
	}
	return e.solver.Median(stackColumns(cols), e.maxIterations, e.tolerance)
}

// NMessages implements Estimator: Σ_{j in relevant} hops(sink,j)·n_state_elements.
func (e *SinglePEWithinRadius) NMessages() int {
	sum := 0
	for _, j := range e.relevant() {
		sum += e.topo.Hops(e.sink, j)
	}
	return sum * stateElementsPosition
}

var (
	_ Estimator = (*GeometricMedian)(nil)
	_ Estimator = (*StochasticGeoMedian)(nil)
	_ Estimator = (*SinglePEWithinRadius)(nil)
)
