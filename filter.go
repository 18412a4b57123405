// Package filter defines the collaborator contracts consumed by the
// distributed particle filter core: the injected primitives the core
// treats as plug-ins (prior, transition kernel, sensor, resampling) and
// the typed errors the core can raise.
package filter

import "gonum.org/v1/gonum/mat"

// Prior draws initial particle states for a LocalParticleFilter.
type Prior interface {
	// Sample draws n initial states and returns them as columns of a
	// dim(state) x n matrix.
	Sample(n int) (*mat.Dense, error)
}

// TransitionKernel propagates a single particle's state to the next time
// instant, independently of every other particle.
type TransitionKernel interface {
	// NextState samples the next state conditioned on x.
	NextState(x mat.Vector) (mat.Vector, error)
}

// Sensor evaluates the likelihood of an observation given particle
// positions.
type Sensor interface {
	// Likelihood returns, for an observation obs and a dim(state) x K
	// matrix of particle positions, a length-K vector of non-negative
	// likelihoods.
	Likelihood(obs float64, positions mat.Matrix) ([]float64, error)
}

// ResamplingAlgorithm draws indices with replacement from a normalized
// weight vector.
type ResamplingAlgorithm interface {
	// GetIndexes returns n indices into [0, len(weights)) drawn according
	// to weights. If n is omitted, len(weights) indices are returned.
	GetIndexes(weights []float64, n ...int) ([]int, error)
}

// ResamplingCriterion decides whether a LocalParticleFilter should
// resample given its current normalized weights.
type ResamplingCriterion interface {
	// IsResamplingNeeded reports whether resampling should run.
	IsResamplingNeeded(normalizedWeights []float64) bool
}

// GeometricMedianSolver computes the geometric median of a finite point
// set (Weiszfeld iteration or equivalent), per the contract in spec §4.4:
// it returns either a fixed point within tolerance, the iterate at the
// iteration cap, or the unique input point the running estimate has
// converged onto exactly.
type GeometricMedianSolver interface {
	// Median returns an estimate e in R^d for the columns of points.
	Median(points *mat.Dense, maxIterations int, tolerance float64) (mat.Vector, error)
}

// MposteriorPrimitive combines a list of weighted subset posteriors into
// one joint particle set via the geometric median of probability
// measures.
type MposteriorPrimitive interface {
	// FindWeiszfeldMedian takes a list of (samples, weights) pairs - one
	// per subset posterior, samples stored as dim(state) x n matrices -
	// and returns a joint particle matrix and a matching joint weight
	// vector.
	FindWeiszfeldMedian(subsets []Subset, maxIterations int, tolerance float64) (*mat.Dense, []float64, error)
}

// Subset is one subset posterior handed to the Mposterior primitive: a
// set of equally-weighted (or arbitrarily weighted) particles.
type Subset struct {
	// Samples holds dim(state) x n particle columns.
	Samples *mat.Dense
	// Weights holds the n weights associated with Samples, summing to 1.
	Weights []float64
}

// LocalParticleFilter is the per-PE bootstrap particle filter contract
// (spec §4.1): propagate/weight/resample plus the slot accessors exchange
// recipes use to move particles between PEs.
type LocalParticleFilter interface {
	// Initialize draws K particles from the prior and resets weights.
	Initialize() error
	// Step propagates, weights and (conditionally) resamples given the
	// observations assigned to this PE.
	Step(observations []float64) error
	// GetParticle returns the state and log-weight stored at slot i.
	GetParticle(i int) (mat.Vector, float64, error)
	// SetParticle overwrites slot i and recomputes the aggregated weight.
	SetParticle(i int, x mat.Vector, logWeight float64) error
	// GetSamplesAt returns a dim(state) x len(indices) view of the
	// selected particle columns.
	GetSamplesAt(indices []int) (*mat.Dense, error)
	// ComputeMean returns the weighted mean state, or the zero vector if
	// the aggregated weight is zero.
	ComputeMean() (mat.Vector, error)
	// AggregatedWeight returns the PE's current aggregated weight.
	AggregatedWeight() float64
	// UpdateAggregatedWeight recomputes the aggregated weight from the
	// current log-weights.
	UpdateAggregatedWeight()
}

// ExchangeRecipe mutates every PE's state once per exchange round: DRNA
// particle swap, Mposterior subset resampling, iterated Mposterior, or
// Likelihood Consensus coefficient averaging. A recipe is built once from
// a Topology (plus recipe-specific parameters and a PRNG) and owns an
// immutable exchange plan thereafter.
type ExchangeRecipe interface {
	// PerformExchange mutates the given PEs in place, indexed exactly as
	// they are in the owning DistributedPF.
	PerformExchange(pes []LocalParticleFilter) error
	// NMessages reports the number of "float-sized units" exchanged by one
	// round of this recipe (spec §4.3); observation traffic is excluded.
	NMessages() int
}

// ConfigurationError reports an error raised during construction: an
// exchanged-particle count resolving to zero, a topology that is
// disconnected or asymmetric, a PE with more neighbours than its particle
// budget accommodates, or mismatched K across PEs. Fatal; never recovered.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

// NumericalDegeneracy reports that every PE's aggregated weight summed to
// zero at a given time step. Recovered locally via the DRNA reset rule; the
// time index is attached so callers can log it.
type NumericalDegeneracy struct {
	TimeIndex int
}

func (e *NumericalDegeneracy) Error() string {
	return "numerical degeneracy: all aggregated weights are zero"
}

// ResamplingNormalizationDrift reports that a weight vector handed to a
// ResamplingAlgorithm did not sum to exactly 1 due to floating-point
// rounding. Recovered once by dividing by the sum and retrying; a second
// failure is fatal.
type ResamplingNormalizationDrift struct {
	PEIndex   int
	TimeIndex int
	Sum       float64
}

func (e *ResamplingNormalizationDrift) Error() string {
	return "resampling normalization drift at PE"
}

// DiagnosticBoundExceeded reports that the max normalized aggregated
// weight raised to the DRNA exponent q exceeded the configured upper
// bound U. Reported only; never recovered from.
type DiagnosticBoundExceeded struct {
	TimeIndex int
	Value     float64
	Bound     float64
}

func (e *DiagnosticBoundExceeded) Error() string {
	return "diagnostic bound exceeded"
}
