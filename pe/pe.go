// Package pe implements a Processing Element's LocalParticleFilter: a
// bootstrap particle filter maintaining logarithmic weights and an
// aggregated-weight scalar that DistributedPF and the ExchangeRecipes
// read and mutate directly. The propagate/weight core is grounded on
// the teacher's particle/bf/bf.go Predict/Update pair, generalized from
// a single weight vector to log-weights plus the DRNA aggregated
// weight discipline.
package pe

import (
	"fmt"
	"math"

	mgmatrix "github.com/milosgajdos/matrix"
	filter "github.com/pebbledata/dpf"
	"github.com/pebbledata/dpf/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Variant selects the degeneracy policy a PE runs after weighting, per
// the core design's two modes.
type Variant int

const (
	// Embedded is the DRNA-participating variant: aggregatedWeight is
	// preserved across steps, resampling is consulted on the
	// normalized view but never rescales aggregatedWeight itself.
	Embedded Variant = iota
	// Centralized is the standalone mode: logWeights are normalized
	// and aggregatedWeight is reset to 1 every step.
	Centralized
)

// PE is a Processing Element's LocalParticleFilter.
type PE struct {
	prior    filter.Prior
	kernel   filter.TransitionKernel
	sensors  []filter.Sensor
	variant  Variant
	crit     filter.ResamplingCriterion
	resample filter.ResamplingAlgorithm
	src      *rand.Source
	roughen  bool

	k int // number of particles

	x  *mat.Dense // particles, k columns
	lw []float64  // log-weights, one per particle
	aw float64    // aggregated weight

	aw0 float64 // configured initial aggregated weight (DRNA: 1/nPEs; centralized: 1)
}

// Config gathers the collaborators and parameters needed to build a PE.
type Config struct {
	Prior    filter.Prior
	Kernel   filter.TransitionKernel
	Sensors  []filter.Sensor
	Variant  Variant
	Crit     filter.ResamplingCriterion
	Resample filter.ResamplingAlgorithm
	Src      *rand.Source
	K        int
	// InitAggregatedWeight is aggregatedWeight0 (DRNA: 1/nPEs; standalone: 1).
	InitAggregatedWeight float64
	// Roughen enables post-resample Gaussian roughening (Resample's
	// regularization step in particle/bf/bf.go), perturbing resampled
	// particles by a kernel-covariance-scaled draw to counter sample
	// impoverishment. Off by default since DRNA's own exchange rounds
	// already reintroduce diversity.
	Roughen bool
}

// New builds a PE from cfg. It does not draw particles; call
// Initialize for that.
func New(cfg Config) (*PE, error) {
	if cfg.K <= 0 {
		return nil, &filter.ConfigurationError{Msg: "pe: particle count K must be positive"}
	}
	if cfg.Prior == nil || cfg.Kernel == nil {
		return nil, &filter.ConfigurationError{Msg: "pe: prior and transition kernel are required"}
	}
	if cfg.Resample == nil || cfg.Crit == nil {
		return nil, &filter.ConfigurationError{Msg: "pe: resampling criterion and algorithm are required"}
	}
	if cfg.Src == nil {
		return nil, &filter.ConfigurationError{Msg: "pe: an explicit PRNG source is required"}
	}
	if cfg.InitAggregatedWeight <= 0 {
		return nil, &filter.ConfigurationError{Msg: "pe: initial aggregated weight must be positive"}
	}

	return &PE{
		prior:    cfg.Prior,
		kernel:   cfg.Kernel,
		sensors:  cfg.Sensors,
		variant:  cfg.Variant,
		crit:     cfg.Crit,
		resample: cfg.Resample,
		src:      cfg.Src,
		roughen:  cfg.Roughen,
		k:        cfg.K,
		aw0:      cfg.InitAggregatedWeight,
		lw:       make([]float64, cfg.K),
	}, nil
}

// Initialize implements filter.LocalParticleFilter.
func (p *PE) Initialize() error {
	x, err := p.prior.Sample(p.k)
	if err != nil {
		return fmt.Errorf("pe: failed to draw initial particles: %v", err)
	}
	p.x = x

	logW0 := math.Log(p.aw0) - math.Log(float64(p.k))
	for i := range p.lw {
		p.lw[i] = logW0
	}
	p.aw = p.aw0

	return nil
}

// Step implements filter.LocalParticleFilter: propagate, weight, then
// apply the configured degeneracy policy.
func (p *PE) Step(observations []float64) error {
	if len(observations) != len(p.sensors) {
		return fmt.Errorf("pe: expected %d observations, got %d", len(p.sensors), len(observations))
	}

	if err := p.propagate(); err != nil {
		return err
	}
	p.weight(observations)
	p.UpdateAggregatedWeight()

	return p.avoidWeightDegeneracy()
}

func (p *PE) propagate() error {
	rows, cols := p.x.Dims()
	xNext := mat.NewDense(rows, cols, nil)
	for c := 0; c < cols; c++ {
		next, err := p.kernel.NextState(p.x.ColView(c))
		if err != nil {
			return fmt.Errorf("pe: particle propagation failed: %v", err)
		}
		xNext.Slice(0, next.Len(), c, c+1).(*mat.Dense).Copy(next)
	}
	p.x.Copy(xNext)

	return nil
}

func (p *PE) weight(observations []float64) {
	_, cols := p.x.Dims()
	for s, obs := range observations {
		lik, err := p.sensors[s].Likelihood(obs, p.x)
		if err != nil {
			// A misbehaving sensor contributes no information rather than
			// crashing the step; its likelihoods are left at 1 (log 0).
			continue
		}
		for c := 0; c < cols; c++ {
			if lik[c] <= 0 {
				p.lw[c] = math.Inf(-1)
				continue
			}
			if math.IsInf(p.lw[c], -1) {
				continue
			}
			p.lw[c] += math.Log(lik[c])
		}
	}
}

// UpdateAggregatedWeight implements filter.LocalParticleFilter:
// aggregatedWeight = Σ_k exp(logWeight_k).
func (p *PE) UpdateAggregatedWeight() {
	sum := 0.0
	for _, w := range p.lw {
		sum += math.Exp(w)
	}
	p.aw = sum
}

func (p *PE) avoidWeightDegeneracy() error {
	switch p.variant {
	case Centralized:
		return p.avoidDegeneracyCentralized()
	default:
		return p.avoidDegeneracyEmbedded()
	}
}

func (p *PE) avoidDegeneracyCentralized() error {
	if p.aw == 0 {
		logW0 := -math.Log(float64(p.k))
		for i := range p.lw {
			p.lw[i] = logW0
		}
	} else {
		logAW := math.Log(p.aw)
		for i := range p.lw {
			p.lw[i] -= logAW
		}
	}
	p.aw = 1

	normalized := p.normalizedWeights()
	if p.crit.IsResamplingNeeded(normalized) {
		if err := p.resampleParticles(normalized); err != nil {
			return err
		}
		logW0 := -math.Log(float64(p.k))
		for i := range p.lw {
			p.lw[i] = logW0
		}
	}

	return nil
}

func (p *PE) avoidDegeneracyEmbedded() error {
	if p.aw == 0 {
		return nil
	}

	normalized := p.normalizedWeights()
	if p.crit.IsResamplingNeeded(normalized) {
		return p.resampleParticles(normalized)
	}

	return nil
}

func (p *PE) normalizedWeights() []float64 {
	out := make([]float64, len(p.lw))
	if p.aw == 0 {
		return out
	}
	logAW := math.Log(p.aw)
	for i, w := range p.lw {
		out[i] = math.Exp(w - logAW)
	}
	return out
}

func (p *PE) resampleParticles(normalized []float64) error {
	indices, err := p.resample.GetIndexes(normalized, p.k)
	if err != nil {
		return fmt.Errorf("pe: resampling failed: %v", err)
	}

	clone := new(mat.Dense)
	clone.CloneFrom(p.x)
	rows, _ := clone.Dims()
	for c, idx := range indices {
		p.x.Slice(0, rows, c, c+1).(*mat.Dense).Copy(clone.ColView(idx))
	}

	if p.roughen {
		return p.roughenParticles(rows)
	}

	return nil
}

// roughenParticles perturbs every resampled particle by a draw from a
// zero-mean Gaussian scaled by the particle covariance and the optimal
// Gaussian kernel bandwidth, the regularization step ported from
// particle/bf/bf.go's Resample.
func (p *PE) roughenParticles(rows int) error {
	_, cols := p.x.Dims()

	cov, err := mgmatrix.Cov(p.x, "cols")
	if err != nil {
		return fmt.Errorf("pe: failed to compute particle covariance: %v", err)
	}

	perturbation, err := rand.WithCovNFrom(p.src, cov, cols)
	if err != nil {
		return fmt.Errorf("pe: failed to draw roughening perturbation: %v", err)
	}

	alpha := alphaGauss(rows, cols)
	perturbation.Scale(alpha, perturbation)
	p.x.Add(p.x, perturbation)

	return nil
}

// alphaGauss computes the optimal regularization bandwidth for a
// Gaussian roughening kernel over cols particles in rows dimensions
// (ported from particle/bf/bf.go's AlphaGauss).
func alphaGauss(rows, cols int) float64 {
	return math.Pow(4.0/(float64(cols)*(float64(rows)+2.0)), 1/(float64(rows)+4.0))
}

// GetParticle implements filter.LocalParticleFilter.
func (p *PE) GetParticle(i int) (mat.Vector, float64, error) {
	if i < 0 || i >= p.k {
		return nil, 0, fmt.Errorf("pe: particle index %d out of range [0,%d)", i, p.k)
	}
	col := mat.VecDenseCopyOf(p.x.ColView(i))
	return col, p.lw[i], nil
}

// SetParticle implements filter.LocalParticleFilter: it overwrites slot
// i and recomputes aggregatedWeight, per spec invariant on setParticle.
func (p *PE) SetParticle(i int, x mat.Vector, logWeight float64) error {
	if i < 0 || i >= p.k {
		return fmt.Errorf("pe: particle index %d out of range [0,%d)", i, p.k)
	}
	rows, _ := p.x.Dims()
	if x.Len() != rows {
		return fmt.Errorf("pe: particle dimension mismatch: got %d, want %d", x.Len(), rows)
	}

	p.x.Slice(0, rows, i, i+1).(*mat.Dense).Copy(x)
	p.lw[i] = logWeight
	p.UpdateAggregatedWeight()

	return nil
}

// GetSamplesAt implements filter.LocalParticleFilter.
func (p *PE) GetSamplesAt(indices []int) (*mat.Dense, error) {
	rows, _ := p.x.Dims()
	out := mat.NewDense(rows, len(indices), nil)
	for c, idx := range indices {
		if idx < 0 || idx >= p.k {
			return nil, fmt.Errorf("pe: sample index %d out of range [0,%d)", idx, p.k)
		}
		out.Slice(0, rows, c, c+1).(*mat.Dense).Copy(p.x.ColView(idx))
	}
	return out, nil
}

// ComputeMean implements filter.LocalParticleFilter.
func (p *PE) ComputeMean() (mat.Vector, error) {
	rows, _ := p.x.Dims()
	mean := mat.NewVecDense(rows, nil)
	if p.aw == 0 {
		return mean, nil
	}

	logAW := math.Log(p.aw)
	weights := make([]float64, p.k)
	for i, w := range p.lw {
		weights[i] = math.Exp(w - logAW)
	}

	for r := 0; r < rows; r++ {
		row := p.x.RawRowView(r)
		mean.SetVec(r, floats.Dot(row, weights))
	}

	return mean, nil
}

// AggregatedWeight implements filter.LocalParticleFilter.
func (p *PE) AggregatedWeight() float64 {
	return p.aw
}

// K returns the PE's fixed particle count.
func (p *PE) K() int {
	return p.k
}

// Particles exposes the raw particle matrix, used by exchange recipes
// and estimators that need the full ensemble rather than one slot at a
// time (e.g. Mposterior subsets).
func (p *PE) Particles() mat.Matrix {
	return p.x
}

// LogWeights exposes a copy of the log-weight vector.
func (p *PE) LogWeights() []float64 {
	out := make([]float64, len(p.lw))
	copy(out, p.lw)
	return out
}

// SetAggregatedWeight overwrites aggregatedWeight directly; used by
// DistributedPF's global reset and renormalization steps (§4.2), which
// operate outside the usual setParticle recomputation path.
func (p *PE) SetAggregatedWeight(aw float64) {
	p.aw = aw
}

// ScaleLogWeights adds delta to every log-weight; used by
// DistributedPF's divideWeights (logWeights -= log S).
func (p *PE) ScaleLogWeights(delta float64) {
	for i := range p.lw {
		p.lw[i] += delta
	}
}

// ResetUniform reinitializes logWeights to -log(nPEs)-log(K) and
// aggregatedWeight to 1/nPEs, per the global reset in §4.2.
func (p *PE) ResetUniform(nPEs int) {
	logW0 := -math.Log(float64(nPEs)) - math.Log(float64(p.k))
	for i := range p.lw {
		p.lw[i] = logW0
	}
	p.aw = 1 / float64(nPEs)
}

// ParticleSpread returns the sample covariance of the current particle
// ensemble, a cheap diagnostic for tracking degeneracy alongside
// AggregatedWeight (a collapsing ensemble shows up as a shrinking
// spread well before aggregatedWeight underflows to zero).
func (p *PE) ParticleSpread() (*mat.SymDense, error) {
	cov, err := mgmatrix.Cov(p.x, "cols")
	if err != nil {
		return nil, fmt.Errorf("pe: failed to compute particle spread: %v", err)
	}
	return cov, nil
}

// formatMatrix renders m for logging, the same mat.Formatted wrapper
// the teacher's own matrix.Format used.
func formatMatrix(m mat.Matrix) fmt.Formatter {
	return mat.Formatted(m, mat.Prefix(""), mat.Squeeze())
}

// String renders the PE's particle mean, aggregated weight, and
// spread for debugging and logging.
func (p *PE) String() string {
	mean, err := p.ComputeMean()
	if err != nil {
		return fmt.Sprintf("PE{aggregatedWeight=%v}", p.aw)
	}
	spread, err := p.ParticleSpread()
	if err != nil {
		return fmt.Sprintf("PE{mean=%v, aggregatedWeight=%v}", formatMatrix(mean), p.aw)
	}
	return fmt.Sprintf("PE{mean=%v, aggregatedWeight=%v, spread=%v}", formatMatrix(mean), p.aw, formatMatrix(spread))
}

var _ filter.LocalParticleFilter = (*PE)(nil)
