// Package resample provides the injectable ResamplingAlgorithm and
// ResamplingCriterion collaborators a LocalParticleFilter consults
// after weighting. Multinomial resampling reuses the teacher's
// rand.RouletteDrawN (particle/bf/bf.go's Resample); systematic
// resampling is the lower-variance alternative the core spec calls out
// as the canonical (not mandatory) choice.
package resample

import (
	"fmt"
	"sort"

	filter "github.com/pebbledata/dpf"
	"github.com/pebbledata/dpf/rand"
	"gonum.org/v1/gonum/floats"
)

// Multinomial draws K indices with replacement proportional to the
// supplied normalized weights, via the roulette-wheel draw the teacher
// uses throughout particle/bf.
type Multinomial struct {
	src *rand.Source
}

// NewMultinomial returns a Multinomial resampler driven by src.
func NewMultinomial(src *rand.Source) *Multinomial {
	return &Multinomial{src: src}
}

// GetIndexes implements filter.ResamplingAlgorithm.
func (m *Multinomial) GetIndexes(weights []float64, n ...int) ([]int, error) {
	k := len(weights)
	if len(n) > 0 {
		k = n[0]
	}
	return rand.RouletteDrawN(m.src, weights, k)
}

// Systematic implements systematic (a.k.a. low-variance) resampling: a
// single uniform draw offsets K evenly spaced pointers into the
// cumulative weight distribution, giving lower variance than
// Multinomial for the same particle count.
type Systematic struct {
	src *rand.Source
}

// NewSystematic returns a Systematic resampler driven by src.
func NewSystematic(src *rand.Source) *Systematic {
	return &Systematic{src: src}
}

// GetIndexes implements filter.ResamplingAlgorithm.
func (s *Systematic) GetIndexes(weights []float64, n ...int) ([]int, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("resample: invalid probability weights: %v", weights)
	}
	k := len(weights)
	if len(n) > 0 {
		k = n[0]
	}

	cdf := make([]float64, len(weights))
	floats.CumSum(cdf, weights)
	total := cdf[len(cdf)-1]

	u0 := s.src.Float64() / float64(k)
	indices := make([]int, k)
	for i := 0; i < k; i++ {
		u := (u0 + float64(i)/float64(k)) * total
		indices[i] = sort.Search(len(cdf), func(j int) bool { return cdf[j] > u })
	}

	return indices, nil
}

// ESS is a ResamplingCriterion triggering resampling when the
// effective sample size 1/Σw_k² drops below a configured fraction of
// the particle count, the standard bootstrap-filter degeneracy test.
type ESS struct {
	// Threshold is the fraction of K below which resampling fires, in (0,1].
	Threshold float64
}

// NewESS returns an ESS criterion with the given threshold fraction.
func NewESS(threshold float64) (*ESS, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, &filter.ConfigurationError{Msg: "resample: ESS threshold must be in (0,1]"}
	}
	return &ESS{Threshold: threshold}, nil
}

// IsResamplingNeeded implements filter.ResamplingCriterion.
func (e *ESS) IsResamplingNeeded(normalizedWeights []float64) bool {
	k := len(normalizedWeights)
	if k == 0 {
		return false
	}

	sumSq := floats.Dot(normalizedWeights, normalizedWeights)
	if sumSq <= 0 {
		return true
	}
	ess := 1 / sumSq

	return ess < e.Threshold*float64(k)
}

// Always is a ResamplingCriterion that fires on every step, matching
// the teacher's examples/bf/bf.go driver loop which resamples
// unconditionally.
type Always struct{}

// IsResamplingNeeded implements filter.ResamplingCriterion.
func (Always) IsResamplingNeeded(normalizedWeights []float64) bool {
	return true
}

var (
	_ filter.ResamplingAlgorithm = (*Multinomial)(nil)
	_ filter.ResamplingAlgorithm = (*Systematic)(nil)
	_ filter.ResamplingCriterion = (*ESS)(nil)
	_ filter.ResamplingCriterion = Always{}
)
