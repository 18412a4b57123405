package exchange

import (
	"math"

	filter "github.com/pebbledata/dpf"
	"github.com/pebbledata/dpf/rand"
	"github.com/pebbledata/dpf/topology"
	"gonum.org/v1/gonum/mat"
)

// Mposterior is the median-of-subsets ExchangeRecipe (spec §4.3.2): it
// shares DRNA's planning but, instead of swapping particles, combines
// each PE's neighbour-shared subset posteriors via the M-posterior
// primitive and resamples K particles from the joint result.
type Mposterior struct {
	plan      *Plan
	primitive filter.MposteriorPrimitive
	resample  filter.ResamplingAlgorithm
	k         int
	maxIter   int
	tolerance float64
}

// MposteriorConfig gathers the collaborators needed to build an
// Mposterior recipe.
type MposteriorConfig struct {
	Topology      *topology.Topology
	K             int
	Exchanged     ExchangedCount
	Src           *rand.Source
	Primitive     filter.MposteriorPrimitive
	Resample      filter.ResamplingAlgorithm
	MaxIterations int
	Tolerance     float64
}

// NewMposterior builds an Mposterior recipe from cfg.
func NewMposterior(cfg MposteriorConfig) (*Mposterior, error) {
	plan, err := NewPlan(cfg.Topology, cfg.K, cfg.Exchanged, cfg.Src)
	if err != nil {
		return nil, err
	}
	if cfg.Primitive == nil || cfg.Resample == nil {
		return nil, &filter.ConfigurationError{Msg: "exchange: Mposterior requires a primitive and a resampling algorithm"}
	}

	return &Mposterior{
		plan:      plan,
		primitive: cfg.Primitive,
		resample:  cfg.Resample,
		k:         cfg.K,
		maxIter:   cfg.MaxIterations,
		tolerance: cfg.Tolerance,
	}, nil
}

// PerformExchange implements filter.ExchangeRecipe.
func (m *Mposterior) PerformExchange(pes []filter.LocalParticleFilter) error {
	e := m.plan.NExchanged()

	for i, groups := range m.plan.perPE {
		subsets := make([]filter.Subset, 0, len(groups)+1)

		for _, g := range groups {
			samples, err := pes[g.Neighbour].GetSamplesAt(g.Slots)
			if err != nil {
				return err
			}
			subsets = append(subsets, filter.Subset{
				Samples: samples,
				Weights: uniform(e),
			})
		}

		ownSlots := make([]int, e)
		for s := 0; s < e; s++ {
			ownSlots[s] = s
		}
		ownSamples, err := pes[i].GetSamplesAt(ownSlots)
		if err != nil {
			return err
		}
		subsets = append(subsets, filter.Subset{Samples: ownSamples, Weights: uniform(e)})

		joint, jointWeights, err := m.primitive.FindWeiszfeldMedian(subsets, m.maxIter, m.tolerance)
		if err != nil {
			return err
		}

		indices, err := m.resample.GetIndexes(jointWeights, m.k)
		if err != nil {
			return err
		}

		logW0 := -math.Log(float64(m.k))
		for c, idx := range indices {
			if err := pes[i].SetParticle(c, mat.VecDenseCopyOf(joint.ColView(idx)), logW0); err != nil {
				return err
			}
		}
		pes[i].UpdateAggregatedWeight()
	}

	return nil
}

func uniform(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

// NMessages implements filter.ExchangeRecipe: same particle traffic as
// DRNA, but no aggregated-weight scalar is exchanged.
func (m *Mposterior) NMessages() int {
	return m.plan.messagesParticles()
}

var _ filter.ExchangeRecipe = (*Mposterior)(nil)
