package exchange

import (
	"testing"

	filter "github.com/pebbledata/dpf"
	"github.com/pebbledata/dpf/topology"
	"github.com/stretchr/testify/assert"
)

type fakeBetaPE struct {
	*fakePE
	beta, consensus map[string]float64
}

func newFakeBetaPE(k, dim int, seed float64, beta map[string]float64) *fakeBetaPE {
	return &fakeBetaPE{fakePE: newFakePE(k, dim, seed), beta: beta, consensus: map[string]float64{}}
}

func (f *fakeBetaPE) Beta() map[string]float64 { return f.beta }

func (f *fakeBetaPE) BetaConsensus() map[string]float64 { return f.consensus }

func (f *fakeBetaPE) SetBetaConsensus(b map[string]float64) { f.consensus = b }

func TestExponents(t *testing.T) {
	assert := assert.New(t)

	exps := Exponents(1, 2)
	// degree <= 1 over 2 dims: (0,0),(0,1),(1,0)
	assert.Len(exps, 3)
}

func TestLikelihoodConsensusAveragesThenScales(t *testing.T) {
	assert := assert.New(t)

	topo, err := topology.FullyConnected(3)
	assert.NoError(err)

	lc, err := NewLikelihoodConsensus(topo, 5, 1, 2)
	assert.NoError(err)

	key := Exponent([]int{0, 0})
	pes := make([]filter.LocalParticleFilter, 3)
	betaVals := []float64{1, 2, 3}
	for i, v := range betaVals {
		pes[i] = newFakeBetaPE(5, 2, float64(i), map[string]float64{key: v})
	}

	err = lc.PerformExchange(pes)
	assert.NoError(err)

	// On a fully-connected 3-PE topology every Metropolis weight is
	// exactly 1/3 (self and both neighbours), so the consensus matrix
	// is idempotent and already equals the exact mean of the initial
	// values after the first iteration; scaling by nPEs recovers their
	// exact sum to within floating-point rounding.
	want := betaVals[0] + betaVals[1] + betaVals[2]
	for _, p := range pes {
		got := p.(*fakeBetaPE).BetaConsensus()[key]
		assert.InDelta(want, got, 1e-8)
	}

	assert.True(lc.NMessages() > 0)
}

func TestLikelihoodConsensusRequiresBetaCarrier(t *testing.T) {
	assert := assert.New(t)

	topo, err := topology.Ring(3)
	assert.NoError(err)

	lc, err := NewLikelihoodConsensus(topo, 2, 1, 2)
	assert.NoError(err)

	pes := []filter.LocalParticleFilter{newFakePE(5, 2, 0)}
	err = lc.PerformExchange(pes)
	assert.Error(err)
}

func TestNewLikelihoodConsensusValidation(t *testing.T) {
	assert := assert.New(t)

	topo, err := topology.Ring(3)
	assert.NoError(err)

	_, err = NewLikelihoodConsensus(topo, 0, 1, 2)
	assert.Error(err)

	_, err = NewLikelihoodConsensus(topo, 2, -1, 2)
	assert.Error(err)

	_, err = NewLikelihoodConsensus(topo, 2, 1, 0)
	assert.Error(err)
}
