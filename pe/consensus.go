package pe

import (
	filter "github.com/pebbledata/dpf"
	"github.com/pebbledata/dpf/exchange"
)

// ConsensusPE wraps a PE with the polynomial log-likelihood
// coefficients the Likelihood Consensus exchange recipe averages
// across neighbours (spec §4.3.4). It embeds *PE so it satisfies
// filter.LocalParticleFilter unchanged, and additionally implements
// exchange.BetaCarrier.
type ConsensusPE struct {
	*PE
	beta          map[string]float64
	betaConsensus map[string]float64
}

// NewConsensusPE wraps pe with an initially empty coefficient set;
// SetBeta must be called once per step before an exchange round runs.
func NewConsensusPE(pe *PE) *ConsensusPE {
	return &ConsensusPE{PE: pe, beta: map[string]float64{}, betaConsensus: map[string]float64{}}
}

// SetBeta overwrites the PE's polynomial log-likelihood coefficients
// for the current step, keyed by exchange.Exponent(r).
func (c *ConsensusPE) SetBeta(beta map[string]float64) {
	c.beta = beta
}

// Beta implements exchange.BetaCarrier.
func (c *ConsensusPE) Beta() map[string]float64 {
	return c.beta
}

// BetaConsensus implements exchange.BetaCarrier.
func (c *ConsensusPE) BetaConsensus() map[string]float64 {
	return c.betaConsensus
}

// SetBetaConsensus implements exchange.BetaCarrier.
func (c *ConsensusPE) SetBetaConsensus(beta map[string]float64) {
	c.betaConsensus = beta
}

var (
	_ filter.LocalParticleFilter = (*ConsensusPE)(nil)
	_ exchange.BetaCarrier       = (*ConsensusPE)(nil)
)
