package exchange

import filter "github.com/pebbledata/dpf"

// IteratedMposterior wraps an Mposterior recipe and invokes it R times
// in succession (spec §4.3.3).
type IteratedMposterior struct {
	inner      *Mposterior
	iterations int
}

// NewIteratedMposterior builds an IteratedMposterior recipe running
// inner iterations times per exchange round.
func NewIteratedMposterior(inner *Mposterior, iterations int) (*IteratedMposterior, error) {
	if iterations <= 0 {
		return nil, &filter.ConfigurationError{Msg: "exchange: iterated Mposterior requires a positive iteration count"}
	}
	return &IteratedMposterior{inner: inner, iterations: iterations}, nil
}

// PerformExchange implements filter.ExchangeRecipe.
func (it *IteratedMposterior) PerformExchange(pes []filter.LocalParticleFilter) error {
	for i := 0; i < it.iterations; i++ {
		if err := it.inner.PerformExchange(pes); err != nil {
			return err
		}
	}
	return nil
}

// NMessages implements filter.ExchangeRecipe.
func (it *IteratedMposterior) NMessages() int {
	return it.inner.NMessages() * it.iterations
}

var _ filter.ExchangeRecipe = (*IteratedMposterior)(nil)
