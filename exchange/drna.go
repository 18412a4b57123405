package exchange

import (
	filter "github.com/pebbledata/dpf"
	"github.com/pebbledata/dpf/rand"
	"github.com/pebbledata/dpf/topology"
	"gonum.org/v1/gonum/mat"
)

// DRNA is the particle-swap ExchangeRecipe (spec §4.3.1): every
// committed tuple atomically swaps a particle column and its log-weight
// between two neighbouring PEs.
type DRNA struct {
	plan *Plan
}

// NewDRNA builds a DRNA recipe from topo, the fixed particle count k,
// the exchanged-particle configuration and an explicit PRNG source.
func NewDRNA(topo *topology.Topology, k int, exchanged ExchangedCount, src *rand.Source) (*DRNA, error) {
	plan, err := NewPlan(topo, k, exchanged, src)
	if err != nil {
		return nil, err
	}
	return &DRNA{plan: plan}, nil
}

type particleSnapshot struct {
	x  *mat.VecDense
	lw float64
}

// PerformExchange implements filter.ExchangeRecipe: it snapshots every
// tuple's two slots before writing any of them, so no tuple reads an
// already-overwritten slot (spec's "atomic" requirement).
func (d *DRNA) PerformExchange(pes []filter.LocalParticleFilter) error {
	tuples := d.plan.Tuples()
	before := make([][2]particleSnapshot, len(tuples))

	for i, t := range tuples {
		xA, lwA, err := pes[t.PEA].GetParticle(t.SlotA)
		if err != nil {
			return err
		}
		xB, lwB, err := pes[t.PEB].GetParticle(t.SlotB)
		if err != nil {
			return err
		}

		before[i] = [2]particleSnapshot{
			{x: mat.VecDenseCopyOf(xA), lw: lwA},
			{x: mat.VecDenseCopyOf(xB), lw: lwB},
		}
	}

	for i, t := range tuples {
		a, b := before[i][0], before[i][1]
		if err := pes[t.PEA].SetParticle(t.SlotA, b.x, b.lw); err != nil {
			return err
		}
		if err := pes[t.PEB].SetParticle(t.SlotB, a.x, a.lw); err != nil {
			return err
		}
	}

	return nil
}

// NMessages implements filter.ExchangeRecipe.
func (d *DRNA) NMessages() int {
	return d.plan.messagesParticles() + d.plan.messagesAggregatedWeight()
}

var _ filter.ExchangeRecipe = (*DRNA)(nil)
