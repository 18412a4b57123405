// Package exchange implements the ExchangeRecipe variants driving
// inter-PE communication: DRNA particle swap, Mposterior subset
// resampling, iterated Mposterior, and Likelihood Consensus polynomial
// averaging. Planning is grounded on
// original_source/smc/exchange_recipe.py's DRNAExchangeRecipe
// constructor; DRNA and Mposterior share the same neighbour-pair slot
// selection, differing only in performExchange.
package exchange

import (
	"fmt"

	filter "github.com/pebbledata/dpf"
	"github.com/pebbledata/dpf/rand"
	"github.com/pebbledata/dpf/topology"
)

// Tuple is one committed particle swap: slot slotA of PE peA trades
// with slot slotB of PE peB.
type Tuple struct {
	PEA, SlotA int
	PEB, SlotB int
}

// NeighbourSlots groups the local slots a PE has committed to share
// with one neighbour, used for message accounting.
type NeighbourSlots struct {
	Neighbour int
	Slots     []int
}

// Plan is the immutable, precomputed exchange table DRNA and
// Mposterior recipes share.
type Plan struct {
	tuples      []Tuple
	perPE       [][]NeighbourSlots
	nExchanged  int
	topo        *topology.Topology
	nStateElems int
}

// ExchangedCount configures how many particles per neighbour pair are
// exchanged: either an absolute count (Count > 0) or a fraction of K
// (Fraction in (0,1)).
type ExchangedCount struct {
	Count    int
	Fraction float64
}

// resolve returns the absolute per-neighbour-pair exchange count E for
// the given particle count K and max topology degree.
func (c ExchangedCount) resolve(k, maxDegree int) (int, error) {
	if c.Count > 0 {
		return c.Count, nil
	}
	if c.Fraction > 0 && c.Fraction < 1 {
		if maxDegree == 0 {
			return 0, &filter.ConfigurationError{Msg: "exchange: topology has no neighbours"}
		}
		e := int(float64(k) * c.Fraction / float64(maxDegree))
		return e, nil
	}
	return 0, &filter.ConfigurationError{Msg: "exchange: exchanged_particles must be a positive int or a fraction in (0,1)"}
}

// NewPlan builds a Plan from topo, the fixed particle count k, the
// exchanged-particle configuration and an explicit PRNG source. It
// fails if the resolved exchange count is zero or any PE would need to
// commit more slots than it has available across its neighbours.
func NewPlan(topo *topology.Topology, k int, exchanged ExchangedCount, src *rand.Source) (*Plan, error) {
	e, err := exchanged.resolve(k, topo.MaxDegree())
	if err != nil {
		return nil, err
	}
	if e <= 0 {
		return nil, &filter.ConfigurationError{Msg: "exchange: no particles are to be shared by a PE with its neighbours"}
	}

	n := topo.NumPEs()
	notSwapped := make([][]bool, n)
	for i := range notSwapped {
		notSwapped[i] = make([]bool, k)
		for s := range notSwapped[i] {
			notSwapped[i][s] = true
		}
	}
	processed := make([][]bool, n)
	for i := range processed {
		processed[i] = make([]bool, n)
	}

	var tuples []Tuple
	perPE := make([][]NeighbourSlots, n)

	for i := 0; i < n; i++ {
		for _, j := range topo.Neighbours(i) {
			if processed[i][j] {
				continue
			}

			candidatesI := availableSlots(notSwapped[i])
			candidatesJ := availableSlots(notSwapped[j])
			if len(candidatesI) < e || len(candidatesJ) < e {
				return nil, &filter.ConfigurationError{Msg: fmt.Sprintf("exchange: PE %d or %d has too many neighbours for its particle budget", i, j)}
			}

			slotsI, err := rand.ChooseWithoutReplacement(src, candidatesI, e)
			if err != nil {
				return nil, err
			}
			slotsJ, err := rand.ChooseWithoutReplacement(src, candidatesJ, e)
			if err != nil {
				return nil, err
			}

			for s := 0; s < e; s++ {
				tuples = append(tuples, Tuple{PEA: i, SlotA: slotsI[s], PEB: j, SlotB: slotsJ[s]})
				notSwapped[i][slotsI[s]] = false
				notSwapped[j][slotsJ[s]] = false
			}

			perPE[i] = append(perPE[i], NeighbourSlots{Neighbour: j, Slots: slotsI})
			perPE[j] = append(perPE[j], NeighbourSlots{Neighbour: i, Slots: slotsJ})

			processed[i][j] = true
			processed[j][i] = true
		}
	}

	return &Plan{
		tuples:      tuples,
		perPE:       perPE,
		nExchanged:  e,
		topo:        topo,
		nStateElems: stateElements,
	}, nil
}

func availableSlots(notSwapped []bool) []int {
	var out []int
	for s, free := range notSwapped {
		if free {
			out = append(out, s)
		}
	}
	return out
}

// stateElements is the number of floats needed to represent one
// particle's state on the wire, used for message-cost accounting. It
// is a conservative default (position + velocity in 2D); callers
// needing a different state size should account for the difference
// externally, as the core message counts are diagnostic estimates, not
// exact wire-protocol costs.
const stateElements = 4

// Tuples returns the flat list of committed exchange tuples.
func (p *Plan) Tuples() []Tuple {
	return p.tuples
}

// PerPE returns, for PE i, the grouped list of (neighbour, local slots).
func (p *Plan) PerPE(i int) []NeighbourSlots {
	return p.perPE[i]
}

// NExchanged returns the per-neighbour-pair exchange count E.
func (p *Plan) NExchanged() int {
	return p.nExchanged
}

// messagesParticles computes the particle-swap traffic component shared
// by DRNA and Mposterior: Σ hops(i,j)·|slots|·nStateElems over every
// (PE, neighbour-group) pair.
func (p *Plan) messagesParticles() int {
	total := 0
	for i, groups := range p.perPE {
		for _, g := range groups {
			total += p.topo.Hops(i, g.Neighbour) * len(g.Slots) * p.nStateElems
		}
	}
	return total
}

// messagesAggregatedWeight computes the "one scalar per neighbour per
// PE" component DRNA adds on top of particle traffic.
func (p *Plan) messagesAggregatedWeight() int {
	total := 0
	for _, groups := range p.perPE {
		total += len(groups)
	}
	return total
}
