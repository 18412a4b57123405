package exchange

import (
	"fmt"
	"strings"

	filter "github.com/pebbledata/dpf"
	"github.com/pebbledata/dpf/topology"
	"gonum.org/v1/gonum/stat/combin"
)

// BetaCarrier is implemented by PEs participating in Likelihood
// Consensus (spec §4.3.4): it exposes the polynomial log-likelihood
// coefficients β_r, indexed by a canonical string encoding of the
// multi-exponent r, that the consensus round averages across
// neighbours.
type BetaCarrier interface {
	Beta() map[string]float64
	BetaConsensus() map[string]float64
	SetBetaConsensus(map[string]float64)
}

// Exponent renders a multi-exponent (one integer per state-subset
// dimension) as the canonical map key BetaCarrier implementations use.
func Exponent(r []int) string {
	parts := make([]string, len(r))
	for i, v := range r {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ",")
}

// Exponents enumerates every multi-exponent of total degree <= maxDegree
// over dim dimensions, in a stable order.
func Exponents(maxDegree, dim int) [][]int {
	var out [][]int
	var rec func(remaining int, prefix []int)
	rec = func(remaining int, prefix []int) {
		if remaining == 0 {
			r := make([]int, len(prefix))
			copy(r, prefix)
			out = append(out, r)
			return
		}
		for d := 0; d <= maxDegree; d++ {
			rec(remaining-1, append(prefix, d))
		}
	}
	rec(dim, nil)

	filtered := out[:0]
	for _, r := range out {
		sum := 0
		for _, v := range r {
			sum += v
		}
		if sum <= maxDegree {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// metropolisWeights computes, for every PE, (selfWeight, neighbourWeights)
// per spec §4.3.4: w_{i->j} = 1/(1+max(|N(i)|,|N(j)|)), w_{i->i} = 1 - Σw_{i->j}.
func metropolisWeights(topo *topology.Topology) ([]float64, [][]float64) {
	n := topo.NumPEs()
	self := make([]float64, n)
	neigh := make([][]float64, n)

	for i := 0; i < n; i++ {
		ns := topo.Neighbours(i)
		w := make([]float64, len(ns))
		sum := 0.0
		for k, j := range ns {
			di, dj := len(ns), len(topo.Neighbours(j))
			m := di
			if dj > m {
				m = dj
			}
			w[k] = 1 / float64(1+m)
			sum += w[k]
		}
		neigh[i] = w
		self[i] = 1 - sum
	}

	return self, neigh
}

// LikelihoodConsensus runs R iterations of average consensus over each
// PE's polynomial log-likelihood coefficients, then scales every
// coefficient by nPEs to turn the converged average back into a sum
// (spec §4.3.4).
type LikelihoodConsensus struct {
	topo       *topology.Topology
	iterations int
	degree     int // D
	dim        int // M
	selfW      []float64
	neighW     [][]float64
	exponents  [][]int
}

// NewLikelihoodConsensus builds a LikelihoodConsensus recipe for
// polynomials of total degree <= degree over an M-dimensional state
// subset, run for iterations rounds of average consensus.
func NewLikelihoodConsensus(topo *topology.Topology, iterations, degree, dim int) (*LikelihoodConsensus, error) {
	if iterations <= 0 {
		return nil, &filter.ConfigurationError{Msg: "exchange: likelihood consensus requires a positive iteration count"}
	}
	if degree < 0 || dim <= 0 {
		return nil, &filter.ConfigurationError{Msg: "exchange: likelihood consensus requires degree >= 0 and dim > 0"}
	}

	self, neigh := metropolisWeights(topo)

	return &LikelihoodConsensus{
		topo:       topo,
		iterations: iterations,
		degree:     degree,
		dim:        dim,
		selfW:      self,
		neighW:     neigh,
		exponents:  Exponents(degree, dim),
	}, nil
}

// PerformExchange implements filter.ExchangeRecipe. Every element of
// pes must also implement BetaCarrier.
func (l *LikelihoodConsensus) PerformExchange(pes []filter.LocalParticleFilter) error {
	carriers := make([]BetaCarrier, len(pes))
	for i, p := range pes {
		c, ok := p.(BetaCarrier)
		if !ok {
			return &filter.ConfigurationError{Msg: fmt.Sprintf("exchange: PE %d does not carry likelihood-consensus coefficients", i)}
		}
		carriers[i] = c
	}

	// first iteration reads Beta(); later iterations read the previous
	// iteration's result
	current := make([]map[string]float64, len(carriers))
	for i, c := range carriers {
		current[i] = c.Beta()
	}

	for iter := 0; iter < l.iterations; iter++ {
		next := make([]map[string]float64, len(carriers))
		for i := range carriers {
			ns := l.topo.Neighbours(i)
			out := make(map[string]float64, len(l.exponents))
			for _, r := range l.exponents {
				key := Exponent(r)
				val := current[i][key] * l.selfW[i]
				for k, j := range ns {
					val += current[j][key] * l.neighW[i][k]
				}
				out[key] = val
			}
			next[i] = out
		}
		current = next
	}

	n := float64(l.topo.NumPEs())
	for i, c := range carriers {
		scaled := make(map[string]float64, len(current[i]))
		for k, v := range current[i] {
			scaled[k] = v * n
		}
		c.SetBetaConsensus(scaled)
	}

	return nil
}

// NMessages implements filter.ExchangeRecipe, per spec §4.3.4:
// n_coef = C(2D+M, 2D) - 1 distinct consensus channels, exchanged with
// every neighbour once per iteration, plus one scalar per neighbour per
// PE for exchanging the neighbour-count (Metropolis weights).
func (l *LikelihoodConsensus) NMessages() int {
	nCoef := combin.Binomial(2*l.degree+l.dim, 2*l.degree) - 1

	nNeighbours := 0
	for i := 0; i < l.topo.NumPEs(); i++ {
		nNeighbours += len(l.topo.Neighbours(i))
	}

	return nNeighbours*nCoef*l.iterations + nNeighbours
}

var _ filter.ExchangeRecipe = (*LikelihoodConsensus)(nil)
