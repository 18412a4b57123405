// Package dpf implements DistributedPF: the driver that runs a
// collection of LocalParticleFilters in lockstep, applies an
// ExchangeRecipe on a fixed period, and renormalizes aggregated weights
// on another fixed period (spec §4.2).
package dpf

import (
	"math"

	filter "github.com/pebbledata/dpf"
	"github.com/pebbledata/dpf/sensormap"
)

// resetEpsilon bounds the "S is approximately zero" test in step 4 of
// the DRNA driver loop.
const resetEpsilon = 1e-300

// Config gathers the collaborators and periods a DistributedPF needs.
type Config struct {
	PEs     []filter.LocalParticleFilter
	Sensors sensormap.Map
	Recipe  filter.ExchangeRecipe

	ExchangePeriod      int // T_e
	NormalizationPeriod int // T_n

	// UpperBound is the diagnostic bound U on max_i(aggregatedWeight_i/S)^q.
	UpperBound float64
	// Exponent is the DRNA exponent q used by the diagnostic.
	Exponent float64
}

// DistributedPF drives nPEs LocalParticleFilters through observation
// vectors, applying exchange and renormalization on their configured
// periods.
type DistributedPF struct {
	pes     []filter.LocalParticleFilter
	sensors sensormap.Map
	recipe  filter.ExchangeRecipe

	te, tn int
	u, q   float64

	n int // current time step
}

// New builds a DistributedPF from cfg.
func New(cfg Config) (*DistributedPF, error) {
	if len(cfg.PEs) == 0 {
		return nil, &filter.ConfigurationError{Msg: "dpf: at least one PE is required"}
	}
	if cfg.ExchangePeriod < 1 || cfg.NormalizationPeriod < 1 {
		return nil, &filter.ConfigurationError{Msg: "dpf: exchange and normalization periods must be >= 1"}
	}
	if cfg.Recipe == nil {
		return nil, &filter.ConfigurationError{Msg: "dpf: an exchange recipe is required"}
	}
	if cfg.Sensors == nil {
		return nil, &filter.ConfigurationError{Msg: "dpf: a sensors-PEs map is required"}
	}

	return &DistributedPF{
		pes:     cfg.PEs,
		sensors: cfg.Sensors,
		recipe:  cfg.Recipe,
		te:      cfg.ExchangePeriod,
		tn:      cfg.NormalizationPeriod,
		u:       cfg.UpperBound,
		q:       cfg.Exponent,
	}, nil
}

// Initialize draws initial particles for every PE.
func (d *DistributedPF) Initialize() error {
	for _, pe := range d.pes {
		if err := pe.Initialize(); err != nil {
			return err
		}
	}
	return nil
}

// Step runs one time instant of the DRNA driver loop (spec §4.2 steps 1-5).
func (d *DistributedPF) Step(observations []float64) error {
	for i, pe := range d.pes {
		sensorIdx := d.sensors.SensorsFor(i)
		obs := make([]float64, len(sensorIdx))
		for k, s := range sensorIdx {
			obs[k] = observations[s]
		}
		if err := pe.Step(obs); err != nil {
			return err
		}
	}

	d.n++

	if d.n%d.te == 0 {
		if err := d.recipe.PerformExchange(d.pes); err != nil {
			return err
		}
		for _, pe := range d.pes {
			pe.UpdateAggregatedWeight()
		}
	}

	s := d.sumAggregatedWeights()
	if math.Abs(s) <= resetEpsilon {
		d.resetWeights()
		return nil
	}

	if d.n%d.tn == 0 {
		d.divideWeights(s)
	}

	return nil
}

func (d *DistributedPF) sumAggregatedWeights() float64 {
	s := 0.0
	for _, pe := range d.pes {
		s += pe.AggregatedWeight()
	}
	return s
}

// resettablePE is satisfied by pe.PE, exposing the internal mutators
// DistributedPF needs for the global reset and renormalization steps,
// which operate outside the usual setParticle recomputation path.
type resettablePE interface {
	ResetUniform(nPEs int)
	ScaleLogWeights(delta float64)
	SetAggregatedWeight(aw float64)
}

func (d *DistributedPF) resetWeights() {
	for _, pe := range d.pes {
		if rp, ok := pe.(resettablePE); ok {
			rp.ResetUniform(len(d.pes))
		}
	}
}

func (d *DistributedPF) divideWeights(s float64) {
	logS := math.Log(s)
	for _, pe := range d.pes {
		rp, ok := pe.(resettablePE)
		if !ok {
			continue
		}
		rp.ScaleLogWeights(-logS)
		rp.SetAggregatedWeight(pe.AggregatedWeight() / s)
	}
}

// PEs exposes the underlying LocalParticleFilters, read-only by
// convention, for estimators and diagnostics.
func (d *DistributedPF) PEs() []filter.LocalParticleFilter {
	return d.pes
}

// NumPEs returns the number of PEs driven by this DistributedPF.
func (d *DistributedPF) NumPEs() int {
	return len(d.pes)
}

// TimeIndex returns the current step count n.
func (d *DistributedPF) TimeIndex() int {
	return d.n
}

// NMessages returns the total message cost of observation delivery plus
// exchange traffic accrued at step n (spec §4.2): every sensor's
// observation is counted as travelling one hop to every PE
// (NumSensors·nPEs), whichever sensors-PEs map is configured.
func (d *DistributedPF) NMessages() int {
	obsTraffic := d.sensors.NumSensors() * len(d.pes)
	if d.n%d.te == 0 {
		obsTraffic += d.recipe.NMessages()
	}
	return obsTraffic
}

// DiagnosticBoundExceeded reports whether max_i(aggregatedWeight_i/S)^q
// exceeds the configured upper bound U (spec §4.2 diagnostic); it is
// never recovered from, only reported.
func (d *DistributedPF) DiagnosticBoundExceeded() (*filter.DiagnosticBoundExceeded, bool) {
	s := d.sumAggregatedWeights()
	if s <= 0 {
		return nil, false
	}

	max := 0.0
	for _, pe := range d.pes {
		v := pe.AggregatedWeight() / s
		if v > max {
			max = v
		}
	}
	value := math.Pow(max, d.q)

	if value > d.u {
		return &filter.DiagnosticBoundExceeded{TimeIndex: d.n, Value: value, Bound: d.u}, true
	}
	return nil, false
}

// SupremumUpperBound computes U = c^q / nPEs^(q-epsilon), the DRNA
// theoretical upper bound on the normalized max aggregated weight
// (spec §6's configuration table; grounded on
// simulation.py's drnautil.supremumUpperBound, referenced but not
// included in the filtered original source).
func SupremumUpperBound(c, q, epsilon float64, nPEs int) float64 {
	return math.Pow(c, q) / math.Pow(float64(nPEs), q-epsilon)
}
