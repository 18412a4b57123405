// Package sensormap implements the bipartite connector between sensors
// and Processing Elements: given a PE index, which sensor observations
// it is handed at every step. The reverse lookup (which PEs consume a
// given sensor) is not provided. The default connector wires every sensor to every PE, matching
// the DRNA topologies the core is designed around; other connectors are
// free to restrict this for bandwidth-constrained deployments.
package sensormap

import (
	filter "github.com/pebbledata/dpf"
)

// Map is the SensorsPEsMap collaborator: it reports, for a given PE
// index, the ordered list of sensor indices that PE consumes.
type Map interface {
	// SensorsFor returns the sensor indices assigned to PE i, in the
	// order their observations must be delivered to that PE's step().
	SensorsFor(pe int) []int
	// NumSensors is the total number of distinct sensors known to the map.
	NumSensors() int
}

// EverySensorEveryPE is the connector assumed by the core DRNA design:
// every sensor is visible to every PE. It is built once from nSensors
// and nPEs and is immutable thereafter.
type EverySensorEveryPE struct {
	nSensors int
	nPEs     int
	sensors  []int
}

// NewEverySensorEveryPE returns a Map wiring all nSensors observations
// to each of nPEs Processing Elements.
func NewEverySensorEveryPE(nSensors, nPEs int) (*EverySensorEveryPE, error) {
	if nSensors <= 0 {
		return nil, &filter.ConfigurationError{Msg: "sensormap: nSensors must be positive"}
	}
	if nPEs <= 0 {
		return nil, &filter.ConfigurationError{Msg: "sensormap: nPEs must be positive"}
	}

	sensors := make([]int, nSensors)
	for i := range sensors {
		sensors[i] = i
	}

	return &EverySensorEveryPE{nSensors: nSensors, nPEs: nPEs, sensors: sensors}, nil
}

// SensorsFor implements Map.
func (m *EverySensorEveryPE) SensorsFor(pe int) []int {
	return m.sensors
}

// NumSensors implements Map.
func (m *EverySensorEveryPE) NumSensors() int {
	return m.nSensors
}

// Partitioned restricts each sensor to exactly one PE, assigned by a
// caller-supplied function. It models bandwidth-constrained deployments
// where an observation never leaves its originating PE except through
// an ExchangeRecipe.
type Partitioned struct {
	nSensors int
	byPE     map[int][]int
}

// NewPartitioned builds a Map where sensor s belongs to PE owner(s).
func NewPartitioned(nSensors, nPEs int, owner func(sensor int) int) (*Partitioned, error) {
	if nSensors <= 0 {
		return nil, &filter.ConfigurationError{Msg: "sensormap: nSensors must be positive"}
	}
	if nPEs <= 0 {
		return nil, &filter.ConfigurationError{Msg: "sensormap: nPEs must be positive"}
	}

	byPE := make(map[int][]int, nPEs)
	for s := 0; s < nSensors; s++ {
		pe := owner(s)
		if pe < 0 || pe >= nPEs {
			return nil, &filter.ConfigurationError{Msg: "sensormap: owner function returned out-of-range PE index"}
		}
		byPE[pe] = append(byPE[pe], s)
	}

	return &Partitioned{nSensors: nSensors, byPE: byPE}, nil
}

// SensorsFor implements Map.
func (m *Partitioned) SensorsFor(pe int) []int {
	return m.byPE[pe]
}

// NumSensors implements Map.
func (m *Partitioned) NumSensors() int {
	return m.nSensors
}

var (
	_ Map = (*EverySensorEveryPE)(nil)
	_ Map = (*Partitioned)(nil)
)
