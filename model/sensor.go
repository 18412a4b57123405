package model

import (
	"fmt"
	"math"

	filter "github.com/pebbledata/dpf"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// GaussianSensor is a scalar sensor whose observation is a linear function
// of particle position (projection matrix C) corrupted by Gaussian noise:
// it evaluates Likelihood(obs, positions) as the Gaussian density of the
// residual obs - C*position for every particle column.
type GaussianSensor struct {
	// Position is the sensor's own position in the state's position
	// subspace (used by distance-based sensors); nil for linear sensors.
	Position []float64
	// C projects a state column onto the scalar observation space.
	C *mat.Dense
	// Sigma is the observation-noise standard deviation.
	Sigma float64
}

// NewGaussianSensor returns a GaussianSensor with projection matrix C
// (1 x dim(state)) and noise standard deviation sigma.
func NewGaussianSensor(C *mat.Dense, sigma float64) (*GaussianSensor, error) {
	if sigma <= 0 {
		return nil, fmt.Errorf("model: sensor sigma must be positive, got %f", sigma)
	}
	r, _ := C.Dims()
	if r != 1 {
		return nil, fmt.Errorf("model: sensor projection matrix must have exactly one row")
	}

	return &GaussianSensor{C: C, Sigma: sigma}, nil
}

// Likelihood implements filter.Sensor.
func (s *GaussianSensor) Likelihood(obs float64, positions mat.Matrix) ([]float64, error) {
	pr, pc := positions.Dims()
	_, cc := s.C.Dims()
	if pr != cc {
		return nil, fmt.Errorf("model: positions have %d rows, sensor expects %d", pr, cc)
	}

	pred := new(mat.Dense)
	pred.Mul(s.C, positions)

	dist := distuv.Normal{Mu: 0, Sigma: s.Sigma}
	out := make([]float64, pc)
	for k := 0; k < pc; k++ {
		residual := obs - pred.At(0, k)
		out[k] = dist.Prob(residual)
	}

	return out, nil
}

// NoiselessSensor reports likelihood 1 for every particle whose
// predicted observation is within 1e-9 of the true one, and 0 otherwise; it
// is the fixture behind scenario P4 (noiseless sensors, stationary
// target).
type NoiselessSensor struct {
	C *mat.Dense
}

// Likelihood implements filter.Sensor.
func (s *NoiselessSensor) Likelihood(obs float64, positions mat.Matrix) ([]float64, error) {
	pred := new(mat.Dense)
	pred.Mul(s.C, positions)

	_, pc := positions.Dims()
	out := make([]float64, pc)
	for k := 0; k < pc; k++ {
		if math.Abs(obs-pred.At(0, k)) < 1e-9 {
			out[k] = 1
		} else {
			out[k] = 0
		}
	}

	return out, nil
}

var (
	_ filter.Sensor = (*GaussianSensor)(nil)
	_ filter.Sensor = (*NoiselessSensor)(nil)
)
