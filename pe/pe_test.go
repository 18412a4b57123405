package pe

import (
	"os"
	"testing"

	filter "github.com/pebbledata/dpf"
	"github.com/pebbledata/dpf/model"
	"github.com/pebbledata/dpf/noise"
	"github.com/pebbledata/dpf/rand"
	"github.com/pebbledata/dpf/resample"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

var (
	okPrior  filter.Prior
	okKernel filter.TransitionKernel
	okSensor filter.Sensor
	crit     filter.ResamplingCriterion
	resampl  filter.ResamplingAlgorithm
	src      *rand.Source
	k        int
)

func setup() {
	k = 20
	src = rand.NewSource(11)

	mean := []float64{1.0, 3.0}
	cov := mat.NewSymDense(2, []float64{0.25, 0, 0, 0.25})
	okPrior = &model.GaussianPrior{Mean: mean, Cov: cov, Src: rand.NewSource(12)}

	A := mat.NewDense(2, 2, []float64{1.0, 1.0, 0.0, 1.0})
	B := mat.NewDense(2, 1, []float64{0.5, 1.0})
	C := mat.NewDense(1, 2, []float64{1.0, 0.0})
	D := mat.NewDense(1, 1, []float64{0.0})
	sys, err := model.NewLinearSystem(A, B, C, D)
	if err != nil {
		panic(err)
	}
	q, _ := noise.NewGaussian([]float64{0, 0}, mat.NewSymDense(2, []float64{0.01, 0, 0, 0.01}), 5)
	okKernel = model.NewLinearTransitionKernel(sys, q)

	okSensor, err = model.NewGaussianSensor(C, 0.5)
	if err != nil {
		panic(err)
	}

	crit, _ = resample.NewESS(0.5)
	resampl = resample.NewMultinomial(src)
}

func TestMain(m *testing.M) {
	setup()
	os.Exit(m.Run())
}

func okConfig() Config {
	return Config{
		Prior:                okPrior,
		Kernel:               okKernel,
		Sensors:              []filter.Sensor{okSensor},
		Variant:              Embedded,
		Crit:                 crit,
		Resample:             resampl,
		Src:                  src,
		K:                    k,
		InitAggregatedWeight: 1.0 / 3.0,
	}
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	cfg := okConfig()
	cfg.K = 0
	f, err := New(cfg)
	assert.Nil(f)
	assert.Error(err)

	cfg = okConfig()
	cfg.Prior = nil
	f, err = New(cfg)
	assert.Nil(f)
	assert.Error(err)

	cfg = okConfig()
	cfg.Src = nil
	f, err = New(cfg)
	assert.Nil(f)
	assert.Error(err)

	cfg = okConfig()
	cfg.InitAggregatedWeight = 0
	f, err = New(cfg)
	assert.Nil(f)
	assert.Error(err)

	f, err = New(okConfig())
	assert.NoError(err)
	assert.NotNil(f)
}

func TestInitialize(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okConfig())
	assert.NoError(err)

	assert.NoError(f.Initialize())
	assert.Equal(1.0/3.0, f.AggregatedWeight())

	mean, err := f.ComputeMean()
	assert.NoError(err)
	assert.Equal(2, mean.Len())
}

func TestStep(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okConfig())
	assert.NoError(err)
	assert.NoError(f.Initialize())

	err = f.Step([]float64{1.5})
	assert.NoError(err)
	assert.True(f.AggregatedWeight() >= 0)

	// wrong observation count
	err = f.Step([]float64{1.5, 2.0})
	assert.Error(err)
}

func TestGetSetParticle(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okConfig())
	assert.NoError(err)
	assert.NoError(f.Initialize())

	x, lw, err := f.GetParticle(0)
	assert.NoError(err)
	assert.Equal(2, x.Len())

	newX := mat.NewVecDense(2, []float64{9, 9})
	err = f.SetParticle(0, newX, lw+1)
	assert.NoError(err)

	gotX, gotLW, err := f.GetParticle(0)
	assert.NoError(err)
	assert.Equal(9.0, gotX.AtVec(0))
	assert.Equal(lw+1, gotLW)

	// out of range
	_, _, err = f.GetParticle(-1)
	assert.Error(err)
	err = f.SetParticle(1000, newX, 0)
	assert.Error(err)
}

func TestGetSamplesAt(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okConfig())
	assert.NoError(err)
	assert.NoError(f.Initialize())

	samples, err := f.GetSamplesAt([]int{0, 1, 2})
	assert.NoError(err)
	r, c := samples.Dims()
	assert.Equal(2, r)
	assert.Equal(3, c)

	_, err = f.GetSamplesAt([]int{1000})
	assert.Error(err)
}

func TestResetUniform(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okConfig())
	assert.NoError(err)
	assert.NoError(f.Initialize())

	f.ResetUniform(3)
	assert.Equal(1.0/3.0, f.AggregatedWeight())
}

func TestRoughening(t *testing.T) {
	assert := assert.New(t)

	cfg := okConfig()
	cfg.Variant = Centralized
	cfg.InitAggregatedWeight = 1
	cfg.Roughen = true

	f, err := New(cfg)
	assert.NoError(err)
	assert.NoError(f.Initialize())

	err = f.Step([]float64{1.5})
	assert.NoError(err)
	assert.Equal(1.0, f.AggregatedWeight())
}

func TestParticleSpreadAndString(t *testing.T) {
	assert := assert.New(t)

	f, err := New(okConfig())
	assert.NoError(err)
	assert.NoError(f.Initialize())

	spread, err := f.ParticleSpread()
	assert.NoError(err)
	r, c := spread.Dims()
	assert.Equal(2, r)
	assert.Equal(2, c)

	assert.NotEmpty(f.String())
}

// Scenario P4: a centralized PF with K>=2 and a noiseless sensor
// converges exactly onto a particle sitting at the true position after
// one step, since every other particle's likelihood is driven to 0.
func TestNoiselessSensorConvergesToExactPosition(t *testing.T) {
	assert := assert.New(t)

	A := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	C := mat.NewDense(1, 2, []float64{1, 0})
	sys, err := model.NewLinearSystem(A, nil, C, nil)
	assert.NoError(err)
	zero, err := noise.NewZero(2)
	assert.NoError(err)
	kernel := model.NewLinearTransitionKernel(sys, zero)

	crit, _ := resample.NewESS(1.0) // resample whenever ESS < K
	f, err := New(Config{
		Prior:                &model.GaussianPrior{Mean: []float64{1, 3}, Cov: mat.NewSymDense(2, []float64{0.25, 0, 0, 0.25}), Src: rand.NewSource(77)},
		Kernel:               kernel,
		Sensors:              []filter.Sensor{&model.NoiselessSensor{C: C}},
		Variant:              Centralized,
		Crit:                 crit,
		Resample:             resample.NewMultinomial(rand.NewSource(78)),
		Src:                  rand.NewSource(79),
		K:                    4,
		InitAggregatedWeight: 1,
	})
	assert.NoError(err)
	assert.NoError(f.Initialize())

	truePos := mat.NewVecDense(2, []float64{10, 3})
	assert.NoError(f.SetParticle(0, truePos, 0))

	assert.NoError(f.Step([]float64{10}))

	mean, err := f.ComputeMean()
	assert.NoError(err)
	assert.InDelta(10.0, mean.AtVec(0), 1e-6)
	assert.InDelta(3.0, mean.AtVec(1), 1e-6)
}

func TestCentralizedVariant(t *testing.T) {
	assert := assert.New(t)

	cfg := okConfig()
	cfg.Variant = Centralized
	cfg.InitAggregatedWeight = 1

	f, err := New(cfg)
	assert.NoError(err)
	assert.NoError(f.Initialize())

	err = f.Step([]float64{1.5})
	assert.NoError(err)
	assert.Equal(1.0, f.AggregatedWeight())
}
