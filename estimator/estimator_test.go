package estimator

import (
	"testing"

	filter "github.com/pebbledata/dpf"
	"github.com/pebbledata/dpf/median"
	"github.com/pebbledata/dpf/model"
	"github.com/pebbledata/dpf/noise"
	"github.com/pebbledata/dpf/pe"
	"github.com/pebbledata/dpf/rand"
	"github.com/pebbledata/dpf/resample"
	"github.com/pebbledata/dpf/topology"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func buildPEs(t *testing.T, n, k int, src *rand.Source) []filter.LocalParticleFilter {
	t.Helper()

	mean := []float64{0, 0}
	cov := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	A := mat.NewDense(2, 2, []float64{1, 1, 0, 1})
	C := mat.NewDense(1, 2, []float64{1, 0})
	sys, err := model.NewLinearSystem(A, nil, C, nil)
	assert.NoError(t, err)

	pes := make([]filter.LocalParticleFilter, n)
	for i := 0; i < n; i++ {
		q, err := noise.NewGaussian([]float64{0, 0}, mat.NewSymDense(2, []float64{0.01, 0, 0, 0.01}), uint64(200+i))
		assert.NoError(t, err)
		kernel := model.NewLinearTransitionKernel(sys, q)
		sensor, err := model.NewGaussianSensor(C, 0.5)
		assert.NoError(t, err)

		crit, _ := resample.NewESS(0.5)
		f, err := pe.New(pe.Config{
			Prior:                &model.GaussianPrior{Mean: mean, Cov: cov, Src: rand.NewSource(uint64(400 + i))},
			Kernel:               kernel,
			Sensors:              []filter.Sensor{sensor},
			Variant:              pe.Embedded,
			Crit:                 crit,
			Resample:             resample.NewMultinomial(src),
			Src:                  src,
			K:                    k,
			InitAggregatedWeight: 1.0 / float64(n),
		})
		assert.NoError(t, err)
		assert.NoError(t, f.Initialize())
		pes[i] = f
	}
	return pes
}

func TestMeanAndWeightedMean(t *testing.T) {
	assert := assert.New(t)

	topo, err := topology.Ring(4)
	assert.NoError(err)
	src := rand.NewSource(11)
	pes := buildPEs(t, 4, 10, src)

	mean, err := NewMean(topo, 0)
	assert.NoError(err)
	est, err := mean.Estimate(pes)
	assert.NoError(err)
	assert.Equal(2, est.Len())
	assert.True(mean.NMessages() > 0)

	wmean, err := NewWeightedMean(topo, 0)
	assert.NoError(err)
	_, err = wmean.Estimate(pes)
	assert.NoError(err)
	assert.Equal(wmean.NMessages(), mean.NMessages())
}

func TestDelegatingAndSinglePEMean(t *testing.T) {
	assert := assert.New(t)

	src := rand.NewSource(12)
	pes := buildPEs(t, 3, 8, src)

	del := NewDelegating()
	est, err := del.Estimate(pes)
	assert.NoError(err)
	assert.Equal(2, est.Len())
	assert.Equal(0, del.NMessages())

	single := NewSinglePEMean(1)
	_, err = single.Estimate(pes)
	assert.NoError(err)
	assert.Equal(0, single.NMessages())

	bad := NewSinglePEMean(99)
	_, err = bad.Estimate(pes)
	assert.Error(err)
}

func TestMposteriorAndPartialMposterior(t *testing.T) {
	assert := assert.New(t)

	topo, err := topology.Ring(4)
	assert.NoError(err)
	src := rand.NewSource(13)
	pes := buildPEs(t, 4, 10, src)

	m, err := NewMposterior(topo, 0, median.NewMposterior(), 10, 50, 1e-6)
	assert.NoError(err)
	est, err := m.Estimate(pes)
	assert.NoError(err)
	assert.Equal(2, est.Len())
	assert.True(m.NMessages() > 0)

	pm, err := NewPartialMposterior(topo, 0, median.NewMposterior(), 4, resample.NewMultinomial(src), 50, 1e-6)
	assert.NoError(err)
	_, err = pm.Estimate(pes)
	assert.NoError(err)
	assert.True(pm.NMessages() < m.NMessages())

	_, err = NewPartialMposterior(topo, 0, median.NewMposterior(), 0, resample.NewMultinomial(src), 50, 1e-6)
	assert.Error(err)
}

func TestGeometricMedianVariants(t *testing.T) {
	assert := assert.New(t)

	topo, err := topology.Ring(4)
	assert.NoError(err)
	src := rand.NewSource(14)
	pes := buildPEs(t, 4, 10, src)

	solver := median.NewWeiszfeld()

	gm, err := NewGeometricMedian(topo, 0, solver, 100, 1e-9)
	assert.NoError(err)
	est, err := gm.Estimate(pes)
	assert.NoError(err)
	assert.Equal(2, est.Len())
	assert.True(gm.NMessages() > 0)

	sgm, err := NewStochasticGeoMedian(topo, 0, solver, 3, 100, 1e-9)
	assert.NoError(err)
	_, err = sgm.Estimate(pes)
	assert.NoError(err)
	assert.Equal(sgm.NMessages(), gm.NMessages()*3)

	wr, err := NewSinglePEWithinRadius(topo, 0, 1, solver, 100, 1e-9)
	assert.NoError(err)
	_, err = wr.Estimate(pes)
	assert.NoError(err)
	assert.True(wr.NMessages() <= gm.NMessages())

	_, err = NewSinglePEWithinRadius(topo, 0, -1, solver, 100, 1e-9)
	assert.Error(err)
}
