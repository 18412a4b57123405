package rand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestWithCovN(t *testing.T) {
	assert := assert.New(t)

	data := []float64{1.0, 0.0, 0.0, 1.0}
	covTest := mat.NewSymDense(2, data)
	covR, _ := covTest.Dims()

	src := NewSource(7)

	// n must be positive
	nTest := -3
	res, err := WithCovNFrom(src, covTest, nTest)
	assert.Error(err)
	assert.Nil(res)

	nTest = 1
	res, err = WithCovNFrom(src, covTest, nTest)
	assert.NoError(err)
	assert.NotNil(res)

	// 2 samples
	nTest = 2
	res, err = WithCovNFrom(src, covTest, nTest)
	assert.NoError(err)
	assert.NotNil(res)
	r, c := res.Dims()
	assert.Equal(r, covR)
	assert.Equal(c, nTest)
}

func TestWithCovNDeterministic(t *testing.T) {
	assert := assert.New(t)

	cov := mat.NewSymDense(2, []float64{1.0, 0.1, 0.1, 1.0})

	s1, err := WithCovNFrom(NewSource(42), cov, 3)
	assert.NoError(err)
	s2, err := WithCovNFrom(NewSource(42), cov, 3)
	assert.NoError(err)

	assert.Equal(s1, s2)
}

func TestRouletteDrawN(t *testing.T) {
	assert := assert.New(t)

	src := NewSource(1)

	// p can't be nil or empty
	indices, err := RouletteDrawN(src, nil, 10)
	assert.Error(err)
	assert.Nil(indices)

	p := []float64{0.1, 0.7, 0.3, 0.4}
	n := 10
	indices, err = RouletteDrawN(src, p, n)
	assert.NoError(err)
	assert.NotNil(indices)
	assert.Equal(n, len(indices))

	for _, idx := range indices {
		assert.True(idx >= 0 && idx < len(p))
	}
}

func TestChooseWithoutReplacement(t *testing.T) {
	assert := assert.New(t)

	src := NewSource(3)
	candidates := []int{10, 11, 12, 13, 14}

	chosen, err := ChooseWithoutReplacement(src, candidates, 3)
	assert.NoError(err)
	assert.Len(chosen, 3)

	seen := make(map[int]bool)
	for _, c := range chosen {
		assert.False(seen[c], "value %d drawn twice", c)
		seen[c] = true
	}

	// k larger than the candidate pool is an error
	_, err = ChooseWithoutReplacement(src, candidates, 6)
	assert.Error(err)

	// negative k is an error
	_, err = ChooseWithoutReplacement(src, candidates, -1)
	assert.Error(err)

	// k == 0 returns an empty, non-nil slice
	chosen, err = ChooseWithoutReplacement(src, candidates, 0)
	assert.NoError(err)
	assert.Len(chosen, 0)
}
