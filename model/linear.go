// Package model provides reference implementations of the collaborator
// interfaces declared in the root filter package (Prior, TransitionKernel,
// Sensor): a linear state-space transition kernel, a Gaussian-likelihood
// sensor and simple priors. These are fixtures used to drive the
// end-to-end test scenarios; the core distributed particle filter treats
// them as opaque plug-ins (spec §6) and never imports this package.
package model

import (
	"fmt"

	filter "github.com/pebbledata/dpf"
	"github.com/pebbledata/dpf/noise"
	"gonum.org/v1/gonum/mat"
)

// LinearSystem is a linear, discrete-time state-space model:
//
//	x[n+1] = A*x[n] + B*u[n] + w
//	y      = C*x[n] + D*u[n] + v
//
// B, D and u may be nil/omitted when the model has no control input.
type LinearSystem struct {
	A, B, C, D *mat.Dense
}

// NewLinearSystem creates a LinearSystem and returns it. A and C must be
// non-nil.
func NewLinearSystem(A, B, C, D *mat.Dense) (*LinearSystem, error) {
	if A == nil {
		return nil, fmt.Errorf("model: system matrix A must be defined")
	}
	if C == nil {
		return nil, fmt.Errorf("model: output matrix C must be defined")
	}

	return &LinearSystem{A: A, B: B, C: C, D: D}, nil
}

// Dims returns the state and observation dimensions of the system.
func (s *LinearSystem) Dims() (nx, ny int) {
	nx, _ = s.A.Dims()
	ny, _ = s.C.Dims()

	return nx, ny
}

// Propagate returns A*x (+ B*u if u is given).
func (s *LinearSystem) Propagate(x, u mat.Vector) (*mat.Dense, error) {
	nx, _ := s.A.Dims()
	if x.Len() != nx {
		return nil, fmt.Errorf("model: invalid state vector length %d, want %d", x.Len(), nx)
	}

	out := new(mat.Dense)
	out.Mul(s.A, x)

	if u != nil && s.B != nil {
		outU := new(mat.Dense)
		outU.Mul(s.B, u)
		out.Add(out, outU)
	}

	return out, nil
}

// Observe returns C*x (+ D*u if u is given).
func (s *LinearSystem) Observe(x, u mat.Vector) (*mat.Dense, error) {
	nx, _ := s.A.Dims()
	if x.Len() != nx {
		return nil, fmt.Errorf("model: invalid state vector length %d, want %d", x.Len(), nx)
	}

	out := new(mat.Dense)
	out.Mul(s.C, x)

	if u != nil && s.D != nil {
		outU := new(mat.Dense)
		outU.Mul(s.D, u)
		out.Add(out, outU)
	}

	return out, nil
}

// LinearTransitionKernel adapts a LinearSystem plus an injected process
// noise source into a filter.TransitionKernel.
type LinearTransitionKernel struct {
	sys *LinearSystem
	q   noise.Source
}

// NewLinearTransitionKernel returns a TransitionKernel that propagates
// through sys and adds a sample drawn from q.
func NewLinearTransitionKernel(sys *LinearSystem, q noise.Source) *LinearTransitionKernel {
	return &LinearTransitionKernel{sys: sys, q: q}
}

// NextState implements filter.TransitionKernel.
func (k *LinearTransitionKernel) NextState(x mat.Vector) (mat.Vector, error) {
	out, err := k.sys.Propagate(x, nil)
	if err != nil {
		return nil, err
	}

	if k.q != nil {
		w := k.q.Sample()
		if w.Len() == x.Len() {
			next := mat.NewVecDense(x.Len(), nil)
			for i := 0; i < x.Len(); i++ {
				next.SetVec(i, out.At(i, 0)+w.AtVec(i))
			}
			return next, nil
		}
	}

	return out.ColView(0), nil
}

var _ filter.TransitionKernel = (*LinearTransitionKernel)(nil)
