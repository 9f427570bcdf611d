// Package kernel evaluates SVM kernel functions over dense samples
// and builds regression Q matrices from them.
package kernel

import (
	"fmt"
	"math"

	"github.com/djdv/go-kernelcache"
	"github.com/djdv/go-kernelcache/svr"
	"gonum.org/v1/gonum/floats"
)

// New returns the kernel described by p over samples.
// Samples are referred to by their index in the slice.
//
// For [Precomputed] kernels, samples[i][0] holds the 1-based
// serial number of sample i, and samples[i][n] holds K(i, n-1).
func New(p Parameters, samples [][]float64) (svr.KernelFunc, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrInvalidParameters)
	}
	if p.Type == Precomputed {
		return precomputed(samples)
	}
	dimension := len(samples[0])
	for i, sample := range samples {
		if len(sample) != dimension {
			return nil, fmt.Errorf(
				"%w: sample %d has dimension %d, expected %d",
				ErrInvalidParameters, i, len(sample), dimension)
		}
	}
	gamma := p.Gamma
	if gamma == 0 && dimension > 0 {
		gamma = 1 / float64(dimension)
	}
	dot := func(a, b int) float64 {
		return floats.Dot(samples[a], samples[b])
	}
	switch p.Type {
	case Linear:
		return dot, nil
	case Polynomial:
		degree := float64(p.Degree)
		return func(a, b int) float64 {
			return math.Pow(gamma*dot(a, b)+p.Coef0, degree)
		}, nil
	case RBF:
		squares := make([]float64, len(samples))
		for i := range samples {
			squares[i] = dot(i, i)
		}
		return func(a, b int) float64 {
			return math.Exp(-gamma * (squares[a] + squares[b] - 2*dot(a, b)))
		}, nil
	case Sigmoid:
		return func(a, b int) float64 {
			return math.Tanh(gamma*dot(a, b) + p.Coef0)
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kernel type %q",
			ErrInvalidParameters, p.Type)
	}
}

func precomputed(samples [][]float64) (svr.KernelFunc, error) {
	var (
		count     = len(samples)
		serials   = make([]int, count)
		columns   = math.MaxInt
		maxSerial int
	)
	for i, sample := range samples {
		if len(sample) == 0 {
			return nil, fmt.Errorf(
				"%w: sample %d has no serial number",
				ErrInvalidParameters, i)
		}
		serial := int(sample[0])
		if serial <= 0 || serial > count {
			return nil, fmt.Errorf(
				"%w: sample %d serial number %d out of range [1,%d]",
				ErrInvalidParameters, i, serial, count)
		}
		serials[i] = serial
		columns = min(columns, len(sample))
		maxSerial = max(maxSerial, serial)
	}
	if maxSerial >= columns {
		return nil, fmt.Errorf(
			"%w: kernel rows hold %d values but serial number %d is referenced",
			ErrInvalidParameters, columns-1, maxSerial)
	}
	return func(a, b int) float64 {
		return samples[a][serials[b]]
	}, nil
}

// NewQMatrix builds the regression Q matrix of samples
// with the kernel and cache budget described by p.
func NewQMatrix(p Parameters, samples [][]float64, options ...kernelcache.Option) (*svr.QMatrix, error) {
	kernel, err := New(p, samples)
	if err != nil {
		return nil, err
	}
	return svr.NewQMatrix(len(samples), kernel, p.CacheBytes(), options...)
}
