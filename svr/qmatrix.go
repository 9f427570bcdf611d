// Package svr provides the Q matrix of epsilon-support vector regression
// for SMO solvers.
//
// Each of the l training samples contributes two dual variables,
// so the matrix has 2l rows and columns:
//
//	Q[i][j] = sign[i] * sign[j] * K(index[i], index[j])
//
// Positions [0,l) start as the positive variables (sign +1)
// and [l,2l) as the negative variables (sign -1) of the same samples.
// Kernel rows are cached once per sample, not once per variable.
package svr

import (
	"log/slog"
	"unsafe"

	"github.com/djdv/go-kernelcache"
)

type (
	// KernelFunc evaluates the kernel between two samples,
	// identified by their original index.
	// It must be deterministic and symmetric.
	KernelFunc func(a, b int) float64

	// Matrix is what a decomposition solver needs from Q.
	Matrix interface {
		// Row returns Q[position][0:length].
		// Only the two most recently returned rows remain valid.
		Row(position, length int) []float32
		// Diagonal returns Q[k][k] for every position k.
		// The caller must not modify it.
		Diagonal() []float64
		// SwapIndex exchanges two positions.
		// It must be called for every permutation the solver makes.
		SwapIndex(a, b int)
	}

	// QMatrix is a [Matrix] over a [kernelcache.Cache].
	// Concurrent access must be guarded by the caller.
	// Constructed by [NewQMatrix].
	QMatrix struct {
		cache    *kernelcache.Cache[float32]
		kernel   KernelFunc
		sign     []int8
		index    []int
		diagonal []float64
		buffers  [2][]float32
		next     int
		samples  int
	}
)

var _ Matrix = (*QMatrix)(nil)

// NewQMatrix creates the Q matrix for samples training samples.
// budgetBytes bounds the memory of cached kernel rows; it is raised
// to hold at least two full rows, since the solver's working pair
// must be resident together.
func NewQMatrix(
	samples int, kernel KernelFunc,
	budgetBytes int64, options ...kernelcache.Option,
) (*QMatrix, error) {
	if samples < 1 {
		return nil, sampleCountError(samples)
	}
	if kernel == nil {
		return nil, errNilKernel
	}
	const elementSize = int64(unsafe.Sizeof(float32(0)))
	minimum := 2 * int64(samples) * elementSize
	cache, err := kernelcache.New[float32](max(budgetBytes, minimum), options...)
	if err != nil {
		return nil, err
	}
	var (
		variables = 2 * samples
		q         = &QMatrix{
			cache:    cache,
			kernel:   kernel,
			samples:  samples,
			sign:     make([]int8, variables),
			index:    make([]int, variables),
			diagonal: make([]float64, variables),
		}
	)
	for k := range samples {
		q.sign[k] = 1
		q.sign[k+samples] = -1
		q.index[k] = k
		q.index[k+samples] = k
		q.diagonal[k] = kernel(k, k)
		q.diagonal[k+samples] = q.diagonal[k]
	}
	for i := range q.buffers {
		q.buffers[i] = make([]float32, variables)
	}
	return q, nil
}

// Len returns the number of variables, 2l.
func (q *QMatrix) Len() int { return len(q.sign) }

// Row returns Q[position][0:length] in one of two alternating buffers.
// The buffer is overwritten by the call after next.
func (q *QMatrix) Row(position, length int) []float32 {
	if debugging {
		assert(position >= 0 && position < len(q.sign),
			"row position out of range")
		assert(length >= 0 && length <= len(q.sign),
			"row length out of range")
	}
	var (
		sample        = q.index[position]
		cached, valid = q.cache.Fetch(sample, q.samples)
	)
	for j := valid; j < q.samples; j++ {
		cached[j] = float32(q.kernel(sample, j))
	}
	var (
		buffer = q.buffers[q.next][:length]
		signI  = float32(q.sign[position])
	)
	q.next = 1 - q.next
	for j := range buffer {
		buffer[j] = signI * float32(q.sign[j]) * cached[q.index[j]]
	}
	return buffer
}

// Diagonal returns Q[k][k] for every position k.
func (q *QMatrix) Diagonal() []float64 { return q.diagonal }

// SwapIndex exchanges positions a and b.
//
// The cache is keyed by original sample index, which
// permutations do not change, so cached rows stay valid
// without being renamed.
func (q *QMatrix) SwapIndex(a, b int) {
	if debugging {
		assert(a >= 0 && a < len(q.sign) &&
			b >= 0 && b < len(q.sign),
			"swap position out of range")
	}
	q.sign[a], q.sign[b] = q.sign[b], q.sign[a]
	q.index[a], q.index[b] = q.index[b], q.index[a]
	q.diagonal[a], q.diagonal[b] = q.diagonal[b], q.diagonal[a]
}

// Stats reports the underlying cache's counters.
func (q *QMatrix) Stats() kernelcache.Stats { return q.cache.Stats() }

// LogValue implements [slog.LogValuer].
func (q *QMatrix) LogValue() slog.Value {
	stats := q.cache.Stats()
	return slog.GroupValue(
		slog.Int("samples", q.samples),
		slog.Int("cache_capacity", stats.Capacity),
		slog.Int("cache_rows", stats.Rows),
		slog.Uint64("cache_hits", stats.Hits),
		slog.Uint64("cache_misses", stats.Misses),
		slog.Uint64("cache_evictions", stats.Evictions),
	)
}
