package svr

import "fmt"

type constError string

// ErrInvalidProblem may be returned from [NewQMatrix].
const ErrInvalidProblem = constError("invalid problem")

func (errStr constError) Error() string { return string(errStr) }

func sampleCountError(samples int) error {
	return fmt.Errorf(
		"%w: sample count must be >=1 but %d was provided",
		ErrInvalidProblem, samples)
}

var errNilKernel = fmt.Errorf("%w: kernel function is nil", ErrInvalidProblem)
