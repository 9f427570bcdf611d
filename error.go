package kernelcache

import "fmt"

type constError string

// ErrInvalidBudget may be returned from [New].
const ErrInvalidBudget = constError("invalid budget")

func (errStr constError) Error() string { return string(errStr) }

func minBudgetError(budgetBytes int64, elementSize uintptr) error {
	return fmt.Errorf(
		"%w: must hold at least one %d byte element but %d bytes were requested",
		ErrInvalidBudget, elementSize, budgetBytes)
}
