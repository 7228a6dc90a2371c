package pipeline

import (
	"errors"
	"fmt"
)

// InputError rejects a request before any model call is made.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func inputErr(field, format string, args ...any) *InputError {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ErrCostCapExceeded is wrapped by every CostCapError.
var ErrCostCapExceeded = errors.New("cost cap exceeded")

// CostCapError reports the call that pushed spending over the cap. The cost of
// that call is already included in TotalUSD.
type CostCapError struct {
	TotalUSD float64
	CapUSD   float64
	Stage    string
}

func (e *CostCapError) Error() string {
	return fmt.Sprintf("%v after %s call: $%.4f spent, cap is $%.4f", ErrCostCapExceeded, e.Stage, e.TotalUSD, e.CapUSD)
}

func (e *CostCapError) Unwrap() error { return ErrCostCapExceeded }

// IsInputError reports whether err is a request validation failure.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
