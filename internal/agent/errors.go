package agent

import "errors"

// Sentinel errors for agent execution.
var (
	// ErrResourceExhausted indicates the loop hit its iteration ceiling
	// without the model producing a final answer.
	ErrResourceExhausted = errors.New("resource exhausted: iteration limit reached")

	// ErrCircuitOpen is returned when the model circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)
