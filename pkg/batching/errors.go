package batching

import "errors"

// Sentinel errors for the batching engine's failure taxonomy (§7). Only
// ErrInvalidPolicy is fatal; the rest remove a single candidate or bundle
// from consideration and the engine continues.
var (
	ErrInvalidPolicy     = errors.New("batching: invalid policy")
	ErrInfeasibleBundle  = errors.New("batching: no permutation respects pickup/dropoff precedence")
	ErrDetourRejected    = errors.New("batching: detour cap exceeded")
	ErrOracleUnavailable = errors.New("batching: time matrix oracle returned no finite duration for required pair")
)
