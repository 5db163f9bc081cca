package dispatch

import "errors"

// Sentinel errors for the wave dispatcher's failure taxonomy (§7).
var (
	ErrInvalidPolicy     = errors.New("dispatch: invalid policy")
	ErrStaleAcceptance   = errors.New("dispatch: acceptance on expired or non-member offer")
	ErrDoubleAccept      = errors.New("dispatch: job already has a winning driver")
	ErrDispatchExhausted = errors.New("dispatch: all waves expired without acceptance")
)
