package dispatch

import "github.com/tangiraiC/passl-dispatch/pkg/model"

// ChainingHook is the extension point for continuous chaining: letting a
// driver with residual capacity after accepting a job stay eligible for a
// compatible overlay job rather than immediately leaving the pool
// (§4.4.4, Open Question resolved in §9). It is disabled by default —
// mid-flight insertion into an already-dispatched Job is rejected unless a
// hook is installed and explicitly opts in.
//
// ShouldRemainEligible is consulted by WaveDispatcher.ApplyAcceptance on
// every acceptance; its answer changes the outcome only when the driver's
// post-acceptance capacity is positive, where true moves the driver to
// TRANSIT_TO_COLLECT (see model.Driver.WithAcceptance). BuildWaves admits
// only AVAILABLE drivers, so a driver moved to TRANSIT_TO_COLLECT is not
// offered further waves of other jobs.
type ChainingHook interface {
	ShouldRemainEligible(driver model.Driver, acceptedJob model.Job) bool
}

// disabledChainingHook is the default: never keeps a driver in-pool beyond
// what WithAcceptance's status transition already encodes.
type disabledChainingHook struct{}

// ShouldRemainEligible always returns false: no chaining.
func (disabledChainingHook) ShouldRemainEligible(model.Driver, model.Job) bool {
	return false
}

// DefaultChainingHook is the disabled-by-default hook used when none is
// configured.
var DefaultChainingHook ChainingHook = disabledChainingHook{}
