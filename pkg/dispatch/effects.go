package dispatch

import "github.com/tangiraiC/passl-dispatch/pkg/model"

// ApplyAcceptance returns the driver's post-acceptance state for a
// successfully won job, per §4.4.4: capacity is decremented by the job's
// order count and the driver's status transitions according to
// model.Driver.WithAcceptance's rules. The installed ChainingHook decides,
// per driver/job, whether a driver with residual capacity moves to
// TRANSIT_TO_COLLECT (hook true) or keeps its prior status (hook false);
// the default hook always says false. BuildWaves offers waves only to
// AVAILABLE drivers, so a TRANSIT_TO_COLLECT driver gets no overlay offers.
func (d *WaveDispatcher) ApplyAcceptance(driver model.Driver, job model.Job) model.Driver {
	chainingEnabled := d.chaining.ShouldRemainEligible(driver, job)
	return driver.WithAcceptance(job.Size(), chainingEnabled)
}

// ApplyBreakdown returns the driver's state after an acceptance withdrawal
// or breakdown (§4.4.4): the driver goes OFFLINE. The Job's constituent
// orders are shattered back to RAW by the caller (the queue owns that
// transition, not the dispatcher).
func ApplyBreakdown(driver model.Driver) model.Driver {
	return driver.WithBreakdown()
}
