// Package cycle runs the periodic dispatch tick (advance RAW orders,
// batch them, commit resulting jobs) as a small task graph with
// go-taskflow, mirroring this codebase's use of the same library for
// multi-stage ingestion pipelines. Per-job wave loops are deliberately
// kept outside the graph: they block on wall-clock timeouts, which a
// one-shot DAG per tick is a poor fit for, so each READY job is instead
// handed off to its own goroutine once the tick's synchronous stages
// finish.
package cycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	gotaskflow "github.com/noneback/go-taskflow"
	"github.com/rs/zerolog"

	"github.com/tangiraiC/passl-dispatch/pkg/audit"
	"github.com/tangiraiC/passl-dispatch/pkg/batching"
	"github.com/tangiraiC/passl-dispatch/pkg/clock"
	"github.com/tangiraiC/passl-dispatch/pkg/config"
	"github.com/tangiraiC/passl-dispatch/pkg/dispatch"
	"github.com/tangiraiC/passl-dispatch/pkg/model"
	"github.com/tangiraiC/passl-dispatch/pkg/queue"
	"github.com/tangiraiC/passl-dispatch/pkg/routing"
)

// DriverPool supplies the currently available drivers for a dispatch
// attempt. Runner does not own driver state; the caller's DriverPool
// implementation does (in-memory fleet, CSV snapshot, or a real fleet
// service elsewhere in the platform).
type DriverPool interface {
	AvailableDrivers(ctx context.Context) ([]model.Driver, error)
}

// Runner wires the queue, the batching engine, and the wave dispatcher
// into one periodic tick.
type Runner struct {
	Queue        *queue.OrderQueue
	Batching     batching.Policy
	StopOracle   routing.Oracle
	PickupOracle routing.Oracle
	Dispatcher   *dispatch.WaveDispatcher
	Drivers      DriverPool
	Audit        *audit.Log
	Clock        clock.Clock
	Log          zerolog.Logger
	Cycle        config.CycleConfig

	inFlight sync.WaitGroup
}

// Tick runs one advance-batch-commit cycle and launches a dispatch
// goroutine per resulting READY job. cycleID identifies the tick in the
// audit log. Tick itself does not wait for dispatch outcomes to resolve;
// call Wait to block until every job launched by this and prior ticks has
// concluded (used by tests and graceful shutdown).
func (r *Runner) Tick(ctx context.Context, cycleID string) error {
	now := r.Clock.Now()
	tf := gotaskflow.NewTaskFlow(fmt.Sprintf("cycle-%s", cycleID))

	var batchResult batching.Result
	var batchErr error

	advanceTask := tf.NewTask("advance", func() {
		readyHorizon := secondsToDuration(r.Cycle.ReadyHorizonSeconds)
		maxRawAge := secondsToDuration(r.Cycle.MaxRawAgeSeconds)
		r.Queue.AdvanceToBatching(now, readyHorizon, maxRawAge, r.Cycle.MaxBatchingOrdersPerTick)
	})

	batchTask := tf.NewTask("batch", func() {
		orders := r.Queue.BatchingOrders()
		if len(orders) == 0 {
			return
		}
		ages := make(map[string]float64, len(orders))
		for _, o := range orders {
			ages[o.ID] = o.Age(now).Seconds()
		}
		batchResult, batchErr = batching.BatchOrders(ctx, orders, r.Batching, r.StopOracle, r.PickupOracle, ages)
	})

	commitTask := tf.NewTask("commit", func() {
		if batchErr != nil || len(batchResult.Jobs) == 0 {
			return
		}
		if err := r.Queue.CommitJobs(batchResult.Jobs, now); err != nil {
			r.Log.Error().Err(err).Str("cycle_id", cycleID).Msg("commit jobs failed")
			return
		}
		for _, job := range batchResult.Jobs {
			r.recordJobCreated(cycleID, job, now)
		}
	})

	advanceTask.Precede(batchTask)
	batchTask.Precede(commitTask)

	executor := gotaskflow.NewExecutor(1)
	executor.Run(tf).Wait()

	if batchErr != nil {
		return fmt.Errorf("cycle %s: batching: %w", cycleID, batchErr)
	}

	r.launchReadyJobs(ctx, cycleID)
	return nil
}

// Wait blocks until every dispatch goroutine launched by Tick has
// concluded.
func (r *Runner) Wait() {
	r.inFlight.Wait()
}

func (r *Runner) launchReadyJobs(ctx context.Context, cycleID string) {
	jobs := r.Queue.PopReady(r.Queue.ReadyDepth())
	for _, job := range jobs {
		job := job
		r.inFlight.Add(1)
		go func() {
			defer r.inFlight.Done()
			r.dispatchJob(ctx, cycleID, job)
		}()
	}
}

func (r *Runner) dispatchJob(ctx context.Context, cycleID string, job model.Job) {
	drivers, err := r.Drivers.AvailableDrivers(ctx)
	if err != nil {
		r.Log.Error().Err(err).Str("job_id", job.ID).Msg("list available drivers failed")
		return
	}

	pickup := pickupCoordOf(job)
	outcome, err := r.Dispatcher.Dispatch(ctx, job, pickup, drivers)
	now := r.Clock.Now()
	if err != nil {
		r.recordJobFailed(cycleID, job, now, err)
		return
	}
	r.recordJobAccepted(cycleID, job, outcome, now)
}

func pickupCoordOf(job model.Job) model.Coordinate {
	for _, stop := range job.Stops {
		if stop.Type == model.StopPickup {
			return stop.Coord
		}
	}
	return model.Coordinate{}
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

func (r *Runner) recordJobCreated(cycleID string, job model.Job, now time.Time) {
	if r.Audit == nil {
		return
	}
	for _, orderID := range job.OrderIDs {
		if err := r.Audit.Record(cycleID, audit.JobCreated, job.ID, orderID, "", 0, string(job.Type), now); err != nil {
			r.Log.Error().Err(err).Msg("audit record job_created failed")
		}
	}
}

func (r *Runner) recordJobAccepted(cycleID string, job model.Job, outcome dispatch.Outcome, now time.Time) {
	if r.Audit == nil {
		return
	}
	if err := r.Audit.Record(cycleID, audit.JobAccepted, job.ID, "", outcome.WinnerDriverID, outcome.WaveIndex, "", now); err != nil {
		r.Log.Error().Err(err).Msg("audit record job_accepted failed")
	}
}

func (r *Runner) recordJobFailed(cycleID string, job model.Job, now time.Time, cause error) {
	if r.Audit == nil {
		return
	}
	if err := r.Audit.Record(cycleID, audit.JobFailed, job.ID, "", "", 0, cause.Error(), now); err != nil {
		r.Log.Error().Err(err).Msg("audit record job_failed failed")
	}
}
