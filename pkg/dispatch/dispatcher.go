// Package dispatch implements the five-wave cascading driver broadcast
// dispatcher (§4.4): building concentric driver waves around a Job's
// pickup, broadcasting and revoking offers wave by wave, and resolving the
// single winning acceptance under a per-job lock.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tangiraiC/passl-dispatch/pkg/clock"
	"github.com/tangiraiC/passl-dispatch/pkg/model"
	"github.com/tangiraiC/passl-dispatch/pkg/routing"
)

// Outcome reports how a Dispatch call concluded.
type Outcome struct {
	Accepted       bool
	WinnerDriverID string
	WaveIndex      int
}

// WaveDispatcher runs the broadcast protocol for one Job at a time (callers
// may run multiple Jobs concurrently; each gets its own per-job lock).
type WaveDispatcher struct {
	policy   Policy
	locks    LockManager
	notifier PushNotifier
	clock    clock.Clock
	oracle   routing.Oracle // optional; nil falls back to Euclidean wave bucketing
	chaining ChainingHook

	mu          sync.Mutex
	winners     map[string]string      // jobID -> accepted driverID
	acceptances map[string]chan string // jobID -> signal channel, buffered 1
}

// NewWaveDispatcher validates policy and wires the dispatcher's
// collaborators. oracle may be nil.
func NewWaveDispatcher(policy Policy, locks LockManager, notifier PushNotifier, clk clock.Clock, oracle routing.Oracle) (*WaveDispatcher, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &WaveDispatcher{
		policy:      policy,
		locks:       locks,
		notifier:    notifier,
		clock:       clk,
		oracle:      oracle,
		chaining:    DefaultChainingHook,
		winners:     make(map[string]string),
		acceptances: make(map[string]chan string),
	}, nil
}

// SetChainingHook installs a non-default ChainingHook.
func (d *WaveDispatcher) SetChainingHook(hook ChainingHook) {
	if hook == nil {
		hook = DefaultChainingHook
	}
	d.chaining = hook
}

func (d *WaveDispatcher) acceptanceChannel(jobID string) chan string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.acceptances[jobID]
	if !ok {
		ch = make(chan string, 1)
		d.acceptances[jobID] = ch
	}
	return ch
}

// Dispatch runs the five-wave broadcast protocol for job against drivers
// (§4.4.2). It returns as soon as a wave produces an acceptance, or
// ErrDispatchExhausted once all five waves have timed out.
func (d *WaveDispatcher) Dispatch(ctx context.Context, job model.Job, pickup model.Coordinate, drivers []model.Driver) (Outcome, error) {
	requiredCapacity := job.Size()
	if requiredCapacity <= 0 {
		requiredCapacity = d.policy.DefaultRequiredCapacity
	}

	waves, err := BuildWaves(ctx, pickup, drivers, requiredCapacity, d.policy, d.oracle)
	if err != nil {
		return Outcome{}, err
	}

	timeout := time.Duration(d.policy.WaveTimeoutSeconds * float64(time.Second))
	acceptCh := d.acceptanceChannel(job.ID)

	for w := 0; w < waveCount; w++ {
		driverIDs := idsOf(waves[w])
		if len(driverIDs) == 0 {
			continue
		}

		unlock := d.locks.Lock(job.ID)
		d.locks.SetActiveOffer(job.ID, driverIDs, timeout)
		unlock()

		_ = d.notifier.BroadcastOffer(ctx, driverIDs, job)

		select {
		case winnerID := <-acceptCh:
			return Outcome{Accepted: true, WinnerDriverID: winnerID, WaveIndex: w}, nil
		case <-time.After(timeout):
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}

		unlock = d.locks.Lock(job.ID)
		accepted := d.locks.IsAccepted(job.ID)
		unlock()
		if accepted {
			// A winner landed between the timer firing and this check;
			// wait for its signal (ResolveAcceptance sends it after
			// releasing the lock) rather than losing it.
			select {
			case winnerID := <-acceptCh:
				return Outcome{Accepted: true, WinnerDriverID: winnerID, WaveIndex: w}, nil
			case <-ctx.Done():
				return Outcome{}, ctx.Err()
			}
		}

		_ = d.notifier.RevokeOffer(ctx, driverIDs, job.ID)
	}

	return Outcome{}, fmt.Errorf("%w: job %s", ErrDispatchExhausted, job.ID)
}

// ResolveAcceptance is the inbound entry point a driver's acceptance call
// resolves to (§4.4.3). It implements the single-winner invariant: across
// all calls for a given jobID, at most one ever returns true.
func (d *WaveDispatcher) ResolveAcceptance(ctx context.Context, jobID, driverID string) bool {
	unlock := d.locks.Lock(jobID)
	won := d.locks.MarkAccepted(jobID, driverID)
	if !won {
		unlock()
		return false
	}

	activeDrivers := d.locks.GetActiveDrivers(jobID)
	unlock()

	d.mu.Lock()
	d.winners[jobID] = driverID
	d.mu.Unlock()

	losers := without(activeDrivers, driverID)
	if len(losers) > 0 {
		_ = d.notifier.RevokeOffer(ctx, losers, jobID)
	}

	select {
	case d.acceptanceChannel(jobID) <- driverID:
	default:
	}
	return true
}

// Winner returns the driver that won jobID's acceptance, if any.
func (d *WaveDispatcher) Winner(jobID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.winners[jobID]
	return id, ok
}

func idsOf(drivers []model.Driver) []string {
	if len(drivers) == 0 {
		return nil
	}
	ids := make([]string, len(drivers))
	for i, d := range drivers {
		ids[i] = d.ID
	}
	return ids
}

func without(ids []string, exclude string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}
