// Package queue owns the Order lifecycle: RAW → BATCHING → READY → ASSIGNED
// (terminal: CANCELLED). It is the sole authority over Order.Status
// transitions (§4.2 of SPEC_FULL.md); the batching engine reads orders and
// returns Jobs for the queue to commit, but never mutates status itself.
package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/tangiraiC/passl-dispatch/pkg/model"
)

// Stage names the order bins whose entry time WaitSecondsIn tracks: RAW and
// BATCHING (READY holds Jobs, not Orders).
type Stage string

const (
	StageRaw      Stage = "RAW"
	StageBatching Stage = "BATCHING"
)

// Stats is a point-in-time snapshot of bin occupancy, useful for the
// terminal dashboard and for tests.
type Stats struct {
	RawCount      int
	BatchingCount int
	ReadyCount    int
	Now           time.Time
}

// OrderQueue is the in-memory order lifecycle manager. Every mutating
// operation below is a single atomic critical section guarded by one
// coarse mutex — the queue is not expected to be a concurrency bottleneck,
// mirroring this codebase's convention of one lock per stateful manager
// (e.g. the DLQ and circuit-breaker registries).
type OrderQueue struct {
	mu sync.Mutex

	orders      map[string]*model.Order // all known orders by id, including terminal ones
	rawIDs      []string                // arrival order within RAW
	batchingIDs []string                // arrival order within BATCHING
	readyJobs   []model.Job             // FIFO

	enteredRawAt      map[string]time.Time
	enteredBatchingAt map[string]time.Time
}

// New returns an empty OrderQueue.
func New() *OrderQueue {
	return &OrderQueue{
		orders:            make(map[string]*model.Order),
		enteredRawAt:      make(map[string]time.Time),
		enteredBatchingAt: make(map[string]time.Time),
	}
}

// EnqueueRaw adds a new order to the RAW bin. Idempotent on Order.ID: a
// second call with an id already present in any bin is a no-op, per §4.2.
func (q *OrderQueue) EnqueueRaw(order model.Order, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.orders[order.ID]; exists {
		return
	}

	order.Status = model.OrderRAW
	stored := order
	q.orders[order.ID] = &stored
	q.rawIDs = append(q.rawIDs, order.ID)
	q.enteredRawAt[order.ID] = now
}

// GetOrder returns the current snapshot of an order by id.
func (q *OrderQueue) GetOrder(orderID string) (model.Order, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	o, ok := q.orders[orderID]
	if !ok {
		return model.Order{}, false
	}
	return *o, true
}

// RawOrders returns the orders currently in RAW, in arrival order.
func (q *OrderQueue) RawOrders() []model.Order {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked(q.rawIDs)
}

// BatchingOrders returns the orders currently in BATCHING, in arrival order.
func (q *OrderQueue) BatchingOrders() []model.Order {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked(q.batchingIDs)
}

func (q *OrderQueue) snapshotLocked(ids []string) []model.Order {
	out := make([]model.Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := q.orders[id]; ok {
			out = append(out, *o)
		}
	}
	return out
}

// Stats returns a point-in-time occupancy snapshot.
func (q *OrderQueue) Stats(now time.Time) Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		RawCount:      len(q.rawIDs),
		BatchingCount: len(q.batchingIDs),
		ReadyCount:    len(q.readyJobs),
		Now:           now,
	}
}

// AdvanceToBatching moves eligible RAW orders into BATCHING (§4.2). An
// order is eligible if it has waited at least maxRawAge in RAW
// (force-by-age), or readyHorizon is zero, or its ReadyAt is within
// readyHorizon of now, or its ReadyAt is unknown. At most limit orders move
// per call (limit <= 0 means unbounded). Returns the moved orders in
// arrival order.
func (q *OrderQueue) AdvanceToBatching(now time.Time, readyHorizon, maxRawAge time.Duration, limit int) []model.Order {
	q.mu.Lock()
	defer q.mu.Unlock()

	var moved []model.Order
	remaining := make([]string, 0, len(q.rawIDs))

	for _, orderID := range q.rawIDs {
		if limit > 0 && len(moved) >= limit {
			remaining = append(remaining, orderID)
			continue
		}

		order, ok := q.orders[orderID]
		if !ok || order.Status != model.OrderRAW {
			continue
		}

		enteredAt := q.enteredRawAt[orderID]
		rawAge := now.Sub(enteredAt)
		forceByAge := rawAge >= maxRawAge

		readyByWindow := true
		if readyHorizon > 0 {
			if order.ReadyAt != nil {
				readyByWindow = !order.ReadyAt.After(now.Add(readyHorizon))
			}
		}

		if forceByAge || readyByWindow {
			order.Status = model.OrderBATCHING
			q.batchingIDs = append(q.batchingIDs, orderID)
			q.enteredBatchingAt[orderID] = now
			moved = append(moved, *order)
		} else {
			remaining = append(remaining, orderID)
		}
	}

	q.rawIDs = remaining
	return moved
}

// CommitJobs commits a BatchResult's jobs: every order id referenced by a
// job is removed from BATCHING and marked READY, and the jobs are appended
// to the READY FIFO. The caller must supply only jobs whose orders are all
// currently in BATCHING; a violation is reported as an error rather than a
// panic, per this codebase's error-handling convention, and partially
// applied jobs are rejected wholesale before any mutation occurs.
func (q *OrderQueue) CommitJobs(jobs []model.Job, now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	inBatching := make(map[string]bool, len(q.batchingIDs))
	for _, id := range q.batchingIDs {
		inBatching[id] = true
	}

	usedOrderIDs := make(map[string]bool)
	for _, job := range jobs {
		for _, orderID := range job.OrderIDs {
			if !inBatching[orderID] {
				return fmt.Errorf("queue: commit_jobs: order %q referenced by job %q is not in BATCHING", orderID, job.ID)
			}
			usedOrderIDs[orderID] = true
		}
	}

	remaining := make([]string, 0, len(q.batchingIDs))
	for _, id := range q.batchingIDs {
		if usedOrderIDs[id] {
			if o, ok := q.orders[id]; ok {
				o.Status = model.OrderREADY
			}
			delete(q.enteredBatchingAt, id)
			continue
		}
		remaining = append(remaining, id)
	}
	q.batchingIDs = remaining
	q.readyJobs = append(q.readyJobs, jobs...)
	return nil
}

// PopReady pops up to n jobs from the READY FIFO.
func (q *OrderQueue) PopReady(n int) []model.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n <= 0 || len(q.readyJobs) == 0 {
		return nil
	}
	if n > len(q.readyJobs) {
		n = len(q.readyJobs)
	}
	popped := append([]model.Job(nil), q.readyJobs[:n]...)
	q.readyJobs = q.readyJobs[n:]
	return popped
}

// ReadyDepth returns the number of jobs currently queued in READY.
func (q *OrderQueue) ReadyDepth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.readyJobs)
}

// Cancel removes an order from whichever bin holds it and marks it
// CANCELLED, dropping its timing records. If the order is already bound
// into a READY job, the job is left intact and is not marked; the queue
// has no operation that returns that job's other orders to RAW.
func (q *OrderQueue) Cancel(orderID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	order, ok := q.orders[orderID]
	if !ok {
		return
	}
	order.Status = model.OrderCANCELLED

	q.rawIDs = removeString(q.rawIDs, orderID)
	q.batchingIDs = removeString(q.batchingIDs, orderID)
	delete(q.enteredRawAt, orderID)
	delete(q.enteredBatchingAt, orderID)
}

// WaitSecondsIn returns how long an order has been sitting in the given
// stage, or (0, false) if it is not currently tracked there.
func (q *OrderQueue) WaitSecondsIn(stage Stage, orderID string, now time.Time) (float64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var t0 time.Time
	var ok bool
	switch stage {
	case StageRaw:
		t0, ok = q.enteredRawAt[orderID]
	case StageBatching:
		t0, ok = q.enteredBatchingAt[orderID]
	}
	if !ok {
		return 0, false
	}
	return now.Sub(t0).Seconds(), true
}

func removeString(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
