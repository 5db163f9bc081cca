package dispatch

import (
	"sync"
	"time"

	"github.com/tangiraiC/passl-dispatch/pkg/clock"
)

// jobOffer holds one Job's current wave offer and acceptance outcome. Its
// mutex is the lock handed out by inMemoryLockManager.Lock.
type jobOffer struct {
	mu        sync.Mutex
	driverIDs []string
	expiresAt time.Time
	accepted  bool
	winnerID  string
}

// inMemoryLockManager is the single-process LockManager: a per-jobID mutex
// registry. Grounded on this codebase's get-or-create-under-lock pattern
// (the circuit-breaker registry keeps one breaker per target behind a
// manager-level RWMutex; here it's one offer per job). A distributed-lease
// implementation could replace this behind the same interface without
// touching WaveDispatcher (§9).
type inMemoryLockManager struct {
	mu     sync.RWMutex
	offers map[string]*jobOffer
	clock  clock.Clock
}

// NewInMemoryLockManager returns a LockManager backed by process memory.
func NewInMemoryLockManager(clk clock.Clock) *inMemoryLockManager {
	return &inMemoryLockManager{
		offers: make(map[string]*jobOffer),
		clock:  clk,
	}
}

func (m *inMemoryLockManager) getOrCreate(jobID string) *jobOffer {
	m.mu.RLock()
	o, ok := m.offers[jobID]
	m.mu.RUnlock()
	if ok {
		return o
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok = m.offers[jobID]
	if !ok {
		o = &jobOffer{}
		m.offers[jobID] = o
	}
	return o
}

// Lock acquires the per-job mutex and returns the matching unlock func.
func (m *inMemoryLockManager) Lock(jobID string) func() {
	o := m.getOrCreate(jobID)
	o.mu.Lock()
	return o.mu.Unlock
}

// SetActiveOffer records the active offer. Callers invoke this while
// holding Lock(jobID) so it never races a concurrent ResolveAcceptance.
func (m *inMemoryLockManager) SetActiveOffer(jobID string, driverIDs []string, ttl time.Duration) {
	o := m.getOrCreate(jobID)
	o.driverIDs = append([]string(nil), driverIDs...)
	o.expiresAt = m.clock.Now().Add(ttl)
}

// IsAccepted reports whether the job already has a recorded winner.
func (m *inMemoryLockManager) IsAccepted(jobID string) bool {
	return m.getOrCreate(jobID).accepted
}

// MarkAccepted implements the single-winner invariant (§4.4.3): it accepts
// driverID only if the job has no winner yet, the current active offer has
// not expired, and driverID belongs to that offer.
func (m *inMemoryLockManager) MarkAccepted(jobID, driverID string) bool {
	o := m.getOrCreate(jobID)
	if o.accepted {
		return false
	}
	if !o.expiresAt.IsZero() && m.clock.Now().After(o.expiresAt) {
		return false
	}

	member := false
	for _, d := range o.driverIDs {
		if d == driverID {
			member = true
			break
		}
	}
	if !member {
		return false
	}

	o.accepted = true
	o.winnerID = driverID
	return true
}

// GetActiveDrivers returns a copy of the current active offer's driver ids.
func (m *inMemoryLockManager) GetActiveDrivers(jobID string) []string {
	o := m.getOrCreate(jobID)
	return append([]string(nil), o.driverIDs...)
}
