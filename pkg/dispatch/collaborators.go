package dispatch

import (
	"context"
	"time"

	"github.com/tangiraiC/passl-dispatch/pkg/model"
)

// PushNotifier delivers (and revokes) wave offers to drivers. Delivery is
// best-effort: a notification failure never blocks or fails a dispatch
// cycle (§6.3); WaveDispatcher discards the returned error.
type PushNotifier interface {
	BroadcastOffer(ctx context.Context, driverIDs []string, job model.Job) error
	RevokeOffer(ctx context.Context, driverIDs []string, jobID string) error
}

// LockManager is the race-resolution collaborator behind ResolveAcceptance
// (§6.3, §9's "distributed-lock collaborator as interface" note). Its
// methods other than Lock assume the caller already holds the per-jobID
// lock returned by Lock — they do no internal locking of their own, so
// calling them outside a held Lock races.
type LockManager interface {
	// Lock acquires the mutual-exclusion lock for key and returns a
	// function that releases it.
	Lock(key string) func()
	// SetActiveOffer records the current wave's offer and its expiry.
	SetActiveOffer(jobID string, driverIDs []string, ttl time.Duration)
	// IsAccepted reports whether a winner has already been recorded.
	IsAccepted(jobID string) bool
	// MarkAccepted records driverID as the winner if, and only if, the job
	// is not already accepted, the active offer has not expired, and
	// driverID is a member of it. Returns whether this call recorded the win.
	MarkAccepted(jobID, driverID string) bool
	// GetActiveDrivers returns the driver ids in the current active offer.
	GetActiveDrivers(jobID string) []string
}
