package notify

import (
	"sync"
	"time"
)

// tokenBucket throttles outbound webhook calls so a dispatch cycle with
// many simultaneous wave broadcasts can't flood a single downstream
// endpoint. One bucket per WebhookNotifier (one webhook destination),
// unlike a per-client limiter, since there's only one client here.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

func newTokenBucket(maxTokens int, refillInterval time.Duration) *tokenBucket {
	if maxTokens <= 0 || refillInterval <= 0 {
		return &tokenBucket{tokens: 1, maxTokens: 1, refillRate: time.Second, lastRefill: time.Now()}
	}
	return &tokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillInterval,
		lastRefill: time.Now(),
	}
}

// allow reports whether a call may proceed now, refilling tokens lazily
// based on elapsed wall-clock time since the last refill.
func (tb *tokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(tb.lastRefill); elapsed >= tb.refillRate {
		tb.tokens += int(elapsed / tb.refillRate)
		if tb.tokens > tb.maxTokens {
			tb.tokens = tb.maxTokens
		}
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}
