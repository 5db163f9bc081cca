package batching

import "fmt"

// Policy configures the clustering and selection behavior of the batching
// engine (§6.1 of SPEC_FULL.md).
type Policy struct {
	MaxBatchSize          int     `json:"max_batch_size,omitempty"`
	MaxClusterCandidates  int     `json:"max_cluster_candidates,omitempty"`
	MaxCandidatePairs     int     `json:"max_candidate_pairs,omitempty"`
	NearPickupTimeSec     float64 `json:"near_pickup_time_sec,omitempty"`
	EnableContinuousChain bool    `json:"enable_continuous_chaining,omitempty"`
	PairDetourCap         float64 `json:"pair_detour_cap,omitempty"`
	MultiDetourCap        float64 `json:"multi_detour_cap,omitempty"`
	BatchingSoftWaitSec   float64 `json:"batching_soft_wait_sec,omitempty"`
	BatchingHardWaitSec   float64 `json:"batching_hard_wait_sec,omitempty"`
	EnableRollingHorizon  bool    `json:"enable_rolling_horizon,omitempty"`
	MaxWaitTimeSeconds    float64 `json:"max_wait_time_seconds,omitempty"`
	PreferOlderOrders     bool    `json:"prefer_older_orders,omitempty"`
	AgeWeight             float64 `json:"age_weight,omitempty"`
}

// DefaultPolicy returns reasonable defaults for a single dispatch zone.
func DefaultPolicy() Policy {
	return Policy{
		MaxBatchSize:          3,
		MaxClusterCandidates:  12,
		MaxCandidatePairs:     200,
		NearPickupTimeSec:     0,
		EnableContinuousChain: false,
		PairDetourCap:         1.25,
		MultiDetourCap:        1.35,
		BatchingSoftWaitSec:   20,
		BatchingHardWaitSec:   90,
		EnableRollingHorizon:  true,
		MaxWaitTimeSeconds:    180,
		PreferOlderOrders:     true,
		AgeWeight:             0.1,
	}
}

// Validate checks the invariants enumerated in §6.1. A failure here is
// fatal (InvalidPolicy, §7) — it is a startup-time error, not a per-cycle
// one.
func (p Policy) Validate() error {
	if p.MaxBatchSize < 1 {
		return fmt.Errorf("%w: max_batch_size must be >= 1, got %d", ErrInvalidPolicy, p.MaxBatchSize)
	}
	if p.PairDetourCap < 1.0 {
		return fmt.Errorf("%w: pair_detour_cap must be >= 1.0, got %v", ErrInvalidPolicy, p.PairDetourCap)
	}
	if p.MultiDetourCap < 1.0 {
		return fmt.Errorf("%w: multi_detour_cap must be >= 1.0, got %v", ErrInvalidPolicy, p.MultiDetourCap)
	}
	if p.BatchingSoftWaitSec < 0 || p.BatchingHardWaitSec < 0 {
		return fmt.Errorf("%w: wait thresholds must be >= 0", ErrInvalidPolicy)
	}
	if p.BatchingHardWaitSec < p.BatchingSoftWaitSec {
		return fmt.Errorf("%w: batching_hard_wait_sec (%v) must be >= batching_soft_wait_sec (%v)",
			ErrInvalidPolicy, p.BatchingHardWaitSec, p.BatchingSoftWaitSec)
	}
	return nil
}
