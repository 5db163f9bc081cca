package batching

import (
	"context"
	"fmt"
	"sort"

	"github.com/tangiraiC/passl-dispatch/pkg/model"
	"github.com/tangiraiC/passl-dispatch/pkg/routing"
)

// Cluster groups orders eligible to be considered together for batching.
// Clustering never scores routes; it only forms candidate neighborhoods
// (§4.3).
type Cluster struct {
	Key    string
	Orders []model.Order
}

// BuildClusters partitions orders into clusters per §4.3's strategy:
//  1. If continuous chaining is enabled, bypass spatial partitioning
//     entirely — a single global pool lets the insertion heuristic reject
//     infeasible combinations on its own.
//  2. Otherwise group by PickupID (hard grouping) when present, and bucket
//     orders without a PickupID by rounded pickup coordinate.
//  3. Optionally merge coordinate-based clusters whose representative
//     pickups are mutually reachable within NearPickupTimeSec, using a
//     pickup-to-pickup oracle.
//
// Every cluster is capped to policy.MaxClusterCandidates, oldest orders
// first, to bound the combinatorics downstream.
func BuildClusters(ctx context.Context, orders []model.Order, policy Policy, pickupOracle routing.Oracle) ([]Cluster, error) {
	if len(orders) == 0 {
		return nil, nil
	}

	if policy.EnableContinuousChain {
		return []Cluster{{Key: "global_chaining_pool", Orders: append([]model.Order(nil), orders...)}}, nil
	}

	byPickupID := make(map[string][]model.Order)
	var coordBucket []model.Order
	for _, o := range orders {
		if o.PickupID != "" {
			byPickupID[o.PickupID] = append(byPickupID[o.PickupID], o)
		} else {
			coordBucket = append(coordBucket, o)
		}
	}

	var clusters []Cluster

	pickupIDs := make([]string, 0, len(byPickupID))
	for pid := range byPickupID {
		pickupIDs = append(pickupIDs, pid)
	}
	sort.Strings(pickupIDs)
	for _, pid := range pickupIDs {
		group := sortedByAge(byPickupID[pid])
		clusters = append(clusters, Cluster{Key: "pickup_id:" + pid, Orders: cap_(group, policy.MaxClusterCandidates)})
	}

	coordClusters := bucketByPickupCoord(coordBucket)
	coordKeys := make([]string, 0, len(coordClusters))
	for k := range coordClusters {
		coordKeys = append(coordKeys, k)
	}
	sort.Strings(coordKeys)
	for _, key := range coordKeys {
		group := sortedByAge(coordClusters[key])
		clusters = append(clusters, Cluster{Key: "pickup_coord:" + key, Orders: cap_(group, policy.MaxClusterCandidates)})
	}

	if pickupOracle != nil && policy.NearPickupTimeSec > 0 {
		merged, err := mergeNearPickupClusters(ctx, clusters, pickupOracle, policy.NearPickupTimeSec, policy.MaxClusterCandidates)
		if err != nil {
			return nil, err
		}
		clusters = merged
	}

	return clusters, nil
}

func cap_(items []model.Order, maxN int) []model.Order {
	if maxN <= 0 || len(items) <= maxN {
		return items
	}
	return items[:maxN]
}

func sortedByAge(orders []model.Order) []model.Order {
	out := append([]model.Order(nil), orders...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// bucketByPickupCoord groups orders without a PickupID by rounded pickup
// coordinate (4 decimal places, ~11m of latitude precision), enough to
// group orders originating from "the same place" without a merchant id.
func bucketByPickupCoord(orders []model.Order) map[string][]model.Order {
	const precision = 4
	buckets := make(map[string][]model.Order)
	for _, o := range orders {
		key := fmt.Sprintf("%.*f:%.*f", precision, o.Pickup.Lat, precision, o.Pickup.Lon)
		buckets[key] = append(buckets[key], o)
	}
	return buckets
}

// mergeNearPickupClusters unions coordinate-based clusters whose
// representative pickups (the first order's pickup, after age-sorting) are
// mutually reachable within nearPickupTimeSec, using a union-find over
// cluster indices.
func mergeNearPickupClusters(ctx context.Context, clusters []Cluster, pickupOracle routing.Oracle, nearPickupTimeSec float64, maxClusterCandidates int) ([]Cluster, error) {
	if len(clusters) <= 1 {
		return clusters, nil
	}

	reps := make([]model.Coordinate, len(clusters))
	for i, c := range clusters {
		if len(c.Orders) > 0 {
			reps[i] = c.Orders[0].Pickup
		}
	}

	durations, err := pickupOracle.Durations(ctx, reps)
	if err != nil {
		return nil, fmt.Errorf("batching: pickup time matrix: %w", err)
	}

	n := len(clusters)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if minFloat(durations[i][j], durations[j][i]) <= nearPickupTimeSec {
				union(i, j)
			}
		}
	}

	mergedByRoot := make(map[int][]model.Order)
	roots := make([]int, 0, n)
	for i, c := range clusters {
		r := find(i)
		if _, seen := mergedByRoot[r]; !seen {
			roots = append(roots, r)
		}
		mergedByRoot[r] = append(mergedByRoot[r], c.Orders...)
	}
	sort.Ints(roots)

	out := make([]Cluster, 0, len(roots))
	for _, r := range roots {
		group := sortedByAge(mergedByRoot[r])
		out = append(out, Cluster{Key: fmt.Sprintf("merge:%d", r), Orders: cap_(group, maxClusterCandidates)})
	}
	return out, nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
