// Package batching implements the combinatorial batching engine (§4.3):
// clustering orders into candidate neighborhoods, searching each cluster
// for feasible stop sequences, and selecting a disjoint set of SINGLE and
// BATCH jobs via an insertion heuristic.
package batching

import (
	"context"
	"fmt"

	"github.com/tangiraiC/passl-dispatch/pkg/model"
	"github.com/tangiraiC/passl-dispatch/pkg/routing"
)

// Result is the output of a batching run over a set of candidate orders.
type Result struct {
	Jobs            []model.Job
	UnbatchedOrders []model.Order
}

// BatchOrders is the single entry point other packages should call for
// batching (§4.3's orchestrator rule: "engine is the only file other
// modules should call directly"). It does not mutate queue state — it
// only clusters, scores, and selects; the caller commits the resulting
// jobs.
//
// stopOracle resolves general stop-to-stop durations for feasibility
// evaluation. pickupOracle, if non-nil, is used only for near-pickup
// cluster merging; when nil, clustering falls back to exact PickupID/
// coordinate-bucket grouping.
func BatchOrders(ctx context.Context, orders []model.Order, policy Policy, stopOracle, pickupOracle routing.Oracle, orderAgeSeconds map[string]float64) (Result, error) {
	if err := policy.Validate(); err != nil {
		return Result{}, err
	}
	if len(orders) == 0 {
		return Result{}, nil
	}

	clusters, err := BuildClusters(ctx, orders, policy, pickupOracle)
	if err != nil {
		return Result{}, err
	}

	var jobs []model.Job
	usedOrderIDs := make(map[string]bool)

	for _, cluster := range clusters {
		if len(cluster.Orders) == 0 {
			continue
		}

		clusterOrders := make([]model.Order, 0, len(cluster.Orders))
		for _, o := range cluster.Orders {
			if !usedOrderIDs[o.ID] {
				clusterOrders = append(clusterOrders, o)
			}
		}
		if len(clusterOrders) == 0 {
			continue
		}

		clusterJobs, err := ScoreAndSelectJobs(ctx, clusterOrders, stopOracle, policy, orderAgeSeconds)
		if err != nil {
			return Result{}, fmt.Errorf("batching: cluster %q: %w", cluster.Key, err)
		}

		for _, j := range clusterJobs {
			for _, oid := range j.OrderIDs {
				usedOrderIDs[oid] = true
			}
		}
		jobs = append(jobs, clusterJobs...)
	}

	byID := make(map[string]model.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	var unbatched []model.Order
	for _, o := range orders {
		if !usedOrderIDs[o.ID] {
			unbatched = append(unbatched, byID[o.ID])
		}
	}

	return Result{Jobs: jobs, UnbatchedOrders: unbatched}, nil
}
