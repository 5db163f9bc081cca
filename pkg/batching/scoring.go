package batching

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/tangiraiC/passl-dispatch/pkg/model"
	"github.com/tangiraiC/passl-dispatch/pkg/routing"
)

// ScoreAndSelectJobs runs the insertion-heuristic selection strategy over a
// set of orders already narrowed to one cluster (§4.3):
//
//  1. Seed a new Job from the oldest remaining unbatched order when
//     PreferOlderOrders is set, otherwise from the first in input order.
//  2. While the job is under MaxBatchSize, test inserting each remaining
//     order and keep the one giving the best incremental savings within
//     the applicable detour cap.
//  3. Repeat until every order has been placed into a Job.
//
// Singleton jobs held back by the rolling horizon (too young, waiting for
// a batching partner) are simply omitted from the result; the caller is
// expected to leave those orders in the BATCHING pool for a later cycle.
func ScoreAndSelectJobs(ctx context.Context, orders []model.Order, oracle routing.Oracle, policy Policy, orderAgeSeconds map[string]float64) ([]model.Job, error) {
	if len(orders) == 0 {
		return nil, nil
	}
	if orderAgeSeconds == nil {
		orderAgeSeconds = map[string]float64{}
	}

	unbatched := append([]model.Order(nil), orders...)
	var jobs []model.Job

	for len(unbatched) > 0 {
		if policy.PreferOlderOrders {
			sort.SliceStable(unbatched, func(i, j int) bool {
				return orderAgeSeconds[unbatched[i].ID] > orderAgeSeconds[unbatched[j].ID]
			})
		}

		seed := unbatched[0]
		unbatched = unbatched[1:]
		currentOrders := []model.Order{seed}
		currentStops := []model.Stop{
			{Type: model.StopPickup, OrderID: seed.ID, Coord: seed.Pickup, PickupID: seed.PickupID},
			{Type: model.StopDropoff, OrderID: seed.ID, Coord: seed.Dropoff, PickupID: seed.PickupID},
		}

		currentSingleSum, err := BestSingleTimeSumSeconds(ctx, currentOrders, oracle)
		if err != nil {
			return nil, err
		}
		currentBatchTime := currentSingleSum

		for len(currentOrders) < policy.MaxBatchSize && len(unbatched) > 0 {
			type candidateResult struct {
				order        model.Order
				insertion    FeasibilityResult
				newSingleSum float64
			}

			var best *candidateResult
			var bestGain float64

			for _, candidate := range unbatched {
				insertion, err := EvaluateInsertion(ctx, currentStops, candidate, oracle)
				if err != nil {
					return nil, err
				}
				if !insertion.IsFeasible {
					continue
				}

				candidateSingleSum, err := BestSingleTimeSumSeconds(ctx, []model.Order{candidate}, oracle)
				if err != nil {
					return nil, err
				}
				newSingleSum := currentSingleSum + candidateSingleSum

				detour := math.Inf(1)
				if newSingleSum > 0 {
					detour = insertion.BestTimeSeconds / newSingleSum
				}

				detourCap := policy.MultiDetourCap
				if len(currentOrders)+1 == 2 {
					detourCap = policy.PairDetourCap
				}
				if detour > detourCap {
					continue
				}

				savings := newSingleSum - insertion.BestTimeSeconds
				score := savings
				if policy.PreferOlderOrders {
					score += policy.AgeWeight * orderAgeSeconds[candidate.ID]
				}

				baselineSavings := currentSingleSum - currentBatchTime
				gain := score - baselineSavings

				better := best == nil || gain > bestGain
				if !better && gain == bestGain {
					// Equal gains: prefer the older order, then the smaller id.
					candAge, bestAge := orderAgeSeconds[candidate.ID], orderAgeSeconds[best.order.ID]
					better = candAge > bestAge || (candAge == bestAge && candidate.ID < best.order.ID)
				}
				if gain > 0 && better {
					bestGain = gain
					best = &candidateResult{order: candidate, insertion: insertion, newSingleSum: newSingleSum}
				}
			}

			if best == nil {
				break
			}
			currentOrders = append(currentOrders, best.order)
			unbatched = removeOrder(unbatched, best.order.ID)
			currentStops = best.insertion.BestStops
			currentBatchTime = best.insertion.BestTimeSeconds
			currentSingleSum = best.newSingleSum
		}

		if len(currentOrders) == 1 {
			age := orderAgeSeconds[seed.ID]
			if policy.EnableRollingHorizon && age < policy.MaxWaitTimeSeconds {
				continue
			}
			job := singleJob(seed)
			job.ETASeconds = currentBatchTime
			job.DetourFactor = 1.0
			jobs = append(jobs, job)
			continue
		}

		orderIDs := make([]string, len(currentOrders))
		for i, o := range currentOrders {
			orderIDs[i] = o.ID
		}
		detourFactor := 1.0
		if currentSingleSum > 0 {
			detourFactor = currentBatchTime / currentSingleSum
		}
		jobs = append(jobs, model.Job{
			ID:             newJobID(orderIDs),
			Type:           model.JobBatch,
			Stops:          currentStops,
			OrderIDs:       orderIDs,
			ETASeconds:     currentBatchTime,
			DetourFactor:   detourFactor,
			SavingsSeconds: currentSingleSum - currentBatchTime,
		})
	}

	return jobs, nil
}

func singleJob(order model.Order) model.Job {
	return model.Job{
		ID:   newJobID([]string{order.ID}),
		Type: model.JobSingle,
		Stops: []model.Stop{
			{Type: model.StopPickup, OrderID: order.ID, Coord: order.Pickup, PickupID: order.PickupID},
			{Type: model.StopDropoff, OrderID: order.ID, Coord: order.Dropoff, PickupID: order.PickupID},
		},
		OrderIDs: []string{order.ID},
	}
}

func removeOrder(orders []model.Order, id string) []model.Order {
	out := orders[:0]
	for _, o := range orders {
		if o.ID != id {
			out = append(out, o)
		}
	}
	return out
}

// newJobID derives a stable id from the bundled order ids, so the same
// bundle always reproduces the same job id across a retried cycle.
func newJobID(orderIDs []string) string {
	return fmt.Sprintf("job:%s", joinIDs(orderIDs))
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += "+"
		}
		out += id
	}
	return out
}
