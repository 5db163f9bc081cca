package batching

import (
	"context"
	"fmt"
	"math"

	"github.com/tangiraiC/passl-dispatch/pkg/model"
	"github.com/tangiraiC/passl-dispatch/pkg/routing"
)

// FeasibilityResult is the output of feasibility evaluation for a candidate
// bundle: the best stop ordering found and its total travel time, or a
// reason why no feasible ordering exists.
type FeasibilityResult struct {
	IsFeasible        bool
	BestStops         []model.Stop
	BestTimeSeconds   float64
	ExploredSequences int
	Reason            string
}

// EvaluateBundleFeasibility computes the minimum-travel-time stop sequence
// for a bundle of 1-3 orders, subject to the precedence invariant that
// every order's pickup precedes its dropoff (§3, §4.3). Bundles larger
// than 3 orders are not supported here — see EvaluateInsertion for the
// incremental case the insertion heuristic uses instead.
func EvaluateBundleFeasibility(ctx context.Context, orders []model.Order, oracle routing.Oracle) (FeasibilityResult, error) {
	n := len(orders)
	if n == 0 {
		return FeasibilityResult{BestTimeSeconds: math.Inf(1), Reason: "empty bundle"}, nil
	}
	if n > 3 {
		return FeasibilityResult{BestTimeSeconds: math.Inf(1), Reason: "bundle size > 3 not supported"}, nil
	}

	stops := make([]model.Stop, 0, 2*n)
	for _, o := range orders {
		stops = append(stops,
			model.Stop{Type: model.StopPickup, OrderID: o.ID, Coord: o.Pickup, PickupID: o.PickupID},
			model.Stop{Type: model.StopDropoff, OrderID: o.ID, Coord: o.Dropoff, PickupID: o.PickupID},
		)
	}

	pickupIdx := make(map[string]int, n)
	dropoffIdx := make(map[string]int, n)
	coords := make([]model.Coordinate, len(stops))
	for idx, s := range stops {
		coords[idx] = s.Coord
		if s.Type == model.StopPickup {
			pickupIdx[s.OrderID] = idx
		} else {
			dropoffIdx[s.OrderID] = idx
		}
	}

	durations, err := oracle.Durations(ctx, coords)
	if err != nil {
		return FeasibilityResult{}, fmt.Errorf("batching: feasibility time matrix: %w", err)
	}
	if len(durations) != len(coords) {
		return FeasibilityResult{BestTimeSeconds: math.Inf(1), Reason: "invalid time matrix (row count)"}, nil
	}
	for _, row := range durations {
		if len(row) != len(coords) {
			return FeasibilityResult{BestTimeSeconds: math.Inf(1), Reason: "invalid time matrix (col count)"}, nil
		}
	}

	bestTime := math.Inf(1)
	var bestPerm []int
	explored := 0

	forEachPermutation(len(stops), func(perm []int) {
		explored++
		if !respectsPrecedence(perm, pickupIdx, dropoffIdx) {
			return
		}
		t := sequenceTimeSeconds(perm, durations)
		if t < bestTime {
			bestTime = t
			bestPerm = append([]int(nil), perm...)
		}
	})

	if bestPerm == nil {
		return FeasibilityResult{BestTimeSeconds: math.Inf(1), ExploredSequences: explored, Reason: "no feasible sequence"}, nil
	}

	bestStops := make([]model.Stop, len(bestPerm))
	for i, idx := range bestPerm {
		bestStops[i] = stops[idx]
	}
	return FeasibilityResult{IsFeasible: true, BestStops: bestStops, BestTimeSeconds: bestTime, ExploredSequences: explored}, nil
}

// BestSingleTimeSumSeconds sums each order's individual pickup->dropoff
// travel time. This is the baseline a batch's detour ratio is measured
// against: detourRatio = tBatch / tSingleSum.
func BestSingleTimeSumSeconds(ctx context.Context, orders []model.Order, oracle routing.Oracle) (float64, error) {
	if len(orders) == 0 {
		return 0, nil
	}

	points := make([]model.Coordinate, 0, 2*len(orders))
	pickupAt := make([]int, len(orders))
	dropoffAt := make([]int, len(orders))
	for i, o := range orders {
		pickupAt[i] = len(points)
		points = append(points, o.Pickup)
		dropoffAt[i] = len(points)
		points = append(points, o.Dropoff)
	}

	durations, err := oracle.Durations(ctx, points)
	if err != nil {
		return 0, fmt.Errorf("batching: single-time matrix: %w", err)
	}

	total := 0.0
	for i := range orders {
		total += durations[pickupAt[i]][dropoffAt[i]]
	}
	return total, nil
}

// EvaluateInsertion evaluates inserting newOrder's pickup and dropoff stops
// into an existing stop sequence, trying every precedence-respecting
// insertion point, and returns the best one found (§4.3's insertion
// heuristic inner loop).
func EvaluateInsertion(ctx context.Context, existingStops []model.Stop, newOrder model.Order, oracle routing.Oracle) (FeasibilityResult, error) {
	n := len(existingStops)
	newPickup := model.Stop{Type: model.StopPickup, OrderID: newOrder.ID, Coord: newOrder.Pickup, PickupID: newOrder.PickupID}
	newDropoff := model.Stop{Type: model.StopDropoff, OrderID: newOrder.ID, Coord: newOrder.Dropoff, PickupID: newOrder.PickupID}

	allStops := append(append([]model.Stop(nil), existingStops...), newPickup, newDropoff)
	coordIndex := make(map[model.Coordinate]int)
	var coords []model.Coordinate
	for _, s := range allStops {
		if _, ok := coordIndex[s.Coord]; !ok {
			coordIndex[s.Coord] = len(coords)
			coords = append(coords, s.Coord)
		}
	}

	durations, err := oracle.Durations(ctx, coords)
	if err != nil {
		return FeasibilityResult{}, fmt.Errorf("batching: insertion time matrix: %w", err)
	}

	sequenceTime := func(seq []model.Stop) float64 {
		total := 0.0
		for i := 0; i+1 < len(seq); i++ {
			total += durations[coordIndex[seq[i].Coord]][coordIndex[seq[i+1].Coord]]
		}
		return total
	}

	bestTime := math.Inf(1)
	var bestSeq []model.Stop
	explored := 0

	for i := 0; i <= n; i++ {
		for j := i; j <= n; j++ {
			explored++
			seq := make([]model.Stop, 0, n+2)
			seq = append(seq, existingStops[:i]...)
			seq = append(seq, newPickup)
			seq = append(seq, existingStops[i:j]...)
			seq = append(seq, newDropoff)
			seq = append(seq, existingStops[j:]...)

			t := sequenceTime(seq)
			if t < bestTime {
				bestTime = t
				bestSeq = seq
			}
		}
	}

	if bestSeq == nil {
		return FeasibilityResult{BestTimeSeconds: math.Inf(1), ExploredSequences: explored, Reason: "no feasible sequence"}, nil
	}
	return FeasibilityResult{IsFeasible: true, BestStops: bestSeq, BestTimeSeconds: bestTime, ExploredSequences: explored}, nil
}

func respectsPrecedence(perm []int, pickupIdx, dropoffIdx map[string]int) bool {
	pos := make(map[int]int, len(perm))
	for i, stopIdx := range perm {
		pos[stopIdx] = i
	}
	for orderID, pIdx := range pickupIdx {
		if pos[pIdx] > pos[dropoffIdx[orderID]] {
			return false
		}
	}
	return true
}

func sequenceTimeSeconds(perm []int, durations [][]float64) float64 {
	total := 0.0
	for i := 0; i+1 < len(perm); i++ {
		total += durations[perm[i]][perm[i+1]]
	}
	return total
}

// forEachPermutation calls fn once for every permutation of [0, n), via
// Heap's algorithm. n is always <= 6 here (at most 3 orders, 2 stops
// each), so the 720-permutation ceiling is cheap.
func forEachPermutation(n int, fn func(perm []int)) {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	c := make([]int, n)
	fn(perm)
	i := 0
	for i < n {
		if c[i] < i {
			if i%2 == 0 {
				perm[0], perm[i] = perm[i], perm[0]
			} else {
				perm[c[i]], perm[i] = perm[i], perm[c[i]]
			}
			fn(perm)
			c[i]++
			i = 0
		} else {
			c[i] = 0
			i++
		}
	}
}
