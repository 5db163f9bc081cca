package batching

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangiraiC/passl-dispatch/pkg/model"
	"github.com/tangiraiC/passl-dispatch/pkg/routing"
)

func order(id string, pickup, dropoff model.Coordinate, age time.Duration, pickupID string) model.Order {
	return model.Order{
		ID:        id,
		Pickup:    pickup,
		Dropoff:   dropoff,
		PickupID:  pickupID,
		CreatedAt: time.Now().Add(-age),
	}
}

func ages(orders []model.Order, now time.Time) map[string]float64 {
	out := make(map[string]float64, len(orders))
	for _, o := range orders {
		out[o.ID] = o.Age(now).Seconds()
	}
	return out
}

// two nearby orders sharing a pickup should batch into one BATCH job (property 1-4).
func TestBatchOrders_BatchesTwoNearbyOrdersSamePickup(t *testing.T) {
	oracle, err := routing.NewHaversineOracle(8.3, nil)
	require.NoError(t, err)

	pickup := model.Coordinate{Lat: -17.8252, Lon: 31.0335}
	orders := []model.Order{
		order("o1", pickup, model.Coordinate{Lat: -17.8260, Lon: 31.0340}, time.Minute, "merchantA"),
		order("o2", pickup, model.Coordinate{Lat: -17.8262, Lon: 31.0342}, time.Minute, "merchantA"),
	}

	policy := DefaultPolicy()
	policy.EnableRollingHorizon = false

	result, err := BatchOrders(context.Background(), orders, policy, oracle, nil, ages(orders, time.Now()))
	require.NoError(t, err)

	require.Len(t, result.Jobs, 1)
	job := result.Jobs[0]
	assert.Equal(t, model.JobBatch, job.Type)
	assert.ElementsMatch(t, []string{"o1", "o2"}, job.OrderIDs)
	assert.LessOrEqual(t, job.DetourFactor, policy.PairDetourCap)

	// Property 1: pickup precedes dropoff for every order in the job.
	assertPrecedence(t, job)
	assert.Empty(t, result.UnbatchedOrders)
}

// two far-apart orders should not batch together: each becomes its own SINGLE job.
func TestBatchOrders_DoesNotBatchFarApartOrders(t *testing.T) {
	oracle, err := routing.NewHaversineOracle(8.3, nil)
	require.NoError(t, err)

	orders := []model.Order{
		order("o1", model.Coordinate{Lat: -17.82, Lon: 31.03}, model.Coordinate{Lat: -17.83, Lon: 31.04}, time.Minute, ""),
		order("o2", model.Coordinate{Lat: -18.50, Lon: 32.50}, model.Coordinate{Lat: -18.55, Lon: 32.55}, time.Minute, ""),
	}

	policy := DefaultPolicy()
	policy.EnableRollingHorizon = false

	result, err := BatchOrders(context.Background(), orders, policy, oracle, nil, ages(orders, time.Now()))
	require.NoError(t, err)

	require.Len(t, result.Jobs, 2)
	for _, job := range result.Jobs {
		assert.Equal(t, model.JobSingle, job.Type)
		assert.Len(t, job.OrderIDs, 1)
	}
}

// property 2: a bundle never exceeds MaxBatchSize.
func TestBatchOrders_NeverExceedsMaxBatchSize(t *testing.T) {
	oracle, err := routing.NewHaversineOracle(8.3, nil)
	require.NoError(t, err)

	pickup := model.Coordinate{Lat: -17.8252, Lon: 31.0335}
	var orders []model.Order
	for i := 0; i < 6; i++ {
		orders = append(orders, order(
			fmt.Sprintf("order%d", i),
			pickup,
			model.Coordinate{Lat: -17.8252 + float64(i)*0.0005, Lon: 31.0335 + float64(i)*0.0005},
			time.Minute,
			"merchantA",
		))
	}

	policy := DefaultPolicy()
	policy.EnableRollingHorizon = false

	result, err := BatchOrders(context.Background(), orders, policy, oracle, nil, ages(orders, time.Now()))
	require.NoError(t, err)

	for _, job := range result.Jobs {
		assert.LessOrEqual(t, job.Size(), policy.MaxBatchSize)
	}
}

// property 4 & 5: jobs from one call never share an order id, and every
// input order appears exactly once across jobs+unbatched.
func TestBatchOrders_PartitionsOrdersDisjointly(t *testing.T) {
	oracle, err := routing.NewHaversineOracle(8.3, nil)
	require.NoError(t, err)

	var orders []model.Order
	base := model.Coordinate{Lat: -17.8252, Lon: 31.0335}
	for i := 0; i < 8; i++ {
		orders = append(orders, order(
			fmt.Sprintf("order%d", i),
			model.Coordinate{Lat: base.Lat + float64(i)*0.01, Lon: base.Lon + float64(i)*0.01},
			model.Coordinate{Lat: base.Lat + float64(i)*0.01 + 0.01, Lon: base.Lon + float64(i)*0.01 + 0.01},
			time.Minute,
			"",
		))
	}

	policy := DefaultPolicy()
	policy.EnableRollingHorizon = false

	result, err := BatchOrders(context.Background(), orders, policy, oracle, nil, ages(orders, time.Now()))
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, job := range result.Jobs {
		for _, id := range job.OrderIDs {
			seen[id]++
		}
	}
	for _, o := range result.UnbatchedOrders {
		seen[o.ID]++
	}
	for _, o := range orders {
		assert.Equal(t, 1, seen[o.ID], "order %s must appear exactly once", o.ID)
	}
}

// property 8: a young order is held back (not emitted as SINGLE) when the
// rolling horizon is enabled and it hasn't aged past MaxWaitTimeSeconds.
func TestBatchOrders_RollingHorizonHoldsBackYoungSingleOrders(t *testing.T) {
	oracle, err := routing.NewHaversineOracle(8.3, nil)
	require.NoError(t, err)

	orders := []model.Order{
		order("o1", model.Coordinate{Lat: -17.82, Lon: 31.03}, model.Coordinate{Lat: -17.90, Lon: 31.10}, 5*time.Second, ""),
	}

	policy := DefaultPolicy()
	policy.EnableRollingHorizon = true
	policy.MaxWaitTimeSeconds = 180

	result, err := BatchOrders(context.Background(), orders, policy, oracle, nil, ages(orders, time.Now()))
	require.NoError(t, err)

	assert.Empty(t, result.Jobs)
	require.Len(t, result.UnbatchedOrders, 1, "order stays uncommitted by the engine; caller leaves it in BATCHING")
	assert.Equal(t, "o1", result.UnbatchedOrders[0].ID)
}

// once an order ages past MaxWaitTimeSeconds, it is forced out as a SINGLE job.
func TestBatchOrders_RollingHorizonForcesAgedSingleOrders(t *testing.T) {
	oracle, err := routing.NewHaversineOracle(8.3, nil)
	require.NoError(t, err)

	orders := []model.Order{
		order("o1", model.Coordinate{Lat: -17.82, Lon: 31.03}, model.Coordinate{Lat: -17.90, Lon: 31.10}, 5*time.Minute, ""),
	}

	policy := DefaultPolicy()
	policy.EnableRollingHorizon = true
	policy.MaxWaitTimeSeconds = 180

	result, err := BatchOrders(context.Background(), orders, policy, oracle, nil, ages(orders, time.Now()))
	require.NoError(t, err)

	require.Len(t, result.Jobs, 1)
	assert.Equal(t, model.JobSingle, result.Jobs[0].Type)
}

func TestBatchOrders_EmptyPoolReturnsEmptyResult(t *testing.T) {
	oracle, err := routing.NewHaversineOracle(8.3, nil)
	require.NoError(t, err)

	result, err := BatchOrders(context.Background(), nil, DefaultPolicy(), oracle, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Jobs)
	assert.Empty(t, result.UnbatchedOrders)
}

func TestBatchOrders_RejectsInvalidPolicy(t *testing.T) {
	oracle, err := routing.NewHaversineOracle(8.3, nil)
	require.NoError(t, err)

	policy := DefaultPolicy()
	policy.MaxBatchSize = 0

	_, err = BatchOrders(context.Background(), []model.Order{order("o1", model.Coordinate{}, model.Coordinate{}, 0, "")}, policy, oracle, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func assertPrecedence(t *testing.T, job model.Job) {
	t.Helper()
	pos := make(map[string]int)
	for i, s := range job.Stops {
		key := string(s.Type) + ":" + s.OrderID
		pos[key] = i
	}
	for _, oid := range job.OrderIDs {
		assert.Less(t, pos["PICKUP:"+oid], pos["DROPOFF:"+oid])
	}
}
