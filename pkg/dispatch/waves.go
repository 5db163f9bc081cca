package dispatch

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/tangiraiC/passl-dispatch/pkg/model"
	"github.com/tangiraiC/passl-dispatch/pkg/routing"
)

// maxDriversPerWave bounds notification fanout within a single wave
// (§4.4.1).
const maxDriversPerWave = 5

// Waves is the fixed-size output of BuildWaves: five concentric driver
// buckets, nearest-metric-first within each bucket.
type Waves [waveCount][]model.Driver

// BuildWaves filters drivers to those eligible for requiredCapacity and
// buckets them into five concentric waves around pickup (§4.4.1). When
// oracle is non-nil, bucketing uses oracle travel time against
// policy.WaveETASeconds; otherwise it falls back to Euclidean
// degree-distance against policy.WaveRadiiDegrees. A driver beyond the
// fifth threshold is excluded entirely.
func BuildWaves(ctx context.Context, pickup model.Coordinate, drivers []model.Driver, requiredCapacity int, policy Policy, oracle routing.Oracle) (Waves, error) {
	eligible := filterEligibleDrivers(drivers, requiredCapacity)

	var waves Waves
	if len(eligible) == 0 {
		return waves, nil
	}

	if oracle != nil {
		return buildWavesByOracle(ctx, pickup, eligible, policy, oracle)
	}
	return buildWavesByEuclideanDistance(pickup, eligible, policy), nil
}

func filterEligibleDrivers(drivers []model.Driver, requiredCapacity int) []model.Driver {
	var eligible []model.Driver
	for _, d := range drivers {
		if d.Status != model.DriverAvailable {
			continue
		}
		if d.MaxCapacity < requiredCapacity {
			continue
		}
		eligible = append(eligible, d)
	}
	return eligible
}

func buildWavesByOracle(ctx context.Context, pickup model.Coordinate, eligible []model.Driver, policy Policy, oracle routing.Oracle) (Waves, error) {
	var waves Waves

	coords := make([]model.Coordinate, 0, len(eligible)+1)
	coords = append(coords, pickup)
	for _, d := range eligible {
		coords = append(coords, d.Location)
	}

	if err := oracle.Prefetch(ctx, coords); err != nil {
		return waves, fmt.Errorf("dispatch: wave prefetch: %w", err)
	}
	durations, err := oracle.Durations(ctx, coords)
	if err != nil {
		return waves, fmt.Errorf("dispatch: wave time matrix: %w", err)
	}

	etaOf := make([]float64, len(eligible))
	for i, d := range eligible {
		driverIdx := i + 1
		etaOf[i] = durations[driverIdx][0]
		wave := waveIndexFor(etaOf[i], policy.WaveETASeconds)
		if wave < 0 {
			continue
		}
		waves[wave] = append(waves[wave], d)
	}

	for w := range waves {
		byDriverID := make(map[string]float64, len(waves[w]))
		for i, d := range eligible {
			byDriverID[d.ID] = etaOf[i]
		}
		sort.SliceStable(waves[w], func(i, j int) bool {
			return byDriverID[waves[w][i].ID] < byDriverID[waves[w][j].ID]
		})
		waves[w] = capDrivers(waves[w], maxDriversPerWave)
	}
	return waves, nil
}

func buildWavesByEuclideanDistance(pickup model.Coordinate, eligible []model.Driver, policy Policy) Waves {
	var waves Waves

	distanceOf := func(d model.Driver) float64 {
		dLat := pickup.Lat - d.Location.Lat
		dLon := pickup.Lon - d.Location.Lon
		return math.Sqrt(dLat*dLat + dLon*dLon)
	}

	for _, d := range eligible {
		wave := waveIndexFor(distanceOf(d), policy.WaveRadiiDegrees)
		if wave < 0 {
			continue
		}
		waves[wave] = append(waves[wave], d)
	}

	for w := range waves {
		sort.SliceStable(waves[w], func(i, j int) bool {
			return distanceOf(waves[w][i]) < distanceOf(waves[w][j])
		})
		waves[w] = capDrivers(waves[w], maxDriversPerWave)
	}
	return waves
}

// waveIndexFor returns the index of the first threshold the metric falls
// within, or -1 if it exceeds every threshold.
func waveIndexFor(metric float64, thresholds [waveCount]float64) int {
	for i, t := range thresholds {
		if metric <= t {
			return i
		}
	}
	return -1
}

func capDrivers(drivers []model.Driver, maxN int) []model.Driver {
	if len(drivers) <= maxN {
		return drivers
	}
	return drivers[:maxN]
}
