// Package routing adapts a bulk travel-time lookup ("time matrix") into the
// pure oracle the batching engine and wave dispatcher query: §4.1 of
// SPEC_FULL.md. It never mutates domain entities and never makes policy
// decisions — it is a cache-backed function of coordinates.
package routing

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/tangiraiC/passl-dispatch/pkg/model"
)

// Oracle is the contract the batching engine and wave dispatcher depend on.
// Durations returns an N×N matrix of travel-time seconds between each pair
// of coords, in the same order as the input; an unroutable pair is +Inf.
// Prefetch primes the internal cache so later Durations calls covering the
// same coordinates are served from memory.
type Oracle interface {
	Durations(ctx context.Context, coords []model.Coordinate) ([][]float64, error)
	Prefetch(ctx context.Context, coords []model.Coordinate) error
}

// pairKey identifies an unordered pair of coordinates in the cache. Two
// coordinates hash to the same key regardless of argument order, which is
// what makes the oracle commutative per §4.1.
type pairKey struct {
	a, b model.Coordinate
}

func makePairKey(a, b model.Coordinate) pairKey {
	if a.Lat > b.Lat || (a.Lat == b.Lat && a.Lon > b.Lon) {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// CachePersister optionally backs the in-memory duration cache with
// durable storage so it survives across simulation runs (§4.6). A nil
// persister leaves the cache process-local, which is the default and
// matches §4.1's "lifetime-bounded by the process" baseline behavior.
type CachePersister interface {
	Load() (map[string]float64, error)
	Save(map[string]float64) error
}

// HaversineOracle is the default concrete Oracle: it estimates travel time
// from great-circle distance at a configured average speed. It is a stand-in
// for a real routing service and is deliberately swappable behind the Oracle
// interface.
type HaversineOracle struct {
	mu           sync.RWMutex
	cache        map[pairKey]float64
	metersPerSec float64
	persister    CachePersister
}

// NewHaversineOracle builds an oracle that converts distance to duration at
// the given average speed (meters/second). speedMetersPerSec <= 0 defaults
// to 8.3 m/s (~30 km/h), a reasonable urban courier average.
func NewHaversineOracle(speedMetersPerSec float64, persister CachePersister) (*HaversineOracle, error) {
	if speedMetersPerSec <= 0 {
		speedMetersPerSec = 8.3
	}
	o := &HaversineOracle{
		cache:        make(map[pairKey]float64),
		metersPerSec: speedMetersPerSec,
		persister:    persister,
	}
	if persister != nil {
		saved, err := persister.Load()
		if err != nil {
			return nil, fmt.Errorf("routing: load cache: %w", err)
		}
		for k, v := range saved {
			pk, err := decodeCacheKey(k)
			if err != nil {
				continue
			}
			o.cache[pk] = v
		}
	}
	return o, nil
}

// Durations implements Oracle. Any coordinate not already cached triggers a
// transparent fetch (here, a haversine computation) that is merged into the
// cache before returning.
func (o *HaversineOracle) Durations(ctx context.Context, coords []model.Coordinate) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := o.Prefetch(ctx, coords); err != nil {
		return nil, err
	}

	n := len(coords)
	out := make([][]float64, n)
	o.mu.RLock()
	defer o.mu.RUnlock()
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				out[i][j] = 0
				continue
			}
			out[i][j] = o.cache[makePairKey(coords[i], coords[j])]
		}
	}
	return out, nil
}

// Prefetch loads the full square matrix for coords into the cache. Queries
// for coordinate sets already fully cached are a no-op.
func (o *HaversineOracle) Prefetch(ctx context.Context, coords []model.Coordinate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	for i := 0; i < len(coords); i++ {
		for j := i + 1; j < len(coords); j++ {
			key := makePairKey(coords[i], coords[j])
			if _, ok := o.cache[key]; ok {
				continue
			}
			o.cache[key] = o.estimateSeconds(coords[i], coords[j])
		}
	}

	if o.persister != nil {
		snapshot := make(map[string]float64, len(o.cache))
		for k, v := range o.cache {
			snapshot[encodeCacheKey(k)] = v
		}
		if err := o.persister.Save(snapshot); err != nil {
			return fmt.Errorf("routing: persist cache: %w", err)
		}
	}
	return nil
}

// estimateSeconds computes a non-negative travel-time estimate in seconds
// between two points via the haversine great-circle distance.
func (o *HaversineOracle) estimateSeconds(a, b model.Coordinate) float64 {
	const earthRadiusMeters = 6371000.0
	lat1, lat2 := degToRad(a.Lat), degToRad(b.Lat)
	dLat := degToRad(b.Lat - a.Lat)
	dLon := degToRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	meters := earthRadiusMeters * c

	seconds := meters / o.metersPerSec
	if seconds < 0 {
		return 0
	}
	return seconds
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func encodeCacheKey(k pairKey) string {
	return fmt.Sprintf("%.6f,%.6f|%.6f,%.6f", k.a.Lat, k.a.Lon, k.b.Lat, k.b.Lon)
}

func decodeCacheKey(s string) (pairKey, error) {
	var k pairKey
	_, err := fmt.Sscanf(s, "%f,%f|%f,%f", &k.a.Lat, &k.a.Lon, &k.b.Lat, &k.b.Lon)
	if err != nil {
		return pairKey{}, fmt.Errorf("routing: decode cache key %q: %w", s, err)
	}
	return k, nil
}
