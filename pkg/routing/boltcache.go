package routing

import (
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	bolt "go.etcd.io/bbolt"
)

// boltBucketDurations is the single bucket holding the serialized duration
// cache. One key ("matrix") holds the whole snapshot: the cache is small
// enough (coordinate pairs for one dispatch zone) that per-pair keys would
// only add bbolt transaction overhead without a real benefit.
var boltBucketDurations = []byte("time_matrix_cache")

// BoltCachePersister persists the oracle's duration cache to a BoltDB file
// so repeated simulation runs don't re-derive the same pairwise durations.
// This is the only durable state in the routing package and holds oracle
// geometry-to-duration facts, never Order/Job/Driver domain state.
type BoltCachePersister struct {
	db *bolt.DB
}

// NewBoltCachePersister opens (or creates) a BoltDB file at dbPath.
func NewBoltCachePersister(dbPath string) (*BoltCachePersister, error) {
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("routing: open bolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucketDurations)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("routing: create bucket: %w", err)
	}
	return &BoltCachePersister{db: db}, nil
}

// Close closes the underlying BoltDB handle.
func (p *BoltCachePersister) Close() error {
	return p.db.Close()
}

// Load returns the persisted cache snapshot, or an empty map if none exists
// yet.
func (p *BoltCachePersister) Load() (map[string]float64, error) {
	out := make(map[string]float64)
	err := p.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucketDurations)
		if b == nil {
			return nil
		}
		data := b.Get([]byte("matrix"))
		if data == nil {
			return nil
		}
		return sonic.Unmarshal(data, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("routing: load cache snapshot: %w", err)
	}
	return out, nil
}

// Save overwrites the persisted cache snapshot.
func (p *BoltCachePersister) Save(snapshot map[string]float64) error {
	data, err := sonic.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("routing: marshal cache snapshot: %w", err)
	}
	return p.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(boltBucketDurations)
		if b == nil {
			return fmt.Errorf("routing: bucket %s not found", boltBucketDurations)
		}
		return b.Put([]byte("matrix"), data)
	})
}
