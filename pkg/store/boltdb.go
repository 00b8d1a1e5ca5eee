package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/fleetscaler/pkg/types"
)

var (
	bucketCounters  = []byte("counters")
	bucketHeartbeat = []byte("heartbeat")
)

// BoltStore implements Store using BoltDB, one file per scaler process.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) a BoltDB file under
// dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "fleetscaler.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketCounters, bucketHeartbeat} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("store: create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) NextNodeNumber() (int, error) {
	var next uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCounters)
		next, _ = b.NextSequence()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: advance node number: %w", err)
	}
	return int(next), nil
}

func (s *BoltStore) SaveHeartbeatSnapshot(records map[string]types.HeartbeatRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		// Clear stale entries from a previous snapshot before writing
		// the new one: nodes that no longer heartbeat must not linger.
		if err := tx.DeleteBucket(bucketHeartbeat); err != nil {
			return err
		}
		b, err := tx.CreateBucket(bucketHeartbeat)
		if err != nil {
			return err
		}
		for ip, rec := range records {
			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(ip), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) LoadHeartbeatSnapshot() (map[string]types.HeartbeatRecord, error) {
	out := make(map[string]types.HeartbeatRecord)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHeartbeat)
		return b.ForEach(func(k, v []byte) error {
			var rec types.HeartbeatRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out[string(k)] = rec
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: load heartbeat snapshot: %w", err)
	}
	return out, nil
}
