// Package registry keeps a record of finished evaluation runs in a BoltDB
// file so that `habitat runs` can list them after the process exits.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const runsBucket = "runs"

var ErrNotFound = errors.New("run not found")

// Record is the stored form of one run.
type Record struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	Input       string            `json:"input"`
	OutputDir   string            `json:"output_dir"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time"`
	Error       string            `json:"error,omitempty"`
	N           int               `json:"n"`
	Sensitivity float64           `json:"sensitivity"`
	Specificity float64           `json:"specificity"`
	AUC         float64           `json:"auc"`
	Accuracy    float64           `json:"accuracy"`
	Thresholds  []float64         `json:"thresholds"`
	Params      map[string]string `json:"params,omitempty"`
}

// Store wraps a BoltDB file with a single bucket of runs keyed by ID.
type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create registry directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put inserts or replaces the record with rec.ID.
func (s *Store) Put(rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record has no id")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal run: %w", err)
		}
		return tx.Bucket([]byte(runsBucket)).Put([]byte(rec.ID), raw)
	})
}

func (s *Store) Get(id string) (Record, error) {
	var rec Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(runsBucket)).Get([]byte(id))
		if raw == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return json.Unmarshal(raw, &rec)
	})
	return rec, err
}

// List returns every stored run, newest first. Malformed entries are skipped.
func (s *Store) List() ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}

func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))
		if b.Get([]byte(id)) == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return b.Delete([]byte(id))
	})
}
