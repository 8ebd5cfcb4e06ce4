// Package archive persists grading runs in a bbolt database so results and
// the leaderboard survive restarts.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/okian/posgrade/internal/domain/model"
)

const (
	runsBucket  = "runs"
	openTimeout = time.Second
)

// Sentinel errors.
var (
	ErrNotFound = errors.New("run not found")
	ErrClosed   = errors.New("archive closed")
)

// Store archives runs keyed by run ID. It is safe for concurrent use; every
// operation after Close returns ErrClosed.
type Store struct {
	mu sync.RWMutex
	db *bbolt.DB
}

// Open opens or creates the archive at path, creating parent directories.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
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

// Close releases the database file. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// view runs fn in a read transaction while the database is open.
func (s *Store) view(fn func(*bbolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	return s.db.View(fn)
}

// update runs fn in a write transaction while the database is open.
func (s *Store) update(fn func(*bbolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrClosed
	}
	return s.db.Update(fn)
}

// Put writes run, replacing any earlier state of the same run ID.
func (s *Store) Put(ctx context.Context, run model.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	return s.update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).Put([]byte(run.RunID), data)
	})
}

// Get returns the archived run with the given ID.
func (s *Store) Get(ctx context.Context, runID string) (model.Run, error) {
	if err := ctx.Err(); err != nil {
		return model.Run{}, err
	}
	var run model.Run
	err := s.view(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(runsBucket)).Get([]byte(runID))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &run)
	})
	if err != nil {
		return model.Run{}, err
	}
	return run, nil
}

// ForEach calls fn for every archived run in key order, stopping at the
// first error. Malformed records are skipped.
func (s *Store) ForEach(ctx context.Context, fn func(model.Run) error) error {
	return s.view(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var run model.Run
			if err := json.Unmarshal(v, &run); err != nil {
				continue
			}
			if err := fn(run); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of archived runs.
func (s *Store) Count() (int, error) {
	var n int
	err := s.view(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(runsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}
