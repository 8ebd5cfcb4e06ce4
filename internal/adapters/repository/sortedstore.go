package repository

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/okian/posgrade/internal/domain/types"
	"github.com/okian/posgrade/pkg/metrics"
)

// Ordering: score DESC, then participant ASC (deterministic).

type record struct {
	participant string
	score       float64
	runID       string
	gradedAt    time.Time
}

// before reports whether a ranks ahead of b.
func before(a, b record) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.participant < b.participant
}

func compare(a, b record) int {
	switch {
	case before(a, b):
		return -1
	case before(b, a):
		return 1
	default:
		return 0
	}
}

var _ Store = (*SortedStore)(nil)

// SortedStore is an in-memory Store backed by a slice kept in rank order.
// Reads are O(log n); an improvement moves one element.
type SortedStore struct {
	mu       sync.RWMutex
	ranked   []record
	best     map[string]record
	capacity int
}

// NewSortedStore creates an empty leaderboard.
func NewSortedStore(opts ...Option) *SortedStore {
	s := &SortedStore{}
	for _, opt := range opts {
		opt(s)
	}
	s.ranked = make([]record, 0, s.capacity)
	s.best = make(map[string]record, s.capacity)
	return s
}

// UpdateBest implements Store.
func (s *SortedStore) UpdateBest(ctx context.Context, participant string, score float64, runID string, gradedAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if participant == "" {
		return false, ErrEmptyParticipant
	}
	if math.IsNaN(score) || score < 0 || score > 1 {
		return false, ErrInvalidScore
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := record{participant: participant, score: score, runID: runID, gradedAt: gradedAt}
	if old, ok := s.best[participant]; ok {
		if score <= old.score {
			return false, nil
		}
		if i, found := slices.BinarySearchFunc(s.ranked, old, compare); found {
			s.ranked = slices.Delete(s.ranked, i, i+1)
		}
	}
	i, _ := slices.BinarySearchFunc(s.ranked, rec, compare)
	s.ranked = slices.Insert(s.ranked, i, rec)
	s.best[participant] = rec

	metrics.RecordLeaderboardUpdate()
	metrics.UpdateParticipants(len(s.best))
	return true, nil
}

// Rank implements Store.
func (s *SortedStore) Rank(ctx context.Context, participant string) (types.Entry, error) {
	if err := ctx.Err(); err != nil {
		return types.Entry{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.best[participant]
	if !ok {
		return types.Entry{}, ErrNotFound
	}
	i, _ := slices.BinarySearchFunc(s.ranked, rec, compare)
	return toEntry(i, rec), nil
}

// TopN implements Store. n must be positive.
func (s *SortedStore) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n = min(n, len(s.ranked))
	out := make([]types.Entry, n)
	for i := range out {
		out[i] = toEntry(i, s.ranked[i])
	}
	return out, nil
}

// Count implements Store.
func (s *SortedStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.best)
}

func toEntry(idx int, rec record) types.Entry {
	return types.Entry{
		Rank:        idx + 1,
		Participant: rec.participant,
		Score:       rec.score,
		RunID:       rec.runID,
		GradedAt:    rec.gradedAt,
	}
}
