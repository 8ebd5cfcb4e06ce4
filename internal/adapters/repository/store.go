// Package repository keeps the leaderboard of best scores per participant.
package repository

import (
	"context"
	"time"

	"github.com/okian/posgrade/internal/domain/types"
)

// Store provides read/write access to the ranking state.
type Store interface {
	// UpdateBest records score for participant if it beats the current best.
	// Returns true if the stored best changed.
	UpdateBest(ctx context.Context, participant string, score float64, runID string, gradedAt time.Time) (bool, error)

	// Rank returns the current rank and best entry for a participant.
	// Returns ErrNotFound if the participant is unknown.
	Rank(ctx context.Context, participant string) (types.Entry, error)

	// TopN returns the top-N entries ordered by score desc.
	TopN(ctx context.Context, n int) ([]types.Entry, error)

	// Count returns the number of participants on the leaderboard.
	Count(ctx context.Context) int
}
