// Package types contains common types used across the application
package types

import "time"

// Entry represents a leaderboard row: a participant's best graded run.
type Entry struct {
	Rank        int       `json:"rank" yaml:"rank"`
	Participant string    `json:"participant" yaml:"participant"`
	Score       float64   `json:"score" yaml:"score"`
	RunID       string    `json:"run_id" yaml:"run_id"`
	GradedAt    time.Time `json:"graded_at" yaml:"graded_at"`
}
