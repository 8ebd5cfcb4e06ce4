package batch

import (
	"fmt"
)

// Verify checks that the leaderboard is sorted and that every listed
// participant's score equals the best graded score this batch produced for
// them, when that participant took part in the batch. Scores from earlier
// batches may legitimately be higher, so only lower leaderboard scores fail.
func Verify(outcomes []Outcome, leaderboard []Entry) error {
	for i := 1; i < len(leaderboard); i++ {
		if leaderboard[i].Score > leaderboard[i-1].Score {
			return fmt.Errorf("%w: entry %d scores higher than entry %d", ErrInconsistent, i+1, i)
		}
	}
	best := make(map[string]float64)
	for _, o := range outcomes {
		if o.Status != statusGraded {
			continue
		}
		if cur, ok := best[o.Participant]; !ok || o.Score > cur {
			best[o.Participant] = o.Score
		}
	}
	for _, e := range leaderboard {
		want, ok := best[e.Participant]
		if ok && e.Score < want {
			return fmt.Errorf("%w: %s has %.3f on the leaderboard, graded %.3f",
				ErrInconsistent, e.Participant, e.Score, want)
		}
	}
	return nil
}
