// Package split reconstructs the ordered 80/20 train/held-out split.
//
// The split is a pure function of the row count so a producer and a grader
// can compute it independently and agree.
package split

import "strings"

// Fixed ratio: training is trainNum/ratioDen of the rows.
const (
	trainNum = 4
	ratioDen = 5
)

// Boundary returns floor(0.8 * count), the first held-out row index.
// Negative counts are treated as zero.
func Boundary(count int) int {
	if count <= 0 {
		return 0
	}
	return count * trainNum / ratioDen
}

// ExpectedTestSize returns floor(0.2 * count).
func ExpectedTestSize(count int) int {
	if count <= 0 {
		return 0
	}
	return count * (ratioDen - trainNum) / ratioDen
}

// Option configures a Reconstructor.
type Option func(*Reconstructor)

// WithLegacyLeadingDrop controls whether the first row of the held-out slice
// is excluded from the expected labels. Enabled by default for compatibility
// with previously graded submissions.
func WithLegacyLeadingDrop(enabled bool) Option {
	return func(r *Reconstructor) {
		r.leadingDrop = enabled
	}
}

// Reconstructor derives the expected held-out rows from an ordered label column.
type Reconstructor struct {
	leadingDrop bool
}

// NewReconstructor creates a Reconstructor with the legacy leading drop enabled.
func NewReconstructor(opts ...Option) Reconstructor {
	r := Reconstructor{leadingDrop: true}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// LegacyLeadingDrop reports whether the first held-out row is excluded.
func (r Reconstructor) LegacyLeadingDrop() bool {
	return r.leadingDrop
}

// HeldOutIndices returns, in order, the row indices whose labels make up the
// expected held-out sequence: rows [Boundary(len(labels)), len(labels)),
// minus the leading row when the legacy drop is on, minus rows without a label.
func (r Reconstructor) HeldOutIndices(labels []string) []int {
	start := Boundary(len(labels))
	if r.leadingDrop {
		start++
	}
	if start >= len(labels) {
		return []int{}
	}
	out := make([]int, 0, len(labels)-start)
	for i := start; i < len(labels); i++ {
		if HasLabel(labels[i]) {
			out = append(out, i)
		}
	}
	return out
}

// ExpectedHeldOut returns the expected held-out label sequence.
func (r Reconstructor) ExpectedHeldOut(labels []string) []string {
	idx := r.HeldOutIndices(labels)
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = strings.TrimSpace(labels[j])
	}
	return out
}

// TrainingIndices returns the labelled row indices of the training range.
func (r Reconstructor) TrainingIndices(labels []string) []int {
	end := Boundary(len(labels))
	out := make([]int, 0, end)
	for i := 0; i < end; i++ {
		if HasLabel(labels[i]) {
			out = append(out, i)
		}
	}
	return out
}

// HasLabel reports whether a label cell is well defined.
func HasLabel(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "nan", "na", "null":
		return false
	}
	return true
}
