// Package model contains domain models passed between layers.
package model

import "maps"

// Error kinds reported in Result.Details["error"].
const (
	ErrorMissingPredictionsFile = "missing_predictions_file"
	ErrorMissingColumns         = "missing_required_columns"
	ErrorProcessing             = "processing_error"
)

// OutcomeOK labels a grading that reached the scorer.
const OutcomeOK = "ok"

// Result is the outcome of one grading invocation.
// Values are built once by the grader and must be treated as read-only;
// use Clone before handing a shared Result to code that may mutate it.
type Result struct {
	Score     float64            `json:"score" yaml:"score"`
	Subscores map[string]float64 `json:"subscores" yaml:"subscores"`
	Weights   map[string]float64 `json:"weights" yaml:"weights"`
	Feedback  string             `json:"feedback,omitempty" yaml:"feedback,omitempty"`
	Details   map[string]any     `json:"details,omitempty" yaml:"details,omitempty"`
}

// Failed builds a terminal zero-score result tagged with an error kind.
func Failed(kind, feedback string, details map[string]any) Result {
	d := make(map[string]any, len(details)+1)
	maps.Copy(d, details)
	d["error"] = kind
	return Result{
		Score:     0,
		Subscores: map[string]float64{},
		Weights:   map[string]float64{},
		Feedback:  feedback,
		Details:   d,
	}
}

// ErrorKind returns Details["error"], or "" for a scored result.
func (r Result) ErrorKind() string {
	if r.Details == nil {
		return ""
	}
	kind, _ := r.Details["error"].(string)
	return kind
}

// Outcome returns the error kind, or OutcomeOK.
func (r Result) Outcome() string {
	if k := r.ErrorKind(); k != "" {
		return k
	}
	return OutcomeOK
}

// Clone returns a copy that shares no maps with r. Slice values inside
// Details are copied one level deep.
func (r Result) Clone() Result {
	out := r
	out.Subscores = maps.Clone(r.Subscores)
	out.Weights = maps.Clone(r.Weights)
	if r.Details != nil {
		out.Details = make(map[string]any, len(r.Details))
		for k, v := range r.Details {
			if s, ok := v.([]string); ok {
				v = append([]string(nil), s...)
			}
			out.Details[k] = v
		}
	}
	return out
}
