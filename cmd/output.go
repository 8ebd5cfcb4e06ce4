package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/posgrade/internal/batch"
	"github.com/okian/posgrade/internal/domain/model"
	"github.com/okian/posgrade/internal/producer"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var errUnknownFormat = fmt.Errorf("unknown output format (want %s, %s or %s)", formatText, formatJSON, formatYAML)

// render writes v in format. Text output is produced by text.
func render(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case formatText, "":
		return text(w)
	default:
		return fmt.Errorf("%w: %q", errUnknownFormat, format)
	}
}

func writeResult(w io.Writer, res model.Result) error {
	fmt.Fprintf(w, "Score:     %.3f\n", res.Score)
	if kind := res.ErrorKind(); kind != "" {
		fmt.Fprintf(w, "Error:     %s\n", kind)
	}
	if len(res.Subscores) > 0 {
		fmt.Fprintln(w, "Subscores:")
		names := make([]string, 0, len(res.Subscores))
		for name := range res.Subscores {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-24s %.3f (weight %.2f)\n", name, res.Subscores[name], res.Weights[name])
		}
	}
	fmt.Fprintln(w, "Feedback:")
	for _, line := range strings.Split(res.Feedback, "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
	return nil
}

func writeSummary(w io.Writer, s producer.Summary) error {
	fmt.Fprintf(w, "Wrote %s\n", s.Output)
	fmt.Fprintf(w, "Rows:      %d (train %d, held out %d)\n", s.Rows, s.Train, s.Test)
	fmt.Fprintf(w, "Features:  %s\n", strings.Join(s.Features, ", "))
	fmt.Fprintf(w, "k:         %d\n", s.K)
	fmt.Fprintf(w, "Accuracy:  %.3f\n", s.Accuracy)
	return nil
}

func writeReport(w io.Writer, r batch.Report) error {
	fmt.Fprintf(w, "Submitted: %d (accepted %d, rejected %d)\n", r.Submitted, r.Accepted, r.Rejected)
	for _, o := range r.Outcomes {
		status := o.Status
		if o.Error != "" {
			status = "error: " + o.Error
		}
		fmt.Fprintf(w, "  %-12s %-24s %s\n", o.Participant, o.WorkDir, status)
	}
	if len(r.Leaderboard) > 0 {
		fmt.Fprintf(w, "Graded:    %d\n", r.Graded)
		fmt.Fprintln(w, "Leaderboard:")
		for _, e := range r.Leaderboard {
			fmt.Fprintf(w, "  %d. %s - Score: %.3f\n", e.Rank, e.Participant, e.Score)
		}
	}
	fmt.Fprintf(w, "Duration:  %s\n", r.Duration)
	return nil
}
