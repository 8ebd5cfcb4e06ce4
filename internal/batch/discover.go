package batch

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Discover walks root and returns one submission for each directory holding
// submissionFile. The first path element below root names the participant;
// a submission directly in root uses fallback. Results are sorted by workdir.
func Discover(root, submissionFile, fallback string) ([]Submission, error) {
	var out []Submission
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != submissionFile {
			return nil
		}
		rel, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		participant := fallback
		if rel == "." {
			rel = ""
		} else {
			participant, _, _ = strings.Cut(rel, "/")
		}
		out = append(out, Submission{
			Participant: participant,
			WorkDir:     rel,
			RunID:       uuid.NewString(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	slices.SortFunc(out, func(a, b Submission) int { return strings.Compare(a.WorkDir, b.WorkDir) })
	return out, nil
}
