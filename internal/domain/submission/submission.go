// Package submission loads and validates a candidate's predictions file.
package submission

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/posgrade/internal/domain/dataset"
)

// Role is the meaning a submission column plays during grading.
type Role string

// Required roles and the substring each one is matched by.
const (
	RoleActual    Role = "actual"
	RolePredicted Role = "predicted"
)

// Roles lists required roles in resolution order.
var Roles = []Role{RoleActual, RolePredicted} //nolint:gochecknoglobals // fixed resolution order

// Pattern returns the case-insensitive substring a header must contain.
func (r Role) Pattern() string {
	return string(r)
}

// Columns maps each role to the header that satisfies it.
type Columns struct {
	Actual    string
	Predicted string

	actualIdx    int
	predictedIdx int
}

// Submission is a validated predictions file.
type Submission struct {
	Header    []string
	Columns   Columns
	Actual    []string
	Predicted []string
}

// Len returns the number of prediction rows.
func (s *Submission) Len() int {
	return len(s.Actual)
}

// ResolveColumns scans header once per role, in Roles order, and picks the
// first header whose lower-cased name contains the role pattern. A header
// claimed by an earlier role is not considered for later roles.
func ResolveColumns(header []string) (Columns, error) {
	claimed := make(map[int]bool, len(Roles))
	resolved := make(map[Role]int, len(Roles))
	var missing []Role

	for _, role := range Roles {
		idx := -1
		for i, h := range header {
			if claimed[i] {
				continue
			}
			if strings.Contains(strings.ToLower(h), role.Pattern()) {
				idx = i
				break
			}
		}
		if idx < 0 {
			missing = append(missing, role)
			continue
		}
		claimed[idx] = true
		resolved[role] = idx
	}

	if len(missing) > 0 {
		return Columns{}, &SchemaError{Missing: missing, Found: append([]string(nil), header...)}
	}
	a, p := resolved[RoleActual], resolved[RolePredicted]
	return Columns{Actual: header[a], Predicted: header[p], actualIdx: a, predictedIdx: p}, nil
}

// Load reads the predictions file at path and resolves its role columns.
// Errors: ErrMissingArtifact when the file does not exist, *SchemaError when
// a role has no matching column, anything else is a processing failure.
func Load(path string) (*Submission, error) {
	ds, err := dataset.Load(path)
	if err != nil {
		if errors.Is(err, dataset.ErrDataNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, path)
		}
		return nil, err
	}
	return FromDataset(ds)
}

// FromDataset validates an already parsed predictions table.
func FromDataset(ds *dataset.Dataset) (*Submission, error) {
	cols, err := ResolveColumns(ds.Header)
	if err != nil {
		return nil, err
	}
	actual := ds.ColumnAt(cols.actualIdx)
	predicted := ds.ColumnAt(cols.predictedIdx)
	for i := range actual {
		actual[i] = strings.TrimSpace(actual[i])
		predicted[i] = strings.TrimSpace(predicted[i])
	}
	return &Submission{
		Header:    ds.Header,
		Columns:   cols,
		Actual:    actual,
		Predicted: predicted,
	}, nil
}
