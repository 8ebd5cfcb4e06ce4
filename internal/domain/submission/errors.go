package submission

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingArtifact reports that the predictions file does not exist.
var ErrMissingArtifact = errors.New("predictions file not found")

// SchemaError reports roles with no matching column.
type SchemaError struct {
	Missing []Role
	Found   []string
}

func (e *SchemaError) Error() string {
	patterns := make([]string, len(e.Missing))
	for i, r := range e.Missing {
		patterns[i] = fmt.Sprintf("%q", r.Pattern())
	}
	return fmt.Sprintf("no column containing %s; found columns: [%s]",
		strings.Join(patterns, " or "), strings.Join(e.Found, ", "))
}
