package producer

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/okian/posgrade/internal/domain/dataset"
	"github.com/okian/posgrade/internal/domain/split"
)

// droppedColumns never become features.
var droppedColumns = []string{"Rk", "Team", "Awards"} //nolint:gochecknoglobals // fixed pipeline

// matrix is a row-major feature table with missing cells as NaN.
type matrix struct {
	names []string
	rows  [][]float64
}

// numericFeatures keeps every column except the label, name and dropped
// columns whose non-empty cells all parse as numbers.
func numericFeatures(ds *dataset.Dataset, label, name string) matrix {
	var cols []int
	for i, h := range ds.Header {
		if h == label || h == name || slices.Contains(droppedColumns, h) {
			continue
		}
		if isNumericColumn(ds.ColumnAt(i)) {
			cols = append(cols, i)
		}
	}

	m := matrix{rows: make([][]float64, ds.Len())}
	for _, c := range cols {
		m.names = append(m.names, ds.Header[c])
	}
	for r, row := range ds.Rows {
		vals := make([]float64, len(cols))
		for j, c := range cols {
			vals[j] = parseCell(row[c])
		}
		m.rows[r] = vals
	}
	return m
}

func isNumericColumn(values []string) bool {
	seen := false
	for _, v := range values {
		if !split.HasLabel(v) {
			continue
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

func parseCell(v string) float64 {
	if !split.HasLabel(v) {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// standardize imputes missing cells with the training mean and rescales
// every column to zero mean and unit variance over the training rows.
func (m matrix) standardize(train []int) {
	for j := range m.names {
		var sum float64
		var n int
		for _, r := range train {
			if v := m.rows[r][j]; !math.IsNaN(v) {
				sum += v
				n++
			}
		}
		mean := 0.0
		if n > 0 {
			mean = sum / float64(n)
		}

		var sq float64
		for _, r := range train {
			v := m.rows[r][j]
			if math.IsNaN(v) {
				v = mean
			}
			sq += (v - mean) * (v - mean)
		}
		std := 1.0
		if len(train) > 0 {
			if s := math.Sqrt(sq / float64(len(train))); s > 0 {
				std = s
			}
		}

		for _, row := range m.rows {
			v := row[j]
			if math.IsNaN(v) {
				v = mean
			}
			row[j] = (v - mean) / std
		}
	}
}
