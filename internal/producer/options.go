package producer

import (
	"github.com/okian/posgrade/internal/domain/split"
	"github.com/okian/posgrade/pkg/logger"
)

// Option configures a Producer.
type Option func(*Producer)

// WithNeighbours sets k for the k-NN classifier.
func WithNeighbours(k int) Option {
	return func(p *Producer) {
		if k > 0 {
			p.k = k
		}
	}
}

// WithLabelColumn sets the column holding positions.
func WithLabelColumn(name string) Option {
	return func(p *Producer) {
		if name != "" {
			p.labelColumn = name
		}
	}
}

// WithNameColumn sets the column copied into the "Player name" output column.
func WithNameColumn(name string) Option {
	return func(p *Producer) {
		if name != "" {
			p.nameColumn = name
		}
	}
}

// WithReconstructor sets the split used to pick training and held-out rows.
// It must match the grader's.
func WithReconstructor(r split.Reconstructor) Option {
	return func(p *Producer) {
		p.split = r
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Producer) {
		if l != nil {
			p.logger = l
		}
	}
}
