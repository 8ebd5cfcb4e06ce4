package service

import (
	"time"

	"github.com/okian/posgrade/internal/domain/grading"
	"github.com/okian/posgrade/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithGrader sets the grader used for every evaluation.
func WithGrader(g *grading.Grader) Option {
	return func(s *Service) {
		if g != nil {
			s.grader = g
		}
	}
}

// WithWorkRoot sets the directory request workdirs are resolved against.
func WithWorkRoot(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.workRoot = dir
		}
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued runs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many run IDs are remembered for duplicate detection.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithCacheSize sets the number of cached results. Zero disables the cache.
func WithCacheSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.cacheSize = size
		}
	}
}

// WithArchivePath enables the run archive at path.
func WithArchivePath(path string) Option {
	return func(s *Service) {
		s.archivePath = path
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDGenerator overrides how run IDs are generated.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithClock overrides the service time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
