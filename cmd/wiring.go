package main

import (
	"context"
	"net/http"

	"github.com/okian/posgrade/internal/adapters/http/api"
	"github.com/okian/posgrade/internal/adapters/http/site"
	"github.com/okian/posgrade/internal/adapters/http/swagger"
	service "github.com/okian/posgrade/internal/app"
	"github.com/okian/posgrade/internal/config"
	"github.com/okian/posgrade/internal/domain/grading"
	"github.com/okian/posgrade/internal/domain/scoring"
	"github.com/okian/posgrade/internal/domain/split"
	"github.com/okian/posgrade/pkg/logger"
)

func newReconstructor(c *config.Config) split.Reconstructor {
	return split.NewReconstructor(split.WithLegacyLeadingDrop(c.Split.LegacyLeadingDrop))
}

// newGrader builds a grader for workDir from configuration.
func newGrader(c *config.Config, workDir string, log logger.Logger) *grading.Grader {
	scorer := scoring.NewWeightedScorer(
		scoring.WithWeights(c.Scoring.Weights),
		scoring.WithSizeTolerance(c.Scoring.SizeTolerance),
		scoring.WithBonusThreshold(c.Scoring.BonusThreshold),
	)
	return grading.New(
		grading.WithWorkDir(workDir),
		grading.WithSubmissionFile(c.SubmissionFile),
		grading.WithGroundTruthFile(c.GroundTruthFile),
		grading.WithLabelColumn(c.LabelColumn),
		grading.WithScorer(scorer),
		grading.WithReconstructor(newReconstructor(c)),
		grading.WithLogger(log),
	)
}

// newService builds the grading service from configuration.
func newService(c *config.Config, log logger.Logger) *service.Service {
	return service.New(
		service.WithLogger(log),
		service.WithGrader(newGrader(c, c.WorkDir, log.Named("grader"))),
		service.WithWorkRoot(c.WorkDir),
		service.WithWorkerCount(c.WorkerCount),
		service.WithQueueSize(c.QueueSize),
		service.WithDedupeSize(c.DedupeSize),
		service.WithCacheSize(c.CacheSize),
		service.WithArchivePath(c.ArchivePath),
	)
}

// newHandler registers every route on a fresh mux.
func newHandler(ctx context.Context, c *config.Config, svc *service.Service) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)
	api.NewServer(svc, api.WithMaxLeaderboardLimit(c.MaxLeaderboardLimit)).Register(ctx, mux)
	return mux
}
