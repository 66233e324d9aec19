package activities

import (
	"context"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/grading"
	"github.com/clintrovert/praxis/pkg/types"
)

// GradingActivities invokes the external reviewer.
type GradingActivities struct {
	reviewer grading.Reviewer
	logger   *zap.Logger
}

// NewGradingActivities creates a new grading activities handler.
func NewGradingActivities(reviewer grading.Reviewer, logger *zap.Logger) *GradingActivities {
	return &GradingActivities{
		reviewer: reviewer,
		logger:   logger,
	}
}

// ReviewSubmissionActivity grades a submission bundle.
func (a *GradingActivities) ReviewSubmissionActivity(ctx context.Context, bundle types.SubmissionBundle) (types.GradingResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("reviewing submission",
		"repository", bundle.Repository,
		"pr_number", bundle.PRNumber,
	)

	result, err := a.reviewer.Review(&bundle)
	if err != nil {
		return types.GradingResult{}, err
	}
	return *result, nil
}
