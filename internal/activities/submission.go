package activities

import (
	"context"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/github"
	"github.com/clintrovert/praxis/pkg/types"
)

// SubmissionActivities collects submission material from GitHub.
type SubmissionActivities struct {
	githubClient *github.Client
	logger       *zap.Logger
}

// NewSubmissionActivities creates a new submission activities handler.
func NewSubmissionActivities(githubClient *github.Client, logger *zap.Logger) *SubmissionActivities {
	return &SubmissionActivities{
		githubClient: githubClient,
		logger:       logger,
	}
}

// FetchSubmissionActivity fetches the PR diff and head-branch file contents.
func (a *SubmissionActivities) FetchSubmissionActivity(ctx context.Context, owner, repo string, prNumber int) (types.SubmissionBundle, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("fetching submission",
		"owner", owner,
		"repo", repo,
		"pr_number", prNumber,
	)

	bundle, err := a.githubClient.FetchSubmission(ctx, owner, repo, prNumber)
	if err != nil {
		return types.SubmissionBundle{}, err
	}
	return *bundle, nil
}
