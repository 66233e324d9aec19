package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/clintrovert/praxis/internal/activities"
	"github.com/clintrovert/praxis/pkg/types"
)

// GradingWorkflow grades one validated submission: fetch the PR material,
// review it, and merge the result onto the assignment. Every step retries
// with backoff up to a bounded budget; once the budget is exhausted the
// submission is marked grading_failed so it is never left pending forever.
func GradingWorkflow(ctx workflow.Context, input GradingWorkflowInput) (*types.GradingResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("starting grading workflow",
		"external_event_id", input.ExternalEventID,
		"assignment_id", input.AssignmentID,
	)

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	// Step 1: Collect the submission material.
	var bundle types.SubmissionBundle
	err := workflow.ExecuteActivity(ctx, activities.FetchSubmissionActivity,
		input.RepositoryOwner, input.RepositoryName, input.PRNumber).Get(ctx, &bundle)
	if err != nil {
		logger.Error("failed to fetch submission", "error", err)
		return nil, failGrading(ctx, input, "fetch submission failed", err)
	}

	// Step 2: Review.
	var result types.GradingResult
	err = workflow.ExecuteActivity(ctx, activities.ReviewSubmissionActivity, bundle).Get(ctx, &result)
	if err != nil {
		logger.Error("failed to review submission", "error", err)
		return nil, failGrading(ctx, input, "review failed", err)
	}

	// Step 3: Merge the result onto the assignment.
	err = workflow.ExecuteActivity(ctx, activities.RecordGradeActivity, input.AssignmentID, result).Get(ctx, nil)
	if err != nil {
		logger.Error("failed to record grade", "error", err)
		return nil, failGrading(ctx, input, "record grade failed", err)
	}

	logger.Info("grading workflow completed",
		"assignment_id", input.AssignmentID,
		"score", result.Score,
	)

	return &result, nil
}

// failGrading records the terminal failure before the workflow fails. The
// marking activity gets its own short retry so a transient store error
// doesn't leave the submission pending.
func failGrading(ctx workflow.Context, input GradingWorkflowInput, reason string, cause error) error {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    5,
		},
	}
	markCtx := workflow.WithActivityOptions(ctx, ao)

	err := workflow.ExecuteActivity(markCtx, activities.MarkGradingFailedActivity,
		input.AssignmentID, reason).Get(markCtx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Error("failed to mark grading failed",
			"assignment_id", input.AssignmentID,
			"error", err,
		)
	}
	return cause
}
