package activities

import (
	"context"
	"fmt"

	"github.com/clintrovert/praxis/pkg/types"
)

// Activity functions that will be registered with the Temporal worker.
// These are wrapper functions that call the actual activity implementations.

var (
	submissionActivities *SubmissionActivities
	gradingActivities    *GradingActivities
	storeActivities      *StoreActivities
)

// SetSubmissionActivities sets the submission activities implementation.
func SetSubmissionActivities(sa *SubmissionActivities) {
	submissionActivities = sa
}

// SetGradingActivities sets the grading activities implementation.
func SetGradingActivities(ga *GradingActivities) {
	gradingActivities = ga
}

// SetStoreActivities sets the store activities implementation.
func SetStoreActivities(sa *StoreActivities) {
	storeActivities = sa
}

// FetchSubmissionActivity is the activity function for fetching submissions.
func FetchSubmissionActivity(ctx context.Context, owner, repo string, prNumber int) (types.SubmissionBundle, error) {
	if submissionActivities == nil {
		return types.SubmissionBundle{}, fmt.Errorf("submission activities not initialized")
	}
	return submissionActivities.FetchSubmissionActivity(ctx, owner, repo, prNumber)
}

// ReviewSubmissionActivity is the activity function for reviewing submissions.
func ReviewSubmissionActivity(ctx context.Context, bundle types.SubmissionBundle) (types.GradingResult, error) {
	if gradingActivities == nil {
		return types.GradingResult{}, fmt.Errorf("grading activities not initialized")
	}
	return gradingActivities.ReviewSubmissionActivity(ctx, bundle)
}

// RecordGradeActivity is the activity function for recording grades.
func RecordGradeActivity(ctx context.Context, assignmentID string, result types.GradingResult) error {
	if storeActivities == nil {
		return fmt.Errorf("store activities not initialized")
	}
	return storeActivities.RecordGradeActivity(ctx, assignmentID, result)
}

// MarkGradingFailedActivity is the activity function for marking terminal
// grading failures.
func MarkGradingFailedActivity(ctx context.Context, assignmentID, reason string) error {
	if storeActivities == nil {
		return fmt.Errorf("store activities not initialized")
	}
	return storeActivities.MarkGradingFailedActivity(ctx, assignmentID, reason)
}
