package activities

import (
	"context"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/pkg/types"
)

// GradeStore is the persistence port for recording grading outcomes.
type GradeStore interface {
	MergeGradingResult(ctx context.Context, assignmentID string, res types.GradingResult) error
	MarkGradingFailed(ctx context.Context, assignmentID, reason string) error
}

// StoreActivities persists grading outcomes onto assignments.
type StoreActivities struct {
	store  GradeStore
	logger *zap.Logger
}

// NewStoreActivities creates a new store activities handler.
func NewStoreActivities(store GradeStore, logger *zap.Logger) *StoreActivities {
	return &StoreActivities{
		store:  store,
		logger: logger,
	}
}

// RecordGradeActivity merges a grading result onto the assignment
// (last-write-wins by graded_at).
func (a *StoreActivities) RecordGradeActivity(ctx context.Context, assignmentID string, result types.GradingResult) error {
	logger := activity.GetLogger(ctx)
	logger.Info("recording grade",
		"assignment_id", assignmentID,
		"score", result.Score,
	)
	return a.store.MergeGradingResult(ctx, assignmentID, result)
}

// MarkGradingFailedActivity surfaces a terminally failed grading run for
// manual review.
func (a *StoreActivities) MarkGradingFailedActivity(ctx context.Context, assignmentID, reason string) error {
	logger := activity.GetLogger(ctx)
	logger.Info("marking grading failed",
		"assignment_id", assignmentID,
		"reason", reason,
	)
	return a.store.MarkGradingFailed(ctx, assignmentID, reason)
}
