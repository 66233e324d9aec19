package store

import (
	"context"
	"fmt"

	"github.com/clintrovert/praxis/pkg/types"
)

// RecordEvent inserts a submission event, keyed by its external id. The
// insert is ON CONFLICT DO NOTHING: the returned bool is false when the same
// external id was already recorded, which is how concurrent duplicate
// deliveries serialize through the store rather than racing in application
// code.
func (s *Store) RecordEvent(ctx context.Context, ev types.SubmissionEvent) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO submission_events
			(external_event_id, correlation, assignment_id, repository, pr_number, action, status, signature_valid, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (external_event_id) DO NOTHING`,
		ev.ExternalEventID, ev.Correlation, ev.AssignmentID, ev.Repository,
		ev.PRNumber, ev.Action, string(ev.Status), ev.SignatureValid, ev.ReceivedAt)
	if err != nil {
		return false, fmt.Errorf("record event %s: %w", ev.ExternalEventID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateEventStatus rewrites the intake outcome of an already-recorded
// event, e.g. from unresolved to routed after a manual correlation fix.
func (s *Store) UpdateEventStatus(ctx context.Context, externalEventID string, status types.EventStatus, assignmentID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE submission_events SET status = $2, assignment_id = $3
		WHERE external_event_id = $1`,
		externalEventID, string(status), assignmentID)
	if err != nil {
		return fmt.Errorf("update event %s: %w", externalEventID, err)
	}
	return nil
}

// GetEvent retrieves a recorded submission event.
func (s *Store) GetEvent(ctx context.Context, externalEventID string) (*types.SubmissionEvent, error) {
	var (
		ev     types.SubmissionEvent
		status string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT external_event_id, correlation, assignment_id, repository, pr_number, action, status, signature_valid, received_at
		FROM submission_events WHERE external_event_id = $1`, externalEventID).
		Scan(&ev.ExternalEventID, &ev.Correlation, &ev.AssignmentID, &ev.Repository,
			&ev.PRNumber, &ev.Action, &status, &ev.SignatureValid, &ev.ReceivedAt)
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", externalEventID, err)
	}
	ev.Status = types.EventStatus(status)
	return &ev, nil
}
