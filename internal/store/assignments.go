package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/pkg/apperr"
	"github.com/clintrovert/praxis/pkg/types"
)

const assignmentColumns = `id, task_id, developer_id, status, start_date, due_date, completed_at,
	submission_ref, submission_status, submitted_at, score, verdict, feedback, graded_at,
	created_at, updated_at`

// CreateAssignment claims a task for a developer. The due date is derived
// once from the task's estimated duration and is immutable afterward. A
// second active claim for the same pair fails with a conflict raised by the
// partial unique index.
func (s *Store) CreateAssignment(ctx context.Context, task types.Task, developerID string) (*types.Assignment, error) {
	now := time.Now().Truncate(time.Microsecond)
	a := &types.Assignment{
		ID:          uuid.Must(uuid.NewV7()).String(),
		TaskID:      task.ID,
		DeveloperID: developerID,
		Status:      types.StatusAssigned,
		StartDate:   now,
		DueDate:     now.Add(task.EstimatedDuration),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO assignments (id, task_id, developer_id, status, start_date, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.TaskID, a.DeveloperID, string(a.Status), a.StartDate, a.DueDate, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "ux_assignments_active") {
			return nil, apperr.New(apperr.Conflict, "duplicate active assignment", err)
		}
		return nil, fmt.Errorf("create assignment: %w", err)
	}
	return a, nil
}

// GetAssignment retrieves a single assignment by id.
func (s *Store) GetAssignment(ctx context.Context, id string) (*types.Assignment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id)
	a, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Newf(apperr.NotFound, "assignment %s not found", id)
		}
		return nil, fmt.Errorf("get assignment %s: %w", id, err)
	}
	return a, nil
}

// TransitionAssignment applies a status change after validating it against
// the state machine. The update is conditional on the previously observed
// status, so a concurrent writer losing the race gets a conflict instead of
// clobbering state.
func (s *Store) TransitionAssignment(ctx context.Context, id string, next types.Status) (*types.Assignment, error) {
	if !next.Valid() {
		return nil, apperr.Newf(apperr.Validation, "unknown status %q", next)
	}

	current, err := s.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, apperr.Newf(apperr.Conflict, "invalid transition %s -> %s", current.Status, next)
	}

	now := time.Now().Truncate(time.Microsecond)
	var completedAt *time.Time
	if next == types.StatusCompleted {
		completedAt = &now
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE assignments
		SET status = $2, completed_at = COALESCE($3, completed_at), updated_at = $4
		WHERE id = $1 AND status = $5`,
		id, string(next), completedAt, now, string(current.Status))
	if err != nil {
		return nil, fmt.Errorf("transition assignment %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperr.Newf(apperr.Conflict, "assignment %s was modified concurrently", id)
	}

	current.Status = next
	current.CompletedAt = completedAt
	current.UpdatedAt = now
	return current, nil
}

// AppendNote adds one entry to the assignment's append-only note log. Prior
// notes are never rewritten.
func (s *Store) AppendNote(ctx context.Context, assignmentID, body string) (*types.Note, error) {
	if _, err := s.GetAssignment(ctx, assignmentID); err != nil {
		return nil, err
	}
	n := &types.Note{
		ID:           uuid.Must(uuid.NewV7()).String(),
		AssignmentID: assignmentID,
		Body:         body,
		CreatedAt:    time.Now().Truncate(time.Microsecond),
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO assignment_notes (id, assignment_id, body, created_at)
		VALUES ($1, $2, $3, $4)`,
		n.ID, n.AssignmentID, n.Body, n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("append note to %s: %w", assignmentID, err)
	}
	return n, nil
}

// ListNotes returns the assignment's notes in creation order.
func (s *Store) ListNotes(ctx context.Context, assignmentID string) ([]types.Note, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, assignment_id, body, created_at
		FROM assignment_notes WHERE assignment_id = $1 ORDER BY created_at`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list notes for %s: %w", assignmentID, err)
	}
	defer rows.Close()

	var notes []types.Note
	for rows.Next() {
		var n types.Note
		if err := rows.Scan(&n.ID, &n.AssignmentID, &n.Body, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// ActiveTaskIDs returns the set of task ids that currently have at least one
// non-terminal assignment. Used by the catalog's single-claim view.
func (s *Store) ActiveTaskIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT task_id FROM assignments WHERE status <> 'completed'`)
	if err != nil {
		return nil, fmt.Errorf("list active task ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan task id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// ActiveAssignmentsByEmail returns the developer's non-terminal assignments,
// resolved through the developer registry by correlation email.
func (s *Store) ActiveAssignmentsByEmail(ctx context.Context, email string) ([]types.Assignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments a
		JOIN developers d ON d.id = a.developer_id
		WHERE d.email = $1 AND a.status <> 'completed'
		ORDER BY a.created_at`, email)
	if err != nil {
		return nil, fmt.Errorf("resolve assignments by email: %w", err)
	}
	defer rows.Close()

	var out []types.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// RecordSubmission stamps submission metadata onto an assignment when a
// webhook event routes to it. Grading status starts as pending.
func (s *Store) RecordSubmission(ctx context.Context, assignmentID, submissionRef string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE assignments
		SET submission_ref = $2, submission_status = $3, submitted_at = $4, updated_at = NOW()
		WHERE id = $1`,
		assignmentID, submissionRef, string(types.SubmissionPending), at)
	if err != nil {
		return fmt.Errorf("record submission on %s: %w", assignmentID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Newf(apperr.NotFound, "assignment %s not found", assignmentID)
	}
	return nil
}

// MergeGradingResult merges a reviewer result onto the assignment. The write
// is last-write-wins by graded_at: a stale result is dropped silently so
// re-grading stays idempotent.
func (s *Store) MergeGradingResult(ctx context.Context, assignmentID string, res types.GradingResult) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE assignments
		SET score = $2, verdict = $3, feedback = $4, graded_at = $5,
		    submission_status = $6, updated_at = NOW()
		WHERE id = $1 AND (graded_at IS NULL OR graded_at < $5)`,
		assignmentID, res.Score, res.Verdict, res.Feedback, res.GradedAt, string(types.SubmissionGraded))
	if err != nil {
		return fmt.Errorf("merge grading result on %s: %w", assignmentID, err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Info("dropped stale grading result",
			zap.String("assignment_id", assignmentID),
			zap.Time("graded_at", res.GradedAt),
		)
	}
	return nil
}

// MarkGradingFailed marks a pending submission as failed after the retry
// budget is exhausted, surfacing it for manual review.
func (s *Store) MarkGradingFailed(ctx context.Context, assignmentID, reason string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE assignments
		SET submission_status = $2, feedback = $3, updated_at = NOW()
		WHERE id = $1 AND submission_status = $4`,
		assignmentID, string(types.SubmissionGradingFailed), reason, string(types.SubmissionPending))
	if err != nil {
		return fmt.Errorf("mark grading failed on %s: %w", assignmentID, err)
	}
	return nil
}

// CreateDeveloper registers a developer. Email must be unique; it is the
// webhook correlation key.
func (s *Store) CreateDeveloper(ctx context.Context, d types.Developer) (*types.Developer, error) {
	d.CreatedAt = time.Now().Truncate(time.Microsecond)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO developers (id, email, name, created_at) VALUES ($1, $2, $3, $4)`,
		d.ID, d.Email, d.Name, d.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return nil, apperr.New(apperr.Conflict, "developer already registered", err)
		}
		return nil, fmt.Errorf("create developer: %w", err)
	}
	return &d, nil
}

func scanAssignment(row pgx.Row) (*types.Assignment, error) {
	var (
		a                types.Assignment
		status           string
		submissionStatus string
		score            *int
		verdict          string
		feedback         string
		gradedAt         *time.Time
	)
	err := row.Scan(
		&a.ID, &a.TaskID, &a.DeveloperID, &status, &a.StartDate, &a.DueDate, &a.CompletedAt,
		&a.SubmissionRef, &submissionStatus, &a.SubmittedAt, &score, &verdict, &feedback, &gradedAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = types.Status(status)
	a.SubmissionStatus = types.SubmissionStatus(submissionStatus)
	if gradedAt != nil && score != nil {
		a.Grading = &types.GradingResult{
			Score:    *score,
			Verdict:  verdict,
			Feedback: feedback,
			GradedAt: *gradedAt,
		}
	}
	return &a, nil
}
