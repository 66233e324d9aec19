package types

import (
	"time"
)

// Status is the lifecycle state of an assignment.
type Status string

const (
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
)

// transitions is the full set of permitted status changes. Completed is
// terminal; blocked is recoverable.
var transitions = map[Status][]Status{
	StatusAssigned:   {StatusInProgress},
	StatusInProgress: {StatusCompleted, StatusBlocked},
	StatusBlocked:    {StatusInProgress},
}

// Valid reports whether s is a known assignment status.
func (s Status) Valid() bool {
	switch s {
	case StatusAssigned, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are permitted from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// CanTransitionTo reports whether the state machine permits moving from s
// to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SubmissionStatus tracks the grading state of a submitted assignment.
type SubmissionStatus string

const (
	SubmissionPending       SubmissionStatus = "pending"
	SubmissionGraded        SubmissionStatus = "graded"
	SubmissionGradingFailed SubmissionStatus = "grading_failed"
)

// Assignment is one developer's claim on one task. At most one non-terminal
// assignment may exist per (task, developer) pair; the store enforces this
// with a partial unique index.
type Assignment struct {
	ID          string
	TaskID      string
	DeveloperID string
	Status      Status
	StartDate   time.Time
	DueDate     time.Time
	CompletedAt *time.Time

	SubmissionRef    string
	SubmissionStatus SubmissionStatus
	SubmittedAt      *time.Time

	Grading *GradingResult

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Note is one append-only log entry on an assignment. Notes are never
// rewritten or joined into a single field.
type Note struct {
	ID           string
	AssignmentID string
	Body         string
	CreatedAt    time.Time
}

// Developer is a registered claimant. Email is the webhook correlation key.
type Developer struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}
