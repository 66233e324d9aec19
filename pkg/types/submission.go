package types

import (
	"time"
)

// EventStatus records how far an inbound webhook event got through intake.
type EventStatus string

const (
	// EventReceived means the event row is claimed but intake has not
	// finished; a concurrent duplicate delivery short-circuits on it.
	EventReceived EventStatus = "received"
	// EventRouted and EventUnresolved are final.
	EventRouted     EventStatus = "routed"
	EventUnresolved EventStatus = "unresolved"
	// EventFailed means the grading trigger could not be started; a
	// redelivery of the same event id is allowed to retry it.
	EventFailed EventStatus = "failed"
)

// SubmissionEvent is one inbound webhook notification. Rows are written once
// on receipt and kept for replay detection; ExternalEventID is the dedup key.
type SubmissionEvent struct {
	ExternalEventID string
	Correlation     string
	AssignmentID    string
	Repository      string
	PRNumber        int
	Action          string
	Status          EventStatus
	SignatureValid  bool
	ReceivedAt      time.Time
}

// GradingResult is the reviewer output merged onto an assignment. A result
// replaces the previous one only when GradedAt is newer.
type GradingResult struct {
	Score    int
	Verdict  string
	Feedback string
	GradedAt time.Time
}

// SubmissionBundle is the material handed to the reviewer: the PR diff plus
// file contents snapshotted from the head branch.
type SubmissionBundle struct {
	Repository string
	PRNumber   int
	HeadRef    string
	Diff       string
	Files      map[string]string
}
