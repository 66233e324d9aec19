package workflows

// GradingWorkflowInput identifies the submission to grade and the assignment
// the result merges into.
type GradingWorkflowInput struct {
	ExternalEventID string
	AssignmentID    string
	RepositoryOwner string
	RepositoryName  string
	PRNumber        int
	SubmissionRef   string
}
