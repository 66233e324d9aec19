package grading

import (
	"github.com/clintrovert/praxis/pkg/types"
)

// Reviewer produces a grading result for a submission. The grading service
// itself is an external collaborator; this interface is what the pipeline
// invokes.
type Reviewer interface {
	Review(bundle *types.SubmissionBundle) (*types.GradingResult, error)
}
