package types

import (
	"time"
)

// Complexity is the difficulty tier of a catalog task.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Task is an immutable catalog entry sourced from a department pool.
type Task struct {
	ID                string
	Title             string
	Description       string
	Department        string
	Complexity        Complexity
	Compensation      int
	EstimatedDuration time.Duration
	RepositoryOwner   string
	RepositoryName    string
}
