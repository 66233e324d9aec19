// Package catalog aggregates available tasks from per-department sources
// and annotates them with complexity and compensation banding.
package catalog

import (
	"context"
	"iter"
	"time"

	"go.uber.org/zap"

	"github.com/clintrovert/praxis/pkg/types"
)

// Source is one department's task pool.
type Source interface {
	Department() string
	Rules() BandingRules
	List(ctx context.Context) ([]types.Task, error)
}

// BandingRules maps estimated duration to a complexity tier and a tier to a
// compensation band. Rules are declared by the source catalog, never
// hardcoded per task.
type BandingRules struct {
	MediumThreshold time.Duration
	HighThreshold   time.Duration
	Compensation    map[types.Complexity]int
}

// DefaultBandingRules is the banding applied to sources that don't declare
// their own, such as Jira projects.
func DefaultBandingRules() BandingRules {
	return BandingRules{
		MediumThreshold: 8 * time.Hour,
		HighThreshold:   24 * time.Hour,
		Compensation: map[types.Complexity]int{
			types.ComplexityLow:    100,
			types.ComplexityMedium: 250,
			types.ComplexityHigh:   600,
		},
	}
}

// Complexity returns the tier for an estimated duration.
func (r BandingRules) Complexity(d time.Duration) types.Complexity {
	switch {
	case r.HighThreshold > 0 && d >= r.HighThreshold:
		return types.ComplexityHigh
	case r.MediumThreshold > 0 && d >= r.MediumThreshold:
		return types.ComplexityMedium
	default:
		return types.ComplexityLow
	}
}

// Band returns the compensation for a tier.
func (r BandingRules) Band(c types.Complexity) int {
	return r.Compensation[c]
}

// Filter narrows a catalog listing. ExcludeClaimed hides tasks that already
// have any active assignment (opt-in single-claim view).
type Filter struct {
	Department     string
	Complexity     types.Complexity
	ExcludeClaimed bool
}

// ActiveSet is the store port used by the ExcludeClaimed filter.
type ActiveSet interface {
	ActiveTaskIDs(ctx context.Context) (map[string]bool, error)
}

// Catalog merges tasks across department sources.
type Catalog struct {
	sources []Source
	active  ActiveSet
	logger  *zap.Logger
}

// New creates a catalog over the given sources.
func New(sources []Source, active ActiveSet, logger *zap.Logger) *Catalog {
	return &Catalog{sources: sources, active: active, logger: logger}
}

// Tasks returns a lazy, restartable sequence over the merged catalog. A
// source that fails to list is logged and skipped; the remaining sources
// still yield (partial-result policy). Duplicate ids across sources keep
// the first occurrence.
func (c *Catalog) Tasks(ctx context.Context, filter Filter) iter.Seq[types.Task] {
	return func(yield func(types.Task) bool) {
		var claimed map[string]bool
		if filter.ExcludeClaimed && c.active != nil {
			var err error
			claimed, err = c.active.ActiveTaskIDs(ctx)
			if err != nil {
				c.logger.Error("failed to load active task ids", zap.Error(err))
				claimed = nil
			}
		}

		seen := make(map[string]bool)
		for _, src := range c.sources {
			if filter.Department != "" && src.Department() != filter.Department {
				continue
			}

			tasks, err := src.List(ctx)
			if err != nil {
				c.logger.Error("catalog source failed, skipping",
					zap.String("department", src.Department()),
					zap.Error(err),
				)
				continue
			}

			rules := src.Rules()
			for _, task := range tasks {
				if seen[task.ID] {
					c.logger.Warn("duplicate task id across sources",
						zap.String("task_id", task.ID),
						zap.String("department", src.Department()),
					)
					continue
				}
				seen[task.ID] = true

				task.Department = src.Department()
				task.Complexity = rules.Complexity(task.EstimatedDuration)
				task.Compensation = rules.Band(task.Complexity)

				if filter.Complexity != "" && task.Complexity != filter.Complexity {
					continue
				}
				if claimed != nil && claimed[task.ID] {
					continue
				}
				if !yield(task) {
					return
				}
			}
		}
	}
}

// List materializes Tasks.
func (c *Catalog) List(ctx context.Context, filter Filter) []types.Task {
	var out []types.Task
	for task := range c.Tasks(ctx, filter) {
		out = append(out, task)
	}
	return out
}

// Get looks up a single task by id across all sources.
func (c *Catalog) Get(ctx context.Context, id string) (types.Task, bool) {
	for task := range c.Tasks(ctx, Filter{}) {
		if task.ID == id {
			return task, true
		}
	}
	return types.Task{}, false
}
