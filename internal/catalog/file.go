package catalog

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clintrovert/praxis/pkg/types"
)

// FileSource reads a department catalog from a YAML file. The file declares
// its own banding rules alongside its tasks.
type FileSource struct {
	path       string
	department string
	rules      BandingRules
	tasks      []types.Task
}

type catalogFile struct {
	Department string `yaml:"department"`
	Banding    struct {
		MediumThreshold string         `yaml:"medium_threshold"`
		HighThreshold   string         `yaml:"high_threshold"`
		Compensation    map[string]int `yaml:"compensation"`
	} `yaml:"banding"`
	Tasks []struct {
		ID                string `yaml:"id"`
		Title             string `yaml:"title"`
		Description       string `yaml:"description"`
		EstimatedDuration string `yaml:"estimated_duration"`
		RepositoryOwner   string `yaml:"repository_owner"`
		RepositoryName    string `yaml:"repository_name"`
	} `yaml:"tasks"`
}

// NewFileSource parses a catalog file. Parse failures are returned here, at
// construction, so a broken file never degrades listing mid-merge.
func NewFileSource(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}
	if cf.Department == "" {
		return nil, fmt.Errorf("catalog file %s missing department", path)
	}

	rules := BandingRules{Compensation: make(map[types.Complexity]int)}
	if cf.Banding.MediumThreshold != "" {
		rules.MediumThreshold, err = time.ParseDuration(cf.Banding.MediumThreshold)
		if err != nil {
			return nil, fmt.Errorf("invalid medium_threshold in %s: %w", path, err)
		}
	}
	if cf.Banding.HighThreshold != "" {
		rules.HighThreshold, err = time.ParseDuration(cf.Banding.HighThreshold)
		if err != nil {
			return nil, fmt.Errorf("invalid high_threshold in %s: %w", path, err)
		}
	}
	for tier, amount := range cf.Banding.Compensation {
		rules.Compensation[types.Complexity(tier)] = amount
	}

	tasks := make([]types.Task, 0, len(cf.Tasks))
	for _, t := range cf.Tasks {
		if t.ID == "" {
			return nil, fmt.Errorf("catalog file %s has a task without id", path)
		}
		dur, err := time.ParseDuration(t.EstimatedDuration)
		if err != nil {
			return nil, fmt.Errorf("invalid estimated_duration on task %s: %w", t.ID, err)
		}
		tasks = append(tasks, types.Task{
			ID:                t.ID,
			Title:             t.Title,
			Description:       t.Description,
			EstimatedDuration: dur,
			RepositoryOwner:   t.RepositoryOwner,
			RepositoryName:    t.RepositoryName,
		})
	}

	return &FileSource{
		path:       path,
		department: cf.Department,
		rules:      rules,
		tasks:      tasks,
	}, nil
}

func (s *FileSource) Department() string {
	return s.department
}

func (s *FileSource) Rules() BandingRules {
	return s.rules
}

// List returns the file's tasks. Published entries are immutable; re-reading
// the file requires constructing a new source.
func (s *FileSource) List(_ context.Context) ([]types.Task, error) {
	out := make([]types.Task, len(s.tasks))
	copy(out, s.tasks)
	return out, nil
}
