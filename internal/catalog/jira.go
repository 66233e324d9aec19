package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/pkg/types"
)

// JiraSource exposes one Jira project as a department task pool. Issues in
// the published status are listed as claimable tasks; estimated duration and
// repository come from custom fields.
type JiraSource struct {
	client        *jira.Client
	logger        *zap.Logger
	projectKey    string
	statusFilter  string
	durationField string
	repoField     string
	rules         BandingRules
}

// JiraOptions configures a JiraSource.
type JiraOptions struct {
	BaseURL       string
	Username      string
	APIToken      string
	ProjectKey    string
	StatusFilter  string
	DurationField string
	RepoField     string
	Rules         BandingRules
}

// NewJiraSource creates a Jira-backed catalog source.
func NewJiraSource(opts JiraOptions, logger *zap.Logger) (*JiraSource, error) {
	tp := jira.BasicAuthTransport{
		Username: opts.Username,
		Password: opts.APIToken,
	}

	client, err := jira.NewClient(tp.Client(), opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	if opts.StatusFilter == "" {
		opts.StatusFilter = "Published"
	}
	if opts.DurationField == "" {
		opts.DurationField = "Estimated Duration"
	}
	if opts.RepoField == "" {
		opts.RepoField = "Repository"
	}

	return &JiraSource{
		client:        client,
		logger:        logger,
		projectKey:    opts.ProjectKey,
		statusFilter:  opts.StatusFilter,
		durationField: opts.DurationField,
		repoField:     opts.RepoField,
		rules:         opts.Rules,
	}, nil
}

func (s *JiraSource) Department() string {
	return strings.ToLower(s.projectKey)
}

func (s *JiraSource) Rules() BandingRules {
	return s.rules
}

// List queries the project for claimable issues. Issues that can't be
// converted (missing duration, malformed fields) are skipped with a warning
// so one bad ticket doesn't hide the rest of the pool.
func (s *JiraSource) List(_ context.Context) ([]types.Task, error) {
	jql := fmt.Sprintf("project = %s AND status = %q", s.projectKey, s.statusFilter)

	issues, _, err := s.client.Issue.Search(jql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}

	tasks := make([]types.Task, 0, len(issues))
	for _, issue := range issues {
		task, err := s.issueToTask(&issue)
		if err != nil {
			s.logger.Warn("failed to convert issue to task",
				zap.String("issue", issue.Key),
				zap.Error(err),
			)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *JiraSource) issueToTask(issue *jira.Issue) (types.Task, error) {
	dur, err := s.extractDuration(issue)
	if err != nil {
		return types.Task{}, err
	}

	owner, name := s.extractRepository(issue)

	return types.Task{
		ID:                issue.Key,
		Title:             issue.Fields.Summary,
		Description:       issue.Fields.Description,
		EstimatedDuration: dur,
		RepositoryOwner:   owner,
		RepositoryName:    name,
	}, nil
}

// extractDuration reads the estimated-duration custom field, e.g. "16h".
func (s *JiraSource) extractDuration(issue *jira.Issue) (time.Duration, error) {
	for key, value := range issue.Fields.Unknowns {
		if !strings.Contains(strings.ToLower(key), strings.ToLower(s.durationField)) {
			continue
		}
		str, ok := value.(string)
		if !ok {
			continue
		}
		dur, err := time.ParseDuration(strings.TrimSpace(str))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", str, err)
		}
		return dur, nil
	}
	return 0, fmt.Errorf("duration not found in custom field %s", s.durationField)
}

// extractRepository parses "owner/repo" or a github.com URL from the
// repository custom field. Missing repository is not an error; not every
// department task targets a repo.
func (s *JiraSource) extractRepository(issue *jira.Issue) (string, string) {
	for key, value := range issue.Fields.Unknowns {
		if !strings.Contains(strings.ToLower(key), strings.ToLower(s.repoField)) {
			continue
		}
		repoStr, ok := value.(string)
		if !ok {
			continue
		}

		repoStr = strings.TrimSpace(repoStr)
		repoStr = strings.TrimPrefix(repoStr, "https://github.com/")
		parts := strings.Split(repoStr, "/")
		if len(parts) >= 2 && parts[0] != "" && parts[1] != "" {
			return parts[0], parts[1]
		}
	}
	return "", ""
}
