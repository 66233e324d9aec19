package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/clintrovert/praxis/pkg/types"
)

const namespace = "PRAXIS"

type HTTPEnv struct {
	Port            string        `envconfig:"HTTP_PORT" default:"8080"`
	WebhookTimeout  time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"5s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

type PostgresEnv struct {
	URL string `envconfig:"DATABASE_URL" required:"true"`
}

type TemporalEnv struct {
	Address   string `envconfig:"TEMPORAL_ADDRESS" default:"localhost:7233"`
	Namespace string `envconfig:"TEMPORAL_NAMESPACE" default:"default"`
	TaskQueue string `envconfig:"TASK_QUEUE" default:"grading-queue"`
}

type GitHubEnv struct {
	Token         string `envconfig:"GITHUB_TOKEN"`
	WebhookSecret string `envconfig:"GITHUB_WEBHOOK_SECRET"`
	WorkspaceDir  string `envconfig:"GITHUB_WORKSPACE_DIR" default:"/tmp/praxis-workspace"`
}

type GradingEnv struct {
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel  string `envconfig:"OPENAI_MODEL"`
}

type WorkspaceEnv struct {
	RosterFile string `envconfig:"WORKSPACE_ROSTER_FILE"`
}

type JiraEnv struct {
	BaseURL       string `envconfig:"JIRA_BASE_URL"`
	Username      string `envconfig:"JIRA_USERNAME"`
	Token         string `envconfig:"JIRA_TOKEN"`
	ProjectKeys   []string `envconfig:"JIRA_PROJECT_KEYS"`
	DurationField string `envconfig:"JIRA_DURATION_FIELD" default:"Estimated Duration"`
}

type CatalogEnv struct {
	SourceFiles []string `envconfig:"CATALOG_SOURCE_FILES"`
}

type Env struct {
	HTTPEnv
	PostgresEnv
	TemporalEnv
	GitHubEnv
	GradingEnv
	WorkspaceEnv
	JiraEnv
	CatalogEnv
}

// LoadEnv reads configuration from PRAXIS_-prefixed environment variables.
func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

type rosterFile struct {
	Resources []struct {
		ID            string `yaml:"id"`
		Host          string `yaml:"host"`
		Username      string `yaml:"username"`
		CredentialRef string `yaml:"credential_ref"`
	} `yaml:"resources"`
}

// LoadRoster reads the workspace pool roster from a YAML file. The roster is
// the fixed set of VPN/RDP identities the pool may lease.
func LoadRoster(path string) ([]types.WorkspaceResource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}

	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse roster file: %w", err)
	}

	resources := make([]types.WorkspaceResource, 0, len(rf.Resources))
	seen := make(map[string]bool)
	for _, r := range rf.Resources {
		if r.ID == "" {
			return nil, fmt.Errorf("roster entry missing id")
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate roster id %s", r.ID)
		}
		seen[r.ID] = true
		resources = append(resources, types.WorkspaceResource{
			ID:            r.ID,
			Host:          r.Host,
			Username:      r.Username,
			CredentialRef: r.CredentialRef,
		})
	}
	return resources, nil
}
