package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clintrovert/praxis/pkg/types"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewFileSource(t *testing.T) {
	path := writeCatalog(t, `
department: backend
banding:
  medium_threshold: 8h
  high_threshold: 24h
  compensation:
    low: 100
    medium: 250
    high: 600
tasks:
  - id: BE-1
    title: Add pagination to listing endpoint
    estimated_duration: 16h
    repository_owner: acme
    repository_name: widgets
  - id: BE-2
    title: Fix flaky retry test
    estimated_duration: 2h
`)

	src, err := NewFileSource(path)
	require.NoError(t, err)
	assert.Equal(t, "backend", src.Department())

	rules := src.Rules()
	assert.Equal(t, 8*time.Hour, rules.MediumThreshold)
	assert.Equal(t, 600, rules.Band(types.ComplexityHigh))

	tasks, err := src.List(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "BE-1", tasks[0].ID)
	assert.Equal(t, 16*time.Hour, tasks[0].EstimatedDuration)
	assert.Equal(t, "acme", tasks[0].RepositoryOwner)
}

func TestNewFileSourceRejectsBadInput(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing department", "tasks:\n  - id: BE-1\n    estimated_duration: 2h\n"},
		{"task without id", "department: backend\ntasks:\n  - title: no id\n    estimated_duration: 2h\n"},
		{"bad duration", "department: backend\ntasks:\n  - id: BE-1\n    estimated_duration: soon\n"},
		{"bad threshold", "department: backend\nbanding:\n  medium_threshold: next week\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFileSource(writeCatalog(t, tc.content))
			assert.Error(t, err)
		})
	}
}
