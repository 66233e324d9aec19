package github

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/clintrovert/praxis/pkg/types"
)

// Maximum bytes of any single file included in a submission bundle. Larger
// files are truncated so the review prompt stays bounded.
const maxFileBytes = 32 * 1024

// Client wraps the GitHub API and Git operations used to collect a
// developer's submission for review.
type Client struct {
	apiClient    *github.Client
	logger       *zap.Logger
	accessToken  string
	workspaceDir string
}

// NewClient creates a new GitHub client.
func NewClient(accessToken, workspaceDir string, logger *zap.Logger) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: accessToken},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		apiClient:    github.NewClient(tc),
		logger:       logger,
		accessToken:  accessToken,
		workspaceDir: workspaceDir,
	}
}

// GetPullRequest fetches a pull request.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error) {
	pr, _, err := c.apiClient.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get pull request: %w", err)
	}
	return pr, nil
}

// GetPullRequestDiff fetches the raw unified diff of a pull request.
func (c *Client) GetPullRequestDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	diff, _, err := c.apiClient.PullRequests.GetRaw(ctx, owner, repo, number, github.RawOptions{Type: github.Diff})
	if err != nil {
		return "", fmt.Errorf("failed to get pull request diff: %w", err)
	}
	return diff, nil
}

// ListChangedFiles returns the paths touched by a pull request.
func (c *Client) ListChangedFiles(ctx context.Context, owner, repo string, number int) ([]string, error) {
	opts := &github.ListOptions{PerPage: 100}
	var paths []string
	for {
		files, resp, err := c.apiClient.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list pull request files: %w", err)
		}
		for _, f := range files {
			paths = append(paths, f.GetFilename())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return paths, nil
}

// SnapshotBranch clones a single branch of the repository into the
// workspace and returns the checkout path. An existing snapshot is replaced.
func (c *Client) SnapshotBranch(ctx context.Context, owner, repo, branch string) (string, error) {
	repoPath := filepath.Join(c.workspaceDir, owner, repo)

	if _, err := os.Stat(repoPath); err == nil {
		os.RemoveAll(repoPath)
	}
	if err := os.MkdirAll(repoPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	cloneURL := fmt.Sprintf("https://%s@github.com/%s/%s.git", c.accessToken, owner, repo)

	_, err := git.PlainCloneContext(ctx, repoPath, false, &git.CloneOptions{
		URL:           cloneURL,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Depth:         1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to clone repository: %w", err)
	}

	c.logger.Info("snapshotted branch",
		zap.String("owner", owner),
		zap.String("repo", repo),
		zap.String("branch", branch),
		zap.String("path", repoPath),
	)

	return repoPath, nil
}

// FetchSubmission collects the review material for a pull request: the raw
// diff plus the contents of the changed files at the head branch. A failed
// snapshot degrades to diff-only; the diff itself is mandatory.
func (c *Client) FetchSubmission(ctx context.Context, owner, repo string, number int) (*types.SubmissionBundle, error) {
	pr, err := c.GetPullRequest(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}

	diff, err := c.GetPullRequestDiff(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}

	bundle := &types.SubmissionBundle{
		Repository: owner + "/" + repo,
		PRNumber:   number,
		HeadRef:    pr.GetHead().GetRef(),
		Diff:       diff,
		Files:      make(map[string]string),
	}

	paths, err := c.ListChangedFiles(ctx, owner, repo, number)
	if err != nil {
		c.logger.Warn("failed to list changed files, reviewing diff only", zap.Error(err))
		return bundle, nil
	}

	repoPath, err := c.SnapshotBranch(ctx, owner, repo, bundle.HeadRef)
	if err != nil {
		c.logger.Warn("failed to snapshot head branch, reviewing diff only", zap.Error(err))
		return bundle, nil
	}

	for _, p := range paths {
		data, err := os.ReadFile(filepath.Join(repoPath, filepath.FromSlash(p)))
		if err != nil {
			// Deleted or renamed in the PR; the diff still covers it.
			continue
		}
		if len(data) > maxFileBytes {
			data = data[:maxFileBytes]
		}
		bundle.Files[p] = string(data)
	}

	return bundle, nil
}
