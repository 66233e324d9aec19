package grading

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/pkg/types"
)

// Cap on the diff portion of the prompt. Submissions larger than this are
// truncated; the reviewer sees the leading hunks.
const maxDiffChars = 60 * 1024

// AIReviewer grades submissions with OpenAI.
type AIReviewer struct {
	client *openai.Client
	logger *zap.Logger
	model  string
}

// NewAIReviewer creates a new AI reviewer.
func NewAIReviewer(apiKey, model string, logger *zap.Logger) *AIReviewer {
	client := openai.NewClient(apiKey)

	if model == "" {
		model = openai.GPT4TurboPreview
	}

	return &AIReviewer{
		client: client,
		logger: logger,
		model:  model,
	}
}

// Review grades a submission bundle.
func (r *AIReviewer) Review(bundle *types.SubmissionBundle) (*types.GradingResult, error) {
	prompt := r.buildPrompt(bundle)

	resp, err := r.client.CreateChatCompletion(
		context.Background(),
		openai.ChatCompletionRequest{
			Model: r.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are an expert software engineer reviewing a candidate's pull request for a developer assessment. You grade rigorously and justify every deduction.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.2,
		},
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from AI")
	}

	result, err := r.parseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}

	r.logger.Info("graded submission",
		zap.String("repository", bundle.Repository),
		zap.Int("pr_number", bundle.PRNumber),
		zap.Int("score", result.Score),
		zap.String("verdict", result.Verdict),
	)

	return result, nil
}

func (r *AIReviewer) buildPrompt(bundle *types.SubmissionBundle) string {
	var sb strings.Builder

	sb.WriteString("Review the following pull request submission:\n\n")
	sb.WriteString("**Repository:** " + bundle.Repository + "\n")
	sb.WriteString(fmt.Sprintf("**PR Number:** %d\n\n", bundle.PRNumber))

	diff := bundle.Diff
	if len(diff) > maxDiffChars {
		diff = diff[:maxDiffChars] + "\n... (truncated)"
	}
	sb.WriteString("## Diff\n\n```diff\n" + diff + "\n```\n\n")

	if len(bundle.Files) > 0 {
		sb.WriteString("## Changed files at head\n\n")
		paths := make([]string, 0, len(bundle.Files))
		for p := range bundle.Files {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			sb.WriteString("### " + p + "\n\n```\n" + bundle.Files[p] + "\n```\n\n")
		}
	}

	sb.WriteString("Assess correctness, code quality, test coverage, and fit to the task.\n\n")
	sb.WriteString("Format your response as:\n")
	sb.WriteString("SCORE: <integer 0-100>\n")
	sb.WriteString("VERDICT: <approve|request_changes>\n")
	sb.WriteString("FEEDBACK:\n")
	sb.WriteString("<structured feedback, one finding per line>\n")

	return sb.String()
}

// parseResponse extracts the structured result. Surrounding prose is
// tolerated; a missing or malformed score is an error so a half-parsed
// review never gets persisted as a grade.
func (r *AIReviewer) parseResponse(response string) (*types.GradingResult, error) {
	result := &types.GradingResult{
		Score:    -1,
		GradedAt: time.Now(),
	}

	var feedback []string
	inFeedback := false

	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "SCORE:"):
			raw := strings.TrimSpace(strings.TrimPrefix(trimmed, "SCORE:"))
			score, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid score %q: %w", raw, err)
			}
			if score < 0 || score > 100 {
				return nil, fmt.Errorf("score %d out of range", score)
			}
			result.Score = score
			inFeedback = false
		case strings.HasPrefix(trimmed, "VERDICT:"):
			result.Verdict = strings.TrimSpace(strings.TrimPrefix(trimmed, "VERDICT:"))
			inFeedback = false
		case strings.HasPrefix(trimmed, "FEEDBACK:"):
			inFeedback = true
		case inFeedback && trimmed != "":
			feedback = append(feedback, trimmed)
		}
	}

	if result.Score < 0 {
		return nil, fmt.Errorf("response contains no score")
	}

	result.Feedback = strings.Join(feedback, "\n")
	return result, nil
}
