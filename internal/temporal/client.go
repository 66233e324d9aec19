package temporal

import (
	"context"
	"fmt"
	"strings"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/temporal/workflows"
)

// Client wraps Temporal client functionality for the grading pipeline.
type Client struct {
	temporalClient client.Client
	logger         *zap.Logger
	taskQueue      string
}

// NewClient creates a new Temporal client.
func NewClient(address, namespace, taskQueue string, logger *zap.Logger) (*Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  address,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}

	return &Client{
		temporalClient: c,
		logger:         logger,
		taskQueue:      taskQueue,
	}, nil
}

// StartGradingWorkflow starts a grading workflow for a validated submission
// event. The workflow id is derived from the external event id, so a
// duplicate start for the same event is rejected by Temporal as well as by
// the store's dedup.
func (c *Client) StartGradingWorkflow(ctx context.Context, input workflows.GradingWorkflowInput) (string, error) {
	workflowID := "grading-" + sanitizeWorkflowID(input.ExternalEventID)

	workflowOptions := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: c.taskQueue,
	}

	we, err := c.temporalClient.ExecuteWorkflow(ctx, workflowOptions, workflows.GradingWorkflow, input)
	if err != nil {
		return "", fmt.Errorf("failed to start grading workflow: %w", err)
	}

	c.logger.Info("started grading workflow",
		zap.String("workflow_id", we.GetID()),
		zap.String("run_id", we.GetRunID()),
		zap.String("external_event_id", input.ExternalEventID),
	)

	return we.GetID(), nil
}

// GetWorkflowStatus retrieves a handle to a grading workflow.
func (c *Client) GetWorkflowStatus(ctx context.Context, workflowID string) (client.WorkflowRun, error) {
	return c.temporalClient.GetWorkflow(ctx, workflowID, ""), nil
}

// CancelWorkflow cancels a running grading workflow.
func (c *Client) CancelWorkflow(ctx context.Context, workflowID string) error {
	workflowRun := c.temporalClient.GetWorkflow(ctx, workflowID, "")
	return workflowRun.Cancel(ctx)
}

// Close closes the Temporal client.
func (c *Client) Close() {
	c.temporalClient.Close()
}

func sanitizeWorkflowID(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '#', ' ':
			return '-'
		}
		return r
	}, s)
}
