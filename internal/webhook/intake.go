// Package webhook receives signed GitHub pull-request events and routes
// validated submissions into the grading pipeline.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/temporal/workflows"
	"github.com/clintrovert/praxis/pkg/types"
)

// Version 1 of the PR-body correlation contract: the body must carry one of
// these markers on its own line. Matching is case-insensitive.
var (
	applicationIDPattern    = regexp.MustCompile(`(?mi)^\s*Application ID:\s*([A-Za-z0-9-]+)\s*$`)
	applicationEmailPattern = regexp.MustCompile(`(?mi)^\s*Application Email:\s*([^\s@]+@[^\s@.]+(?:\.[^\s@.]+)+)\s*$`)
)

// Actions that carry a gradeable submission. Everything else is
// acknowledged and ignored.
var processedActions = map[string]bool{
	"opened":      true,
	"synchronize": true,
}

// EventStore is the persistence port for intake.
type EventStore interface {
	RecordEvent(ctx context.Context, ev types.SubmissionEvent) (bool, error)
	GetEvent(ctx context.Context, externalEventID string) (*types.SubmissionEvent, error)
	UpdateEventStatus(ctx context.Context, externalEventID string, status types.EventStatus, assignmentID string) error
	GetAssignment(ctx context.Context, id string) (*types.Assignment, error)
	ActiveAssignmentsByEmail(ctx context.Context, email string) ([]types.Assignment, error)
	RecordSubmission(ctx context.Context, assignmentID, submissionRef string, at time.Time) error
}

// GradingStarter starts the async grading job for a routed event.
type GradingStarter interface {
	StartGradingWorkflow(ctx context.Context, input workflows.GradingWorkflowInput) (string, error)
}

// Metrics is the instrumentation port for intake outcomes.
type Metrics interface {
	ObserveWebhookEvent(outcome string)
	ObserveGradingStart(result string)
}

// Intake verifies, deduplicates and routes inbound webhook events.
type Intake struct {
	secret  []byte
	store   EventStore
	trigger GradingStarter
	metrics Metrics
	logger  *zap.Logger
	timeout time.Duration
}

// NewIntake creates a webhook intake.
func NewIntake(secret string, store EventStore, trigger GradingStarter, metrics Metrics, timeout time.Duration, logger *zap.Logger) *Intake {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Intake{
		secret:  []byte(secret),
		store:   store,
		trigger: trigger,
		metrics: metrics,
		logger:  logger,
		timeout: timeout,
	}
}

// RegisterRoutes registers webhook routes.
func (i *Intake) RegisterRoutes(r chi.Router) {
	r.Post("/github", i.HandleGitHub)
}

// HandleGitHub handles POST /webhooks/github. Signature verification is a
// hard gate: any failure is a 401 with no further processing. Ignorable,
// duplicate and permanently unresolvable events are all acknowledged with
// 200 so the sender does not retry them forever.
func (i *Intake) HandleGitHub(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), i.timeout)
	defer cancel()

	if len(i.secret) == 0 {
		i.metrics.ObserveWebhookEvent("verification_failed")
		http.Error(w, "webhook secret not configured", http.StatusUnauthorized)
		return
	}

	payload, err := github.ValidatePayload(r, i.secret)
	if err != nil {
		i.metrics.ObserveWebhookEvent("verification_failed")
		i.logger.Warn("webhook signature verification failed", zap.Error(err))
		http.Error(w, "signature verification failed", http.StatusUnauthorized)
		return
	}

	event, err := github.ParseWebHook(github.WebHookType(r), payload)
	if err != nil {
		i.metrics.ObserveWebhookEvent("malformed")
		http.Error(w, "unparseable payload", http.StatusBadRequest)
		return
	}

	prEvent, ok := event.(*github.PullRequestEvent)
	if !ok {
		i.respond(w, http.StatusOK, "ignored")
		i.metrics.ObserveWebhookEvent("ignored")
		return
	}

	action := prEvent.GetAction()
	if !processedActions[action] {
		i.respond(w, http.StatusOK, "ignored")
		i.metrics.ObserveWebhookEvent("ignored")
		return
	}

	repo := prEvent.GetRepo().GetFullName()
	prNumber := prEvent.GetPullRequest().GetNumber()
	if repo == "" || prNumber == 0 {
		i.metrics.ObserveWebhookEvent("malformed")
		http.Error(w, "payload missing repository or PR number", http.StatusBadRequest)
		return
	}

	externalID := fmt.Sprintf("%s#%d/%s", repo, prNumber, github.DeliveryID(r))

	// Resolve before claiming the event row so a resolvable event is
	// recorded with its assignment in one pass.
	assignment, correlation := i.resolve(ctx, prEvent.GetPullRequest().GetBody())

	status := types.EventReceived
	assignmentID := ""
	if assignment == nil {
		status = types.EventUnresolved
	} else {
		assignmentID = assignment.ID
	}

	inserted, err := i.store.RecordEvent(ctx, types.SubmissionEvent{
		ExternalEventID: externalID,
		Correlation:     correlation,
		AssignmentID:    assignmentID,
		Repository:      repo,
		PRNumber:        prNumber,
		Action:          action,
		Status:          status,
		SignatureValid:  true,
		ReceivedAt:      time.Now(),
	})
	if err != nil {
		i.logger.Error("failed to record submission event",
			zap.String("external_event_id", externalID),
			zap.Error(err),
		)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if !inserted {
		// Same external id seen before. Only a failed trigger start may
		// retry; anything else short-circuits without re-invoking grading.
		existing, err := i.store.GetEvent(ctx, externalID)
		if err != nil || existing.Status != types.EventFailed {
			i.respond(w, http.StatusOK, "duplicate")
			i.metrics.ObserveWebhookEvent("duplicate")
			return
		}
		if assignment == nil {
			i.respond(w, http.StatusOK, "unresolved")
			i.metrics.ObserveWebhookEvent("unresolved")
			return
		}
	}

	if assignment == nil {
		i.logger.Warn("webhook correlation unresolved",
			zap.String("external_event_id", externalID),
			zap.String("correlation", correlation),
		)
		i.respond(w, http.StatusOK, "unresolved")
		i.metrics.ObserveWebhookEvent("unresolved")
		return
	}

	i.route(ctx, w, prEvent, externalID, assignment)
}

// route stamps submission metadata and starts the grading workflow.
func (i *Intake) route(ctx context.Context, w http.ResponseWriter, prEvent *github.PullRequestEvent, externalID string, assignment *types.Assignment) {
	submissionRef := prEvent.GetPullRequest().GetHTMLURL()
	if err := i.store.RecordSubmission(ctx, assignment.ID, submissionRef, time.Now()); err != nil {
		i.logger.Error("failed to record submission metadata",
			zap.String("assignment_id", assignment.ID),
			zap.Error(err),
		)
		i.failEvent(ctx, externalID, assignment.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	owner := prEvent.GetRepo().GetOwner().GetLogin()
	name := prEvent.GetRepo().GetName()
	_, err := i.trigger.StartGradingWorkflow(ctx, workflows.GradingWorkflowInput{
		ExternalEventID: externalID,
		AssignmentID:    assignment.ID,
		RepositoryOwner: owner,
		RepositoryName:  name,
		PRNumber:        prEvent.GetPullRequest().GetNumber(),
		SubmissionRef:   submissionRef,
	})
	if err != nil {
		i.logger.Error("failed to start grading workflow",
			zap.String("external_event_id", externalID),
			zap.Error(err),
		)
		i.metrics.ObserveGradingStart("error")
		i.failEvent(ctx, externalID, assignment.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	i.metrics.ObserveGradingStart("started")

	if err := i.store.UpdateEventStatus(ctx, externalID, types.EventRouted, assignment.ID); err != nil {
		// The workflow is running; a redelivery retry would be deduped by
		// the workflow id, so log and acknowledge.
		i.logger.Error("failed to finalize event status",
			zap.String("external_event_id", externalID),
			zap.Error(err),
		)
	}

	i.respond(w, http.StatusOK, "routed")
	i.metrics.ObserveWebhookEvent("routed")
}

// resolve extracts the correlation marker from the PR body and resolves it
// to an assignment. An email matching zero or multiple active assignments is
// ambiguous and stays unresolved.
func (i *Intake) resolve(ctx context.Context, body string) (*types.Assignment, string) {
	if m := applicationIDPattern.FindStringSubmatch(body); m != nil {
		id := m[1]
		assignment, err := i.store.GetAssignment(ctx, id)
		if err != nil {
			return nil, id
		}
		return assignment, id
	}

	if m := applicationEmailPattern.FindStringSubmatch(body); m != nil {
		email := m[1]
		assignments, err := i.store.ActiveAssignmentsByEmail(ctx, email)
		if err != nil || len(assignments) != 1 {
			return nil, email
		}
		return &assignments[0], email
	}

	return nil, ""
}

func (i *Intake) failEvent(ctx context.Context, externalID, assignmentID string) {
	if err := i.store.UpdateEventStatus(ctx, externalID, types.EventFailed, assignmentID); err != nil {
		i.logger.Error("failed to mark event failed",
			zap.String("external_event_id", externalID),
			zap.Error(err),
		)
	}
}

func (i *Intake) respond(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
