package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/catalog"
	"github.com/clintrovert/praxis/internal/pool"
	"github.com/clintrovert/praxis/pkg/apperr"
	"github.com/clintrovert/praxis/pkg/types"
)

// Catalog is the task listing port.
type Catalog interface {
	List(ctx context.Context, filter catalog.Filter) []types.Task
	Get(ctx context.Context, id string) (types.Task, bool)
}

// Store is the persistence port for the REST surface.
type Store interface {
	CreateDeveloper(ctx context.Context, d types.Developer) (*types.Developer, error)
	CreateAssignment(ctx context.Context, task types.Task, developerID string) (*types.Assignment, error)
	GetAssignment(ctx context.Context, id string) (*types.Assignment, error)
	TransitionAssignment(ctx context.Context, id string, next types.Status) (*types.Assignment, error)
	AppendNote(ctx context.Context, assignmentID, body string) (*types.Note, error)
	ListNotes(ctx context.Context, assignmentID string) ([]types.Note, error)
}

// Metrics is the instrumentation port for the REST surface.
type Metrics interface {
	ObserveClaim(result string)
	SetLeasesInUse(n int)
}

// Handler handles REST API requests.
type Handler struct {
	catalog Catalog
	store   Store
	pool    pool.Pool
	metrics Metrics
	logger  *zap.Logger
}

// NewHandler creates a new REST handler.
func NewHandler(cat Catalog, store Store, workspaces pool.Pool, metrics Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		catalog: cat,
		store:   store,
		pool:    workspaces,
		metrics: metrics,
		logger:  logger,
	}
}

// RegisterRoutes registers REST API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/tasks", h.ListTasks)
	r.Post("/developers", h.RegisterDeveloper)
	r.Post("/assignments", h.ClaimTask)
	r.Get("/assignments/{id}", h.GetAssignment)
	r.Post("/assignments/{id}/transition", h.TransitionAssignment)
	r.Post("/assignments/{id}/notes", h.AppendNote)
	r.Post("/workspaces/acquire", h.AcquireWorkspace)
	r.Post("/workspaces/{resourceID}/release", h.ReleaseWorkspace)
	r.Get("/workspaces/{resourceID}", h.DescribeWorkspace)
}

// TaskResponse is one catalog entry.
type TaskResponse struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	Department        string `json:"department"`
	Complexity        string `json:"complexity"`
	Compensation      int    `json:"compensation"`
	EstimatedDuration string `json:"estimated_duration"`
}

// ListTasks handles GET /tasks.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := catalog.Filter{
		Department:     q.Get("department"),
		Complexity:     types.Complexity(q.Get("complexity")),
		ExcludeClaimed: q.Get("exclude_claimed") == "true",
	}

	tasks := h.catalog.List(r.Context(), filter)
	resp := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, TaskResponse{
			ID:                t.ID,
			Title:             t.Title,
			Description:       t.Description,
			Department:        t.Department,
			Complexity:        string(t.Complexity),
			Compensation:      t.Compensation,
			EstimatedDuration: t.EstimatedDuration.String(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// RegisterDeveloperRequest registers a developer.
type RegisterDeveloperRequest struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// RegisterDeveloper handles POST /developers.
func (h *Handler) RegisterDeveloper(w http.ResponseWriter, r *http.Request) {
	var req RegisterDeveloperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid request body", err))
		return
	}
	if req.Email == "" {
		apperr.WriteJSON(w, apperr.Newf(apperr.Validation, "email is required"))
		return
	}
	if req.ID == "" {
		req.ID = uuid.Must(uuid.NewV7()).String()
	}

	dev, err := h.store.CreateDeveloper(r.Context(), types.Developer{
		ID:    req.ID,
		Email: req.Email,
		Name:  req.Name,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dev)
}

// ClaimTaskRequest claims a task for a developer.
type ClaimTaskRequest struct {
	TaskID      string `json:"task_id"`
	DeveloperID string `json:"developer_id"`
	Note        string `json:"note,omitempty"`
}

// AssignmentResponse is an assignment with its notes.
type AssignmentResponse struct {
	Assignment *types.Assignment `json:"assignment"`
	Notes      []types.Note      `json:"notes,omitempty"`
}

// ClaimTask handles POST /assignments.
func (h *Handler) ClaimTask(w http.ResponseWriter, r *http.Request) {
	var req ClaimTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid request body", err))
		return
	}
	if req.TaskID == "" || req.DeveloperID == "" {
		apperr.WriteJSON(w, apperr.Newf(apperr.Validation, "task_id and developer_id are required"))
		return
	}

	task, ok := h.catalog.Get(r.Context(), req.TaskID)
	if !ok {
		h.metrics.ObserveClaim("task_not_found")
		apperr.WriteJSON(w, apperr.Newf(apperr.NotFound, "task %s not found", req.TaskID))
		return
	}

	assignment, err := h.store.CreateAssignment(r.Context(), task, req.DeveloperID)
	if err != nil {
		if apperr.IsCode(err, apperr.Conflict) {
			h.metrics.ObserveClaim("duplicate")
		} else {
			h.metrics.ObserveClaim("error")
		}
		h.writeError(w, r, err)
		return
	}
	h.metrics.ObserveClaim("created")

	if req.Note != "" {
		if _, err := h.store.AppendNote(r.Context(), assignment.ID, req.Note); err != nil {
			h.logger.Error("failed to append claim note",
				zap.String("assignment_id", assignment.ID),
				zap.Error(err),
			)
		}
	}

	writeJSON(w, http.StatusCreated, AssignmentResponse{Assignment: assignment})
}

// GetAssignment handles GET /assignments/{id}.
func (h *Handler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	assignment, err := h.store.GetAssignment(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	notes, err := h.store.ListNotes(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AssignmentResponse{Assignment: assignment, Notes: notes})
}

// TransitionRequest moves an assignment to a new status.
type TransitionRequest struct {
	Status string `json:"status"`
}

// TransitionAssignment handles POST /assignments/{id}/transition.
func (h *Handler) TransitionAssignment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid request body", err))
		return
	}

	assignment, err := h.store.TransitionAssignment(r.Context(), id, types.Status(req.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AssignmentResponse{Assignment: assignment})
}

// NoteRequest appends a note.
type NoteRequest struct {
	Body string `json:"body"`
}

// AppendNote handles POST /assignments/{id}/notes.
func (h *Handler) AppendNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid request body", err))
		return
	}
	if req.Body == "" {
		apperr.WriteJSON(w, apperr.Newf(apperr.Validation, "note body is required"))
		return
	}

	note, err := h.store.AppendNote(r.Context(), id, req.Body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// AcquireWorkspaceRequest leases a workspace resource.
type AcquireWorkspaceRequest struct {
	DeveloperID  string `json:"developer_id"`
	AssignmentID string `json:"assignment_id"`
}

// AcquireWorkspace handles POST /workspaces/acquire. An exhausted pool is a
// 503 so clients can distinguish retry-later from failure.
func (h *Handler) AcquireWorkspace(w http.ResponseWriter, r *http.Request) {
	var req AcquireWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteJSON(w, apperr.New(apperr.Validation, "invalid request body", err))
		return
	}
	if req.DeveloperID == "" {
		apperr.WriteJSON(w, apperr.Newf(apperr.Validation, "developer_id is required"))
		return
	}

	info, err := h.pool.Acquire(r.Context(), req.DeveloperID, req.AssignmentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.updateLeaseGauge(r.Context())
	writeJSON(w, http.StatusCreated, info)
}

// ReleaseWorkspace handles POST /workspaces/{resourceID}/release.
func (h *Handler) ReleaseWorkspace(w http.ResponseWriter, r *http.Request) {
	resourceID := chi.URLParam(r, "resourceID")

	if err := h.pool.Release(r.Context(), resourceID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.updateLeaseGauge(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"released": true})
}

// DescribeWorkspace handles GET /workspaces/{resourceID}. The developer_id
// query parameter identifies the caller; only the lease holder may see
// connection info.
func (h *Handler) DescribeWorkspace(w http.ResponseWriter, r *http.Request) {
	resourceID := chi.URLParam(r, "resourceID")
	developerID := r.URL.Query().Get("developer_id")

	info, err := h.pool.Describe(r.Context(), resourceID, developerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) updateLeaseGauge(ctx context.Context) {
	n, err := h.pool.InUse(ctx)
	if err != nil {
		h.logger.Warn("failed to read lease count", zap.Error(err))
		return
	}
	h.metrics.SetLeasesInUse(n)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	if code == apperr.Unknown || code == apperr.Internal {
		h.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	apperr.WriteJSON(w, err)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
