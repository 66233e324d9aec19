package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clintrovert/praxis/internal/catalog"
	"github.com/clintrovert/praxis/internal/pool"
	"github.com/clintrovert/praxis/pkg/apperr"
	"github.com/clintrovert/praxis/pkg/types"
)

type stubCatalog struct {
	tasks map[string]types.Task
}

func (s *stubCatalog) List(_ context.Context, _ catalog.Filter) []types.Task {
	out := make([]types.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out
}

func (s *stubCatalog) Get(_ context.Context, id string) (types.Task, bool) {
	t, ok := s.tasks[id]
	return t, ok
}

type stubStore struct {
	developers  map[string]types.Developer
	assignments map[string]*types.Assignment
	notes       map[string][]types.Note
	active      map[string]string

	nextID int
}

func newStubStore() *stubStore {
	return &stubStore{
		developers:  make(map[string]types.Developer),
		assignments: make(map[string]*types.Assignment),
		notes:       make(map[string][]types.Note),
		active:      make(map[string]string),
	}
}

func (s *stubStore) CreateDeveloper(_ context.Context, d types.Developer) (*types.Developer, error) {
	d.CreatedAt = time.Now()
	s.developers[d.ID] = d
	return &d, nil
}

func (s *stubStore) CreateAssignment(_ context.Context, task types.Task, developerID string) (*types.Assignment, error) {
	key := task.ID + "/" + developerID
	if _, exists := s.active[key]; exists {
		return nil, apperr.Newf(apperr.Conflict, "developer %s already has an active assignment for task %s", developerID, task.ID)
	}
	s.nextID++
	a := &types.Assignment{
		ID:          fmt.Sprintf("asg-%d", s.nextID),
		TaskID:      task.ID,
		DeveloperID: developerID,
		Status:      types.StatusAssigned,
		StartDate:   time.Now(),
		DueDate:     time.Now().Add(task.EstimatedDuration),
	}
	s.assignments[a.ID] = a
	s.active[key] = a.ID
	return a, nil
}

func (s *stubStore) GetAssignment(_ context.Context, id string) (*types.Assignment, error) {
	a, ok := s.assignments[id]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "assignment %s not found", id)
	}
	return a, nil
}

func (s *stubStore) TransitionAssignment(_ context.Context, id string, next types.Status) (*types.Assignment, error) {
	a, ok := s.assignments[id]
	if !ok {
		return nil, apperr.Newf(apperr.NotFound, "assignment %s not found", id)
	}
	if !next.Valid() {
		return nil, apperr.Newf(apperr.Validation, "unknown status %s", next)
	}
	if !a.Status.CanTransitionTo(next) {
		return nil, apperr.Newf(apperr.Conflict, "cannot transition from %s to %s", a.Status, next)
	}
	a.Status = next
	if next == types.StatusCompleted {
		delete(s.active, a.TaskID+"/"+a.DeveloperID)
	}
	return a, nil
}

func (s *stubStore) AppendNote(_ context.Context, assignmentID, body string) (*types.Note, error) {
	if _, ok := s.assignments[assignmentID]; !ok {
		return nil, apperr.Newf(apperr.NotFound, "assignment %s not found", assignmentID)
	}
	note := types.Note{
		ID:           fmt.Sprintf("note-%d", len(s.notes[assignmentID])+1),
		AssignmentID: assignmentID,
		Body:         body,
		CreatedAt:    time.Now(),
	}
	s.notes[assignmentID] = append(s.notes[assignmentID], note)
	return &note, nil
}

func (s *stubStore) ListNotes(_ context.Context, assignmentID string) ([]types.Note, error) {
	return s.notes[assignmentID], nil
}

type noopMetrics struct {
	claims map[string]int
}

func (m *noopMetrics) ObserveClaim(result string) {
	if m.claims == nil {
		m.claims = make(map[string]int)
	}
	m.claims[result]++
}

func (m *noopMetrics) SetLeasesInUse(int) {}

func newTestServer(t *testing.T) (*chi.Mux, *stubStore, *noopMetrics) {
	t.Helper()

	cat := &stubCatalog{tasks: map[string]types.Task{
		"BE-1": {
			ID:                "BE-1",
			Title:             "Add pagination",
			Department:        "backend",
			Complexity:        types.ComplexityMedium,
			Compensation:      250,
			EstimatedDuration: 16 * time.Hour,
		},
	}}
	store := newStubStore()
	metrics := &noopMetrics{}
	workspaces := pool.NewMemoryPool([]types.WorkspaceResource{
		{ID: "vpn-01", Host: "gw.example.com", Username: "svc-vpn-01", CredentialRef: "vault://workspaces/vpn-01"},
	})

	h := NewHandler(cat, store, workspaces, metrics, zap.NewNop())
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	return router, store, metrics
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListTasks(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []TaskResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, "BE-1", tasks[0].ID)
	assert.Equal(t, "medium", tasks[0].Complexity)
	assert.Equal(t, 250, tasks[0].Compensation)
	assert.Equal(t, "16h0m0s", tasks[0].EstimatedDuration)
}

func TestRegisterDeveloperValidation(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/developers", RegisterDeveloperRequest{Name: "Sam"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/developers", RegisterDeveloperRequest{Email: "sam@example.com", Name: "Sam"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestClaimTask(t *testing.T) {
	router, store, metrics := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/assignments", ClaimTaskRequest{
		TaskID:      "BE-1",
		DeveloperID: "dev-1",
		Note:        "starting this weekend",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp AssignmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "BE-1", resp.Assignment.TaskID)
	assert.Equal(t, types.StatusAssigned, resp.Assignment.Status)
	assert.WithinDuration(t, time.Now().Add(16*time.Hour), resp.Assignment.DueDate, time.Minute)

	require.Len(t, store.notes[resp.Assignment.ID], 1)
	assert.Equal(t, "starting this weekend", store.notes[resp.Assignment.ID][0].Body)
	assert.Equal(t, 1, metrics.claims["created"])
}

func TestClaimTaskDuplicateActiveAssignment(t *testing.T) {
	router, _, metrics := newTestServer(t)

	req := ClaimTaskRequest{TaskID: "BE-1", DeveloperID: "dev-1"}
	rec := doJSON(t, router, http.MethodPost, "/assignments", req)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/assignments", req)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, metrics.claims["duplicate"])
}

func TestClaimTaskNotFound(t *testing.T) {
	router, _, metrics := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/assignments", ClaimTaskRequest{
		TaskID:      "BE-404",
		DeveloperID: "dev-1",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1, metrics.claims["task_not_found"])
}

func TestClaimAgainAfterCompletion(t *testing.T) {
	router, _, _ := newTestServer(t)

	req := ClaimTaskRequest{TaskID: "BE-1", DeveloperID: "dev-1"}
	rec := doJSON(t, router, http.MethodPost, "/assignments", req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp AssignmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	id := resp.Assignment.ID

	for _, status := range []string{"in_progress", "completed"} {
		rec = doJSON(t, router, http.MethodPost, "/assignments/"+id+"/transition", TransitionRequest{Status: status})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// A completed assignment no longer blocks a fresh claim of the pair.
	rec = doJSON(t, router, http.MethodPost, "/assignments", req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestTransitionAssignment(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/assignments", ClaimTaskRequest{TaskID: "BE-1", DeveloperID: "dev-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp AssignmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	id := resp.Assignment.ID

	// Skipping in_progress is rejected.
	rec = doJSON(t, router, http.MethodPost, "/assignments/"+id+"/transition", TransitionRequest{Status: "completed"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/assignments/"+id+"/transition", TransitionRequest{Status: "in_progress"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/assignments/"+id+"/transition", TransitionRequest{Status: "blocked"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/assignments/"+id+"/transition", TransitionRequest{Status: "in_progress"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/assignments/"+id+"/transition", TransitionRequest{Status: "parked"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAssignmentWithNotes(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/assignments", ClaimTaskRequest{TaskID: "BE-1", DeveloperID: "dev-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created AssignmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	id := created.Assignment.ID

	rec = doJSON(t, router, http.MethodPost, "/assignments/"+id+"/notes", NoteRequest{Body: "blocked on VPN access"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/assignments/"+id+"/notes", NoteRequest{Body: "access granted"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/assignments/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AssignmentResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Notes, 2)
	assert.Equal(t, "blocked on VPN access", resp.Notes[0].Body)
	assert.Equal(t, "access granted", resp.Notes[1].Body)

	rec = doJSON(t, router, http.MethodGet, "/assignments/asg-404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAppendNoteValidation(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/assignments/asg-1/notes", NoteRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWorkspaceLifecycle(t *testing.T) {
	router, _, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/workspaces/acquire", AcquireWorkspaceRequest{
		DeveloperID:  "dev-1",
		AssignmentID: "asg-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var info types.ConnectionInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
	assert.Equal(t, "vpn-01", info.ResourceID)
	assert.Equal(t, "gw.example.com", info.Host)

	// Single-slot pool is now exhausted.
	rec = doJSON(t, router, http.MethodPost, "/workspaces/acquire", AcquireWorkspaceRequest{DeveloperID: "dev-2"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// Only the holder may describe the lease.
	rec = doJSON(t, router, http.MethodGet, "/workspaces/vpn-01?developer_id=dev-2", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = doJSON(t, router, http.MethodGet, "/workspaces/vpn-01?developer_id=dev-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/workspaces/vpn-01/release", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/workspaces/acquire", AcquireWorkspaceRequest{DeveloperID: "dev-2"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}
