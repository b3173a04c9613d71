package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/mediagen-api/internal/catalog"
	"github.com/maauso/mediagen-api/internal/provider"
	"github.com/maauso/mediagen-api/internal/task"
)

// fakeAdapter is a configurable provider.Adapter.
type fakeAdapter struct {
	name       string
	submission provider.Submission
	err        error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Submit(context.Context, provider.Request, string) (provider.Submission, error) {
	if f.err != nil {
		return provider.Submission{}, f.err
	}
	return f.submission, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Model{
		{Provider: "fake", ID: "model-1", Name: "Fake Model", Kind: catalog.KindVideo},
		{Provider: "orphan", ID: "model-2", Name: "Orphan Model", Kind: catalog.KindVideo},
	})
}

func newTestHandlers(t *testing.T) (*Handlers, *task.MemoryStore) {
	t.Helper()
	store := task.NewMemoryStore(time.Hour)
	registry := provider.NewRegistry(&fakeAdapter{
		name:       "fake",
		submission: provider.Submission{ExternalID: "ext-1"},
	})
	cat := testCatalog()
	svc := task.NewService(store, registry, cat, "https://api.example.com", testLogger())
	return NewHandlers(svc, cat, testLogger()), store
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestModels(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()

	h.Models(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ModelsResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	require.Contains(t, resp.Models, "fake")
	assert.Equal(t, "model-1", resp.Models["fake"][0].ID)
}

func TestSubmit_Success(t *testing.T) {
	h, store := newTestHandlers(t)

	body := SubmitRequest{
		Provider: "fake",
		ModelID:  "model-1",
		Prompt:   "a cat surfing",
	}
	bodyJSON, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/v1/generations", bytes.NewReader(bodyJSON))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp SubmitResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.TaskID)
	assert.Equal(t, "pending", resp.Status)

	// Dispatch runs in the background; the record must end up processing with
	// the provider's id attached.
	require.Eventually(t, func() bool {
		got, err := store.Get(context.Background(), resp.TaskID)
		return err == nil && got.Status == task.StatusProcessing && got.ExternalID == "ext-1"
	}, time.Second, 5*time.Millisecond)
}

func TestSubmit_InvalidJSON(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/generations", bytes.NewReader([]byte("invalid json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "INVALID_JSON", resp.Code)
}

func TestSubmit_ValidationError(t *testing.T) {
	h, _ := newTestHandlers(t)

	body := SubmitRequest{Provider: "fake", ModelID: "model-1"} // no prompt
	bodyJSON, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/v1/generations", bytes.NewReader(bodyJSON))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestSubmit_UnknownModel(t *testing.T) {
	h, _ := newTestHandlers(t)

	body := SubmitRequest{Provider: "fake", ModelID: "no-such-model", Prompt: "a cat"}
	bodyJSON, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/v1/generations", bytes.NewReader(bodyJSON))
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "MODEL_NOT_FOUND", resp.Code)
}

func TestSubmit_UnknownProvider(t *testing.T) {
	h, _ := newTestHandlers(t)

	// The model exists in the catalog but its provider has no adapter.
	body := SubmitRequest{Provider: "orphan", ModelID: "model-2", Prompt: "a cat"}
	bodyJSON, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/v1/generations", bytes.NewReader(bodyJSON))
	rec := httptest.NewRecorder()

	h.Submit(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "UNKNOWN_PROVIDER", resp.Code)
}

func TestStatus_Success(t *testing.T) {
	h, store := newTestHandlers(t)
	ctx := context.Background()

	saved := task.New("task-1", "fake", "model-1")
	require.NoError(t, store.Save(ctx, saved))

	router := NewRouter(h, NewWebhookHandlers(store, testLogger()), testLogger(), DefaultConfig())

	req := httptest.NewRequest(http.MethodGet, "/v1/generations/task-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var got task.Task
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "task-1", got.TaskID)
	assert.Equal(t, task.StatusPending, got.Status)
	assert.Equal(t, "fake", got.Provider)
}

func TestStatus_NotFound(t *testing.T) {
	h, store := newTestHandlers(t)

	router := NewRouter(h, NewWebhookHandlers(store, testLogger()), testLogger(), DefaultConfig())

	req := httptest.NewRequest(http.MethodGet, "/v1/generations/nonexistent", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "TASK_NOT_FOUND", resp.Code)
}

func TestRouter_Integration(t *testing.T) {
	h, store := newTestHandlers(t)
	router := NewRouter(h, NewWebhookHandlers(store, testLogger()), testLogger(), DefaultConfig())

	// Health endpoint
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Submit a generation
	body := SubmitRequest{Provider: "fake", ModelID: "model-1", Prompt: "a cat"}
	bodyJSON, _ := json.Marshal(body)
	req = httptest.NewRequest(http.MethodPost, "/v1/generations", bytes.NewReader(bodyJSON))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created SubmitResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	// Poll it back
	req = httptest.NewRequest(http.MethodGet, "/v1/generations/"+created.TaskID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	handler := RecoveryMiddleware(testLogger())(panicHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
}
