package task

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/mediagen-api/internal/catalog"
	"github.com/maauso/mediagen-api/internal/provider"
)

// fakeAdapter is a configurable provider.Adapter.
type fakeAdapter struct {
	name        string
	submission  provider.Submission
	err         error
	gotRequest  provider.Request
	gotCallback string
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Submit(_ context.Context, req provider.Request, callbackURL string) (provider.Submission, error) {
	f.gotRequest = req
	f.gotCallback = callbackURL
	if f.err != nil {
		return provider.Submission{}, f.err
	}
	return f.submission, nil
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Model{
		{Provider: "fake", ID: "model-1", Name: "Fake Model", Kind: catalog.KindVideo},
		{Provider: "unregistered", ID: "model-2", Name: "Orphan Model", Kind: catalog.KindVideo},
	})
}

func newTestService(store Store, adapters ...provider.Adapter) *Service {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewService(store, provider.NewRegistry(adapters...), testCatalog(), "https://api.example.com", logger)
}

func TestSubmit_UnknownModelFailsFast(t *testing.T) {
	store, _ := newTestMemoryStore(time.Hour)
	svc := newTestService(store, &fakeAdapter{name: "fake"})

	_, err := svc.Submit(context.Background(), "fake", provider.Request{Prompt: "a cat", ModelID: "nope"})
	assert.ErrorIs(t, err, catalog.ErrModelNotFound)
}

func TestSubmit_UnknownProviderFailsFast(t *testing.T) {
	store, _ := newTestMemoryStore(time.Hour)
	svc := newTestService(store, &fakeAdapter{name: "fake"})

	_, err := svc.Submit(context.Background(), "unregistered", provider.Request{Prompt: "a cat", ModelID: "model-2"})
	assert.ErrorIs(t, err, provider.ErrUnknownProvider)
}

func TestSubmit_CreatesPendingAndDispatches(t *testing.T) {
	store, _ := newTestMemoryStore(time.Hour)
	adapter := &fakeAdapter{name: "fake", submission: provider.Submission{ExternalID: "ext-1"}}
	svc := newTestService(store, adapter)
	ctx := context.Background()

	created, err := svc.Submit(ctx, "fake", provider.Request{Prompt: "a cat", ModelID: "model-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.TaskID)
	assert.Equal(t, StatusPending, created.Status)

	require.Eventually(t, func() bool {
		got, err := store.Get(ctx, created.TaskID)
		return err == nil && got.Status == StatusProcessing && got.ExternalID == "ext-1"
	}, time.Second, 5*time.Millisecond)

	// The reverse index must resolve once dispatch completed.
	resolved, err := store.GetByExternalID(ctx, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, created.TaskID, resolved.TaskID)
}

func TestDispatch_AdapterErrorFailsTask(t *testing.T) {
	store, _ := newTestMemoryStore(time.Hour)
	adapter := &fakeAdapter{name: "fake", err: errors.New("quota exceeded")}
	svc := newTestService(store, adapter)
	ctx := context.Background()

	created := New("task-1", "fake", "model-1")
	require.NoError(t, store.Save(ctx, created))

	svc.dispatch(ctx, adapter, "task-1", provider.Request{Prompt: "a cat", ModelID: "model-1"})

	got, err := store.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Contains(t, got.Error, "quota exceeded")
}

func TestDispatch_SynchronousResultSucceedsImmediately(t *testing.T) {
	store, _ := newTestMemoryStore(time.Hour)
	adapter := &fakeAdapter{name: "fake", submission: provider.Submission{ResultURL: "https://cdn.example.com/img.png"}}
	svc := newTestService(store, adapter)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, New("task-1", "fake", "model-1")))

	svc.dispatch(ctx, adapter, "task-1", provider.Request{Prompt: "a cat", ModelID: "model-1"})

	got, err := store.Get(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, got.Status)
	assert.Equal(t, "https://cdn.example.com/img.png", got.ResultURL)
}

func TestDispatch_PassesCallbackURL(t *testing.T) {
	store, _ := newTestMemoryStore(time.Hour)
	adapter := &fakeAdapter{name: "fake", submission: provider.Submission{ExternalID: "ext-1"}}
	svc := newTestService(store, adapter)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, New("task-1", "fake", "model-1")))

	svc.dispatch(ctx, adapter, "task-1", provider.Request{Prompt: "a cat", ModelID: "model-1"})

	assert.Equal(t, "https://api.example.com/webhooks/fake", adapter.gotCallback)
}

func TestCallbackURL(t *testing.T) {
	store, _ := newTestMemoryStore(time.Hour)
	svc := newTestService(store)

	assert.Equal(t,
		"https://api.example.com/webhooks/replicate?taskId=task-1",
		svc.callbackURL("replicate", "task-1"))
	assert.Equal(t,
		"https://api.example.com/webhooks/fal?taskId=task-1",
		svc.callbackURL("fal", "task-1"))
	assert.Equal(t,
		"https://api.example.com/webhooks/kie",
		svc.callbackURL("kie", "task-1"))
}

func TestCallbackURL_EmptyBase(t *testing.T) {
	store, _ := newTestMemoryStore(time.Hour)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := NewService(store, provider.NewRegistry(), testCatalog(), "", logger)

	assert.Empty(t, svc.callbackURL("replicate", "task-1"))
}
