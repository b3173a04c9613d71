// Package provider defines the common capability implemented by every
// generation backend. One adapter per provider translates the unified request
// into the provider's native submission call; adapters are selected through a
// registry so adding a backend never touches the orchestrator.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Errors shared by adapter implementations.
var (
	// ErrUnknownProvider is returned by the registry for an unregistered name.
	ErrUnknownProvider = errors.New("provider: unknown provider")
	// ErrCallbackURLRequired is returned when an async-only adapter is invoked
	// without a callback URL (webhook base not configured).
	ErrCallbackURLRequired = errors.New("provider: callback URL is required")
)

// Request is the unified field set submitted to any adapter. Fields a given
// provider does not support are silently omitted from the outgoing request,
// never errored. Pointer fields distinguish "unset" from zero values.
type Request struct {
	Prompt  string
	ModelID string
	// Image is an optional source image: an http(s) URL or a base64 data URI.
	// Adapters whose provider requires a fetchable URL stage inline data first.
	Image          string
	Duration       int
	AspectRatio    string
	Resolution     string
	NegativePrompt string
	CFGScale       *float64
	GenerateAudio  *bool
	CameraFixed    *bool
	Seed           *int
	Mode           string
}

// Submission is the outcome of an adapter's submit call. Exactly one of the
// two fields is set: ExternalID for async providers that will call back, or
// ResultURL for providers that complete synchronously.
type Submission struct {
	ExternalID string
	ResultURL  string
}

// Adapter submits a generation job to one backend.
type Adapter interface {
	// Name returns the provider identifier used in requests and the registry.
	Name() string

	// Submit translates the unified request into the provider's native shape
	// and submits it. callbackURL is where the provider should deliver its
	// completion webhook; async-only adapters fail when it is empty.
	// The returned external id is always the provider's own, never fabricated.
	Submit(ctx context.Context, req Request, callbackURL string) (Submission, error)
}

// Result is a provider's view of a submitted job, returned by ResultFetcher.
type Result struct {
	// Status is normalized to the task vocabulary: processing, succeeded, failed.
	Status    string
	ResultURL string
	Error     string
}

// ResultFetcher is implemented by adapters whose webhook callbacks are terse
// notifications without the artifact location, requiring a secondary fetch.
type ResultFetcher interface {
	FetchResult(ctx context.Context, externalID string) (Result, error)
}

// Registry maps provider names to adapters. Populated once at startup.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Register adds an adapter, replacing any previous entry for the same name.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

// Get returns the adapter for a provider name.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return a, nil
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
