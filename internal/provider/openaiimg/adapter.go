// Package openaiimg generates images through the OpenAI Images API. Unlike
// the webhook-based providers this one is synchronous: Submit blocks until the
// image is ready and returns its staged URL, so tasks complete without a
// callback round trip.
package openaiimg

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/maauso/mediagen-api/internal/provider"
	"github.com/maauso/mediagen-api/internal/stager"
)

// Static errors for the OpenAI image adapter.
var (
	// ErrAPIKeyRequired is returned when no API key is provided.
	ErrAPIKeyRequired = errors.New("openaiimg: API key is required")
	// ErrNoImage is returned when the API responds without image data.
	ErrNoImage = errors.New("openaiimg: no image returned")
)

// Adapter implements provider.Adapter for OpenAI image models.
type Adapter struct {
	client openai.Client
	stager stager.Stager
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithClient replaces the API client, used by tests.
func WithClient(client openai.Client) Option {
	return func(a *Adapter) {
		a.client = client
	}
}

// New creates an OpenAI image adapter. Generated images arrive as base64
// payloads, so st turns them into fetchable URLs.
func New(apiKey string, st stager.Stager, opts ...Option) (*Adapter, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	a := &Adapter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		stager: st,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Name returns the provider identifier.
func (a *Adapter) Name() string { return "openai" }

// Submit generates an image and returns its staged URL in the submission.
// The callback URL is ignored since there is no asynchronous leg.
func (a *Adapter) Submit(ctx context.Context, req provider.Request, _ string) (provider.Submission, error) {
	params := openai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  openai.ImageModel(req.ModelID),
		N:      openai.Int(1),
		Size:   sizeForAspect(req.AspectRatio),
	}

	resp, err := a.client.Images.Generate(ctx, params)
	if err != nil {
		return provider.Submission{}, fmt.Errorf("openaiimg: generate: %w", err)
	}
	if len(resp.Data) == 0 {
		return provider.Submission{}, ErrNoImage
	}

	img := resp.Data[0]
	if img.URL != "" {
		return provider.Submission{ResultURL: img.URL}, nil
	}
	if img.B64JSON == "" {
		return provider.Submission{}, ErrNoImage
	}

	data, err := base64.StdEncoding.DecodeString(img.B64JSON)
	if err != nil {
		return provider.Submission{}, fmt.Errorf("openaiimg: decode image: %w", err)
	}
	url, err := a.stager.Stage(ctx, data, "image/png")
	if err != nil {
		return provider.Submission{}, fmt.Errorf("openaiimg: stage image: %w", err)
	}
	return provider.Submission{ResultURL: url}, nil
}

func sizeForAspect(aspect string) openai.ImageGenerateParamsSize {
	switch aspect {
	case "3:2", "16:9":
		return openai.ImageGenerateParamsSize1536x1024
	case "2:3", "9:16":
		return openai.ImageGenerateParamsSize1024x1536
	default:
		return openai.ImageGenerateParamsSize1024x1024
	}
}

// Compile-time check that Adapter implements provider.Adapter.
var _ provider.Adapter = (*Adapter)(nil)
