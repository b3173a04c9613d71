// Package fal submits generation jobs to fal.ai's queue API and verifies its
// webhook signatures. Submission is asynchronous: the request id is returned
// immediately and the result is delivered to the fal_webhook URL.
package fal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/maauso/mediagen-api/internal/provider"
)

const defaultQueueURL = "https://queue.fal.run"

// Static errors for the fal adapter.
var (
	// ErrAPIKeyRequired is returned when no API key is provided.
	ErrAPIKeyRequired = errors.New("fal: API key is required")
	// ErrNoRequestID is returned when the queue response carries no request id.
	ErrNoRequestID = errors.New("fal: no request id returned")
	// ErrRequestFailed is returned for non-2xx responses.
	ErrRequestFailed = errors.New("fal: request failed")
)

// Adapter implements provider.Adapter for fal.ai.
type Adapter struct {
	client *resty.Client
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithQueueURL overrides the queue base URL, used by tests.
func WithQueueURL(u string) Option {
	return func(a *Adapter) {
		a.client.SetBaseURL(u)
	}
}

// New creates a fal adapter authenticated with the given API key.
func New(apiKey string, opts ...Option) (*Adapter, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	a := &Adapter{
		client: resty.New().
			SetBaseURL(defaultQueueURL).
			SetHeader("Authorization", "Key "+apiKey).
			SetTimeout(30 * time.Second),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Name returns the provider identifier.
func (a *Adapter) Name() string { return "fal" }

type queueResponse struct {
	RequestID string `json:"request_id"`
}

// Submit enqueues a job and returns fal's request id. fal accepts data URIs
// for image_url, so inline source images pass through unstaged. Fields a model
// does not take are ignored server-side.
func (a *Adapter) Submit(ctx context.Context, req provider.Request, callbackURL string) (provider.Submission, error) {
	if callbackURL == "" {
		return provider.Submission{}, fmt.Errorf("fal: %w", provider.ErrCallbackURLRequired)
	}

	input := map[string]any{
		"prompt": req.Prompt,
	}
	if req.Duration > 0 {
		input["duration"] = req.Duration
	}
	if req.Image != "" {
		input["image_url"] = req.Image
	}
	if req.AspectRatio != "" {
		input["aspect_ratio"] = req.AspectRatio
	}
	if req.Resolution != "" {
		input["resolution"] = req.Resolution
	}
	if req.NegativePrompt != "" {
		input["negative_prompt"] = req.NegativePrompt
	}
	if req.CFGScale != nil {
		input["cfg_scale"] = *req.CFGScale
	}
	if req.GenerateAudio != nil {
		input["generate_audio"] = *req.GenerateAudio
	}
	if req.CameraFixed != nil {
		input["camera_fixed"] = *req.CameraFixed
	}
	if req.Seed != nil {
		input["seed"] = *req.Seed
	}

	var result queueResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("fal_webhook", callbackURL).
		SetBody(input).
		SetResult(&result).
		Post("/" + req.ModelID)
	if err != nil {
		return provider.Submission{}, fmt.Errorf("fal: queue submit: %w", err)
	}
	if !resp.IsSuccess() {
		return provider.Submission{}, fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode(), resp.String())
	}
	if result.RequestID == "" {
		return provider.Submission{}, ErrNoRequestID
	}

	return provider.Submission{ExternalID: result.RequestID}, nil
}

// WebhookPayload is the body fal delivers to the callback URL.
type WebhookPayload struct {
	Status    string          `json:"status"` // "OK" or "ERROR"
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	RequestID string          `json:"request_id"`
}

// ResultURL extracts the artifact location from a success payload. Video
// models nest it under video.url, image models under images[].url.
func (p WebhookPayload) ResultURL() string {
	var result struct {
		Video struct {
			URL string `json:"url"`
		} `json:"video"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	}
	if err := json.Unmarshal(p.Payload, &result); err != nil {
		return ""
	}
	if result.Video.URL != "" {
		return result.Video.URL
	}
	if len(result.Images) > 0 {
		return result.Images[0].URL
	}
	return ""
}

// Compile-time check that Adapter implements provider.Adapter.
var _ provider.Adapter = (*Adapter)(nil)
