// Package replicate submits generation jobs to Replicate's predictions API.
// Submission is always asynchronous: the prediction id is returned immediately
// and the completed prediction is delivered to the callback URL.
package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/maauso/mediagen-api/internal/provider"
)

const defaultBaseURL = "https://api.replicate.com"

// Static errors for the Replicate adapter.
var (
	// ErrAPITokenRequired is returned when no API token is provided.
	ErrAPITokenRequired = errors.New("replicate: API token is required")
	// ErrNoPredictionID is returned when the create response carries no prediction id.
	ErrNoPredictionID = errors.New("replicate: no prediction id returned")
	// ErrRequestFailed is returned for non-2xx responses.
	ErrRequestFailed = errors.New("replicate: request failed")
)

// Adapter implements provider.Adapter for Replicate.
type Adapter struct {
	client *resty.Client
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBaseURL overrides the API base URL, used by tests.
func WithBaseURL(u string) Option {
	return func(a *Adapter) {
		a.client.SetBaseURL(u)
	}
}

// New creates a Replicate adapter authenticated with the given API token.
func New(apiToken string, opts ...Option) (*Adapter, error) {
	if apiToken == "" {
		return nil, ErrAPITokenRequired
	}
	a := &Adapter{
		client: resty.New().
			SetBaseURL(defaultBaseURL).
			SetAuthToken(apiToken).
			SetTimeout(30 * time.Second),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Name returns the provider identifier.
func (a *Adapter) Name() string { return "replicate" }

type predictionRequest struct {
	Input               map[string]any `json:"input"`
	Webhook             string         `json:"webhook"`
	WebhookEventsFilter []string       `json:"webhook_events_filter"`
}

// Prediction is the subset of Replicate's prediction object consumed here and
// by the webhook handler.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

// OutputURL extracts the artifact location from a prediction's output, which
// Replicate delivers as either a bare string or an array of strings.
func (p Prediction) OutputURL() string {
	var single string
	if err := json.Unmarshal(p.Output, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(p.Output, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

// ErrorMessage renders a prediction error, which Replicate returns as either
// a string or an object with a message field.
func (p Prediction) ErrorMessage() string {
	if len(p.Error) == 0 || string(p.Error) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.Error, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(p.Error, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(p.Error)
}

// Submit creates a prediction with a completion webhook and returns its id.
// Unified fields Replicate models do not take (resolution, mode) are omitted.
// Replicate accepts data URIs for the source image, so no staging is needed.
func (a *Adapter) Submit(ctx context.Context, req provider.Request, callbackURL string) (provider.Submission, error) {
	if callbackURL == "" {
		return provider.Submission{}, fmt.Errorf("replicate: %w", provider.ErrCallbackURLRequired)
	}

	input := map[string]any{
		"prompt": req.Prompt,
	}
	if req.Duration > 0 {
		input["duration"] = req.Duration
	}
	if req.Image != "" {
		input["start_image"] = req.Image
	}
	if req.AspectRatio != "" {
		input["aspect_ratio"] = req.AspectRatio
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

	body := predictionRequest{
		Input:               input,
		Webhook:             callbackURL,
		WebhookEventsFilter: []string{"completed"},
	}

	var pred Prediction
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&pred).
		Post(fmt.Sprintf("/v1/models/%s/predictions", req.ModelID))
	if err != nil {
		return provider.Submission{}, fmt.Errorf("replicate: create prediction: %w", err)
	}
	if !resp.IsSuccess() {
		return provider.Submission{}, fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode(), resp.String())
	}

	if pred.Status == "failed" {
		return provider.Submission{}, fmt.Errorf("replicate: prediction failed: %s", pred.ErrorMessage())
	}
	if pred.ID == "" {
		return provider.Submission{}, ErrNoPredictionID
	}

	return provider.Submission{ExternalID: pred.ID}, nil
}

// Compile-time check that Adapter implements provider.Adapter.
var _ provider.Adapter = (*Adapter)(nil)
