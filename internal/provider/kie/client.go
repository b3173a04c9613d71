// Package kie submits generation jobs to KIE's unified jobs API. Both video
// and image models go through the same createTask call. Callbacks from KIE are
// terse notifications, so the webhook handler fetches the actual result via
// FetchResult before finalizing a task.
package kie

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/maauso/mediagen-api/internal/provider"
	"github.com/maauso/mediagen-api/internal/stager"
)

const defaultBaseURL = "https://api.kie.ai"

// Static errors for the KIE adapter.
var (
	// ErrAPIKeyRequired is returned when no API key is provided.
	ErrAPIKeyRequired = errors.New("kie: API key is required")
	// ErrNoTaskID is returned when createTask responds without a task id.
	ErrNoTaskID = errors.New("kie: no task id returned")
	// ErrRequestFailed is returned for non-2xx responses.
	ErrRequestFailed = errors.New("kie: request failed")
	// ErrInvalidSignature is returned when a callback signature does not match.
	ErrInvalidSignature = errors.New("kie: invalid callback signature")
)

// Adapter implements provider.Adapter and provider.ResultFetcher for KIE.
type Adapter struct {
	client *resty.Client
	stager stager.Stager
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBaseURL overrides the API base URL, used by tests.
func WithBaseURL(u string) Option {
	return func(a *Adapter) {
		a.client.SetBaseURL(u)
	}
}

// New creates a KIE adapter. KIE only accepts source images as public URLs,
// so inline data URIs are staged through st before submission.
func New(apiKey string, st stager.Stager, opts ...Option) (*Adapter, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	a := &Adapter{
		client: resty.New().
			SetBaseURL(defaultBaseURL).
			SetAuthToken(apiKey).
			SetTimeout(30 * time.Second),
		stager: st,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Name returns the provider identifier.
func (a *Adapter) Name() string { return "kie" }

type createTaskRequest struct {
	Model       string         `json:"model"`
	CallBackURL string         `json:"callBackUrl,omitempty"`
	Input       map[string]any `json:"input"`
}

type createTaskResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

// Submit creates a KIE job and returns KIE's own task id. Optional unified
// fields pass through generically; KIE ignores what a model does not take.
func (a *Adapter) Submit(ctx context.Context, req provider.Request, callbackURL string) (provider.Submission, error) {
	if callbackURL == "" {
		return provider.Submission{}, fmt.Errorf("kie: %w", provider.ErrCallbackURLRequired)
	}

	input := map[string]any{
		"prompt": req.Prompt,
	}
	if req.Duration > 0 {
		input["duration"] = strconv.Itoa(req.Duration)
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
		// KIE uses "sound" for the audio field across all models.
		input["sound"] = *req.GenerateAudio
	}
	if req.Resolution != "" {
		input["resolution"] = req.Resolution
	}
	if req.Mode != "" {
		input["mode"] = req.Mode
	}
	if req.Seed != nil {
		input["seed"] = *req.Seed
	}
	if req.Image != "" {
		imageURL, err := a.ensureImageURL(ctx, req.Image)
		if err != nil {
			return provider.Submission{}, fmt.Errorf("kie: stage source image: %w", err)
		}
		input["image_urls"] = []string{imageURL}
	}

	body := createTaskRequest{
		Model:       req.ModelID,
		CallBackURL: callbackURL,
		Input:       input,
	}

	var result createTaskResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		Post("/api/v1/jobs/createTask")
	if err != nil {
		return provider.Submission{}, fmt.Errorf("kie: create task: %w", err)
	}
	if !resp.IsSuccess() {
		return provider.Submission{}, fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode(), resp.String())
	}
	if result.Code != 200 {
		return provider.Submission{}, fmt.Errorf("%w: %s", ErrRequestFailed, result.Msg)
	}
	if result.Data.TaskID == "" {
		return provider.Submission{}, ErrNoTaskID
	}

	return provider.Submission{ExternalID: result.Data.TaskID}, nil
}

// ensureImageURL returns the image as a fetchable URL, staging inline data
// URIs through the injected stager.
func (a *Adapter) ensureImageURL(ctx context.Context, image string) (string, error) {
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return image, nil
	}
	data, contentType, err := stager.DecodeDataURI(image)
	if err != nil {
		return "", err
	}
	return a.stager.Stage(ctx, data, contentType)
}

type recordInfoResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID     string `json:"taskId"`
		State      string `json:"state"` // waiting | queuing | generating | success | fail
		ResultJSON string `json:"resultJson"`
		FailMsg    string `json:"failMsg"`
	} `json:"data"`
}

// FetchResult queries the recordInfo API for a job's outcome. KIE callbacks do
// not carry the artifact location, so the webhook handler calls this after a
// success notification.
func (a *Adapter) FetchResult(ctx context.Context, externalID string) (provider.Result, error) {
	var result recordInfoResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("taskId", externalID).
		SetResult(&result).
		Get("/api/v1/jobs/recordInfo")
	if err != nil {
		return provider.Result{}, fmt.Errorf("kie: fetch result: %w", err)
	}
	if !resp.IsSuccess() {
		return provider.Result{}, fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode(), resp.String())
	}
	if result.Code != 200 {
		return provider.Result{}, fmt.Errorf("%w: %s", ErrRequestFailed, result.Message)
	}

	switch result.Data.State {
	case "success":
		var parsed struct {
			ResultURLs []string `json:"resultUrls"`
		}
		if err := json.Unmarshal([]byte(result.Data.ResultJSON), &parsed); err != nil {
			return provider.Result{}, fmt.Errorf("kie: parse result json: %w", err)
		}
		if len(parsed.ResultURLs) == 0 {
			return provider.Result{}, fmt.Errorf("kie: task succeeded but returned no result URLs")
		}
		return provider.Result{Status: "succeeded", ResultURL: parsed.ResultURLs[0]}, nil
	case "fail":
		return provider.Result{Status: "failed", Error: result.Data.FailMsg}, nil
	default:
		return provider.Result{Status: "processing"}, nil
	}
}

// VerifyCallbackSignature checks a KIE callback's HMAC-SHA256 signature over
// "{taskID}.{timestamp}" in constant time.
func VerifyCallbackSignature(taskID, timestamp, signature, secret string) error {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s", taskID, timestamp)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// Compile-time checks for both capabilities.
var (
	_ provider.Adapter       = (*Adapter)(nil)
	_ provider.ResultFetcher = (*Adapter)(nil)
)
