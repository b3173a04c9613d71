// Package server provides the HTTP surface for the generation API.
// It includes handlers, webhook receivers, middleware, routes, and DTOs
// separated from domain types.
package server

import "github.com/maauso/mediagen-api/internal/catalog"

// SubmitRequest is the HTTP request body for starting a generation.
// Fields beyond prompt, provider and modelId are optional; whether a model
// honours them is described by the catalog, and adapters drop what a model
// does not take.
type SubmitRequest struct {
	// Provider selects the upstream service ("replicate", "fal", "kie", "openai").
	Provider string `json:"provider" validate:"required"`
	// ModelID is the provider-scoped model identifier.
	ModelID string `json:"modelId" validate:"required"`
	// Prompt is the generation prompt.
	Prompt string `json:"prompt" validate:"required"`
	// Image is an optional source image, either an http(s) URL or a base64 data URI.
	Image string `json:"image,omitempty"`
	// Duration is the clip length in seconds for video models.
	Duration int `json:"duration,omitempty" validate:"omitempty,min=1,max=60"`
	// AspectRatio like "16:9".
	AspectRatio string `json:"aspectRatio,omitempty"`
	// Resolution like "720p".
	Resolution     string   `json:"resolution,omitempty"`
	NegativePrompt string   `json:"negativePrompt,omitempty"`
	CFGScale       *float64 `json:"cfgScale,omitempty"`
	GenerateAudio  *bool    `json:"generateAudio,omitempty"`
	CameraFixed    *bool    `json:"cameraFixed,omitempty"`
	Seed           *int     `json:"seed,omitempty"`
	// Mode selects a provider-specific quality tier where supported.
	Mode string `json:"mode,omitempty"`
}

// SubmitResponse is the HTTP response after accepting a generation.
type SubmitResponse struct {
	// TaskID is the identifier to poll for status.
	TaskID string `json:"taskId"`
	// Status is the initial task status.
	Status string `json:"status"`
}

// ModelsResponse lists the supported models grouped by provider.
type ModelsResponse struct {
	Models map[string][]catalog.Model `json:"models"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
