// Package catalog holds the static registry of supported generation models.
// Submit requests are validated against it before any task record is created,
// and the HTTP surface serves it so clients can populate model selectors.
// Adding a model is appending one entry here.
package catalog

import (
	"errors"
	"fmt"
)

// Kind distinguishes what a model produces.
type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
)

// ErrModelNotFound is returned when a (provider, modelId) pair is unsupported.
var ErrModelNotFound = errors.New("catalog: model not found")

// Capabilities flags which unified request fields a model honours. Fields not
// flagged here are dropped by the adapter, not rejected.
type Capabilities struct {
	AspectRatios   []string `json:"aspectRatios,omitempty"`
	Resolutions    []string `json:"resolutions,omitempty"`
	NegativePrompt bool     `json:"negativePrompt,omitempty"`
	CFGScale       bool     `json:"cfgScale,omitempty"`
	GenerateAudio  bool     `json:"generateAudio,omitempty"`
	CameraFixed    bool     `json:"cameraFixed,omitempty"`
	Seed           bool     `json:"seed,omitempty"`
	ImageInput     bool     `json:"imageInput,omitempty"`
}

// Model describes one supported generation model.
type Model struct {
	Provider     string       `json:"provider"`
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Kind         Kind         `json:"kind"`
	Durations    []int        `json:"durations,omitempty"`
	Capabilities Capabilities `json:"capabilities"`
}

// Catalog is an immutable model registry.
type Catalog struct {
	models []Model
	index  map[string]Model
}

func indexKey(providerName, modelID string) string {
	return providerName + "/" + modelID
}

// New builds a catalog from the given models.
func New(models []Model) *Catalog {
	c := &Catalog{
		models: models,
		index:  make(map[string]Model, len(models)),
	}
	for _, m := range models {
		c.index[indexKey(m.Provider, m.ID)] = m
	}
	return c
}

// Default returns the catalog of models this deployment supports.
func Default() *Catalog {
	return New(defaultModels)
}

// Find returns the model for a (provider, modelId) pair.
func (c *Catalog) Find(providerName, modelID string) (Model, error) {
	m, ok := c.index[indexKey(providerName, modelID)]
	if !ok {
		return Model{}, fmt.Errorf("%w: %s/%s", ErrModelNotFound, providerName, modelID)
	}
	return m, nil
}

// Models returns all registered models.
func (c *Catalog) Models() []Model {
	out := make([]Model, len(c.models))
	copy(out, c.models)
	return out
}

// ByProvider groups models by provider name.
func (c *Catalog) ByProvider() map[string][]Model {
	grouped := make(map[string][]Model)
	for _, m := range c.models {
		grouped[m.Provider] = append(grouped[m.Provider], m)
	}
	return grouped
}

var defaultModels = []Model{
	// Video, replicate
	{
		Provider: "replicate", ID: "kwaivgi/kling-v2.5-turbo-pro", Name: "Kling 2.5 Turbo Pro",
		Kind: KindVideo, Durations: []int{5, 10},
		Capabilities: Capabilities{AspectRatios: []string{"16:9", "9:16", "1:1"}, NegativePrompt: true, CFGScale: true},
	},
	{
		Provider: "replicate", ID: "kwaivgi/kling-v2.6", Name: "Kling 2.6",
		Kind: KindVideo, Durations: []int{5, 10},
		Capabilities: Capabilities{AspectRatios: []string{"16:9", "9:16", "1:1"}, NegativePrompt: true, GenerateAudio: true, ImageInput: true},
	},
	{
		Provider: "replicate", ID: "bytedance/seedance-1.5-pro", Name: "Seedance 1.5 Pro",
		Kind: KindVideo, Durations: []int{5, 10},
		Capabilities: Capabilities{AspectRatios: []string{"21:9", "16:9", "4:3", "1:1", "3:4", "9:16"}, Resolutions: []string{"480p", "720p"}, GenerateAudio: true, CameraFixed: true, Seed: true, ImageInput: true},
	},

	// Video, fal
	{
		Provider: "fal", ID: "fal-ai/kling-video/v2.6/pro/text-to-video", Name: "Kling 2.6 Pro",
		Kind: KindVideo, Durations: []int{5, 10},
		Capabilities: Capabilities{AspectRatios: []string{"16:9", "9:16", "1:1"}, NegativePrompt: true, CFGScale: true, GenerateAudio: true},
	},
	{
		Provider: "fal", ID: "fal-ai/kling-video/v2.6/pro/image-to-video", Name: "Kling 2.6 Pro (I2V)",
		Kind: KindVideo, Durations: []int{5, 10},
		Capabilities: Capabilities{NegativePrompt: true, GenerateAudio: true, ImageInput: true},
	},
	{
		Provider: "fal", ID: "fal-ai/bytedance/seedance/v1.5/pro/text-to-video", Name: "Seedance 1.5 Pro",
		Kind: KindVideo, Durations: []int{5, 10},
		Capabilities: Capabilities{AspectRatios: []string{"21:9", "16:9", "4:3", "1:1", "3:4", "9:16"}, Resolutions: []string{"480p", "720p"}, GenerateAudio: true, CameraFixed: true, Seed: true},
	},
	{
		Provider: "fal", ID: "fal-ai/wan/v2.6/text-to-video", Name: "Wan 2.6",
		Kind: KindVideo, Durations: []int{5, 10, 15},
		Capabilities: Capabilities{AspectRatios: []string{"16:9", "9:16", "1:1", "4:3", "3:4"}, Resolutions: []string{"720p", "1080p"}, NegativePrompt: true, Seed: true},
	},

	// Video, kie
	{
		Provider: "kie", ID: "kling-2.6/text-to-video", Name: "Kling 2.6",
		Kind: KindVideo, Durations: []int{5, 10},
		Capabilities: Capabilities{AspectRatios: []string{"16:9", "9:16", "1:1"}, NegativePrompt: true, CFGScale: true, GenerateAudio: true},
	},
	{
		Provider: "kie", ID: "kling-2.6/image-to-video", Name: "Kling 2.6 (I2V)",
		Kind: KindVideo, Durations: []int{5, 10},
		Capabilities: Capabilities{NegativePrompt: true, GenerateAudio: true, ImageInput: true},
	},

	// Image, kie (async, same job API as video)
	{
		Provider: "kie", ID: "nano-banana-pro", Name: "Nano Banana Pro",
		Kind: KindImage,
		Capabilities: Capabilities{AspectRatios: []string{"1:1", "16:9", "9:16"}, Resolutions: []string{"1K", "2K", "4K"}, ImageInput: true},
	},

	// Image, openai (synchronous)
	{
		Provider: "openai", ID: "gpt-image-1", Name: "GPT Image 1",
		Kind: KindImage,
		Capabilities: Capabilities{AspectRatios: []string{"1:1", "3:2", "2:3"}},
	},
}
