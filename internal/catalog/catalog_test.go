package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFind(t *testing.T) {
	c := Default()

	m, err := c.Find("replicate", "kwaivgi/kling-v2.6")
	require.NoError(t, err)
	assert.Equal(t, "replicate", m.Provider)
	assert.Equal(t, KindVideo, m.Kind)
}

func TestFind_UnknownModel(t *testing.T) {
	c := Default()

	_, err := c.Find("replicate", "does/not-exist")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestFind_ModelBoundToProvider(t *testing.T) {
	c := Default()

	// The id exists, but under a different provider.
	_, err := c.Find("fal", "kwaivgi/kling-v2.6")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestByProvider(t *testing.T) {
	c := Default()

	grouped := c.ByProvider()
	assert.Contains(t, grouped, "replicate")
	assert.Contains(t, grouped, "fal")
	assert.Contains(t, grouped, "kie")
	assert.Contains(t, grouped, "openai")

	total := 0
	for _, models := range grouped {
		total += len(models)
	}
	assert.Equal(t, len(c.Models()), total)
}

func TestModels_ReturnsCopy(t *testing.T) {
	c := Default()

	models := c.Models()
	require.NotEmpty(t, models)
	models[0].Name = "mutated"

	assert.NotEqual(t, "mutated", c.Models()[0].Name)
}
