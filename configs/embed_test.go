package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/resumatch/internal/config"
)

func TestTemplates_Parse(t *testing.T) {
	for name, tmpl := range map[string]string{
		"user":    UserConfigTemplate,
		"project": ProjectConfigTemplate,
	} {
		t.Run(name, func(t *testing.T) {
			require.NotEmpty(t, tmpl)
			var cfg config.Config
			require.NoError(t, yaml.Unmarshal([]byte(tmpl), &cfg))
			assert.Equal(t, 1, cfg.Version)
		})
	}
}

func TestUserTemplate_MatchesDefaults(t *testing.T) {
	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(UserConfigTemplate), &cfg))

	def := config.NewConfig()
	assert.Equal(t, def.Embeddings.Provider, cfg.Embeddings.Provider)
	assert.Equal(t, def.Embeddings.Dimensions, cfg.Embeddings.Dimensions)
	assert.Equal(t, def.Index.Backend, cfg.Index.Backend)
	assert.Equal(t, def.Index.Metric, cfg.Index.Metric)
	assert.Equal(t, def.Matching.TopK, cfg.Matching.TopK)
	assert.Equal(t, def.Matching.Timeout, cfg.Matching.Timeout)
}
