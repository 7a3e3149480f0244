package cmd

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/mem0-go/pkg/errors"
	"github.com/theapemachine/mem0-go/pkg/memory"
	"github.com/theapemachine/mem0-go/pkg/provider"
)

func TestProviderSettings(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	viper.Set("provider.timeout", "45s")
	viper.Set("provider.openai.base_url", "http://localhost:9999/v1/")
	viper.Set("provider.params", map[string]any{"temperature": 0.7, "max_tokens": 512})

	settings := providerSettings(provider.KindOpenAI)

	assert.Equal(t, "sk-from-env", settings.APIKey)
	assert.Equal(t, "http://localhost:9999/v1/", settings.BaseURL)
	assert.Equal(t, 45*time.Second, settings.Timeout)
	require.NotNil(t, settings.Params)
	assert.Equal(t, 0.7, settings.Params.Temperature)
	assert.Equal(t, 512, settings.Params.MaxTokens)
	assert.Equal(t, 0.1, settings.Params.TopP)
}

func TestNewAdapter(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := newAdapter("skynet", "")
	assert.True(t, stderrors.Is(err, errors.ErrConfiguration))

	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err = newAdapter("anthropic", "")
	assert.True(t, stderrors.Is(err, errors.ErrConfiguration))

	t.Setenv("DEEPSEEK_API_KEY", "ds-test")
	adapter, err := newAdapter("deepseek", "")
	require.NoError(t, err)
	assert.Equal(t, provider.KindDeepSeek, adapter.Kind())
	assert.Equal(t, "deepseek-chat", adapter.Model())
}

func TestNewGateway(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	gateway, err := newGateway(true)
	require.NoError(t, err)
	assert.Nil(t, gateway)

	viper.Set("memory.enabled", true)
	t.Setenv(memory.EnvAPIKey, "")

	_, err = newGateway(false)
	assert.True(t, stderrors.Is(err, errors.ErrConfiguration))

	viper.Set("memory.api_key", "m0-test")
	viper.Set("memory.cache.backend", "ristretto")
	viper.Set("memory.cache.size", 100)

	gateway, err = newGateway(false)
	require.NoError(t, err)
	assert.NotNil(t, gateway)
}
