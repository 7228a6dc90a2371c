package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webforge/internal/config"
	"webforge/internal/project"
	"webforge/internal/quality"
)

func TestPrepareDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.Name = "ollama"

	params, err := Prepare(cfg, &Request{Prompt: "  portfolio site  "})
	require.NoError(t, err)
	assert.Equal(t, "portfolio site", params.Input.Prompt)
	assert.Equal(t, config.DefaultMaxRetries, params.MaxRetries)
	assert.InDelta(t, config.DefaultMaxCostUSD, params.MaxCostUSD, 1e-9)
	assert.Equal(t, project.StackFramework, params.Stack)
	assert.Equal(t, quality.ModeBalanced, params.Mode)
	assert.Equal(t, "ollama", params.Client.Provider)
}

func TestPrepareRejects(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.Name = "ollama"

	tests := []struct {
		name  string
		req   *Request
		field string
	}{
		{"nil", nil, "request"},
		{"empty", &Request{}, "prompt"},
		{"blank urls only", &Request{URLs: []string{"  ", ""}, Provider: "gemini", APIKey: "AIzaSyA-0123456789abcdefghijklmnopqrstuv"}, "prompt"},
		{"blank prompt", &Request{Prompt: " \n\t "}, "prompt"},
		{"too many retries", &Request{Prompt: "x", Constraints: Constraints{MaxRetries: intPtr(3)}}, "constraints.maxRetries"},
		{"negative retries", &Request{Prompt: "x", Constraints: Constraints{MaxRetries: intPtr(-1)}}, "constraints.maxRetries"},
		{"cost too low", &Request{Prompt: "x", Constraints: Constraints{MaxCostUSD: floatPtr(0.01)}}, "constraints.maxCostUsd"},
		{"bad stack", &Request{Prompt: "x", OutputStack: "vue"}, "outputStack"},
		{"bad mode", &Request{Prompt: "x", QualityMode: "pixel-perfect"}, "qualityMode"},
		{"missing key", &Request{Prompt: "x", Provider: "gemini"}, "apiKey"},
		{"too many urls", &Request{URLs: []string{"https://a.dev", "https://b.dev", "https://c.dev", "https://d.dev"}}, "urls"},
		{"bad image type", &Request{Images: []Image{{MIMEType: "text/plain", Data: []byte("x")}}}, "images"},
		{"empty image", &Request{Images: []Image{{MIMEType: "image/png"}}}, "images"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Prepare(cfg, tt.req)
			require.Error(t, err)
			var ie *InputError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.field, ie.Field)
			assert.True(t, IsInputError(err))
		})
	}
}

func TestPrepareAcceptsImageOnlyRequest(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Provider.Name = "ollama"

	params, err := Prepare(cfg, &Request{Images: []Image{{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}}})
	require.NoError(t, err)
	require.Len(t, params.Input.Images, 1)
	assert.Equal(t, "upload", params.Input.Images[0].Source)
}
