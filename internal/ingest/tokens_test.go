package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractStyleTokens(t *testing.T) {
	css := `
		body { font-family: "Inter", sans-serif; color: #FFF; background: #0f172a; }
		.card { padding: 16px; border-radius: 12px; gap: 1.5rem; }
	`
	markup := `<div class="hero-banner"><button className="btn primary">Go</button></div>`

	tokens := ExtractStyleTokens(css + markup)

	assert.Contains(t, tokens, "#ffffff")
	assert.Contains(t, tokens, "#0f172a")
	assert.Contains(t, tokens, "font:inter")
	assert.Contains(t, tokens, "spacing:16px")
	assert.Contains(t, tokens, "spacing:1.5rem")
	assert.Contains(t, tokens, "radius:12px")
	assert.Contains(t, tokens, "component:hero")
	assert.Contains(t, tokens, "component:button")
}

func TestExtractStyleTokensDeduplicates(t *testing.T) {
	tokens := ExtractStyleTokens("#abc #AABBCC #aabbcc")
	assert.Equal(t, []string{"#aabbcc"}, tokens)
}

func TestExtractStyleTokensSkipsVariables(t *testing.T) {
	tokens := ExtractStyleTokens(`font-family: var(--font-sans);`)
	assert.Empty(t, tokens)
}

func TestPromptHints(t *testing.T) {
	hints := PromptHints("A landing page with a Dark Mode toggle and a pricing modal")
	assert.Equal(t, []string{"interaction:dark mode", "interaction:modal", "interaction:toggle"}, hints)
}

func TestHintPresent(t *testing.T) {
	code := `<form><input name="email"></form><button>subscribe now</button> darkmode dark mode`

	assert.True(t, HintPresent("form:3-fields", code))
	assert.True(t, HintPresent("button:subscribe now", code))
	assert.True(t, HintPresent("interaction:dark mode", code))
	assert.False(t, HintPresent("link:pricing", code))
	assert.False(t, HintPresent("interaction:carousel", code))
}

func TestConfidence(t *testing.T) {
	assert.InDelta(t, 0.1, confidence(&Bundle{}), 1e-9)
	assert.InDelta(t, 0.25, confidence(&Bundle{Prompt: "x"}), 1e-9)

	full := &Bundle{
		Prompt:           "x",
		Screenshots:      []Screenshot{{Source: "upload"}},
		Sources:          []Source{{URL: "https://example.com", OK: true}},
		StyleTokens:      []string{"a", "b", "c"},
		InteractionHints: []string{"a", "b"},
	}
	assert.InDelta(t, 0.99, confidence(full), 1e-9)
}
