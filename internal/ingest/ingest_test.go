package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webforge/internal/config"
	"webforge/internal/security"
)

const samplePage = `<!doctype html>
<html>
<head>
  <title>Acme Analytics</title>
  <meta name="description" content="Dashboards for busy teams">
  <style>
    :root { --brand: #6366f1; }
    body { font-family: 'Space Grotesk', system-ui; background: #0b1020; }
    .card { border-radius: 16px; padding: 24px; }
  </style>
  <script>var ignored = "#123456";</script>
</head>
<body>
  <nav class="navbar"><a href="/pricing">Pricing</a><a href="/docs">Docs</a></nav>
  <section class="hero"><h1>Ship insights faster</h1><p>Realtime metrics.</p>
    <button>Start free trial</button></section>
  <form><input type="email" name="email"><input type="hidden" name="t"><input type="submit" value="Subscribe"></form>
</body>
</html>`

func newTestIngestor(t *testing.T, srv *httptest.Server, cfg config.IngestConfig) *Ingestor {
	t.Helper()
	v := security.NewIPValidator()
	require.NoError(t, v.AllowNetwork("127.0.0.0/8"))
	tlsCfg := srv.Client().Transport.(*http.Transport).TLSClientConfig
	return NewIngestor(cfg, WithValidator(v), WithTLSConfig(tlsCfg))
}

func TestParsePage(t *testing.T) {
	page, err := ParsePage([]byte(samplePage), 4000)
	require.NoError(t, err)

	assert.Equal(t, "Acme Analytics", page.Title)
	assert.Equal(t, "Dashboards for busy teams", page.Description)
	assert.Contains(t, page.Text, "Ship insights faster")
	assert.NotContains(t, page.Text, "ignored")

	assert.Contains(t, page.StyleTokens, "#6366f1")
	assert.Contains(t, page.StyleTokens, "font:space grotesk")
	assert.Contains(t, page.StyleTokens, "radius:16px")
	assert.Contains(t, page.StyleTokens, "component:navbar")
	assert.NotContains(t, page.StyleTokens, "#123456")

	assert.Contains(t, page.Hints, "button:start free trial")
	assert.Contains(t, page.Hints, "button:subscribe")
	assert.Contains(t, page.Hints, "link:pricing")
	assert.Contains(t, page.Hints, "form:1-fields")
}

func TestParsePageTruncatesText(t *testing.T) {
	body := "<html><body><p>" + strings.Repeat("word ", 500) + "</p></body></html>"
	page, err := ParsePage([]byte(body), 100)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(page.Text), 103)
	assert.True(t, strings.HasSuffix(page.Text, "..."))
}

func TestIngestFetchesReferences(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, samplePage)
	}))
	defer srv.Close()

	ing := newTestIngestor(t, srv, config.IngestConfig{})
	b, err := ing.Ingest(context.Background(), Input{
		Prompt: "Analytics landing page with a pricing toggle",
		URLs:   []string{srv.URL + "/"},
	})
	require.NoError(t, err)

	require.Len(t, b.Sources, 1)
	assert.True(t, b.Sources[0].OK)
	assert.Equal(t, "Acme Analytics", b.Sources[0].Title)
	assert.Contains(t, b.DOMSummary, "Ship insights faster")
	assert.Contains(t, b.StyleTokens, "#0b1020")
	assert.Contains(t, b.InteractionHints, "interaction:toggle")
	assert.Contains(t, b.InteractionHints, "link:pricing")
	assert.Empty(t, b.Warnings)
	assert.InDelta(t, 0.75, b.Confidence, 1e-9)
}

func TestIngestReusesCachedPages(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, samplePage)
	}))
	defer srv.Close()

	in := Input{Prompt: "dashboard", URLs: []string{srv.URL + "/"}}
	ing := newTestIngestor(t, srv, config.IngestConfig{})
	for n := 0; n < 2; n++ {
		b, err := ing.Ingest(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, "Acme Analytics", b.Sources[0].Title)
	}
	assert.Equal(t, int32(1), hits.Load())

	uncached := newTestIngestor(t, srv, config.IngestConfig{PageCacheTTL: -1})
	for n := 0; n < 2; n++ {
		_, err := uncached.Ingest(context.Background(), in)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestIngestNonHTTPSBecomesWarning(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, samplePage)
	}))
	defer srv.Close()

	ing := newTestIngestor(t, srv, config.IngestConfig{})
	b, err := ing.Ingest(context.Background(), Input{
		Prompt: "a portfolio",
		URLs:   []string{"http://example.com", srv.URL},
	})
	require.NoError(t, err)

	require.Len(t, b.Sources, 2)
	assert.False(t, b.Sources[0].OK)
	assert.True(t, b.Sources[1].OK)
	require.Len(t, b.Warnings, 1)
	assert.Contains(t, b.Warnings[0], "http://example.com")
	assert.Contains(t, b.Warnings[0], "only https")
}

func TestIngestBlocksPrivateAddresses(t *testing.T) {
	ing := NewIngestor(config.IngestConfig{})
	b, err := ing.Ingest(context.Background(), Input{
		URLs: []string{"https://127.0.0.1/", "https://10.1.2.3/admin", "https://localhost/"},
	})
	require.NoError(t, err)
	require.Len(t, b.Warnings, 3)
	for _, s := range b.Sources {
		assert.False(t, s.OK)
	}
	assert.InDelta(t, 0.1, b.Confidence, 1e-9)
}

func TestIngestLimitsURLCount(t *testing.T) {
	ing := NewIngestor(config.IngestConfig{MaxURLs: 1})
	b, err := ing.Ingest(context.Background(), Input{
		URLs: []string{"http://a.example", "http://b.example"},
	})
	require.NoError(t, err)
	assert.Len(t, b.Sources, 1)
	assert.Len(t, b.Warnings, 2)
}

func TestIngestRedirectLimit(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			fmt.Fprint(w, samplePage)
			return
		}
		var n int
		fmt.Sscanf(r.URL.Path, "/hop/%d", &n)
		target := fmt.Sprintf("/hop/%d", n+1)
		if n >= 3 {
			target = "/final"
		}
		http.Redirect(w, r, srv.URL+target, http.StatusFound)
	}))
	defer srv.Close()

	ing := newTestIngestor(t, srv, config.IngestConfig{MaxRedirects: 2})

	b, err := ing.Ingest(context.Background(), Input{URLs: []string{srv.URL + "/hop/0"}})
	require.NoError(t, err)
	assert.False(t, b.Sources[0].OK)
	require.Len(t, b.Warnings, 1)
	assert.Contains(t, b.Warnings[0], "redirects")

	b, err = ing.Ingest(context.Background(), Input{URLs: []string{srv.URL + "/hop/2"}})
	require.NoError(t, err)
	assert.True(t, b.Sources[0].OK)
}

func TestIngestCapsResponseSize(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><head><title>Big</title></head><body>")
		fmt.Fprint(w, strings.Repeat("<p>filler</p>", 10000))
		fmt.Fprint(w, "<button>Hidden past the cap</button></body></html>")
	}))
	defer srv.Close()

	ing := newTestIngestor(t, srv, config.IngestConfig{MaxFetchBytes: 2048})
	b, err := ing.Ingest(context.Background(), Input{URLs: []string{srv.URL}})
	require.NoError(t, err)
	assert.True(t, b.Sources[0].OK)
	assert.Equal(t, "Big", b.Sources[0].Title)
	assert.NotContains(t, b.InteractionHints, "button:hidden past the cap")
}

func TestIngestScreenshotFailureIsWarning(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/shot" {
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, "renderer offline")
			return
		}
		fmt.Fprint(w, samplePage)
	}))
	defer srv.Close()

	ing := newTestIngestor(t, srv, config.IngestConfig{ScreenshotURL: srv.URL + "/shot"})
	b, err := ing.Ingest(context.Background(), Input{URLs: []string{srv.URL}})
	require.NoError(t, err)
	assert.True(t, b.Sources[0].OK)
	assert.Empty(t, b.Screenshots)
	require.Len(t, b.Warnings, 1)
	assert.Contains(t, b.Warnings[0], "screenshot")
}

func TestIngestScreenshot(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/shot" {
			w.Header().Set("Content-Type", "image/png")
			w.Write(png)
			return
		}
		fmt.Fprint(w, samplePage)
	}))
	defer srv.Close()

	ing := newTestIngestor(t, srv, config.IngestConfig{ScreenshotURL: srv.URL + "/shot"})
	b, err := ing.Ingest(context.Background(), Input{
		Images: []Screenshot{{MIMEType: "image/jpeg", Data: []byte{1, 2}}},
		URLs:   []string{srv.URL},
	})
	require.NoError(t, err)
	require.Len(t, b.Screenshots, 2)
	assert.Equal(t, "upload", b.Screenshots[0].Source)
	assert.Equal(t, srv.URL, b.Screenshots[1].Source)
	assert.Equal(t, png, b.Screenshots[1].Data)
}
