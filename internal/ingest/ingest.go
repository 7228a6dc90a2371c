package ingest

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"webforge/internal/cache"
	"webforge/internal/config"
	"webforge/internal/logging"
	"webforge/internal/security"
)

const (
	maxScreenshotBytes = 5 << 20
	fetchConcurrency   = 3
)

// Ingestor turns request references into a Bundle. It holds no per-request
// state and may be shared.
type Ingestor struct {
	cfg        config.IngestConfig
	validator  *security.IPValidator
	tlsConfig  *tls.Config
	client     *http.Client
	shotClient *http.Client
	// pages is nil when page caching is disabled.
	pages *cache.LRUCache[string, *Page]
}

// Option customizes an Ingestor.
type Option func(*Ingestor)

// WithValidator replaces the outbound address validator.
func WithValidator(v *security.IPValidator) Option {
	return func(i *Ingestor) { i.validator = v }
}

// WithTLSConfig overrides TLS settings for page and screenshot fetches.
func WithTLSConfig(c *tls.Config) Option {
	return func(i *Ingestor) { i.tlsConfig = c }
}

// NewIngestor creates an ingestor. Zero config values fall back to defaults.
func NewIngestor(cfg config.IngestConfig, opts ...Option) *Ingestor {
	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = config.DefaultMaxURLs
	}
	if cfg.MaxFetchBytes <= 0 {
		cfg.MaxFetchBytes = config.DefaultMaxFetchBytes
	}
	if cfg.MaxRedirects < 0 {
		cfg.MaxRedirects = config.DefaultMaxRedirects
	}
	if cfg.ContentChars <= 0 {
		cfg.ContentChars = config.DefaultContentChars
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = config.DefaultFetchTimeout
	}
	if cfg.PageCacheTTL == 0 {
		cfg.PageCacheTTL = config.DefaultPageCacheTTL
	}
	if cfg.PageCacheSize <= 0 {
		cfg.PageCacheSize = config.DefaultPageCacheSize
	}

	i := &Ingestor{cfg: cfg, validator: security.NewIPValidator()}
	if cfg.PageCacheTTL > 0 {
		i.pages = cache.NewLRUCache[string, *Page](cfg.PageCacheSize, cfg.PageCacheTTL)
	}
	for _, opt := range opts {
		opt(i)
	}

	i.client = security.CreateGuardedHTTPClient(i.validator, security.GuardedClientOptions{
		Timeout:      cfg.FetchTimeout,
		MaxRedirects: cfg.MaxRedirects,
		TLS:          i.tlsConfig,
	})
	i.shotClient = security.CreateSecureHTTPClient(cfg.FetchTimeout)
	if i.tlsConfig != nil {
		if t, ok := i.shotClient.Transport.(*http.Transport); ok {
			t.TLSClientConfig = i.tlsConfig
		}
	}
	return i
}

type urlResult struct {
	source     Source
	page       *Page
	screenshot *Screenshot
	warnings   []string
}

// Ingest gathers every reference into one Bundle. Individual URL failures are
// recorded as warnings; only context cancellation is returned as an error.
func (i *Ingestor) Ingest(ctx context.Context, in Input) (*Bundle, error) {
	b := &Bundle{Prompt: strings.TrimSpace(in.Prompt)}
	for _, img := range in.Images {
		if img.Source == "" {
			img.Source = "upload"
		}
		b.Screenshots = append(b.Screenshots, img)
	}

	urls := in.URLs
	if len(urls) > i.cfg.MaxURLs {
		b.Warnings = append(b.Warnings, fmt.Sprintf("only the first %d reference URLs are used; %d ignored", i.cfg.MaxURLs, len(urls)-i.cfg.MaxURLs))
		urls = urls[:i.cfg.MaxURLs]
	}

	results := make([]urlResult, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for idx, raw := range urls {
		g.Go(func() error {
			results[idx] = i.ingestURL(gctx, strings.TrimSpace(raw))
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := make(set)
	hints := make(set)
	tokens.add(ExtractStyleTokens(b.Prompt)...)
	hints.add(PromptHints(b.Prompt)...)

	var summary strings.Builder
	for _, r := range results {
		b.Sources = append(b.Sources, r.source)
		b.Warnings = append(b.Warnings, r.warnings...)
		if r.screenshot != nil {
			b.Screenshots = append(b.Screenshots, *r.screenshot)
		}
		if r.page == nil {
			continue
		}
		tokens.add(r.page.StyleTokens...)
		hints.add(r.page.Hints...)
		writeSummary(&summary, r.page)
	}

	b.DOMSummary = truncate(strings.TrimSpace(summary.String()), i.cfg.ContentChars*2)
	b.StyleTokens = tokens.sorted()
	b.InteractionHints = hints.sorted()
	b.Confidence = confidence(b)

	logging.Debug("references ingested",
		"urls", len(urls),
		"screenshots", len(b.Screenshots),
		"style_tokens", len(b.StyleTokens),
		"hints", len(b.InteractionHints),
		"confidence", b.Confidence,
		"warnings", len(b.Warnings))
	return b, nil
}

func (i *Ingestor) ingestURL(ctx context.Context, raw string) urlResult {
	r := urlResult{source: Source{URL: raw}}

	u, err := i.validator.ValidateURL(ctx, raw)
	if err != nil {
		r.warnings = append(r.warnings, fmt.Sprintf("reference %s skipped: %v", raw, err))
		return r
	}

	page, err := i.cachedPage(ctx, u)
	if err != nil {
		r.warnings = append(r.warnings, fmt.Sprintf("reference %s could not be fetched: %v", raw, err))
		logging.Warn("reference fetch failed", "url", raw, "error", err)
		return r
	}
	r.page = page
	r.source.OK = true
	r.source.Title = page.Title
	r.source.Description = page.Description

	if i.cfg.ScreenshotURL != "" {
		shot, err := i.fetchScreenshot(ctx, u.String())
		if err != nil {
			r.warnings = append(r.warnings, fmt.Sprintf("screenshot of %s unavailable: %v", raw, err))
		} else {
			r.screenshot = shot
		}
	}
	return r
}

func writeSummary(b *strings.Builder, p *Page) {
	title := p.Title
	if title == "" {
		title = p.URL
	}
	fmt.Fprintf(b, "## %s\nSource: %s\n", title, p.URL)
	if p.Description != "" {
		fmt.Fprintf(b, "%s\n", p.Description)
	}
	if p.Text != "" {
		fmt.Fprintf(b, "\n%s\n", p.Text)
	}
	b.WriteString("\n")
}
