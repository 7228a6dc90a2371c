package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"webforge/internal/logging"
)

const userAgent = "webforge/1.0 (+reference ingest)"

// cachedPage serves a page fetched by an earlier run when one is cached.
// Only successful fetches are cached.
func (i *Ingestor) cachedPage(ctx context.Context, u *url.URL) (*Page, error) {
	key := u.String()
	if i.pages != nil {
		if page, ok := i.pages.Get(key); ok {
			logging.Debug("reference page cache hit", "url", key)
			return page, nil
		}
	}
	page, err := i.fetchPage(ctx, u)
	if err != nil {
		return nil, err
	}
	if i.pages != nil {
		i.pages.Set(key, page)
	}
	return page, nil
}

// fetchPage downloads a reference URL and parses it. The URL must already
// have passed validation; the client re-checks each dial and redirect.
func (i *Ingestor) fetchPage(ctx context.Context, u *url.URL) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if ct != "" && !strings.Contains(ct, "html") && !strings.HasPrefix(ct, "text/") {
		return nil, fmt.Errorf("unsupported content type %q", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, i.cfg.MaxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	page, err := ParsePage(body, i.cfg.ContentChars)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	page.URL = u.String()
	return page, nil
}

// fetchScreenshot asks the configured renderer for an image of pageURL.
func (i *Ingestor) fetchScreenshot(ctx context.Context, pageURL string) (*Screenshot, error) {
	endpoint, err := url.Parse(i.cfg.ScreenshotURL)
	if err != nil {
		return nil, fmt.Errorf("invalid screenshot endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("url", pageURL)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := i.shotClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("screenshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("screenshot provider returned HTTP %d", resp.StatusCode)
	}
	mime := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("screenshot provider returned %q, not an image", mime)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxScreenshotBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxScreenshotBytes {
		return nil, fmt.Errorf("screenshot exceeds %d bytes", maxScreenshotBytes)
	}
	return &Screenshot{Source: pageURL, MIMEType: mime, Data: data}, nil
}
