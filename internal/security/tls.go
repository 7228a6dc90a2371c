package security

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"
)

// DefaultTLSConfig returns the client TLS settings used for every outbound call.
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS13,
	}
}

// CreateSecureHTTPClient returns a client for provider APIs.
func CreateSecureHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		TLSClientConfig:     DefaultTLSConfig(),
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// GuardedClientOptions configures CreateGuardedHTTPClient.
type GuardedClientOptions struct {
	Timeout      time.Duration
	MaxRedirects int
	// TLS overrides the default TLS settings, for example to trust a test CA.
	TLS *tls.Config
}

// CreateGuardedHTTPClient returns a client for fetching untrusted URLs. Every
// dial and every redirect hop is checked against v.
func CreateGuardedHTTPClient(v *IPValidator, opts GuardedClientOptions) *http.Client {
	tlsCfg := opts.TLS
	if tlsCfg == nil {
		tlsCfg = DefaultTLSConfig()
	}
	transport := &http.Transport{
		TLSClientConfig:     tlsCfg,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext:         v.DialContext(&net.Dialer{Timeout: 10 * time.Second}),
		Proxy:               nil,
	}
	maxRedirects := opts.MaxRedirects
	return &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			ctx := req.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if _, err := v.ValidateURL(ctx, req.URL.String()); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
			return nil
		},
	}
}
