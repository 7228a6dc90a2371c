// Package server exposes the generation pipeline over HTTP: an NDJSON
// streaming endpoint and a websocket endpoint carrying the same lines.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"webforge/internal/config"
	"webforge/internal/events"
	"webforge/internal/logging"
	"webforge/internal/pipeline"
	"webforge/internal/ratelimit"
)

// Server serves generation requests.
type Server struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	limiter  *ratelimit.Limiter
	handler  http.Handler
}

// New creates a server for p.
func New(cfg *config.Config, p *pipeline.Pipeline) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: p,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.Server.RequestsPerMinute,
			BurstSize:         cfg.Server.Burst,
		}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("POST /api/generate", s.withRateLimit(http.HandlerFunc(s.handleGenerate)))
	mux.Handle("GET /api/generate/ws", s.withRateLimit(http.HandlerFunc(s.handleWS)))
	s.handler = withCORS(withRequestLog(mux))
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully, letting in-flight streams finish for up to 30 seconds.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	if s.limiter.Enabled() {
		go s.sweepLimiter(ctx)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		logging.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit admits generation requests per client address and answers
// 429 with Retry-After otherwise.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retryAfter := s.limiter.Allow(clientKey(r))
		if !ok {
			secs := int(math.Ceil(retryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many generation requests, retry later"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.limiter.Sweep(); n > 0 {
				logging.Debug("rate limiter swept", "clients", n)
			}
		}
	}
}

func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.cfg.Version})
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// maxBody bounds a request body: every image at its size limit, base64
// encoded, plus room for the prompt.
func (s *Server) maxBody() int64 {
	pc := s.cfg.Pipeline
	return int64(pc.MaxImages)*int64(pc.MaxImageBytes)*4/3 + 1<<20
}

// decode reads and validates a request. A non-nil errorBody is the 400 reply.
func (s *Server) decode(data []byte) (*pipeline.Params, *errorBody) {
	var req pipeline.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &errorBody{Error: fmt.Sprintf("invalid JSON body: %v", err)}
	}
	params, err := pipeline.Prepare(s.cfg, &req)
	if err != nil {
		body := &errorBody{Error: err.Error()}
		var ie *pipeline.InputError
		if errors.As(err, &ie) {
			body.Field = ie.Field
		}
		return nil, body
	}
	return params, nil
}

// runContext outlives the HTTP request: a departed client detaches from the
// stream but the run still completes.
func (s *Server) runContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := s.cfg.Server.RequestTimeout
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}
	return context.WithTimeout(context.WithoutCancel(r.Context()), timeout)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody())
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid JSON body: %v", err)})
		return
	}
	params, bad := s.decode(raw)
	if bad != nil {
		writeJSON(w, http.StatusBadRequest, bad)
		return
	}

	ctx, cancel := s.runContext(r)
	defer cancel()
	em := s.pipeline.Stream(ctx, params)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if err := events.WriteNDJSON(w, em.Lines()); err != nil {
		logging.Info("stream client went away", "error", err)
		em.Detach()
		// Wait for the run to finish so its workspace is cleaned up before
		// the handler returns.
		for range em.Lines() {
		}
	}
}
