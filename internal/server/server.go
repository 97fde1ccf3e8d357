// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package server answers RBAC lookups over HTTP from informer caches.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/telekom/rbac-lookup/pkg/lookup"
	"github.com/telekom/rbac-lookup/pkg/metrics"
	"github.com/telekom/rbac-lookup/pkg/tracing"
)

const (
	DefaultAddr                    = ":8080"
	DefaultRequestsPerSecond       = 10
	DefaultBurst                   = 20
	DefaultGracefulShutdownTimeout = 30 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// Options configures a Server. Zero values fall back to the defaults above.
type Options struct {
	Addr                    string
	RequestsPerSecond       float64
	Burst                   int
	GracefulShutdownTimeout time.Duration
	Tracer                  trace.Tracer
}

func (o *Options) applyDefaults() {
	if o.Addr == "" {
		o.Addr = DefaultAddr
	}
	if o.RequestsPerSecond <= 0 {
		o.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if o.Burst <= 0 {
		o.Burst = DefaultBurst
	}
	if o.GracefulShutdownTimeout <= 0 {
		o.GracefulShutdownTimeout = DefaultGracefulShutdownTimeout
	}
	if o.Tracer == nil {
		o.Tracer = tracing.Noop()
	}
}

// Server serves /lookup, /healthz, /readyz and /metrics.
type Server struct {
	source  lookup.BindingSource
	synced  func() bool
	limiter *rate.Limiter
	log     logr.Logger
	opts    Options
	handler http.Handler
}

// New returns a Server answering lookups from source. synced reports whether
// the source is ready; it backs /readyz, and /lookup answers 503 until it
// returns true. A nil synced means the source is always ready.
func New(source lookup.BindingSource, synced func() bool, log logr.Logger, opts Options) *Server {
	opts.applyDefaults()
	s := &Server{
		source:  source,
		synced:  synced,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		log:     log,
		opts:    opts,
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)

	healthzHandler := http.StripPrefix("/healthz", &healthz.Handler{
		Checks: map[string]healthz.Checker{"ping": healthz.Ping},
	})
	readyzHandler := http.StripPrefix("/readyz", &healthz.Handler{
		Checks: map[string]healthz.Checker{"informers": s.informersSynced},
	})
	r.Handle("/healthz", healthzHandler)
	r.Handle("/healthz/*", healthzHandler)
	r.Handle("/readyz", readyzHandler)
	r.Handle("/readyz/*", readyzHandler)
	r.Handle("/metrics", promhttp.HandlerFor(crmetrics.Registry, promhttp.HandlerOpts{}))

	r.With(s.rateLimit).Get("/lookup", s.handleLookup)
	return r
}

func (s *Server) informersSynced(_ *http.Request) error {
	if s.synced != nil && !s.synced() {
		return errors.New("informer caches not synced")
	}
	return nil
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.log.V(1).Info("rate limit exceeded", "path", r.URL.Path, "remote", r.RemoteAddr)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		handler := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			handler = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestsTotal.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	if err := s.informersSynced(r); err != nil {
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	query := r.URL.Query()

	output := query.Get("output")
	if output == "" {
		output = lookup.OutputJSON
	}
	if err := lookup.ValidateOutputFormat(output); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx, span := s.opts.Tracer.Start(tracing.Extract(r.Context(), r.Header), "server.Lookup",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(tracing.AttrOutput.String(output)))
	defer span.End()

	useRegex := false
	if v := query.Get("regex"); v != "" {
		var err error
		if useRegex, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid regex parameter %q", v))
			return
		}
	}

	matcher, err := lookup.NewMatcher(query.Get("subject"), useRegex, query.Get("kind"), query.Get("namespace"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	log := s.log.WithValues("subject", matcher.Pattern(), "kind", matcher.Kind(), "namespace", matcher.Namespace())
	lister := lookup.NewLister(s.source, matcher, log)
	lister.Tracer = s.opts.Tracer
	if err := lister.Load(ctx); err != nil {
		log.Error(err, "lookup failed")
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	var buf bytes.Buffer
	if err := lookup.Print(&buf, output, lister.Grants()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", contentType(output))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func contentType(output string) string {
	switch output {
	case lookup.OutputJSON:
		return "application/json"
	case lookup.OutputYAML:
		return "application/yaml"
	default:
		return "text/plain; charset=utf-8"
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

// Start serves until ctx is done, then shuts down gracefully within the
// configured timeout.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting lookup server", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("lookup server failed: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down lookup server", "timeout", s.opts.GracefulShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down lookup server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("lookup server failed: %w", err)
	}
	return nil
}
