package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/veritasnet/atlas/pkg/events"
	"github.com/veritasnet/atlas/pkg/log"
	"github.com/veritasnet/atlas/pkg/metrics"
	"github.com/veritasnet/atlas/pkg/processor"
	"github.com/veritasnet/atlas/pkg/security"
	"github.com/veritasnet/atlas/pkg/storage"
)

// Options holds the HTTP-facing configuration.
type Options struct {
	CacheTimeout time.Duration
	Username     string
	Password     string
	TLS          bool
	TLSCertPath  string
	TLSKeyPath   string
}

// Server exposes the protocol API under /network-map and the management API
// under /admin/api. Cached signed artifacts are served straight from the
// stores; everything that mutates state goes through the processor.
type Server struct {
	processor *processor.Processor
	stores    processor.Stores
	authority *security.Authority
	broker    *events.Broker
	opts      Options
	http      *http.Server
	logger    zerolog.Logger
}

// NewServer creates the API server.
func NewServer(proc *processor.Processor, stores processor.Stores, authority *security.Authority, broker *events.Broker, opts Options) *Server {
	return &Server{
		processor: proc,
		stores:    stores,
		authority: authority,
		broker:    broker,
		opts:      opts,
		logger:    log.WithComponent("api"),
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestMetrics)
	r.Use(s.requestLogger)

	r.Route("/network-map", func(r chi.Router) {
		r.Get("/", s.getNetworkMap)
		r.Post("/publish", s.publishNodeInfo)
		r.Post("/ack-parameters", s.ackParameters)
		r.Get("/node-info/{hash}", s.getNodeInfo)
		r.Get("/network-parameters/{hash}", s.getNetworkParameters)
	})

	r.Route("/admin/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		}))
		r.Use(s.basicAuth)

		r.Get("/network-parameters", s.adminGetParameters)
		r.Get("/notaries", s.adminListNotaries)
		r.Post("/notaries/validating", s.adminPostNotary(true))
		r.Post("/notaries/nonValidating", s.adminPostNotary(false))
		r.Delete("/notaries/{nameHash}", s.adminDeleteNotary)
		r.Get("/whitelist", s.adminGetWhitelist)
		r.Post("/whitelist", s.adminAppendWhitelist)
		r.Put("/whitelist", s.adminReplaceWhitelist)
		r.Delete("/whitelist", s.adminClearWhitelist)
		r.Get("/nodes", s.adminListNodes)
		r.Delete("/nodes/{hash}", s.adminDeleteNode)
	})

	r.Get("/metrics", metrics.Handler().ServeHTTP)

	return r
}

// Start begins serving on addr. Blocks until the listener fails or is shut
// down.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Bool("tls", s.opts.TLS).Msg("http server listening")
	var err error
	if s.opts.TLS {
		err = s.http.ListenAndServeTLS(s.opts.TLSCertPath, s.opts.TLSKeyPath)
	} else {
		err = s.http.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// writeError maps the error taxonomy onto status codes. 4xx carries the
// message; 5xx is generic and logged.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, processor.ErrNameConflict):
		metrics.PublishRejectionsTotal.WithLabelValues("name-conflict").Inc()
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, security.ErrBadSignature):
		metrics.PublishRejectionsTotal.WithLabelValues("signature-invalid").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		s.logger.Error().Err(err).Msg("internal error")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.opts.Username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(s.opts.Password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="atlas admin"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, fmt.Sprintf("%d", rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
