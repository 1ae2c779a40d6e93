// Copyright 2025 Takhin Data, Inc.

// Package api wires the Token Verifier, Decision Engine, ACL Store,
// and File Operation Gate into the HTTP surface of spec §6, grounded
// on the teacher's pkg/console server and middleware layout.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/joestubbs/tagent/internal/aclstore"
	"github.com/joestubbs/tagent/internal/apperr"
	"github.com/joestubbs/tagent/internal/audit"
	"github.com/joestubbs/tagent/internal/auth"
	"github.com/joestubbs/tagent/internal/authz"
	"github.com/joestubbs/tagent/internal/envelope"
	"github.com/joestubbs/tagent/internal/files"
	"github.com/joestubbs/tagent/internal/logging"
	"github.com/joestubbs/tagent/internal/metrics"
)

// Server is tagent's HTTP API: status, ACL management, and file
// operations, all gated behind a verified bearer token.
type Server struct {
	router   *chi.Mux
	log      *logging.Logger
	verifier *auth.Verifier
	engine   *authz.Engine
	store    *aclstore.Store
	gate     *files.Gate
	auditLog *audit.Logger
}

// New builds a Server. verifier, engine, store, and gate must be
// non-nil. auditLog may be nil, in which case audit events are
// silently dropped.
func New(verifier *auth.Verifier, engine *authz.Engine, store *aclstore.Store, gate *files.Gate, auditLog *audit.Logger, log *logging.Logger) *Server {
	if auditLog == nil {
		auditLog, _ = audit.NewLogger(audit.Config{Enabled: false})
	}

	s := &Server{
		router:   chi.NewRouter(),
		log:      log.WithComponent("api"),
		verifier: verifier,
		engine:   engine,
		store:    store,
		gate:     gate,
		auditLog: auditLog,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestMetrics)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.HeaderName},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// requestMetrics records request counts and latency per route.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.RequestsTotal.WithLabelValues(route, http.StatusText(rw.status)).Inc()
		metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) setupRoutes() {
	s.router.Get("/status/ready", s.authenticated(s.handleStatusReady))

	s.router.Route("/acls", func(r chi.Router) {
		r.Post("/", s.authenticated(s.handleCreateACL))
		r.Get("/", s.authenticated(s.handleListACLs))
		r.Get("/{id}", s.authenticated(s.handleGetACL))
		r.Put("/{id}", s.authenticated(s.handleUpdateACL))
		r.Delete("/{id}", s.authenticated(s.handleDeleteACL))
		r.Get("/subject/{subject}", s.authenticated(s.handleListBySubject))
		r.Get("/subject/{subject}/{user}", s.authenticated(s.handleListBySubjectAndUser))
		r.Get("/isauthz/{subject}/{user}/{action}/*", s.authenticated(s.handleIsAuthz))
	})

	s.router.Route("/files", func(r chi.Router) {
		r.Get("/list/*", s.authenticated(s.handleFileList))
		r.Get("/contents/*", s.authenticated(s.handleFileDownload))
		r.Post("/contents/*", s.authenticated(s.handleFileUpload))
	})

	s.router.Get("/metrics", metrics.Handler().ServeHTTP)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		envelope.Error(w, apperr.New(apperr.KindNotImplemented, "no route registered for "+r.URL.Path))
	})
}

// authenticated wraps handler so it only runs once the bearer token
// has verified, passing the caller's subject through.
func (s *Server) authenticated(handler func(w http.ResponseWriter, r *http.Request, subject string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, err := s.verifier.Subject(r)
		if err != nil {
			s.log.FromContext(r.Context()).Warn("auth failure", "error", err)
			s.auditLog.AuthFailure(err.Error())
			metrics.AuthFailuresTotal.Inc()
			envelope.Error(w, err)
			return
		}
		handler(w, r, subject)
	}
}

func (s *Server) handleStatusReady(w http.ResponseWriter, r *http.Request, _ string) {
	envelope.Success(w, "None")
}
