package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/apim-console/pkg/observability"
)

// Server represents the console API server
type Server struct {
	router       *mux.Router
	resource     *Resource
	userHandlers *UserHandlers
	roleHandlers *RoleHandlers
	health       *observability.HealthChecker
	metrics      http.Handler
}

// ServerOption configures optional console resources
type ServerOption func(*Server)

// WithRoleDefinitions serves the role configuration resources from roles
func WithRoleDefinitions(roles RoleDefinitionReader) ServerOption {
	return func(s *Server) {
		s.roleHandlers = NewRoleHandlers(s.resource, roles)
	}
}

// NewServer creates the console API server. authn wraps every /management
// route; health and metrics are optional.
func NewServer(resource *Resource, authn func(http.Handler) http.Handler, health *observability.HealthChecker, metrics http.Handler, opts ...ServerOption) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		resource:     resource,
		userHandlers: NewUserHandlers(resource),
		health:       health,
		metrics:      metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes(authn)
	return s
}

func (s *Server) setupRoutes(authn func(http.Handler) http.Handler) {
	management := s.router.PathPrefix("/management").Subrouter()
	if authn != nil {
		management.Use(authn)
	}
	s.userHandlers.RegisterRoutes(management)
	if s.roleHandlers != nil {
		s.roleHandlers.RegisterRoutes(management)
	}

	if s.health != nil {
		s.router.HandleFunc("/health", s.health.Readiness).Methods("GET")
		s.router.HandleFunc("/health/live", s.health.Liveness).Methods("GET")
		s.router.HandleFunc("/health/ready", s.health.Readiness).Methods("GET")
	}

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics).Methods("GET")
	}
}

// Router exposes the router so callers can register more /management resources
func (s *Server) Router() *mux.Router {
	return s.router
}

// Resource returns the resource base shared by the handlers
func (s *Server) Resource() *Resource {
	return s.resource
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
