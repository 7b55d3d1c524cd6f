package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maumercado/task-queue-go/internal/api/handlers"
	apiMiddleware "github.com/maumercado/task-queue-go/internal/api/middleware"
	"github.com/maumercado/task-queue-go/internal/api/websocket"
	"github.com/maumercado/task-queue-go/internal/config"
	"github.com/maumercado/task-queue-go/internal/coordinator"
	"github.com/maumercado/task-queue-go/internal/events"
)

// Server is the optional HTTP surface in front of a Coordinator: task
// enqueue, queue status/pause, health, a WebSocket event feed, and
// Prometheus metrics.
type Server struct {
	router       *chi.Mux
	config       *config.Config
	taskHandler  *handlers.TaskHandler
	adminHandler *handlers.AdminHandler
	wsHub        *websocket.Hub
	wsHandler    *websocket.Handler
}

// NewServer creates a new HTTP server backed by a running Coordinator.
// publisher may be nil; when set it both broadcasts enqueue events and
// feeds the WebSocket hub's Redis subscription.
func NewServer(cfg *config.Config, c *coordinator.Coordinator, publisher *events.RedisPubSub) *Server {
	wsHub := websocket.NewHub(publisher)

	var pub events.Publisher
	if publisher != nil {
		pub = publisher
	}

	s := &Server{
		router:       chi.NewRouter(),
		config:       cfg,
		taskHandler:  handlers.NewTaskHandler(c.Queue(), pub),
		adminHandler: handlers.NewAdminHandler(c.ControlPlane(), c.Queue().Store()),
		wsHub:        wsHub,
		wsHandler:    websocket.NewHandler(wsHub),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(apiMiddleware.RequestLogger())
	s.router.Use(middleware.Recoverer)

	if s.config.Auth.Enabled {
		apiKeys := make(map[string]bool, len(s.config.Auth.APIKeys))
		for _, k := range s.config.Auth.APIKeys {
			apiKeys[k] = true
		}
		s.router.Use(apiMiddleware.Auth(&apiMiddleware.AuthConfig{
			Enabled:   true,
			JWTSecret: s.config.Auth.JWTSecret,
			APIKeys:   apiKeys,
		}))
	}

	if s.config.Server.RateLimitRPS > 0 {
		s.router.Use(apiMiddleware.ClientRateLimit(s.config.Server.RateLimitRPS))
	}
}

func (s *Server) setupRoutes() {
	s.router.Route("/tasks", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/", s.taskHandler.Create)
	})

	s.router.Route("/queues", func(r chi.Router) {
		r.Get("/", s.adminHandler.GetQueues)
		r.With(middleware.AllowContentType("application/json")).
			Post("/{queue}/pause", s.adminHandler.PauseQueue)
	})

	s.router.Get("/healthz", s.adminHandler.HealthCheck)

	s.router.Get("/ws", s.wsHandler.ServeWS)

	if s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, promhttp.Handler())
	}
}

// Start starts the WebSocket hub's event feed.
func (s *Server) Start(ctx context.Context) {
	go s.wsHub.Run(ctx)
}

// Stop stops the WebSocket hub.
func (s *Server) Stop() {
	s.wsHub.Stop()
}

// Router returns the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
