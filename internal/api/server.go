package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"sentinel-worker-go/internal/api/handlers"
	"sentinel-worker-go/internal/api/middleware"
	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/services"
)

type Server struct {
	config *config.Config
	router *gin.Engine
	server *http.Server

	healthHandler *handlers.HealthHandler
	cameraHandler *handlers.CameraHandler
	systemHandler *handlers.SystemHandler
	wsHandler     *handlers.WebSocketHandler
}

func NewServer(cfg *config.Config, sc *services.ServiceContainer) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var alerts handlers.AlertStats
	if sc.Alerts != nil {
		alerts = sc.Alerts
	}

	s := &Server{
		config:        cfg,
		router:        gin.New(),
		healthHandler: handlers.NewHealthHandler(cfg.WorkerID, cfg.Version),
		cameraHandler: handlers.NewCameraHandler(sc.CameraManager, sc.Previews),
		systemHandler: handlers.NewSystemHandler(cfg.WorkerID, sc.Hub, sc.Registry, alerts),
		wsHandler:     handlers.NewWebSocketHandler(sc.Hub),
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.setupSwagger()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.router,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestContext())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	log.Info().Int("port", s.config.Port).Msg("Starting Sentinel Worker API")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Stopping Sentinel Worker API")
	return s.server.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.router
}
