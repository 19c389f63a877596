package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/logging"
	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/internal/services/camera"
	"sentinel-worker-go/internal/services/capture"
	"sentinel-worker-go/internal/services/confirm"
	"sentinel-worker-go/internal/services/detection"
	"sentinel-worker-go/internal/services/detection/remote"
	"sentinel-worker-go/internal/services/detection/yolo"
	"sentinel-worker-go/internal/services/hub"
	"sentinel-worker-go/internal/services/messaging"
	"sentinel-worker-go/internal/services/mjpeg"
	"sentinel-worker-go/internal/services/postprocessing"
	"sentinel-worker-go/internal/services/router"
	"sentinel-worker-go/internal/services/scoring"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config        *config.Config
	Registry      *detection.Registry
	Pipeline      *detection.Pipeline
	Hub           *hub.Hub
	CameraManager *camera.Manager
	Router        *router.Router
	Previews      *mjpeg.Publisher
	Messaging     *messaging.Service
	Alerts        *postprocessing.Service
}

// NewServiceContainer creates a new service container
func NewServiceContainer(ctx context.Context, cfg *config.Config) (*ServiceContainer, error) {
	tuning, err := config.LoadTuning(cfg.ThreatTuningFile)
	if err != nil {
		return nil, err
	}

	scorer := scoring.NewScorer(scoring.ConfigFromTuning(tuning))
	classes := detection.ClassTableFromTuning(tuning)

	yoloCfg := yolo.DefaultConfig()
	yoloCfg.InputSize = cfg.YOLOInputSize
	yoloCfg.NMSThresh = float32(cfg.YOLONMSThreshold)
	yoloCfg.Instances = cfg.YOLOInstances

	registry := detection.NewRegistry(detection.SchemeLoader{
		Default: yolo.NewLoader(yoloCfg),
		Schemes: map[string]detection.Loader{
			remote.Scheme: detection.LoaderFunc(remote.Load),
		},
	})
	if err := registry.Init(ctx, cfg.ModelPath); err != nil {
		// the worker still serves subscribers; detection is skipped until a switch-model succeeds
		log.Error().Err(err).Str("model_path", cfg.ModelPath).Msg("Failed to load initial model")
	}

	pipeline := detection.NewPipeline(detection.PipelineConfig{
		PersonMinConfidence: cfg.PersonMinConfidence,
		ObjectMinConfidence: cfg.ObjectMinConfidence,
		DetectTimeout:       cfg.DetectTimeout,
		Confirm: confirm.Config{
			WindowTicks: cfg.ConfirmWindowTicks,
			MaxAge:      cfg.ConfirmMaxAge,
		},
		AlertDecay: cfg.AlertDecay,
	}, registry, classes, scorer)

	h := hub.NewHub(hub.Config{
		WriteTimeout: cfg.WSWriteTimeout,
		PingInterval: cfg.WSPingInterval,
		PongTimeout:  cfg.WSPongTimeout,
		ReadLimit:    cfg.WSReadLimit,
		SendQueue:    cfg.WSSendQueue,
	}, logging.NewServiceLogger(cfg, "hub"))

	manager := camera.NewManager(camera.Config{
		CameraIDs:       cfg.CameraIDs,
		TickInterval:    cfg.TickInterval,
		FrameRetryDelay: cfg.FrameRetryDelay,
		FrameSkip:       cfg.FrameSkip,
	}, capture.NewOpener(capture.Config{
		FrameWidth:  cfg.FrameWidth,
		FrameHeight: cfg.FrameHeight,
		JPEGQuality: cfg.JPEGQuality,
	}), pipeline, h, logging.NewServiceLogger(cfg, "camera"))

	previews := mjpeg.NewPublisher(0, logging.NewServiceLogger(cfg, "mjpeg"))
	manager.SetPreviewSink(previews)

	sc := &ServiceContainer{
		Config:        cfg,
		Registry:      registry,
		Pipeline:      pipeline,
		Hub:           h,
		CameraManager: manager,
		Previews:      previews,
	}

	if cfg.NatsURL != "" {
		msg, err := messaging.NewService(cfg)
		if err != nil {
			registry.Close()
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		dispatcher, err := postprocessing.NewService(postprocessing.Config{
			WorkerID: cfg.WorkerID,
			Subject:  cfg.AlertsSubject,
			Cooldown: cfg.AlertsCooldown,
		}, msg, logging.NewServiceLogger(cfg, "alerts"))
		if err != nil {
			registry.Close()
			return nil, err
		}
		manager.SetAlertSink(dispatcher)
		sc.Messaging = msg
		sc.Alerts = dispatcher
	}

	catalog := func(current string) []models.ModelInfo {
		return detection.Catalog(cfg.ModelsDir, current)
	}
	sc.Router = router.New(router.Config{
		StopTimeout:   cfg.ShutdownTimeout,
		SwitchTimeout: cfg.ShutdownTimeout,
	}, manager, registry, catalog, h, logging.NewServiceLogger(cfg, "router"))

	h.SetHandler(sc.Router)
	h.OnEmpty(sc.Router.SubscribersGone)

	return sc, nil
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if sc.CameraManager != nil {
		keep(sc.CameraManager.Shutdown(ctx))
	}
	if sc.Hub != nil {
		keep(sc.Hub.Shutdown(ctx))
	}
	if sc.Previews != nil {
		sc.Previews.Shutdown()
	}
	if sc.Alerts != nil {
		keep(sc.Alerts.Shutdown(ctx))
	}
	if sc.Messaging != nil {
		keep(sc.Messaging.Shutdown(ctx))
	}
	if sc.Registry != nil {
		keep(sc.Registry.Close())
	}

	return firstErr
}
