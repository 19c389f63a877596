package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sentinel-worker-go/internal/config"
)

func NewServiceLogger(cfg *config.Config, service string) zerolog.Logger {
	return log.With().Str("worker_id", cfg.WorkerID).Str("service", service).Logger()
}

func WithCamera(base zerolog.Logger, cameraID int) zerolog.Logger {
	return base.With().Int("camera_id", cameraID).Logger()
}

func WithSubscriber(base zerolog.Logger, subscriberID string) zerolog.Logger {
	return base.With().Str("subscriber_id", subscriberID).Logger()
}

// ParseLevel maps LOG_LEVEL to a zerolog level, defaulting to info
func ParseLevel(s string) (zerolog.Level, bool) {
	level, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel, false
	}
	return level, true
}
