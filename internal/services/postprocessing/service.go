package postprocessing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sentinel-worker-go/internal/models"
)

// MessagePublisher publishes a JSON-encodable payload on a subject
type MessagePublisher interface {
	Publish(subject string, data interface{}) error
}

type Config struct {
	WorkerID string
	Subject  string
	Cooldown time.Duration
}

// Service forwards weapon alert edges to the message bus, at most once per
// camera per cooldown period.
type Service struct {
	cfg       Config
	publisher MessagePublisher
	logger    zerolog.Logger

	cooldownMu sync.Mutex
	lastSent   map[int]time.Time

	published uint64
	throttled uint64
	failed    uint64
}

// Stats counts dispatch outcomes
type Stats struct {
	Published uint64 `json:"published"`
	Throttled uint64 `json:"throttled"`
	Failed    uint64 `json:"failed"`
}

func NewService(cfg Config, publisher MessagePublisher, logger zerolog.Logger) (*Service, error) {
	if publisher == nil {
		return nil, fmt.Errorf("message publisher is required")
	}

	s := &Service{
		cfg:       cfg,
		publisher: publisher,
		logger:    logger,
		lastSent:  make(map[int]time.Time),
	}

	logger.Info().
		Str("subject", cfg.Subject).
		Dur("cooldown", cfg.Cooldown).
		Msg("Alert dispatcher initialized")

	return s, nil
}

// Subject returns the subject alerts of cameraID are published on
func (s *Service) Subject(cameraID int) string {
	return fmt.Sprintf("%s.camera.%d", s.cfg.Subject, cameraID)
}

// Dispatch publishes an alert event for a result that raised an alert
func (s *Service) Dispatch(cameraID int, res *models.DetectionResult, at time.Time) {
	if res == nil || res.Alert == nil {
		return
	}

	if !s.checkAndUpdateCooldown(cameraID, at) {
		s.cooldownMu.Lock()
		s.throttled++
		s.cooldownMu.Unlock()
		s.logger.Debug().Int("camera_id", cameraID).Msg("Alert blocked by cooldown")
		return
	}

	event := models.AlertEvent{
		WorkerID:    s.cfg.WorkerID,
		CameraID:    cameraID,
		Message:     *res.Alert,
		Weapons:     res.Weapons,
		PeopleCount: res.PeopleCount,
		ThreatLevel: res.ThreatLevel,
		Timestamp:   at.UTC().Format(time.RFC3339Nano),
	}

	subject := s.Subject(cameraID)
	if err := s.publisher.Publish(subject, event); err != nil {
		s.cooldownMu.Lock()
		s.failed++
		// allow the next edge to retry
		delete(s.lastSent, cameraID)
		s.cooldownMu.Unlock()
		s.logger.Error().Err(err).Int("camera_id", cameraID).Str("subject", subject).Msg("Failed to publish alert")
		return
	}

	s.cooldownMu.Lock()
	s.published++
	s.cooldownMu.Unlock()

	s.logger.Info().
		Int("camera_id", cameraID).
		Str("subject", subject).
		Str("threat_level", res.ThreatLevel.String()).
		Msg("Alert published")
}

func (s *Service) checkAndUpdateCooldown(cameraID int, at time.Time) bool {
	s.cooldownMu.Lock()
	defer s.cooldownMu.Unlock()

	if last, ok := s.lastSent[cameraID]; ok && at.Sub(last) < s.cfg.Cooldown {
		return false
	}
	s.lastSent[cameraID] = at
	return true
}

func (s *Service) Stats() Stats {
	s.cooldownMu.Lock()
	defer s.cooldownMu.Unlock()
	return Stats{Published: s.published, Throttled: s.throttled, Failed: s.failed}
}

// Shutdown stops the service gracefully
func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Alert dispatcher shutdown")
	return nil
}
