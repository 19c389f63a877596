package camera

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"sentinel-worker-go/internal/logging"
	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/internal/services/detection"
)

// SessionState represents the atomic state of a camera session
type SessionState int32

const (
	StateStarting SessionState = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s SessionState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SessionStats is a point-in-time view of a session
type SessionStats struct {
	CameraID       int       `json:"camera_id"`
	State          string    `json:"state"`
	StartedAt      time.Time `json:"started_at"`
	Ticks          uint64    `json:"ticks"`
	ProcessedTicks uint64    `json:"processed_ticks"`
	Emitted        uint64    `json:"emitted"`
	ReadErrors     uint64    `json:"read_errors"`
	DetectorErrors uint64    `json:"detector_errors"`
	LastFrameTime  time.Time `json:"last_frame_time"`
}

type cachedOutput struct {
	frame  []byte
	result *models.DetectionResult
}

// Session owns one capture device and its processing loop
type Session struct {
	id     int
	m      *Manager
	logger zerolog.Logger

	state  int32
	cancel context.CancelFunc
	done   chan struct{}
	// previous session of the same camera, still releasing the device
	prev *Session

	startedAt time.Time
	lastFrame atomic.Int64

	// loop-owned
	tick   uint64
	cache  *cachedOutput
	camera *detection.CameraState

	ticks          atomic.Uint64
	processedTicks atomic.Uint64
	emitted        atomic.Uint64
	readErrors     atomic.Uint64
	detectorErrors atomic.Uint64
}

func newSession(id int, m *Manager) *Session {
	return &Session{
		id:     id,
		m:      m,
		logger: logging.WithCamera(m.logger, id),
		state:  int32(StateStarting),
		done:   make(chan struct{}),
		camera: m.pipeline.NewCameraState(),
	}
}

func (s *Session) ID() int {
	return s.id
}

func (s *Session) State() SessionState {
	return SessionState(atomic.LoadInt32(&s.state))
}

func (s *Session) setState(state SessionState) {
	atomic.StoreInt32(&s.state, int32(state))
}

// Done is closed once the device has been released
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) start(parent context.Context) {
	var ctx context.Context
	ctx, s.cancel = context.WithCancel(parent)
	s.startedAt = s.m.now()
	go s.run(ctx)
}

func (s *Session) stop() {
	if atomic.CompareAndSwapInt32(&s.state, int32(StateRunning), int32(StateStopping)) ||
		atomic.CompareAndSwapInt32(&s.state, int32(StateStarting), int32(StateStopping)) {
		s.logger.Debug().Msg("Stopping camera session")
	}
	s.cancel()
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.m.remove(s)
	defer s.setState(StateStopped)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("Camera session panic recovered")
		}
	}()

	if s.prev != nil {
		select {
		case <-s.prev.Done():
			s.prev = nil
		case <-ctx.Done():
			return
		}
	}

	dev, err := s.m.opener(s.id)
	if err != nil {
		s.logger.Error().Err(err).Msg("Could not open camera")
		return
	}
	defer func() {
		if err := dev.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to release camera device")
		}
		s.logger.Info().Msg("Camera stopped")
	}()

	atomic.CompareAndSwapInt32(&s.state, int32(StateStarting), int32(StateRunning))
	s.logger.Info().Msg("Camera started successfully")

	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := dev.Read()
		if err != nil {
			s.readErrors.Add(1)
			s.logger.Warn().Err(err).Msg("Failed to read frame")
			if !sleepCtx(ctx, s.m.cfg.FrameRetryDelay) {
				return
			}
			continue
		}

		s.step(ctx, frame)

		if !sleepCtx(ctx, s.m.cfg.TickInterval) {
			return
		}
	}
}

// step handles one captured frame: full detection on every FrameSkip-th
// tick, otherwise re-emission of the cached output with a fresh timestamp.
func (s *Session) step(ctx context.Context, frame Frame) {
	defer frame.Close()

	s.tick++
	s.ticks.Add(1)
	now := s.m.now()
	s.lastFrame.Store(now.UnixNano())

	if s.tick%uint64(s.m.cfg.FrameSkip) == 0 {
		if err := s.process(ctx, frame, now); err != nil {
			s.detectorErrors.Add(1)
			s.logger.Warn().Err(err).Uint64("tick", s.tick).Msg("Detection skipped for tick")
		}
	}

	if s.cache == nil {
		return
	}

	s.m.out.Broadcast(&models.FrameMessage{
		Type:       models.MessageTypeFrame,
		CameraID:   s.id,
		Frame:      s.cache.frame,
		Detections: s.cache.result,
		Timestamp:  now.Format(time.RFC3339Nano),
	})
	s.emitted.Add(1)
}

func (s *Session) process(ctx context.Context, frame Frame, now time.Time) error {
	raw, err := frame.Encode()
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	res, err := s.m.pipeline.Process(ctx, s.camera, s.tick, now, raw)
	if err != nil {
		return err
	}

	annotated, err := frame.Annotate(res)
	if err != nil {
		return fmt.Errorf("annotate frame: %w", err)
	}

	s.cache = &cachedOutput{frame: annotated, result: res}
	s.processedTicks.Add(1)

	if res.Alert != nil {
		s.logger.Warn().
			Str("alert", *res.Alert).
			Str("threat_level", res.ThreatLevel.String()).
			Int("weapons", len(res.Weapons)).
			Msg("Weapon alert raised")
		if s.m.alerts != nil {
			s.m.alerts.Dispatch(s.id, res, now)
		}
	}
	if s.m.previews != nil {
		s.m.previews.Update(s.id, annotated)
	}
	return nil
}

// Stats returns the session counters
func (s *Session) Stats() SessionStats {
	st := SessionStats{
		CameraID:       s.id,
		State:          s.State().String(),
		StartedAt:      s.startedAt,
		Ticks:          s.ticks.Load(),
		ProcessedTicks: s.processedTicks.Load(),
		Emitted:        s.emitted.Load(),
		ReadErrors:     s.readErrors.Load(),
		DetectorErrors: s.detectorErrors.Load(),
	}
	if ns := s.lastFrame.Load(); ns != 0 {
		st.LastFrameTime = time.Unix(0, ns)
	}
	return st
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
