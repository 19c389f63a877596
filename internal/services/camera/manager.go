package camera

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"sentinel-worker-go/internal/services/detection"
)

// ErrUnknownCamera is returned for camera ids outside the configured set
var ErrUnknownCamera = errors.New("unknown camera")

type Config struct {
	CameraIDs       []int
	TickInterval    time.Duration
	FrameRetryDelay time.Duration
	FrameSkip       int
}

// Manager is the session registry: at most one live session per camera id
type Manager struct {
	cfg      Config
	opener   DeviceOpener
	pipeline *detection.Pipeline
	out      Publisher
	alerts   AlertSink
	previews PreviewSink
	logger   zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[int]*Session
	// cancelled sessions that may still hold their device
	stopping map[int]*Session
}

func NewManager(cfg Config, opener DeviceOpener, pipeline *detection.Pipeline, out Publisher, logger zerolog.Logger) *Manager {
	if cfg.FrameSkip < 1 {
		cfg.FrameSkip = 1
	}
	return &Manager{
		cfg:      cfg,
		opener:   opener,
		pipeline: pipeline,
		out:      out,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[int]*Session),
		stopping: make(map[int]*Session),
	}
}

func (m *Manager) SetAlertSink(sink AlertSink) {
	m.alerts = sink
}

func (m *Manager) SetPreviewSink(sink PreviewSink) {
	m.previews = sink
}

// CameraIDs returns the configured camera ids
func (m *Manager) CameraIDs() []int {
	return append([]int(nil), m.cfg.CameraIDs...)
}

// IsConfigured reports whether id belongs to the configured camera set
func (m *Manager) IsConfigured(id int) bool {
	return lo.Contains(m.cfg.CameraIDs, id)
}

// Start creates a session for id unless one is already live.
// It reports whether a new session was created. A session started while
// the previous one for id is still releasing the device opens it only
// after that release.
func (m *Manager) Start(id int) (bool, error) {
	if !m.IsConfigured(id) {
		return false, fmt.Errorf("camera %d: %w", id, ErrUnknownCamera)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; ok {
		return false, nil
	}

	s := newSession(id, m)
	s.prev = m.stopping[id]
	m.sessions[id] = s
	s.start(context.Background())
	return true, nil
}

// StartAll starts every configured camera that is not already running and
// returns the number of sessions created.
func (m *Manager) StartAll() int {
	started := 0
	for _, id := range m.cfg.CameraIDs {
		if ok, _ := m.Start(id); ok {
			started++
		}
	}
	m.logger.Info().Int("started", started).Int("configured", len(m.cfg.CameraIDs)).Msg("Cameras started")
	return started
}

// Stop cancels the session of id and waits until it has released its
// device or ctx expires. It reports whether a session was live.
func (m *Manager) Stop(ctx context.Context, id int) (bool, error) {
	if !m.IsConfigured(id) {
		return false, fmt.Errorf("camera %d: %w", id, ErrUnknownCamera)
	}

	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		m.stopping[id] = s
	}
	m.mu.Unlock()

	if !ok {
		return false, nil
	}

	s.stop()
	select {
	case <-s.Done():
		return true, nil
	case <-ctx.Done():
		return true, fmt.Errorf("camera %d did not stop: %w", id, ctx.Err())
	}
}

// StopAll cancels and clears every session, then waits until each has
// released its device or ctx expires.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	sessions := lo.Values(m.sessions)
	for _, s := range sessions {
		m.stopping[s.id] = s
	}
	m.sessions = make(map[int]*Session)
	m.mu.Unlock()

	if len(sessions) == 0 {
		return nil
	}

	for _, s := range sessions {
		s.stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sessions {
		g.Go(func() error {
			select {
			case <-s.Done():
				return nil
			case <-gctx.Done():
				return fmt.Errorf("camera %d did not stop: %w", s.id, gctx.Err())
			}
		})
	}

	err := g.Wait()
	m.logger.Info().Int("stopped", len(sessions)).Msg("All cameras stopped")
	return err
}

// Active returns the ids of live sessions in ascending order
func (m *Manager) Active() []int {
	m.mu.Lock()
	ids := lo.Keys(m.sessions)
	m.mu.Unlock()
	sort.Ints(ids)
	return ids
}

// Stats returns per-session stats ordered by camera id
func (m *Manager) Stats() []SessionStats {
	m.mu.Lock()
	sessions := lo.Values(m.sessions)
	m.mu.Unlock()

	stats := lo.Map(sessions, func(s *Session, _ int) SessionStats { return s.Stats() })
	sort.Slice(stats, func(i, j int) bool { return stats[i].CameraID < stats[j].CameraID })
	return stats
}

// remove drops s from the registry once its device is released
func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[s.id]; ok && cur == s {
		delete(m.sessions, s.id)
	}
	if cur, ok := m.stopping[s.id]; ok && cur == s {
		delete(m.stopping, s.id)
	}
}

// Shutdown stops all sessions
func (m *Manager) Shutdown(ctx context.Context) error {
	return m.StopAll(ctx)
}
