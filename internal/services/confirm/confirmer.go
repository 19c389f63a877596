package confirm

import (
	"sync"
	"time"

	"sentinel-worker-go/internal/models"
)

// Confidence bands for the confirmation rule
const (
	HighConfidence = 0.5
	MidConfidence  = 0.3

	midRequired = 2
	lowRequired = 3
)

// Entry is one processed tick in the confirmation window
type Entry struct {
	At         time.Time
	Tick       uint64
	Candidates []models.WeaponDetection
}

type Config struct {
	// WindowTicks bounds the window by processed-tick count
	WindowTicks int
	// MaxAge additionally drops entries older than this; 0 disables it
	MaxAge time.Duration
}

// Confirmer smooths weapon candidates for one camera over a sliding window
type Confirmer struct {
	mu     sync.Mutex
	cfg    Config
	window []Entry
}

func New(cfg Config) *Confirmer {
	if cfg.WindowTicks < 1 {
		cfg.WindowTicks = 1
	}
	return &Confirmer{
		cfg:    cfg,
		window: make([]Entry, 0, cfg.WindowTicks),
	}
}

// Confirm records the candidates of the current tick and returns the
// confirmed weapon list for it.
func (c *Confirmer) Confirm(tick uint64, now time.Time, candidates []models.WeaponDetection) []models.WeaponDetection {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := Entry{At: now, Tick: tick, Candidates: append([]models.WeaponDetection(nil), candidates...)}
	c.window = append(c.window, current)
	c.prune(now)

	recent := 0
	for _, e := range c.window {
		if len(e.Candidates) > 0 {
			recent++
		}
	}

	confirmed := make([]models.WeaponDetection, 0, len(candidates))
	for _, w := range candidates {
		switch {
		case w.Confidence >= HighConfidence:
			confirmed = append(confirmed, w)
		case w.Confidence >= MidConfidence && recent >= midRequired:
			confirmed = append(confirmed, w)
		case w.Confidence < MidConfidence && recent >= lowRequired:
			confirmed = append(confirmed, w)
		}
	}
	if len(confirmed) > 0 {
		return confirmed
	}

	// carry the most recent prior candidate set across a dropout
	for i := len(c.window) - 2; i >= 0; i-- {
		if len(c.window[i].Candidates) > 0 {
			return append([]models.WeaponDetection(nil), c.window[i].Candidates...)
		}
	}
	return confirmed
}

func (c *Confirmer) prune(now time.Time) {
	if extra := len(c.window) - c.cfg.WindowTicks; extra > 0 {
		c.window = append(c.window[:0], c.window[extra:]...)
	}
	if c.cfg.MaxAge <= 0 {
		return
	}
	keep := c.window[:0]
	for _, e := range c.window {
		if now.Sub(e.At) <= c.cfg.MaxAge {
			keep = append(keep, e)
		}
	}
	c.window = keep
}

// Window returns a copy of the current window, oldest first
func (c *Confirmer) Window() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.window))
	copy(out, c.window)
	return out
}

// Reset clears the window
func (c *Confirmer) Reset() {
	c.mu.Lock()
	c.window = c.window[:0]
	c.mu.Unlock()
}
