package detection

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Active is an immutable pairing of a detector and the path it was loaded from
type Active struct {
	Detector Detector
	Path     string
}

// Registry holds the process-wide swappable detector reference.
// Readers load the pointer once per detection and therefore always see a
// whole Active value, either the old one or the new one.
type Registry struct {
	current atomic.Pointer[Active]
	loader  Loader

	// serializes switches so two concurrent loads cannot interleave their swaps
	switchMu sync.Mutex
}

func NewRegistry(loader Loader) *Registry {
	return &Registry{loader: loader}
}

// Init loads the initial detector. A failure leaves the registry empty and
// sessions treat every processed tick as a detector failure until a switch succeeds.
func (r *Registry) Init(ctx context.Context, path string) error {
	return r.Switch(ctx, path)
}

// Current returns the active detector, or nil when none is loaded
func (r *Registry) Current() *Active {
	return r.current.Load()
}

// CurrentPath returns the active model path or "" when none is loaded
func (r *Registry) CurrentPath() string {
	if a := r.current.Load(); a != nil {
		return a.Path
	}
	return ""
}

// Switch loads the detector at path and atomically replaces the active one.
// On failure the previous detector stays authoritative.
func (r *Registry) Switch(ctx context.Context, path string) error {
	r.switchMu.Lock()
	defer r.switchMu.Unlock()

	det, err := r.loader.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("load model %s: %w", path, err)
	}

	old := r.current.Swap(&Active{Detector: det, Path: path})
	log.Info().Str("model_path", path).Msg("Detection model activated")

	if old != nil {
		if err := old.Detector.Close(); err != nil {
			log.Warn().Err(err).Str("model_path", old.Path).Msg("Failed to close previous detector")
		}
	}
	return nil
}

// Close releases the active detector
func (r *Registry) Close() error {
	r.switchMu.Lock()
	defer r.switchMu.Unlock()

	if old := r.current.Swap(nil); old != nil {
		return old.Detector.Close()
	}
	return nil
}
