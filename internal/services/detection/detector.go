package detection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sentinel-worker-go/internal/models"
)

var (
	// ErrModelNotFound is returned when a model path does not resolve to a loadable model
	ErrModelNotFound = errors.New("model not found")
	// ErrDetectorClosed is returned by a detector used after it was replaced and closed
	ErrDetectorClosed = errors.New("detector closed")
)

// Detector is the opaque detection capability: encoded frame in, raw detections out
type Detector interface {
	Detect(ctx context.Context, frame []byte) ([]models.RawDetection, error)
	Close() error
}

// Loader builds a Detector from a path identifier
type Loader interface {
	Load(ctx context.Context, path string) (Detector, error)
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(ctx context.Context, path string) (Detector, error)

func (f LoaderFunc) Load(ctx context.Context, path string) (Detector, error) {
	return f(ctx, path)
}

// SchemeLoader dispatches on the path scheme ("grpc://host:port/model").
// Paths without a registered scheme go to Default.
type SchemeLoader struct {
	Default Loader
	Schemes map[string]Loader
}

func (l SchemeLoader) Load(ctx context.Context, path string) (Detector, error) {
	if scheme, _, ok := strings.Cut(path, "://"); ok {
		if loader, found := l.Schemes[scheme]; found {
			return loader.Load(ctx, path)
		}
		return nil, fmt.Errorf("unsupported model scheme %q: %w", scheme, ErrModelNotFound)
	}
	if l.Default == nil {
		return nil, fmt.Errorf("no default loader for %s: %w", path, ErrModelNotFound)
	}
	return l.Default.Load(ctx, path)
}
