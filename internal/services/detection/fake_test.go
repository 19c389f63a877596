package detection

import (
	"context"
	"sync"

	"sentinel-worker-go/internal/models"
)

type fakeDetector struct {
	mu     sync.Mutex
	out    []models.RawDetection
	err    error
	closed bool
	calls  int
}

func (f *fakeDetector) Detect(ctx context.Context, frame []byte) ([]models.RawDetection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.closed {
		return nil, ErrDetectorClosed
	}
	return f.out, f.err
}

func (f *fakeDetector) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeDetector) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeLoader serves detectors from a map keyed by path
type fakeLoader map[string]*fakeDetector

func (l fakeLoader) Load(ctx context.Context, path string) (Detector, error) {
	d, ok := l[path]
	if !ok {
		return nil, ErrModelNotFound
	}
	return d, nil
}
