package mjpeg

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const boundary = "frame"

// Publisher keeps the latest annotated JPEG per camera and streams it to
// HTTP viewers as multipart/x-mixed-replace.
type Publisher struct {
	logger    zerolog.Logger
	keepalive time.Duration

	jpegMutex  sync.RWMutex
	latestJPEG map[int][]byte

	notifyMutex sync.Mutex
	viewers     map[int]map[chan struct{}]struct{}
}

func NewPublisher(keepalive time.Duration, logger zerolog.Logger) *Publisher {
	if keepalive <= 0 {
		keepalive = 2 * time.Second
	}
	return &Publisher{
		logger:     logger,
		keepalive:  keepalive,
		latestJPEG: make(map[int][]byte),
		viewers:    make(map[int]map[chan struct{}]struct{}),
	}
}

// Update stores the newest frame of a camera and wakes its viewers.
// The slice is retained, callers must not modify it afterwards.
func (p *Publisher) Update(cameraID int, jpeg []byte) {
	if len(jpeg) == 0 {
		return
	}

	p.jpegMutex.Lock()
	p.latestJPEG[cameraID] = jpeg
	p.jpegMutex.Unlock()

	p.notifyStreamers(cameraID)
}

// Latest returns the newest frame of a camera, if any
func (p *Publisher) Latest(cameraID int) ([]byte, bool) {
	p.jpegMutex.RLock()
	defer p.jpegMutex.RUnlock()
	buf, ok := p.latestJPEG[cameraID]
	return buf, ok && len(buf) > 0
}

// Viewers returns the number of open streams for a camera
func (p *Publisher) Viewers(cameraID int) int {
	p.notifyMutex.Lock()
	defer p.notifyMutex.Unlock()
	return len(p.viewers[cameraID])
}

func (p *Publisher) notifyStreamers(cameraID int) {
	p.notifyMutex.Lock()
	defer p.notifyMutex.Unlock()

	for notify := range p.viewers[cameraID] {
		select {
		case notify <- struct{}{}:
		default:
		}
	}
}

func (p *Publisher) addViewer(cameraID int) chan struct{} {
	p.notifyMutex.Lock()
	defer p.notifyMutex.Unlock()

	notify := make(chan struct{}, 1)
	set, ok := p.viewers[cameraID]
	if !ok {
		set = make(map[chan struct{}]struct{})
		p.viewers[cameraID] = set
	}
	set[notify] = struct{}{}
	return notify
}

func (p *Publisher) removeViewer(cameraID int, notify chan struct{}) {
	p.notifyMutex.Lock()
	defer p.notifyMutex.Unlock()

	if set, ok := p.viewers[cameraID]; ok {
		delete(set, notify)
		if len(set) == 0 {
			delete(p.viewers, cameraID)
		}
	}
}

// StreamMJPEGHTTP serves frames of cameraID until the request context ends
// or a write fails.
func (p *Publisher) StreamMJPEGHTTP(w http.ResponseWriter, r *http.Request, cameraID int) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	notify := p.addViewer(cameraID)
	defer p.removeViewer(cameraID, notify)

	log := p.logger.With().Int("camera_id", cameraID).Str("remote", r.RemoteAddr).Logger()
	log.Debug().Msg("MJPEG viewer connected")
	defer log.Debug().Msg("MJPEG viewer disconnected")

	writeLatest := func() bool {
		buf, ok := p.Latest(cameraID)
		if !ok {
			return true
		}
		if err := writePart(w, buf); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !writeLatest() {
		return
	}

	keepaliveTicker := time.NewTicker(p.keepalive)
	defer keepaliveTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-notify:
			if !writeLatest() {
				return
			}
		case <-keepaliveTicker.C:
			if !writeLatest() {
				return
			}
		}
	}
}

func writePart(w io.Writer, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

func (p *Publisher) Shutdown() {
	p.logger.Info().Msg("MJPEG publisher shutting down")
}
