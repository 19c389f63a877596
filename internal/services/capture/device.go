package capture

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"sentinel-worker-go/internal/services/camera"
)

// Config holds capture and encoding settings
type Config struct {
	FrameWidth  int
	FrameHeight int
	JPEGQuality int
}

// Device wraps an OpenCV VideoCapture bound to a local camera index
type Device struct {
	mu       sync.Mutex
	cap      *gocv.VideoCapture
	cameraID int
	cfg      Config
	img      gocv.Mat
}

// NewOpener returns a camera.DeviceOpener for local capture devices
func NewOpener(cfg Config) camera.DeviceOpener {
	return func(cameraID int) (camera.Device, error) {
		return Open(cameraID, cfg)
	}
}

// Open opens the capture device of cameraID
func Open(cameraID int, cfg Config) (*Device, error) {
	vc, err := gocv.OpenVideoCapture(cameraID)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", cameraID, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera %d is not available", cameraID)
	}

	if cfg.FrameWidth > 0 && cfg.FrameHeight > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.FrameWidth))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.FrameHeight))
	}
	// Minimal buffer so reads return the freshest frame
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	log.Debug().
		Int("camera_id", cameraID).
		Int("width", int(vc.Get(gocv.VideoCaptureFrameWidth))).
		Int("height", int(vc.Get(gocv.VideoCaptureFrameHeight))).
		Msg("VideoCapture opened")

	return &Device{
		cap:      vc,
		cameraID: cameraID,
		cfg:      cfg,
		img:      gocv.NewMat(),
	}, nil
}

// Read grabs the next frame. The returned frame owns a copy of the image.
func (d *Device) Read() (camera.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ok := d.cap.Read(&d.img); !ok {
		return nil, fmt.Errorf("camera %d: read failed", d.cameraID)
	}
	if d.img.Empty() {
		return nil, fmt.Errorf("camera %d: empty frame", d.cameraID)
	}

	return &Frame{mat: d.img.Clone(), quality: d.cfg.JPEGQuality}, nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.img.Close(); err != nil {
		log.Warn().Err(err).Int("camera_id", d.cameraID).Msg("Failed to release frame buffer")
	}
	return d.cap.Close()
}
