package camera

import (
	"time"

	"sentinel-worker-go/internal/models"
)

// Frame is one captured image. It is owned by the session that read it.
type Frame interface {
	// Encode returns the un-annotated frame as JPEG for the detector
	Encode() ([]byte, error)
	// Annotate draws the detections and returns the JPEG sent to subscribers
	Annotate(res *models.DetectionResult) ([]byte, error)
	Close() error
}

// Device is an exclusively owned capture device
type Device interface {
	Read() (Frame, error)
	Close() error
}

// DeviceOpener opens the capture device of a camera id
type DeviceOpener func(cameraID int) (Device, error)

// Publisher fans session output out to subscribers
type Publisher interface {
	Broadcast(msg interface{})
}

// AlertSink receives results that raised an alert
type AlertSink interface {
	Dispatch(cameraID int, res *models.DetectionResult, at time.Time)
}

// PreviewSink receives every freshly annotated frame
type PreviewSink interface {
	Update(cameraID int, jpeg []byte)
}
