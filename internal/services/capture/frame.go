package capture

import (
	"fmt"

	"gocv.io/x/gocv"

	"sentinel-worker-go/internal/models"
)

// DefaultJPEGQuality matches the quality viewers were tuned for
const DefaultJPEGQuality = 85

// Frame is a captured BGR image
type Frame struct {
	mat     gocv.Mat
	quality int
}

// Encode returns the frame as JPEG without overlays
func (f *Frame) Encode() ([]byte, error) {
	return EncodeJPEG(f.mat, f.quality)
}

// Annotate draws people and weapons onto a copy of the frame and encodes it
func (f *Frame) Annotate(res *models.DetectionResult) ([]byte, error) {
	annotated := f.mat.Clone()
	defer annotated.Close()

	DrawDetections(&annotated, res)
	return EncodeJPEG(annotated, f.quality)
}

func (f *Frame) Close() error {
	return f.mat.Close()
}

// EncodeJPEG encodes mat at the given quality
func EncodeJPEG(mat gocv.Mat, quality int) ([]byte, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame as JPEG: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory released by Close
	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
