package yolo

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/internal/services/detection"
)

// Config holds YOLOv8 ONNX detector settings
type Config struct {
	ConfidenceThresh float32
	NMSThresh        float32
	InputSize        int
	// Instances is the number of networks loaded from the model file.
	// Forward cannot be interrupted, so each concurrent caller needs its own.
	Instances int
}

func DefaultConfig() Config {
	return Config{
		// admission thresholds are applied by the pipeline; keep the floor below the lowest weapon minimum
		ConfidenceThresh: 0.15,
		NMSThresh:        0.45,
		InputSize:        640,
		Instances:        1,
	}
}

// Detector runs a YOLOv8 ONNX model through the OpenCV DNN module.
// Detect borrows one network from a fixed pool for the duration of a call.
type Detector struct {
	// held shared by Detect for the whole call, exclusively by Close
	mu        sync.RWMutex
	closed    bool
	nets      []gocv.Net
	free      chan *gocv.Net
	cfg       Config
	inputSize image.Point
	path      string
}

// NewLoader returns a loader for ONNX model files
func NewLoader(cfg Config) detection.LoaderFunc {
	return func(ctx context.Context, path string) (detection.Detector, error) {
		return New(path, cfg)
	}
}

// New loads cfg.Instances copies of the ONNX model at path
func New(path string, cfg Config) (*Detector, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file %s: %w", path, detection.ErrModelNotFound)
	}
	if cfg.Instances < 1 {
		cfg.Instances = 1
	}

	d := &Detector{
		nets:      make([]gocv.Net, 0, cfg.Instances),
		free:      make(chan *gocv.Net, cfg.Instances),
		cfg:       cfg,
		inputSize: image.Pt(cfg.InputSize, cfg.InputSize),
		path:      path,
	}
	for i := 0; i < cfg.Instances; i++ {
		net, err := loadNet(path)
		if err != nil {
			d.closeNets()
			return nil, err
		}
		d.nets = append(d.nets, net)
	}
	for i := range d.nets {
		d.free <- &d.nets[i]
	}

	log.Info().
		Str("model_path", path).
		Int("input_size", cfg.InputSize).
		Int("instances", cfg.Instances).
		Msg("YOLO model loaded")

	return d, nil
}

func loadNet(path string) (gocv.Net, error) {
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return net, fmt.Errorf("failed to load YOLO model from %s", path)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return net, fmt.Errorf("set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return net, fmt.Errorf("set target: %w", err)
	}
	return net, nil
}

// Detect decodes the JPEG frame and returns raw detections in pixel coordinates.
// It waits for a free network until ctx is done; a Forward already running
// is not interrupted.
func (d *Detector) Detect(ctx context.Context, frame []byte) ([]models.RawDetection, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, detection.ErrDetectorClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var net *gocv.Net
	select {
	case net = <-d.free:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { d.free <- net }()

	img, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	net.SetInput(blob, "")
	output := net.Forward("")
	defer output.Close()

	return d.parseOutput(output, float32(img.Cols()), float32(img.Rows()))
}

// parseOutput reads the [1, 84, 8400] YOLOv8 tensor: 4 box values + 80 class scores per anchor
func (d *Detector) parseOutput(output gocv.Mat, imgW, imgH float32) ([]models.RawDetection, error) {
	sizes := output.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", sizes)
	}
	attrs, anchors := sizes[1], sizes[2]

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	var (
		boxes       []image.Rectangle
		confidences []float32
		classIDs    []int
	)

	scaleX := imgW / float32(d.cfg.InputSize)
	scaleY := imgH / float32(d.cfg.InputSize)

	for i := 0; i < anchors; i++ {
		maxScore := float32(0)
		maxClass := 0
		for c := 4; c < attrs; c++ {
			if score := data[c*anchors+i]; score > maxScore {
				maxScore = score
				maxClass = c - 4
			}
		}
		if maxScore < d.cfg.ConfidenceThresh {
			continue
		}

		cx := data[0*anchors+i]
		cy := data[1*anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]

		boxes = append(boxes, image.Rect(
			int((cx-w/2)*scaleX), int((cy-h/2)*scaleY),
			int((cx+w/2)*scaleX), int((cy+h/2)*scaleY),
		))
		confidences = append(confidences, maxScore)
		classIDs = append(classIDs, maxClass)
	}

	if len(boxes) == 0 {
		return nil, nil
	}

	indices := gocv.NMSBoxes(boxes, confidences, d.cfg.ConfidenceThresh, d.cfg.NMSThresh)

	out := make([]models.RawDetection, 0, len(indices))
	for _, idx := range indices {
		b := boxes[idx]
		out = append(out, models.RawDetection{
			ClassID:    classIDs[idx],
			Confidence: float64(confidences[idx]),
			BBox:       models.BBox{float64(b.Min.X), float64(b.Min.Y), float64(b.Max.X), float64(b.Max.Y)},
		})
	}
	return out, nil
}

// Close waits for in-flight calls and releases every network.
// Calls to Detect after Close fail with ErrDetectorClosed.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.closeNets()
}

func (d *Detector) closeNets() error {
	var first error
	for i := range d.nets {
		if err := d.nets[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	d.nets = nil
	return first
}
