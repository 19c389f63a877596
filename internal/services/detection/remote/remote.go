package remote

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/internal/services/detection"
)

const (
	// Scheme selects this backend in a model path: grpc://host:port/model
	Scheme = "grpc"

	// DetectMethod is the unary RPC invoked per frame. Request and response are
	// google.protobuf.Struct values.
	DetectMethod = "/sentinel.detection.v1.Detector/Detect"

	healthTimeout = 3 * time.Second
)

// Detector forwards frames to a remote inference service over gRPC
type Detector struct {
	mu     sync.Mutex
	conn   *grpc.ClientConn
	target string
	model  string
	closed bool
}

// Load is a detection.LoaderFunc for grpc:// model paths. The service must
// report SERVING for the model before the detector is handed out.
func Load(ctx context.Context, path string) (detection.Detector, error) {
	target, model, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to detection service: %w", err)
	}

	hctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(hctx, &healthpb.HealthCheckRequest{Service: model})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("detection service health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		conn.Close()
		return nil, fmt.Errorf("model %s on %s is %s: %w", model, target, resp.GetStatus(), detection.ErrModelNotFound)
	}

	log.Info().Str("target", target).Str("model", model).Msg("Connected to remote detection service")

	return &Detector{conn: conn, target: target, model: model}, nil
}

// ParsePath splits grpc://host:port/model into the dial target and model name
func ParsePath(path string) (string, string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", fmt.Errorf("parse model path %s: %w", path, err)
	}
	if u.Scheme != Scheme || u.Host == "" {
		return "", "", fmt.Errorf("model path %s is not grpc://host:port/model: %w", path, detection.ErrModelNotFound)
	}
	model := strings.Trim(u.Path, "/")
	if model == "" {
		return "", "", fmt.Errorf("model path %s has no model name: %w", path, detection.ErrModelNotFound)
	}
	return u.Host, model, nil
}

func (d *Detector) Detect(ctx context.Context, frame []byte) ([]models.RawDetection, error) {
	d.mu.Lock()
	conn, closed := d.conn, d.closed
	d.mu.Unlock()
	if closed {
		return nil, detection.ErrDetectorClosed
	}

	req, err := structpb.NewStruct(map[string]interface{}{
		"model": d.model,
		"frame": base64.StdEncoding.EncodeToString(frame),
	})
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := conn.Invoke(ctx, DetectMethod, req, resp); err != nil {
		return nil, fmt.Errorf("remote detect: %w", err)
	}

	return DecodeDetections(resp)
}

// DecodeDetections reads {"detections":[{"class_id","confidence","bbox":[x1,y1,x2,y2]}]}
func DecodeDetections(resp *structpb.Struct) ([]models.RawDetection, error) {
	list := resp.GetFields()["detections"].GetListValue()
	if list == nil {
		return nil, nil
	}

	out := make([]models.RawDetection, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		fields := v.GetStructValue().GetFields()
		if fields == nil {
			return nil, fmt.Errorf("detection %d is not an object", i)
		}
		bbox := fields["bbox"].GetListValue().GetValues()
		if len(bbox) != 4 {
			return nil, fmt.Errorf("detection %d has %d bbox values, want 4", i, len(bbox))
		}
		out = append(out, models.RawDetection{
			ClassID:    int(fields["class_id"].GetNumberValue()),
			Confidence: fields["confidence"].GetNumberValue(),
			BBox: models.BBox{
				bbox[0].GetNumberValue(), bbox[1].GetNumberValue(),
				bbox[2].GetNumberValue(), bbox[3].GetNumberValue(),
			},
		})
	}
	return out, nil
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	log.Info().Str("target", d.target).Msg("Shutting down detection service connection")
	return d.conn.Close()
}
