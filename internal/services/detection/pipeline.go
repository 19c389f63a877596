package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/internal/services/alerts"
	"sentinel-worker-go/internal/services/confirm"
	"sentinel-worker-go/internal/services/scoring"
)

// ErrNoDetector is returned when no model has been loaded yet
var ErrNoDetector = errors.New("no detector loaded")

type PipelineConfig struct {
	PersonMinConfidence float64
	ObjectMinConfidence float64
	DetectTimeout       time.Duration
	Confirm             confirm.Config
	AlertDecay          time.Duration
}

// Pipeline turns one frame into a DetectionResult. It is shared by all
// cameras; per-camera state lives in CameraState.
type Pipeline struct {
	cfg      PipelineConfig
	registry *Registry
	classes  ClassTable
	scorer   *scoring.Scorer
}

// CameraState is the per-camera smoothing and alert state
type CameraState struct {
	Confirmer *confirm.Confirmer
	Alerts    *alerts.Machine
}

func NewPipeline(cfg PipelineConfig, registry *Registry, classes ClassTable, scorer *scoring.Scorer) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		registry: registry,
		classes:  classes,
		scorer:   scorer,
	}
}

func (p *Pipeline) NewCameraState() *CameraState {
	return &CameraState{
		Confirmer: confirm.New(p.cfg.Confirm),
		Alerts:    alerts.NewMachine(p.cfg.AlertDecay),
	}
}

// Process runs one full detection pass. A detector error leaves the camera
// state untouched so the caller can treat the tick as skipped.
func (p *Pipeline) Process(ctx context.Context, state *CameraState, tick uint64, now time.Time, frame []byte) (*models.DetectionResult, error) {
	active := p.registry.Current()
	if active == nil {
		return nil, ErrNoDetector
	}

	if p.cfg.DetectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.DetectTimeout)
		defer cancel()
	}

	raw, err := active.Detector.Detect(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("detect with %s: %w", active.Path, err)
	}

	people, candidates, objects := p.Classify(raw)

	weapons := state.Confirmer.Confirm(tick, now, candidates)
	alert := state.Alerts.Update(weapons, now)

	return &models.DetectionResult{
		People:      people,
		Weapons:     weapons,
		Objects:     objects,
		PeopleCount: len(people),
		ThreatLevel: p.scorer.Score(people, weapons, state.Alerts.Active()),
		Alert:       alert,
	}, nil
}

// Classify applies the per-class admission thresholds
func (p *Pipeline) Classify(raw []models.RawDetection) ([]models.PersonDetection, []models.WeaponDetection, []models.OtherObject) {
	people := make([]models.PersonDetection, 0)
	weapons := make([]models.WeaponDetection, 0)
	objects := make([]models.OtherObject, 0)

	for _, d := range raw {
		if d.ClassID == PersonClassID {
			if d.Confidence >= p.cfg.PersonMinConfidence {
				people = append(people, models.PersonDetection{BBox: d.BBox, Confidence: d.Confidence})
			}
			continue
		}

		if w, ok := p.classes.Weapon(d.ClassID); ok {
			if d.Confidence >= w.MinConfidence {
				weapons = append(weapons, models.WeaponDetection{
					Name:       w.Name,
					Confidence: d.Confidence,
					BBox:       d.BBox,
					Severity:   w.Severity,
				})
			}
			continue
		}

		if d.Confidence >= p.cfg.ObjectMinConfidence {
			objects = append(objects, models.OtherObject{
				Name:       ClassName(d.ClassID),
				Confidence: d.Confidence,
				BBox:       d.BBox,
			})
		}
	}
	return people, weapons, objects
}
