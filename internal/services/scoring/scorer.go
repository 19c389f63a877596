package scoring

import (
	"math"

	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/models"
)

// Config holds the empirical scoring constants
type Config struct {
	PeoplePerPerson float64
	PeopleCap       float64

	// Normalized distance thresholds (center distance / sqrt(mean bbox area))
	NearDistance float64
	MidDistance  float64
	FarDistance  float64

	NearMultiplier     float64
	MidMultiplier      float64
	FarMultiplier      float64
	DistantMultiplier  float64
	NoPeopleMultiplier float64

	MultiWeaponStep       float64
	AlertBonus            float64
	InteractionMultiplier float64

	MaxScore float64
}

func DefaultConfig() Config {
	return Config{
		PeoplePerPerson: 0.3,
		PeopleCap:       2.0,

		NearDistance: 1.5,
		MidDistance:  3.0,
		FarDistance:  5.0,

		NearMultiplier:     1.5,
		MidMultiplier:      1.3,
		FarMultiplier:      1.1,
		DistantMultiplier:  0.8,
		NoPeopleMultiplier: 0.7,

		MultiWeaponStep:       0.3,
		AlertBonus:            1.0,
		InteractionMultiplier: 1.2,

		MaxScore: 10,
	}
}

// ConfigFromTuning overlays the non-zero values of a tuning file onto the defaults
func ConfigFromTuning(t *config.Tuning) Config {
	c := DefaultConfig()
	if t == nil {
		return c
	}
	s := t.Scoring
	overlay(&c.PeoplePerPerson, s.PeoplePerPerson)
	overlay(&c.PeopleCap, s.PeopleCap)
	overlay(&c.NearDistance, s.NearDistance)
	overlay(&c.MidDistance, s.MidDistance)
	overlay(&c.FarDistance, s.FarDistance)
	overlay(&c.NearMultiplier, s.NearMultiplier)
	overlay(&c.MidMultiplier, s.MidMultiplier)
	overlay(&c.FarMultiplier, s.FarMultiplier)
	overlay(&c.DistantMultiplier, s.DistantMultiplier)
	overlay(&c.NoPeopleMultiplier, s.NoPeopleMultiplier)
	overlay(&c.MultiWeaponStep, s.MultiWeaponStep)
	overlay(&c.AlertBonus, s.AlertBonus)
	overlay(&c.InteractionMultiplier, s.InteractionMultiplier)
	return c
}

func overlay(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// Scorer turns a detection set and alert state into a 0-10 threat level
type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

func (s *Scorer) Config() Config {
	return s.cfg
}

// Score applies the threat formula. The order of operations is fixed:
// people term, per-weapon proximity terms, multi-weapon factor, alert bonus,
// interaction factor, then clamp and round.
func (s *Scorer) Score(people []models.PersonDetection, weapons []models.WeaponDetection, alertActive bool) models.Score {
	c := s.cfg

	peopleThreat := math.Min(c.PeopleCap, float64(len(people))*c.PeoplePerPerson)

	weaponThreat := 0.0
	for _, w := range weapons {
		base := w.Severity * w.Confidence
		weaponThreat += base * s.proximityMultiplier(w, people)
	}

	if len(weapons) > 1 {
		weaponThreat *= 1 + c.MultiWeaponStep*float64(len(weapons)-1)
	}

	total := peopleThreat + weaponThreat
	if alertActive {
		total += c.AlertBonus
	}

	if len(weapons) > 0 && len(people) > 0 {
		total *= c.InteractionMultiplier
	}

	if total > c.MaxScore {
		total = c.MaxScore
	}
	return models.RoundScore(total)
}

func (s *Scorer) proximityMultiplier(w models.WeaponDetection, people []models.PersonDetection) float64 {
	c := s.cfg
	if len(people) == 0 {
		return c.NoPeopleMultiplier
	}

	d := NearestDistance(w.BBox, people)
	switch {
	case d < c.NearDistance:
		return c.NearMultiplier
	case d < c.MidDistance:
		return c.MidMultiplier
	case d < c.FarDistance:
		return c.FarMultiplier
	default:
		return c.DistantMultiplier
	}
}

// NearestDistance returns the smallest normalized center distance between the
// weapon box and any person box. Pairs whose mean area is not positive count
// as infinitely far.
func NearestDistance(weapon models.BBox, people []models.PersonDetection) float64 {
	best := math.Inf(1)
	wx, wy := weapon.Center()
	for _, p := range people {
		px, py := p.BBox.Center()
		meanArea := (weapon.Area() + p.BBox.Area()) / 2
		if meanArea <= 0 {
			continue
		}
		d := math.Hypot(wx-px, wy-py) / math.Sqrt(meanArea)
		if d < best {
			best = d
		}
	}
	return best
}
