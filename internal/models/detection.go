package models

import (
	"math"
	"strconv"
)

// BBox is an axis-aligned box in pixel coordinates: x1, y1, x2, y2
type BBox [4]float64

// Center returns the box midpoint
func (b BBox) Center() (float64, float64) {
	return (b[0] + b[2]) / 2, (b[1] + b[3]) / 2
}

// Area returns the box area, zero for degenerate boxes
func (b BBox) Area() float64 {
	w := b[2] - b[0]
	h := b[3] - b[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// RawDetection is a single detector output before class admission
type RawDetection struct {
	ClassID    int     `json:"class_id"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// PersonDetection represents an admitted person
type PersonDetection struct {
	BBox       BBox    `json:"bbox"`
	Confidence float64 `json:"confidence"`
}

// WeaponDetection represents a weapon candidate or a confirmed weapon
type WeaponDetection struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
	Severity   float64 `json:"severity"`
}

// OtherObject represents any admitted non-person, non-weapon object
type OtherObject struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	BBox       BBox    `json:"bbox"`
}

// DetectionResult is the per-tick analysis of one camera frame.
// It is rebuilt on every processed tick and must not be mutated once published.
type DetectionResult struct {
	People      []PersonDetection `json:"people"`
	Weapons     []WeaponDetection `json:"weapons"`
	Objects     []OtherObject     `json:"objects"`
	PeopleCount int               `json:"people_count"`
	ThreatLevel Score             `json:"threat_level"`
	Alert       *string           `json:"alert"`
}

// Score is a 0-10 value carried with exactly one decimal digit
type Score float64

// RoundScore clamps v to [0,10] and rounds half-up to one decimal.
// Values are snapped to 1e-6 first so binary representation error
// (8.5*0.7 = 5.949999...) does not pull a half down.
func RoundScore(v float64) Score {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	if v > 10 {
		v = 10
	}
	snapped := math.Round(v*1e6) / 1e6
	return Score(math.Floor(snapped*10+0.5) / 10)
}

// Float returns the raw value
func (s Score) Float() float64 {
	return float64(s)
}

// String formats the score with one decimal
func (s Score) String() string {
	return strconv.FormatFloat(float64(s), 'f', 1, 64)
}

// MarshalJSON always emits one decimal digit, e.g. 6.0 instead of 6
func (s Score) MarshalJSON() ([]byte, error) {
	return []byte(s.String()), nil
}
