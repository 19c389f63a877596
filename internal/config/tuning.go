package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the empirical threat-scoring constants. Zero values mean
// "keep the built-in default", so a tuning file may override a subset.
type Tuning struct {
	Scoring struct {
		PeoplePerPerson float64 `yaml:"people_per_person"`
		PeopleCap       float64 `yaml:"people_cap"`

		NearDistance float64 `yaml:"near_distance"`
		MidDistance  float64 `yaml:"mid_distance"`
		FarDistance  float64 `yaml:"far_distance"`

		NearMultiplier     float64 `yaml:"near_multiplier"`
		MidMultiplier      float64 `yaml:"mid_multiplier"`
		FarMultiplier      float64 `yaml:"far_multiplier"`
		DistantMultiplier  float64 `yaml:"distant_multiplier"`
		NoPeopleMultiplier float64 `yaml:"no_people_multiplier"`

		MultiWeaponStep       float64 `yaml:"multi_weapon_step"`
		AlertBonus            float64 `yaml:"alert_bonus"`
		InteractionMultiplier float64 `yaml:"interaction_multiplier"`
	} `yaml:"scoring"`

	Weapons map[int]struct {
		Name          string  `yaml:"name"`
		Severity      float64 `yaml:"severity"`
		MinConfidence float64 `yaml:"min_confidence"`
	} `yaml:"weapons"`
}

// LoadTuning reads an optional YAML tuning file. An empty path yields an
// empty Tuning.
func LoadTuning(path string) (*Tuning, error) {
	t := &Tuning{}
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tuning file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parse tuning file %s: %w", path, err)
	}

	for id, w := range t.Weapons {
		if w.Name == "" {
			return nil, fmt.Errorf("tuning file %s: weapon class %d has no name", path, id)
		}
		if w.Severity < 0 || w.MinConfidence < 0 || w.MinConfidence > 1 {
			return nil, fmt.Errorf("tuning file %s: weapon class %d has invalid severity or min_confidence", path, id)
		}
	}

	return t, nil
}
