package alerts

import (
	"strings"
	"sync"
	"time"

	"sentinel-worker-go/internal/models"
)

const alertPrefix = "Weapon detected!"

// State is the per-camera weapon alert state.
// A zero LastWeapon means no weapon has been confirmed yet.
type State struct {
	LastWeapon time.Time
	Active     bool
}

// Machine tracks Idle/Active alert hysteresis for one camera
type Machine struct {
	mu    sync.Mutex
	state State
	decay time.Duration
}

func NewMachine(decay time.Duration) *Machine {
	return &Machine{decay: decay}
}

// Update feeds one processed tick of confirmed weapons into the machine.
// It returns a message only on the Idle to Active edge.
func (m *Machine) Update(weapons []models.WeaponDetection, now time.Time) *string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(weapons) > 0 {
		m.state.LastWeapon = now
		if m.state.Active {
			return nil
		}
		m.state.Active = true
		msg := alertMessage(weapons)
		return &msg
	}

	if m.state.Active && now.Sub(m.state.LastWeapon) > m.decay {
		m.state.Active = false
	}
	return nil
}

// Active reports whether the alert is currently raised
func (m *Machine) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Active
}

// Snapshot returns a copy of the current state
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reset returns the machine to Idle
func (m *Machine) Reset() {
	m.mu.Lock()
	m.state = State{}
	m.mu.Unlock()
}

func alertMessage(weapons []models.WeaponDetection) string {
	names := make([]string, 0, len(weapons))
	seen := make(map[string]struct{}, len(weapons))
	for _, w := range weapons {
		if _, ok := seen[w.Name]; ok {
			continue
		}
		seen[w.Name] = struct{}{}
		names = append(names, w.Name)
	}
	return alertPrefix + " " + strings.Join(names, ", ")
}
