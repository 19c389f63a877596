package confirm

import (
	"testing"
	"time"

	"sentinel-worker-go/internal/models"
)

func knife(conf float64) []models.WeaponDetection {
	return []models.WeaponDetection{{Name: "Knife", Confidence: conf, Severity: 8.5}}
}

func newConfirmer() *Confirmer {
	return New(Config{WindowTicks: 3})
}

func TestHighConfidenceConfirmsImmediately(t *testing.T) {
	c := newConfirmer()
	got := c.Confirm(1, time.Now(), knife(0.95))
	if len(got) != 1 || got[0].Confidence != 0.95 {
		t.Fatalf("confirmed = %+v, want the 0.95 knife", got)
	}
}

func TestMidConfidenceNeedsTwoTicks(t *testing.T) {
	c := newConfirmer()
	now := time.Now()

	if got := c.Confirm(1, now, knife(0.35)); len(got) != 0 {
		t.Fatalf("single 0.35 sighting confirmed: %+v", got)
	}
	got := c.Confirm(2, now.Add(time.Second/30), knife(0.35))
	if len(got) != 1 {
		t.Fatalf("second 0.35 sighting not confirmed: %+v", got)
	}
}

func TestLowConfidenceNeedsThreeTicks(t *testing.T) {
	c := newConfirmer()
	now := time.Now()

	c.Confirm(1, now, knife(0.22))
	got := c.Confirm(2, now, knife(0.22))
	// not confirmed on its own, but the prior entry is carried forward
	if len(got) != 1 || got[0].Confidence != 0.22 {
		t.Fatalf("tick 2 = %+v", got)
	}
	got = c.Confirm(3, now, knife(0.21))
	if len(got) != 1 || got[0].Confidence != 0.21 {
		t.Fatalf("tick 3 should confirm the current 0.21 knife, got %+v", got)
	}
}

func TestCarryForwardAcrossDropout(t *testing.T) {
	c := newConfirmer()
	now := time.Now()

	c.Confirm(1, now, knife(0.9))
	got := c.Confirm(2, now, nil)
	if len(got) != 1 || got[0].Confidence != 0.9 {
		t.Fatalf("dropout tick should carry forward, got %+v", got)
	}

	c.Confirm(3, now, nil)
	got = c.Confirm(4, now, nil)
	if len(got) != 0 {
		t.Fatalf("candidate outside the window carried forward: %+v", got)
	}
}

func TestWindowBoundedByTicks(t *testing.T) {
	c := newConfirmer()
	now := time.Now()
	for i := uint64(1); i <= 5; i++ {
		c.Confirm(i, now, nil)
	}
	w := c.Window()
	if len(w) != 3 || w[0].Tick != 3 || w[2].Tick != 5 {
		t.Fatalf("window = %+v, want ticks 3..5", w)
	}
}

func TestMaxAgePrunes(t *testing.T) {
	c := New(Config{WindowTicks: 3, MaxAge: 100 * time.Millisecond})
	now := time.Now()

	c.Confirm(1, now, knife(0.35))
	got := c.Confirm(2, now.Add(time.Second), knife(0.35))
	if len(got) != 0 {
		t.Fatalf("stale entry counted toward confirmation: %+v", got)
	}
	if len(c.Window()) != 1 {
		t.Fatalf("window = %+v, want only the current entry", c.Window())
	}
}

func TestReset(t *testing.T) {
	c := newConfirmer()
	c.Confirm(1, time.Now(), knife(0.9))
	c.Reset()
	if len(c.Window()) != 0 {
		t.Fatal("window not cleared")
	}
	if got := c.Confirm(2, time.Now(), nil); len(got) != 0 {
		t.Fatalf("carry-forward after reset: %+v", got)
	}
}
