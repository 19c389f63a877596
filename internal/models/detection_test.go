package models

import (
	"encoding/json"
	"testing"
)

func TestRoundScore(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{-1, 0},
		{8.5 * 1.0 * 0.7, 6.0},
		{5.949, 5.9},
		{12.3, 10},
		{3.14159, 3.1},
		{2.25, 2.3},
	}
	for _, tt := range tests {
		if got := RoundScore(tt.in).Float(); got != tt.want {
			t.Errorf("RoundScore(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestScoreMarshalsOneDecimal(t *testing.T) {
	data, err := json.Marshal(struct {
		S Score `json:"s"`
	}{S: RoundScore(6)})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"s":6.0}` {
		t.Errorf("got %s, want {\"s\":6.0}", data)
	}
}

func TestBBoxGeometry(t *testing.T) {
	b := BBox{10, 20, 30, 60}
	x, y := b.Center()
	if x != 20 || y != 40 {
		t.Errorf("Center = (%v,%v), want (20,40)", x, y)
	}
	if b.Area() != 800 {
		t.Errorf("Area = %v, want 800", b.Area())
	}
	if (BBox{5, 5, 1, 1}).Area() != 0 {
		t.Error("inverted box should have zero area")
	}
}
