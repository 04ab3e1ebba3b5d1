package farm

import (
	"math"
	"testing"
)

func TestNeedsCleaningPredicate(t *testing.T) {
	cases := []struct {
		dust       float64
		efficiency float64
		want       bool
	}{
		{dust: 300, efficiency: 85, want: false},
		{dust: 300.01, efficiency: 90, want: true},
		{dust: 100, efficiency: 84.99, want: true},
		{dust: 400, efficiency: 80, want: true},
		{dust: 0, efficiency: 100, want: false},
	}
	for _, tc := range cases {
		if got := NeedsCleaning(tc.dust, tc.efficiency); got != tc.want {
			t.Fatalf("NeedsCleaning(%v, %v) = %v, want %v", tc.dust, tc.efficiency, got, tc.want)
		}
	}
}

func TestSetEfficiencyKeepsVoltageInvariant(t *testing.T) {
	var p Panel
	p.SetEfficiency(92.5)
	want := 19.5 * 0.925
	if math.Abs(p.Voltage-want) > 1e-9 {
		t.Fatalf("expected voltage %v, got %v", want, p.Voltage)
	}
}

func TestSetDustClamps(t *testing.T) {
	var p Panel
	p.SetDust(1200)
	if p.DustLevel != MaxDustLevel {
		t.Fatalf("expected dust clamped to %v, got %v", MaxDustLevel, p.DustLevel)
	}
	p.SetDust(-5)
	if p.DustLevel != 0 {
		t.Fatalf("expected dust clamped to 0, got %v", p.DustLevel)
	}
}

func TestSensorEfficiencyAtRatedPoint(t *testing.T) {
	if got := SensorEfficiency(19.5, 5.5); got != 100.0 {
		t.Fatalf("expected 100.0 at rated point, got %v", got)
	}
	if got := SensorEfficiency(40, 10); got != 100.0 {
		t.Fatalf("expected clamp to 100, got %v", got)
	}
	if got := SensorEfficiency(0, 5); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestSectorCode(t *testing.T) {
	if got := SectorCode(0, 0); got != "A1" {
		t.Fatalf("expected A1, got %s", got)
	}
	if got := SectorCode(8, 8); got != "I9" {
		t.Fatalf("expected I9, got %s", got)
	}
}
