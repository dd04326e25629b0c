package geo

import (
	"math"
	"testing"

	"freshdeal/models"
)

func TestHaversineDistanceKm(t *testing.T) {
	points := []Point{
		{41.0082, 28.9784},
		{40.7128, -74.0060},
		{-33.8688, 151.2093},
		{0, 0},
		{89.9, 179.9},
	}

	for _, p := range points {
		if d := HaversineDistanceKm(p.Lat, p.Lon, p.Lat, p.Lon); d != 0 {
			t.Errorf("distance from %v to itself = %v, want 0", p, d)
		}
	}

	for _, a := range points {
		for _, b := range points {
			ab := HaversineDistanceKm(a.Lat, a.Lon, b.Lat, b.Lon)
			ba := HaversineDistanceKm(b.Lat, b.Lon, a.Lat, a.Lon)
			if math.Abs(ab-ba) > 1e-9 {
				t.Errorf("asymmetric distance %v<->%v: %v vs %v", a, b, ab, ba)
			}
		}
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Istanbul to Ankara is roughly 350 km as the crow flies.
	d := HaversineDistanceKm(41.0082, 28.9784, 39.9334, 32.8597)
	if d < 345 || d > 355 {
		t.Fatalf("Istanbul-Ankara = %.1f km, want ~350", d)
	}

	// One degree of latitude along a meridian.
	d = HaversineDistanceKm(0, 0, 1, 0)
	if math.Abs(d-111.19) > 0.05 {
		t.Fatalf("one degree = %.3f km, want ~111.19", d)
	}
}

func TestHaversineNaNPropagates(t *testing.T) {
	if d := HaversineDistanceKm(math.NaN(), 0, 1, 1); !math.IsNaN(d) {
		t.Fatalf("want NaN, got %v", d)
	}
}

func TestDistanceFrom(t *testing.T) {
	lat, lon := 41.0, 29.0
	origin := Point{Lat: 41.0, Lon: 29.0}

	if _, ok := DistanceFrom(models.Restaurant{}, origin); ok {
		t.Fatal("want ok=false without coordinates")
	}
	if _, ok := DistanceFrom(models.Restaurant{Latitude: &lat}, origin); ok {
		t.Fatal("want ok=false with only latitude")
	}

	km, ok := DistanceFrom(models.Restaurant{Latitude: &lat, Longitude: &lon}, origin)
	if !ok || km != 0 {
		t.Fatalf("DistanceFrom = %v, %v; want 0, true", km, ok)
	}
}

func TestCell(t *testing.T) {
	a := Cell(Point{Lat: 41.0082, Lon: 28.9784})
	if len(a) != CellPrecision {
		t.Fatalf("cell %q has length %d, want %d", a, len(a), CellPrecision)
	}
	if b := Cell(Point{Lat: 41.00821, Lon: 28.97841}); a != b {
		t.Fatalf("nearby points in different cells: %q vs %q", a, b)
	}
	if c := Cell(Point{Lat: 39.9334, Lon: 32.8597}); a == c {
		t.Fatalf("distant points share cell %q", a)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		p    Point
		want bool
	}{
		{Point{41, 29}, true},
		{Point{-90, 180}, true},
		{Point{91, 0}, false},
		{Point{0, -181}, false},
		{Point{math.NaN(), 0}, false},
	}
	for _, tt := range tests {
		if got := Valid(tt.p); got != tt.want {
			t.Errorf("Valid(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}
