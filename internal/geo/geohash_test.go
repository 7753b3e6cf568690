package geo

import (
	"math"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name      string
		lat       float64
		lng       float64
		precision int
		want      string
	}{
		{name: "bengaluru", lat: 12.9716, lng: 77.5946, precision: 6, want: "tdr1v9"},
		{name: "san francisco", lat: 37.7749, lng: -122.4194, precision: 6, want: "9q8yyk"},
		{name: "london", lat: 51.5074, lng: -0.1278, precision: 6, want: "gcpvj0"},
		{name: "zero precision falls back to 6", lat: 37.7749, lng: -122.4194, precision: 0, want: "9q8yyk"},
		{name: "higher precision extends the prefix", lat: 37.7749, lng: -122.4194, precision: 8, want: "9q8yyk8y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Encode(tt.lat, tt.lng, tt.precision); got != tt.want {
				t.Errorf("Encode(%v, %v, %d) = %q, want %q", tt.lat, tt.lng, tt.precision, got, tt.want)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	coords := []struct {
		lat float64
		lng float64
	}{
		{12.9716, 77.5946},
		{37.7749, -122.4194},
		{-33.8688, 151.2093},
		{35.6762, 139.6503},
		{0, 0},
	}

	for _, c := range coords {
		hash := Encode(c.lat, c.lng, 8)
		gotLat, gotLng := Decode(hash)
		if math.Abs(gotLat-c.lat) > 0.001 || math.Abs(gotLng-c.lng) > 0.001 {
			t.Errorf("round trip of (%v, %v) via %q gave (%v, %v)", c.lat, c.lng, hash, gotLat, gotLng)
		}
	}
}

func TestNeighbor(t *testing.T) {
	tests := []struct {
		direction string
		want      string
	}{
		{"n", "9q8yym"},
		{"s", "9q8yy7"},
		{"e", "9q8yys"},
		{"w", "9q8yyh"},
	}

	for _, tt := range tests {
		t.Run(tt.direction, func(t *testing.T) {
			if got := Neighbor("9q8yyk", tt.direction); got != tt.want {
				t.Errorf("Neighbor(9q8yyk, %s) = %q, want %q", tt.direction, got, tt.want)
			}
		})
	}
}

func TestNeighborsAreAdjacent(t *testing.T) {
	// A cell's neighbor, decoded, must be roughly one cell-width away and
	// re-encode to the neighbor hash itself.
	center := Encode(12.9716, 77.5946, 6)
	for _, dir := range []string{"n", "s", "e", "w"} {
		nb := Neighbor(center, dir)
		if nb == center {
			t.Errorf("neighbor %s equals center", dir)
		}
		if len(nb) != len(center) {
			t.Errorf("neighbor %s has length %d, want %d", dir, len(nb), len(center))
		}
		lat, lng := Decode(nb)
		if got := Encode(lat, lng, 6); got != nb {
			t.Errorf("decoded neighbor %q re-encodes to %q", nb, got)
		}
	}
}

func TestAllNeighborsFormsDistinctGrid(t *testing.T) {
	center := Encode(12.9716, 77.5946, 6)
	cells := AllNeighbors(center)

	if len(cells) != 9 {
		t.Fatalf("expected 9 cells (center + 8 neighbors), got %d", len(cells))
	}
	if cells[0] != center {
		t.Errorf("expected center first, got %q", cells[0])
	}

	seen := make(map[string]bool, len(cells))
	for _, c := range cells {
		if seen[c] {
			t.Errorf("duplicate cell %q in 3x3 grid", c)
		}
		seen[c] = true
	}
}

func BenchmarkEncode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Encode(12.9716, 77.5946, 6)
	}
}
