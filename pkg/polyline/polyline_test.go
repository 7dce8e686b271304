package polyline

import (
	"math"
	"testing"
)

func TestDecode_GoogleExample(t *testing.T) {
	tests := []struct {
		name     string
		encoded  string
		expected []Point
	}{
		{
			name:     "single point",
			encoded:  "_p~iF~ps|U",
			expected: []Point{{Lat: 38.5, Lng: -120.2}},
		},
		{
			name:    "three points",
			encoded: "_p~iF~ps|U_ulLnnqC_mqNvxq`@",
			expected: []Point{
				{Lat: 38.5, Lng: -120.2},
				{Lat: 40.7, Lng: -120.95},
				{Lat: 43.252, Lng: -126.453},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Decode(tt.encoded)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d points, got %d", len(tt.expected), len(result))
			}
			for i, p := range result {
				if !pointsEqual(p, tt.expected[i], 0.00001) {
					t.Errorf("point %d: expected %+v, got %+v", i, tt.expected[i], p)
				}
			}
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	result, err := Decode("")
	if err != nil || result != nil {
		t.Errorf("expected nil, nil for empty string, got %v, %v", result, err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	// Truncated after the latitude of the first point.
	if _, err := Decode("_p~iF"); err != ErrMalformed {
		t.Errorf("expected ErrMalformed for truncated input, got %v", err)
	}
	// Byte below the alphabet.
	if _, err := Decode("_p~iF~ps|U "); err != ErrMalformed {
		t.Errorf("expected ErrMalformed for out-of-alphabet byte, got %v", err)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	points := []Point{
		{Lat: 28.61, Lng: 77.20},
		{Lat: 28.6139, Lng: 77.2090},
		{Lat: 28.65, Lng: 77.10},
	}

	decoded, err := Decode(Encode(points))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(decoded) != len(points) {
		t.Fatalf("expected %d points, got %d", len(points), len(decoded))
	}
	for i := range points {
		if !pointsEqual(decoded[i], points[i], 0.00001) {
			t.Errorf("point %d: expected %+v, got %+v", i, points[i], decoded[i])
		}
	}

	if Encode(nil) != "" {
		t.Error("expected empty string for nil points")
	}
}

func TestLength(t *testing.T) {
	if Length(nil) != 0 {
		t.Error("expected zero length for nil path")
	}

	oneDegree := Length([]Point{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 0}})
	if math.Abs(oneDegree-111195) > 1000 {
		t.Errorf("expected ~111km for one degree of latitude, got %.0fm", oneDegree)
	}
}

func pointsEqual(a, b Point, tolerance float64) bool {
	return math.Abs(a.Lat-b.Lat) <= tolerance && math.Abs(a.Lng-b.Lng) <= tolerance
}
