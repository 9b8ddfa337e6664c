package calib

import "testing"

// TestNormalize_FlipsNegativeSize verifies negative extents are flipped around the origin.
func TestNormalize_FlipsNegativeSize(t *testing.T) {
	r := Normalize(Rect{X: 10, Y: 10, W: -4, H: -6})
	if r != (Rect{X: 6, Y: 4, W: 4, H: 6}) {
		t.Fatalf("unexpected rect %+v", r)
	}
}

// TestContains_EdgesInclusive verifies boundary points count as inside.
func TestContains_EdgesInclusive(t *testing.T) {
	r := Rect{X: 0, Y: 0, W: 10, H: 10}
	if !Contains(r, 10, 10) || !Contains(r, 0, 0) {
		t.Fatalf("expected edges inside")
	}
	if Contains(r, 11, 5) {
		t.Fatalf("expected point outside")
	}
	if Contains(Rect{W: 0, H: 5}, 0, 0) {
		t.Fatalf("expected empty rect to contain nothing")
	}
}

// TestInAny_NormalizesEachRect verifies negative-size zones still match.
func TestInAny_NormalizesEachRect(t *testing.T) {
	zones := []Rect{{X: 100, Y: 100, W: -50, H: -50}}
	if !InAny(zones, 75, 75) {
		t.Fatalf("expected point inside normalized zone")
	}
	if InAny(nil, 0, 0) {
		t.Fatalf("expected no zones to match nothing")
	}
}
