package control

import (
	"testing"

	"github.com/frudas24/touchmirror/internal/geometry"
)

// TestNormToSource_Corners verifies corner mapping.
func TestNormToSource_Corners(t *testing.T) {
	size := geometry.Size{W: 2048, H: 1536}
	x, y := NormToSource(0, 0, size)
	if x != 0 || y != 0 {
		t.Fatalf("expected (0,0), got (%v,%v)", x, y)
	}
	x, y = NormToSource(1, 1, size)
	if x != 2047 || y != 1535 {
		t.Fatalf("expected (2047,1535), got (%v,%v)", x, y)
	}
}

// TestNormToSource_ClampOutOfRange verifies normalization clamps out-of-range values.
func TestNormToSource_ClampOutOfRange(t *testing.T) {
	x, y := NormToSource(-1, 2, geometry.Size{W: 101, H: 201})
	if x != 0 || y != 200 {
		t.Fatalf("expected clamped (0,200), got (%v,%v)", x, y)
	}
}

// TestSourceToNorm_Center verifies target pixels are normalized to the extent.
func TestSourceToNorm_Center(t *testing.T) {
	x, y := SourceToNorm(50, 100, geometry.Size{W: 101, H: 201})
	if x != 0.5 || y != 0.5 {
		t.Fatalf("expected (0.5,0.5), got (%v,%v)", x, y)
	}
}

// TestSourceToNorm_EmptyExtent verifies a degenerate extent yields the origin.
func TestSourceToNorm_EmptyExtent(t *testing.T) {
	x, y := SourceToNorm(5, 5, geometry.Size{})
	if x != 0 || y != 0 {
		t.Fatalf("expected origin, got (%v,%v)", x, y)
	}
}
