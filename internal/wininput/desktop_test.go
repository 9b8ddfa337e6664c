package wininput

import "testing"

// TestDesktopAbsolute verifies corners map to the ends of the SendInput range.
func TestDesktopAbsolute(t *testing.T) {
	cases := []struct {
		name   string
		d      desktop
		x, y   int
		wx, wy int32
	}{
		{"origin", desktop{0, 0, 1920, 1080}, 0, 0, 0, 0},
		{"far corner", desktop{0, 0, 1920, 1080}, 1919, 1079, absoluteMax, absoluteMax},
		{"left monitor", desktop{-1920, 0, 3840, 1080}, -1920, 0, 0, 0},
		{"clamped", desktop{0, 0, 1920, 1080}, 5000, -10, absoluteMax, 0},
		{"degenerate", desktop{0, 0, 0, 0}, 1, 1, absoluteMax, absoluteMax},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x, y := tc.d.absolute(tc.x, tc.y)
			if x != tc.wx || y != tc.wy {
				t.Fatalf("expected (%d,%d), got (%d,%d)", tc.wx, tc.wy, x, y)
			}
		})
	}
}
