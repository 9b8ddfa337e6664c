package control

import "github.com/frudas24/touchmirror/internal/geometry"

// NormToSource maps normalized surface coordinates to source pixels. Out-of-range values are clamped.
func NormToSource(xn, yn float64, source geometry.Size) (float64, float64) {
	return normToPixels(clamp01(xn), source.W), normToPixels(clamp01(yn), source.H)
}

// SourceToNorm maps target-space pixels back to the [0..1] range of extent.
func SourceToNorm(x, y int, extent geometry.Size) (float64, float64) {
	if extent.W <= 1 || extent.H <= 1 {
		return 0, 0
	}
	return clamp01(float64(x) / float64(extent.W-1)), clamp01(float64(y) / float64(extent.H-1))
}

// normToPixels scales a normalized value across span pixels.
func normToPixels(norm float64, span int) float64 {
	if span <= 1 {
		return 0
	}
	return norm * float64(span-1)
}

// clamp01 bounds a float to the [0..1] range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
