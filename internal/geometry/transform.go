// Package geometry maps points between the local capture surface and the peer display.
package geometry

import "math"

// rotationFor picks the quarter turn for a source/target orientation pair.
func rotationFor(source, target Orientation) Rotation {
	switch {
	case source == Portrait && target == Landscape:
		return RotateCW
	case source == Landscape && target == Portrait:
		return RotateCCW
	default:
		return RotateNone
	}
}

// rotatedExtent returns the source extent as seen after rotation.
func rotatedExtent(source Size, rot Rotation) Size {
	if rot == RotateNone {
		return source
	}
	return Size{W: source.H, H: source.W}
}

// computeTransform derives the fit transform. Inputs must already be validated.
func computeTransform(source, target Size, policy FitPolicy, rot Rotation) Transform {
	eff := rotatedExtent(source, rot)
	sx := float64(target.W) / float64(eff.W)
	sy := float64(target.H) / float64(eff.H)

	switch policy {
	case FitStretch:
		return Transform{ScaleX: sx, ScaleY: sy, Rotation: rot}
	case FitCover:
		s := math.Max(sx, sy)
		return centered(eff, target, s, rot)
	default:
		s := math.Min(sx, sy)
		return centered(eff, target, s, rot)
	}
}

// centered builds a uniform transform that centers the scaled source in the target.
func centered(eff, target Size, scale float64, rot Rotation) Transform {
	return Transform{
		ScaleX:   scale,
		ScaleY:   scale,
		OffsetX:  (float64(target.W) - float64(eff.W)*scale) / 2,
		OffsetY:  (float64(target.H) - float64(eff.H)*scale) / 2,
		Rotation: rot,
	}
}

// rotate applies the quarter turn to a source point.
func rotate(x, y float64, source Size, rot Rotation) (float64, float64) {
	switch rot {
	case RotateCW:
		return float64(source.H) - y, x
	case RotateCCW:
		return y, float64(source.W) - x
	default:
		return x, y
	}
}

// unrotate inverts rotate.
func unrotate(x, y float64, source Size, rot Rotation) (float64, float64) {
	switch rot {
	case RotateCW:
		return y, float64(source.H) - x
	case RotateCCW:
		return float64(source.W) - y, x
	default:
		return x, y
	}
}

// clampPixel rounds v and bounds it to [0, span-1].
func clampPixel(v float64, span int) int {
	if span <= 1 {
		return 0
	}
	p := int(math.Round(v))
	if p < 0 {
		return 0
	}
	if p > span-1 {
		return span - 1
	}
	return p
}

// finite reports whether both coordinates are usable numbers.
func finite(x, y float64) bool {
	return !math.IsNaN(x) && !math.IsNaN(y) && !math.IsInf(x, 0) && !math.IsInf(y, 0)
}
