// Package geometry maps points between the local capture surface and the peer display.
package geometry

import (
	"strings"

	"github.com/frudas24/touchmirror/internal/fault"
)

// Size is a display's pixel extent.
type Size struct {
	W int `json:"width"`
	H int `json:"height"`
}

// Validate rejects zero or negative extents.
func (s Size) Validate() error {
	if s.W <= 0 || s.H <= 0 {
		return fault.Newf(fault.KindGeometry, "validate", "invalid size %dx%d", s.W, s.H)
	}
	return nil
}

// FitPolicy selects how the source extent is scaled into the target.
type FitPolicy string

const (
	// FitContain scales uniformly without cropping and letterboxes the rest.
	FitContain FitPolicy = "contain"
	// FitCover scales uniformly to fill the target and may crop.
	FitCover FitPolicy = "cover"
	// FitStretch scales each axis independently.
	FitStretch FitPolicy = "stretch"
)

// ParseFitPolicy parses a policy name. An empty name means contain.
func ParseFitPolicy(s string) (FitPolicy, error) {
	switch p := FitPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return FitContain, nil
	case FitContain, FitCover, FitStretch:
		return p, nil
	default:
		return "", fault.Newf(fault.KindGeometry, "fit policy", "unknown fit policy %q", s)
	}
}

// Orientation describes which side of a display is longer.
type Orientation string

const (
	// Landscape means width >= height.
	Landscape Orientation = "landscape"
	// Portrait means height > width.
	Portrait Orientation = "portrait"
)

// OrientationOf derives the orientation of an extent.
func OrientationOf(s Size) Orientation {
	if s.H > s.W {
		return Portrait
	}
	return Landscape
}

// Rotation is the quarter turn applied to source points before scaling.
type Rotation int

const (
	// RotateNone leaves points untouched.
	RotateNone Rotation = iota
	// RotateCW turns a portrait source into a landscape target.
	RotateCW
	// RotateCCW turns a landscape source into a portrait target.
	RotateCCW
)

// String returns the rotation name used in mapping info.
func (r Rotation) String() string {
	switch r {
	case RotateCW:
		return "cw"
	case RotateCCW:
		return "ccw"
	default:
		return "none"
	}
}

// Transform is the cached scale and offset derived from source, target and policy.
type Transform struct {
	ScaleX   float64  `json:"scaleX"`
	ScaleY   float64  `json:"scaleY"`
	OffsetX  float64  `json:"offsetX"`
	OffsetY  float64  `json:"offsetY"`
	Rotation Rotation `json:"-"`
}

// Point is an integer pixel position.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}
