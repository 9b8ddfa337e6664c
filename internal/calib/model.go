// Package calib holds mapping calibration data: dead zones, offsets and the fit policy.
package calib

// Rect describes a rectangle using top-left origin and size.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Offset is an additive correction applied after the fit transform.
type Offset struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// Pair is one calibration sample: a source point and where it was observed on the target.
type Pair struct {
	SourceX float64 `json:"sourceX"`
	SourceY float64 `json:"sourceY"`
	TargetX float64 `json:"targetX"`
	TargetY float64 `json:"targetY"`
}

// Calib stores the persisted mapping options.
type Calib struct {
	FitPolicy  string `json:"fitPolicy,omitempty"`
	Offset     Offset `json:"calibrationOffset"`
	DeadZones  []Rect `json:"deadZones,omitempty"`
	AutoRotate bool   `json:"autoRotate,omitempty"`
}

// Normalize returns a rectangle with non-negative width/height.
func Normalize(r Rect) Rect {
	if r.W < 0 {
		r.X += r.W
		r.W = -r.W
	}
	if r.H < 0 {
		r.Y += r.H
		r.H = -r.H
	}
	return r
}

// Contains reports whether a point is inside the rectangle (edges inclusive).
func Contains(r Rect, x, y int) bool {
	if r.W <= 0 || r.H <= 0 {
		return false
	}
	maxX := r.X + r.W
	maxY := r.Y + r.H
	return x >= r.X && x <= maxX && y >= r.Y && y <= maxY
}

// InAny reports whether the point lies in any of the rectangles.
func InAny(rects []Rect, x, y int) bool {
	for _, r := range rects {
		if Contains(Normalize(r), x, y) {
			return true
		}
	}
	return false
}
