// Package geometry maps points between the local capture surface and the peer display.
package geometry

import (
	"math"
	"sync"

	"github.com/frudas24/touchmirror/internal/calib"
	"github.com/frudas24/touchmirror/internal/fault"
)

// Mapper converts source-space points into target space. It is safe for concurrent use;
// every reconfiguration swaps the cached Transform under the write lock.
type Mapper struct {
	mu           sync.RWMutex
	source       Size
	target       Size
	policy       FitPolicy
	sourceOrient Orientation
	targetOrient Orientation
	autoRotate   bool
	transform    Transform
	offset       calib.Offset
	deadZones    []calib.Rect
}

// Info is a read-only snapshot of the mapper configuration.
type Info struct {
	Source        Size         `json:"source"`
	Target        Size         `json:"target"`
	Policy        FitPolicy    `json:"fitPolicy"`
	Rotation      string       `json:"rotation"`
	Transform     Transform    `json:"transform"`
	Offset        calib.Offset `json:"calibrationOffset"`
	DeadZones     []calib.Rect `json:"deadZones"`
	EffectiveArea calib.Rect   `json:"effectiveArea"`
}

// MappingSample pairs a source probe point with its mapped result.
type MappingSample struct {
	Source     Point `json:"source"`
	Target     Point `json:"target"`
	Suppressed bool  `json:"suppressed"`
}

// NewMapper returns a mapper configured for the given extents and policy.
func NewMapper(source, target Size, policy FitPolicy) (*Mapper, error) {
	m := &Mapper{}
	if err := m.Configure(source, target, policy); err != nil {
		return nil, err
	}
	return m, nil
}

// Configure replaces source, target and policy. Invalid input leaves the prior transform in place.
func (m *Mapper) Configure(source, target Size, policy FitPolicy) error {
	if err := source.Validate(); err != nil {
		return err
	}
	if err := target.Validate(); err != nil {
		return err
	}
	p, err := ParseFitPolicy(string(policy))
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.source = source
	m.target = target
	m.policy = p
	m.recomputeLocked()
	return nil
}

// SetTarget replaces the peer display extent.
func (m *Mapper) SetTarget(target Size) error {
	if err := target.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.target = target
	m.recomputeLocked()
	return nil
}

// SetSource replaces the local surface extent.
func (m *Mapper) SetSource(source Size) error {
	if err := source.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.source = source
	m.recomputeLocked()
	return nil
}

// SetPolicy replaces the fit policy.
func (m *Mapper) SetPolicy(policy FitPolicy) error {
	p, err := ParseFitPolicy(string(policy))
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = p
	m.recomputeLocked()
	return nil
}

// SetOrientations declares the orientation of each display. Perpendicular orientations add a quarter turn.
func (m *Mapper) SetOrientations(source, target Orientation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sourceOrient = source
	m.targetOrient = target
	m.recomputeLocked()
}

// SetAutoRotate derives orientations from the extents instead of the declared values.
func (m *Mapper) SetAutoRotate(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoRotate = enabled
	m.recomputeLocked()
}

// SetCalibrationOffset replaces the additive correction.
func (m *Mapper) SetCalibrationOffset(o calib.Offset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offset = o
}

// CalibrationOffset returns the current additive correction.
func (m *Mapper) CalibrationOffset() calib.Offset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.offset
}

// SetDeadZones replaces all dead zones. Empty rectangles are rejected.
func (m *Mapper) SetDeadZones(zones []calib.Rect) error {
	out := make([]calib.Rect, 0, len(zones))
	for _, z := range zones {
		n, err := validZone(z)
		if err != nil {
			return err
		}
		out = append(out, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadZones = out
	return nil
}

// AddDeadZone appends a dead zone in target space.
func (m *Mapper) AddDeadZone(z calib.Rect) error {
	n, err := validZone(z)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadZones = append(m.deadZones, n)
	return nil
}

// RemoveDeadZone removes the zone at index i and reports whether it existed.
func (m *Mapper) RemoveDeadZone(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.deadZones) {
		return false
	}
	m.deadZones = append(m.deadZones[:i:i], m.deadZones[i+1:]...)
	return true
}

// ClearDeadZones removes every dead zone.
func (m *Mapper) ClearDeadZones() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadZones = nil
}

// DeadZones returns a copy of the configured dead zones.
func (m *Mapper) DeadZones() []calib.Rect {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]calib.Rect(nil), m.deadZones...)
}

// Map converts a source point into target space. It returns false for non-finite input
// and for points that land inside a dead zone.
func (m *Mapper) Map(x, y float64) (Point, bool) {
	if !finite(x, y) {
		return Point{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ty := m.rawLocked(x, y)
	p := Point{
		X: clampPixel(tx+m.offset.DX, m.target.W),
		Y: clampPixel(ty+m.offset.DY, m.target.H),
	}
	if calib.InAny(m.deadZones, p.X, p.Y) {
		return Point{}, false
	}
	return p, true
}

// ReverseMap converts a target point back into source space, clamped to the source bounds.
func (m *Mapper) ReverseMap(x, y float64) Point {
	if !finite(x, y) {
		return Point{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t := m.transform
	rx := (x - m.offset.DX - t.OffsetX) / t.ScaleX
	ry := (y - m.offset.DY - t.OffsetY) / t.ScaleY
	sx, sy := unrotate(rx, ry, m.source, t.Rotation)
	return Point{X: clampPixel(sx, m.source.W), Y: clampPixel(sy, m.source.H)}
}

// Calibrate averages the residual between observed target points and the uncalibrated
// mapping of their source points, and adopts it as the calibration offset.
func (m *Mapper) Calibrate(pairs []calib.Pair) error {
	if len(pairs) < 2 {
		return fault.Newf(fault.KindCalibration, "calibrate", "need at least 2 points, got %d", len(pairs))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var sumX, sumY float64
	for _, p := range pairs {
		if !finite(p.SourceX, p.SourceY) || !finite(p.TargetX, p.TargetY) {
			return fault.New(fault.KindCalibration, "calibrate", "non-finite calibration point")
		}
		tx, ty := m.rawLocked(p.SourceX, p.SourceY)
		sumX += p.TargetX - tx
		sumY += p.TargetY - ty
	}
	n := float64(len(pairs))
	m.offset = calib.Offset{DX: sumX / n, DY: sumY / n}
	return nil
}

// Transform returns the cached transform.
func (m *Mapper) Transform() Transform {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.transform
}

// Target returns the current peer display extent.
func (m *Mapper) Target() Size {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.target
}

// Source returns the current local surface extent.
func (m *Mapper) Source() Size {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.source
}

// Policy returns the current fit policy.
func (m *Mapper) Policy() FitPolicy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.policy
}

// EffectiveArea returns the scaled source rectangle in target space, before clamping.
func (m *Mapper) EffectiveArea() calib.Rect {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.effectiveAreaLocked()
}

// Info returns a snapshot of the full mapping configuration.
func (m *Mapper) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Info{
		Source:        m.source,
		Target:        m.target,
		Policy:        m.policy,
		Rotation:      m.transform.Rotation.String(),
		Transform:     m.transform,
		Offset:        m.offset,
		DeadZones:     append([]calib.Rect(nil), m.deadZones...),
		EffectiveArea: m.effectiveAreaLocked(),
	}
}

// Calib exports the persisted mapping options.
func (m *Mapper) Calib() calib.Calib {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return calib.Calib{
		FitPolicy:  string(m.policy),
		Offset:     m.offset,
		DeadZones:  append([]calib.Rect(nil), m.deadZones...),
		AutoRotate: m.autoRotate,
	}
}

// ApplyCalib restores persisted mapping options. Nothing changes if any option is invalid.
func (m *Mapper) ApplyCalib(c calib.Calib) error {
	policy, err := ParseFitPolicy(c.FitPolicy)
	if err != nil {
		return err
	}
	zones := make([]calib.Rect, 0, len(c.DeadZones))
	for _, z := range c.DeadZones {
		n, err := validZone(z)
		if err != nil {
			return err
		}
		zones = append(zones, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy = policy
	m.offset = c.Offset
	m.deadZones = zones
	m.autoRotate = c.AutoRotate
	m.recomputeLocked()
	return nil
}

// TestPattern maps a steps×steps grid spanning the source surface.
func (m *Mapper) TestPattern(steps int) []MappingSample {
	if steps < 2 {
		steps = 2
	}
	src := m.Source()
	out := make([]MappingSample, 0, steps*steps)
	for j := 0; j < steps; j++ {
		for i := 0; i < steps; i++ {
			sx := math.Round(float64(i) * float64(src.W-1) / float64(steps-1))
			sy := math.Round(float64(j) * float64(src.H-1) / float64(steps-1))
			p, ok := m.Map(sx, sy)
			out = append(out, MappingSample{
				Source:     Point{X: int(sx), Y: int(sy)},
				Target:     p,
				Suppressed: !ok,
			})
		}
	}
	return out
}

// recomputeLocked refreshes the cached transform. Callers hold the write lock.
func (m *Mapper) recomputeLocked() {
	if m.source.Validate() != nil || m.target.Validate() != nil {
		return
	}
	so, to := m.sourceOrient, m.targetOrient
	if m.autoRotate {
		so, to = OrientationOf(m.source), OrientationOf(m.target)
	}
	m.transform = computeTransform(m.source, m.target, m.policy, rotationFor(so, to))
}

// rawLocked applies rotation, scale and offset without calibration, rounding or clamping.
func (m *Mapper) rawLocked(x, y float64) (float64, float64) {
	t := m.transform
	rx, ry := rotate(x, y, m.source, t.Rotation)
	return rx*t.ScaleX + t.OffsetX, ry*t.ScaleY + t.OffsetY
}

// effectiveAreaLocked computes the scaled source rectangle. Callers hold a lock.
func (m *Mapper) effectiveAreaLocked() calib.Rect {
	t := m.transform
	eff := rotatedExtent(m.source, t.Rotation)
	return calib.Rect{
		X: int(math.Round(t.OffsetX + m.offset.DX)),
		Y: int(math.Round(t.OffsetY + m.offset.DY)),
		W: int(math.Round(float64(eff.W) * t.ScaleX)),
		H: int(math.Round(float64(eff.H) * t.ScaleY)),
	}
}

// validZone normalizes a dead zone and rejects empty ones.
func validZone(z calib.Rect) (calib.Rect, error) {
	n := calib.Normalize(z)
	if n.W <= 0 || n.H <= 0 {
		return calib.Rect{}, fault.Newf(fault.KindGeometry, "dead zone", "empty dead zone %+v", z)
	}
	return n, nil
}
