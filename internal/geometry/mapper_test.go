package geometry

import (
	"math"
	"testing"

	"github.com/frudas24/touchmirror/internal/calib"
	"github.com/frudas24/touchmirror/internal/fault"
)

var policies = []FitPolicy{FitContain, FitCover, FitStretch}

var sizePairs = []struct{ source, target Size }{
	{Size{W: 2048, H: 1536}, Size{W: 3088, H: 1440}},
	{Size{W: 1080, H: 1920}, Size{W: 1920, H: 1080}},
	{Size{W: 640, H: 480}, Size{W: 640, H: 480}},
	{Size{W: 1, H: 1}, Size{W: 7, H: 3}},
	{Size{W: 3840, H: 2160}, Size{W: 800, H: 1280}},
}

// mustMapper builds a mapper or fails the test.
func mustMapper(t *testing.T, source, target Size, policy FitPolicy) *Mapper {
	t.Helper()
	m, err := NewMapper(source, target, policy)
	if err != nil {
		t.Fatalf("NewMapper failed: %v", err)
	}
	return m
}

// TestMap_StaysInsideTarget verifies every source point lands within target bounds for all policies.
func TestMap_StaysInsideTarget(t *testing.T) {
	for _, pair := range sizePairs {
		for _, policy := range policies {
			for _, autoRotate := range []bool{false, true} {
				m := mustMapper(t, pair.source, pair.target, policy)
				m.SetAutoRotate(autoRotate)
				for _, fx := range []float64{0, 0.13, 0.5, 0.99, 1} {
					for _, fy := range []float64{0, 0.27, 0.5, 0.75, 1} {
						x := fx * float64(pair.source.W)
						y := fy * float64(pair.source.H)
						p, ok := m.Map(x, y)
						if !ok {
							t.Fatalf("%v %v: unexpected suppression at (%v,%v)", pair, policy, x, y)
						}
						if p.X < 0 || p.X > pair.target.W-1 || p.Y < 0 || p.Y > pair.target.H-1 {
							t.Fatalf("%v %v rotate=%v: point (%v,%v) escaped to %+v", pair, policy, autoRotate, x, y, p)
						}
					}
				}
			}
		}
	}
}

// TestFit_ContainNeverCropsCoverFills verifies the scaled extents honor each policy.
func TestFit_ContainNeverCropsCoverFills(t *testing.T) {
	const eps = 1e-9
	for _, pair := range sizePairs {
		contain := mustMapper(t, pair.source, pair.target, FitContain).Transform()
		w := float64(pair.source.W) * contain.ScaleX
		h := float64(pair.source.H) * contain.ScaleY
		if w > float64(pair.target.W)+eps || h > float64(pair.target.H)+eps {
			t.Fatalf("contain cropped %v: %vx%v", pair, w, h)
		}
		if contain.OffsetX < -eps || contain.OffsetY < -eps {
			t.Fatalf("contain produced negative offset %+v", contain)
		}

		cover := mustMapper(t, pair.source, pair.target, FitCover).Transform()
		w = float64(pair.source.W) * cover.ScaleX
		h = float64(pair.source.H) * cover.ScaleY
		if w+eps < float64(pair.target.W) && h+eps < float64(pair.target.H) {
			t.Fatalf("cover did not fill %v: %vx%v", pair, w, h)
		}
	}
}

// TestContain_DefaultDisplaysLetterbox verifies the concrete contain transform for the default displays.
func TestContain_DefaultDisplaysLetterbox(t *testing.T) {
	m := mustMapper(t, Size{W: 2048, H: 1536}, Size{W: 3088, H: 1440}, FitContain)
	tr := m.Transform()
	if tr.ScaleX != 0.9375 || tr.ScaleY != 0.9375 {
		t.Fatalf("expected scale 0.9375, got %+v", tr)
	}
	if tr.OffsetX != 584 || tr.OffsetY != 0 {
		t.Fatalf("expected offset (584,0), got %+v", tr)
	}
	p, ok := m.Map(1024, 768)
	if !ok || p != (Point{X: 1544, Y: 720}) {
		t.Fatalf("expected center (1544,720), got %+v ok=%v", p, ok)
	}
	if area := m.EffectiveArea(); area != (calib.Rect{X: 584, Y: 0, W: 1920, H: 1440}) {
		t.Fatalf("unexpected effective area %+v", area)
	}
}

// TestCover_NegativeOffsetCrops verifies cover offsets go negative on the cropped axis.
func TestCover_NegativeOffsetCrops(t *testing.T) {
	m := mustMapper(t, Size{W: 2048, H: 1536}, Size{W: 3088, H: 1440}, FitCover)
	tr := m.Transform()
	if tr.OffsetX != 0 || tr.OffsetY >= 0 {
		t.Fatalf("expected crop on Y only, got %+v", tr)
	}
}

// TestStretch_RoundTripWithinOnePixel verifies reverseMap(map(p)) recovers p under stretch.
func TestStretch_RoundTripWithinOnePixel(t *testing.T) {
	m := mustMapper(t, Size{W: 1000, H: 500}, Size{W: 3088, H: 1440}, FitStretch)
	for x := 0; x < 1000; x += 37 {
		for y := 0; y < 500; y += 23 {
			p, ok := m.Map(float64(x), float64(y))
			if !ok {
				t.Fatalf("unexpected suppression")
			}
			back := m.ReverseMap(float64(p.X), float64(p.Y))
			if abs(back.X-x) > 1 || abs(back.Y-y) > 1 {
				t.Fatalf("round trip (%d,%d) -> %+v -> %+v", x, y, p, back)
			}
		}
	}
}

// TestRotation_RoundTripBothDirections verifies quarter turns invert exactly.
func TestRotation_RoundTripBothDirections(t *testing.T) {
	cases := []struct {
		name           string
		source, target Size
		want           Rotation
	}{
		{"portrait to landscape", Size{W: 720, H: 1280}, Size{W: 1920, H: 1080}, RotateCW},
		{"landscape to portrait", Size{W: 1280, H: 720}, Size{W: 1080, H: 1920}, RotateCCW},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := mustMapper(t, tc.source, tc.target, FitContain)
			m.SetAutoRotate(true)
			if got := m.Transform().Rotation; got != tc.want {
				t.Fatalf("expected rotation %v, got %v", tc.want, got)
			}
			for x := 10; x < tc.source.W-10; x += 71 {
				for y := 10; y < tc.source.H-10; y += 53 {
					p, _ := m.Map(float64(x), float64(y))
					back := m.ReverseMap(float64(p.X), float64(p.Y))
					if abs(back.X-x) > 1 || abs(back.Y-y) > 1 {
						t.Fatalf("round trip (%d,%d) -> %+v -> %+v", x, y, p, back)
					}
				}
			}
		})
	}
}

// TestRotation_ClockwiseMovesTopLeftToTopRight verifies the direction of the clockwise turn.
func TestRotation_ClockwiseMovesTopLeftToTopRight(t *testing.T) {
	m := mustMapper(t, Size{W: 720, H: 1280}, Size{W: 1920, H: 1080}, FitContain)
	m.SetOrientations(Portrait, Landscape)
	p, _ := m.Map(0, 0)
	if p != (Point{X: 1919, Y: 0}) {
		t.Fatalf("expected top-right corner, got %+v", p)
	}
}

// TestDeadZone_SuppressesMappedPoint verifies points landing in a dead zone map to none.
func TestDeadZone_SuppressesMappedPoint(t *testing.T) {
	m := mustMapper(t, Size{W: 100, H: 100}, Size{W: 1000, H: 1000}, FitStretch)
	if err := m.AddDeadZone(calib.Rect{X: 0, Y: 0, W: 1000, H: 100}); err != nil {
		t.Fatalf("AddDeadZone failed: %v", err)
	}
	if _, ok := m.Map(50, 5); ok {
		t.Fatalf("expected suppression inside dead zone")
	}
	if _, ok := m.Map(50, 50); !ok {
		t.Fatalf("expected mapping outside dead zone")
	}
	if err := m.AddDeadZone(calib.Rect{W: 0, H: 10}); !fault.IsKind(err, fault.KindGeometry) {
		t.Fatalf("expected geometry error for empty zone, got %v", err)
	}
	if !m.RemoveDeadZone(0) || m.RemoveDeadZone(0) {
		t.Fatalf("expected exactly one removal")
	}
	if _, ok := m.Map(50, 5); !ok {
		t.Fatalf("expected mapping after zone removal")
	}
}

// TestConfigure_InvalidKeepsPriorTransform verifies a rejected configure does not change state.
func TestConfigure_InvalidKeepsPriorTransform(t *testing.T) {
	m := mustMapper(t, Size{W: 100, H: 100}, Size{W: 200, H: 200}, FitContain)
	before := m.Transform()
	err := m.Configure(Size{W: 100, H: 100}, Size{W: 0, H: 200}, FitContain)
	if !fault.IsKind(err, fault.KindGeometry) {
		t.Fatalf("expected geometry error, got %v", err)
	}
	if err := m.SetTarget(Size{W: -5, H: 10}); err == nil {
		t.Fatalf("expected error for negative target")
	}
	if err := m.SetPolicy("zoom"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
	if m.Transform() != before || m.Target() != (Size{W: 200, H: 200}) {
		t.Fatalf("expected prior transform retained")
	}
}

// TestSetTarget_RecomputesBeforeNextMap verifies a target update applies to the very next map.
func TestSetTarget_RecomputesBeforeNextMap(t *testing.T) {
	m := mustMapper(t, Size{W: 100, H: 100}, Size{W: 200, H: 200}, FitStretch)
	if err := m.SetTarget(Size{W: 400, H: 400}); err != nil {
		t.Fatalf("SetTarget failed: %v", err)
	}
	p, _ := m.Map(50, 50)
	if p != (Point{X: 200, Y: 200}) {
		t.Fatalf("expected (200,200), got %+v", p)
	}
}

// TestCalibrate_AveragesResidual verifies the offset equals the mean residual.
func TestCalibrate_AveragesResidual(t *testing.T) {
	m := mustMapper(t, Size{W: 100, H: 100}, Size{W: 200, H: 200}, FitStretch)
	pairs := []calib.Pair{
		{SourceX: 10, SourceY: 10, TargetX: 24, TargetY: 17},
		{SourceX: 50, SourceY: 50, TargetX: 106, TargetY: 97},
	}
	if err := m.Calibrate(pairs); err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if off := m.CalibrationOffset(); off != (calib.Offset{DX: 5, DY: -3}) {
		t.Fatalf("expected offset (5,-3), got %+v", off)
	}
	p, _ := m.Map(50, 50)
	if p != (Point{X: 105, Y: 97}) {
		t.Fatalf("expected calibrated point (105,97), got %+v", p)
	}

	if err := m.Calibrate(pairs); err != nil {
		t.Fatalf("recalibrate failed: %v", err)
	}
	if off := m.CalibrationOffset(); off != (calib.Offset{DX: 5, DY: -3}) {
		t.Fatalf("expected recalibration to be stable, got %+v", off)
	}
}

// TestCalibrate_TooFewPointsIsNoop verifies a single pair fails without mutating the offset.
func TestCalibrate_TooFewPointsIsNoop(t *testing.T) {
	m := mustMapper(t, Size{W: 100, H: 100}, Size{W: 200, H: 200}, FitStretch)
	m.SetCalibrationOffset(calib.Offset{DX: 1, DY: 1})
	err := m.Calibrate([]calib.Pair{{SourceX: 1, SourceY: 1, TargetX: 9, TargetY: 9}})
	if !fault.IsKind(err, fault.KindCalibration) {
		t.Fatalf("expected calibration error, got %v", err)
	}
	if off := m.CalibrationOffset(); off != (calib.Offset{DX: 1, DY: 1}) {
		t.Fatalf("expected offset unchanged, got %+v", off)
	}
}

// TestMap_RejectsNonFinite verifies NaN and Inf inputs are suppressed.
func TestMap_RejectsNonFinite(t *testing.T) {
	m := mustMapper(t, Size{W: 100, H: 100}, Size{W: 200, H: 200}, FitContain)
	if _, ok := m.Map(math.NaN(), 1); ok {
		t.Fatalf("expected NaN to be rejected")
	}
	if _, ok := m.Map(1, math.Inf(1)); ok {
		t.Fatalf("expected Inf to be rejected")
	}
}

// TestApplyCalib_RestoresOptions verifies persisted options are applied as a unit.
func TestApplyCalib_RestoresOptions(t *testing.T) {
	m := mustMapper(t, Size{W: 100, H: 100}, Size{W: 200, H: 100}, FitContain)
	err := m.ApplyCalib(calib.Calib{FitPolicy: "stretch", Offset: calib.Offset{DX: 2}, DeadZones: []calib.Rect{{W: -10, H: 10, X: 10}}})
	if err != nil {
		t.Fatalf("ApplyCalib failed: %v", err)
	}
	c := m.Calib()
	if c.FitPolicy != "stretch" || c.Offset.DX != 2 || len(c.DeadZones) != 1 || c.DeadZones[0].X != 0 {
		t.Fatalf("unexpected calib %+v", c)
	}
	if err := m.ApplyCalib(calib.Calib{FitPolicy: "bogus"}); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
	if m.Policy() != FitStretch {
		t.Fatalf("expected policy unchanged after failed apply")
	}
}

// TestTestPattern_CoversGrid verifies the probe grid spans the whole source.
func TestTestPattern_CoversGrid(t *testing.T) {
	m := mustMapper(t, Size{W: 101, H: 51}, Size{W: 202, H: 102}, FitStretch)
	samples := m.TestPattern(5)
	if len(samples) != 25 {
		t.Fatalf("expected 25 samples, got %d", len(samples))
	}
	last := samples[len(samples)-1]
	if last.Source != (Point{X: 100, Y: 50}) || last.Target != (Point{X: 200, Y: 100}) {
		t.Fatalf("unexpected last sample %+v", last)
	}
}

// abs returns the absolute value of an integer.
func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
