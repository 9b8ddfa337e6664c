package peer

import (
	"testing"

	"github.com/frudas24/touchmirror/internal/calib"
	"github.com/frudas24/touchmirror/internal/protocol"
	"github.com/frudas24/touchmirror/internal/testutil"
	"github.com/google/go-cmp/cmp"
)

var testScreen = calib.Rect{X: 1920, Y: 0, W: 1280, H: 720}

// touch builds a touch envelope for an action.
func touch(action string, x, y int) protocol.Touch {
	return protocol.Touch{Type: protocol.TypeTouch, Action: action, X: x, Y: y}
}

// TestClampPointToRect verifies points are kept inside the rectangle.
func TestClampPointToRect(t *testing.T) {
	rect := calib.Rect{X: 10, Y: 20, W: 100, H: 50}
	cases := []struct {
		x, y, wantX, wantY int
	}{
		{0, 0, 10, 20},
		{200, 200, 109, 69},
		{50, 30, 50, 30},
	}
	for _, tc := range cases {
		x, y := ClampPointToRect(rect, tc.x, tc.y)
		if x != tc.wantX || y != tc.wantY {
			t.Fatalf("expected (%d,%d), got (%d,%d)", tc.wantX, tc.wantY, x, y)
		}
	}
}

// TestPlan_TapOffsetsByScreenOrigin verifies taps land on the selected monitor.
func TestPlan_TapOffsetsByScreenOrigin(t *testing.T) {
	p := NewPlanner(testScreen)
	got := p.Plan(touch("tap", 100, 50))
	want := []Action{{Type: ActClick, X: 2020, Y: 50}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected actions (-want +got):\n%s", diff)
	}
}

// TestPlan_DragHoldsButton verifies a drag presses, moves and releases.
func TestPlan_DragHoldsButton(t *testing.T) {
	p := NewPlanner(testScreen)
	var got []Action
	got = append(got, p.Plan(touch("drag-start", 10, 10))...)
	if !p.Dragging() {
		t.Fatalf("expected dragging after drag-start")
	}
	got = append(got, p.Plan(touch("drag-move", 20, 30))...)
	got = append(got, p.Plan(touch("drag-end", 40, 30))...)
	want := []Action{
		{Type: ActMove, X: 1930, Y: 10},
		{Type: ActLeftDown, X: 1930, Y: 10},
		{Type: ActMove, X: 1940, Y: 30},
		{Type: ActMove, X: 1960, Y: 30},
		{Type: ActLeftUp, X: 1960, Y: 30},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected actions (-want +got):\n%s", diff)
	}
	if p.Dragging() {
		t.Fatalf("expected drag released")
	}
}

// TestPlan_DragMoveWithoutStartIgnored verifies stray drag moves plan nothing.
func TestPlan_DragMoveWithoutStartIgnored(t *testing.T) {
	p := NewPlanner(testScreen)
	if got := p.Plan(touch("drag-move", 5, 5)); got != nil {
		t.Fatalf("expected no actions, got %v", got)
	}
}

// TestPlan_SwipeClampsEndPoint verifies a swipe stops at the screen edge.
func TestPlan_SwipeClampsEndPoint(t *testing.T) {
	p := NewPlanner(testScreen)
	tc := touch("swipe", 1200, 100)
	tc.Gesture = &protocol.GestureDetail{Direction: "right", Distance: 300}
	got := p.Plan(tc)
	if len(got) != 5 {
		t.Fatalf("expected 5 actions, got %v", got)
	}
	last := got[len(got)-1]
	if last.Type != ActLeftUp || last.X != 1920+1279 || last.Y != 100 {
		t.Fatalf("expected release at right edge, got %+v", last)
	}
}

// TestPlan_PinchStepsZoom verifies pinch scale changes emit zoom notches per step.
func TestPlan_PinchStepsZoom(t *testing.T) {
	p := NewPlanner(testScreen)
	pinch := func(action string, scale float64) []Action {
		tc := touch(action, 0, 0)
		tc.Gesture = &protocol.GestureDetail{Scale: scale}
		return p.Plan(tc)
	}
	var got []Action
	got = append(got, pinch("pinch-start", 1)...)
	got = append(got, pinch("pinch-move", 1.1)...)
	got = append(got, pinch("pinch-move", 1.3)...)
	got = append(got, pinch("pinch-move", 1.0)...)
	got = append(got, pinch("pinch-end", 1.0)...)
	want := []Action{{Type: ActZoom, Notches: 1}, {Type: ActZoom, Notches: -1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected actions (-want +got):\n%s", diff)
	}
}

// TestApply_DrivesInjector verifies actions reach the injector in order.
func TestApply_DrivesInjector(t *testing.T) {
	inj := &testutil.FakeInjector{}
	p := NewPlanner(testScreen)
	if err := Apply(inj, p.Plan(touch("long-press", 1, 2))); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	want := []string{"MoveAbs", "LeftDown", "LeftUp"}
	if diff := cmp.Diff(want, inj.Names()); diff != "" {
		t.Fatalf("unexpected calls (-want +got):\n%s", diff)
	}
}
