package calib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestSaveLoad_RoundTrip verifies saving and loading preserves calibration data.
func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "calib.json")
	in := Calib{
		FitPolicy: "cover",
		Offset:    Offset{DX: 1.5, DY: -2},
		DeadZones: []Rect{{X: 0, Y: 0, W: 100, H: 40}},
	}

	if err := Save(path, in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

// TestLoad_MissingFile_ReturnsEmpty verifies missing files return zero data.
func TestLoad_MissingFile_ReturnsEmpty(t *testing.T) {
	out, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if diff := cmp.Diff(Calib{}, out); diff != "" {
		t.Fatalf("expected empty calib (-want +got):\n%s", diff)
	}
}

// TestLoad_AcceptsComments verifies hand-edited files with comments still load.
func TestLoad_AcceptsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calib.json")
	raw := `{
  // status bar on the peer
  "deadZones": [{"x": 0, "y": 0, "w": 3088, "h": 60},],
  "fitPolicy": "stretch",
}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if out.FitPolicy != "stretch" || len(out.DeadZones) != 1 || out.DeadZones[0].H != 60 {
		t.Fatalf("unexpected calib %+v", out)
	}
}

// TestLoad_NormalizesDeadZones verifies inverted zones are flipped and empty ones dropped.
func TestLoad_NormalizesDeadZones(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calib.json")
	raw := `{"deadZones": [{"x": 100, "y": 50, "w": -40, "h": -10}, {"x": 5, "y": 5, "w": 0, "h": 9}]}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []Rect{{X: 60, Y: 40, W: 40, H: 10}}
	if diff := cmp.Diff(want, out.DeadZones); diff != "" {
		t.Fatalf("unexpected zones (-want +got):\n%s", diff)
	}
}

// TestSave_LeavesNoTempFiles verifies the atomic write cleans up after itself.
func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Save(filepath.Join(dir, "calib.json"), Calib{FitPolicy: "contain"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "calib.json" {
		t.Fatalf("expected only calib.json, got %v", entries)
	}
}
