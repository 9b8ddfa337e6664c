package calib

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// Load reads calibration data from path. A missing file yields empty data.
// Comments and trailing commas are accepted so the file can be edited by hand.
// Dead zones are normalized and empty ones are dropped.
func Load(path string) (Calib, error) {
	var c Calib
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &c); err != nil {
		return Calib{}, fmt.Errorf("parse %s: %w", path, err)
	}
	c.DeadZones = cleanZones(c.DeadZones)
	return c, nil
}

// Save writes c to path through a temporary file so readers never see a partial file.
func Save(path string, c Calib) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".calib-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// cleanZones normalizes zones and drops the ones without area.
func cleanZones(zones []Rect) []Rect {
	var out []Rect
	for _, z := range zones {
		if z = Normalize(z); z.W > 0 && z.H > 0 {
			out = append(out, z)
		}
	}
	return out
}
