package protocol

import (
	"strings"

	"github.com/frudas24/touchmirror/internal/fault"
)

// Quality names a video preset.
type Quality string

// Known presets.
const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

// Preset is the capture configuration for a quality level.
type Preset struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	FPS     int `json:"fps"`
	Bitrate int `json:"bitrate"`
}

var presets = map[Quality]Preset{
	QualityHigh:   {Width: 1920, Height: 1080, FPS: 60, Bitrate: 8_000_000},
	QualityMedium: {Width: 1280, Height: 720, FPS: 30, Bitrate: 4_000_000},
	QualityLow:    {Width: 854, Height: 480, FPS: 20, Bitrate: 2_000_000},
}

// ParseQuality parses a quality name. An empty name means high.
func ParseQuality(s string) (Quality, error) {
	q := Quality(strings.ToLower(strings.TrimSpace(s)))
	if q == "" {
		return QualityHigh, nil
	}
	if _, ok := presets[q]; !ok {
		return "", fault.Newf(fault.KindProtocol, "quality", "unknown quality %q", s)
	}
	return q, nil
}

// Preset returns the capture settings for q, falling back to high.
func (q Quality) Preset() Preset {
	if p, ok := presets[q]; ok {
		return p
	}
	return presets[QualityHigh]
}

// Valid reports whether q names a known preset.
func (q Quality) Valid() bool {
	_, ok := presets[q]
	return ok
}
