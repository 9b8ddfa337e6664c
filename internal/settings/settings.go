// Package settings persists the user-tunable client preferences.
package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/frudas24/touchmirror/internal/calib"
	"github.com/frudas24/touchmirror/internal/geometry"
	"github.com/frudas24/touchmirror/internal/gesture"
	"github.com/frudas24/touchmirror/internal/protocol"
)

// Key is the store key holding the serialized settings.
const Key = "screenMirrorSettings"

// Sensitivity bounds accepted by Validate.
const (
	MinSensitivity = 0.1
	MaxSensitivity = 3.0
)

// Settings are the preferences exposed at /api/settings.
type Settings struct {
	TouchSensitivity   float64            `json:"touchSensitivity"`
	LongPressDelayMS   int                `json:"longPressDelay"`
	ShowTouchIndicator bool               `json:"showTouchIndicator"`
	HapticFeedback     bool               `json:"hapticFeedback"`
	VideoQuality       protocol.Quality   `json:"videoQuality"`
	FitPolicy          geometry.FitPolicy `json:"fitPolicy"`
	Calibration        calib.Offset       `json:"calibration"`
}

// Store loads and saves settings.
type Store interface {
	Load() (Settings, error)
	Save(Settings) error
}

// Defaults returns the settings used when nothing was saved.
func Defaults() Settings {
	return Settings{
		TouchSensitivity:   1.0,
		LongPressDelayMS:   500,
		ShowTouchIndicator: true,
		HapticFeedback:     true,
		VideoQuality:       protocol.QualityMedium,
		FitPolicy:          geometry.FitContain,
	}
}

// Validate checks ranges and enum values.
func (s Settings) Validate() error {
	if s.TouchSensitivity < MinSensitivity || s.TouchSensitivity > MaxSensitivity {
		return fmt.Errorf("touchSensitivity must be between %.1f and %.1f", MinSensitivity, MaxSensitivity)
	}
	if s.LongPressDelayMS < 100 || s.LongPressDelayMS > 5000 {
		return errors.New("longPressDelay must be between 100 and 5000 ms")
	}
	if !s.VideoQuality.Valid() {
		return errors.New("videoQuality must be high, medium or low")
	}
	if _, err := geometry.ParseFitPolicy(string(s.FitPolicy)); err != nil {
		return err
	}
	return nil
}

// LongPressDelay returns the long-press delay as a duration.
func (s Settings) LongPressDelay() time.Duration {
	return time.Duration(s.LongPressDelayMS) * time.Millisecond
}

// GestureOptions overlays the tunable fields on base.
func (s Settings) GestureOptions(base gesture.Options) gesture.Options {
	base.Sensitivity = s.TouchSensitivity
	base.LongPressDelay = s.LongPressDelay()
	base.Haptics = s.HapticFeedback
	base.Indicator = s.ShowTouchIndicator
	return base
}
