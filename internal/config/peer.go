package config

import (
	"fmt"
	"strings"
)

// Peer holds the reference peer configuration.
type Peer struct {
	ListenAddr    string
	DataDir       string
	Name          string
	FFmpegPath    string
	CaptureDriver string
	MonitorIndex  int
	FPS           int
	JPEGQuality   int
	VideoQuality  string
	STUNURLs      []string
}

// LoadPeer reads peer configuration. configFile may be empty.
func LoadPeer(configFile string) (Peer, error) {
	if err := prepare(configFile); err != nil {
		return Peer{}, err
	}
	cfg := Peer{
		ListenAddr:    envString("PEER_LISTEN_ADDR", defaultPeerListenAddr),
		DataDir:       envString("DATA_DIR", defaultDataDir),
		Name:          envString("PEER_NAME", "touchmirror peer"),
		FFmpegPath:    envString("FFMPEG_PATH", defaultFFmpegPath),
		CaptureDriver: normalizeCaptureDriver(envString("CAPTURE_DRIVER", defaultCapture)),
		VideoQuality:  strings.ToLower(envString("VIDEO_QUALITY", "medium")),
		STUNURLs:      envList("STUN_URLS", nil),
	}
	var err error
	if cfg.MonitorIndex, err = envInt("MONITOR_INDEX", defaultMonitorIdx); err != nil {
		return Peer{}, err
	}
	if cfg.FPS, err = envInt("FPS", defaultFPS); err != nil {
		return Peer{}, err
	}
	if cfg.FPS <= 0 || cfg.FPS > 120 {
		return Peer{}, fmt.Errorf("FPS must be 1-120")
	}
	if cfg.JPEGQuality, err = envInt("JPEG_QUALITY", defaultJPEGQuality); err != nil {
		return Peer{}, err
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		return Peer{}, fmt.Errorf("JPEG_QUALITY must be 1-100")
	}
	if err := oneOf("VIDEO_QUALITY", cfg.VideoQuality, "high", "medium", "low"); err != nil {
		return Peer{}, err
	}
	return cfg, nil
}
