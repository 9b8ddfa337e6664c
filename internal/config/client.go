package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Client holds the touchmirror client configuration.
type Client struct {
	ListenAddr  string
	DataDir     string
	CalibPath   string
	SettingsDir string

	PeerAddr  string
	PeerPort  int
	PeerName  string
	Transport string
	PeerPath  string
	Codec     string
	AckMode   string
	STUNURLs  []string

	FitPolicy    string
	SourceWidth  int
	SourceHeight int
	// SourceFromEnv is false when the source size should come from the primary monitor.
	SourceFromEnv bool
	TargetWidth   int
	TargetHeight  int
	AutoRotate    bool

	PingInterval         time.Duration
	ReconnectBase        time.Duration
	ReconnectMaxAttempts int
	ConnectTimeout       time.Duration

	LongPressDelay     time.Duration
	HapticFeedback     bool
	ShowTouchIndicator bool
	VideoQuality       string
}

// LoadClient reads client configuration. configFile may be empty.
func LoadClient(configFile string) (Client, error) {
	if err := prepare(configFile); err != nil {
		return Client{}, err
	}

	cfg := Client{
		ListenAddr:         envString("LISTEN_ADDR", defaultListenAddr),
		DataDir:            envString("DATA_DIR", defaultDataDir),
		PeerAddr:           envString("PEER_ADDR", ""),
		PeerName:           envString("PEER_NAME", ""),
		Transport:          strings.ToLower(envString("TRANSPORT", "websocket")),
		PeerPath:           envString("PEER_PATH", "/ws"),
		Codec:              strings.ToLower(envString("ENVELOPE_CODEC", "json")),
		AckMode:            strings.ToLower(envString("ACK_MODE", "reply")),
		STUNURLs:           envList("STUN_URLS", nil),
		FitPolicy:          strings.ToLower(envString("FIT_POLICY", "contain")),
		AutoRotate:         envBool("AUTO_ROTATE", true),
		HapticFeedback:     envBool("HAPTIC_FEEDBACK", true),
		ShowTouchIndicator: envBool("SHOW_TOUCH_INDICATOR", true),
		VideoQuality:       strings.ToLower(envString("VIDEO_QUALITY", "medium")),
	}
	cfg.CalibPath = envString("CALIB_PATH", filepath.Join(cfg.DataDir, "calib.json"))
	cfg.SettingsDir = envString("SETTINGS_DIR", filepath.Join(cfg.DataDir, "settings"))

	var err error
	if cfg.PeerPort, err = envInt("PEER_PORT", defaultPeerPort); err != nil {
		return Client{}, err
	}
	if cfg.PeerPort < 0 || cfg.PeerPort > 65535 {
		return Client{}, fmt.Errorf("PEER_PORT must be 0-65535")
	}

	cfg.SourceFromEnv = envString("SOURCE_WIDTH", "") != "" || envString("SOURCE_HEIGHT", "") != ""
	if cfg.SourceWidth, err = envInt("SOURCE_WIDTH", 2048); err != nil {
		return Client{}, err
	}
	if cfg.SourceHeight, err = envInt("SOURCE_HEIGHT", 1536); err != nil {
		return Client{}, err
	}
	if cfg.TargetWidth, err = envInt("TARGET_WIDTH", 3088); err != nil {
		return Client{}, err
	}
	if cfg.TargetHeight, err = envInt("TARGET_HEIGHT", 1440); err != nil {
		return Client{}, err
	}
	if cfg.SourceWidth <= 0 || cfg.SourceHeight <= 0 || cfg.TargetWidth <= 0 || cfg.TargetHeight <= 0 {
		return Client{}, fmt.Errorf("SOURCE_* and TARGET_* sizes must be > 0")
	}

	if cfg.PingInterval, err = envDuration("PING_INTERVAL_MS", time.Second); err != nil {
		return Client{}, err
	}
	if cfg.ReconnectBase, err = envDuration("RECONNECT_BASE_MS", time.Second); err != nil {
		return Client{}, err
	}
	if cfg.ConnectTimeout, err = envDuration("CONNECT_TIMEOUT_MS", 10*time.Second); err != nil {
		return Client{}, err
	}
	if cfg.LongPressDelay, err = envDuration("LONG_PRESS_MS", 500*time.Millisecond); err != nil {
		return Client{}, err
	}
	if cfg.ReconnectMaxAttempts, err = envInt("RECONNECT_MAX_ATTEMPTS", 5); err != nil {
		return Client{}, err
	}
	if cfg.ReconnectMaxAttempts < 0 {
		return Client{}, fmt.Errorf("RECONNECT_MAX_ATTEMPTS must be >= 0")
	}

	if err := oneOf("TRANSPORT", cfg.Transport, "websocket", "webrtc"); err != nil {
		return Client{}, err
	}
	if err := oneOf("ENVELOPE_CODEC", cfg.Codec, "json", "cbor"); err != nil {
		return Client{}, err
	}
	if err := oneOf("ACK_MODE", cfg.AckMode, "reply", "open"); err != nil {
		return Client{}, err
	}
	if err := oneOf("FIT_POLICY", cfg.FitPolicy, "contain", "cover", "stretch"); err != nil {
		return Client{}, err
	}
	if err := oneOf("VIDEO_QUALITY", cfg.VideoQuality, "high", "medium", "low"); err != nil {
		return Client{}, err
	}
	if !strings.HasPrefix(cfg.PeerPath, "/") {
		cfg.PeerPath = "/" + cfg.PeerPath
	}
	return cfg, nil
}

// oneOf validates an enum value.
func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s", key, strings.Join(allowed, ", "))
}
