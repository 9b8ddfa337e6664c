// Package config loads environment configuration for the touchmirror client and peer.
//
// Values come from, in increasing precedence: built-in defaults, an optional YAML file
// (CONFIG_FILE or --config), DATA_DIR/.env, and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr     = "127.0.0.1:8787"
	defaultPeerListenAddr = "0.0.0.0:8080"
	defaultDataDir        = "./data"
	defaultPeerPort       = 8080
	defaultFFmpegPath     = "ffmpeg"
	defaultCapture        = "gdigrab"
	defaultFPS            = 20
	defaultMonitorIdx     = 1
	defaultJPEGQuality    = 60
)

// prepare loads the YAML file and the .env file into the environment without
// overriding variables that are already set.
func prepare(configFile string) error {
	if configFile == "" {
		configFile = strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	}
	if configFile != "" {
		if err := loadYAMLFile(configFile); err != nil {
			return err
		}
	}
	dataDir := envString("DATA_DIR", defaultDataDir)
	return loadEnvFile(filepath.Join(dataDir, ".env"))
}

// normalizeCaptureDriver ensures a supported capture driver value.
func normalizeCaptureDriver(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "d3d11grab":
		return "d3d11grab"
	case "x11grab":
		return "x11grab"
	default:
		return "gdigrab"
	}
}

// envString returns an env override when present, otherwise a default.
func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt returns an int env override when present, otherwise a default.
func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

// envDuration reads a millisecond count, otherwise a default.
func envDuration(key string, def time.Duration) (time.Duration, error) {
	ms, err := envInt(key, int(def/time.Millisecond))
	if err != nil {
		return 0, err
	}
	if ms <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// envBool returns a bool env override when present, otherwise a default.
func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// envList splits a comma separated env value.
func envList(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads KEY=VALUE pairs from a .env file.
func loadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := parseEnvLine(line)
		if !ok {
			continue
		}
		if err := setDefault(key, value); err != nil {
			return err
		}
	}

	return nil
}

// loadYAMLFile loads a flat mapping of keys to scalars or lists. Keys are matched
// case-insensitively against the env names ("peer_addr" sets PEER_ADDR).
func loadYAMLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	for key, raw := range doc {
		value, ok := yamlScalar(raw)
		if !ok {
			return fmt.Errorf("config: %s: %s must be a scalar or a list", path, key)
		}
		if err := setDefault(strings.ToUpper(strings.TrimSpace(key)), value); err != nil {
			return err
		}
	}
	return nil
}

// yamlScalar flattens a decoded YAML value into an env string.
func yamlScalar(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(t), true
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := yamlScalar(item)
			if !ok {
				return "", false
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), true
	default:
		return "", false
	}
}

// setDefault sets key unless the environment already has it.
func setDefault(key, value string) error {
	if _, exists := os.LookupEnv(key); exists {
		return nil
	}
	return os.Setenv(key, value)
}

// parseEnvLine parses a single .env line into key/value.
func parseEnvLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	if strings.HasPrefix(line, "export ") {
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	}
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, strings.Trim(strings.TrimSpace(value), `"'`), true
}
