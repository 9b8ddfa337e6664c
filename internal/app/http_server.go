package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/frudas24/touchmirror/internal/calib"
	"github.com/frudas24/touchmirror/internal/fault"
	"github.com/frudas24/touchmirror/internal/geometry"
	"github.com/frudas24/touchmirror/internal/mjpeg"
	"github.com/frudas24/touchmirror/internal/protocol"
	"github.com/frudas24/touchmirror/internal/session"
	"github.com/frudas24/touchmirror/internal/settings"
	"github.com/frudas24/touchmirror/internal/web"
)

const testPatternSteps = 5

// RegisterRoutes wires API and static handlers onto the mux.
func (a *App) RegisterRoutes(mux *http.ServeMux, staticDir string) {
	if staticDir == "" {
		staticDir = filepath.Join("internal", "web", "static")
	}

	mux.HandleFunc("/api/state", a.handleState)
	mux.HandleFunc("/api/calibrate", a.handleCalibrate)
	mux.HandleFunc("/api/settings", a.handleSettings)
	mux.HandleFunc("/api/quality", a.handleQuality)
	mux.HandleFunc("/api/connect", a.handleConnect)
	mux.HandleFunc("/api/disconnect", a.handleDisconnect)
	mux.HandleFunc("/api/peers", a.handlePeers)
	mux.HandleFunc("/api/mapping", a.handleMapping)
	mux.Handle("/ws/input", a.Surface())
	mux.HandleFunc("/mjpeg/display", a.Display().Handler)
	mux.HandleFunc("/favicon.ico", handleFavicon)

	mux.Handle("/", staticFileServer(staticDir, a.log))
}

type stateResponse struct {
	Session    session.Snapshot  `json:"session"`
	RTTMs      float64           `json:"rttMs"`
	Target     geometry.Size     `json:"target"`
	Source     geometry.Size     `json:"source"`
	Display    mjpeg.Stats       `json:"display"`
	Touches    Stats             `json:"touches"`
	Surface    bool              `json:"surfaceConnected"`
	LastStatus *protocol.Status  `json:"lastStatus,omitempty"`
	LastError  string            `json:"lastError,omitempty"`
	PeerErrors int               `json:"peerErrors"`
	Settings   settings.Settings `json:"settings"`
}

type calibrateRequest struct {
	Pairs []calib.Pair `json:"pairs"`
}

type calibrateResponse struct {
	Offset calib.Offset `json:"calibrationOffset"`
}

type qualityRequest struct {
	Quality protocol.Quality `json:"quality"`
}

type connectRequest struct {
	ID      string `json:"id,omitempty"`
	Address string `json:"address,omitempty"`
	Port    int    `json:"port,omitempty"`
}

type peerRequest struct {
	Address string `json:"address"`
	Port    int    `json:"port,omitempty"`
	Name    string `json:"name,omitempty"`
}

type mappingRequest struct {
	FitPolicy *geometry.FitPolicy `json:"fitPolicy,omitempty"`
	DeadZones *[]calib.Rect       `json:"deadZones,omitempty"`
}

type mappingResponse struct {
	Info        geometry.Info            `json:"info"`
	TestPattern []geometry.MappingSample `json:"testPattern"`
}

// handleState returns session, mapping and display state.
func (a *App) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := a.channel.Snapshot()
	a.mu.Lock()
	resp := stateResponse{
		Session:    snap,
		RTTMs:      float64(snap.RTT) / float64(time.Millisecond),
		Target:     a.mapper.Target(),
		Source:     a.mapper.Source(),
		Display:    a.display.Stats(),
		Touches:    a.coord.Stats(),
		Surface:    a.surface.Connected(),
		LastStatus: a.lastStatus,
		LastError:  a.lastError,
		PeerErrors: a.peerErrors,
		Settings:   a.current,
	}
	a.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

// handleCalibrate adopts submitted calibration pairs.
func (a *App) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req calibrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	offset, err := a.Calibrate(req.Pairs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, calibrateResponse{Offset: offset})
}

// handleSettings returns or replaces the persisted settings.
func (a *App) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, a.Settings())
	case http.MethodPost:
		next := a.Settings()
		if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if err := a.ApplySettings(next); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a.Settings())
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleQuality requests a video preset.
func (a *App) handleQuality(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req qualityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := a.RequestQuality(req.Quality); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qualityRequest{Quality: req.Quality})
}

// handleConnect connects to a registered peer or a direct address.
func (a *App) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	// The session outlives the request.
	ctx := context.WithoutCancel(r.Context())
	var err error
	if req.ID != "" {
		err = a.ConnectPeer(ctx, req.ID)
	} else {
		err = a.Connect(ctx, req.Address, req.Port)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.channel.Snapshot())
}

// handleDisconnect closes the session.
func (a *App) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a.Disconnect()
	writeJSON(w, http.StatusOK, a.channel.Snapshot())
}

// handlePeers lists, adds or removes peers.
func (a *App) handlePeers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, a.registry.Peers())
	case http.MethodPost:
		var req peerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, a.registry.AddManual(req.Address, req.Port, req.Name))
	case http.MethodDelete:
		if !a.registry.Remove(r.URL.Query().Get("id")) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleMapping reports the mapping configuration and updates fit policy or dead zones.
func (a *App) handleMapping(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req mappingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if req.FitPolicy != nil {
			next := a.Settings()
			next.FitPolicy = *req.FitPolicy
			if err := a.ApplySettings(next); err != nil {
				writeError(w, err)
				return
			}
		}
		if req.DeadZones != nil {
			if err := a.SetDeadZones(*req.DeadZones); err != nil {
				writeError(w, err)
				return
			}
		}
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, mappingResponse{
		Info:        a.mapper.Info(),
		TestPattern: a.mapper.TestPattern(testPatternSteps),
	})
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch fault.KindOf(err) {
	case fault.KindTransport:
		status = http.StatusBadGateway
	case "":
		if errors.Is(err, session.ErrActive) {
			status = http.StatusConflict
		}
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// staticFileServer returns a handler for static assets, preferring disk then embed.
func staticFileServer(staticDir string, log *slog.Logger) http.Handler {
	if staticDir != "" {
		if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
			return http.FileServer(http.Dir(staticDir))
		}
	}

	embedded, err := web.StaticFS()
	if err != nil {
		log.Warn("static assets unavailable", "err", err)
		return http.NotFoundHandler()
	}
	return http.FileServer(http.FS(embedded))
}

// handleFavicon avoids noisy 404s for the default browser request.
func handleFavicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
