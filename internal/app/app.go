// Package app wires the capture surface, the gesture pipeline and the peer session together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/frudas24/touchmirror/internal/calib"
	"github.com/frudas24/touchmirror/internal/config"
	"github.com/frudas24/touchmirror/internal/control"
	"github.com/frudas24/touchmirror/internal/discovery"
	"github.com/frudas24/touchmirror/internal/fault"
	"github.com/frudas24/touchmirror/internal/geometry"
	"github.com/frudas24/touchmirror/internal/gesture"
	"github.com/frudas24/touchmirror/internal/mjpeg"
	"github.com/frudas24/touchmirror/internal/protocol"
	"github.com/frudas24/touchmirror/internal/session"
	"github.com/frudas24/touchmirror/internal/settings"
	"github.com/frudas24/touchmirror/internal/transport"
)

// App coordinates the HTTP API, the capture surface and the peer session.
type App struct {
	mu       sync.Mutex
	cfg      config.Client
	log      *slog.Logger
	mapper   *geometry.Mapper
	coord    *Coordinator
	channel  *session.Channel
	display  *mjpeg.Stream
	surface  *control.Server
	store    settings.Store
	current  settings.Settings
	registry *discovery.Registry

	lastStatus *protocol.Status
	lastError  string
	peerErrors int
}

// New creates the client application. The dialer selects the transport.
func New(cfg config.Client, dialer transport.Dialer, store settings.Store, log *slog.Logger) (*App, error) {
	if dialer == nil {
		return nil, errors.New("dialer is required")
	}
	if store == nil {
		return nil, errors.New("settings store is required")
	}
	if log == nil {
		log = slog.Default()
	}

	current, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if cfg.FitPolicy != "" && current.FitPolicy == "" {
		current.FitPolicy = geometry.FitPolicy(cfg.FitPolicy)
	}

	source := geometry.Size{W: cfg.SourceWidth, H: cfg.SourceHeight}
	target := geometry.Size{W: cfg.TargetWidth, H: cfg.TargetHeight}
	mapper, err := geometry.NewMapper(source, target, current.FitPolicy)
	if err != nil {
		return nil, err
	}
	c, err := calib.Load(cfg.CalibPath)
	if err != nil {
		return nil, fmt.Errorf("load calibration: %w", err)
	}
	c.FitPolicy = string(current.FitPolicy)
	c.Offset = current.Calibration
	c.AutoRotate = cfg.AutoRotate
	if err := mapper.ApplyCalib(c); err != nil {
		return nil, fmt.Errorf("apply calibration: %w", err)
	}

	a := &App{
		cfg:     cfg,
		log:     log,
		mapper:  mapper,
		store:   store,
		current: current,
		display: mjpeg.NewStream(0),
	}
	a.display.SetLogger(log)
	a.display.OnResize(target)

	a.coord = NewCoordinator(mapper, current.GestureOptions(gesture.DefaultOptions()), a.display, log)
	a.surface = control.NewServer(a.coord, a.display, control.Options{
		Source: mapper.Source,
		Target: mapper.Target,
		Logger: log,
	})
	a.coord.Classifier().SetFeedback(a.surface, a.surface)

	codec, err := protocol.ParseCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	opts := session.DefaultOptions()
	opts.Screen = source
	opts.Codec = codec
	opts.AckMode = session.AckMode(cfg.AckMode)
	opts.Logger = log
	if cfg.PingInterval > 0 {
		opts.PingInterval = cfg.PingInterval
	}
	if cfg.ReconnectBase > 0 {
		opts.ReconnectBaseDelay = cfg.ReconnectBase
	}
	if cfg.ReconnectMaxAttempts > 0 {
		opts.MaxReconnectAttempts = cfg.ReconnectMaxAttempts
	}
	if cfg.ConnectTimeout > 0 {
		opts.ConnectTimeout = cfg.ConnectTimeout
	}
	a.channel = session.New(dialer, opts, a.coord, a.coord)
	if err := a.channel.RequestQuality(current.VideoQuality); err != nil {
		return nil, err
	}
	a.coord.SetChannel(a.channel)
	a.coord.AddObserver(a)

	a.registry = discovery.NewRegistry(a, discovery.Options{Logger: log})
	if cfg.PeerAddr != "" {
		a.registry.AddManual(cfg.PeerAddr, cfg.PeerPort, cfg.PeerName)
	}
	return a, nil
}

// Run keeps the peer registry fresh until ctx ends.
func (a *App) Run(ctx context.Context) error {
	var sources []discovery.Source
	if a.cfg.PeerAddr != "" {
		sources = append(sources, &discovery.Static{Targets: []discovery.Target{{
			Address: a.cfg.PeerAddr,
			Port:    a.cfg.PeerPort,
			Name:    a.cfg.PeerName,
		}}})
	}
	return a.registry.Run(ctx, sources...)
}

// Connect opens the session to address:port. The selected quality is requested once connected.
func (a *App) Connect(ctx context.Context, address string, port int) error {
	if address == "" {
		return errors.New("address is required")
	}
	if port <= 0 {
		port = discovery.DefaultPeerPort
	}
	return a.channel.Connect(ctx, address, port)
}

// ConnectPeer connects to a registered peer by id.
func (a *App) ConnectPeer(ctx context.Context, id string) error {
	p, ok := a.registry.Get(id)
	if !ok {
		return fmt.Errorf("peer %q not found", id)
	}
	return a.Connect(ctx, p.Address, p.Port)
}

// Disconnect closes the session without reconnecting.
func (a *App) Disconnect() {
	a.channel.Disconnect()
}

// RequestQuality switches the peer video preset and remembers it in the settings.
func (a *App) RequestQuality(q protocol.Quality) error {
	if !q.Valid() {
		return fault.Newf(fault.KindProtocol, "quality", "unknown quality %q", q)
	}
	a.mu.Lock()
	next := a.current
	a.mu.Unlock()
	next.VideoQuality = q
	if err := a.store.Save(next); err != nil {
		return err
	}
	a.mu.Lock()
	a.current = next
	a.mu.Unlock()
	return a.channel.RequestQuality(q)
}

// Settings returns the active settings.
func (a *App) Settings() settings.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// ApplySettings validates, persists and applies s.
func (a *App) ApplySettings(s settings.Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := a.store.Save(s); err != nil {
		return err
	}
	a.mu.Lock()
	prev := a.current
	a.current = s
	a.mu.Unlock()

	if err := a.mapper.SetPolicy(s.FitPolicy); err != nil {
		return err
	}
	a.mapper.SetCalibrationOffset(s.Calibration)
	a.coord.Classifier().SetOptions(s.GestureOptions(a.coord.Classifier().Options()))
	if s.VideoQuality != prev.VideoQuality {
		if err := a.channel.RequestQuality(s.VideoQuality); err != nil {
			return err
		}
	}
	return a.saveCalib()
}

// Calibrate adopts the averaged residual of pairs and persists it.
func (a *App) Calibrate(pairs []calib.Pair) (calib.Offset, error) {
	if err := a.mapper.Calibrate(pairs); err != nil {
		return calib.Offset{}, err
	}
	offset := a.mapper.CalibrationOffset()
	a.mu.Lock()
	next := a.current
	a.mu.Unlock()
	next.Calibration = offset
	if err := a.store.Save(next); err != nil {
		return offset, err
	}
	a.mu.Lock()
	a.current = next
	a.mu.Unlock()
	return offset, a.saveCalib()
}

// SetDeadZones replaces the dead zones and persists them.
func (a *App) SetDeadZones(zones []calib.Rect) error {
	if err := a.mapper.SetDeadZones(zones); err != nil {
		return err
	}
	return a.saveCalib()
}

// Mapper returns the geometry mapper.
func (a *App) Mapper() *geometry.Mapper {
	return a.mapper
}

// Registry returns the peer registry.
func (a *App) Registry() *discovery.Registry {
	return a.registry
}

// Surface returns the capture surface websocket handler.
func (a *App) Surface() *control.Server {
	return a.surface
}

// Display returns the mirrored display stream.
func (a *App) Display() *mjpeg.Stream {
	return a.display
}

// Channel returns the session channel.
func (a *App) Channel() *session.Channel {
	return a.channel
}

// Close disconnects the session.
func (a *App) Close() {
	a.channel.Disconnect()
}

// OnStateChange pushes the new state to the capture page.
func (a *App) OnStateChange(s session.State) {
	a.log.Info("session: state", "state", s.String())
	a.surface.NotifyState(s.String())
}

// OnLatency logs the round-trip time at debug level.
func (a *App) OnLatency(d time.Duration) {
	a.log.Debug("session: rtt", "rtt", d)
}

// OnError records the last error.
func (a *App) OnError(err error) {
	a.mu.Lock()
	a.lastError = err.Error()
	if fault.IsKind(err, fault.KindPeer) {
		a.peerErrors++
	}
	a.mu.Unlock()
	if fault.IsTerminal(err) {
		a.log.Error("session: gave up reconnecting", "err", err)
	}
}

// OnStatus records the last peer status notice.
func (a *App) OnStatus(st protocol.Status) {
	a.mu.Lock()
	a.lastStatus = &st
	a.mu.Unlock()
	a.log.Info("peer: status", "state", st.State, "message", st.Message)
}

// OnFound logs a discovered peer.
func (a *App) OnFound(p discovery.Peer) {
	a.log.Info("discovery: peer found", "id", p.ID, "addr", p.HostPort(), "name", p.DisplayName)
}

// OnLost logs an expired peer.
func (a *App) OnLost(p discovery.Peer) {
	a.log.Info("discovery: peer lost", "id", p.ID, "addr", p.HostPort())
}

// saveCalib writes the mapper options to the calibration file.
func (a *App) saveCalib() error {
	if a.cfg.CalibPath == "" {
		return nil
	}
	if err := calib.Save(a.cfg.CalibPath, a.mapper.Calib()); err != nil {
		return fmt.Errorf("save calibration: %w", err)
	}
	return nil
}
