// Package discovery tracks reachable peers.
//
// Peers come from Sources (configured addresses probed over HTTP) and are kept in a
// Registry that expires entries which stop answering.
package discovery

import (
	"context"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/frudas24/touchmirror/internal/clock"
)

// Default timings.
const (
	DefaultDeviceTimeout = 30 * time.Second
	DefaultSweepInterval = 5 * time.Second
)

// DefaultPeerPort is the port peers listen on unless configured otherwise.
const DefaultPeerPort = 8080

// FallbackPorts are probed when a target has no port.
var FallbackPorts = []int{8080, 8081, 8082, 8083, 8084}

// Peer is one reachable device.
type Peer struct {
	ID          string    `json:"id"`
	Address     string    `json:"address"`
	Port        int       `json:"port"`
	DisplayName string    `json:"displayName"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	Manual      bool      `json:"manual,omitempty"`
	LastSeen    time.Time `json:"lastSeen"`
}

// HostPort returns address:port.
func (p Peer) HostPort() string {
	return net.JoinHostPort(p.Address, strconv.Itoa(p.Port))
}

// Listener is notified when peers appear or expire.
type Listener interface {
	OnFound(Peer)
	OnLost(Peer)
}

// Source produces peers on each scan.
type Source interface {
	Scan(ctx context.Context, report func(Peer)) error
}

// Options tunes a Registry.
type Options struct {
	DeviceTimeout time.Duration
	SweepInterval time.Duration
	Clock         clock.Clock
	Logger        *slog.Logger
}

// Registry holds the known peers keyed by address:port.
type Registry struct {
	mu       sync.Mutex
	peers    map[string]Peer
	listener Listener
	opts     Options
	log      *slog.Logger
}

// NewRegistry returns an empty registry. listener may be nil.
func NewRegistry(listener Listener, opts Options) *Registry {
	if opts.DeviceTimeout <= 0 {
		opts.DeviceTimeout = DefaultDeviceTimeout
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Registry{peers: make(map[string]Peer), listener: listener, opts: opts, log: log}
}

// Observe records a sighting. New peers are announced to the listener.
func (r *Registry) Observe(p Peer) {
	key := p.HostPort()
	r.mu.Lock()
	prev, known := r.peers[key]
	p.LastSeen = r.opts.Clock.Now()
	if known {
		p.Manual = p.Manual || prev.Manual
		if p.DisplayName == "" {
			p.DisplayName = prev.DisplayName
		}
	}
	if p.ID == "" {
		p.ID = key
	}
	if p.DisplayName == "" {
		p.DisplayName = "Device (" + p.Address + ")"
	}
	r.peers[key] = p
	r.mu.Unlock()
	if !known {
		r.log.Info("discovery: peer found", "peer", key, "name", p.DisplayName)
		if r.listener != nil {
			r.listener.OnFound(p)
		}
	}
}

// AddManual registers a peer that never expires.
func (r *Registry) AddManual(address string, port int, name string) Peer {
	if port <= 0 {
		port = DefaultPeerPort
	}
	if name == "" {
		name = "Manual Device (" + address + ")"
	}
	p := Peer{Address: address, Port: port, DisplayName: name, Manual: true}
	r.Observe(p)
	got, _ := r.Get(p.HostPort())
	return got
}

// Remove drops a peer by id or address:port and notifies the listener.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	var removed Peer
	found := false
	for key, p := range r.peers {
		if key == id || p.ID == id {
			removed = p
			found = true
			delete(r.peers, key)
			break
		}
	}
	r.mu.Unlock()
	if found && r.listener != nil {
		r.listener.OnLost(removed)
	}
	return found
}

// Get returns a peer by id or address:port.
func (r *Registry) Get(id string) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.peers[id]; ok {
		return p, true
	}
	for _, p := range r.peers {
		if p.ID == id {
			return p, true
		}
	}
	return Peer{}, false
}

// Peers returns the known peers ordered by address:port.
func (r *Registry) Peers() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HostPort() < out[j].HostPort() })
	return out
}

// Sweep expires automatic peers not seen within the device timeout.
func (r *Registry) Sweep() []Peer {
	now := r.opts.Clock.Now()
	r.mu.Lock()
	var lost []Peer
	for key, p := range r.peers {
		if p.Manual {
			continue
		}
		if now.Sub(p.LastSeen) > r.opts.DeviceTimeout {
			lost = append(lost, p)
			delete(r.peers, key)
		}
	}
	r.mu.Unlock()
	for _, p := range lost {
		r.log.Info("discovery: peer lost", "peer", p.HostPort())
		if r.listener != nil {
			r.listener.OnLost(p)
		}
	}
	return lost
}

// Run scans every source once per sweep interval and expires stale peers until ctx ends.
func (r *Registry) Run(ctx context.Context, sources ...Source) error {
	r.scan(ctx, sources)
	ticker := r.opts.Clock.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.scan(ctx, sources)
			r.Sweep()
		}
	}
}

// scan runs each source, logging failures.
func (r *Registry) scan(ctx context.Context, sources []Source) {
	for _, src := range sources {
		if err := src.Scan(ctx, r.Observe); err != nil && ctx.Err() == nil {
			r.log.Debug("discovery: scan failed", "err", err)
		}
	}
}
