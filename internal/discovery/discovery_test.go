package discovery

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/frudas24/touchmirror/internal/clock"
	"github.com/google/go-cmp/cmp"
)

// recordingListener captures registry notifications.
type recordingListener struct {
	mu    sync.Mutex
	found []string
	lost  []string
}

// OnFound records the peer key.
func (l *recordingListener) OnFound(p Peer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.found = append(l.found, p.HostPort())
}

// OnLost records the peer key.
func (l *recordingListener) OnLost(p Peer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lost = append(l.lost, p.HostPort())
}

// TestRegistry_FoundOnceAndExpires verifies repeated sightings refresh and silence expires.
func TestRegistry_FoundOnceAndExpires(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	l := &recordingListener{}
	r := NewRegistry(l, Options{Clock: clk})

	r.Observe(Peer{Address: "10.0.0.5", Port: 8080})
	clk.Advance(20 * time.Second)
	r.Observe(Peer{Address: "10.0.0.5", Port: 8080})
	clk.Advance(20 * time.Second)
	if lost := r.Sweep(); len(lost) != 0 {
		t.Fatalf("expected refreshed peer to survive, lost %v", lost)
	}
	clk.Advance(11 * time.Second)
	r.Sweep()

	if diff := cmp.Diff([]string{"10.0.0.5:8080"}, l.found); diff != "" {
		t.Fatalf("unexpected found (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"10.0.0.5:8080"}, l.lost); diff != "" {
		t.Fatalf("unexpected lost (-want +got):\n%s", diff)
	}
	if n := len(r.Peers()); n != 0 {
		t.Fatalf("expected empty registry, got %d", n)
	}
}

// TestRegistry_ManualNeverExpires verifies manual peers survive sweeps until removed.
func TestRegistry_ManualNeverExpires(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	l := &recordingListener{}
	r := NewRegistry(l, Options{Clock: clk})

	p := r.AddManual("192.168.1.20", 0, "")
	if p.Port != DefaultPeerPort || p.DisplayName != "Manual Device (192.168.1.20)" {
		t.Fatalf("unexpected manual peer %+v", p)
	}
	clk.Advance(time.Hour)
	r.Sweep()
	if _, ok := r.Get(p.ID); !ok {
		t.Fatalf("expected manual peer to remain")
	}
	if !r.Remove(p.ID) {
		t.Fatalf("expected remove to succeed")
	}
	if diff := cmp.Diff([]string{"192.168.1.20:8080"}, l.lost); diff != "" {
		t.Fatalf("unexpected lost (-want +got):\n%s", diff)
	}
}

// peerServer serves a discovery endpoint and returns its host and port.
func peerServer(t *testing.T, info Info) (string, int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != InfoPath {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(info)
	}))
	t.Cleanup(srv.Close)
	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}

// closedPort returns a port with nothing listening.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

// TestStatic_ReportsAnsweringPeer verifies a probed peer is reported with its info.
func TestStatic_ReportsAnsweringPeer(t *testing.T) {
	host, port := peerServer(t, Info{ID: "abc", Name: "Tablet", Width: 3088, Height: 1440})
	src := &Static{Targets: []Target{{Address: host, Port: port}}}
	var got []Peer
	if err := src.Scan(context.Background(), func(p Peer) { got = append(got, p) }); err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := []Peer{{ID: "abc", Address: host, Port: port, DisplayName: "Tablet", Width: 3088, Height: 1440}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected peers (-want +got):\n%s", diff)
	}
}

// TestStatic_FallbackPortsWhenUnset verifies a portless target tries each fallback port.
func TestStatic_FallbackPortsWhenUnset(t *testing.T) {
	host, port := peerServer(t, Info{Name: "Phone"})
	src := &Static{
		Targets:  []Target{{Address: host}},
		Fallback: []int{closedPort(t), port},
	}
	var got []Peer
	if err := src.Scan(context.Background(), func(p Peer) { got = append(got, p) }); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 1 || got[0].Port != port {
		t.Fatalf("expected peer on port %d, got %+v", port, got)
	}
}

// TestStatic_UnreachableReturnsError verifies silent targets produce an error and no peer.
func TestStatic_UnreachableReturnsError(t *testing.T) {
	src := &Static{Targets: []Target{{Address: "127.0.0.1", Port: closedPort(t)}}, Timeout: time.Second}
	called := false
	if err := src.Scan(context.Background(), func(Peer) { called = true }); err == nil {
		t.Fatalf("expected error")
	}
	if called {
		t.Fatalf("expected no report")
	}
}
