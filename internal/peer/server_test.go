package peer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/frudas24/touchmirror/internal/discovery"
	"github.com/frudas24/touchmirror/internal/monitor"
	"github.com/frudas24/touchmirror/internal/protocol"
	"github.com/frudas24/touchmirror/internal/testutil"
	"github.com/gorilla/websocket"
)

var testMonitor = monitor.Monitor{Index: 1, W: 1280, H: 720, Primary: true}

// startPeer serves a peer over httptest and returns a connected websocket client.
func startPeer(t *testing.T, opts Options) (*Server, *testutil.FakeInjector, *websocket.Conn) {
	t.Helper()
	inj := &testutil.FakeInjector{}
	srv := NewServer(inj, testMonitor, opts)
	t.Cleanup(srv.Close)
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(hs.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return srv, inj, conn
}

// sendJSON writes one JSON envelope.
func sendJSON(t *testing.T, conn *websocket.Conn, msg protocol.Message) {
	t.Helper()
	data, err := protocol.Encode(protocol.JSON, msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readEnvelope reads and decodes one envelope.
func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	codec := protocol.JSON
	if kind == websocket.BinaryMessage {
		codec = protocol.CBOR
	}
	msg, err := protocol.Decode(codec, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

// handshake completes the connection request exchange.
func handshake(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	sendJSON(t, conn, protocol.NewConnectionRequest("client-1", nil, testMonitor.Size(), time.Now()))
	return readEnvelope(t, conn)
}

// TestServer_AckCarriesScreen verifies the handshake reply announces the screen size.
func TestServer_AckCarriesScreen(t *testing.T) {
	_, _, conn := startPeer(t, Options{})
	ack, ok := handshake(t, conn).(protocol.ConnectionAck)
	if !ok {
		t.Fatalf("expected connection_ack")
	}
	if ack.SessionID == "" || ack.ScreenResolution == nil || ack.ScreenResolution.Width != 1280 {
		t.Fatalf("unexpected ack %+v", ack)
	}
}

// TestServer_WelcomeVariant verifies the mobile handshake reply.
func TestServer_WelcomeVariant(t *testing.T) {
	_, _, conn := startPeer(t, Options{Welcome: true})
	w, ok := handshake(t, conn).(protocol.Welcome)
	if !ok || w.ScreenWidth != 1280 || w.ScreenHeight != 720 {
		t.Fatalf("unexpected welcome %+v", w)
	}
}

// TestServer_PingEchoesTimestamp verifies pongs echo the ping timestamp.
func TestServer_PingEchoesTimestamp(t *testing.T) {
	_, _, conn := startPeer(t, Options{})
	sendJSON(t, conn, protocol.Ping{Timestamp: 1234})
	pong, ok := readEnvelope(t, conn).(protocol.Pong)
	if !ok || pong.Timestamp != 1234 {
		t.Fatalf("expected pong 1234, got %+v", pong)
	}
}

// TestServer_CBORRepliesInKind verifies binary requests get binary replies.
func TestServer_CBORRepliesInKind(t *testing.T) {
	_, _, conn := startPeer(t, Options{})
	data, err := protocol.Encode(protocol.CBOR, protocol.Ping{Timestamp: 7})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
	pong, ok := readEnvelope(t, conn).(protocol.Pong)
	if !ok || pong.Timestamp != 7 {
		t.Fatalf("expected pong 7, got %+v", pong)
	}
}

// TestServer_TouchInjects verifies a tap reaches the injector as a click.
func TestServer_TouchInjects(t *testing.T) {
	_, inj, conn := startPeer(t, Options{})
	handshake(t, conn)
	sendJSON(t, conn, protocol.Touch{Action: "tap", X: 10, Y: 20})
	sendJSON(t, conn, protocol.Ping{Timestamp: 1})
	readEnvelope(t, conn)
	calls := inj.Calls()
	if len(calls) != 1 || calls[0].Name != "ClickAt" || calls[0].X != 10 || calls[0].Y != 20 {
		t.Fatalf("expected one click at (10,20), got %+v", calls)
	}
}

// TestServer_QualityChange verifies quality requests are applied and confirmed.
func TestServer_QualityChange(t *testing.T) {
	applied := make(chan protocol.Quality, 1)
	srv, _, conn := startPeer(t, Options{OnQuality: func(q protocol.Quality) error {
		applied <- q
		return nil
	}})
	sendJSON(t, conn, protocol.NewQualityChange(protocol.QualityLow))
	st, ok := readEnvelope(t, conn).(protocol.Status)
	if !ok || st.Message != "low" {
		t.Fatalf("expected status low, got %+v", st)
	}
	if q := <-applied; q != protocol.QualityLow || srv.Quality() != protocol.QualityLow {
		t.Fatalf("expected low quality, got %q/%q", q, srv.Quality())
	}
}

// TestServer_UnknownEnvelopeReportsError verifies unknown types are answered with an error.
func TestServer_UnknownEnvelopeReportsError(t *testing.T) {
	_, _, conn := startPeer(t, Options{})
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"keyboard"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	e, ok := readEnvelope(t, conn).(protocol.Error)
	if !ok || e.Code != "unsupported" {
		t.Fatalf("expected unsupported error, got %+v", e)
	}
}

// TestServer_PublishAfterAck verifies JPEG frames reach acknowledged sessions.
func TestServer_PublishAfterAck(t *testing.T) {
	srv, _, conn := startPeer(t, Options{})
	handshake(t, conn)
	jpg := []byte{0xFF, 0xD8, 0x01, 0x02}
	srv.Publish(jpg)
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.BinaryMessage || string(data) != string(jpg) {
		t.Fatalf("expected jpeg frame, got kind %d len %d", kind, len(data))
	}
}

// TestServer_SetScreenBroadcastsResize verifies screen changes are announced.
func TestServer_SetScreenBroadcastsResize(t *testing.T) {
	srv, _, conn := startPeer(t, Options{})
	handshake(t, conn)
	srv.SetScreen(monitor.Monitor{Index: 2, W: 1920, H: 1080})
	r, ok := readEnvelope(t, conn).(protocol.Resize)
	if !ok || r.Width != 1920 || r.Height != 1080 {
		t.Fatalf("expected resize 1920x1080, got %+v", r)
	}
}

// TestServer_HandleDiscovery verifies the discovery body.
func TestServer_HandleDiscovery(t *testing.T) {
	srv := NewServer(&testutil.FakeInjector{}, testMonitor, Options{Name: "desk", ID: "peer-1"})
	defer srv.Close()
	rec := httptest.NewRecorder()
	srv.HandleDiscovery(rec, httptest.NewRequest(http.MethodGet, discovery.InfoPath, nil))
	var info discovery.Info
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.ID != "peer-1" || info.Name != "desk" || info.Width != 1280 {
		t.Fatalf("unexpected info %+v", info)
	}
}
