package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/frudas24/touchmirror/internal/fault"
	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
)

// newEchoPeer starts a websocket server that runs fn on each connection.
func newEchoPeer(t *testing.T, fn func(*websocket.Conn)) (string, int) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultPath {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	return host, port
}

// TestWebSocket_EnvelopesAndFrames verifies text envelopes are read and JPEG binaries become frames.
func TestWebSocket_EnvelopesAndFrames(t *testing.T) {
	got := make(chan string, 1)
	host, port := newEchoPeer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0xFF, 0xD8, 0x01, 0x02})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","timestamp":1}`))
		_, data, err := conn.ReadMessage()
		if err == nil {
			got <- string(data)
		}
		_, _, _ = conn.ReadMessage()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := WebSocketDialer{}.Dial(ctx, host, port)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	msg, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(msg.Data) != `{"type":"ping","timestamp":1}` || msg.Binary {
		t.Fatalf("unexpected message %+v", msg)
	}
	select {
	case f := <-conn.Frames():
		if f.Format != FormatJPEG || len(f.Data) != 4 {
			t.Fatalf("unexpected frame %+v", f)
		}
	default:
		t.Fatalf("expected a queued frame")
	}

	if err := conn.Write(ctx, Message{Data: []byte(`{"type":"pong","timestamp":1}`)}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	select {
	case s := <-got:
		if s != `{"type":"pong","timestamp":1}` {
			t.Fatalf("unexpected payload at peer: %s", s)
		}
	case <-ctx.Done():
		t.Fatalf("peer did not receive the write")
	}
}

// TestWebSocket_PeerCloseIsExpected verifies a normal close from the peer is classified as expected.
func TestWebSocket_PeerCloseIsExpected(t *testing.T) {
	host, port := newEchoPeer(t, func(conn *websocket.Conn) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := WebSocketDialer{}.Dial(ctx, host, port)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	_, err = conn.Read(ctx)
	if err == nil || !IsExpectedClose(err) {
		t.Fatalf("expected a normal close, got %v", err)
	}
}

// TestWebSocket_DialRefusedIsTransportFault verifies an unreachable peer yields a transport fault.
func TestWebSocket_DialRefusedIsTransportFault(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = WebSocketDialer{}.Dial(ctx, "127.0.0.1", port)
	if !fault.IsKind(err, fault.KindTransport) {
		t.Fatalf("expected transport fault, got %v", err)
	}
}

// TestIsExpectedClose_Classification verifies which errors count as normal shutdown.
func TestIsExpectedClose_Classification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrClosed, true},
		{fault.Wrap(fault.KindTransport, "read", &websocket.CloseError{Code: websocket.CloseGoingAway}), true},
		{&websocket.CloseError{Code: websocket.CloseAbnormalClosure}, false},
		{errors.New("reset by peer"), false},
	}
	for _, tc := range cases {
		if got := IsExpectedClose(tc.err); got != tc.want {
			t.Fatalf("IsExpectedClose(%v): expected %v, got %v", tc.err, tc.want, got)
		}
	}
}

// TestFrameAssembler_MarkerCompletesFrame verifies payloads are joined until the marker packet.
func TestFrameAssembler_MarkerCompletesFrame(t *testing.T) {
	a := NewFrameAssembler(FormatH264)
	if _, ok := a.Push(&rtp.Packet{Header: rtp.Header{Timestamp: 10}, Payload: []byte{1, 2}}); ok {
		t.Fatalf("expected no frame before marker")
	}
	f, ok := a.Push(&rtp.Packet{Header: rtp.Header{Timestamp: 10, Marker: true}, Payload: []byte{3}})
	if !ok {
		t.Fatalf("expected frame on marker")
	}
	if string(f.Data) != string([]byte{1, 2, 3}) || f.Timestamp != 10 || f.Format != FormatH264 {
		t.Fatalf("unexpected frame %+v", f)
	}
}

// TestFrameAssembler_DropsIncompleteFrame verifies a timestamp change discards the partial frame.
func TestFrameAssembler_DropsIncompleteFrame(t *testing.T) {
	a := NewFrameAssembler(FormatH264)
	a.Push(&rtp.Packet{Header: rtp.Header{Timestamp: 10}, Payload: []byte{9, 9}})
	f, ok := a.Push(&rtp.Packet{Header: rtp.Header{Timestamp: 20, Marker: true}, Payload: []byte{4}})
	if !ok || len(f.Data) != 1 || f.Data[0] != 4 {
		t.Fatalf("expected only the new frame payload, got %+v", f)
	}
}

// TestPushFrame_DropsOldest verifies a full frame queue keeps the newest frame.
func TestPushFrame_DropsOldest(t *testing.T) {
	ch := make(chan Frame, 1)
	pushFrame(ch, Frame{Timestamp: 1})
	pushFrame(ch, Frame{Timestamp: 2})
	if f := <-ch; f.Timestamp != 2 {
		t.Fatalf("expected newest frame, got %d", f.Timestamp)
	}
}
