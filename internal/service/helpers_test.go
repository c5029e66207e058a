package service

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/studio-parallax/maquette-api/internal/dto"
	"github.com/studio-parallax/maquette-api/internal/override"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// fakeConn stands in for a websocket connection. Inbound frames are injected
// through push; text frames written by the client land on writes.
type fakeConn struct {
	inbound    chan []byte
	writes     chan []byte
	closed     chan struct{}
	once       sync.Once
	failWrites atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		writes:  make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-f.inbound:
		return websocket.TextMessage, frame, nil
	case <-f.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	if f.failWrites.Load() {
		return errors.New("broken pipe")
	}
	if messageType != websocket.TextMessage {
		return nil
	}
	select {
	case f.writes <- data:
	case <-f.closed:
	}
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) push(t *testing.T, frame string) {
	t.Helper()
	select {
	case f.inbound <- []byte(frame):
	case <-time.After(time.Second):
		t.Fatal("inbound queue never drained")
	}
}

// startDisplay serves the connection on a goroutine and returns the initial
// state push, which also guarantees registration completed.
func startDisplay(t *testing.T, svc OverrideService, conn *fakeConn) dto.ChannelMessage {
	t.Helper()
	t.Cleanup(svc.CloseConnections)
	go svc.ServeConnection(conn)
	return nextMessage(t, conn)
}

func nextRawFrame(t *testing.T, conn *fakeConn) []byte {
	t.Helper()
	select {
	case frame := <-conn.writes:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return nil
	}
}

func nextMessage(t *testing.T, conn *fakeConn) dto.ChannelMessage {
	t.Helper()
	var msg dto.ChannelMessage
	require.NoError(t, json.Unmarshal(nextRawFrame(t, conn), &msg))
	return msg
}

func requireNoFrame(t *testing.T, conn *fakeConn) {
	t.Helper()
	select {
	case frame := <-conn.writes:
		t.Fatalf("unexpected frame: %s", frame)
	case <-time.After(100 * time.Millisecond):
	}
}

func decodeModelPayload(t *testing.T, msg dto.ChannelMessage) *override.Override {
	t.Helper()
	require.Equal(t, dto.MessageModelUpdate, msg.Type)
	var value *override.Override
	require.NoError(t, json.Unmarshal(msg.Payload, &value))
	return value
}
