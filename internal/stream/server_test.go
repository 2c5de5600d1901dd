package stream

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(Options{
		Addr:   "127.0.0.1:0",
		Build:  "test",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dialViewer(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/stream", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (MessageHeader, []byte) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)
	header, payload, err := DecodeEnvelope(message)
	require.NoError(t, err)
	return header, payload
}

func sendViewerReady(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	message, err := EncodeMessage(KindControl, Control{
		Type:     ControlViewerReady,
		Protocol: ProtocolVersion,
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, message))
}

func TestServerSendsHelloOnConnect(t *testing.T) {
	s := newTestServer(t)
	conn := dialViewer(t, s)

	header, payload := readFrame(t, conn)
	require.Equal(t, KindHello, header.Kind)

	var hello Hello
	require.NoError(t, DecodePayload(payload, &hello))
	require.Equal(t, "GrimStream", hello.Protocol)
	require.Equal(t, "exhume", hello.Producer)
	require.Equal(t, "test", hello.Build)
}

func TestStateUpdatesGatedUntilViewerReady(t *testing.T) {
	s := newTestServer(t)
	conn := dialViewer(t, s)
	readFrame(t, conn) // hello

	// Dropped: the viewer has not reported ready, so no sequence number
	// is consumed.
	require.NoError(t, s.SendStateUpdate(StateUpdate{Events: []string{"dropped"}}))

	sendViewerReady(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.ViewerGate().WaitForReady(ctx))
	require.True(t, s.ViewerGate().IsReady())

	require.NoError(t, s.SendStateUpdate(StateUpdate{Events: []string{"first"}}))
	require.NoError(t, s.SendStateUpdate(StateUpdate{Events: []string{"second"}}))

	header, payload := readFrame(t, conn)
	require.Equal(t, KindStateUpdate, header.Kind)
	var first StateUpdate
	require.NoError(t, DecodePayload(payload, &first))
	require.Equal(t, uint64(0), first.Seq)
	require.Equal(t, []string{"first"}, first.Events)
	require.NotZero(t, first.HostTimeNS)

	_, payload = readFrame(t, conn)
	var second StateUpdate
	require.NoError(t, DecodePayload(payload, &second))
	require.Equal(t, uint64(1), second.Seq)
	require.Equal(t, []string{"second"}, second.Events)
}

func TestSecondViewerRejected(t *testing.T) {
	s := newTestServer(t)
	conn := dialViewer(t, s)
	readFrame(t, conn) // hello

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/stream", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestMovieControlBackchannel(t *testing.T) {
	s := newTestServer(t)
	conn := dialViewer(t, s)
	readFrame(t, conn) // hello

	message, err := EncodeMessage(KindMovieControl, MovieControl{Action: "finished", Name: "intro.snm"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, message))

	select {
	case event := <-s.MovieControls():
		require.Equal(t, uint64(1), event.Generation)
		require.Equal(t, "finished", event.Control.Action)
		require.Equal(t, "intro.snm", event.Control.Name)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for movie control event")
	}
}

func TestReconnectBumpsGenerationAndRearmsGate(t *testing.T) {
	s := newTestServer(t)

	conn := dialViewer(t, s)
	readFrame(t, conn) // hello
	sendViewerReady(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.ViewerGate().WaitForReady(ctx))
	require.Equal(t, uint64(1), s.Generation())

	conn.Close()

	// The server notices the drop asynchronously, then accepts a fresh
	// viewer with a bumped generation and a closed gate.
	var reconnected *websocket.Conn
	require.Eventually(t, func() bool {
		next, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/stream", nil)
		if err != nil {
			return false
		}
		reconnected = next
		return true
	}, 5*time.Second, 20*time.Millisecond)
	t.Cleanup(func() { reconnected.Close() })

	readFrame(t, reconnected) // hello
	require.Equal(t, uint64(2), s.Generation())
	require.False(t, s.ViewerGate().IsReady())
}

func TestWaitForReadyHonorsContext(t *testing.T) {
	s := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.ViewerGate().WaitForReady(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendAfterCloseFails(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.SendStateUpdate(StateUpdate{}), ErrServerClosed)
	require.ErrorIs(t, s.SendMovieStart(MovieStart{Name: "intro.snm"}), ErrServerClosed)
}
