package cli

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/exhume/internal/state"
	"github.com/roach88/exhume/internal/stream"
	"github.com/roach88/exhume/internal/testutil"
	"github.com/roach88/exhume/internal/timeline"
)

func TestServeCommandRejectsMissingRoot(t *testing.T) {
	_, err := executeCLI("serve", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestPublishAnalysisStreamsRunState(t *testing.T) {
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	analysis, err := Analyze(testutil.ScriptTree(t), AnalyzeOptions{Logger: discard})
	require.NoError(t, err)
	require.NotEmpty(t, analysis.Engine.SubsystemDeltaEvents)

	server, err := stream.NewServer(stream.Options{
		Addr:   "127.0.0.1:0",
		Build:  "test",
		Logger: discard,
	})
	require.NoError(t, err)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+server.Addr()+"/stream", nil)
	require.NoError(t, err)
	defer conn.Close()

	header, _ := readViewerFrame(t, conn)
	require.Equal(t, stream.KindHello, header.Kind)

	ready, err := stream.EncodeMessage(stream.KindControl, stream.Control{Type: stream.ControlViewerReady})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, ready))

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.ViewerGate().WaitForReady(waitCtx))

	require.NoError(t, publishAnalysis(server, analysis))

	// One update per delta event, then the closing summary update.
	var final stream.StateUpdate
	for i := 0; i <= len(analysis.Engine.SubsystemDeltaEvents); i++ {
		header, payload := readViewerFrame(t, conn)
		require.Equal(t, stream.KindStateUpdate, header.Kind)

		var update stream.StateUpdate
		require.NoError(t, stream.DecodePayload(payload, &update))
		require.Equal(t, uint64(i), update.Seq)
		final = update
	}

	assert.Equal(t, "mo.set", final.ActiveSetup)
	require.NotEmpty(t, final.Coverage)

	keys := make([]string, 0, len(final.Coverage))
	for _, counter := range final.Coverage {
		keys = append(keys, counter.Key)
	}
	assert.Contains(t, keys, "actors:manny", "SetActorPos should tally manny under the actors subsystem")
	assert.Contains(t, keys, "objects:manny", "manny's setpos lands in the objects bucket")
}

func TestPublishAnalysisStreamsProtagonistTransform(t *testing.T) {
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	analysis := &Analysis{
		Summary: timeline.BootSummary{DefaultSet: "mo.set"},
		Engine: &state.EngineState{
			ReplaySnapshot: state.SubsystemReplaySnapshot{
				Actors: map[string]*state.ActorState{
					"manny": {
						Name: "manny",
						Transform: &state.ActorTransform{
							Position: &state.Vec3{X: 0.606, Y: 2.041},
							Rotation: &state.Vec3{Y: 90},
						},
					},
				},
			},
		},
	}

	server, err := stream.NewServer(stream.Options{
		Addr:   "127.0.0.1:0",
		Build:  "test",
		Logger: discard,
	})
	require.NoError(t, err)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+server.Addr()+"/stream", nil)
	require.NoError(t, err)
	defer conn.Close()

	header, _ := readViewerFrame(t, conn)
	require.Equal(t, stream.KindHello, header.Kind)

	ready, err := stream.EncodeMessage(stream.KindControl, stream.Control{Type: stream.ControlViewerReady})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, ready))

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.ViewerGate().WaitForReady(waitCtx))

	require.NoError(t, publishAnalysis(server, analysis))

	header, payload := readViewerFrame(t, conn)
	require.Equal(t, stream.KindStateUpdate, header.Kind)

	var update stream.StateUpdate
	require.NoError(t, stream.DecodePayload(payload, &update))
	require.NotNil(t, update.Position)
	assert.InDelta(t, 0.606, update.Position[0], 0.0001)
	assert.InDelta(t, 2.041, update.Position[1], 0.0001)
	require.NotNil(t, update.Yaw)
	assert.InDelta(t, 90, *update.Yaw, 0.0001)
}

func readViewerFrame(t *testing.T, conn *websocket.Conn) (stream.MessageHeader, []byte) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	header, payload, err := stream.DecodeEnvelope(raw)
	require.NoError(t, err)
	return header, payload
}
