package hostbridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"Predictor/internal/domain/models"
	"Predictor/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		WriteWait:  time.Second,
		PongWait:   5 * time.Second,
		PingPeriod: 4 * time.Second,
		BufferSize: 8,
	}
}

// serve starts a server whose handler wraps the upgraded conn in a bridge and
// hands it to the test. run controls whether the pump is started.
func serve(t *testing.T, cfg Config, run bool) (*WebSocketBridge, *websocket.Conn) {
	t.Helper()
	bridges := make(chan *WebSocketBridge, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b := NewWebSocketBridge(conn, cfg, logger.Nop())
		bridges <- b
		if run {
			_ = b.Run(context.Background())
		}
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case b := <-bridges:
		t.Cleanup(func() { _ = b.Close() })
		return b, client
	case <-time.After(2 * time.Second):
		t.Fatal("bridge not created")
		return nil, nil
	}
}

func readFrame(t *testing.T, c *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, c.ReadJSON(&f))
	return f
}

func TestWebSocketBridge_RelaysCalls(t *testing.T) {
	b, client := serve(t, testConfig(), true)

	require.NoError(t, b.Ready())
	require.NoError(t, b.Expand())
	require.NoError(t, b.EnableClosingConfirmation())
	require.NoError(t, b.HapticFeedback(models.HapticWarning))

	assert.Equal(t, Frame{Type: FrameCall, Method: MethodReady}, readFrame(t, client))
	assert.Equal(t, Frame{Type: FrameCall, Method: MethodExpand}, readFrame(t, client))
	assert.Equal(t, Frame{Type: FrameCall, Method: MethodClosingConfirm}, readFrame(t, client))
	assert.Equal(t, Frame{
		Type:   FrameCall,
		Method: MethodHapticNotify,
		Args:   []string{"warning"},
	}, readFrame(t, client))
}

func TestWebSocketBridge_StateFrame(t *testing.T) {
	b, client := serve(t, testConfig(), true)

	b.SessionUpdated(models.SessionSnapshot{ID: "s1", Version: 3, View: models.ViewAnalyzing, Progress: 42})

	f := readFrame(t, client)
	assert.Equal(t, FrameState, f.Type)
	require.NotNil(t, f.State)
	assert.Equal(t, "s1", f.State.ID)
	assert.Equal(t, uint64(3), f.State.Version)
	assert.Equal(t, 42, f.State.Progress)
}

func TestWebSocketBridge_SendAfterClose(t *testing.T) {
	b, _ := serve(t, testConfig(), true)

	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Ready(), ErrBridgeClosed)
	assert.ErrorIs(t, b.HapticFeedback(models.HapticSuccess), ErrBridgeClosed)
	assert.NoError(t, b.Close())
}

func TestWebSocketBridge_FullBufferDoesNotBlock(t *testing.T) {
	cfg := testConfig()
	cfg.BufferSize = 1
	b, _ := serve(t, cfg, false)

	require.NoError(t, b.Ready())
	assert.ErrorIs(t, b.Expand(), ErrBridgeBusy)
}

func TestWebSocketBridge_RunEndsOnPeerClose(t *testing.T) {
	bridges := make(chan error, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		bridges <- NewWebSocketBridge(conn, testConfig(), logger.Nop()).Run(context.Background())
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.NoError(t, client.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))

	select {
	case err := <-bridges:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	_ = client.Close()
}

func TestOptional_NilIsNoop(t *testing.T) {
	o := Optional(nil)
	assert.NoError(t, o.Ready())
	assert.NoError(t, o.Expand())
	assert.NoError(t, o.EnableClosingConfirmation())
	assert.NoError(t, o.HapticFeedback(models.HapticSuccess))
	o.SessionUpdated(models.SessionSnapshot{})
}

type panicky struct{}

func (panicky) Ready() error                            { panic("boom") }
func (panicky) Expand() error                           { return nil }
func (panicky) EnableClosingConfirmation() error        { return nil }
func (panicky) HapticFeedback(models.HapticKind) error { return nil }

func TestOptional_RecoversPanics(t *testing.T) {
	o := Optional(panicky{})
	err := o.Ready()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.NoError(t, o.Expand())
	// not an observer: silently skipped
	o.SessionUpdated(models.SessionSnapshot{})
}
