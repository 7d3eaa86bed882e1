package hostbridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"Predictor/internal/domain/models"
	"Predictor/pkg/logger"

	"github.com/gorilla/websocket"
)

var (
	ErrBridgeClosed = errors.New("host bridge closed")
	ErrBridgeBusy   = errors.New("host bridge send buffer full")
)

// Frame types and host methods relayed to the mini-app.
const (
	FrameCall  = "call"
	FrameState = "state"

	MethodReady          = "ready"
	MethodExpand         = "expand"
	MethodClosingConfirm = "enableClosingConfirmation"
	MethodHapticNotify   = "HapticFeedback.notificationOccurred"
)

const maxReadBytes = 4096

// Frame is one JSON message written to the mini-app.
type Frame struct {
	Type   string                  `json:"type"`
	Method string                  `json:"method,omitempty"`
	Args   []string                `json:"args,omitempty"`
	State  *models.SessionSnapshot `json:"state,omitempty"`
}

type Config struct {
	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
	BufferSize int
}

// WebSocketBridge relays host calls and state snapshots to the mini-app over a
// websocket. Sends never block: a full buffer drops the frame.
type WebSocketBridge struct {
	conn *websocket.Conn
	cfg  Config
	log  *logger.Logger

	out  chan Frame
	done chan struct{}
	once sync.Once
}

func NewWebSocketBridge(conn *websocket.Conn, cfg Config, log *logger.Logger) *WebSocketBridge {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	return &WebSocketBridge{
		conn: conn,
		cfg:  cfg,
		log:  log,
		out:  make(chan Frame, cfg.BufferSize),
		done: make(chan struct{}),
	}
}

func (b *WebSocketBridge) Ready() error { return b.send(call(MethodReady)) }

func (b *WebSocketBridge) Expand() error { return b.send(call(MethodExpand)) }

func (b *WebSocketBridge) EnableClosingConfirmation() error {
	return b.send(call(MethodClosingConfirm))
}

func (b *WebSocketBridge) HapticFeedback(kind models.HapticKind) error {
	return b.send(call(MethodHapticNotify, string(kind)))
}

// SessionUpdated pushes a state frame. Dropped frames are recovered by the next one
// since every snapshot carries the full state.
func (b *WebSocketBridge) SessionUpdated(s models.SessionSnapshot) {
	if err := b.send(Frame{Type: FrameState, State: &s}); err != nil {
		b.log.Debug("state frame dropped", logger.Error(err), logger.Uint64("version", s.Version))
	}
}

// Run pumps frames until the peer disconnects, ctx is done or Close is called.
func (b *WebSocketBridge) Run(ctx context.Context) error {
	go b.writeLoop()

	stop := context.AfterFunc(ctx, func() { _ = b.Close() })
	defer stop()
	defer b.Close()

	b.conn.SetReadLimit(maxReadBytes)
	_ = b.conn.SetReadDeadline(time.Now().Add(b.cfg.PongWait))
	b.conn.SetPongHandler(func(string) error {
		return b.conn.SetReadDeadline(time.Now().Add(b.cfg.PongWait))
	})

	for {
		_, msg, err := b.conn.ReadMessage()
		if err != nil {
			select {
			case <-b.done:
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		b.log.Debug("bridge message ignored", logger.Int("bytes", len(msg)))
	}
}

// Close stops the bridge. Later calls return ErrBridgeClosed.
func (b *WebSocketBridge) Close() error {
	var err error
	b.once.Do(func() {
		close(b.done)
		_ = b.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(b.cfg.WriteWait))
		err = b.conn.Close()
	})
	return err
}

func (b *WebSocketBridge) send(f Frame) error {
	select {
	case <-b.done:
		return ErrBridgeClosed
	default:
	}
	select {
	case b.out <- f:
		return nil
	case <-b.done:
		return ErrBridgeClosed
	default:
		return ErrBridgeBusy
	}
}

func (b *WebSocketBridge) writeLoop() {
	ticker := time.NewTicker(b.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case f := <-b.out:
			_ = b.conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteWait))
			if err := b.conn.WriteJSON(f); err != nil {
				b.log.Debug("bridge write failed", logger.Error(err))
				_ = b.Close()
				return
			}
		case <-ticker.C:
			_ = b.conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteWait))
			if err := b.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = b.Close()
				return
			}
		}
	}
}

func call(method string, args ...string) Frame {
	return Frame{Type: FrameCall, Method: method, Args: args}
}
