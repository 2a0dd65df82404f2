package chatclient

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ChannelState tracks the per-activation lifecycle:
// CLOSED -> CONNECTING -> OPEN -> CLOSED. A channel never reopens; each
// conversation activation gets a fresh one.
type ChannelState int32

const (
	StateClosed ChannelState = iota
	StateConnecting
	StateOpen
)

func (s ChannelState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Frame is one inbound realtime push. Timestamp is optional on the wire;
// the receiver's clock fills it in when absent.
type Frame struct {
	SenderID  int64  `json:"sender_id"`
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

type outboundFrame struct {
	Message string `json:"message"`
}

// Channel is a single duplex connection scoped to one room token.
// Connection errors move it to CLOSED and are observed, never propagated;
// recovery is a fresh activation, not a retry loop.
type Channel struct {
	url         string
	dialTimeout time.Duration
	logger      *zap.Logger
	onFrame     func(Frame)
	onClosed    func(error)

	mu     sync.Mutex
	state  ChannelState
	conn   *websocket.Conn
	closed bool
}

func newChannel(
	url string,
	dialTimeout time.Duration,
	logger *zap.Logger,
	onFrame func(Frame),
	onClosed func(error),
) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		url:         url,
		dialTimeout: dialTimeout,
		logger:      logger,
		onFrame:     onFrame,
		onClosed:    onClosed,
		state:       StateConnecting,
	}
}

// connect dials and, on success, starts the read loop. Run it in its own
// goroutine; the UI stays responsive while the dial is in flight.
func (ch *Channel) connect() {
	ctx := context.Background()
	if ch.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ch.dialTimeout)
		defer cancel()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, ch.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		ch.logger.Warn("channel dial", zap.Error(err))
		ch.fail(err)
		return
	}

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		_ = conn.Close()
		return
	}
	ch.conn = conn
	ch.state = StateOpen
	ch.mu.Unlock()

	go ch.readLoop(conn)
}

// Send transmits one outbound frame, fire and forget. It is a silent
// no-op unless the channel is OPEN and the text is non-empty after
// trimming. Reports whether a frame actually went out.
func (ch *Channel) Send(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.state != StateOpen || ch.conn == nil {
		return false
	}

	payload, err := json.Marshal(outboundFrame{Message: trimmed})
	if err != nil {
		return false
	}
	if err := ch.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		ch.logger.Warn("channel write", zap.Error(err))
		return false
	}

	return true
}

// Close is idempotent and safe in any state, including never-opened.
func (ch *Channel) Close() {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.closed = true
	ch.state = StateClosed
	conn := ch.conn
	ch.conn = nil
	ch.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func (ch *Channel) State() ChannelState {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

func (ch *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			ch.fail(err)
			return
		}

		ch.mu.Lock()
		stopped := ch.closed
		ch.mu.Unlock()
		if stopped {
			return
		}

		var frame Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			ch.logger.Warn("channel decode frame", zap.Error(err))
			continue
		}

		if ch.onFrame != nil {
			ch.onFrame(frame)
		}
	}
}

func (ch *Channel) fail(err error) {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.closed = true
	ch.state = StateClosed
	conn := ch.conn
	ch.conn = nil
	ch.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if ch.onClosed != nil {
		ch.onClosed(err)
	}
}
