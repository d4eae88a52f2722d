// Package transport implements the engine's Transport contract (§6): the
// boundary between the protocol driver and an actual network connection.
//
// The concrete implementation is a gorilla/websocket client, adapted from
// the teacher's server-side websocket handler (read loop, write mutex,
// close-code translation) to the dial side of the connection.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/emberlink/gatewire/internal/gwlog"
)

// Transport is the minimal surface the protocol driver needs from a live
// connection. Implementations own exactly one underlying socket and are not
// reused across reconnects — the engine constructs a fresh Transport per
// connection attempt.
type Transport interface {
	// Send queues raw bytes for the wire. It returns once the frame has
	// been handed to the underlying connection, not once it's
	// acknowledged.
	Send(data []byte, binary bool) error
	// Ping round-trips a control-frame ping and reports the observed
	// latency, or an error if none arrived within timeout.
	Ping(ctx context.Context, timeout time.Duration) (time.Duration, error)
	// Close closes the connection with the given close code and reason.
	Close(code int, reason string) error
}

// OnOpen is invoked from the goroutine that called Dial; the other
// callbacks from the transport's internal read goroutine. The
// engine's actor loop is the only safe place to touch shared state from
// inside them — callbacks must enqueue an Input rather than mutate engine
// state directly.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(data []byte, binary bool)
	OnClose   func(code int, reason string)
	OnError   func(err error)
}

// WSTransport is the gorilla/websocket-backed Transport.
type WSTransport struct {
	log *gwlog.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	closeOnce sync.Once
	pongCh    chan struct{}
}

var _ Transport = (*WSTransport)(nil)

// Dial opens a websocket connection to url and starts the read pump. The
// returned WSTransport begins delivering cb.OnMessage/OnClose/OnError
// immediately from a background goroutine; cb.OnOpen fires once, from the
// calling goroutine, before Dial returns.
func Dial(ctx context.Context, url string, headers http.Header, cb Callbacks, log *gwlog.Logger) (*WSTransport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}

	t := &WSTransport{
		log:    log,
		conn:   conn,
		pongCh: make(chan struct{}, 1),
	}

	conn.SetPongHandler(func(string) error {
		select {
		case t.pongCh <- struct{}{}:
		default:
		}
		return nil
	})

	if cb.OnOpen != nil {
		cb.OnOpen()
	}

	go t.readPump(cb)

	return t, nil
}

func (t *WSTransport) readPump(cb Callbacks) {
	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			code, reason := closeInfoFromErr(err)
			if cb.OnClose != nil {
				cb.OnClose(code, reason)
			}
			return
		}
		if cb.OnMessage != nil {
			cb.OnMessage(data, msgType == websocket.BinaryMessage)
		}
	}
}

// Send writes a single frame. Concurrent Send/Ping/Close calls are
// serialized: gorilla/websocket requires at most one writer at a time.
func (t *WSTransport) Send(data []byte, binary bool) error {
	msgType := websocket.TextMessage
	if binary {
		msgType = websocket.BinaryMessage
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteMessage(msgType, data); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

// Ping writes a control-frame ping and waits for the matching pong, up to
// timeout.
func (t *WSTransport) Ping(ctx context.Context, timeout time.Duration) (time.Duration, error) {
	start := time.Now()

	t.writeMu.Lock()
	err := t.conn.WriteControl(websocket.PingMessage, nil, start.Add(timeout))
	t.writeMu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("transport: ping: %w", err)
	}

	select {
	case <-t.pongCh:
		return time.Since(start), nil
	case <-time.After(timeout):
		return 0, fmt.Errorf("transport: ping: %w", context.DeadlineExceeded)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close sends a close frame with code/reason and closes the socket. Safe to
// call more than once; only the first call has effect.
func (t *WSTransport) Close(code int, reason string) error {
	var err error
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		deadline := time.Now().Add(2 * time.Second)
		writeErr := t.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		t.writeMu.Unlock()
		if writeErr != nil && t.log.Enabled(gwlog.LevelDebug) {
			t.log.Debugf("transport: close control write failed: %v", writeErr)
		}
		err = t.conn.Close()
	})
	return err
}

func closeInfoFromErr(err error) (code int, reason string) {
	if ce, ok := err.(*websocket.CloseError); ok {
		return ce.Code, ce.Text
	}
	return websocket.CloseAbnormalClosure, err.Error()
}
