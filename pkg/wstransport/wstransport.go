// Package wstransport carries BLIP frames over WebSocket connections
// using gorilla/websocket. One BLIP frame is one binary WebSocket
// message, so the transport preserves frame boundaries by construction.
//
// Peers negotiate a WebSocket subprotocol of the form "BLIP_3+<appID>"
// where appID names the application protocol spoken on top of BLIP.
package wstransport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ProtocolPrefix is the BLIP framing version announced in the WebSocket
// subprotocol.
const ProtocolPrefix = "BLIP_3"

// Defaults.
const (
	DefaultMaxFrameSize      = 16384
	DefaultWriteTimeout      = 10 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
)

// ErrSubprotocolMismatch is returned by Dial when the server does not
// accept the offered BLIP subprotocol.
var ErrSubprotocolMismatch = errors.New("wstransport: peer did not accept BLIP subprotocol")

// Subprotocol returns the WebSocket subprotocol name for an application
// protocol ID, e.g. Subprotocol("echo") == "BLIP_3+echo".
func Subprotocol(appProtocolID string) string {
	return ProtocolPrefix + "+" + appProtocolID
}

// Options configures a Transport.
type Options struct {
	// AppProtocolID names the application protocol, used in subprotocol
	// negotiation. Required for Dial and Upgrade.
	AppProtocolID string

	// MaxFrameSize is the largest frame handed to one WebSocket message.
	// Default: DefaultMaxFrameSize.
	MaxFrameSize int

	// WriteTimeout bounds each frame write. Default: DefaultWriteTimeout.
	WriteTimeout time.Duration

	// HeartbeatInterval is the WebSocket ping cadence; pongs extend the
	// read deadline. Zero disables heartbeats.
	HeartbeatInterval time.Duration

	// Logger receives transport-level logs.
	// Default: slog.Default() with a "component" field.
	Logger *slog.Logger
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = DefaultMaxFrameSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "wstransport")
	}
	return opts
}

// Transport adapts a WebSocket connection to the blip.Transport contract:
// one reader, one writer, frame-preserving, ordered.
type Transport struct {
	conn   *websocket.Conn
	opts   Options
	logger *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Dial opens a WebSocket connection to urlStr and negotiates the BLIP
// subprotocol for opts.AppProtocolID.
func Dial(ctx context.Context, urlStr string, opts Options) (*Transport, error) {
	opts = opts.withDefaults()
	dialer := websocket.Dialer{
		Subprotocols:     []string{Subprotocol(opts.AppProtocolID)},
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("wstransport: dial %s: %w", urlStr, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if conn.Subprotocol() != Subprotocol(opts.AppProtocolID) {
		conn.Close()
		return nil, ErrSubprotocolMismatch
	}
	return newTransport(conn, opts), nil
}

// Upgrade accepts an inbound WebSocket handshake on an HTTP request and
// negotiates the BLIP subprotocol. The caller owns origin checking via
// checkOrigin; nil allows same-origin only (gorilla's default).
func Upgrade(w http.ResponseWriter, r *http.Request, opts Options, checkOrigin func(*http.Request) bool) (*Transport, error) {
	opts = opts.withDefaults()
	upgrader := websocket.Upgrader{
		Subprotocols: []string{Subprotocol(opts.AppProtocolID)},
		CheckOrigin:  checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("wstransport: upgrade: %w", err)
	}
	return newTransport(conn, opts), nil
}

func newTransport(conn *websocket.Conn, opts Options) *Transport {
	t := &Transport{
		conn:   conn,
		opts:   opts,
		logger: opts.Logger,
		done:   make(chan struct{}),
	}
	if opts.HeartbeatInterval > 0 {
		readTimeout := 2 * opts.HeartbeatInterval
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readTimeout))
		})
		go t.heartbeat()
	}
	return t
}

// heartbeat pings the peer on a ticker until the transport closes.
func (t *Transport) heartbeat() {
	ticker := time.NewTicker(t.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.writeMu.Lock()
			err := t.conn.WriteControl(websocket.PingMessage, nil,
				time.Now().Add(t.opts.WriteTimeout))
			t.writeMu.Unlock()
			if err != nil {
				t.logger.Debug("heartbeat ping failed", "error", err)
				return
			}
		case <-t.done:
			return
		}
	}
}

// WriteFrame sends one BLIP frame as a single binary WebSocket message.
func (t *Transport) WriteFrame(frame []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout))
	return t.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// ReadFrame receives the next binary WebSocket message. Text messages are
// not part of the protocol and are skipped.
func (t *Transport) ReadFrame() ([]byte, error) {
	for {
		mt, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				t.logger.Error("read error", "error", err)
			}
			return nil, err
		}
		if mt == websocket.BinaryMessage {
			return data, nil
		}
		t.logger.Warn("skipping non-binary websocket message", "type", mt)
	}
}

// MaxFrameSize returns the configured frame size ceiling.
func (t *Transport) MaxFrameSize() int {
	return t.opts.MaxFrameSize
}

// Subprotocol returns the negotiated WebSocket subprotocol.
func (t *Transport) Subprotocol() string {
	return t.conn.Subprotocol()
}

// Close sends a WebSocket close message and tears down the connection,
// unblocking pending reads and writes.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.writeMu.Lock()
		t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}
