// Package websocket implements the push channel over a websocket connection.
package websocket

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/protocol"
)

var _ protocol.Transport = (*Transport)(nil)

// Transport is a websocket client carrying one JSON frame per text message.
type Transport struct {
	id     string
	config protocol.Config
	logger log.Log

	// dialing is set for the whole life of a Connect attempt that has not
	// failed; conn is only published once the handshake is done.
	dialing  atomic.Bool
	mu       sync.Mutex
	conn     *websocket.Conn
	life     *protocol.Lifecycle
	readDone chan struct{}

	// gorilla allows one concurrent writer
	writeMu sync.Mutex
}

func New(config protocol.Config, logger log.Log) *Transport {
	if logger == nil {
		logger = log.Provide()
	}
	id := uuid.NewString()
	return &Transport{
		id:       id,
		config:   config,
		logger:   logger.With(log.String("transport", "websocket"), log.String("connection_id", id)),
		life:     protocol.NewLifecycle(),
		readDone: make(chan struct{}),
	}
}

func (t *Transport) ID() string { return t.id }

func (t *Transport) Connect(ctx context.Context, sink protocol.Sink) error {
	if t.life.Ended() {
		return protocol.ErrClosed
	}
	if !t.dialing.CompareAndSwap(false, true) {
		return protocol.ErrAlreadyConnected
	}

	dialer := &websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: t.config.HandshakeTimeout,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: t.config.InsecureSkipVerify},
	}
	conn, resp, err := dialer.DialContext(ctx, t.config.URL, t.config.Headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.dialing.Store(false)
		return errors.Wrapf(err, "dial %s", t.config.URL)
	}
	if t.config.MaxFrameSize > 0 {
		conn.SetReadLimit(int64(t.config.MaxFrameSize))
	}

	t.mu.Lock()
	if t.life.Ended() {
		t.mu.Unlock()
		_ = conn.Close()
		return protocol.ErrClosed
	}
	t.conn = conn
	t.mu.Unlock()

	t.logger.Info("Connected to push channel", log.String("url", t.config.URL))
	go t.readLoop(conn, sink)
	return nil
}

// current returns the connection, nil until Connect has finished dialing.
func (t *Transport) current() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

func (t *Transport) readLoop(conn *websocket.Conn, sink protocol.Sink) {
	defer close(t.readDone)
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if t.life.Ended() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.life.End(nil)
			} else {
				t.logger.Warn("Push channel read failed", log.Error(err))
				t.life.End(errors.Wrap(err, "failed to read message"))
			}
			_ = conn.Close()
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		sink(data)
	}
}

func (t *Transport) Send(ctx context.Context, frame []byte) error {
	conn := t.current()
	if conn == nil {
		return protocol.ErrNotConnected
	}
	if t.life.Ended() {
		return protocol.ErrClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline := time.Time{}
	if t.config.WriteTimeout > 0 {
		deadline = time.Now().Add(t.config.WriteTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)

	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

// Close sends a normal closure and waits for the reader to stop.
func (t *Transport) Close() error {
	if !t.life.End(nil) {
		return nil
	}
	// A Connect still dialing sees the ended lifecycle and closes its own conn.
	conn := t.current()
	if conn == nil {
		return nil
	}

	t.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	t.writeMu.Unlock()

	err := conn.Close()
	<-t.readDone
	t.logger.Info("Push channel closed")
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return errors.Wrap(err, "close websocket")
	}
	return nil
}

func (t *Transport) Done() <-chan struct{} { return t.life.Done() }
func (t *Transport) Err() error            { return t.life.Err() }
