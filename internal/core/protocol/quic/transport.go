// Package quic implements the push channel on a bidirectional QUIC stream
// carrying newline terminated JSON frames.
package quic

import (
	"context"
	"crypto/tls"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/protocol"
)

// ALPN is the application protocol negotiated with the server.
const ALPN = "mapsync-events"

const (
	DefaultIdleTimeout = 30 * time.Second
	DefaultKeepAlive   = 15 * time.Second
)

var _ protocol.Transport = (*Transport)(nil)

type Transport struct {
	config protocol.Config
	logger log.Log
	life   *protocol.Lifecycle

	mu       sync.Mutex
	conn     *quic.Conn
	stream   *quic.Stream
	readDone chan struct{}

	writeMu sync.Mutex
}

func New(config protocol.Config, logger log.Log) *Transport {
	if logger == nil {
		logger = log.Provide()
	}
	return &Transport{
		config:   config,
		logger:   logger.With(log.String("transport", "quic")),
		life:     protocol.NewLifecycle(),
		readDone: make(chan struct{}),
	}
}

// address accepts either host:port or a quic://host:port URL.
func address(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Host
	}
	return raw
}

func (t *Transport) Connect(ctx context.Context, sink protocol.Sink) error {
	if t.life.Ended() {
		return protocol.ErrClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return protocol.ErrAlreadyConnected
	}

	if t.config.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.HandshakeTimeout)
		defer cancel()
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: t.config.InsecureSkipVerify,
		NextProtos:         []string{ALPN},
		MinVersion:         tls.VersionTLS13,
	}
	quicConfig := &quic.Config{
		MaxIdleTimeout:  DefaultIdleTimeout,
		KeepAlivePeriod: DefaultKeepAlive,
	}
	addr := address(t.config.URL)
	conn, err := quic.DialAddr(ctx, addr, tlsConfig, quicConfig)
	if err != nil {
		return errors.Wrapf(err, "dial %s", addr)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "open stream failed")
		return errors.Wrap(err, "open stream")
	}

	t.conn, t.stream = conn, stream
	t.logger.Info("Connected to push channel", log.String("addr", addr))
	go t.readLoop(stream, sink)
	return nil
}

func (t *Transport) readLoop(stream *quic.Stream, sink protocol.Sink) {
	defer close(t.readDone)
	fr := protocol.NewFrameReader(stream, t.config.MaxFrameSize)
	for {
		frame, err := fr.ReadFrame()
		if err != nil {
			if t.life.Ended() {
				return
			}
			t.logger.Warn("Push channel read failed", log.Error(err))
			t.life.End(errors.Wrap(err, "read frame"))
			_ = t.conn.CloseWithError(0, "read failed")
			return
		}
		sink(frame)
	}
}

func (t *Transport) Send(ctx context.Context, frame []byte) error {
	t.mu.Lock()
	stream := t.stream
	t.mu.Unlock()
	if stream == nil {
		return protocol.ErrNotConnected
	}
	if t.life.Ended() {
		return protocol.ErrClosed
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if d, ok := ctx.Deadline(); ok {
		_ = stream.SetWriteDeadline(d)
	} else if t.config.WriteTimeout > 0 {
		_ = stream.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
	}
	return protocol.WriteFrame(stream, frame)
}

func (t *Transport) Close() error {
	t.mu.Lock()
	conn, stream := t.conn, t.stream
	t.mu.Unlock()

	if !t.life.End(nil) {
		return nil
	}
	if conn == nil {
		return nil
	}
	t.writeMu.Lock()
	_ = stream.Close()
	t.writeMu.Unlock()
	err := conn.CloseWithError(0, "client closing")
	<-t.readDone
	t.logger.Info("Push channel closed")
	return errors.Wrap(err, "close quic connection")
}

func (t *Transport) Done() <-chan struct{} { return t.life.Done() }
func (t *Transport) Err() error            { return t.life.Err() }
