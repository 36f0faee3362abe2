// Package nats implements the push channel on a NATS subject.
package nats

import (
	"context"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/protocol"
)

var _ protocol.Transport = (*Transport)(nil)

// Transport receives frames published on Config.Subject and publishes
// outbound frames on Config.PublishSubject.
type Transport struct {
	config protocol.Config
	logger log.Log
	life   *protocol.Lifecycle

	mu   sync.Mutex
	conn *nats.Conn
	sub  *nats.Subscription
}

func New(config protocol.Config, logger log.Log) *Transport {
	if logger == nil {
		logger = log.Provide()
	}
	if config.PublishSubject == "" {
		config.PublishSubject = config.Subject
	}
	return &Transport{
		config: config,
		logger: logger.With(log.String("transport", "nats"), log.String("subject", config.Subject)),
		life:   protocol.NewLifecycle(),
	}
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

	opts := []nats.Option{
		nats.Name("mapsync"),
		nats.ClosedHandler(func(c *nats.Conn) {
			t.life.End(c.LastError())
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				t.logger.Warn("Push channel disconnected", log.Error(err))
			}
		}),
	}
	if t.config.HandshakeTimeout > 0 {
		opts = append(opts, nats.Timeout(t.config.HandshakeTimeout))
	}

	conn, err := nats.Connect(t.config.URL, opts...)
	if err != nil {
		return errors.Wrapf(err, "connect %s", t.config.URL)
	}

	// nats delivers messages of one subscription sequentially
	sub, err := conn.Subscribe(t.config.Subject, func(msg *nats.Msg) {
		sink(msg.Data)
	})
	if err != nil {
		conn.Close()
		return errors.Wrapf(err, "subscribe %s", t.config.Subject)
	}
	if err := conn.FlushWithContext(ctx); err != nil {
		conn.Close()
		return errors.Wrap(err, "flush subscription")
	}

	t.conn, t.sub = conn, sub
	t.logger.Info("Connected to push channel", log.String("url", t.config.URL))
	return nil
}

func (t *Transport) Send(ctx context.Context, frame []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return protocol.ErrNotConnected
	}
	if t.life.Ended() {
		return protocol.ErrClosed
	}
	if err := conn.Publish(t.config.PublishSubject, frame); err != nil {
		return errors.Wrapf(err, "publish %s", t.config.PublishSubject)
	}
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	conn, sub := t.conn, t.sub
	t.mu.Unlock()

	if !t.life.End(nil) {
		return nil
	}
	if conn == nil {
		return nil
	}
	var err error
	if sub != nil {
		err = sub.Unsubscribe()
	}
	conn.Close()
	t.logger.Info("Push channel closed")
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return errors.Wrap(err, "unsubscribe")
	}
	return nil
}

func (t *Transport) Done() <-chan struct{} { return t.life.Done() }
func (t *Transport) Err() error            { return t.life.Err() }
