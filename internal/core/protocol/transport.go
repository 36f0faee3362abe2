// Package protocol defines the push channel transport contract shared by the
// websocket, NATS and QUIC implementations.
package protocol

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Sink receives inbound frames in arrival order. It is called from the
// transport's reader goroutine and must not block for long.
type Sink func(frame []byte)

// Transport is a persistent bidirectional frame channel.
type Transport interface {
	// Connect performs the handshake and starts delivering frames to sink.
	Connect(ctx context.Context, sink Sink) error
	// Send writes one frame. Safe for concurrent use.
	Send(ctx context.Context, frame []byte) error
	// Close ends the connection. Multiple calls are safe.
	Close() error
	// Done is closed once the connection has ended for any reason.
	Done() <-chan struct{}
	// Err reports why the connection ended, or nil after a clean Close.
	Err() error
}

type Kind string

const (
	KindWebSocket Kind = "websocket"
	KindNATS      Kind = "nats"
	KindQUIC      Kind = "quic"
)

// Config holds transport settings. Not every field applies to every kind.
type Config struct {
	Kind Kind
	URL  string
	// Subject is the NATS subject events are received on. PublishSubject is
	// where outbound frames go; it defaults to Subject.
	Subject        string
	PublishSubject string
	Headers        http.Header

	InsecureSkipVerify bool
	HandshakeTimeout   time.Duration
	WriteTimeout       time.Duration
	MaxFrameSize       int
}

func DefaultConfig() Config {
	return Config{
		Kind:             KindWebSocket,
		URL:              "ws://localhost:8080/ws",
		Subject:          "mapsync.events",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		MaxFrameSize:     1 << 20,
	}
}

// Lifecycle tracks the end of a connection. Implementations embed it.
type Lifecycle struct {
	once sync.Once
	done chan struct{}
	mu   sync.Mutex
	err  error
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{done: make(chan struct{})}
}

// End marks the connection as ended with err. Only the first call counts.
func (l *Lifecycle) End(err error) bool {
	ended := false
	l.once.Do(func() {
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
		close(l.done)
		ended = true
	})
	return ended
}

func (l *Lifecycle) Done() <-chan struct{} { return l.done }

func (l *Lifecycle) Ended() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

func (l *Lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}
