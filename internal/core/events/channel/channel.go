// Package channel routes decoded push events to one listener per event type
// and publishes engine originated events over the same transport.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/zeusync/mapsync/internal/core/loop"
	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/protocol"
)

// Handler receives the raw frame of one event. It runs on the loop.
type Handler func(frame []byte)

// Subscription is a registered listener. Cancel releases it; multiple calls
// are safe.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	Cancel() error
}

type subscription struct {
	id        string
	eventType string
	handler   Handler
	active    atomic.Bool
	cancel    func()
}

func (s *subscription) ID() string        { return s.id }
func (s *subscription) EventType() string { return s.eventType }
func (s *subscription) IsActive() bool    { return s.active.Load() }
func (s *subscription) Cancel() error {
	if s.active.CompareAndSwap(true, false) && s.cancel != nil {
		s.cancel()
	}
	return nil
}

// Stats counts frames by outcome.
type Stats struct {
	Received  uint64 `json:"received"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Malformed uint64 `json:"malformed"`
	Failed    uint64 `json:"failed"`
	Published uint64 `json:"published"`
}

type Channel struct {
	sched     loop.Scheduler
	transport protocol.Transport
	logger    log.Log

	mu        sync.RWMutex
	listeners map[string]*subscription
	closed    bool

	connected atomic.Bool

	received  atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	malformed atomic.Uint64
	failed    atomic.Uint64
	published atomic.Uint64
}

func New(sched loop.Scheduler, transport protocol.Transport, logger log.Log) *Channel {
	if logger == nil {
		logger = log.Provide()
	}
	return &Channel{
		sched:     sched,
		transport: transport,
		logger:    logger.With(log.String("component", "channel")),
		listeners: make(map[string]*subscription),
	}
}

// Subscribe registers the single listener for eventType.
func (c *Channel) Subscribe(eventType string, handler Handler) (Subscription, error) {
	if eventType == "" {
		return nil, ErrEmptyEventType
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if _, ok := c.listeners[eventType]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySubscribed, eventType)
	}

	s := &subscription{id: uuid.NewString(), eventType: eventType, handler: handler}
	s.active.Store(true)
	s.cancel = func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if cur, ok := c.listeners[eventType]; ok && cur == s {
			delete(c.listeners, eventType)
		}
	}
	c.listeners[eventType] = s
	c.logger.Debug("Listener registered", log.String("event_type", eventType), log.String("subscription", s.id))
	return s, nil
}

// Listen subscribes fn to eventType, decoding each frame into T. Frames that
// do not decode, or whose payload fails Validate, are logged and skipped.
func Listen[T any](c *Channel, eventType string, fn func(T)) (Subscription, error) {
	return c.Subscribe(eventType, func(frame []byte) {
		var payload T
		err := json.Unmarshal(frame, &payload)
		if v, ok := any(&payload).(Validator); ok && err == nil {
			err = v.Validate()
		}
		if err != nil {
			c.malformed.Add(1)
			c.logger.Warn("Malformed event payload", log.String("event_type", eventType), log.Error(err))
			return
		}
		fn(payload)
	})
}

// Unsubscribe cancels sub. Nil is ignored.
func (c *Channel) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	return sub.Cancel()
}

// UnsubscribeAll releases every listener.
func (c *Channel) UnsubscribeAll() {
	c.mu.Lock()
	subs := make([]*subscription, 0, len(c.listeners))
	for _, s := range c.listeners {
		subs = append(subs, s)
	}
	c.listeners = make(map[string]*subscription)
	c.mu.Unlock()

	for _, s := range subs {
		s.active.Store(false)
	}
}

// Listening reports whether eventType has a listener.
func (c *Channel) Listening(eventType string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.listeners[eventType]
	return ok
}

// Connect opens the transport. Frames are routed from then on.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if err := c.transport.Connect(ctx, c.receive); err != nil {
		return errors.Wrap(err, "connect push channel")
	}
	c.connected.Store(true)
	go func() {
		<-c.transport.Done()
		c.connected.Store(false)
		if err := c.transport.Err(); err != nil {
			c.logger.Warn("Push channel lost", log.Error(err))
		}
	}()
	return nil
}

func (c *Channel) Connected() bool { return c.connected.Load() }

// Done is closed when the underlying transport ends.
func (c *Channel) Done() <-chan struct{} { return c.transport.Done() }

// Close closes the transport. Listeners must be released first with
// UnsubscribeAll; frames still queued on the loop find no listener and are
// dropped.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.connected.Store(false)
	return c.transport.Close()
}

// receive runs on the transport reader goroutine.
func (c *Channel) receive(frame []byte) {
	c.received.Add(1)

	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.EventType == "" {
		c.malformed.Add(1)
		c.logger.Warn("Dropping frame without event type", log.Int("bytes", len(frame)), log.Error(err))
		return
	}

	if !c.sched.Post(func() { c.dispatch(env.EventType, frame) }) {
		c.dropped.Add(1)
	}
}

func (c *Channel) dispatch(eventType string, frame []byte) {
	c.mu.RLock()
	s, ok := c.listeners[eventType]
	c.mu.RUnlock()
	if !ok || !s.IsActive() {
		c.dropped.Add(1)
		c.logger.Debug("No listener for event", log.String("event_type", eventType))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.failed.Add(1)
			c.logger.Error("Event listener panicked", log.String("event_type", eventType), log.Any("panic", r))
		}
	}()
	s.handler(frame)
	c.delivered.Add(1)
}

// Publish sends payload as an event of eventType. payload must encode to a
// JSON object or be nil; its fields are placed beside eventType.
func (c *Channel) Publish(ctx context.Context, eventType string, payload any) error {
	if eventType == "" {
		return ErrEmptyEventType
	}
	frame, err := encode(eventType, payload)
	if err != nil {
		return err
	}
	if err = c.transport.Send(ctx, frame); err != nil {
		return errors.Wrapf(err, "publish %s", eventType)
	}
	c.published.Add(1)
	return nil
}

func encode(eventType string, payload any) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "encode payload")
		}
		if err = json.Unmarshal(raw, &fields); err != nil {
			return nil, errors.Wrap(err, "payload is not a JSON object")
		}
		if fields == nil {
			fields = map[string]json.RawMessage{}
		}
	}
	typ, _ := json.Marshal(eventType)
	fields["eventType"] = typ
	return json.Marshal(fields)
}

func (c *Channel) Stats() Stats {
	return Stats{
		Received:  c.received.Load(),
		Delivered: c.delivered.Load(),
		Dropped:   c.dropped.Load(),
		Malformed: c.malformed.Load(),
		Failed:    c.failed.Load(),
		Published: c.published.Load(),
	}
}
