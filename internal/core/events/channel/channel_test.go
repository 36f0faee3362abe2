package channel

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/mapsync/internal/core/loop"
	"github.com/zeusync/mapsync/internal/core/models"
	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/protocol"
)

type fakeTransport struct {
	life *protocol.Lifecycle

	mu      sync.Mutex
	sink    protocol.Sink
	sent    [][]byte
	closes  int
	dialErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{life: protocol.NewLifecycle()}
}

func (f *fakeTransport) Connect(_ context.Context, sink protocol.Sink) error {
	if f.dialErr != nil {
		return f.dialErr
	}
	f.mu.Lock()
	f.sink = sink
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Send(_ context.Context, frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	f.life.End(nil)
	return nil
}

func (f *fakeTransport) Done() <-chan struct{} { return f.life.Done() }
func (f *fakeTransport) Err() error            { return f.life.Err() }

func (f *fakeTransport) push(frame string) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	sink([]byte(frame))
}

func newTestChannel(t *testing.T) (*Channel, *fakeTransport, *loop.Manual) {
	t.Helper()
	sched := loop.NewManual(time.Unix(0, 0))
	tr := newFakeTransport()
	c := New(sched, tr, log.NewNop())
	require.NoError(t, c.Connect(context.Background()))
	return c, tr, sched
}

func TestChannel_RoutesByEventType(t *testing.T) {
	c, tr, sched := newTestChannel(t)

	var taken []ObjectiveTaken
	var pawns []ServerPawns
	_, err := Listen(c, TypeObjectiveTaken, func(ev ObjectiveTaken) { taken = append(taken, ev) })
	require.NoError(t, err)
	_, err = Listen(c, TypeServerPawns, func(ev ServerPawns) { pawns = append(pawns, ev) })
	require.NoError(t, err)

	tr.push(`{"eventType":"ObjectiveTaken","objectiveId":3,"factionId":2}`)
	tr.push(`{"eventType":"ServerPawns","serverId":7,"pawns":[{"id":1,"x":1,"y":2,"factionId":2,"serverId":7}]}`)
	tr.push(`{"eventType":"Weather","rain":true}`)

	assert.Empty(t, taken, "delivery happens on the loop")
	sched.Drain()

	require.Len(t, taken, 1)
	assert.Equal(t, ObjectiveTaken{ObjectiveID: 3, FactionID: 2}, taken[0])
	require.Len(t, pawns, 1)
	assert.Equal(t, models.ID(7), pawns[0].ServerID)
	assert.Equal(t, models.ID(1), pawns[0].Pawns[0].ID)

	stats := c.Stats()
	assert.Equal(t, uint64(3), stats.Received)
	assert.Equal(t, uint64(2), stats.Delivered)
	assert.Equal(t, uint64(1), stats.Dropped)
}

func TestChannel_PreservesArrivalOrder(t *testing.T) {
	c, tr, sched := newTestChannel(t)

	var order []models.ID
	_, err := Listen(c, TypeServerPawns, func(ev ServerPawns) { order = append(order, ev.ServerID) })
	require.NoError(t, err)

	for _, id := range []string{"1", "2", "1", "3"} {
		tr.push(`{"eventType":"ServerPawns","serverId":` + id + `,"pawns":[]}`)
	}
	sched.Drain()
	assert.Equal(t, []models.ID{1, 2, 1, 3}, order)
}

func TestChannel_SingleListenerPerType(t *testing.T) {
	c, _, _ := newTestChannel(t)

	sub, err := c.Subscribe(TypeObjectiveTaken, func([]byte) {})
	require.NoError(t, err)
	_, err = c.Subscribe(TypeObjectiveTaken, func([]byte) {})
	assert.ErrorIs(t, err, ErrAlreadySubscribed)

	_, err = c.Subscribe("", func([]byte) {})
	assert.ErrorIs(t, err, ErrEmptyEventType)

	require.NoError(t, sub.Cancel())
	require.NoError(t, sub.Cancel())
	assert.False(t, sub.IsActive())
	assert.False(t, c.Listening(TypeObjectiveTaken))

	_, err = c.Subscribe(TypeObjectiveTaken, func([]byte) {})
	assert.NoError(t, err)
}

func TestChannel_MalformedPayloadIsContained(t *testing.T) {
	c, tr, sched := newTestChannel(t)

	var taken []ObjectiveTaken
	_, err := Listen(c, TypeObjectiveTaken, func(ev ObjectiveTaken) { taken = append(taken, ev) })
	require.NoError(t, err)
	_, err = c.Subscribe("Boom", func([]byte) { panic("listener bug") })
	require.NoError(t, err)

	tr.push(`not json`)
	tr.push(`{"objectiveId":1}`)
	tr.push(`{"eventType":"ObjectiveTaken","objectiveId":"three"}`)
	tr.push(`{"eventType":"Boom"}`)
	tr.push(`{"eventType":"ObjectiveTaken","objectiveId":4,"factionId":1}`)
	sched.Drain()

	require.Len(t, taken, 1)
	assert.Equal(t, models.ID(4), taken[0].ObjectiveID)

	stats := c.Stats()
	assert.Equal(t, uint64(3), stats.Malformed)
	assert.Equal(t, uint64(1), stats.Failed)
}

func TestChannel_MissingFieldsAreMalformed(t *testing.T) {
	c, tr, sched := newTestChannel(t)

	var taken []ObjectiveTaken
	var pawns []ServerPawns
	_, err := Listen(c, TypeObjectiveTaken, func(ev ObjectiveTaken) { taken = append(taken, ev) })
	require.NoError(t, err)
	_, err = Listen(c, TypeServerPawns, func(ev ServerPawns) { pawns = append(pawns, ev) })
	require.NoError(t, err)

	tr.push(`{"eventType":"ObjectiveTaken","objectiveId":1}`)
	tr.push(`{"eventType":"ObjectiveTaken","factionId":2}`)
	tr.push(`{"eventType":"ServerPawns","serverId":9}`)
	tr.push(`{"eventType":"ServerPawns","serverId":9,"pawns":null}`)
	tr.push(`{"eventType":"ServerPawns","pawns":[]}`)
	tr.push(`{"eventType":"ServerPawns","serverId":9,"pawns":[]}`)
	tr.push(`{"eventType":"ObjectiveTaken","objectiveId":1,"factionId":0}`)
	sched.Drain()

	require.Len(t, pawns, 1)
	assert.Equal(t, models.ID(9), pawns[0].ServerID)
	assert.Empty(t, pawns[0].Pawns)
	require.Len(t, taken, 1)
	assert.Equal(t, ObjectiveTaken{ObjectiveID: 1, FactionID: 0}, taken[0])

	stats := c.Stats()
	assert.Equal(t, uint64(5), stats.Malformed)
}

func TestObjectiveTaken_Unmarshal(t *testing.T) {
	var ev ObjectiveTaken
	require.NoError(t, json.Unmarshal([]byte(`{"objectiveId":5,"factionId":3}`), &ev))
	assert.Equal(t, ObjectiveTaken{ObjectiveID: 5, FactionID: 3}, ev)

	err := json.Unmarshal([]byte(`{"objectiveId":5}`), &ev)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestChannel_UnsubscribeDropsQueuedFrames(t *testing.T) {
	c, tr, sched := newTestChannel(t)

	calls := 0
	sub, err := c.Subscribe(TypeServerPawns, func([]byte) { calls++ })
	require.NoError(t, err)

	tr.push(`{"eventType":"ServerPawns","serverId":1,"pawns":[]}`)
	c.UnsubscribeAll()
	sched.Drain()

	assert.Zero(t, calls)
	assert.False(t, sub.IsActive())
}

func TestChannel_Publish(t *testing.T) {
	c, tr, _ := newTestChannel(t)

	require.NoError(t, c.Publish(context.Background(), "PlayerPing", map[string]any{"x": 1.5}))
	require.NoError(t, c.Publish(context.Background(), "Heartbeat", nil))
	assert.Error(t, c.Publish(context.Background(), "Bad", []int{1}))
	assert.ErrorIs(t, c.Publish(context.Background(), "", nil), ErrEmptyEventType)

	require.Len(t, tr.sent, 2)
	var first map[string]any
	require.NoError(t, json.Unmarshal(tr.sent[0], &first))
	assert.Equal(t, map[string]any{"eventType": "PlayerPing", "x": 1.5}, first)
	assert.JSONEq(t, `{"eventType":"Heartbeat"}`, string(tr.sent[1]))
	assert.Equal(t, uint64(2), c.Stats().Published)
}

func TestChannel_Close(t *testing.T) {
	c, tr, _ := newTestChannel(t)
	assert.True(t, c.Connected())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, tr.closes)
	assert.False(t, c.Connected())
	<-c.Done()

	_, err := c.Subscribe(TypeObjectiveTaken, func([]byte) {})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClosed)
}

func TestChannel_ConnectFailure(t *testing.T) {
	tr := newFakeTransport()
	tr.dialErr = protocol.ErrClosed
	c := New(loop.NewManual(time.Unix(0, 0)), tr, log.NewNop())

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, protocol.ErrClosed)
	assert.False(t, c.Connected())
}
