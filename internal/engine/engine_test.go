package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/mapsync/internal/core/events/channel"
	"github.com/zeusync/mapsync/internal/core/loop"
	"github.com/zeusync/mapsync/internal/core/models"
	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/protocol"
	"github.com/zeusync/mapsync/internal/core/reconcile"
	"github.com/zeusync/mapsync/internal/core/render"
	"github.com/zeusync/mapsync/internal/core/storage"
	"github.com/zeusync/mapsync/internal/core/store"
	"github.com/zeusync/mapsync/internal/core/viewport"
)

const waitFor = 3 * time.Second

type fakeLister struct {
	mu   sync.Mutex
	snap store.Snapshot
	err  error
}

func (f *fakeLister) get() (store.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap, f.err
}

func (f *fakeLister) set(fn func(s *store.Snapshot)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.snap)
}

func (f *fakeLister) Regions(context.Context) ([]models.Region, error) {
	s, err := f.get()
	return s.Regions, err
}

func (f *fakeLister) Areas(context.Context) ([]models.Area, error) {
	s, err := f.get()
	return s.Areas, err
}

func (f *fakeLister) Objectives(context.Context) ([]models.Objective, error) {
	s, err := f.get()
	return s.Objectives, err
}

func (f *fakeLister) Factions(context.Context) ([]models.Faction, error) {
	s, err := f.get()
	return s.Factions, err
}

func (f *fakeLister) Servers(context.Context) ([]models.Server, error) {
	s, err := f.get()
	return s.Servers, err
}

func (f *fakeLister) Pawns(context.Context) ([]models.Pawn, error) {
	s, err := f.get()
	return s.Pawns, err
}

type fakeTransport struct {
	life *protocol.Lifecycle

	mu      sync.Mutex
	sink    protocol.Sink
	closes  int
	dialErr error
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

func (f *fakeTransport) Send(context.Context, []byte) error { return nil }

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
	if sink != nil {
		sink([]byte(frame))
	}
}

type recordingExtension struct {
	mounts, unmounts int
	sub              channel.Subscription
	seen             []string
}

func (r *recordingExtension) Name() string { return "recording" }

func (r *recordingExtension) Mount(host Host) error {
	r.mounts++
	sub, err := host.Channel().Subscribe("Ping", func(frame []byte) { r.seen = append(r.seen, string(frame)) })
	r.sub = sub
	return err
}

func (r *recordingExtension) Unmount() {
	r.unmounts++
	_ = r.sub.Cancel()
}

type fakeJoiner struct {
	reqs chan storage.JoinRequest
}

func (f *fakeJoiner) Join(_ context.Context, req storage.JoinRequest) (models.Destination, error) {
	f.reqs <- req
	return models.Destination{IP: "1.2.3.4", Port: 7777, MapName: "valley"}, nil
}

type nopDrawer struct{}

func (nopDrawer) Draw(render.Frame) error { return nil }

type harness struct {
	engine    *Engine
	lister    *fakeLister
	transport *fakeTransport
	loop      *loop.Loop
	ext       *recordingExtension
	joiner    *fakeJoiner
	launched  chan models.Destination
}

func scenario() store.Snapshot {
	return store.Snapshot{
		Regions: []models.Region{{ID: 1, Name: "North", X: 0, Y: 40}},
		Areas: []models.Area{
			{ID: 5, Name: "Valley", X: 0, Y: 0, SizeX: 100, SizeY: 100},
		},
		Objectives: []models.Objective{
			{ID: 1, Name: "Mill", X: 0, Y: 0, LinkedObjectiveIDs: []models.ID{2}},
			{ID: 2, Name: "Bridge", X: 20, Y: 20, LinkedObjectiveIDs: []models.ID{1}},
		},
		Factions: []models.Faction{{ID: 1, Name: "Red", Color: "red"}},
		Servers: []models.Server{
			{ID: 9, Name: "eu-1", X: 10, Y: -10, AreaIDs: []models.ID{5}, PublicIP: "1.2.3.4"},
		},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		lister:    &fakeLister{snap: scenario()},
		transport: &fakeTransport{life: protocol.NewLifecycle()},
		loop:      loop.New(loop.Config{FrameInterval: time.Millisecond}, nil),
		ext:       &recordingExtension{},
		joiner:    &fakeJoiner{reqs: make(chan storage.JoinRequest, 1)},
		launched:  make(chan models.Destination, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.loop.Run(ctx) }()
	t.Cleanup(cancel)

	logger := log.NewNop()
	st := store.New(logger)
	view := viewport.New(viewport.DefaultConfig())
	surface := render.NewSurface(h.loop, view, nopDrawer{}, logger)
	rec, err := reconcile.New(st, surface, reconcile.DefaultConfig(), logger)
	require.NoError(t, err)
	ch := channel.New(h.loop, h.transport, logger)

	h.engine = New(h.loop, h.lister, st, view, surface, rec, ch, Options{
		Joiner: h.joiner,
		Launcher: LauncherFunc(func(_ context.Context, _ models.Server, dest models.Destination) error {
			h.launched <- dest
			return nil
		}),
		Extensions: []Extension{h.ext},
	}, logger)
	return h
}

func (h *harness) status(t *testing.T) Status {
	t.Helper()
	st, err := h.engine.Status(context.Background())
	require.NoError(t, err)
	return st
}

func (h *harness) onLoop(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, loop.Call(context.Background(), h.loop, fn))
}

func TestEngine_MountPlacesMap(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Mount(context.Background()))
	assert.ErrorIs(t, h.engine.Mount(context.Background()), ErrAlreadyMounted)

	st := h.status(t)
	assert.True(t, st.Mounted)
	assert.True(t, st.Connected)
	assert.True(t, st.Viewport.Ready)
	assert.InDelta(t, 1000.0/108*0.9, st.Viewport.Scale, 1e-9)
	assert.Equal(t, map[string]int{
		"terrain":   1,
		"region":    1,
		"area":      1,
		"link":      1,
		"objective": 2,
		"server":    1,
	}, st.Handles)
	assert.Equal(t, []string{"recording"}, st.Extensions)
	assert.Equal(t, 1, h.ext.mounts)

	assert.Eventually(t, func() bool { return h.status(t).Draws > 0 }, waitFor, 5*time.Millisecond)
}

func TestEngine_LiveEvents(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Mount(context.Background()))

	h.transport.push(`{"eventType":"ObjectiveTaken","objectiveId":1,"factionId":1}`)
	h.transport.push(`{"eventType":"ObjectiveTaken","objectiveId":99,"factionId":1}`)
	h.transport.push(`{"eventType":"ServerPawns","serverId":9,"pawns":[{"id":3,"name":"bot","x":5,"y":5,"factionId":1,"serverId":9}]}`)
	h.transport.push(`{"eventType":"Ping","n":1}`)

	assert.Eventually(t, func() bool {
		st := h.status(t)
		return st.Handles["pawn"] == 1 && st.Reconcile.Recolored == 1
	}, waitFor, 5*time.Millisecond)

	h.onLoop(t, func() {
		obj, ok := h.engine.Store().Objective(1)
		require.True(t, ok)
		require.NotNil(t, obj.FactionID)
		assert.Equal(t, models.ID(1), *obj.FactionID)
		assert.Equal(t, []string{`{"eventType":"Ping","n":1}`}, h.ext.seen)
	})

	h.transport.push(`{"eventType":"ServerPawns","serverId":9,"pawns":[]}`)
	assert.Eventually(t, func() bool { return h.status(t).Handles["pawn"] == 0 }, waitFor, 5*time.Millisecond)
}

func TestEngine_IncompleteEventsLeaveMapAlone(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Mount(context.Background()))

	h.transport.push(`{"eventType":"ObjectiveTaken","objectiveId":1,"factionId":1}`)
	h.transport.push(`{"eventType":"ServerPawns","serverId":9,"pawns":[{"id":3,"x":5,"y":5,"factionId":1,"serverId":9}]}`)
	assert.Eventually(t, func() bool { return h.status(t).Handles["pawn"] == 1 }, waitFor, 5*time.Millisecond)

	h.transport.push(`{"eventType":"ServerPawns","serverId":9}`)
	h.transport.push(`{"eventType":"ObjectiveTaken","objectiveId":1}`)
	assert.Eventually(t, func() bool { return h.status(t).Channel.Malformed == 2 }, waitFor, 5*time.Millisecond)

	st := h.status(t)
	assert.Equal(t, 1, st.Handles["pawn"])
	assert.Equal(t, 1, st.Reconcile.Recolored)
	h.onLoop(t, func() {
		obj, ok := h.engine.Store().Objective(1)
		require.True(t, ok)
		require.NotNil(t, obj.FactionID)
		assert.Equal(t, models.ID(1), *obj.FactionID)
		assert.Len(t, h.engine.Store().Pawns(9), 1)
	})
}

func TestEngine_UnmountTearsDown(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Mount(context.Background()))
	h.transport.push(`{"eventType":"ServerPawns","serverId":9,"pawns":[{"id":3,"x":5,"y":5,"factionId":1,"serverId":9}]}`)

	require.NoError(t, h.engine.Unmount(context.Background()))
	assert.ErrorIs(t, h.engine.Unmount(context.Background()), ErrNotMounted)
	assert.ErrorIs(t, h.engine.Mount(context.Background()), ErrTornDown)
	assert.ErrorIs(t, h.engine.Refresh(context.Background()), ErrNotMounted)

	assert.Equal(t, 1, h.transport.closes)
	assert.Equal(t, 1, h.ext.unmounts)

	// Late frames find no listener.
	h.transport.push(`{"eventType":"ServerPawns","serverId":9,"pawns":[{"id":4,"x":1,"y":1,"factionId":1,"serverId":9}]}`)

	st := h.status(t)
	assert.False(t, st.Mounted)
	assert.False(t, st.Connected)
	assert.Empty(t, st.Handles)
	assert.Equal(t, store.Counts{}, st.Entities)
	h.onLoop(t, func() { assert.True(t, h.engine.Surface().Disposed()) })
}

func TestEngine_FetchFailureLeavesEngineMountable(t *testing.T) {
	h := newHarness(t)
	h.lister.err = errors.New("catalog down")

	err := h.engine.Mount(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog down")
	assert.False(t, h.engine.Mounted())

	h.lister.err = nil
	require.NoError(t, h.engine.Mount(context.Background()))
}

func TestEngine_MountAbandonedBeforePlacement(t *testing.T) {
	sched := loop.NewManual(time.Unix(0, 0))
	logger := log.NewNop()
	st := store.New(logger)
	view := viewport.New(viewport.DefaultConfig())
	surface := render.NewSurface(sched, view, nopDrawer{}, logger)
	rec, err := reconcile.New(st, surface, reconcile.DefaultConfig(), logger)
	require.NoError(t, err)
	transport := &fakeTransport{life: protocol.NewLifecycle()}
	e := New(sched, &fakeLister{snap: scenario()}, st, view, surface, rec, channel.New(sched, transport, logger), Options{}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, e.Mount(ctx), context.DeadlineExceeded)
	assert.False(t, e.Mounted())

	// The queued placement task runs late and must not place anything.
	sched.Drain()
	assert.Zero(t, surface.Count(render.KindArea))
	assert.Equal(t, store.Counts{}, st.Counts())
	assert.False(t, e.Mounted())

	done := make(chan error, 1)
	go func() { done <- e.Mount(context.Background()) }()
	require.Eventually(t, func() bool {
		sched.Drain()
		select {
		case err = <-done:
			return true
		default:
			return false
		}
	}, waitFor, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, e.Mounted())
	assert.Equal(t, 1, surface.Count(render.KindArea))
}

func TestEngine_ConnectFailureKeepsMap(t *testing.T) {
	h := newHarness(t)
	h.transport.dialErr = protocol.ErrClosed

	err := h.engine.Mount(context.Background())
	assert.ErrorIs(t, err, protocol.ErrClosed)
	assert.True(t, h.engine.Mounted())

	st := h.status(t)
	assert.False(t, st.Connected)
	assert.Equal(t, 2, st.Handles["objective"])
	require.NoError(t, h.engine.Unmount(context.Background()))
}

func TestEngine_RefreshKeepsPawnsAndUserView(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Mount(context.Background()))
	h.transport.push(`{"eventType":"ServerPawns","serverId":9,"pawns":[{"id":3,"x":5,"y":5,"factionId":1,"serverId":9}]}`)
	assert.Eventually(t, func() bool { return h.status(t).Handles["pawn"] == 1 }, waitFor, 5*time.Millisecond)

	h.onLoop(t, func() { h.engine.Wheel(-100) })
	zoomed := h.status(t).Viewport.Scale

	h.lister.set(func(s *store.Snapshot) {
		s.Regions = append(s.Regions, models.Region{ID: 2, Name: "South", X: 0, Y: -40})
	})
	require.NoError(t, h.engine.Refresh(context.Background()))

	st := h.status(t)
	assert.Equal(t, 2, st.Handles["region"])
	assert.Equal(t, 1, st.Handles["pawn"])
	assert.Equal(t, zoomed, st.Viewport.Scale)
}

func TestEngine_DoubleClickJoinsServer(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.Mount(context.Background()))

	var at viewport.Point
	h.onLoop(t, func() { at = h.engine.View().WorldToScreen(viewport.Point{X: 10, Y: -10}) })
	h.onLoop(t, func() { h.engine.DoubleClick(at.X, at.Y) })

	select {
	case req := <-h.joiner.reqs:
		assert.Equal(t, models.ID(9), req.ServerID)
		require.NotNil(t, req.AreaID)
		assert.Equal(t, models.ID(5), *req.AreaID)
	case <-time.After(waitFor):
		t.Fatal("join not requested")
	}
	select {
	case dest := <-h.launched:
		assert.Equal(t, "valley", dest.MapName)
	case <-time.After(waitFor):
		t.Fatal("destination not launched")
	}
}

func TestEngine_RefreshFitsLateViewport(t *testing.T) {
	h := newHarness(t)
	h.lister.set(func(s *store.Snapshot) { s.Areas = nil })
	require.NoError(t, h.engine.Mount(context.Background()))
	assert.False(t, h.status(t).Viewport.Ready)

	h.lister.set(func(s *store.Snapshot) { s.Areas = scenario().Areas })
	require.NoError(t, h.engine.Refresh(context.Background()))
	h.onLoop(t, func() { h.engine.Resize(500, 500) })

	st := h.status(t)
	assert.True(t, st.Viewport.Ready)
	assert.Equal(t, 500.0, st.Viewport.Width)
	assert.Equal(t, 1, st.Handles["terrain"])
}

func TestEngine_Quit(t *testing.T) {
	h := newHarness(t)
	quit := false
	h.engine.options.OnQuit = func() { quit = true }
	h.engine.Quit()
	assert.True(t, quit)
}
