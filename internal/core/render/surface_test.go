package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/mapsync/internal/core/loop"
	"github.com/zeusync/mapsync/internal/core/viewport"
)

type recordingDrawer struct {
	frames []Frame
	closed bool
}

func (d *recordingDrawer) Draw(frame Frame) error {
	d.frames = append(d.frames, frame)
	return nil
}

func (d *recordingDrawer) Close() error {
	d.closed = true
	return nil
}

const frameStep = 16 * time.Millisecond

func newTestSurface(t *testing.T) (*Surface, *loop.Manual, *recordingDrawer, *viewport.Controller) {
	t.Helper()
	sched := loop.NewManual(time.Unix(0, 0))
	view := viewport.New(viewport.DefaultConfig())
	require.True(t, view.Fit([]viewport.Extent{{X: 0, Y: 0, SizeX: 100, SizeY: 100}}))
	drawer := &recordingDrawer{}
	return NewSurface(sched, view, drawer, nil), sched, drawer, view
}

func TestSurface_CreateRejectsDuplicates(t *testing.T) {
	s, _, _, _ := newTestSurface(t)
	key := KeyOf(KindPawn, 1)

	require.NoError(t, s.Create(key, Props{Shape: ShapeCircle}))
	assert.ErrorIs(t, s.Create(key, Props{}), ErrHandleExists)
	assert.Equal(t, 1, s.Count(KindPawn))
}

func TestSurface_RedrawIsCoalesced(t *testing.T) {
	s, sched, drawer, _ := newTestSurface(t)

	for i := 0; i < 10; i++ {
		s.RequestRedraw()
	}
	require.NoError(t, s.Create(KeyOf(KindObjective, 1), Props{}))
	require.NoError(t, s.Create(KeyOf(KindObjective, 2), Props{}))

	sched.Advance(frameStep)
	assert.Len(t, drawer.frames, 1)
	assert.Equal(t, uint64(1), s.Draws())

	sched.Advance(frameStep)
	assert.Len(t, drawer.frames, 1, "nothing changed")
}

func TestSurface_DrawOrderFollowsLayers(t *testing.T) {
	s, sched, drawer, _ := newTestSurface(t)

	require.NoError(t, s.Create(KeyOf(KindServer, 1), Props{}))
	require.NoError(t, s.Create(KeyOf(KindPawn, 1), Props{}))
	require.NoError(t, s.Create(KeyOf(KindTerrain, 0), Props{}))
	require.NoError(t, s.Create(KeyOf(KindPawn, 2), Props{}))
	sched.Advance(frameStep)

	require.Len(t, drawer.frames, 1)
	var keys []Key
	for _, it := range drawer.frames[0].Items {
		keys = append(keys, it.Key)
	}
	assert.Equal(t, []Key{
		KeyOf(KindTerrain, 0),
		KeyOf(KindPawn, 1),
		KeyOf(KindPawn, 2),
		KeyOf(KindServer, 1),
	}, keys)
}

func TestSurface_AnimateReachesTargetAndCompletes(t *testing.T) {
	s, sched, _, _ := newTestSurface(t)
	key := KeyOf(KindPawn, 1)
	require.NoError(t, s.Create(key, Props{X: 0, Opacity: 1}))

	completed := 0
	started, err := s.Animate(key, Target{PropX: 10}, 100*time.Millisecond, EaseOutExpo, func() { completed++ })
	require.NoError(t, err)
	assert.True(t, started)

	sched.Advance(50 * time.Millisecond)
	mid, _ := s.Props(key)
	assert.Greater(t, mid.X, 5.0, "ease-out is past halfway at half time")
	assert.Less(t, mid.X, 10.0)
	assert.Zero(t, completed)

	sched.Settle(frameStep, 100)
	final, _ := s.Props(key)
	assert.Equal(t, 10.0, final.X)
	assert.Equal(t, 1, completed)
	assert.False(t, s.Animating(key))
}

func TestSurface_AnimateRedirectsInFlight(t *testing.T) {
	s, sched, _, _ := newTestSurface(t)
	key := KeyOf(KindPawn, 1)
	require.NoError(t, s.Create(key, Props{X: 0}))

	first := 0
	_, err := s.Animate(key, Target{PropX: 10}, time.Second, Linear, func() { first++ })
	require.NoError(t, err)
	sched.Advance(500 * time.Millisecond)

	second := 0
	_, err = s.Animate(key, Target{PropX: 20}, time.Second, Linear, func() { second++ })
	require.NoError(t, err)

	sched.Settle(frameStep, 200)
	final, _ := s.Props(key)
	assert.Equal(t, 20.0, final.X)
	assert.Zero(t, first, "superseded animation never completes")
	assert.Equal(t, 1, second)
}

func TestSurface_AnimateSameTargetIsNoop(t *testing.T) {
	s, sched, _, _ := newTestSurface(t)
	key := KeyOf(KindPawn, 1)
	require.NoError(t, s.Create(key, Props{X: 5}))

	started, err := s.Animate(key, Target{PropX: 5}, time.Second, Linear, nil)
	require.NoError(t, err)
	assert.False(t, started)
	assert.False(t, s.Animating(key))

	_, err = s.Animate(key, Target{PropX: 9}, time.Second, Linear, nil)
	require.NoError(t, err)
	sched.Advance(300 * time.Millisecond)
	before, _ := s.Props(key)

	started, err = s.Animate(key, Target{PropX: 9}, time.Second, Linear, nil)
	require.NoError(t, err)
	assert.False(t, started, "already heading to the target")

	sched.Advance(100 * time.Millisecond)
	after, _ := s.Props(key)
	assert.InDelta(t, before.X+0.4, after.X, 1e-9, "original timeline kept")
}

func TestSurface_JoinedCallbackRunsWithInFlightAnimation(t *testing.T) {
	s, sched, _, _ := newTestSurface(t)
	key := KeyOf(KindPawn, 1)
	require.NoError(t, s.Create(key, Props{Opacity: 1}))

	var calls []string
	_, err := s.Animate(key, Target{PropOpacity: 0}, time.Second, Linear, func() { calls = append(calls, "first") })
	require.NoError(t, err)
	_, err = s.Animate(key, Target{PropOpacity: 0}, time.Second, Linear, func() { calls = append(calls, "second") })
	require.NoError(t, err)

	sched.Settle(frameStep, 200)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestSurface_RemoveDropsCallbacks(t *testing.T) {
	s, sched, _, _ := newTestSurface(t)
	key := KeyOf(KindPawn, 1)
	require.NoError(t, s.Create(key, Props{Opacity: 1}))

	called := false
	_, err := s.Animate(key, Target{PropOpacity: 0}, time.Second, Linear, func() { called = true })
	require.NoError(t, err)
	require.NoError(t, s.Remove(key))

	sched.Settle(frameStep, 200)
	assert.False(t, called)
	assert.ErrorIs(t, s.Remove(key), ErrUnknownHandle)
}

func TestSurface_UpdateKeepsAnimatedProps(t *testing.T) {
	s, sched, _, _ := newTestSurface(t)
	key := KeyOf(KindPawn, 1)
	require.NoError(t, s.Create(key, Props{X: 0, Fill: "red"}))
	_, err := s.Animate(key, Target{PropX: 10}, time.Second, Linear, nil)
	require.NoError(t, err)

	require.NoError(t, s.Update(key, Props{X: 100, Fill: "blue"}))
	sched.Settle(frameStep, 200)

	p, _ := s.Props(key)
	assert.Equal(t, "blue", p.Fill)
	assert.Equal(t, 10.0, p.X)
}

func TestSurface_CancelAnimations(t *testing.T) {
	s, sched, _, _ := newTestSurface(t)
	key := KeyOf(KindPawn, 1)
	require.NoError(t, s.Create(key, Props{X: 0}))

	called := false
	_, err := s.Animate(key, Target{PropX: 10}, time.Second, Linear, func() { called = true })
	require.NoError(t, err)
	sched.Advance(500 * time.Millisecond)

	s.CancelAnimations()
	sched.Settle(frameStep, 200)
	p, _ := s.Props(key)
	assert.InDelta(t, 5.0, p.X, 1e-9)
	assert.False(t, called)
}

func TestSurface_Dispose(t *testing.T) {
	s, sched, drawer, _ := newTestSurface(t)
	key := KeyOf(KindPawn, 1)
	require.NoError(t, s.Create(key, Props{Opacity: 1}))

	called := false
	_, err := s.Animate(key, Target{PropOpacity: 0}, time.Second, Linear, func() { called = true })
	require.NoError(t, err)

	require.NoError(t, s.Dispose())
	assert.True(t, drawer.closed)
	assert.False(t, sched.PendingFrames())

	sched.Settle(frameStep, 200)
	assert.False(t, called)
	assert.Empty(t, drawer.frames)
	assert.ErrorIs(t, s.Create(key, Props{}), ErrDisposed)
	_, err = s.Animate(key, Target{PropX: 1}, time.Second, Linear, nil)
	assert.ErrorIs(t, err, ErrDisposed)
	assert.NoError(t, s.Dispose())
}

func TestSurface_NoDrawBeforeViewportReady(t *testing.T) {
	sched := loop.NewManual(time.Unix(0, 0))
	drawer := &recordingDrawer{}
	s := NewSurface(sched, viewport.New(viewport.DefaultConfig()), drawer, nil)

	require.NoError(t, s.Create(KeyOf(KindRegion, 1), Props{Shape: ShapeText}))
	sched.Advance(frameStep)
	assert.Empty(t, drawer.frames)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, LinkKey(1, 2), LinkKey(2, 1))
	assert.Equal(t, "link:1-2", LinkKey(2, 1).String())
	assert.Equal(t, "pawn:7", KeyOf(KindPawn, 7).String())
	assert.Less(t, KindTerrain.Layer(), KindServer.Layer())
}

func TestEasing(t *testing.T) {
	for _, ease := range []Easing{Linear, EaseInExpo, EaseOutExpo, EaseInOutQuad} {
		assert.InDelta(t, 0, ease(0), 1e-3)
		assert.InDelta(t, 1, ease(1), 1e-9)
	}
	_, ok := EasingByName("easeOut")
	assert.True(t, ok)
	_, ok = EasingByName("bounce")
	assert.False(t, ok)
}
