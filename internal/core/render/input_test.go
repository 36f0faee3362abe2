package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/mapsync/internal/core/viewport"
)

func TestSurface_HitTestTopmostInteractive(t *testing.T) {
	s, _, _, view := newTestSurface(t)

	require.NoError(t, s.Create(KeyOf(KindArea, 1), Props{Shape: ShapeRect, Width: 100, Height: 100}))
	require.NoError(t, s.Create(KeyOf(KindPawn, 1), Props{Shape: ShapeCircle, Radius: 5, Interactive: true}))
	require.NoError(t, s.Create(KeyOf(KindServer, 1), Props{Shape: ShapeSquare, Radius: 10, Interactive: true}))

	center := view.WorldToScreen(viewport.Point{})
	key, ok := s.HitTest(center.X, center.Y)
	require.True(t, ok)
	assert.Equal(t, KeyOf(KindServer, 1), key)

	_, ok = s.HitTest(center.X+200, center.Y)
	assert.False(t, ok, "area is not interactive")
}

func TestSurface_PointerDragPans(t *testing.T) {
	s, sched, drawer, view := newTestSurface(t)
	sched.Advance(frameStep)
	drawer.frames = nil
	panX, panY := view.Pan()

	s.PointerMove(10, 10)
	s.PointerMove(20, 20)
	x, y := view.Pan()
	assert.Equal(t, panX, x, "no drag without pointer down")
	assert.Equal(t, panY, y)

	s.PointerDown(10, 10)
	s.PointerMove(30, 10)
	s.PointerMove(50, 10)
	s.PointerUp(50, 10)
	s.PointerMove(90, 90)

	x, y = view.Pan()
	assert.InDelta(t, panX-40/view.Scale(), x, 1e-9)
	assert.Equal(t, panY, y)

	sched.Advance(frameStep)
	assert.Len(t, drawer.frames, 1, "one draw for the whole drag")
}

func TestSurface_WheelZooms(t *testing.T) {
	s, sched, drawer, view := newTestSurface(t)
	initial := view.Scale()

	s.Wheel(-100)
	s.Wheel(-100)
	assert.Greater(t, view.Scale(), initial)

	sched.Advance(frameStep)
	assert.Len(t, drawer.frames, 1)
	assert.Equal(t, view.Scale(), drawer.frames[0].Transform.Scale)
}

func TestSurface_HoverAndActivate(t *testing.T) {
	s, _, _, view := newTestSurface(t)
	require.NoError(t, s.Create(KeyOf(KindPawn, 4), Props{Shape: ShapeCircle, X: 0, Y: 0, Radius: 5, Interactive: true}))

	type hoverEvent struct {
		key     Key
		entered bool
	}
	var hovers []hoverEvent
	s.OnHover(func(key Key, entered bool) { hovers = append(hovers, hoverEvent{key, entered}) })
	var activated []Key
	s.OnActivate(func(key Key) { activated = append(activated, key) })

	c := view.WorldToScreen(viewport.Point{})
	s.PointerMove(c.X, c.Y)
	s.PointerMove(c.X+1, c.Y)
	s.PointerMove(c.X+100, c.Y)
	assert.Equal(t, []hoverEvent{
		{KeyOf(KindPawn, 4), true},
		{KeyOf(KindPawn, 4), false},
	}, hovers)

	s.DoubleClick(c.X, c.Y)
	s.DoubleClick(c.X+100, c.Y)
	assert.Equal(t, []Key{KeyOf(KindPawn, 4)}, activated)
}
