package render

import (
	"math"

	"github.com/zeusync/mapsync/internal/core/viewport"
)

// hitSlop widens small targets, in pixels.
const hitSlop = 2.0

// OnHover registers fn to run when the pointer enters or leaves an
// interactive handle.
func (s *Surface) OnHover(fn func(key Key, entered bool)) {
	s.onHover = append(s.onHover, fn)
}

// OnActivate registers fn to run when an interactive handle is double
// clicked.
func (s *Surface) OnActivate(fn func(key Key)) {
	s.onActivate = append(s.onActivate, fn)
}

func (s *Surface) PointerDown(x, y float64) {
	if s.disposed {
		return
	}
	s.view.BeginDrag(x, y)
}

// PointerMove pans while a drag is active and tracks hover otherwise.
func (s *Surface) PointerMove(x, y float64) {
	if s.disposed {
		return
	}
	if s.view.Drag(x, y) {
		s.RequestRedraw()
		return
	}
	s.hover(x, y)
}

func (s *Surface) PointerUp(x, y float64) {
	if s.disposed {
		return
	}
	s.view.EndDrag()
}

func (s *Surface) Wheel(deltaY float64) {
	if s.disposed {
		return
	}
	if s.view.Zoom(deltaY) {
		s.RequestRedraw()
	}
}

func (s *Surface) DoubleClick(x, y float64) {
	if s.disposed {
		return
	}
	key, ok := s.HitTest(x, y)
	if !ok {
		return
	}
	for _, fn := range s.onActivate {
		fn(key)
	}
}

func (s *Surface) hover(x, y float64) {
	key, ok := s.HitTest(x, y)
	if s.hovered != nil && (!ok || *s.hovered != key) {
		prev := *s.hovered
		s.hovered = nil
		for _, fn := range s.onHover {
			fn(prev, false)
		}
	}
	if ok && s.hovered == nil {
		s.hovered = &key
		for _, fn := range s.onHover {
			fn(key, true)
		}
	}
}

// HitTest returns the topmost interactive handle under screen point (x, y).
func (s *Surface) HitTest(x, y float64) (Key, bool) {
	if !s.view.Ready() {
		return Key{}, false
	}
	t := s.view.Transform()
	p := viewport.Point{X: x, Y: y}
	items := s.ordered()
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].Props.Interactive && contains(t, items[i].Props, p) {
			return items[i].Key, true
		}
	}
	return Key{}, false
}

func contains(t viewport.Transform, props Props, p viewport.Point) bool {
	c := t.WorldToScreen(viewport.Point{X: props.X, Y: props.Y})
	switch props.Shape {
	case ShapeCircle:
		return math.Hypot(p.X-c.X, p.Y-c.Y) <= props.Radius+hitSlop
	case ShapeSquare:
		r := props.Radius + hitSlop
		return math.Abs(p.X-c.X) <= r && math.Abs(p.Y-c.Y) <= r
	case ShapeRect:
		hw, hh := props.Width*t.Scale/2, props.Height*t.Scale/2
		return math.Abs(p.X-c.X) <= hw && math.Abs(p.Y-c.Y) <= hh
	}
	return false
}
