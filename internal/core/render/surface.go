// Package render keeps one visual handle per live entity and turns handle
// mutations into coalesced, animated redraws.
package render

import (
	"io"
	"sort"
	"time"

	"github.com/zeusync/mapsync/internal/core/loop"
	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/viewport"
)

// Item is a handle as seen by a Drawer.
type Item struct {
	Key   Key
	Props Props
}

// Frame is one physical draw. Items are sorted by layer, then creation order.
type Frame struct {
	Transform viewport.Transform
	Width     float64
	Height    float64
	Items     []Item
}

// Drawer renders frames. A Drawer that implements io.Closer is closed when
// the surface is disposed.
type Drawer interface {
	Draw(frame Frame) error
}

// View is the part of the viewport the surface reads and steers.
type View interface {
	Ready() bool
	Transform() viewport.Transform
	Config() viewport.Config
	TakeDirty() bool
	BeginDrag(x, y float64)
	Drag(x, y float64) bool
	EndDrag()
	Zoom(deltaY float64) bool
}

type item struct {
	key    Key
	seq    uint64
	props  Props
	tweens map[Prop]*tween
}

// Surface owns the handles. All methods must be called on the loop.
type Surface struct {
	sched  loop.Scheduler
	view   View
	drawer Drawer
	logger log.Log

	items map[Key]*item
	seq   uint64

	groupSeq uint64
	frame    loop.FrameID
	pending  bool
	dirty    bool
	disposed bool
	draws    uint64

	hovered    *Key
	onHover    []func(key Key, entered bool)
	onActivate []func(key Key)
}

func NewSurface(sched loop.Scheduler, view View, drawer Drawer, logger log.Log) *Surface {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Surface{
		sched:  sched,
		view:   view,
		drawer: drawer,
		logger: logger.With(log.String("component", "render")),
		items:  make(map[Key]*item),
	}
}

// Create adds a handle.
func (s *Surface) Create(key Key, props Props) error {
	if s.disposed {
		return ErrDisposed
	}
	if _, ok := s.items[key]; ok {
		return ErrHandleExists
	}
	s.seq++
	s.items[key] = &item{key: key, seq: s.seq, props: props}
	s.RequestRedraw()
	return nil
}

// Update replaces the properties of a handle. Properties that are being
// animated keep animating toward their target.
func (s *Surface) Update(key Key, props Props) error {
	if s.disposed {
		return ErrDisposed
	}
	it, ok := s.items[key]
	if !ok {
		return ErrUnknownHandle
	}
	for prop := range it.tweens {
		props.set(prop, it.props.get(prop))
	}
	it.props = props
	s.RequestRedraw()
	return nil
}

// Mutate applies fn to the properties of a handle.
func (s *Surface) Mutate(key Key, fn func(p *Props)) error {
	if s.disposed {
		return ErrDisposed
	}
	it, ok := s.items[key]
	if !ok {
		return ErrUnknownHandle
	}
	fn(&it.props)
	s.RequestRedraw()
	return nil
}

// Remove deletes a handle and drops its animations without running their
// completion callbacks.
func (s *Surface) Remove(key Key) error {
	if s.disposed {
		return ErrDisposed
	}
	it, ok := s.items[key]
	if !ok {
		return ErrUnknownHandle
	}
	for prop, tw := range it.tweens {
		tw.group.detach()
		delete(it.tweens, prop)
	}
	delete(s.items, key)
	if s.hovered != nil && *s.hovered == key {
		s.hovered = nil
	}
	s.RequestRedraw()
	return nil
}

func (s *Surface) Has(key Key) bool {
	_, ok := s.items[key]
	return ok
}

// Props returns the current, possibly mid-animation, properties of a handle.
func (s *Surface) Props(key Key) (Props, bool) {
	it, ok := s.items[key]
	if !ok {
		return Props{}, false
	}
	return it.props, true
}

// Animating reports whether any property of the handle is being animated.
func (s *Surface) Animating(key Key) bool {
	it, ok := s.items[key]
	return ok && len(it.tweens) > 0
}

// Count returns the number of handles of kind.
func (s *Surface) Count(kind Kind) int {
	n := 0
	for k := range s.items {
		if k.Kind == kind {
			n++
		}
	}
	return n
}

// Keys returns the keys of kind in creation order.
func (s *Surface) Keys(kind Kind) []Key {
	var items []*item
	for k, it := range s.items {
		if k.Kind == kind {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].seq < items[j].seq })
	keys := make([]Key, len(items))
	for i, it := range items {
		keys[i] = it.key
	}
	return keys
}

// Draws returns how many physical draws happened.
func (s *Surface) Draws() uint64 { return s.draws }

func (s *Surface) Disposed() bool { return s.disposed }

// RequestRedraw schedules a draw on the next frame. Any number of requests
// before that frame result in a single draw.
func (s *Surface) RequestRedraw() {
	if s.disposed {
		return
	}
	s.dirty = true
	s.schedule()
}

func (s *Surface) schedule() {
	if s.pending {
		return
	}
	s.pending = true
	s.frame = s.sched.RequestFrame(s.onFrame)
}

func (s *Surface) onFrame(now time.Time) {
	s.pending = false
	if s.disposed {
		return
	}

	active, done := s.tick(now)
	if active > 0 || len(done) > 0 {
		s.dirty = true
	}
	for _, g := range done {
		g.fire()
	}
	if s.disposed {
		return
	}

	viewDirty := s.view.TakeDirty()
	if s.dirty || viewDirty {
		s.draw()
	}
	if s.animating() {
		s.schedule()
	}
}

func (s *Surface) animating() bool {
	for _, it := range s.items {
		if len(it.tweens) > 0 {
			return true
		}
	}
	return false
}

func (s *Surface) draw() {
	s.dirty = false
	if !s.view.Ready() {
		return
	}
	cfg := s.view.Config()
	frame := Frame{
		Transform: s.view.Transform(),
		Width:     cfg.CanvasWidth,
		Height:    cfg.CanvasHeight,
		Items:     s.ordered(),
	}
	s.draws++
	if err := s.drawer.Draw(frame); err != nil {
		s.logger.Warn("Draw failed", log.Error(err))
	}
}

func (s *Surface) ordered() []Item {
	sorted := make([]*item, 0, len(s.items))
	for _, it := range s.items {
		sorted = append(sorted, it)
	}
	sort.Slice(sorted, func(i, j int) bool {
		li, lj := sorted[i].key.Kind.Layer(), sorted[j].key.Kind.Layer()
		if li != lj {
			return li < lj
		}
		return sorted[i].seq < sorted[j].seq
	})
	out := make([]Item, len(sorted))
	for i, it := range sorted {
		out[i] = Item{Key: it.key, Props: it.props}
	}
	return out
}

// Snapshot returns the drawable state without drawing it.
func (s *Surface) Snapshot() Frame {
	cfg := s.view.Config()
	return Frame{
		Transform: s.view.Transform(),
		Width:     cfg.CanvasWidth,
		Height:    cfg.CanvasHeight,
		Items:     s.ordered(),
	}
}

// Dispose cancels pending frames and animations, drops every handle and
// closes the drawer. Any later mutation returns ErrDisposed.
func (s *Surface) Dispose() error {
	if s.disposed {
		return nil
	}
	s.CancelAnimations()
	if s.pending {
		s.sched.CancelFrame(s.frame)
		s.pending = false
	}
	s.disposed = true
	s.items = make(map[Key]*item)
	s.hovered = nil
	s.onHover = nil
	s.onActivate = nil
	if c, ok := s.drawer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
