package render

import (
	"sort"
	"time"
)

type tween struct {
	from, to float64
	start    time.Time
	duration time.Duration
	ease     Easing
	group    *group
}

// group ties the tweens started by one Animate call to its completion
// callbacks. A group whose tweens are all redirected or removed never fires.
type group struct {
	seq   uint64
	live  int
	done  []func()
	fired bool
}

func (g *group) detach() {
	g.live--
	if g.live <= 0 {
		g.done = nil
	}
}

func (g *group) fire() {
	if g.fired {
		return
	}
	g.fired = true
	for _, fn := range g.done {
		fn()
	}
}

// Animate moves the given properties of a handle to target. A property that
// is already animating is redirected to the new target instead of being
// queued; the earlier animation loses that property and drops its callback
// once it has none left. Properties already at, or heading to, their target
// are left alone. onComplete runs on the loop after every property started
// by this call reached its target.
//
// It reports whether anything started animating.
func (s *Surface) Animate(key Key, target Target, duration time.Duration, ease Easing, onComplete func()) (bool, error) {
	if s.disposed {
		return false, ErrDisposed
	}
	it, ok := s.items[key]
	if !ok {
		return false, ErrUnknownHandle
	}
	if ease == nil {
		ease = Linear
	}

	s.groupSeq++
	g := &group{seq: s.groupSeq}
	var joined *group
	now := s.sched.Now()

	for _, prop := range sortedProps(target) {
		to := target[prop]
		current, running := it.tweens[prop]
		if running && current.to == to {
			if joined == nil {
				joined = current.group
			}
			continue
		}
		if !running && it.props.get(prop) == to {
			continue
		}
		if running {
			current.group.detach()
		}
		if it.tweens == nil {
			it.tweens = make(map[Prop]*tween)
		}
		it.tweens[prop] = &tween{
			from:     it.props.get(prop),
			to:       to,
			start:    now,
			duration: duration,
			ease:     ease,
			group:    g,
		}
		g.live++
	}

	if g.live == 0 {
		if onComplete != nil {
			if joined != nil {
				joined.done = append(joined.done, onComplete)
			} else {
				onComplete()
			}
		}
		return false, nil
	}
	if onComplete != nil {
		g.done = append(g.done, onComplete)
	}
	s.RequestRedraw()
	return true, nil
}

// CancelAnimations stops every animation where it is. No completion
// callback runs.
func (s *Surface) CancelAnimations() {
	for _, it := range s.items {
		for prop, tw := range it.tweens {
			tw.group.done = nil
			delete(it.tweens, prop)
		}
	}
}

// tick advances every tween to now. It returns the number of tweens still
// running and the groups that finished, in the order they were started.
func (s *Surface) tick(now time.Time) (int, []*group) {
	active := 0
	var done []*group
	for _, it := range s.items {
		for prop, tw := range it.tweens {
			progress := 1.0
			if tw.duration > 0 {
				progress = float64(now.Sub(tw.start)) / float64(tw.duration)
			}
			if progress >= 1 {
				it.props.set(prop, tw.to)
				delete(it.tweens, prop)
				tw.group.live--
				if tw.group.live == 0 && len(tw.group.done) > 0 {
					done = append(done, tw.group)
				}
				continue
			}
			if progress < 0 {
				progress = 0
			}
			it.props.set(prop, tw.from+(tw.to-tw.from)*tw.ease(progress))
			active++
		}
	}
	sort.Slice(done, func(i, j int) bool { return done[i].seq < done[j].seq })
	return active, done
}

func sortedProps(target Target) []Prop {
	props := make([]Prop, 0, len(target))
	for p := range target {
		props = append(props, p)
	}
	sort.Slice(props, func(i, j int) bool { return props[i] < props[j] })
	return props
}
