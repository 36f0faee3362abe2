package term

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/zeusync/mapsync/internal/core/loop"
)

// WheelStep is the wheel delta sent for one wheel notch, matching a browser
// line scroll.
const WheelStep = 100.0

// DoubleClickWindow bounds the time between the two presses of a double
// click.
const DoubleClickWindow = 400 * time.Millisecond

// Target receives pointer input in canvas pixels. Calls happen on the loop.
type Target interface {
	PointerDown(x, y float64)
	PointerMove(x, y float64)
	PointerUp(x, y float64)
	Wheel(deltaY float64)
	DoubleClick(x, y float64)
	Resize(width, height float64)
	Quit()
}

// Input translates tcell events into Target calls.
type Input struct {
	sched  loop.Scheduler
	target Target

	buttons   tcell.ButtonMask
	lastPress time.Time
	lastCellX int
	lastCellY int
}

func NewInput(sched loop.Scheduler, target Target) *Input {
	return &Input{sched: sched, target: target, lastCellX: -1, lastCellY: -1}
}

// Run polls screen until ctx is done or the screen is finalised.
func (in *Input) Run(ctx context.Context, screen tcell.Screen) {
	go func() {
		<-ctx.Done()
		screen.PostEvent(tcell.NewEventInterrupt(nil))
	}()
	for {
		ev := screen.PollEvent()
		if ev == nil || ctx.Err() != nil {
			return
		}
		in.Handle(ev)
	}
}

// Handle translates one event. It may be called from any goroutine.
func (in *Input) Handle(ev tcell.Event) {
	switch e := ev.(type) {
	case *tcell.EventResize:
		cols, rows := e.Size()
		w, h := float64(cols*CellWidth), float64(rows*CellHeight)
		in.sched.Post(func() { in.target.Resize(w, h) })
	case *tcell.EventKey:
		if e.Key() == tcell.KeyEscape || e.Key() == tcell.KeyCtrlC || e.Rune() == 'q' {
			in.sched.Post(in.target.Quit)
		}
	case *tcell.EventMouse:
		in.mouse(e)
	}
}

func (in *Input) mouse(e *tcell.EventMouse) {
	cx, cy := e.Position()
	x, y := float64(cx*CellWidth+CellWidth/2), float64(cy*CellHeight+CellHeight/2)
	buttons := e.Buttons()

	switch {
	case buttons&tcell.WheelUp != 0:
		in.sched.Post(func() { in.target.Wheel(-WheelStep) })
		return
	case buttons&tcell.WheelDown != 0:
		in.sched.Post(func() { in.target.Wheel(WheelStep) })
		return
	}

	pressed := buttons&tcell.Button1 != 0
	wasPressed := in.buttons&tcell.Button1 != 0
	in.buttons = buttons

	switch {
	case pressed && !wasPressed:
		when := e.When()
		double := when.Sub(in.lastPress) <= DoubleClickWindow && cx == in.lastCellX && cy == in.lastCellY
		in.lastPress, in.lastCellX, in.lastCellY = when, cx, cy
		in.sched.Post(func() { in.target.PointerDown(x, y) })
		if double {
			in.lastPress = time.Time{}
			in.sched.Post(func() { in.target.DoubleClick(x, y) })
		}
	case !pressed && wasPressed:
		in.sched.Post(func() { in.target.PointerUp(x, y) })
	default:
		in.sched.Post(func() { in.target.PointerMove(x, y) })
	}
}
