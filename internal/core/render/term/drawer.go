// Package term draws render frames on a terminal and feeds terminal mouse
// input back to the surface.
package term

import (
	"math"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/zeusync/mapsync/internal/core/render"
	"github.com/zeusync/mapsync/internal/core/render/palette"
	"github.com/zeusync/mapsync/internal/core/viewport"
)

// A terminal cell stands for a CellWidth x CellHeight block of canvas pixels.
const (
	CellWidth  = 8
	CellHeight = 16
)

var _ render.Drawer = (*Drawer)(nil)

// Drawer renders frames onto a tcell screen.
type Drawer struct {
	screen tcell.Screen
	owned  bool
}

// NewDrawer draws onto screen. The screen must already be initialised. When
// owned is set the screen is finalised on Close.
func NewDrawer(screen tcell.Screen, owned bool) *Drawer {
	return &Drawer{screen: screen, owned: owned}
}

// CanvasSize returns the canvas size in pixels for the current terminal.
func (d *Drawer) CanvasSize() (width, height float64) {
	cols, rows := d.screen.Size()
	return float64(cols * CellWidth), float64(rows * CellHeight)
}

func (d *Drawer) Draw(frame render.Frame) error {
	d.screen.Clear()
	bg := style(palette.Background, palette.Background)
	cols, rows := d.screen.Size()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			d.screen.SetContent(x, y, ' ', nil, bg)
		}
	}
	for _, it := range frame.Items {
		d.drawItem(frame.Transform, it)
	}
	d.screen.Show()
	return nil
}

func (d *Drawer) Close() error {
	if d.owned {
		d.screen.Fini()
	}
	return nil
}

func (d *Drawer) drawItem(t viewport.Transform, it render.Item) {
	p := it.Props
	if p.Opacity <= 0 {
		return
	}
	c := t.WorldToScreen(viewport.Point{X: p.X, Y: p.Y})
	cx, cy := toCell(c)

	switch p.Shape {
	case render.ShapeRect:
		w := int(math.Round(p.Width * t.Scale / CellWidth))
		h := int(math.Round(p.Height * t.Scale / CellHeight))
		x0, y0 := cx-w/2, cy-h/2
		if p.Fill != "" {
			d.fill(x0, y0, w, h, color(p.Fill, p.Opacity))
		}
		if p.Stroke != "" {
			d.box(x0, y0, w, h, color(p.Stroke, p.Opacity))
		}
		if p.Label != "" && p.LabelVisible {
			d.caption(x0+1, y0+1, w-2, p.Label, color("white", p.Opacity))
		}
	case render.ShapeSquare:
		d.put(cx, cy, '■', color(p.Fill, p.Opacity))
		d.label(cx+2, cy, p)
	case render.ShapeCircle:
		r := '●'
		if p.Fill == "" {
			r = '○'
		}
		fg := p.Fill
		if fg == "" {
			fg = p.Stroke
		}
		d.put(cx, cy, r, color(fg, p.Opacity))
		d.label(cx+2, cy, p)
	case render.ShapeLine:
		e := t.WorldToScreen(viewport.Point{X: p.X2, Y: p.Y2})
		ex, ey := toCell(e)
		d.line(cx, cy, ex, ey, color(p.Stroke, p.Opacity))
	case render.ShapeText:
		d.text(cx-len([]rune(p.Label))/2, cy, p.Label, color(p.Fill, p.Opacity))
	}
}

func (d *Drawer) label(x, y int, p render.Props) {
	if p.Label == "" || !p.LabelVisible {
		return
	}
	d.text(x, y, p.Label, color("white", p.Opacity))
}

func (d *Drawer) caption(x, y, width int, text string, fg colorful.Color) {
	if width <= 0 {
		return
	}
	for i, line := range strings.Split(wordwrap.String(text, width), "\n") {
		d.text(x, y+i, truncate.String(line, uint(width)), fg)
	}
}

func (d *Drawer) put(x, y int, r rune, fg colorful.Color) {
	_, _, st, _ := d.screen.GetContent(x, y)
	_, bg, _ := st.Decompose()
	d.screen.SetContent(x, y, r, nil, tcell.StyleDefault.Foreground(tcellColor(fg)).Background(bg))
}

func (d *Drawer) text(x, y int, s string, fg colorful.Color) {
	for _, r := range s {
		d.put(x, y, r, fg)
		x++
	}
}

func (d *Drawer) fill(x0, y0, w, h int, c colorful.Color) {
	st := style(c, c)
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			d.screen.SetContent(x, y, ' ', nil, st)
		}
	}
}

func (d *Drawer) box(x0, y0, w, h int, c colorful.Color) {
	if w < 2 || h < 2 {
		d.put(x0, y0, '□', c)
		return
	}
	x1, y1 := x0+w-1, y0+h-1
	for x := x0 + 1; x < x1; x++ {
		d.put(x, y0, '─', c)
		d.put(x, y1, '─', c)
	}
	for y := y0 + 1; y < y1; y++ {
		d.put(x0, y, '│', c)
		d.put(x1, y, '│', c)
	}
	d.put(x0, y0, '┌', c)
	d.put(x1, y0, '┐', c)
	d.put(x0, y1, '└', c)
	d.put(x1, y1, '┘', c)
}

// line rasterises with Bresenham.
func (d *Drawer) line(x0, y0, x1, y1 int, c colorful.Color) {
	dx, dy := absInt(x1-x0), -absInt(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		d.put(x0, y0, '·', c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func toCell(p viewport.Point) (int, int) {
	return int(math.Floor(p.X / CellWidth)), int(math.Floor(p.Y / CellHeight))
}

func color(s string, opacity float64) colorful.Color {
	return palette.Fade(palette.Resolve(s, colorful.Color{R: 0.83, G: 0.83, B: 0.83}), opacity)
}

func style(fg, bg colorful.Color) tcell.Style {
	return tcell.StyleDefault.Foreground(tcellColor(fg)).Background(tcellColor(bg))
}

func tcellColor(c colorful.Color) tcell.Color {
	r, g, b := c.Clamped().RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
