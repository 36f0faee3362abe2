// Package raster renders frames into images.
package raster

import (
	"bytes"
	"image"
	"math"
	"os"
	"sync"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/zeusync/mapsync/internal/core/render"
	"github.com/zeusync/mapsync/internal/core/render/palette"
	"github.com/zeusync/mapsync/internal/core/viewport"
)

var _ render.Drawer = (*Drawer)(nil)

var fallback = colorful.Color{R: 0.83, G: 0.83, B: 0.83}

// Drawer keeps the last frame as a PNG. When Path is set the PNG is also
// written to that file on every draw.
type Drawer struct {
	Path string

	mu   sync.RWMutex
	last []byte
}

func NewDrawer(path string) *Drawer {
	return &Drawer{Path: path}
}

func (d *Drawer) Draw(frame render.Frame) error {
	var buf bytes.Buffer
	if err := rasterize(frame).EncodePNG(&buf); err != nil {
		return errors.Wrap(err, "encode png")
	}

	d.mu.Lock()
	d.last = buf.Bytes()
	d.mu.Unlock()

	if d.Path == "" {
		return nil
	}
	if err := os.WriteFile(d.Path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", d.Path)
	}
	return nil
}

// PNG returns the last drawn frame, or nil before the first draw. Safe for
// concurrent use.
func (d *Drawer) PNG() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last
}

// Render rasterises frame.
func Render(frame render.Frame) image.Image {
	return rasterize(frame).Image()
}

func rasterize(frame render.Frame) *gg.Context {
	w, h := int(math.Max(frame.Width, 1)), int(math.Max(frame.Height, 1))
	dc := gg.NewContext(w, h)
	dc.SetColor(palette.Background)
	dc.Clear()
	for _, it := range frame.Items {
		drawItem(dc, frame.Transform, it.Props)
	}
	return dc
}

func drawItem(dc *gg.Context, t viewport.Transform, p render.Props) {
	if p.Opacity <= 0 {
		return
	}
	c := t.WorldToScreen(viewport.Point{X: p.X, Y: p.Y})
	fill := palette.Fade(palette.Resolve(p.Fill, fallback), p.Opacity)
	stroke := palette.Fade(palette.Resolve(p.Stroke, fallback), p.Opacity)
	lineWidth := p.StrokeWidth
	if lineWidth <= 0 {
		lineWidth = 1
	}
	dc.SetLineWidth(lineWidth)

	switch p.Shape {
	case render.ShapeRect:
		w, h := p.Width*t.Scale, p.Height*t.Scale
		dc.DrawRectangle(c.X-w/2, c.Y-h/2, w, h)
		paint(dc, p, fill, stroke)
		if p.Label != "" && p.LabelVisible {
			dc.SetColor(palette.Fade(colorful.Color{R: 1, G: 1, B: 1}, p.Opacity))
			dc.DrawStringWrapped(p.Label, c.X-w/2+4, c.Y-h/2+4, 0, 0, math.Max(w-8, 1), 1.2, gg.AlignLeft)
		}
	case render.ShapeSquare:
		dc.DrawRectangle(c.X-p.Radius, c.Y-p.Radius, 2*p.Radius, 2*p.Radius)
		paint(dc, p, fill, stroke)
		label(dc, c, p)
	case render.ShapeCircle:
		dc.DrawCircle(c.X, c.Y, p.Radius)
		paint(dc, p, fill, stroke)
		label(dc, c, p)
	case render.ShapeLine:
		e := t.WorldToScreen(viewport.Point{X: p.X2, Y: p.Y2})
		dc.DrawLine(c.X, c.Y, e.X, e.Y)
		dc.SetColor(stroke)
		dc.Stroke()
	case render.ShapeText:
		dc.SetColor(fill)
		dc.DrawStringAnchored(p.Label, c.X, c.Y, 0.5, 0.5)
	}
}

func paint(dc *gg.Context, p render.Props, fill, stroke colorful.Color) {
	switch {
	case p.Fill != "" && p.Stroke != "":
		dc.SetColor(fill)
		dc.FillPreserve()
		dc.SetColor(stroke)
		dc.Stroke()
	case p.Fill != "":
		dc.SetColor(fill)
		dc.Fill()
	default:
		dc.SetColor(stroke)
		dc.Stroke()
	}
}

func label(dc *gg.Context, c viewport.Point, p render.Props) {
	if p.Label == "" || !p.LabelVisible {
		return
	}
	dc.SetColor(palette.Fade(colorful.Color{R: 1, G: 1, B: 1}, p.Opacity))
	dc.DrawStringAnchored(p.Label, c.X+p.Radius+3, c.Y, 0, 0.5)
}
