// Package viewport owns the pan/zoom transform between world and screen space.
//
// World Y grows upwards and screen Y grows downwards, so the transform flips
// the vertical axis:
//
//	screenX = (worldX - panX) * scale
//	screenY = (-worldY - panY) * scale
package viewport

import "math"

// Point is a 2D coordinate in either world or screen space.
type Point struct {
	X, Y float64
}

// Rect is a box whose Min/Max are in flipped (screen-oriented) world units:
// Min.Y is the top edge, i.e. the largest world Y negated.
type Rect struct {
	Min, Max Point
}

func (r Rect) Width() float64  { return r.Max.X - r.Min.X }
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

func (r Rect) Center() Point {
	return Point{X: (r.Min.X + r.Max.X) / 2, Y: (r.Min.Y + r.Max.Y) / 2}
}

// Expand grows r by frac of its size on every side.
func (r Rect) Expand(frac float64) Rect {
	dx, dy := r.Width()*frac, r.Height()*frac
	return Rect{
		Min: Point{X: r.Min.X - dx, Y: r.Min.Y - dy},
		Max: Point{X: r.Max.X + dx, Y: r.Max.Y + dy},
	}
}

// Extent is an axis-aligned rectangle centred on (X, Y) in world space.
type Extent struct {
	X, Y, SizeX, SizeY float64
}

// Transform is an immutable snapshot of the viewport.
type Transform struct {
	Scale      float64
	PanX, PanY float64
}

func (t Transform) WorldToScreen(p Point) Point {
	return Point{X: (p.X - t.PanX) * t.Scale, Y: (-p.Y - t.PanY) * t.Scale}
}

func (t Transform) ScreenToWorld(p Point) Point {
	return Point{X: p.X/t.Scale + t.PanX, Y: -(p.Y/t.Scale + t.PanY)}
}

// Config holds the fit and zoom parameters.
type Config struct {
	CanvasWidth  float64
	CanvasHeight float64
	// Margin is added on each side, as a fraction of the map size.
	Margin float64
	// FitFactor shrinks the fitted scale so the map does not touch the edges.
	FitFactor float64
	MinZoom   float64
	MaxZoom   float64
	// WheelSensitivity converts wheel delta units into a fraction of the
	// initial scale. Positive deltas zoom out.
	WheelSensitivity float64
}

func DefaultConfig() Config {
	return Config{
		CanvasWidth:      1000,
		CanvasHeight:     1000,
		Margin:           0.04,
		FitFactor:        0.9,
		MinZoom:          0.5,
		MaxZoom:          2,
		WheelSensitivity: 0.001,
	}
}

// Controller tracks scale and pan. It is not safe for concurrent use; the
// engine drives it from its loop.
type Controller struct {
	config  Config
	ready   bool
	initial float64
	scale   float64
	panX    float64
	panY    float64
	bounds  Rect

	dragging     bool
	lastX, lastY float64

	dirty bool
}

func New(config Config) *Controller {
	return &Controller{config: config}
}

// Bounds computes the bounding box of extents in flipped world units. It
// reports false when extents is empty.
func Bounds(extents []Extent) (Rect, bool) {
	if len(extents) == 0 {
		return Rect{}, false
	}
	r := Rect{
		Min: Point{X: math.Inf(1), Y: math.Inf(1)},
		Max: Point{X: math.Inf(-1), Y: math.Inf(-1)},
	}
	for _, e := range extents {
		r.Min.X = math.Min(r.Min.X, e.X-0.5*e.SizeX)
		r.Max.X = math.Max(r.Max.X, e.X+0.5*e.SizeX)
		r.Min.Y = math.Min(r.Min.Y, -e.Y-0.5*e.SizeY)
		r.Max.Y = math.Max(r.Max.Y, -e.Y+0.5*e.SizeY)
	}
	return r, true
}

// Fit records the map bounds and, the first time a non-degenerate box is
// seen, computes the initial scale and centres the map. Later calls only
// refresh the bounds so user pan/zoom survives data refreshes. It reports
// whether the viewport is ready.
func (c *Controller) Fit(extents []Extent) bool {
	bounds, ok := Bounds(extents)
	if !ok {
		return c.ready
	}
	c.bounds = bounds
	c.dirty = true
	if c.ready {
		return true
	}

	framed := bounds.Expand(c.config.Margin)
	if framed.Width() <= 0 || framed.Height() <= 0 {
		return false
	}

	scale := math.Min(c.config.CanvasWidth/framed.Width(), c.config.CanvasHeight/framed.Height()) * c.config.FitFactor
	if scale <= 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
		return false
	}

	c.initial = scale
	c.scale = scale
	c.centerOn(framed.Center())
	c.ready = true
	return true
}

// centerOn pans so p (flipped world units) sits in the middle of the canvas.
func (c *Controller) centerOn(p Point) {
	c.panX = p.X - c.config.CanvasWidth/(2*c.scale)
	c.panY = p.Y - c.config.CanvasHeight/(2*c.scale)
}

func (c *Controller) Ready() bool { return c.ready }

// Bounds returns the unexpanded map bounds.
func (c *Controller) Bounds() Rect { return c.bounds }

// Framed returns the map bounds including the margin, as drawn by the terrain.
func (c *Controller) Framed() Rect { return c.bounds.Expand(c.config.Margin) }

func (c *Controller) Scale() float64        { return c.scale }
func (c *Controller) InitialScale() float64 { return c.initial }
func (c *Controller) Pan() (x, y float64)   { return c.panX, c.panY }
func (c *Controller) Config() Config        { return c.config }

func (c *Controller) Transform() Transform {
	return Transform{Scale: c.scale, PanX: c.panX, PanY: c.panY}
}

// Resize changes the canvas size while keeping the world point at the canvas
// centre fixed.
func (c *Controller) Resize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	if !c.ready {
		c.config.CanvasWidth, c.config.CanvasHeight = width, height
		return
	}
	center := c.flippedCenter()
	c.config.CanvasWidth, c.config.CanvasHeight = width, height
	c.centerOn(center)
	c.dirty = true
}

func (c *Controller) flippedCenter() Point {
	return Point{
		X: c.panX + c.config.CanvasWidth/(2*c.scale),
		Y: c.panY + c.config.CanvasHeight/(2*c.scale),
	}
}

// Zoom applies a wheel delta. The scale moves proportionally to the initial
// scale and is clamped to [MinZoom, MaxZoom] times the initial scale. The
// canvas centre stays fixed.
func (c *Controller) Zoom(deltaY float64) bool {
	if !c.ready || deltaY == 0 {
		return false
	}
	center := c.flippedCenter()

	scale := c.scale - deltaY*c.initial*c.config.WheelSensitivity
	scale = math.Max(scale, c.initial*c.config.MinZoom)
	scale = math.Min(scale, c.initial*c.config.MaxZoom)
	if scale == c.scale {
		return false
	}
	c.scale = scale
	c.centerOn(center)
	c.dirty = true
	return true
}

// BeginDrag starts a drag at screen position (x, y).
func (c *Controller) BeginDrag(x, y float64) {
	c.dragging = true
	c.lastX, c.lastY = x, y
}

// Drag moves the map with the pointer. It is ignored unless a drag is active.
func (c *Controller) Drag(x, y float64) bool {
	if !c.dragging || !c.ready {
		return false
	}
	dx, dy := x-c.lastX, y-c.lastY
	c.lastX, c.lastY = x, y
	if dx == 0 && dy == 0 {
		return false
	}
	c.panX -= dx / c.scale
	c.panY -= dy / c.scale
	c.dirty = true
	return true
}

func (c *Controller) EndDrag() {
	c.dragging = false
}

func (c *Controller) Dragging() bool { return c.dragging }

func (c *Controller) WorldToScreen(p Point) Point { return c.Transform().WorldToScreen(p) }
func (c *Controller) ScreenToWorld(p Point) Point { return c.Transform().ScreenToWorld(p) }

// TakeDirty reports whether the viewport changed since the last call and
// clears the flag.
func (c *Controller) TakeDirty() bool {
	d := c.dirty
	c.dirty = false
	return d
}
