package render

// Shape selects how a handle is drawn.
type Shape uint8

const (
	// ShapeRect is a rectangle centred on (X, Y) with a world-space size.
	ShapeRect Shape = iota
	// ShapeSquare is a square centred on (X, Y) whose half side is Radius
	// screen pixels. Its size does not change with zoom.
	ShapeSquare
	// ShapeCircle is a circle centred on (X, Y) with a Radius in pixels.
	ShapeCircle
	// ShapeLine joins (X, Y) and (X2, Y2).
	ShapeLine
	// ShapeText draws only the label at (X, Y).
	ShapeText
)

// Props are the visual properties of a handle. Positions are world units.
type Props struct {
	Shape         Shape
	X, Y          float64
	X2, Y2        float64
	Width, Height float64
	Radius        float64
	Fill          string
	Stroke        string
	StrokeWidth   float64
	Opacity       float64
	Label         string
	LabelVisible  bool
	// Interactive items take part in hit testing.
	Interactive bool
}

// Prop names an animatable numeric property.
type Prop uint8

const (
	PropX Prop = iota
	PropY
	PropX2
	PropY2
	PropOpacity
	PropRadius
)

// Target maps animatable properties to their final values.
type Target map[Prop]float64

func (p *Props) get(prop Prop) float64 {
	switch prop {
	case PropX:
		return p.X
	case PropY:
		return p.Y
	case PropX2:
		return p.X2
	case PropY2:
		return p.Y2
	case PropOpacity:
		return p.Opacity
	case PropRadius:
		return p.Radius
	}
	return 0
}

func (p *Props) set(prop Prop, v float64) {
	switch prop {
	case PropX:
		p.X = v
	case PropY:
		p.Y = v
	case PropX2:
		p.X2 = v
	case PropY2:
		p.Y2 = v
	case PropOpacity:
		p.Opacity = v
	case PropRadius:
		p.Radius = v
	}
}
