package scene

import (
	"fmt"

	"github.com/gogpu/gg"
)

// Kind identifies the variant of a Layer. The string values match the
// type names clients already use when inspecting a canvas.
type Kind string

const (
	KindRect     Kind = "rect"
	KindCircle   Kind = "circle"
	KindTriangle Kind = "triangle"
	KindPolygon  Kind = "polygon"
	KindText     Kind = "textbox"
	KindImage    Kind = "image"
)

// ParseShapeKind accepts the kinds AddShape can create.
func ParseShapeKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindRect, KindCircle, KindTriangle, KindPolygon:
		return k, nil
	case "hexagon":
		return KindPolygon, nil
	}
	return "", fmt.Errorf("unknown shape kind %q", s)
}

type (
	// Transform places a layer in scene coordinates. Left/Top is the layer's
	// top-left origin; rotation (degrees) pivots around it.
	Transform struct {
		Left   float64 `json:"left"`
		Top    float64 `json:"top"`
		ScaleX float64 `json:"scaleX"`
		ScaleY float64 `json:"scaleY"`
		Angle  float64 `json:"angle"`
	}

	// Layer is a closed set of drawable scene elements.
	Layer interface {
		Kind() Kind
		Transformation() Transform
		// Size returns the native (unscaled) width and height.
		Size() (w, h float64)
		FillColor() string
		Locked() bool

		transform() *Transform
		draw(dc *gg.Context) error
	}

	Rect struct {
		Transform
		Width  float64
		Height float64
		Fill   string
	}

	Circle struct {
		Transform
		Radius float64
		Fill   string
	}

	// Triangle is isosceles with its apex at the top centre.
	Triangle struct {
		Transform
		Width  float64
		Height float64
		Fill   string
	}

	Point struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	// Polygon points are in their own coordinate space; the bounding box's
	// top-left is mapped onto the layer origin.
	Polygon struct {
		Transform
		Points []Point
		Fill   string
	}

	Text struct {
		Transform
		Content  string
		FontSize float64
		Bold     bool
		Fill     string

		width  float64
		height float64
	}

	// Image is the background layer. It is never selectable.
	Image struct {
		Transform
		Source        string
		NaturalWidth  int
		NaturalHeight int

		buf *gg.ImageBuf
	}
)

func identity(left, top float64) Transform {
	return Transform{Left: left, Top: top, ScaleX: 1, ScaleY: 1}
}

func (t Transform) Transformation() Transform { return t }
func (t *Transform) transform() *Transform    { return t }

func (r *Rect) Kind() Kind                 { return KindRect }
func (r *Rect) Size() (float64, float64)   { return r.Width, r.Height }
func (r *Rect) FillColor() string          { return r.Fill }
func (r *Rect) Locked() bool               { return false }
func (c *Circle) Kind() Kind               { return KindCircle }
func (c *Circle) Size() (float64, float64) { return 2 * c.Radius, 2 * c.Radius }
func (c *Circle) FillColor() string        { return c.Fill }
func (c *Circle) Locked() bool             { return false }

func (t *Triangle) Kind() Kind               { return KindTriangle }
func (t *Triangle) Size() (float64, float64) { return t.Width, t.Height }
func (t *Triangle) FillColor() string        { return t.Fill }
func (t *Triangle) Locked() bool             { return false }

func (p *Polygon) Kind() Kind        { return KindPolygon }
func (p *Polygon) FillColor() string { return p.Fill }
func (p *Polygon) Locked() bool      { return false }

func (p *Polygon) Size() (float64, float64) {
	minX, minY, maxX, maxY := p.bounds()
	return maxX - minX, maxY - minY
}

func (p *Polygon) bounds() (minX, minY, maxX, maxY float64) {
	if len(p.Points) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY = p.Points[0].X, p.Points[0].Y
	maxX, maxY = minX, minY
	for _, pt := range p.Points[1:] {
		minX = min(minX, pt.X)
		minY = min(minY, pt.Y)
		maxX = max(maxX, pt.X)
		maxY = max(maxY, pt.Y)
	}
	return minX, minY, maxX, maxY
}

func (t *Text) Kind() Kind               { return KindText }
func (t *Text) Size() (float64, float64) { return t.width, t.height }
func (t *Text) FillColor() string        { return t.Fill }
func (t *Text) Locked() bool             { return false }

func (i *Image) Kind() Kind        { return KindImage }
func (i *Image) FillColor() string { return "" }
func (i *Image) Locked() bool      { return true }

func (i *Image) Size() (float64, float64) {
	return float64(i.NaturalWidth), float64(i.NaturalHeight)
}

// LayerDescriptor is a diagnostic snapshot of one layer.
type LayerDescriptor struct {
	Type       Kind    `json:"type"`
	Left       float64 `json:"left"`
	Top        float64 `json:"top"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Fill       string  `json:"fill"`
	Text       string  `json:"text"`
	ScaleX     float64 `json:"scaleX"`
	ScaleY     float64 `json:"scaleY"`
	Angle      float64 `json:"angle"`
	Selectable bool    `json:"selectable"`
}

func describe(l Layer) LayerDescriptor {
	t := l.Transformation()
	w, h := l.Size()
	d := LayerDescriptor{
		Type:       l.Kind(),
		Left:       t.Left,
		Top:        t.Top,
		Width:      w,
		Height:     h,
		Fill:       l.FillColor(),
		ScaleX:     t.ScaleX,
		ScaleY:     t.ScaleY,
		Angle:      t.Angle,
		Selectable: !l.Locked(),
	}
	if txt, ok := l.(*Text); ok {
		d.Text = txt.Content
	}
	return d
}
