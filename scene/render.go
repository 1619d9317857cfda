package scene

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Line metrics used for textbox layout.
const (
	fontSizeMult = 1.13
	lineHeight   = 1.16
)

var (
	fontOnce    sync.Once
	boldFont    *text.FontSource
	regularFont *text.FontSource
	fontErr     error
)

func fontSource(bold bool) (*text.FontSource, error) {
	fontOnce.Do(func() {
		boldFont, fontErr = text.NewFontSource(gobold.TTF)
		if fontErr != nil {
			return
		}
		regularFont, fontErr = text.NewFontSource(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fmt.Errorf("load font: %w", fontErr)
	}
	if bold {
		return boldFont, nil
	}
	return regularFont, nil
}

// applyTransform moves the drawing origin onto the layer and applies its
// rotation and scale. Callers must Push before and Pop after.
func applyTransform(dc *gg.Context, t Transform) {
	dc.Translate(t.Left, t.Top)
	if t.Angle != 0 {
		dc.Rotate(t.Angle * math.Pi / 180)
	}
	dc.Scale(t.ScaleX, t.ScaleY)
}

func fillPath(dc *gg.Context, t Transform, fill string, path func()) error {
	dc.Push()
	defer dc.Pop()
	applyTransform(dc, t)
	dc.SetHexColor(fill)
	path()
	return dc.Fill()
}

func (r *Rect) draw(dc *gg.Context) error {
	return fillPath(dc, r.Transform, r.Fill, func() {
		dc.DrawRectangle(0, 0, r.Width, r.Height)
	})
}

func (c *Circle) draw(dc *gg.Context) error {
	return fillPath(dc, c.Transform, c.Fill, func() {
		dc.DrawCircle(c.Radius, c.Radius, c.Radius)
	})
}

func (t *Triangle) draw(dc *gg.Context) error {
	return fillPath(dc, t.Transform, t.Fill, func() {
		dc.MoveTo(0, t.Height)
		dc.LineTo(t.Width/2, 0)
		dc.LineTo(t.Width, t.Height)
		dc.ClosePath()
	})
}

func (p *Polygon) draw(dc *gg.Context) error {
	if len(p.Points) < 3 {
		return nil
	}
	minX, minY, _, _ := p.bounds()
	return fillPath(dc, p.Transform, p.Fill, func() {
		dc.MoveTo(p.Points[0].X-minX, p.Points[0].Y-minY)
		for _, pt := range p.Points[1:] {
			dc.LineTo(pt.X-minX, pt.Y-minY)
		}
		dc.ClosePath()
	})
}

// layout recomputes the textbox dimensions from its content.
func (t *Text) layout() error {
	src, err := fontSource(t.Bold)
	if err != nil {
		return err
	}
	face := src.Face(t.FontSize)
	lines := strings.Split(t.Content, "\n")

	t.width = 0
	for _, line := range lines {
		t.width = max(t.width, face.Advance(line))
	}
	t.height = t.FontSize*fontSizeMult + float64(len(lines)-1)*t.FontSize*lineHeight*fontSizeMult
	return nil
}

// draw lays glyphs out in layer coordinates; the context transform places,
// scales and rotates them.
func (t *Text) draw(dc *gg.Context) error {
	src, err := fontSource(t.Bold)
	if err != nil {
		return err
	}
	face := src.Face(t.FontSize)
	ascent := face.Metrics().Ascent
	step := t.FontSize * lineHeight * fontSizeMult

	dc.Push()
	defer dc.Pop()
	applyTransform(dc, t.Transform)
	dc.SetFont(face)
	dc.SetHexColor(t.Fill)
	for i, line := range strings.Split(t.Content, "\n") {
		dc.DrawString(line, 0, ascent+float64(i)*step)
	}
	return nil
}

func (i *Image) draw(dc *gg.Context) error {
	if i.buf == nil {
		return nil
	}
	dc.Push()
	defer dc.Pop()
	dc.Translate(i.Left, i.Top)
	dc.DrawImageEx(i.buf, gg.DrawImageOptions{
		DstWidth:      float64(i.NaturalWidth) * i.ScaleX,
		DstHeight:     float64(i.NaturalHeight) * i.ScaleY,
		Interpolation: gg.InterpBilinear,
		Opacity:       1.0,
		BlendMode:     gg.BlendNormal,
	})
	return nil
}
