package scene

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// inkBounds returns the bounding box of near-white pixels.
func inkBounds(img image.Image, within image.Rectangle) (image.Rectangle, int) {
	var box image.Rectangle
	count := 0
	r := within.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if c.R < 180 || c.G < 180 || c.B < 180 {
				continue
			}
			px := image.Rect(x, y, x+1, y+1)
			if count == 0 {
				box = px
			} else {
				box = box.Union(px)
			}
			count++
		}
	}
	return box, count
}

// darkEditor returns an editor whose scene sits on a black background, so
// the default white text is the only bright ink.
func darkEditor(t *testing.T) *Editor {
	t.Helper()
	e := newTestEditor(t, WithFetcher(staticFetcher(solidPNG(t, 10, 10, color.Black))))
	if err := e.LoadBackground(context.Background(), "https://images.example/black.png"); err != nil {
		t.Fatalf("LoadBackground() failed: %v", err)
	}
	return e
}

func exportImage(t *testing.T, e *Editor) image.Image {
	t.Helper()
	data, err := e.Export()
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode export: %v", err)
	}
	return img
}

// layerBox is the axis-aligned box a descriptor claims for an unrotated
// layer, grown by slack pixels for antialiasing.
func layerBox(d LayerDescriptor, slack int) image.Rectangle {
	return image.Rect(
		int(d.Left)-slack,
		int(d.Top)-slack,
		int(d.Left+d.Width*d.ScaleX)+slack+1,
		int(d.Top+d.Height*d.ScaleY)+slack+1,
	)
}

func TestExport_TextInsideItsBox(t *testing.T) {
	e := darkEditor(t)
	rect, _ := e.AddShape(KindRect)
	if err := e.TransformLayer(rect, identity(100, 100)); err != nil {
		t.Fatal(err)
	}
	txt, _ := e.AddText("")

	d := e.DescribeLayers()[txt]
	if d.Left != 100 || d.Top != 100 {
		t.Fatalf("default text at (%v,%v), want (100,100)", d.Left, d.Top)
	}

	img := exportImage(t, e)
	ink, n := inkBounds(img, img.Bounds())
	if n == 0 {
		t.Fatal("no text ink in export")
	}
	want := layerBox(d, 2)
	if !ink.In(want) {
		t.Errorf("text ink %v outside layer box %v", ink, want)
	}
	if ink.Min.X > 110 || ink.Min.Y > 110 {
		t.Errorf("text ink starts at %v, want near the layer origin (100,100)", ink.Min)
	}

	// The rectangle covers (100,100)-(200,160); text is painted over it.
	if _, over := inkBounds(img, image.Rect(100, 100, 200, 160)); over == 0 {
		t.Error("no text ink over the rectangle, want text painted above it")
	}
	if got := img.At(190, 150); !approxColor(got, color.NRGBA{0xD8, 0x4D, 0x42, 0xff}, 3) {
		t.Errorf("rectangle pixel = %v, want rect fill", got)
	}
}

func TestExport_ScaledText(t *testing.T) {
	e := darkEditor(t)
	txt, _ := e.AddText("")
	plain, _ := inkBounds(exportImage(t, e), image.Rect(0, 0, Width, Height))

	if err := e.TransformLayer(txt, Transform{Left: 50, Top: 50, ScaleX: 2, ScaleY: 2}); err != nil {
		t.Fatal(err)
	}
	d := e.DescribeLayers()[txt]
	img := exportImage(t, e)
	ink, n := inkBounds(img, img.Bounds())
	if n == 0 {
		t.Fatal("no text ink in export")
	}
	if want := layerBox(d, 3); !ink.In(want) {
		t.Errorf("scaled text ink %v outside layer box %v", ink, want)
	}
	if ink.Dx() < plain.Dx()*3/2 || ink.Dy() < plain.Dy()*3/2 {
		t.Errorf("scaled ink %dx%d, unscaled %dx%d: want about twice as large",
			ink.Dx(), ink.Dy(), plain.Dx(), plain.Dy())
	}
}

func TestExport_RotatedText(t *testing.T) {
	e := darkEditor(t)
	txt, _ := e.AddText("")
	if err := e.TransformLayer(txt, Transform{Left: 300, Top: 100, ScaleX: 1, ScaleY: 1, Angle: 90}); err != nil {
		t.Fatal(err)
	}
	d := e.DescribeLayers()[txt]

	img := exportImage(t, e)
	ink, n := inkBounds(img, img.Bounds())
	if n == 0 {
		t.Fatal("no text ink in export")
	}

	// A quarter turn about the origin maps (x, y) to (left-y, top+x).
	want := image.Rect(
		int(d.Left-d.Height)-3,
		int(d.Top)-3,
		int(d.Left)+4,
		int(d.Top+d.Width)+4,
	)
	if !ink.In(want) {
		t.Errorf("rotated text ink %v outside %v", ink, want)
	}
	if ink.Dy() <= ink.Dx() {
		t.Errorf("rotated ink is %dx%d, want it to run vertically", ink.Dx(), ink.Dy())
	}
}
