package scene

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/gogpu/gg"
	"github.com/sirupsen/logrus"
)

// Fixed canvas geometry and defaults.
const (
	Width           = 500
	Height          = 500
	BackgroundColor = "#fff"
	DefaultText     = "Editable Text"

	// spawnRange leaves room for the shape's own extent inside the canvas.
	spawnRange = 400
)

var (
	ErrNotMounted       = errors.New("canvas is not mounted")
	ErrLocked           = errors.New("layer is locked")
	ErrNoLayer          = errors.New("layer not found")
	ErrNotText          = errors.New("layer is not a textbox")
	ErrInvalidTransform = errors.New("scale factors must be non-zero")
	ErrSuperseded       = errors.New("superseded by a newer background load")
	ErrDecode           = errors.New("cannot decode background image")
)

// Observer receives the layer list after each scene mutation.
type Observer func(sceneID string, layers []LayerDescriptor)

type Option func(*Editor)

func WithFetcher(f Fetcher) Option {
	return func(e *Editor) { e.fetcher = f }
}

// WithRand makes shape placement deterministic.
func WithRand(r *rand.Rand) Option {
	return func(e *Editor) { e.rng = r }
}

func WithObserver(o Observer) Option {
	return func(e *Editor) { e.observer = o }
}

func withID(id string) Option {
	return func(e *Editor) { e.id = id }
}

// Editor owns a single scene and the rendering surface it is painted on.
// All operations are no-ops returning ErrNotMounted until Mount is called.
type Editor struct {
	mu         sync.Mutex
	id         string
	surface    *gg.Context
	background string
	layers     []Layer
	generation uint64

	fetcher  Fetcher
	rng      *rand.Rand
	observer Observer
}

func NewEditor(opts ...Option) *Editor {
	e := &Editor{background: BackgroundColor}
	for _, opt := range opts {
		opt(e)
	}
	if e.fetcher == nil {
		e.fetcher = NewHTTPFetcher(nil)
	}
	return e
}

func (e *Editor) ID() string { return e.id }

func (e *Editor) log() *logrus.Entry {
	return logrus.WithField("scene_id", e.id)
}

// Mount acquires the rendering surface. Mounting twice is harmless.
func (e *Editor) Mount() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.surface == nil {
		e.surface = gg.NewContext(Width, Height)
		e.log().Debug("Canvas mounted")
	}
}

// Unmount releases the surface and discards the scene.
func (e *Editor) Unmount() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.surface == nil {
		return
	}
	if err := e.surface.Close(); err != nil {
		e.log().WithError(err).Warn("Failed to release canvas")
	}
	e.surface = nil
	e.layers = nil
	e.generation++
	e.log().Debug("Canvas unmounted")
}

func (e *Editor) Mounted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.surface != nil
}

// LoadBackground resets the scene and installs the image at url as the
// locked bottom layer, stretched to the canvas. The surface is re-created
// as part of the reset.
//
// The fetch runs without holding the editor lock. If another load or an
// unmount happens meanwhile, the result is dropped and ErrSuperseded is
// returned.
func (e *Editor) LoadBackground(ctx context.Context, url string) error {
	e.mu.Lock()
	if e.surface == nil {
		e.mu.Unlock()
		return ErrNotMounted
	}
	if err := e.surface.Close(); err != nil {
		e.log().WithError(err).Warn("Failed to release canvas")
	}
	e.surface = gg.NewContext(Width, Height)
	e.layers = nil
	e.background = BackgroundColor
	e.generation++
	gen := e.generation
	e.mu.Unlock()
	e.emit()

	log := e.log().WithField("url", url)
	log.Info("Loading background")

	data, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		if e.superseded(gen) {
			log.Debug("Dropping failed stale background")
			return ErrSuperseded
		}
		log.WithError(err).Warn("Failed to fetch background")
		return fmt.Errorf("load background: %w", err)
	}
	img, err := decodeImage(data)
	if err != nil {
		if e.superseded(gen) {
			log.Debug("Dropping failed stale background")
			return ErrSuperseded
		}
		log.WithError(err).Warn("Failed to decode background")
		return err
	}

	b := img.Bounds()
	bg := &Image{
		Transform: Transform{
			ScaleX: float64(Width) / float64(b.Dx()),
			ScaleY: float64(Height) / float64(b.Dy()),
		},
		Source:        url,
		NaturalWidth:  b.Dx(),
		NaturalHeight: b.Dy(),
		buf:           gg.ImageBufFromImage(img),
	}

	e.mu.Lock()
	if e.surface == nil || e.generation != gen {
		e.mu.Unlock()
		log.Debug("Dropping stale background")
		return ErrSuperseded
	}
	e.layers = append([]Layer{bg}, e.layers...)
	e.mu.Unlock()

	log.WithFields(logrus.Fields{
		"natural_width":  b.Dx(),
		"natural_height": b.Dy(),
	}).Info("Background loaded")
	e.emit()
	return nil
}

// superseded reports whether the load started at gen has been replaced by
// a newer load or an unmount.
func (e *Editor) superseded(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.surface == nil || e.generation != gen
}

// BackgroundSource returns the URL of the current background image.
func (e *Editor) BackgroundSource() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.layers) == 0 {
		return "", false
	}
	if img, ok := e.layers[0].(*Image); ok {
		return img.Source, true
	}
	return "", false
}

func (e *Editor) spawn() float64 {
	if e.rng != nil {
		return e.rng.Float64() * spawnRange
	}
	return rand.Float64() * spawnRange
}

func newShape(kind Kind, top, left float64) (Layer, error) {
	switch kind {
	case KindRect:
		return &Rect{Transform: identity(left, top), Width: 100, Height: 60, Fill: "#D84D42"}, nil
	case KindCircle:
		return &Circle{Transform: identity(left, top), Radius: 50, Fill: "#e07b39"}, nil
	case KindTriangle:
		return &Triangle{Transform: identity(left, top), Width: 100, Height: 100, Fill: "#2596be"}, nil
	case KindPolygon:
		return &Polygon{
			Transform: identity(100, 100),
			Points: []Point{
				{X: 200, Y: 0},
				{X: 250, Y: 50},
				{X: 250, Y: 100},
				{X: 200, Y: 150},
				{X: 150, Y: 100},
				{X: 150, Y: 50},
			},
			Fill: "#063970",
		}, nil
	}
	return nil, fmt.Errorf("cannot add shape of kind %q", kind)
}

// AddShape appends a selectable shape with the kind's default geometry and
// returns its index.
func (e *Editor) AddShape(kind Kind) (int, error) {
	e.mu.Lock()
	if e.surface == nil {
		e.mu.Unlock()
		return -1, ErrNotMounted
	}
	top := e.spawn()
	left := e.spawn()
	layer, err := newShape(kind, top, left)
	if err != nil {
		e.mu.Unlock()
		return -1, err
	}
	e.layers = append(e.layers, layer)
	idx := len(e.layers) - 1
	e.mu.Unlock()

	e.log().WithFields(logrus.Fields{"kind": kind, "index": idx}).Debug("Shape added")
	e.emit()
	return idx, nil
}

// AddText appends an editable textbox. Empty content falls back to
// DefaultText.
func (e *Editor) AddText(content string) (int, error) {
	if content == "" {
		content = DefaultText
	}
	t := &Text{
		Transform: identity(100, 100),
		Content:   content,
		FontSize:  24,
		Bold:      true,
		Fill:      "#ffff",
	}
	if err := t.layout(); err != nil {
		return -1, err
	}

	e.mu.Lock()
	if e.surface == nil {
		e.mu.Unlock()
		return -1, ErrNotMounted
	}
	e.layers = append(e.layers, t)
	idx := len(e.layers) - 1
	e.mu.Unlock()

	e.log().WithField("index", idx).Debug("Text added")
	e.emit()
	return idx, nil
}

func (e *Editor) selectable(index int) (Layer, error) {
	if e.surface == nil {
		return nil, ErrNotMounted
	}
	if index < 0 || index >= len(e.layers) {
		return nil, fmt.Errorf("%w: index %d", ErrNoLayer, index)
	}
	l := e.layers[index]
	if l.Locked() {
		return nil, fmt.Errorf("%w: index %d", ErrLocked, index)
	}
	return l, nil
}

// TransformLayer moves, scales or rotates a selectable layer in place.
func (e *Editor) TransformLayer(index int, t Transform) error {
	return e.UpdateTransform(index, func(cur *Transform) { *cur = t })
}

// UpdateTransform hands the current transform of a selectable layer to
// update and stores the result. The scene stays locked throughout, so the
// index cannot shift under a concurrent background load; update must not
// call back into the editor. Results with a zero scale factor are rejected.
func (e *Editor) UpdateTransform(index int, update func(*Transform)) error {
	e.mu.Lock()
	l, err := e.selectable(index)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	next := l.Transformation()
	update(&next)
	if next.ScaleX == 0 || next.ScaleY == 0 {
		e.mu.Unlock()
		return ErrInvalidTransform
	}
	*l.transform() = next
	e.mu.Unlock()

	e.emit()
	return nil
}

// EditText replaces the content of a textbox layer.
func (e *Editor) EditText(index int, content string) error {
	e.mu.Lock()
	l, err := e.selectable(index)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	t, ok := l.(*Text)
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: index %d", ErrNotText, index)
	}
	prev := t.Content
	t.Content = content
	if err := t.layout(); err != nil {
		t.Content = prev
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	e.emit()
	return nil
}

// Export flattens the scene into a PNG. It does not modify the scene, so
// repeated calls without intervening edits yield identical bytes.
func (e *Editor) Export() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.surface == nil {
		return nil, ErrNotMounted
	}

	dc := e.surface
	dc.Identity()
	dc.ClearPath()
	dc.ClearWithColor(gg.Hex(e.background))
	for i, l := range e.layers {
		if err := l.draw(dc); err != nil {
			return nil, fmt.Errorf("draw layer %d (%s): %w", i, l.Kind(), err)
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DescribeLayers snapshots every layer in paint order.
func (e *Editor) DescribeLayers() []LayerDescriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.describeLocked()
}

func (e *Editor) describeLocked() []LayerDescriptor {
	out := make([]LayerDescriptor, 0, len(e.layers))
	for _, l := range e.layers {
		out = append(out, describe(l))
	}
	return out
}

// Len reports the number of layers, background included.
func (e *Editor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.layers)
}

func (e *Editor) emit() {
	if e.observer == nil {
		return
	}
	e.mu.Lock()
	layers := e.describeLocked()
	e.mu.Unlock()
	e.observer(e.id, layers)
}
