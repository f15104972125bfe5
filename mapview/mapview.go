// Package mapview hosts a viewport in a Gio window: it turns pointer and key
// events into viewport operations, drives the glide timer from frame time and
// paints the visible tiles.
package mapview

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"time"

	"gioui.org/f32"
	"gioui.org/font/gofont"
	"gioui.org/io/event"
	"gioui.org/io/key"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget/material"

	"github.com/olablt/gio-slippy/tiles"
	"github.com/olablt/gio-slippy/viewport"
)

const (
	imageOpCacheSize = 256
	// maxTicksPerFrame bounds catch-up after a stalled frame.
	maxTicksPerFrame = 10
	scaleBarWidth    = 120
)

var (
	background = color.NRGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
	scaleColor = color.NRGBA{A: 0xff}
	scaleBack  = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xc0}
)

var navigationKeys = []key.Name{
	key.NameLeftArrow, key.NameRightArrow, key.NameUpArrow, key.NameDownArrow,
	"+", "=", "-", key.NameShift,
}

type MapView struct {
	vp      *viewport.Viewport
	refresh chan<- struct{}
	cancel  func()

	images *imageOpCache
	theme  *material.Theme
	size   image.Point

	dragging  bool
	lastDrag  f32.Point
	shiftDown bool

	lastFrame time.Time
	pending   time.Duration

	Logger *slog.Logger
}

// New wraps vp. Every viewport change is signalled on refresh without
// blocking; the window loop is expected to invalidate on it.
func New(vp *viewport.Viewport, refresh chan<- struct{}) *MapView {
	images, err := newImageOpCache(imageOpCacheSize)
	if err != nil {
		panic(err)
	}
	th := material.NewTheme()
	th.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))

	mv := &MapView{
		vp:      vp,
		refresh: refresh,
		images:  images,
		theme:   th,
		Logger:  slog.Default(),
	}
	mv.cancel = vp.Subscribe(viewport.ListenerFunc(func(*viewport.Viewport) { mv.signal() }))
	return mv
}

// Viewport returns the hosted engine.
func (mv *MapView) Viewport() *viewport.Viewport {
	return mv.vp
}

// Close detaches the view from its viewport.
func (mv *MapView) Close() {
	mv.cancel()
	mv.images.purge()
}

func (mv *MapView) signal() {
	select {
	case mv.refresh <- struct{}{}:
	default:
	}
}

func (mv *MapView) Layout(gtx layout.Context) layout.Dimensions {
	tag := mv

	// process events
	for {
		ev, ok := gtx.Event(
			key.FocusFilter{Target: tag},
			pointer.Filter{
				Target:  tag,
				Kinds:   pointer.Scroll | pointer.Drag | pointer.Press | pointer.Release | pointer.Cancel,
				ScrollY: pointer.ScrollRange{Min: -10, Max: 10},
			},
		)
		if !ok {
			break
		}
		if x, ok := ev.(pointer.Event); ok {
			if x.Kind == pointer.Press {
				gtx.Execute(key.FocusCmd{Tag: tag})
			}
			mv.handlePointer(x)
		}
	}
	for {
		ev, ok := gtx.Event(keyFilters(tag)...)
		if !ok {
			break
		}
		if x, ok := ev.(key.Event); ok {
			mv.handleKey(x)
		}
	}

	// Update size if changed
	if mv.size != gtx.Constraints.Max {
		mv.size = gtx.Constraints.Max
		mv.vp.SetSize(mv.size.X, mv.size.Y)
	}

	if mv.tick(gtx.Now) {
		gtx.Execute(op.InvalidateCmd{})
	}

	// Confine the area of interest to a gtx Max
	defer clip.Rect{Max: mv.size}.Push(gtx.Ops).Pop()
	event.Op(gtx.Ops, tag)
	paint.Fill(gtx.Ops, background)

	mv.vp.ForEachTile(func(vt viewport.VisibleTile, img image.Image) {
		transform := op.Offset(vt.Offset).Push(gtx.Ops)
		area := clip.Rect{Max: img.Bounds().Size()}.Push(gtx.Ops)
		mv.images.get(vt.Tile, img).Add(gtx.Ops)
		paint.PaintOp{}.Add(gtx.Ops)
		area.Pop()
		transform.Pop()
	})

	if mv.vp.HasScale() {
		mv.layoutScale(gtx)
	}

	return layout.Dimensions{Size: mv.size}
}

func keyFilters(tag event.Tag) []event.Filter {
	filters := make([]event.Filter, 0, len(navigationKeys))
	for _, name := range navigationKeys {
		filters = append(filters, key.Filter{Focus: tag, Name: name, Optional: key.ModShift})
	}
	return filters
}

func (mv *MapView) handlePointer(e pointer.Event) {
	switch e.Kind {
	case pointer.Press:
		mv.dragging = true
		mv.lastDrag = e.Position
	case pointer.Drag:
		if !mv.dragging {
			return
		}
		delta := e.Position.Sub(mv.lastDrag)
		mv.lastDrag = e.Position
		if delta != (f32.Point{}) {
			mv.vp.PanPixels(float64(delta.X), float64(delta.Y))
		}
	case pointer.Release:
		if mv.dragging {
			mv.dragging = false
			mv.vp.StartGlide()
		}
	case pointer.Cancel:
		mv.dragging = false
	case pointer.Scroll:
		switch {
		case e.Scroll.Y < 0:
			mv.vp.ZoomAt(1, float64(e.Position.X), float64(e.Position.Y))
		case e.Scroll.Y > 0:
			mv.vp.ZoomAt(-1, float64(e.Position.X), float64(e.Position.Y))
		}
	}
}

func (mv *MapView) handleKey(e key.Event) {
	// Shift is tracked from modifiers too; not every platform reports its
	// own press and release.
	if shift := e.Modifiers.Contain(key.ModShift) || (e.Name == key.NameShift && e.State == key.Press); shift != mv.shiftDown {
		mv.shiftDown = shift
		if shift {
			mv.vp.HandleKeyPress(viewport.KeyShift)
		} else {
			mv.vp.HandleKeyRelease(viewport.KeyShift)
		}
	}
	k := keyCode(e.Name)
	if k == viewport.KeyShift || k == viewport.KeyUnknown {
		return
	}
	if e.State == key.Press {
		mv.vp.HandleKeyPress(k)
	} else {
		mv.vp.HandleKeyRelease(k)
	}
}

func keyCode(name key.Name) viewport.Key {
	switch name {
	case key.NameLeftArrow:
		return viewport.KeyLeft
	case key.NameRightArrow:
		return viewport.KeyRight
	case key.NameUpArrow:
		return viewport.KeyUp
	case key.NameDownArrow:
		return viewport.KeyDown
	case "+", "=":
		return viewport.KeyZoomIn
	case "-":
		return viewport.KeyZoomOut
	case key.NameShift:
		return viewport.KeyShift
	}
	return viewport.KeyUnknown
}

// tick feeds the elapsed frame time to the viewport in fixed TickInterval
// steps and reports whether another frame is needed.
func (mv *MapView) tick(now time.Time) bool {
	if !mv.vp.Animating() {
		mv.lastFrame = time.Time{}
		mv.pending = 0
		return false
	}
	if mv.lastFrame.IsZero() {
		mv.lastFrame = now
		return true
	}
	mv.pending += now.Sub(mv.lastFrame)
	mv.lastFrame = now
	for i := 0; mv.pending >= viewport.TickInterval && i < maxTicksPerFrame; i++ {
		mv.pending -= viewport.TickInterval
		if !mv.vp.Advance(viewport.TickInterval) {
			mv.Logger.Debug("viewport settled", "center", mv.vp.CenterPosition(), "magnification", mv.vp.Magnification())
			mv.lastFrame = time.Time{}
			mv.pending = 0
			return false
		}
	}
	mv.pending = min(mv.pending, viewport.TickInterval)
	return true
}

func (mv *MapView) layoutScale(gtx layout.Context) {
	meters, px := tiles.ScaleBar(mv.vp.MetersPerPixel(), scaleBarWidth)
	if px <= 0 {
		return
	}
	margin := gtx.Dp(unit.Dp(8))
	barHeight := gtx.Dp(unit.Dp(4))
	origin := image.Pt(margin, mv.size.Y-margin-barHeight)

	lbl := material.Label(mv.theme, unit.Sp(12), formatDistance(meters))
	lbl.Color = scaleColor
	macro := op.Record(gtx.Ops)
	labelGtx := gtx
	labelGtx.Constraints.Min = image.Point{}
	dims := lbl.Layout(labelGtx)
	call := macro.Stop()

	box := image.Rect(origin.X-margin/2, origin.Y-dims.Size.Y-margin/2, origin.X+max(px, dims.Size.X)+margin/2, origin.Y+barHeight+margin/2)
	paint.FillShape(gtx.Ops, scaleBack, clip.Rect(box).Op())
	paint.FillShape(gtx.Ops, scaleColor, clip.Rect{Min: origin, Max: origin.Add(image.Pt(px, barHeight))}.Op())

	stack := op.Offset(image.Pt(origin.X, origin.Y-dims.Size.Y)).Push(gtx.Ops)
	call.Add(gtx.Ops)
	stack.Pop()
}

func formatDistance(meters float64) string {
	if meters >= 1000 {
		return fmt.Sprintf("%g km", meters/1000)
	}
	return fmt.Sprintf("%g m", meters)
}
