// Package viewport implements the slippy map engine: the visible window over a
// tile source, its magnification, momentum panning and change notification.
//
// A Viewport is not safe for concurrent use. Every method is expected to run
// on the goroutine that owns the map (usually the UI event loop); listeners are
// called synchronously on that goroutine.
package viewport

import (
	"errors"
	"log/slog"
	"math"

	"github.com/olablt/gio-slippy/tiles"
)

// ErrNoSource is returned by New when no tile source is given. The viewport is
// still usable but shows nothing until SetMapSource attaches a source.
var ErrNoSource = errors.New("viewport: no tile source")

// State is a snapshot of the visible region.
type State struct {
	Center        tiles.LonLat
	Magnification int
	Width, Height int
}

type Viewport struct {
	source         tiles.Source
	minMag, maxMag int

	center        tiles.LonLat
	mag           int
	width, height int

	panMode   PanMode
	friction  float64
	hasScale  bool
	largeStep bool

	glide   glide
	tracker velocityTracker
	anim    *animation

	visible   []VisibleTile
	listeners []subscription
	nextID    int

	clock Clock
	log   *slog.Logger
}

type config struct {
	center   tiles.LonLat
	mag      int
	width    int
	height   int
	panMode  PanMode
	friction float64
	hasScale bool
	clock    Clock
	logger   *slog.Logger
}

type Option func(*config)

func WithSize(width, height int) Option {
	return func(c *config) { c.width, c.height = width, height }
}

func WithCenter(center tiles.LonLat) Option {
	return func(c *config) { c.center = center }
}

// WithMagnification requests an initial magnification; it is clamped to the
// source's range.
func WithMagnification(mag int) Option {
	return func(c *config) { c.mag = mag }
}

func WithPanMode(mode PanMode) Option {
	return func(c *config) { c.panMode = mode }
}

func WithFriction(friction float64) Option {
	return func(c *config) { c.friction = friction }
}

func WithHasScale(hasScale bool) Option {
	return func(c *config) { c.hasScale = hasScale }
}

// WithClock replaces the wall clock used to estimate pointer velocity.
func WithClock(clock Clock) Option {
	return func(c *config) { c.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// New creates a viewport over source. A nil source yields a valid, empty
// viewport together with ErrNoSource.
func New(source tiles.Source, opts ...Option) (*Viewport, error) {
	cfg := config{
		panMode:  PanFriction,
		friction: DefaultFriction,
		clock:    realClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	v := &Viewport{
		source:   source,
		center:   tiles.NewLonLat(cfg.center.Lon, cfg.center.Lat),
		width:    max(cfg.width, 0),
		height:   max(cfg.height, 0),
		panMode:  cfg.panMode,
		friction: clampFriction(cfg.friction),
		hasScale: cfg.hasScale,
		clock:    cfg.clock,
		log:      cfg.logger,
	}
	v.minMag, v.maxMag = magnificationRange(source)
	v.mag = v.clampMag(cfg.mag)
	v.visible = v.computeVisible()

	if source == nil {
		v.log.Warn("viewport created without a tile source")
		return v, ErrNoSource
	}
	return v, nil
}

func magnificationRange(source tiles.Source) (int, int) {
	if source == nil {
		return 0, tiles.MaxMagnification
	}
	return tiles.ClampRange(source.MagnificationRange())
}

func (v *Viewport) clampMag(mag int) int {
	return max(v.minMag, min(mag, v.maxMag))
}

// MapSource returns the current tile source, nil when detached.
func (v *Viewport) MapSource() tiles.Source {
	return v.source
}

// SetMapSource swaps the tile source, re-clamps the magnification into the new
// source's range and notifies listeners. A nil source detaches the viewport.
func (v *Viewport) SetMapSource(source tiles.Source) {
	v.cancelMotion()
	v.source = source
	v.minMag, v.maxMag = magnificationRange(source)
	if mag := v.clampMag(v.mag); mag != v.mag {
		v.mag = mag
		v.tracker.reset()
	}
	if source == nil {
		v.log.Warn("viewport tile source detached")
	} else {
		v.log.Debug("viewport tile source changed", "min", v.minMag, "max", v.maxMag, "magnification", v.mag)
	}
	v.changed()
}

func (v *Viewport) CenterPosition() tiles.LonLat {
	return v.center
}

func (v *Viewport) CenterPositionPixels() tiles.PixelCoordinate {
	return tiles.GeoToPixel(v.center, v.mag)
}

func (v *Viewport) Magnification() int {
	return v.mag
}

// MagnificationRange returns the bounds every magnification is clamped to.
func (v *Viewport) MagnificationRange() (int, int) {
	return v.minMag, v.maxMag
}

func (v *Viewport) Width() int  { return v.width }
func (v *Viewport) Height() int { return v.height }

func (v *Viewport) State() State {
	return State{
		Center:        v.center,
		Magnification: v.mag,
		Width:         v.width,
		Height:        v.height,
	}
}

// SetMagnification clamps mag to the source range, cancels any motion and
// notifies listeners, also when the magnification did not change.
func (v *Viewport) SetMagnification(mag int) {
	v.cancelMotion()
	v.setMag(mag)
	v.changed()
}

func (v *Viewport) setMag(mag int) {
	mag = v.clampMag(mag)
	if mag != v.mag {
		v.tracker.reset()
	}
	v.mag = mag
}

// ZoomIn increases magnification by one step, i.e. a factor of two.
func (v *Viewport) ZoomIn() {
	v.SetMagnification(v.mag + 1)
}

func (v *Viewport) ZoomOut() {
	v.SetMagnification(v.mag - 1)
}

// Scale is the linear scale of the current magnification relative to
// magnification 0.
func (v *Viewport) Scale() float64 {
	return math.Exp2(float64(v.mag))
}

// SetScale selects the magnification closest to the given linear scale.
func (v *Viewport) SetScale(scale float64) {
	if scale <= 0 || math.IsNaN(scale) {
		v.SetMagnification(v.minMag)
		return
	}
	v.SetMagnification(int(math.Round(math.Log2(scale))))
}

func (v *Viewport) HasScale() bool {
	return v.hasScale
}

// SetHasScale toggles the scale bar display.
func (v *Viewport) SetHasScale(hasScale bool) {
	if v.hasScale == hasScale {
		return
	}
	v.hasScale = hasScale
	v.changed()
}

// MetersPerPixel at the center of the viewport.
func (v *Viewport) MetersPerPixel() float64 {
	return tiles.MetersPerPixel(v.center.Lat, v.mag)
}

func (v *Viewport) SetWidth(width int) {
	v.SetSize(width, v.height)
}

func (v *Viewport) SetHeight(height int) {
	v.SetSize(v.width, height)
}

// SetSize resizes the viewport with a single notification. Negative sizes
// clamp to zero.
func (v *Viewport) SetSize(width, height int) {
	v.cancelMotion()
	v.width = max(width, 0)
	v.height = max(height, 0)
	v.changed()
}

func (v *Viewport) PanMode() PanMode {
	return v.panMode
}

// SetPanMode changes the panning policy. Leaving PanFriction stops any glide.
func (v *Viewport) SetPanMode(mode PanMode) {
	v.panMode = mode
	if mode != PanFriction {
		v.StopGlide()
	}
}

func (v *Viewport) Friction() float64 {
	return v.friction
}

// SetFriction sets the fraction of glide velocity kept per tick, clamped to
// [MinFriction, MaxFriction].
func (v *Viewport) SetFriction(friction float64) {
	v.friction = clampFriction(friction)
}

func clampFriction(f float64) float64 {
	if math.IsNaN(f) {
		return DefaultFriction
	}
	return math.Max(MinFriction, math.Min(f, MaxFriction))
}

// changed recomputes the visible tiles and notifies listeners once.
func (v *Viewport) changed() {
	v.visible = v.computeVisible()
	v.prefetch()
	v.notify()
}

// cancelMotion drops any glide, pending animated transition and pointer
// velocity estimate.
func (v *Viewport) cancelMotion() {
	v.StopGlide()
	v.anim = nil
	v.tracker.reset()
}
