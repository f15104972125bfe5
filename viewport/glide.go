package viewport

import (
	"math"
	"time"

	"github.com/olablt/gio-slippy/tiles"
)

// Clock provides the time used to estimate pointer velocity.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// glide is the momentum state in pixels per second.
type glide struct {
	vx, vy float64
	active bool
}

// velocityTracker estimates pan velocity from pointer-driven center changes.
type velocityTracker struct {
	last   tiles.PixelCoordinate
	at     time.Time
	vx, vy float64
	valid  bool
	seen   bool
}

func (t *velocityTracker) reset() {
	*t = velocityTracker{}
}

func (t *velocityTracker) add(p tiles.PixelCoordinate, now time.Time) {
	if !t.seen || p.Magnification != t.last.Magnification {
		*t = velocityTracker{last: p, at: now, seen: true}
		return
	}
	dt := now.Sub(t.at)
	if dt <= 0 {
		return
	}
	if dt > maxSampleGap {
		*t = velocityTracker{last: p, at: now, seen: true}
		return
	}

	size := tiles.WorldSize(p.Magnification)
	dx := p.X - t.last.X
	if dx > size/2 {
		dx -= size
	} else if dx < -size/2 {
		dx += size
	}
	secs := dt.Seconds()
	vx, vy := dx/secs, (p.Y-t.last.Y)/secs
	if t.valid {
		vx = 0.6*vx + 0.4*t.vx
		vy = 0.6*vy + 0.4*t.vy
	}
	t.vx, t.vy, t.valid = vx, vy, true
	t.last, t.at = p, now
}

func (v *Viewport) track(pos tiles.LonLat) {
	v.tracker.add(tiles.GeoToPixel(pos, v.mag), v.clock.Now())
}

// StartGlide starts momentum panning from the last pointer velocity. It does
// nothing unless the pan mode is PanFriction and the pointer moved recently.
func (v *Viewport) StartGlide() {
	t := v.tracker
	v.tracker.reset()
	if v.panMode != PanFriction || !t.valid {
		return
	}
	if v.clock.Now().Sub(t.at) > maxSampleGap {
		return
	}
	if math.Hypot(t.vx, t.vy) < GlideEpsilon {
		return
	}
	v.anim = nil
	v.glide = glide{vx: t.vx, vy: t.vy, active: true}
}

// StopGlide ends momentum panning. It is safe to call at any time.
func (v *Viewport) StopGlide() {
	v.glide = glide{}
}

func (v *Viewport) Gliding() bool {
	return v.glide.active
}

// Animating reports whether Advance has work to do.
func (v *Viewport) Animating() bool {
	return v.glide.active || v.anim != nil
}

// GlideVelocity returns the current glide velocity in pixels per second.
func (v *Viewport) GlideVelocity() (vx, vy float64) {
	return v.glide.vx, v.glide.vy
}

// Advance is the animation tick, driven by an external timer. It moves a
// pending animated center change or the glide by dt, notifies listeners when
// anything moved and reports whether more ticks are needed.
func (v *Viewport) Advance(dt time.Duration) bool {
	if dt <= 0 || !v.Animating() {
		return v.Animating()
	}
	if v.anim != nil {
		v.advanceAnimation(dt)
	} else {
		v.advanceGlide(dt)
	}
	v.changed()
	return v.Animating()
}

func (v *Viewport) advanceGlide(dt time.Duration) {
	g := &v.glide
	p := v.CenterPositionPixels()
	secs := dt.Seconds()
	p.X += g.vx * secs
	p.Y += g.vy * secs

	g.vx *= v.friction
	g.vy *= v.friction
	if math.Hypot(g.vx, g.vy) < GlideEpsilon {
		*g = glide{}
	}

	// hitting the top or bottom of the plane ends the glide; longitude wraps
	if size := tiles.WorldSize(p.Magnification); p.Y < 0 || p.Y > size {
		p.Y = math.Max(0, math.Min(p.Y, size))
		*g = glide{}
	}
	v.center = tiles.PixelToGeo(p)
}
