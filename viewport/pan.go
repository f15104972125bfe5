package viewport

import (
	"math"
	"time"

	"github.com/olablt/gio-slippy/tiles"
)

// SetCenterPosition moves the center to pos. Pointer events always apply
// immediately and feed the glide velocity estimate; other calls animate the
// transition unless immediate is set. Any glide is canceled.
func (v *Viewport) SetCenterPosition(pos tiles.LonLat, immediate, isPointerEvent bool) {
	pos = tiles.NewLonLat(pos.Lon, pos.Lat)
	if isPointerEvent {
		if v.panMode == PanDisabled {
			return
		}
		v.StopGlide()
		v.anim = nil
		v.track(pos)
		v.center = pos
		v.changed()
		return
	}

	v.cancelMotion()
	v.moveTo(pos, immediate)
	v.changed()
}

// SetCenterPositionZoom changes center and magnification with a single
// notification. The magnification is clamped first and always applied at once.
func (v *Viewport) SetCenterPositionZoom(pos tiles.LonLat, mag int, immediate, isPointerEvent bool) {
	pos = tiles.NewLonLat(pos.Lon, pos.Lat)
	mag = v.clampMag(mag)
	if isPointerEvent {
		v.StopGlide()
		v.anim = nil
		if v.panMode == PanDisabled {
			pos = v.center
		} else if mag == v.mag {
			v.track(pos)
		}
		immediate = true
	} else {
		v.cancelMotion()
	}
	v.setMag(mag)
	v.moveTo(pos, immediate)
	v.changed()
}

func (v *Viewport) moveTo(pos tiles.LonLat, immediate bool) {
	if immediate || pos == v.center {
		v.center = pos
		return
	}
	from := v.CenterPositionPixels()
	to := tiles.GeoToPixel(pos, v.mag)
	// take the short way around the antimeridian
	size := tiles.WorldSize(v.mag)
	if dx := to.X - from.X; dx > size/2 {
		to.X -= size
	} else if dx < -size/2 {
		to.X += size
	}
	v.anim = &animation{from: from, to: to, target: pos, duration: AnimationDuration}
}

// Scroll pans by ScrollStep pixels, or LargeStepFactor times that with
// largeStep. Longitude wraps around, latitude stops at the plane's edge.
func (v *Viewport) Scroll(dir Direction, largeStep bool) {
	v.cancelMotion()
	step := float64(ScrollStep)
	if largeStep {
		step *= LargeStepFactor
	}
	dx, dy := dir.delta()
	p := v.CenterPositionPixels()
	p.X += dx * step
	p.Y += dy * step
	v.center = tiles.PixelToGeo(p)
	v.changed()
}

// PanPixels drags the map by a screen delta, as a pointer does.
func (v *Viewport) PanPixels(dx, dy float64) {
	p := v.CenterPositionPixels()
	p.X -= dx
	p.Y -= dy
	v.SetCenterPosition(tiles.PixelToGeo(p), true, true)
}

// ZoomAt changes magnification by delta keeping the map point under the
// screen position (x, y) in place.
func (v *Viewport) ZoomAt(delta int, x, y float64) {
	v.cancelMotion()

	offsetX := x - float64(v.width)/2
	offsetY := y - float64(v.height)/2
	c := v.CenterPositionPixels()
	point := tiles.PixelCoordinate{X: c.X + offsetX, Y: c.Y + offsetY, Magnification: v.mag}

	oldMag := v.mag
	v.setMag(v.mag + delta)
	if v.mag != oldMag {
		point = point.Scaled(v.mag)
		v.center = tiles.PixelToGeo(tiles.PixelCoordinate{
			X:             point.X - offsetX,
			Y:             point.Y - offsetY,
			Magnification: v.mag,
		})
	}
	v.changed()
}

// animation interpolates a programmatic center change.
type animation struct {
	from, to          tiles.PixelCoordinate
	target            tiles.LonLat
	elapsed, duration time.Duration
}

// step advances the animation and reports whether it has finished.
func (a *animation) step(dt time.Duration) (tiles.PixelCoordinate, bool) {
	a.elapsed += dt
	t := math.Min(1, float64(a.elapsed)/float64(a.duration))
	e := 1 - math.Pow(1-t, 3)
	return tiles.PixelCoordinate{
		X:             a.from.X + (a.to.X-a.from.X)*e,
		Y:             a.from.Y + (a.to.Y-a.from.Y)*e,
		Magnification: a.from.Magnification,
	}, t >= 1
}

func (v *Viewport) advanceAnimation(dt time.Duration) {
	p, done := v.anim.step(dt)
	if done {
		v.center = v.anim.target
		v.anim = nil
		return
	}
	v.center = tiles.PixelToGeo(p)
}
