package tiles

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"
)

const (
	TileSize           = 256
	earthCircumference = 40075016.686 // meters at equator

	// MaxLatitude is the latitude at which the Mercator plane ends.
	MaxLatitude = 85.05112878
	// MaxMagnification bounds every source range.
	MaxMagnification = 24
)

// Tile represents a map tile coordinates
type Tile struct {
	X, Y, Zoom int
}

// LonLat represents a geographical point
type LonLat struct {
	Lon, Lat float64
}

// PixelCoordinate is a position on the world plane of one magnification level.
// The origin is the north-west corner of the plane.
type PixelCoordinate struct {
	X, Y          float64
	Magnification int
}

// NewLonLat wraps longitude into [-180, 180) and clamps latitude to [-90, 90].
// NaN coordinates become 0, infinite latitudes land on the poles.
func NewLonLat(lon, lat float64) LonLat {
	if math.IsNaN(lat) {
		lat = 0
	}
	return LonLat{Lon: WrapLon(lon), Lat: clamp(lat, -90, 90)}
}

func (ll LonLat) String() string {
	return fmt.Sprintf("%.6f,%.6f", ll.Lon, ll.Lat)
}

// WrapLon normalizes a longitude into [-180, 180). Non-finite input has no
// meaningful position on the circle and maps to 0.
func WrapLon(lon float64) float64 {
	if lon >= -180 && lon < 180 {
		return lon
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return 0
	}
	lon = math.Remainder(lon, 360)
	if lon >= 180 {
		lon -= 360
	}
	return lon
}

// WorldSize returns the side of the world plane in pixels at the given magnification.
func WorldSize(mag int) float64 {
	return TileSize * math.Exp2(float64(mag))
}

// GeoToPixel projects a geographical point onto the world plane.
// Latitudes beyond MaxLatitude land on the plane's edge.
func GeoToPixel(ll LonLat, mag int) PixelCoordinate {
	size := WorldSize(mag)
	latRad := clamp(ll.Lat, -MaxLatitude, MaxLatitude) * math.Pi / 180
	x := size * (WrapLon(ll.Lon) + 180) / 360
	y := size * (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2
	return PixelCoordinate{X: x, Y: clamp(y, 0, size), Magnification: mag}
}

// PixelToGeo converts world pixel coordinates back to geographical coordinates
func PixelToGeo(p PixelCoordinate) LonLat {
	size := WorldSize(p.Magnification)
	x := math.Mod(p.X, size)
	if x < 0 {
		x += size
	}
	y := clamp(p.Y, 0, size)
	lng := x/size*360 - 180
	lat := 180 / math.Pi * math.Atan(math.Sinh(math.Pi*(1-2*y/size)))
	return NewLonLat(lng, lat)
}

// Scaled returns the same point on the plane of another magnification.
func (p PixelCoordinate) Scaled(mag int) PixelCoordinate {
	f := math.Exp2(float64(mag - p.Magnification))
	return PixelCoordinate{X: p.X * f, Y: p.Y * f, Magnification: mag}
}

// TileAt returns the tile containing the point
func TileAt(ll LonLat, zoom int) Tile {
	p := GeoToPixel(ll, zoom)
	n := 1 << uint(zoom)
	return Tile{
		X:    min(int(p.X/TileSize), n-1),
		Y:    min(int(p.Y/TileSize), n-1),
		Zoom: zoom,
	}
}

// NorthWest returns the geographical position of the tile's top-left corner
func (t Tile) NorthWest() LonLat {
	return PixelToGeo(PixelCoordinate{
		X:             float64(t.X * TileSize),
		Y:             float64(t.Y * TileSize),
		Magnification: t.Zoom,
	})
}

// Center returns the geographical center of the tile.
func (t Tile) Center() LonLat {
	c := t.orb().Center()
	return LonLat{Lon: c.Lon(), Lat: c.Lat()}
}

// Key returns a unique string key for a tile
func (t Tile) Key() string {
	return fmt.Sprintf("%d/%d/%d", t.Zoom, t.X, t.Y)
}

func (t Tile) String() string {
	return t.Key()
}

// Quadkey returns the Bing-style quadkey of the tile.
func (t Tile) Quadkey() string {
	if t.Zoom == 0 {
		return ""
	}
	q := strconv.FormatUint(t.orb().Quadkey(), 4)
	if len(q) < t.Zoom {
		q = strings.Repeat("0", t.Zoom-len(q)) + q
	}
	return q
}

// Normalize wraps the column around the world and reports whether the row
// exists at this zoom.
func (t Tile) Normalize() (Tile, bool) {
	n := 1 << uint(t.Zoom)
	t.X %= n
	if t.X < 0 {
		t.X += n
	}
	return t, t.Y >= 0 && t.Y < n
}

func (t Tile) orb() maptile.Tile {
	return maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Zoom))
}

// MetersPerPixel calculates the meters per pixel at a given latitude and magnification
func MetersPerPixel(latitude float64, mag int) float64 {
	return earthCircumference * math.Cos(latitude*math.Pi/180) / WorldSize(mag)
}

// ScaleBar picks a round distance (1, 2 or 5 times a power of ten meters) whose
// length at metersPerPixel fits in maxPx, and returns it with its pixel length.
func ScaleBar(metersPerPixel float64, maxPx int) (meters float64, px int) {
	if metersPerPixel <= 0 || maxPx <= 0 {
		return 0, 0
	}
	limit := metersPerPixel * float64(maxPx)
	pow := math.Pow(10, math.Floor(math.Log10(limit)))
	if pow*10 <= limit {
		pow *= 10
	} else if pow > limit {
		pow /= 10
	}
	for _, step := range []float64{5, 2, 1} {
		if step*pow <= limit {
			meters = step * pow
			break
		}
	}
	return meters, int(math.Round(meters / metersPerPixel))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
