package tiles

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrPending is returned by a Source whose tile is not available yet.
	ErrPending = errors.New("tiles: tile pending")
	// ErrOutOfRange is returned for addresses outside the source's plane.
	ErrOutOfRange = errors.New("tiles: tile out of range")
)

// Source supplies tiles. GetTile must not block on slow I/O when used by a
// viewport; asynchronous sources return ErrPending until the tile is loaded.
type Source interface {
	GetTile(tile Tile) (image.Image, error)
	MagnificationRange() (min, max int)
}

// Prefetcher is implemented by sources that accept the visible tile set ahead
// of drawing.
type Prefetcher interface {
	Prefetch(tiles []Tile)
}

// Fetcher is implemented by blocking sources that honour cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, tile Tile) (image.Image, error)
}

// ClampRange bounds a source's magnification range to [0, MaxMagnification].
func ClampRange(lo, hi int) (int, int) {
	lo = max(0, min(lo, MaxMagnification))
	hi = max(lo, min(hi, MaxMagnification))
	return lo, hi
}

// InRange reports whether the tile exists at its zoom within [lo, hi].
func InRange(t Tile, lo, hi int) bool {
	if t.Zoom < lo || t.Zoom > hi {
		return false
	}
	n := 1 << uint(t.Zoom)
	return t.X >= 0 && t.X < n && t.Y >= 0 && t.Y < n
}
