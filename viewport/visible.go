package viewport

import (
	"errors"
	"image"
	"math"

	"github.com/olablt/gio-slippy/tiles"
)

// VisibleTile is a tile address together with the screen position of its
// top-left corner relative to the viewport's top-left corner.
type VisibleTile struct {
	Tile   tiles.Tile
	Offset image.Point
}

// VisibleTiles returns the tiles covering the viewport plus one tile of margin
// on every side. The slice is shared; callers must not modify it.
func (v *Viewport) VisibleTiles() []VisibleTile {
	return v.visible
}

// computeVisible intersects the viewport's pixel box with the tile grid.
// Columns wrap around the world, rows outside the plane are dropped.
func (v *Viewport) computeVisible() []VisibleTile {
	if v.source == nil {
		return nil
	}
	c := v.CenterPositionPixels()
	left := int(math.Round(c.X - float64(v.width)/2))
	top := int(math.Round(c.Y - float64(v.height)/2))
	right := left + max(v.width, 1) - 1
	bottom := top + max(v.height, 1) - 1

	n := 1 << uint(v.mag)
	firstCol, lastCol := floorDiv(left, tiles.TileSize)-1, floorDiv(right, tiles.TileSize)+1
	firstRow := max(floorDiv(top, tiles.TileSize)-1, 0)
	lastRow := min(floorDiv(bottom, tiles.TileSize)+1, n-1)

	visible := make([]VisibleTile, 0, max(lastCol-firstCol+1, 0)*max(lastRow-firstRow+1, 0))
	for row := firstRow; row <= lastRow; row++ {
		for col := firstCol; col <= lastCol; col++ {
			tile, _ := tiles.Tile{X: col, Y: row, Zoom: v.mag}.Normalize()
			visible = append(visible, VisibleTile{
				Tile:   tile,
				Offset: image.Point{X: col*tiles.TileSize - left, Y: row*tiles.TileSize - top},
			})
		}
	}
	return visible
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}

// prefetch hands the distinct visible addresses to the source.
func (v *Viewport) prefetch() {
	p, ok := v.source.(tiles.Prefetcher)
	if !ok || len(v.visible) == 0 {
		return
	}
	seen := make(map[tiles.Tile]bool, len(v.visible))
	addrs := make([]tiles.Tile, 0, len(v.visible))
	for _, vt := range v.visible {
		if !seen[vt.Tile] {
			seen[vt.Tile] = true
			addrs = append(addrs, vt.Tile)
		}
	}
	p.Prefetch(addrs)
}

// ForEachTile asks the source for every visible tile and calls fn with those
// that are available. Pending or failed tiles are skipped; they are simply not
// drawn yet.
func (v *Viewport) ForEachTile(fn func(vt VisibleTile, img image.Image)) {
	if v.source == nil {
		return
	}
	for _, vt := range v.visible {
		img, err := v.source.GetTile(vt.Tile)
		if err != nil {
			if !errors.Is(err, tiles.ErrPending) {
				v.log.Debug("tile unavailable", "tile", vt.Tile, "error", err)
			}
			continue
		}
		if img != nil {
			fn(vt, img)
		}
	}
}
