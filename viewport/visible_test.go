package viewport_test

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olablt/gio-slippy/tiles"
	"github.com/olablt/gio-slippy/viewport"
)

func TestVisibleTilesCoverViewport(t *testing.T) {
	v, _ := newViewport(t, viewport.WithSize(512, 512), viewport.WithMagnification(2))

	visible := v.VisibleTiles()
	assert.Len(t, visible, 16)
	assert.Contains(t, visible, viewport.VisibleTile{
		Tile:   tiles.Tile{X: 1, Y: 1, Zoom: 2},
		Offset: image.Point{},
	})
	assert.Contains(t, visible, viewport.VisibleTile{
		Tile:   tiles.Tile{X: 0, Y: 0, Zoom: 2},
		Offset: image.Point{X: -256, Y: -256},
	})
}

func TestVisibleTilesWrapAntimeridian(t *testing.T) {
	v, _ := newViewport(t,
		viewport.WithSize(256, 256),
		viewport.WithMagnification(1),
		viewport.WithCenter(tiles.LonLat{Lon: -180}),
	)

	visible := v.VisibleTiles()
	require.Len(t, visible, 8)
	assert.Contains(t, visible, viewport.VisibleTile{
		Tile:   tiles.Tile{X: 1, Y: 0, Zoom: 1},
		Offset: image.Point{X: -128, Y: -128},
	})
	assert.Contains(t, visible, viewport.VisibleTile{
		Tile:   tiles.Tile{X: 0, Y: 1, Zoom: 1},
		Offset: image.Point{X: 128, Y: 128},
	})
}

func TestVisibleTilesAlwaysInRange(t *testing.T) {
	states := []struct {
		center tiles.LonLat
		mag    int
		w, h   int
	}{
		{tiles.LonLat{}, 0, 1024, 1024},
		{tiles.LonLat{Lon: 179.99, Lat: 85}, 3, 800, 600},
		{tiles.LonLat{Lon: -179.99, Lat: -85}, 5, 320, 480},
		{tiles.LonLat{Lon: 13.4, Lat: 52.5}, 18, 1920, 1080},
		{tiles.LonLat{Lon: 45}, 1, 0, 0},
	}
	for _, s := range states {
		v, _ := newViewport(t,
			viewport.WithSize(s.w, s.h),
			viewport.WithMagnification(s.mag),
			viewport.WithCenter(s.center),
		)
		visible := v.VisibleTiles()
		require.NotEmpty(t, visible)
		n := 1 << uint(s.mag)
		for _, vt := range visible {
			assert.Equal(t, s.mag, vt.Tile.Zoom)
			assert.True(t, vt.Tile.X >= 0 && vt.Tile.X < n, "x of %s", vt.Tile)
			assert.True(t, vt.Tile.Y >= 0 && vt.Tile.Y < n, "y of %s", vt.Tile)
		}
	}
}

func TestVisibleTilesFollowMagnification(t *testing.T) {
	v, _ := newViewport(t, viewport.WithSize(320, 480), viewport.WithMagnification(4))
	v.SetMagnification(7)
	for _, vt := range v.VisibleTiles() {
		assert.Equal(t, 7, vt.Tile.Zoom)
	}
}

func TestPrefetchDistinctTiles(t *testing.T) {
	src := &prefetchSource{fakeSource{max: 18}}
	v, err := viewport.New(src)
	require.NoError(t, err)

	v.SetSize(512, 512)
	require.Len(t, src.prefetched, 1)
	assert.Equal(t, []tiles.Tile{{}}, src.prefetched[0])

	v.SetMagnification(2)
	require.Len(t, src.prefetched, 2)
	assert.Len(t, src.prefetched[1], 16)
}

func TestForEachTileSkipsUnavailable(t *testing.T) {
	src := &fakeSource{max: 18, pending: map[tiles.Tile]bool{{X: 1, Y: 1, Zoom: 2}: true}}
	v, err := viewport.New(src, viewport.WithSize(512, 512), viewport.WithMagnification(2))
	require.NoError(t, err)

	var drawn []tiles.Tile
	v.ForEachTile(func(vt viewport.VisibleTile, img image.Image) {
		assert.NotNil(t, img)
		drawn = append(drawn, vt.Tile)
	})
	assert.Len(t, src.requested, 16)
	assert.Len(t, drawn, 15)
	assert.NotContains(t, drawn, tiles.Tile{X: 1, Y: 1, Zoom: 2})
}
