package mapview

import (
	"image"

	"gioui.org/op/paint"
	lru "github.com/hashicorp/golang-lru"

	"github.com/olablt/gio-slippy/tiles"
)

// imageOpCache keeps the paint.ImageOp built for each tile so the GPU texture
// is uploaded once instead of every frame.
type imageOpCache struct {
	cache *lru.Cache
}

type imageOpEntry struct {
	img image.Image
	op  paint.ImageOp
}

func newImageOpCache(size int) (*imageOpCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &imageOpCache{cache: c}, nil
}

// get returns the op for img, rebuilding it when the source handed out a
// different image for the tile since the last frame (e.g. fallback replaced
// by the real tile).
func (c *imageOpCache) get(tile tiles.Tile, img image.Image) paint.ImageOp {
	if v, ok := c.cache.Get(tile); ok {
		if e := v.(imageOpEntry); e.img == img {
			return e.op
		}
	}
	op := paint.NewImageOp(img)
	c.cache.Add(tile, imageOpEntry{img: img, op: op})
	return op
}

func (c *imageOpCache) len() int {
	return c.cache.Len()
}

func (c *imageOpCache) purge() {
	c.cache.Purge()
}
