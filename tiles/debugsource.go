package tiles

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const debugCacheSize = 128

// DebugSource draws every tile locally with its address printed on it.
// It is synchronous and never fails for addresses inside its range. Sources
// made by NewDebugSource hand out the same image for repeated requests.
type DebugSource struct {
	MinZoom, MaxZoom int
	Background       color.RGBA

	rendered *lru.Cache
}

func NewDebugSource(minZoom, maxZoom int) *DebugSource {
	rendered, _ := lru.New(debugCacheSize)
	return &DebugSource{
		MinZoom:    minZoom,
		MaxZoom:    maxZoom,
		Background: color.RGBA{200, 220, 255, 255},
		rendered:   rendered,
	}
}

func (p *DebugSource) MagnificationRange() (int, int) {
	return ClampRange(p.MinZoom, p.MaxZoom)
}

func (p *DebugSource) GetTile(tile Tile) (image.Image, error) {
	lo, hi := p.MagnificationRange()
	if !InRange(tile, lo, hi) {
		return nil, fmt.Errorf("debug tile %v: %w", tile, ErrOutOfRange)
	}
	if p.rendered == nil {
		return p.render(tile), nil
	}
	if img, ok := p.rendered.Get(tile); ok {
		return img.(image.Image), nil
	}
	img := p.render(tile)
	p.rendered.Add(tile, img)
	return img, nil
}

func (p *DebugSource) render(tile Tile) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, TileSize, TileSize))
	draw.Draw(img, img.Bounds(), &image.Uniform{p.Background}, image.Point{}, draw.Src)

	c := tile.Center()
	drawLabel(img, 120, tile.Key())
	drawLabel(img, 150, fmt.Sprintf("%.4f %.4f", c.Lon, c.Lat))

	borderColor := color.RGBA{100, 100, 100, 255}
	borders := []image.Rectangle{
		image.Rect(0, 0, TileSize, 1),                 // Top
		image.Rect(0, TileSize-1, TileSize, TileSize), // Bottom
		image.Rect(0, 0, 1, TileSize),                 // Left
		image.Rect(TileSize-1, 0, TileSize, TileSize), // Right
	}
	for _, rect := range borders {
		draw.Draw(img, rect, &image.Uniform{borderColor}, image.Point{}, draw.Src)
	}
	return img
}

// drawLabel prints text horizontally centered around baseline y on a light backdrop.
func drawLabel(img *image.RGBA, y int, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}

	textWidth := d.MeasureString(text).Round()
	textHeight := face.Metrics().Height.Round()

	padding := 6
	bg := image.Rect(
		(TileSize-textWidth)/2-padding,
		y-textHeight-padding/2,
		(TileSize+textWidth)/2+padding,
		y+padding,
	)
	draw.Draw(img, bg, &image.Uniform{color.RGBA{255, 255, 255, 220}}, image.Point{}, draw.Over)

	d.Dot = fixed.Point26_6{
		X: fixed.I((TileSize - textWidth) / 2),
		Y: fixed.I(y),
	}
	d.DrawString(text)
}
