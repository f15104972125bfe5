package tiles

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
)

const (
	DefaultTileURL   = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultUserAgent = "gio-slippy/1.0 (+https://github.com/olablt/gio-slippy)"
)

// HTTPSource downloads XYZ tiles. The URL template understands {z}, {x}, {y},
// {q} (quadkey) and {s} (subdomain picked from Subdomains by tile position).
// Fetches block; wrap the source in a CachedSource for use by a viewport.
type HTTPSource struct {
	URL        string
	UserAgent  string
	Subdomains []string
	MinZoom    int
	MaxZoom    int

	client *http.Client
	Logger *slog.Logger
}

func NewHTTPSource(url string, minZoom, maxZoom int) *HTTPSource {
	if url == "" {
		url = DefaultTileURL
	}
	return &HTTPSource{
		URL:        url,
		UserAgent:  DefaultUserAgent,
		Subdomains: []string{"a", "b", "c"},
		MinZoom:    minZoom,
		MaxZoom:    maxZoom,
		client:     cleanhttp.DefaultPooledClient(),
		Logger:     slog.Default(),
	}
}

func (p *HTTPSource) MagnificationRange() (int, int) {
	return ClampRange(p.MinZoom, p.MaxZoom)
}

func (p *HTTPSource) GetTile(tile Tile) (image.Image, error) {
	return p.Fetch(context.Background(), tile)
}

func (p *HTTPSource) Fetch(ctx context.Context, tile Tile) (image.Image, error) {
	lo, hi := p.MagnificationRange()
	if !InRange(tile, lo, hi) {
		return nil, fmt.Errorf("tile %v: %w", tile, ErrOutOfRange)
	}

	url := p.TileURL(tile)
	p.Logger.Debug("requesting tile", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("tile %v: %w", tile, err)
	}
	req.Header.Set("User-Agent", p.UserAgent)
	req.Header.Set("Accept", "image/png,image/jpeg,*/*")

	resp, err := p.client.Do(req)
	if err != nil {
		httpFetches.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch tile %v: %w", tile, err)
	}
	defer resp.Body.Close()

	httpFetches.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch tile %v: unexpected status code: %d", tile, resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode tile %v: %w", tile, err)
	}
	return img, nil
}

// TileURL returns the URL for downloading the map tile
func (p *HTTPSource) TileURL(tile Tile) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(tile.Zoom),
		"{x}", strconv.Itoa(tile.X),
		"{y}", strconv.Itoa(tile.Y),
		"{q}", tile.Quadkey(),
		"{s}", p.subdomain(tile),
	)
	return r.Replace(p.URL)
}

func (p *HTTPSource) subdomain(tile Tile) string {
	if len(p.Subdomains) == 0 {
		return ""
	}
	return p.Subdomains[(tile.X+tile.Y)%len(p.Subdomains)]
}
