package tiles

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/olablt/gio-slippy/tiles/worker"
)

// fakeSource hands out solid images and counts calls.
type fakeSource struct {
	calls atomic.Int32
	fail  bool
	gate  chan struct{}
}

func (f *fakeSource) GetTile(tile Tile) (image.Image, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.fail {
		return nil, errors.New("boom")
	}
	return image.NewUniform(color.RGBA{uint8(tile.X), uint8(tile.Y), uint8(tile.Zoom), 255}), nil
}

func (f *fakeSource) MagnificationRange() (int, int) { return 2, 9 }

func TestCachedSourcePendingThenLoaded(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	primary := &fakeSource{}
	s, err := NewCachedSource(primary, 16)
	require.NoError(t, err)
	defer s.Close()

	var mu sync.Mutex
	var loaded []Tile
	s.SetOnLoadCallback(func(tile Tile) {
		mu.Lock()
		loaded = append(loaded, tile)
		mu.Unlock()
	})

	tile := Tile{X: 1, Y: 2, Zoom: 3}
	img, err := s.GetTile(tile)
	assert.Nil(t, img)
	assert.ErrorIs(t, err, ErrPending)

	require.Eventually(t, func() bool { return s.Cached(tile) }, time.Second, 5*time.Millisecond)

	img, err = s.GetTile(tile)
	require.NoError(t, err)
	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{1, 2, 3}, []uint32{r >> 8, g >> 8, b >> 8})

	mu.Lock()
	assert.Equal(t, []Tile{tile}, loaded)
	mu.Unlock()

	lo, hi := s.MagnificationRange()
	assert.Equal(t, 2, lo)
	assert.Equal(t, 9, hi)
}

func TestCachedSourceFallback(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	primary := &fakeSource{gate: make(chan struct{})}
	fallback := NewDebugSource(0, 10)
	s, err := NewCachedSource(primary, 16, WithFallback(fallback))
	require.NoError(t, err)

	img, err := s.GetTile(Tile{X: 0, Y: 0, Zoom: 2})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, TileSize, TileSize), img.Bounds())

	// a second request while loading must not start another load
	_, _ = s.GetTile(Tile{X: 0, Y: 0, Zoom: 2})
	close(primary.gate)
	require.Eventually(t, func() bool { return s.Cached(Tile{X: 0, Y: 0, Zoom: 2}) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), primary.calls.Load())
	s.Close()
}

func TestCachedSourceFailedLoadIsNotCached(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	pool := worker.NewPool(1, 8, time.Second)
	defer pool.Shutdown()

	primary := &fakeSource{fail: true}
	s, err := NewCachedSource(primary, 4, WithPool(pool))
	require.NoError(t, err)
	defer s.Close()

	tile := Tile{X: 1, Y: 1, Zoom: 1}
	_, err = s.GetTile(tile)
	assert.ErrorIs(t, err, ErrPending)
	require.Eventually(t, func() bool { return primary.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, s.Cached(tile))
}

func TestCachedSourceBacksOffFailedTiles(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	primary := &fakeSource{fail: true}
	s, err := NewCachedSource(primary, 4)
	require.NoError(t, err)
	defer s.Close()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var elapsed atomic.Int64
	s.now = func() time.Time { return start.Add(time.Duration(elapsed.Load())) }

	tile := Tile{X: 1, Y: 1, Zoom: 3}
	failedAt := func() time.Time {
		s.loadingMu.Lock()
		defer s.loadingMu.Unlock()
		return s.failed[tile.Key()]
	}
	_, err = s.GetTile(tile)
	assert.ErrorIs(t, err, ErrPending)
	require.Eventually(t, func() bool { return failedAt().Equal(start) }, time.Second, 5*time.Millisecond)

	// one frame per tick for a second of gliding
	for i := 0; i < 60; i++ {
		_, err = s.GetTile(tile)
		assert.ErrorIs(t, err, ErrPending)
	}
	s.Prefetch([]Tile{tile})
	assert.Equal(t, int32(1), primary.calls.Load())

	retryAt := start.Add(FailureBackoff + time.Second)
	elapsed.Store(int64(FailureBackoff + time.Second))
	_, _ = s.GetTile(tile)
	require.Eventually(t, func() bool { return failedAt().Equal(retryAt) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(2), primary.calls.Load())

	s.Purge()
	_, _ = s.GetTile(tile)
	require.Eventually(t, func() bool { return primary.calls.Load() == 3 }, time.Second, 5*time.Millisecond)
}

func TestCachedSourcePrefetch(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	primary := &fakeSource{}
	s, err := NewCachedSource(primary, 16)
	require.NoError(t, err)
	defer s.Close()

	want := []Tile{{X: 0, Y: 0, Zoom: 1}, {X: 1, Y: 0, Zoom: 1}, {X: 0, Y: 1, Zoom: 1}}
	s.Prefetch(want)
	require.Eventually(t, func() bool {
		for _, tile := range want {
			if !s.Cached(tile) {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)

	s.Prefetch(want)
	assert.Equal(t, int32(3), primary.calls.Load())

	s.Purge()
	assert.False(t, s.Cached(want[0]))
}

func TestNewCachedSourceInvalidSize(t *testing.T) {
	_, err := NewCachedSource(&fakeSource{}, 0)
	assert.Error(t, err)
}

func TestDebugSource(t *testing.T) {
	s := NewDebugSource(0, 5)
	img, err := s.GetTile(Tile{X: 3, Y: 2, Zoom: 2})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, TileSize, TileSize), img.Bounds())
	assert.Equal(t, color.RGBA{100, 100, 100, 255}, img.At(0, 0))

	_, err = s.GetTile(Tile{X: 4, Y: 0, Zoom: 2})
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = s.GetTile(Tile{X: 0, Y: 0, Zoom: 6})
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestDebugSourceReusesRenderedTiles(t *testing.T) {
	s := NewDebugSource(0, 5)
	tile := Tile{X: 1, Y: 1, Zoom: 1}
	first, err := s.GetTile(tile)
	require.NoError(t, err)
	again, err := s.GetTile(tile)
	require.NoError(t, err)
	assert.Same(t, first, again)

	other, err := s.GetTile(Tile{X: 0, Y: 1, Zoom: 1})
	require.NoError(t, err)
	assert.NotSame(t, first, other)

	// a zero value still works, it just renders every time
	var plain DebugSource
	plain.MaxZoom = 5
	a, err := plain.GetTile(tile)
	require.NoError(t, err)
	b, err := plain.GetTile(tile)
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func pngTile(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, TileSize, TileSize))
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHTTPSourceFetch(t *testing.T) {
	body := pngTile(t)
	requests := make(chan *http.Request, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r.Clone(r.Context())
		if r.URL.Path == "/missing/3/1/2.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	s := NewHTTPSource(srv.URL+"/{z}/{x}/{y}.png", 0, 19)
	img, err := s.GetTile(Tile{X: 1, Y: 2, Zoom: 3})
	require.NoError(t, err)
	assert.Equal(t, TileSize, img.Bounds().Dx())
	req := <-requests
	assert.Equal(t, "/3/1/2.png", req.URL.Path)
	assert.Equal(t, DefaultUserAgent, req.Header.Get("User-Agent"))

	s.URL = srv.URL + "/missing/{z}/{x}/{y}.png"
	_, err = s.GetTile(Tile{X: 1, Y: 2, Zoom: 3})
	assert.ErrorContains(t, err, "unexpected status code: 404")

	_, err = s.GetTile(Tile{X: 0, Y: 0, Zoom: 20})
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestHTTPSourceTileURL(t *testing.T) {
	s := NewHTTPSource("https://{s}.example.com/{z}/{x}/{y}?q={q}", 0, 19)
	assert.Equal(t, "https://c.example.com/3/3/5?q=213", s.TileURL(Tile{X: 3, Y: 5, Zoom: 3}))
	assert.Equal(t, "https://b.example.com/3/1/0?q=001", s.TileURL(Tile{X: 1, Y: 0, Zoom: 3}))

	s = NewHTTPSource("", 0, 19)
	assert.Equal(t, "https://tile.openstreetmap.org/1/0/1.png", s.TileURL(Tile{X: 0, Y: 1, Zoom: 1}))
}
