package tiles

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/olablt/gio-slippy/tiles/worker"
)

// FailureBackoff is how long a tile whose load failed is not requested again.
const FailureBackoff = 5 * time.Second

// CachedSource keeps recently loaded tiles in memory and loads missing tiles
// from the primary source on a worker pool. While a tile is loading the
// fallback source (if any) is asked instead, otherwise ErrPending is returned.
// A failed tile is served the same way until FailureBackoff has passed.
type CachedSource struct {
	primary  Source
	fallback Source
	cache    *lru.Cache
	pool     *worker.Pool
	ownsPool bool

	ctx    context.Context
	cancel context.CancelFunc

	loading   map[string]bool
	failed    map[string]time.Time
	loadingMu sync.Mutex
	now       func() time.Time

	onLoadMu   sync.RWMutex
	onLoadFunc func(Tile)

	Logger *slog.Logger
}

type CachedSourceOption func(*CachedSource)

// WithFallback sets the source consulted while the primary tile is loading.
func WithFallback(fallback Source) CachedSourceOption {
	return func(s *CachedSource) { s.fallback = fallback }
}

// WithPool runs loads on an existing pool. The caller keeps ownership.
func WithPool(pool *worker.Pool) CachedSourceOption {
	return func(s *CachedSource) { s.pool = pool }
}

func NewCachedSource(primary Source, size int, opts ...CachedSourceOption) (*CachedSource, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("tile cache: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &CachedSource{
		primary: primary,
		cache:   cache,
		ctx:     ctx,
		cancel:  cancel,
		loading: make(map[string]bool),
		failed:  make(map[string]time.Time),
		now:     time.Now,
		Logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pool == nil {
		s.pool = worker.NewPool(4, 256, 10*time.Second)
		s.ownsPool = true
	}
	return s, nil
}

// SetOnLoadCallback registers a function called from the loading goroutine
// after a tile has been stored in the cache.
func (s *CachedSource) SetOnLoadCallback(callback func(Tile)) {
	s.onLoadMu.Lock()
	s.onLoadFunc = callback
	s.onLoadMu.Unlock()
}

func (s *CachedSource) MagnificationRange() (int, int) {
	return s.primary.MagnificationRange()
}

func (s *CachedSource) GetTile(tile Tile) (image.Image, error) {
	key := tile.Key()
	if cached, ok := s.cache.Get(key); ok {
		cacheHits.Inc()
		return cached.(image.Image), nil
	}
	cacheMisses.Inc()

	s.load(tile, key)

	if s.fallback != nil {
		return s.fallback.GetTile(tile)
	}
	return nil, ErrPending
}

// Prefetch schedules loads for every tile not cached yet.
func (s *CachedSource) Prefetch(tiles []Tile) {
	for _, tile := range tiles {
		key := tile.Key()
		if s.cache.Contains(key) {
			continue
		}
		s.load(tile, key)
	}
}

// Cached reports whether the tile is in memory.
func (s *CachedSource) Cached(tile Tile) bool {
	return s.cache.Contains(tile.Key())
}

// Purge drops every cached tile and forgets failed loads.
func (s *CachedSource) Purge() {
	s.cache.Purge()
	s.loadingMu.Lock()
	clear(s.failed)
	s.loadingMu.Unlock()
}

// Close cancels pending loads and stops the pool if the source created it.
func (s *CachedSource) Close() {
	s.cancel()
	if s.ownsPool {
		s.pool.Shutdown()
	}
}

func (s *CachedSource) load(tile Tile, key string) {
	s.loadingMu.Lock()
	if s.loading[key] {
		s.loadingMu.Unlock()
		return
	}
	if at, ok := s.failed[key]; ok {
		if s.now().Sub(at) < FailureBackoff {
			s.loadingMu.Unlock()
			return
		}
		delete(s.failed, key)
	}
	s.loading[key] = true
	s.loadingMu.Unlock()

	submitted := s.pool.Submit(worker.Task{
		Ctx:  s.ctx,
		Name: key,
		Work: func(ctx context.Context) error {
			err := s.fetch(ctx, tile, key)
			s.doneLoading(key, err)
			return err
		},
	})
	if !submitted {
		s.doneLoading(key, nil)
	}
}

func (s *CachedSource) fetch(ctx context.Context, tile Tile, key string) error {
	start := time.Now()
	var (
		img image.Image
		err error
	)
	if f, ok := s.primary.(Fetcher); ok {
		img, err = f.Fetch(ctx, tile)
	} else {
		img, err = s.primary.GetTile(tile)
	}
	tileLoadDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		tileLoads.WithLabelValues("error").Inc()
		s.Logger.Debug("tile load failed", "tile", key, "error", err)
		return err
	}
	tileLoads.WithLabelValues("ok").Inc()
	s.cache.Add(key, img)

	s.onLoadMu.RLock()
	onLoad := s.onLoadFunc
	s.onLoadMu.RUnlock()
	if onLoad != nil {
		onLoad(tile)
	}
	return nil
}

func (s *CachedSource) doneLoading(key string, err error) {
	s.loadingMu.Lock()
	delete(s.loading, key)
	// loads canceled by Close are not the tile's fault
	if err != nil && !errors.Is(err, context.Canceled) {
		s.failed[key] = s.now()
	}
	s.loadingMu.Unlock()
}
