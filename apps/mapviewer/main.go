package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"gioui.org/app"
	"gioui.org/op"
	"gioui.org/unit"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olablt/gio-slippy/config"
	"github.com/olablt/gio-slippy/logging"
	"github.com/olablt/gio-slippy/mapview"
	"github.com/olablt/gio-slippy/tiles"
	"github.com/olablt/gio-slippy/tiles/worker"
	"github.com/olablt/gio-slippy/viewport"
)

func main() {
	cfg, err := config.Load(os.Getenv("SLIPPY_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	closeLog, err := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}

	refresh := make(chan struct{}, 1)
	pool := worker.NewPool(cfg.Tiles.Workers, cfg.Tiles.Queue, cfg.Tiles.Timeout)
	source, err := newSource(cfg, pool, refresh)
	if err != nil {
		log.Fatalf("tile source: %v", err)
	}

	vp, err := viewport.New(source, cfg.Map.Options()...)
	if err != nil {
		log.Fatalf("viewport: %v", err)
	}
	mv := mapview.New(vp, refresh)

	var metrics *http.Server
	if cfg.Metrics.Addr != "" {
		metrics = serveMetrics(cfg.Metrics.Addr)
	}

	shutdown := func() {
		mv.Close()
		source.Close()
		pool.Shutdown()
		if metrics != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metrics.Shutdown(ctx)
		}
		slog.Info("map viewer stopped")
		closeLog()
	}

	slog.Info("map viewer starting",
		"center", vp.CenterPosition(),
		"magnification", vp.Magnification(),
		"pan_mode", vp.PanMode(),
		"debug_tiles", cfg.Tiles.Debug)

	go func() {
		w := new(app.Window)
		w.Option(app.Title("slippy map"), app.Size(unit.Dp(1024), unit.Dp(768)))
		go func() {
			for range refresh {
				w.Invalidate()
			}
		}()

		err := loop(w, mv)
		shutdown()
		if err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
}

func loop(w *app.Window, mv *mapview.MapView) error {
	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			mv.Layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}

// newSource builds the tile pipeline: the configured primary source behind a
// memory cache, with debug tiles standing in while real tiles load.
func newSource(cfg *config.Config, pool *worker.Pool, refresh chan<- struct{}) (*tiles.CachedSource, error) {
	var primary tiles.Source
	if cfg.Tiles.Debug {
		primary = tiles.NewDebugSource(cfg.Tiles.MinZoom, cfg.Tiles.MaxZoom)
	} else {
		hs := tiles.NewHTTPSource(cfg.Tiles.URL, cfg.Tiles.MinZoom, cfg.Tiles.MaxZoom)
		hs.UserAgent = cfg.Tiles.UserAgent
		primary = hs
	}

	source, err := tiles.NewCachedSource(primary, cfg.Tiles.CacheSize,
		tiles.WithPool(pool),
		tiles.WithFallback(tiles.NewDebugSource(cfg.Tiles.MinZoom, cfg.Tiles.MaxZoom)),
	)
	if err != nil {
		return nil, err
	}
	source.SetOnLoadCallback(func(tiles.Tile) {
		select {
		case refresh <- struct{}{}:
		default:
		}
	})
	return source, nil
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("metrics server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server", "error", err)
		}
	}()
	return srv
}
