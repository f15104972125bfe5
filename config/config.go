package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/olablt/gio-slippy/tiles"
	"github.com/olablt/gio-slippy/viewport"
)

// Config holds the map viewer configuration.
type Config struct {
	Map     MapConfig     `mapstructure:"map"`
	Tiles   TilesConfig   `mapstructure:"tiles"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MapConfig struct {
	Lon           float64 `mapstructure:"lon"`
	Lat           float64 `mapstructure:"lat"`
	Magnification int     `mapstructure:"magnification"`
	PanMode       string  `mapstructure:"pan_mode"`
	Friction      float64 `mapstructure:"friction"`
	HasScale      bool    `mapstructure:"has_scale"`
}

type TilesConfig struct {
	URL       string        `mapstructure:"url"`
	UserAgent string        `mapstructure:"user_agent"`
	MinZoom   int           `mapstructure:"min_zoom"`
	MaxZoom   int           `mapstructure:"max_zoom"`
	CacheSize int           `mapstructure:"cache_size"`
	Workers   int           `mapstructure:"workers"`
	Queue     int           `mapstructure:"queue"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Debug     bool          `mapstructure:"debug"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Center is the initial map center.
func (m MapConfig) Center() tiles.LonLat {
	return tiles.NewLonLat(m.Lon, m.Lat)
}

// Options translates the map section into viewport options.
func (m MapConfig) Options() []viewport.Option {
	mode, ok := viewport.ParsePanMode(m.PanMode)
	if !ok {
		mode = viewport.PanFriction
	}
	return []viewport.Option{
		viewport.WithCenter(m.Center()),
		viewport.WithMagnification(m.Magnification),
		viewport.WithPanMode(mode),
		viewport.WithFriction(m.Friction),
		viewport.WithHasScale(m.HasScale),
	}
}

// Load reads configuration from defaults, an optional YAML file and
// environment variables. An empty path looks for slippy.yaml in the working
// directory and ./configs; a missing file is not an error then.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("map.lon", 25.2797)
	v.SetDefault("map.lat", 54.6872)
	v.SetDefault("map.magnification", 4)
	v.SetDefault("map.pan_mode", viewport.PanFriction.String())
	v.SetDefault("map.friction", viewport.DefaultFriction)
	v.SetDefault("map.has_scale", true)
	v.SetDefault("tiles.url", tiles.DefaultTileURL)
	v.SetDefault("tiles.user_agent", tiles.DefaultUserAgent)
	v.SetDefault("tiles.min_zoom", 0)
	v.SetDefault("tiles.max_zoom", 19)
	v.SetDefault("tiles.cache_size", 512)
	v.SetDefault("tiles.workers", 4)
	v.SetDefault("tiles.queue", 256)
	v.SetDefault("tiles.timeout", 10*time.Second)
	v.SetDefault("tiles.debug", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("metrics.addr", "")

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("slippy")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// SLIPPY_TILES_URL → tiles.url
	v.SetEnvPrefix("SLIPPY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Map.Lat < -90 || c.Map.Lat > 90 {
		errs = append(errs, fmt.Sprintf("map.lat must be within [-90, 90], got %g", c.Map.Lat))
	}
	if _, ok := viewport.ParsePanMode(c.Map.PanMode); !ok {
		errs = append(errs, fmt.Sprintf("map.pan_mode must be free, friction or disabled, got %q", c.Map.PanMode))
	}
	if c.Map.Friction <= 0 || c.Map.Friction >= 1 {
		errs = append(errs, fmt.Sprintf("map.friction must be within (0, 1), got %g", c.Map.Friction))
	}
	if !c.Tiles.Debug && c.Tiles.URL == "" {
		errs = append(errs, "tiles.url is required")
	}
	if c.Tiles.MinZoom < 0 || c.Tiles.MaxZoom > tiles.MaxMagnification || c.Tiles.MinZoom > c.Tiles.MaxZoom {
		errs = append(errs, fmt.Sprintf("tiles zoom range must satisfy 0 <= min_zoom <= max_zoom <= %d, got %d..%d",
			tiles.MaxMagnification, c.Tiles.MinZoom, c.Tiles.MaxZoom))
	}
	if c.Tiles.CacheSize <= 0 {
		errs = append(errs, "tiles.cache_size must be positive")
	}
	if c.Tiles.Workers <= 0 {
		errs = append(errs, "tiles.workers must be positive")
	}
	if c.Tiles.Queue <= 0 {
		errs = append(errs, "tiles.queue must be positive")
	}
	if c.Tiles.Timeout <= 0 {
		errs = append(errs, "tiles.timeout must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
