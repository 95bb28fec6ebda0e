package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds every tunable of a canvas client and the reference server.
type Config struct {
	BackendURL   string `env:"CANVAS_BACKEND_URL"    envDefault:"http://localhost:8080"`
	BackendWSURL string `env:"CANVAS_BACKEND_WS_URL" envDefault:"ws://localhost:8080/ws"`
	ServerAddr   string `env:"CANVAS_SERVER_ADDR"    envDefault:"127.0.0.1:8080"`

	GridSize int     `env:"CANVAS_GRID_SIZE" envDefault:"100"`
	CellSize float64 `env:"CANVAS_CELL_SIZE" envDefault:"1"`

	ViewportWidth  float64 `env:"CANVAS_VIEWPORT_WIDTH"  envDefault:"1280"`
	ViewportHeight float64 `env:"CANVAS_VIEWPORT_HEIGHT" envDefault:"720"`
	ClickThreshold float64 `env:"CANVAS_CLICK_THRESHOLD" envDefault:"5"`

	ScaleMin      float64 `env:"CANVAS_SCALE_MIN"       envDefault:"0.1"`
	ScaleMax      float64 `env:"CANVAS_SCALE_MAX"       envDefault:"40"`
	FocusScaleMin float64 `env:"CANVAS_FOCUS_SCALE_MIN" envDefault:"20"`
	FocusScaleMax float64 `env:"CANVAS_FOCUS_SCALE_MAX" envDefault:"40"`

	SnapshotTimeout    time.Duration `env:"CANVAS_SNAPSHOT_TIMEOUT"     envDefault:"10s"`
	SnapshotRetryDelay time.Duration `env:"CANVAS_SNAPSHOT_RETRY_DELAY" envDefault:"500ms"`
	FrameInterval      time.Duration `env:"CANVAS_FRAME_INTERVAL"       envDefault:"16ms"`

	LogLevel  string `env:"CANVAS_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"CANVAS_LOG_FORMAT" envDefault:"json"`
}

// Load reads an optional .env file and then the process environment.
func Load(log logrus.FieldLogger, files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil {
		log.Warn("No .env file found or failed to load it, using environment")
	}
	return Parse()
}

// Parse builds a Config from the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	var cfg Config
	// only defaults are involved, parsing cannot fail
	_ = env.ParseWithOptions(&cfg, env.Options{Environment: map[string]string{}})
	return cfg
}

func (c Config) Validate() error {
	var errs []error
	if c.GridSize < 2 || (c.GridSize*c.GridSize)%2 != 0 {
		errs = append(errs, fmt.Errorf("grid size %d must be even and at least 2", c.GridSize))
	}
	if c.CellSize <= 0 {
		errs = append(errs, fmt.Errorf("cell size must be positive, got %v", c.CellSize))
	}
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		errs = append(errs, fmt.Errorf("viewport %vx%v must be positive", c.ViewportWidth, c.ViewportHeight))
	}
	if c.ScaleMin <= 0 || c.ScaleMin > c.ScaleMax {
		errs = append(errs, fmt.Errorf("scale range [%v, %v] is invalid", c.ScaleMin, c.ScaleMax))
	}
	if c.FocusScaleMin > c.FocusScaleMax || c.FocusScaleMin < c.ScaleMin || c.FocusScaleMax > c.ScaleMax {
		errs = append(errs, fmt.Errorf("focus scale range [%v, %v] must lie within [%v, %v]",
			c.FocusScaleMin, c.FocusScaleMax, c.ScaleMin, c.ScaleMax))
	}
	if c.ClickThreshold < 0 {
		errs = append(errs, fmt.Errorf("click threshold must not be negative"))
	}
	if c.FrameInterval <= 0 {
		errs = append(errs, fmt.Errorf("frame interval must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
