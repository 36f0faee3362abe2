// Package config loads the mapsync YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/mapsync/internal/core/events/emissions"
	"github.com/zeusync/mapsync/internal/core/loop"
	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/protocol"
	"github.com/zeusync/mapsync/internal/core/reconcile"
	"github.com/zeusync/mapsync/internal/core/render"
	"github.com/zeusync/mapsync/internal/core/viewport"
)

const (
	CatalogHTTP   = "http"
	CatalogSQLite = "sqlite"

	RenderTerminal = "terminal"
	RenderPNG      = "png"
	RenderNone     = "none"
)

type Config struct {
	LogLevel string `yaml:"log_level"`
	// LogFile receives the logs instead of stderr when set.
	LogFile   string          `yaml:"log_file"`
	Canvas    CanvasConfig    `yaml:"canvas"`
	Viewport  ViewportConfig  `yaml:"viewport"`
	Animation AnimationConfig `yaml:"animation"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Channel   ChannelConfig   `yaml:"channel"`
	Join      JoinConfig      `yaml:"join"`
	Render    RenderConfig    `yaml:"render"`
	Labels    LabelsConfig    `yaml:"labels"`
	Emissions EmissionsConfig `yaml:"emissions"`
	Inspect   InspectConfig   `yaml:"inspect"`
}

type CanvasConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type ViewportConfig struct {
	FitFactor        float64 `yaml:"fit_factor"`
	Margin           float64 `yaml:"margin"`
	MinZoom          float64 `yaml:"min_zoom"`
	MaxZoom          float64 `yaml:"max_zoom"`
	WheelSensitivity float64 `yaml:"wheel_sensitivity"`
}

type AnimationConfig struct {
	Move          string `yaml:"move"`
	Enter         string `yaml:"enter"`
	Exit          string `yaml:"exit"`
	MoveEasing    string `yaml:"move_easing"`
	EnterEasing   string `yaml:"enter_easing"`
	ExitEasing    string `yaml:"exit_easing"`
	FrameInterval string `yaml:"frame_interval"`
}

type CatalogConfig struct {
	Kind       string            `yaml:"kind"`
	BaseURL    string            `yaml:"base_url"`
	PageSize   int               `yaml:"page_size"`
	SQLitePath string            `yaml:"sqlite_path"`
	Headers    map[string]string `yaml:"headers"`
}

type ChannelConfig struct {
	Transport          string            `yaml:"transport"`
	URL                string            `yaml:"url"`
	Subject            string            `yaml:"subject"`
	PublishSubject     string            `yaml:"publish_subject"`
	Headers            map[string]string `yaml:"headers"`
	InsecureSkipVerify bool              `yaml:"insecure_skip_verify"`
	HandshakeTimeout   string            `yaml:"handshake_timeout"`
	WriteTimeout       string            `yaml:"write_timeout"`
	MaxFrameSize       int               `yaml:"max_frame_size"`
	// EmbeddedBroker starts an in-process NATS server and points the channel
	// at it. Only valid with the nats transport.
	EmbeddedBroker bool `yaml:"embedded_broker"`
	BrokerPort     int  `yaml:"broker_port"`
}

type JoinConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
}

type RenderConfig struct {
	Backend string `yaml:"backend"`
	PNGPath string `yaml:"png_path"`
}

type LabelsConfig struct {
	Server string `yaml:"server"`
}

type EmissionsConfig struct {
	Enabled bool    `yaml:"enabled"`
	Grow    string  `yaml:"grow"`
	Fade    string  `yaml:"fade"`
	Radius  float64 `yaml:"radius"`
	Color   string  `yaml:"color"`
}

type InspectConfig struct {
	Listen string `yaml:"listen"`
}

func Default() Config {
	vp := viewport.DefaultConfig()
	rc := reconcile.DefaultConfig()
	pc := protocol.DefaultConfig()
	ec := emissions.DefaultConfig()
	return Config{
		LogLevel: "info",
		Canvas:   CanvasConfig{Width: vp.CanvasWidth, Height: vp.CanvasHeight},
		Viewport: ViewportConfig{
			FitFactor:        vp.FitFactor,
			Margin:           vp.Margin,
			MinZoom:          vp.MinZoom,
			MaxZoom:          vp.MaxZoom,
			WheelSensitivity: vp.WheelSensitivity,
		},
		Animation: AnimationConfig{
			Move:          rc.MoveDuration.String(),
			Enter:         rc.EnterDuration.String(),
			Exit:          rc.ExitDuration.String(),
			MoveEasing:    "easeOutExpo",
			EnterEasing:   "easeInExpo",
			ExitEasing:    "easeOutExpo",
			FrameInterval: loop.DefaultConfig().FrameInterval.String(),
		},
		Catalog: CatalogConfig{
			Kind:    CatalogHTTP,
			BaseURL: "http://localhost:8080",
		},
		Channel: ChannelConfig{
			Transport:        string(pc.Kind),
			URL:              pc.URL,
			Subject:          pc.Subject,
			HandshakeTimeout: pc.HandshakeTimeout.String(),
			WriteTimeout:     pc.WriteTimeout.String(),
			MaxFrameSize:     pc.MaxFrameSize,
		},
		Render: RenderConfig{Backend: RenderTerminal, PNGPath: "map.png"},
		Labels: LabelsConfig{Server: rc.ServerLabel},
		Emissions: EmissionsConfig{
			Enabled: true,
			Grow:    ec.Grow.String(),
			Fade:    ec.Fade.String(),
			Radius:  ec.Radius,
			Color:   ec.Color,
		},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err = Decode(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Decode applies YAML data on top of cfg.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		errs = append(errs, errors.New("canvas width and height must be positive"))
	}
	errs = append(errs, c.Viewport.validate(), c.Animation.validate(), c.Catalog.validate(), c.Channel.validate())

	switch c.Render.Backend {
	case RenderTerminal, RenderNone:
	case RenderPNG:
		if c.Render.PNGPath == "" {
			errs = append(errs, errors.New("render.png_path is required for the png backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("render.backend %q is not one of terminal, png, none", c.Render.Backend))
	}

	if c.Join.Enabled && c.Join.BaseURL == "" && c.Catalog.BaseURL == "" {
		errs = append(errs, errors.New("join.base_url is required when joins are enabled"))
	}
	if c.Emissions.Enabled {
		errs = append(errs, validDuration("emissions.grow", c.Emissions.Grow), validDuration("emissions.fade", c.Emissions.Fade))
	}

	return errors.Join(errs...)
}

func (v ViewportConfig) validate() error {
	var errs []error
	if v.FitFactor <= 0 || v.FitFactor > 1 {
		errs = append(errs, errors.New("viewport.fit_factor must be in (0, 1]"))
	}
	if v.Margin < 0 {
		errs = append(errs, errors.New("viewport.margin must not be negative"))
	}
	if v.MinZoom <= 0 || v.MaxZoom < v.MinZoom {
		errs = append(errs, errors.New("viewport zoom range must satisfy 0 < min_zoom <= max_zoom"))
	}
	return errors.Join(errs...)
}

func (a AnimationConfig) validate() error {
	var errs []error
	for name, value := range map[string]string{
		"animation.move":           a.Move,
		"animation.enter":          a.Enter,
		"animation.exit":           a.Exit,
		"animation.frame_interval": a.FrameInterval,
	} {
		errs = append(errs, validDuration(name, value))
	}
	for name, value := range map[string]string{
		"animation.move_easing":  a.MoveEasing,
		"animation.enter_easing": a.EnterEasing,
		"animation.exit_easing":  a.ExitEasing,
	} {
		if _, ok := render.EasingByName(value); !ok {
			errs = append(errs, fmt.Errorf("%s %q is not a known easing", name, value))
		}
	}
	return errors.Join(errs...)
}

func (c CatalogConfig) validate() error {
	switch c.Kind {
	case CatalogHTTP:
		if c.BaseURL == "" {
			return errors.New("catalog.base_url is required for the http catalog")
		}
	case CatalogSQLite:
		if c.SQLitePath == "" {
			return errors.New("catalog.sqlite_path is required for the sqlite catalog")
		}
	default:
		return fmt.Errorf("catalog.kind %q is not one of http, sqlite", c.Kind)
	}
	return nil
}

func (c ChannelConfig) validate() error {
	var errs []error
	switch protocol.Kind(c.Transport) {
	case protocol.KindWebSocket, protocol.KindQUIC:
		if c.EmbeddedBroker {
			errs = append(errs, errors.New("channel.embedded_broker needs the nats transport"))
		}
	case protocol.KindNATS:
		if c.Subject == "" {
			errs = append(errs, errors.New("channel.subject is required for the nats transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("channel.transport %q is not one of websocket, nats, quic", c.Transport))
	}
	if c.URL == "" && !c.EmbeddedBroker {
		errs = append(errs, errors.New("channel.url is required"))
	}
	errs = append(errs,
		validDuration("channel.handshake_timeout", c.HandshakeTimeout),
		validDuration("channel.write_timeout", c.WriteTimeout),
	)
	return errors.Join(errs...)
}

func validDuration(name, value string) error {
	if _, err := time.ParseDuration(value); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

// duration parses a validated duration string.
func duration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// LogOutputs are the zap output paths for the configured log destination.
func (c *Config) LogOutputs() []string {
	if c.LogFile != "" {
		return []string{c.LogFile}
	}
	return []string{"stderr"}
}

func (c *Config) Level() log.Level {
	level, _ := log.ParseLevel(c.LogLevel)
	return level
}

func (c *Config) ViewportConfig() viewport.Config {
	return viewport.Config{
		CanvasWidth:      c.Canvas.Width,
		CanvasHeight:     c.Canvas.Height,
		Margin:           c.Viewport.Margin,
		FitFactor:        c.Viewport.FitFactor,
		MinZoom:          c.Viewport.MinZoom,
		MaxZoom:          c.Viewport.MaxZoom,
		WheelSensitivity: c.Viewport.WheelSensitivity,
	}
}

func (c *Config) LoopConfig() loop.Config {
	lc := loop.DefaultConfig()
	lc.FrameInterval = duration(c.Animation.FrameInterval, lc.FrameInterval)
	return lc
}

func (c *Config) ReconcileConfig() reconcile.Config {
	rc := reconcile.DefaultConfig()
	rc.MoveDuration = duration(c.Animation.Move, rc.MoveDuration)
	rc.EnterDuration = duration(c.Animation.Enter, rc.EnterDuration)
	rc.ExitDuration = duration(c.Animation.Exit, rc.ExitDuration)
	if e, ok := render.EasingByName(c.Animation.MoveEasing); ok {
		rc.MoveEasing = e
	}
	if e, ok := render.EasingByName(c.Animation.EnterEasing); ok {
		rc.EnterEasing = e
	}
	if e, ok := render.EasingByName(c.Animation.ExitEasing); ok {
		rc.ExitEasing = e
	}
	if c.Labels.Server != "" {
		rc.ServerLabel = c.Labels.Server
	}
	return rc
}

func (c *Config) TransportConfig() protocol.Config {
	pc := protocol.DefaultConfig()
	pc.Kind = protocol.Kind(c.Channel.Transport)
	pc.URL = c.Channel.URL
	pc.Subject = c.Channel.Subject
	pc.PublishSubject = c.Channel.PublishSubject
	pc.InsecureSkipVerify = c.Channel.InsecureSkipVerify
	pc.HandshakeTimeout = duration(c.Channel.HandshakeTimeout, pc.HandshakeTimeout)
	pc.WriteTimeout = duration(c.Channel.WriteTimeout, pc.WriteTimeout)
	if c.Channel.MaxFrameSize > 0 {
		pc.MaxFrameSize = c.Channel.MaxFrameSize
	}
	if len(c.Channel.Headers) > 0 {
		pc.Headers = make(http.Header, len(c.Channel.Headers))
		for k, v := range c.Channel.Headers {
			pc.Headers.Set(k, v)
		}
	}
	return pc
}

func (c *Config) EmissionsConfig() emissions.Config {
	ec := emissions.DefaultConfig()
	ec.Grow = duration(c.Emissions.Grow, ec.Grow)
	ec.Fade = duration(c.Emissions.Fade, ec.Fade)
	if c.Emissions.Radius > 0 {
		ec.Radius = c.Emissions.Radius
	}
	if c.Emissions.Color != "" {
		ec.Color = c.Emissions.Color
	}
	return ec
}

// JoinBaseURL is where join requests go. It defaults to the catalog API.
func (c *Config) JoinBaseURL() string {
	if c.Join.BaseURL != "" {
		return c.Join.BaseURL
	}
	return c.Catalog.BaseURL
}
