// Package emissions flashes short lived markers where the world reports an
// emission. It is mounted into the engine as an optional extension.
package emissions

import (
	"fmt"
	"time"

	"github.com/zeusync/mapsync/internal/core/events/channel"
	"github.com/zeusync/mapsync/internal/core/models"
	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/render"
	"github.com/zeusync/mapsync/internal/engine"
)

const Type = "Emissions"

type Emission struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Event struct {
	Emissions []Emission `json:"emissions"`
}

var _ channel.Validator = (*Event)(nil)

func (e *Event) Validate() error {
	if e.Emissions == nil {
		return fmt.Errorf("%w: emissions", channel.ErrMissingField)
	}
	return nil
}

type Config struct {
	Grow     time.Duration
	Fade     time.Duration
	GrowEase string
	FadeEase string
	// Radius is the peak radius in pixels.
	Radius  float64
	Color   string
	Opacity float64
}

func DefaultConfig() Config {
	return Config{
		Grow:     time.Second,
		Fade:     time.Second,
		GrowEase: "easeInExpo",
		FadeEase: "easeOutExpo",
		Radius:   15,
		Color:    "#ffaa00",
		Opacity:  0x88 / 255.0,
	}
}

var _ engine.Extension = (*Extension)(nil)

type Extension struct {
	config Config
	grow   render.Easing
	fade   render.Easing
	logger log.Log

	surface *render.Surface
	sub     channel.Subscription
	next    models.ID
}

func New(config Config, logger log.Log) *Extension {
	if logger == nil {
		logger = log.NewNop()
	}
	grow, ok := render.EasingByName(config.GrowEase)
	if !ok {
		grow = render.EaseInExpo
	}
	fade, ok := render.EasingByName(config.FadeEase)
	if !ok {
		fade = render.EaseOutExpo
	}
	return &Extension{
		config: config,
		grow:   grow,
		fade:   fade,
		logger: logger.With(log.String("extension", "emissions")),
	}
}

func (e *Extension) Name() string { return "emissions" }

func (e *Extension) Mount(host engine.Host) error {
	sub, err := channel.Listen(host.Channel(), Type, e.handle)
	if err != nil {
		return err
	}
	e.surface = host.Surface()
	e.sub = sub
	return nil
}

func (e *Extension) Unmount() {
	if e.sub != nil {
		_ = e.sub.Cancel()
		e.sub = nil
	}
}

// Live returns how many flashes are on the surface.
func (e *Extension) Live() int {
	if e.surface == nil {
		return 0
	}
	return e.surface.Count(render.KindEmission)
}

func (e *Extension) handle(ev Event) {
	for _, em := range ev.Emissions {
		e.flash(em)
	}
}

// flash grows a marker in, fades it out, then removes it.
func (e *Extension) flash(em Emission) {
	e.next++
	key := render.KeyOf(render.KindEmission, e.next)
	err := e.surface.Create(key, render.Props{
		Shape: render.ShapeCircle,
		X:     em.X,
		Y:     em.Y,
		Fill:  e.config.Color,
	})
	if err != nil {
		e.logger.Debug("Emission not drawn", log.Error(err))
		return
	}

	remove := func() { _ = e.surface.Remove(key) }
	fadeOut := func() {
		if _, err := e.surface.Animate(key, render.Target{render.PropOpacity: 0}, e.config.Fade, e.fade, remove); err != nil {
			remove()
		}
	}
	target := render.Target{render.PropOpacity: e.config.Opacity, render.PropRadius: e.config.Radius}
	if _, err = e.surface.Animate(key, target, e.config.Grow, e.grow, fadeOut); err != nil {
		remove()
	}
}
