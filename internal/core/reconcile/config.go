package reconcile

import (
	"time"

	"github.com/zeusync/mapsync/internal/core/render"
)

// DefaultServerLabel is the text/template used for server markers. Sprig
// functions are available.
const DefaultServerLabel = `{{ with .Areas }}Area {{ (first .).Name }} - {{ end }}Server {{ default (toString .Server.ID) .Server.Name }}
(double click to join)`

type Config struct {
	MoveDuration  time.Duration
	EnterDuration time.Duration
	ExitDuration  time.Duration
	MoveEasing    render.Easing
	EnterEasing   render.Easing
	ExitEasing    render.Easing

	// Marker sizes in screen pixels.
	ObjectiveRadius float64
	PawnRadius      float64
	ServerRadius    float64

	ServerLabel string
}

func DefaultConfig() Config {
	return Config{
		MoveDuration:    time.Second,
		EnterDuration:   500 * time.Millisecond,
		ExitDuration:    500 * time.Millisecond,
		MoveEasing:      render.EaseOutExpo,
		EnterEasing:     render.EaseInExpo,
		ExitEasing:      render.EaseOutExpo,
		ObjectiveRadius: 10,
		PawnRadius:      5,
		ServerRadius:    14,
		ServerLabel:     DefaultServerLabel,
	}
}

const (
	colorTerrain   = "#2b2f33"
	colorRegion    = "#999999"
	colorOutline   = "#888888"
	colorServer    = "#444444"
	colorPawnEdge  = "black"
	colorNoFaction = "lightgray"
)
