package engine

import (
	"context"

	"github.com/zeusync/mapsync/internal/core/events/channel"
	"github.com/zeusync/mapsync/internal/core/loop"
	"github.com/zeusync/mapsync/internal/core/models"
	"github.com/zeusync/mapsync/internal/core/reconcile"
	"github.com/zeusync/mapsync/internal/core/render"
	"github.com/zeusync/mapsync/internal/core/store"
)

type ViewportStatus struct {
	Ready        bool    `json:"ready"`
	Scale        float64 `json:"scale"`
	InitialScale float64 `json:"initialScale"`
	PanX         float64 `json:"panX"`
	PanY         float64 `json:"panY"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
}

// Status is a point in time view of the engine for the inspector.
type Status struct {
	Mounted    bool              `json:"mounted"`
	Connected  bool              `json:"connected"`
	Viewport   ViewportStatus    `json:"viewport"`
	Handles    map[string]int    `json:"handles"`
	Pawns      map[models.ID]int `json:"pawnsByServer"`
	Entities   store.Counts      `json:"entities"`
	Draws      uint64            `json:"draws"`
	Channel    channel.Stats     `json:"channel"`
	Reconcile  reconcile.Stats   `json:"reconcile"`
	Extensions []string          `json:"extensions"`
}

func (e *Engine) Status(ctx context.Context) (Status, error) {
	var st Status
	err := loop.Call(ctx, e.sched, func() {
		panX, panY := e.view.Pan()
		cfg := e.view.Config()
		st = Status{
			Mounted:   e.Mounted(),
			Connected: e.channel.Connected(),
			Viewport: ViewportStatus{
				Ready:        e.view.Ready(),
				Scale:        e.view.Scale(),
				InitialScale: e.view.InitialScale(),
				PanX:         panX,
				PanY:         panY,
				Width:        cfg.CanvasWidth,
				Height:       cfg.CanvasHeight,
			},
			Handles:   make(map[string]int),
			Pawns:     e.store.PawnCounts(),
			Entities:  e.store.Counts(),
			Draws:     e.surface.Draws(),
			Channel:   e.channel.Stats(),
			Reconcile: e.reconciler.Stats(),
		}
		for _, kind := range render.Kinds() {
			if n := e.surface.Count(kind); n > 0 {
				st.Handles[kind.String()] = n
			}
		}
		for _, ext := range e.mounted {
			st.Extensions = append(st.Extensions, ext.Name())
		}
	})
	return st, err
}

// Frame returns what the surface would draw right now.
func (e *Engine) Frame(ctx context.Context) (render.Frame, error) {
	var frame render.Frame
	err := loop.Call(ctx, e.sched, func() { frame = e.surface.Snapshot() })
	return frame, err
}
