package engine

import (
	"github.com/zeusync/mapsync/internal/core/models"
	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/render"
	"github.com/zeusync/mapsync/internal/core/render/term"
	"github.com/zeusync/mapsync/internal/core/storage"
)

var _ term.Target = (*Engine)(nil)

// The pointer methods forward canvas input to the surface. They must be
// called on the loop.

func (e *Engine) PointerDown(x, y float64) { e.surface.PointerDown(x, y) }
func (e *Engine) PointerMove(x, y float64) { e.surface.PointerMove(x, y) }
func (e *Engine) PointerUp(x, y float64)   { e.surface.PointerUp(x, y) }
func (e *Engine) Wheel(deltaY float64)     { e.surface.Wheel(deltaY) }
func (e *Engine) DoubleClick(x, y float64) { e.surface.DoubleClick(x, y) }

// Resize adopts a new canvas size. A viewport that could not be fitted yet
// is fitted against the new size.
func (e *Engine) Resize(width, height float64) {
	if e.surface.Disposed() {
		return
	}
	ready := e.view.Ready()
	e.view.Resize(width, height)
	if !ready && e.Mounted() {
		e.place(false)
	}
	e.surface.RequestRedraw()
}

func (e *Engine) Quit() {
	if e.options.OnQuit != nil {
		e.options.OnQuit()
	}
}

// activate joins the server behind a double-clicked marker. The join and the
// launch run off the loop.
func (e *Engine) activate(key render.Key) {
	server, ok := e.reconciler.ServerFor(key)
	if !ok || e.options.Joiner == nil || !e.Mounted() {
		return
	}

	req := storage.JoinRequest{ServerID: server.ID}
	if len(server.AreaIDs) > 0 {
		req.AreaID = models.IDPtr(server.AreaIDs[0])
	}

	ctx := e.ctx
	e.joins.Add(1)
	go func() {
		defer e.joins.Done()
		dest, err := e.options.Joiner.Join(ctx, req)
		if err != nil {
			e.logger.Warn("Join failed", log.Int64("server_id", int64(server.ID)), log.Error(err))
			return
		}
		if err = e.options.Launcher.Launch(ctx, server, dest); err != nil {
			e.logger.Warn("Launch failed", log.Int64("server_id", int64(server.ID)), log.Error(err))
		}
	}()
}
