package engine

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/zeusync/mapsync/internal/core/events/channel"
	"github.com/zeusync/mapsync/internal/core/loop"
	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/store"
)

// Mount fetches every entity off the loop, then on the loop loads the store,
// fits the viewport, places the map, requests the first draw and registers
// the event listeners. The push channel is connected last. A connect failure
// is returned but leaves the engine mounted with the fetched map displayed.
func (e *Engine) Mount(ctx context.Context) error {
	switch state(e.state.Load()) {
	case stateMounting, stateMounted:
		return ErrAlreadyMounted
	case stateTornDown:
		return ErrTornDown
	}

	snap, err := store.Fetch(ctx, e.lister)
	if err != nil {
		return pkgerrors.Wrap(err, "bulk fetch")
	}
	if !e.state.CompareAndSwap(int32(stateIdle), int32(stateMounting)) {
		return ErrAlreadyMounted
	}

	var subErr error
	err = loop.Call(ctx, e.sched, func() {
		// Mount gave up before the task ran.
		if !e.state.CompareAndSwap(int32(stateMounting), int32(stateMounted)) {
			return
		}
		e.store.Load(snap)
		e.place(true)
		subErr = e.subscribe()
		e.mountExtensions()

		counts := e.store.Counts()
		e.logger.Info("Map placed",
			log.Int("areas", counts.Areas),
			log.Int("objectives", counts.Objectives),
			log.Int("servers", counts.Servers),
			log.Int("pawns", counts.Pawns),
		)
	})
	if err != nil {
		// Back to idle unless the task already ran and mounted the map.
		e.state.CompareAndSwap(int32(stateMounting), int32(stateIdle))
		return pkgerrors.Wrap(err, "place map")
	}
	if subErr != nil {
		return subErr
	}

	if err = e.channel.Connect(ctx); err != nil {
		e.logger.Warn("Push channel unavailable, map stays static", log.Error(err))
		return err
	}
	return nil
}

// place fits the viewport and brings the static layers in line with the
// store. Loop only.
func (e *Engine) place(redraw bool) {
	e.view.Fit(extents(e.store.Areas()))
	e.reconciler.Place(e.view.Framed(), e.view.Ready())
	if redraw {
		e.surface.RequestRedraw()
	}
}

func (e *Engine) subscribe() error {
	taken, err := channel.Listen(e.channel, channel.TypeObjectiveTaken, func(ev channel.ObjectiveTaken) {
		e.reconciler.ObjectiveTaken(ev.ObjectiveID, ev.FactionID)
	})
	if err != nil {
		return pkgerrors.Wrap(err, "subscribe objective events")
	}
	pawns, err := channel.Listen(e.channel, channel.TypeServerPawns, func(ev channel.ServerPawns) {
		e.reconciler.ServerPawns(ev.ServerID, ev.Pawns)
	})
	if err != nil {
		_ = taken.Cancel()
		return pkgerrors.Wrap(err, "subscribe pawn events")
	}
	e.subs = append(e.subs, taken, pawns)
	return nil
}

func (e *Engine) mountExtensions() {
	for _, ext := range e.options.Extensions {
		if err := ext.Mount(e); err != nil {
			e.logger.Warn("Extension failed to mount", log.String("extension", ext.Name()), log.Error(err))
			continue
		}
		e.mounted = append(e.mounted, ext)
		e.logger.Debug("Extension mounted", log.String("extension", ext.Name()))
	}
}

// Unmount tears the engine down in order: listeners are released, the push
// channel is closed, pending animations are cancelled, then every handle and
// cache is cleared. The engine cannot be mounted again.
func (e *Engine) Unmount(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(stateMounted), int32(stateTornDown)) {
		return ErrNotMounted
	}
	e.cancel()

	err := loop.Call(ctx, e.sched, func() {
		for _, sub := range e.subs {
			_ = sub.Cancel()
		}
		e.subs = nil
		for i := len(e.mounted) - 1; i >= 0; i-- {
			e.mounted[i].Unmount()
		}
		e.mounted = nil
		e.channel.UnsubscribeAll()
	})
	if err != nil {
		return pkgerrors.Wrap(err, "release listeners")
	}

	closeErr := e.channel.Close()

	var disposeErr error
	err = loop.Call(ctx, e.sched, func() {
		disposeErr = e.surface.Dispose()
		e.store.Clear()
	})
	if err != nil {
		return pkgerrors.Wrap(err, "dispose surface")
	}

	e.joins.Wait()
	e.logger.Info("Map unmounted")
	return errors.Join(closeErr, disposeErr)
}

// Refresh re-runs the bulk fetch and re-places the static layers. Pawns are
// left to the push channel.
func (e *Engine) Refresh(ctx context.Context) error {
	if !e.Mounted() {
		return ErrNotMounted
	}
	snap, err := store.Fetch(ctx, e.lister)
	if err != nil {
		return pkgerrors.Wrap(err, "bulk fetch")
	}
	return loop.Call(ctx, e.sched, func() {
		if !e.Mounted() {
			return
		}
		e.store.LoadStatic(snap)
		e.place(true)
	})
}
