// Package engine composes the store, viewport, surface, reconciler and event
// channel into the map lifecycle: mount, live updates, refresh and teardown.
package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/zeusync/mapsync/internal/core/events/channel"
	"github.com/zeusync/mapsync/internal/core/loop"
	"github.com/zeusync/mapsync/internal/core/models"
	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/reconcile"
	"github.com/zeusync/mapsync/internal/core/render"
	"github.com/zeusync/mapsync/internal/core/storage"
	"github.com/zeusync/mapsync/internal/core/store"
	"github.com/zeusync/mapsync/internal/core/viewport"
)

// Host is what an Extension is given when the engine mounts it. Every call
// into the host must happen on the loop.
type Host interface {
	Channel() *channel.Channel
	Surface() *render.Surface
	Scheduler() loop.Scheduler
	Logger() log.Log
}

// Extension adds optional behaviour to a mounted engine. Mount and Unmount
// run on the loop; Unmount must release every listener Mount registered.
type Extension interface {
	Name() string
	Mount(host Host) error
	Unmount()
}

// Launcher hands a join destination to the external client.
type Launcher interface {
	Launch(ctx context.Context, server models.Server, dest models.Destination) error
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, server models.Server, dest models.Destination) error

func (f LauncherFunc) Launch(ctx context.Context, server models.Server, dest models.Destination) error {
	return f(ctx, server, dest)
}

// LogLauncher only logs the destination.
type LogLauncher struct {
	Logger log.Log
}

func (l LogLauncher) Launch(_ context.Context, server models.Server, dest models.Destination) error {
	l.Logger.Info("Join destination ready",
		log.Int64("server_id", int64(server.ID)),
		log.String("ip", dest.IP),
		log.Int("port", dest.Port),
		log.String("map", dest.MapName),
	)
	return nil
}

// Options carries the optional collaborators.
type Options struct {
	Joiner     storage.Joiner
	Launcher   Launcher
	Extensions []Extension
	// OnQuit is called on the loop when the user asks to leave.
	OnQuit func()
}

type state int32

const (
	stateIdle state = iota
	// stateMounting covers the placement task queued on the loop.
	stateMounting
	stateMounted
	stateTornDown
)

var _ Host = (*Engine)(nil)

type Engine struct {
	sched      loop.Scheduler
	lister     storage.Lister
	store      *store.Store
	view       *viewport.Controller
	surface    *render.Surface
	reconciler *reconcile.Reconciler
	channel    *channel.Channel
	options    Options
	logger     log.Log

	state atomic.Int32

	// loop owned
	subs    []channel.Subscription
	mounted []Extension

	ctx    context.Context
	cancel context.CancelFunc
	joins  sync.WaitGroup
}

func New(
	sched loop.Scheduler,
	lister storage.Lister,
	st *store.Store,
	view *viewport.Controller,
	surface *render.Surface,
	reconciler *reconcile.Reconciler,
	ch *channel.Channel,
	options Options,
	logger log.Log,
) *Engine {
	if logger == nil {
		logger = log.Provide()
	}
	logger = logger.With(log.String("component", "engine"))
	if options.Launcher == nil {
		options.Launcher = LogLauncher{Logger: logger}
	}

	e := &Engine{
		sched:      sched,
		lister:     lister,
		store:      st,
		view:       view,
		surface:    surface,
		reconciler: reconciler,
		channel:    ch,
		options:    options,
		logger:     logger,
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	surface.OnHover(reconciler.Hover)
	surface.OnActivate(e.activate)
	return e
}

func (e *Engine) Channel() *channel.Channel  { return e.channel }
func (e *Engine) Surface() *render.Surface   { return e.surface }
func (e *Engine) Scheduler() loop.Scheduler  { return e.sched }
func (e *Engine) Logger() log.Log            { return e.logger }
func (e *Engine) Store() *store.Store        { return e.store }
func (e *Engine) View() *viewport.Controller { return e.view }

func (e *Engine) Mounted() bool { return state(e.state.Load()) == stateMounted }

func extents(areas []models.Area) []viewport.Extent {
	out := make([]viewport.Extent, 0, len(areas))
	for _, a := range areas {
		out = append(out, viewport.Extent{X: a.X, Y: a.Y, SizeX: a.SizeX, SizeY: a.SizeY})
	}
	return out
}
