package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/zeusync/mapsync/internal/config"
	"github.com/zeusync/mapsync/internal/core/observability/log"
	"github.com/zeusync/mapsync/internal/core/render"
	"github.com/zeusync/mapsync/internal/core/render/raster"
	"github.com/zeusync/mapsync/internal/core/render/term"
	"github.com/zeusync/mapsync/internal/core/schema"
	"github.com/zeusync/mapsync/internal/core/storage/sqlite"
	"github.com/zeusync/mapsync/internal/core/store"
	"github.com/zeusync/mapsync/internal/injector"
	"github.com/zeusync/mapsync/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	printSchema := flag.Bool("schema", false, "print the JSON schema of every event and exit")
	exportSQLite := flag.String("export-sqlite", "", "copy the configured catalog into a SQLite file and exit")
	flag.Parse()

	if *printSchema {
		doc, err := schema.Document()
		if err != nil {
			fail(err)
		}
		fmt.Println(string(doc))
		return
	}

	cfg := config.Default()
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		err = cfg.Validate()
	}
	if err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *exportSQLite != "" {
		if err = export(ctx, cfg, *exportSQLite); err != nil {
			fail(err)
		}
		return
	}

	if err = run(ctx, cfg); err != nil {
		fail(err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		drawer render.Drawer
		screen tcell.Screen
	)
	switch cfg.Render.Backend {
	case config.RenderTerminal:
		s, err := tcell.NewScreen()
		if err != nil {
			return err
		}
		if err = s.Init(); err != nil {
			return err
		}
		s.EnableMouse()
		screen = s
		td := term.NewDrawer(s, true)
		cfg.Canvas.Width, cfg.Canvas.Height = td.CanvasSize()
		if cfg.LogFile == "" {
			cfg.LogFile = "mapsync.log"
		}
		drawer = td
	case config.RenderPNG:
		drawer = raster.NewDrawer(cfg.Render.PNGPath)
	default:
		drawer = raster.NewDrawer("")
	}

	app, cleanup, err := injector.InitializeApp(cfg, drawer, injector.Hooks{OnQuit: cancel})
	if err != nil {
		if screen != nil {
			screen.Fini()
		}
		return err
	}
	defer cleanup()
	logger := app.Logger
	defer func() { _ = logger.Sync() }()

	// The loop outlives ctx so that Unmount can still run on it.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = app.Loop.Run(loopCtx)
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	if err = app.Engine.Mount(ctx); err != nil {
		if !app.Engine.Mounted() {
			if screen != nil {
				screen.Fini()
			}
			return err
		}
		logger.Warn("Live events unavailable, map is static", log.Error(err))
	}

	if screen != nil {
		go term.NewInput(app.Loop, app.Engine).Run(ctx, screen)
	}

	var inspector *server.Server
	if cfg.Inspect.Listen != "" {
		inspector = server.New(app.Engine, logger)
		if err = inspector.Start(cfg.Inspect.Listen); err != nil {
			logger.Error("Inspector failed to start", log.Error(err))
			inspector = nil
		}
	}

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if inspector != nil {
		if err = inspector.Stop(shutdownCtx); err != nil {
			logger.Warn("Inspector stop failed", log.Error(err))
		}
	}

	if err = app.Engine.Unmount(shutdownCtx); err != nil {
		logger.Warn("Unmount finished with errors", log.Error(err))
	}
	return nil
}

func export(ctx context.Context, cfg config.Config, path string) error {
	logger := log.NewWithOutput(cfg.Level(), cfg.LogOutputs()...)
	defer func() { _ = logger.Sync() }()

	lister, cleanup, err := injector.ProvideLister(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	snap, err := store.Fetch(ctx, lister)
	if err != nil {
		return err
	}
	db, err := sqlite.Open(path, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err = db.Save(ctx, snap); err != nil {
		return err
	}
	logger.Info("Catalog exported",
		log.String("path", path),
		log.Int("areas", len(snap.Areas)),
		log.Int("servers", len(snap.Servers)),
	)
	return nil
}

func fail(err error) {
	_, _ = fmt.Fprintln(os.Stderr, "mapsync:", err)
	os.Exit(1)
}
