package main

import (
	"errors"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/carrousel/batch"
	"github.com/hazyhaar/carrousel/carousel"
	"github.com/hazyhaar/carrousel/compose"
	"github.com/hazyhaar/carrousel/internal/config"
	"github.com/hazyhaar/carrousel/modules"
	"github.com/hazyhaar/carrousel/render"
	"github.com/hazyhaar/carrousel/renderlog"
	"github.com/hazyhaar/carrousel/server"
)

// app wires the pipeline from one configuration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	reg      *modules.Registry
	composer *compose.Composer
	builder  *carousel.Builder
	surface  *render.BrowserSurface
	engine   *render.Engine
	batches  *batch.Orchestrator
	history  *renderlog.Store
	metrics  *renderlog.Metrics
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, reg: modules.Default()}
	a.composer = compose.New(a.reg,
		compose.WithUnit(compose.Size{Width: cfg.Render.Width, Height: cfg.Render.Height}),
		compose.WithBaseURL(cfg.Assets.BaseURL),
		compose.WithLogger(logger),
	)
	a.builder = carousel.NewBuilder(a.reg, a.composer)

	a.surface = render.NewBrowserSurface(render.BrowserConfig{
		RemoteURL:       cfg.Browser.Remote,
		Bin:             cfg.Browser.Bin,
		NoSandbox:       cfg.Browser.NoSandbox,
		MemoryLimit:     cfg.Browser.MemoryLimit,
		RecycleInterval: cfg.Browser.RecycleInterval,
		AssetBase:       cfg.Assets.BaseURL,
		AssetDir:        cfg.Assets.Dir,
		BlockResources:  cfg.Browser.ResourceBlocking,
		Logger:          logger,
	})
	watchdog := cfg.Render.Watchdog
	if watchdog < 0 {
		watchdog = 0
	}
	ropts := []render.Option{
		render.WithGrace(cfg.Render.Grace),
		render.WithLoadTimeout(cfg.Render.LoadTimeout),
		render.WithWatchdog(watchdog),
		render.WithLogger(logger),
	}
	opts := []batch.Option{
		batch.WithBuilder(carousel.StyleCustom, batch.BuilderFunc(a.builder.BuildCustom)),
		batch.WithCarouselBuilder(a.builder),
		batch.WithLogger(logger),
	}

	if cfg.DB != "" {
		store, err := renderlog.Open(cfg.DB)
		if err != nil {
			return nil, err
		}
		metrics, err := renderlog.NewMetrics(store.DB(), 100, 5*time.Second, logger)
		if err != nil {
			store.Close()
			return nil, err
		}
		a.history, a.metrics = store, metrics
		opts = append(opts, batch.WithRecorder(store))
		ropts = append(ropts, render.WithObserver(metrics))
	}
	a.engine = render.New(a.surface, ropts...)
	a.batches = batch.New(batch.Config{
		OutputDir:     cfg.Output.Dir,
		PublicBaseURL: cfg.Output.PublicURL,
		Concurrency:   cfg.Batch.Concurrency,
		SaveDocuments: cfg.Output.SaveDocuments,
		PDFBundle:     cfg.Output.PDF,
	}, a.engine, a.builder, opts...)
	return a, nil
}

func (a *app) server() *server.Server {
	opts := []server.Option{server.WithHealth(a.surface.Alive), server.WithLogger(a.logger)}
	if a.history != nil {
		opts = append(opts, server.WithHistory(a.history), server.WithMetrics(a.metrics))
	}
	return server.New(server.Config{
		Transform:    a.transformOptions(),
		BatchTimeout: a.cfg.Batch.Timeout,
		OutputDir:    a.cfg.Output.Dir,
		PublicURL:    a.cfg.Output.PublicURL,
		StaticOutput: a.cfg.Server.StaticOutput,
	}, a.reg, a.composer, a.builder, a.batches, opts...)
}

func (a *app) transformOptions() carousel.Options {
	return carousel.Options{
		HighlightColor:      a.cfg.Carousel.HighlightColor,
		HighlightBackground: a.cfg.Carousel.HighlightBackground,
		FilenamePrefix:      a.cfg.Carousel.FilenamePrefix,
	}
}

func (a *app) Close() error {
	var errs []error
	if err := a.engine.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.metrics != nil {
		a.metrics.Close()
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
