// Package app assembles the serving core into one explicit application
// context: configuration, logging, the function registry, file and cache
// stores, document processing, the token stream bridge and the cleanup
// scheduler. The context is constructed once at startup and passed into
// request handlers and background jobs; there is no module-level state.
package app

import (
	"context"
	"fmt"

	"github.com/tinyllm/tinyllm/cleanup"
	"github.com/tinyllm/tinyllm/config"
	"github.com/tinyllm/tinyllm/doccache"
	"github.com/tinyllm/tinyllm/document"
	"github.com/tinyllm/tinyllm/filestore"
	"github.com/tinyllm/tinyllm/function"
	"github.com/tinyllm/tinyllm/logging"
	"github.com/tinyllm/tinyllm/model"
	"github.com/tinyllm/tinyllm/search"
	"github.com/tinyllm/tinyllm/stream"
	"github.com/tinyllm/tinyllm/weather"
)

// Options configure the application context.
type Options struct {
	// Settings defaults to config.Default() if nil.
	Settings *config.Settings

	// Logger defaults to NoOp if nil.
	Logger logging.Logger

	// Generator is the model collaborator. Defaults to a MockGenerator,
	// which is only useful for tests and examples.
	Generator model.Generator

	// Converter is the document conversion collaborator. When nil, document
	// processing reports conversion as unavailable.
	Converter document.Converter
}

// App is the application context.
type App struct {
	Settings  *config.Settings
	Logger    logging.Logger
	Registry  *function.Registry
	Files     *filestore.Store
	Cache     *doccache.Cache
	Documents *document.Processor
	Bridge    *stream.Bridge
	Scheduler *cleanup.Scheduler
	Generator model.Generator
}

// New constructs the full application context. Any unset collaborator gets a
// safe default.
func New(optFns ...func(o *Options)) (*App, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Settings == nil {
		opts.Settings = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Generator == nil {
		opts.Generator = model.NewMockGenerator("mock")
	}
	if opts.Converter == nil {
		opts.Converter = document.ConverterFunc(
			func(ctx context.Context, path string) (*doccache.Document, error) {
				return nil, fmt.Errorf("no document converter configured")
			})
	}
	settings := opts.Settings
	logger := opts.Logger

	files, err := filestore.New(
		settings.UploadDir,
		settings.MaxFileSizeBytes(),
		settings.AllowedExtensions,
		filestore.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}

	cache, err := doccache.New(
		settings.CacheDir,
		settings.CacheTTL(),
		doccache.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("init document cache: %w", err)
	}

	registry := function.NewRegistry(function.WithLogger(logger))
	registry.Register(weather.NewClient(
		settings.MeteoblueAPIKey,
		settings.WeatherTimeout,
		weather.WithLogger(logger),
	).Handler())
	registry.Register(search.NewClient(
		settings.SearchTimeout,
		search.WithLogger(logger),
	).Handler())

	scheduler := cleanup.New(files, cache,
		cleanup.WithFileInterval(settings.FileCleanupInterval),
		cleanup.WithCacheInterval(settings.CacheCleanupInterval),
		cleanup.WithFileMaxAge(settings.FileMaxAge),
		cleanup.WithLogger(logger),
	)

	return &App{
		Settings:  settings,
		Logger:    logger,
		Registry:  registry,
		Files:     files,
		Cache:     cache,
		Documents: document.NewProcessor(opts.Converter, cache, logger),
		Bridge: stream.NewBridge(
			stream.WithGracePeriod(settings.StreamGracePeriod),
			stream.WithLogger(logger),
		),
		Scheduler: scheduler,
		Generator: opts.Generator,
	}, nil
}

// Start launches the background cleanup jobs.
func (a *App) Start() {
	a.Scheduler.Start()
	a.Logger.Info("application context started",
		"model", a.Generator.Info().Name, "provider", a.Generator.Info().Provider)
}

// Shutdown stops background work and releases resources, waiting for
// in-flight jobs until ctx expires.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Scheduler.Shutdown(ctx)
	if cerr := a.Cache.Close(); cerr != nil && err == nil {
		err = cerr
	}
	a.Logger.Info("application context stopped")
	return err
}

// GenerateStream starts a streaming generation session for the given
// parameters, filling unset sampling parameters from configuration defaults.
func (a *App) GenerateStream(ctx context.Context, params model.Params) *stream.Session {
	if params.MaxTokens == 0 {
		params.MaxTokens = a.Settings.DefaultMaxTokens
	}
	if params.Temperature == 0 {
		params.Temperature = a.Settings.DefaultTemperature
	}
	if params.TopP == 0 {
		params.TopP = a.Settings.DefaultTopP
	}

	return a.Bridge.Start(ctx, func(ctx context.Context, emit func(string) error) error {
		return a.Generator.Generate(ctx, params, emit)
	})
}
