package lifecycle

import (
	"fmt"
	"log/slog"

	"go.sunspec.dev/internal/buffer"
	"go.sunspec.dev/internal/config"
	"go.sunspec.dev/internal/publisher"
)

// App holds initialized infrastructure that is guaranteed to be connected.
// If you have an *App, you know the buffer store is open and the publisher
// is constructed (mock or live).
//
// This is NOT a god object - it just holds the "dangerous" infrastructure
// that requires connection/retry logic. Application logic should NOT go here.
type App struct {
	Config *config.Config

	Buffer    *buffer.Store
	Publisher *publisher.Publisher

	// Internal cleanup - call AddCleanup to register cleanup functions
	cleanupFuncs []func() error
}

// Initialize creates an App with connected infrastructure: config is loaded
// (from configPath if non-empty, else environment defaults), the buffer
// store is opened, and the publisher is constructed (mock mode when no
// Kafka brokers are configured). Returns an error if any of these fail.
//
// Usage:
//
//	app, cleanup, err := lifecycle.Initialize(configPath)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func Initialize(configPath string) (*App, func(), error) {
	app := &App{}

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	app.Config = cfg

	if err := app.initBuffer(); err != nil {
		app.Cleanup()
		return nil, nil, err
	}

	if err := app.initPublisher(); err != nil {
		app.Cleanup()
		return nil, nil, err
	}

	cleanup := func() {
		app.Cleanup()
	}

	return app, cleanup, nil
}

// AddCleanup registers a cleanup function to be called on shutdown.
// Functions are called in reverse order of registration.
func (app *App) AddCleanup(fn func() error) {
	app.cleanupFuncs = append(app.cleanupFuncs, fn)
}

func (app *App) initBuffer() error {
	cfg := app.Config

	slog.Info("opening buffer store", "path", cfg.Buffer.Path)

	store, err := buffer.Open(cfg.Buffer.Path)
	if err != nil {
		return fmt.Errorf("failed to open buffer store: %w", err)
	}

	app.Buffer = store
	app.AddCleanup(func() error {
		slog.Info("closing buffer store")
		return store.Close()
	})

	return nil
}

func (app *App) initPublisher() error {
	cfg := app.Config

	pub, err := publisher.New(publisher.Config{
		Brokers:           cfg.Kafka.Brokers,
		ClientID:          cfg.Kafka.ClientID,
		Acks:              cfg.Kafka.Acks,
		Compression:       cfg.Kafka.Compression,
		TimeoutMs:         cfg.Kafka.TimeoutMs,
		Topic:             cfg.ResolvedTopic(),
		EnableIdempotence: cfg.Kafka.EnableIdempotence,
	})
	if err != nil {
		return fmt.Errorf("failed to construct publisher: %w", err)
	}

	app.Publisher = pub
	app.AddCleanup(func() error {
		pub.Close()
		return nil
	})

	return nil
}

// Cleanup runs all cleanup functions in reverse order.
func (app *App) Cleanup() {
	for i := len(app.cleanupFuncs) - 1; i >= 0; i-- {
		if err := app.cleanupFuncs[i](); err != nil {
			slog.Error("Cleanup error", "error", err)
		}
	}
}
