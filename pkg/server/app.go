package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"Predictor/internal/domain/repository"
	"Predictor/internal/usecase"
	"Predictor/pkg/cache"
	"Predictor/pkg/config"
	xhttp "Predictor/pkg/http"
	applogger "Predictor/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	sessions   *usecase.SessionManager
	events     repository.EventPublisher
	store      cache.Service
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	sessions *usecase.SessionManager,
	events repository.EventPublisher,
	store cache.Service,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		sessions:   sessions,
		events:     events,
		store:      store,
	}
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the application and blocks until ctx is done or the HTTP
// listener fails.
func (a *App) RunContext(ctx context.Context) error {
	a.sessions.Start(ctx)
	errCh := a.httpServer.Start()

	a.log.Info("predictor started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("cache", a.cfg.Cache.Backend),
		applogger.Bool("kafka", a.cfg.Kafka.Enabled),
		applogger.Strings("allow_origins", a.cfg.Server.AllowOrigins),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err := <-errCh:
		runErr = err
	}

	a.shutdown()
	return runErr
}

// shutdown stops intake first, then cancels sessions, then closes infrastructure.
func (a *App) shutdown() {
	a.log.Info("shutting down...")

	if err := a.httpServer.Stop(context.Background()); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	a.sessions.Shutdown()

	// flush collected logs while the producer is still open
	a.log.RemoveCollector()

	if err := a.events.Close(); err != nil {
		a.log.Warn("event publisher close error", applogger.Error(err))
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
}
