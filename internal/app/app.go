package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/strandchat/gateway/internal/auth"
	"github.com/strandchat/gateway/internal/bus"
	"github.com/strandchat/gateway/internal/bus/redisbus"
	"github.com/strandchat/gateway/internal/config"
	"github.com/strandchat/gateway/internal/gateway"
	"github.com/strandchat/gateway/internal/store"
	"github.com/strandchat/gateway/internal/store/sqlite"
	transporthttp "github.com/strandchat/gateway/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *gateway.Hub
	store           store.Store
	bus             bus.Bus
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	var b bus.Bus
	if cfg.RedisURL != "" {
		rb, err := redisbus.New(cfg.RedisURL)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("init redis bus: %w", err)
		}
		b = rb
		logger.Info().Msg("redis broadcast backbone enabled")
	} else {
		b = bus.NewLocal()
	}

	verifier := auth.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer)

	hub := gateway.NewHub(logger, st, b, cfg.RecoverLimit)
	server := transporthttp.NewServer(hub, verifier, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		bus:             b,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	if err := a.hub.Start(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("start hub: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the store and the broadcast bus.
func (a *App) cleanup() {
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close bus")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
