package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/campuslink/realtime/internal/bridge/redisbridge"
	"github.com/campuslink/realtime/internal/config"
	"github.com/campuslink/realtime/internal/core"
	"github.com/campuslink/realtime/internal/identity"
	"github.com/campuslink/realtime/internal/store"
	"github.com/campuslink/realtime/internal/store/sqlite"
	transporthttp "github.com/campuslink/realtime/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	broadcaster     *core.Broadcaster
	bridge          *redisbridge.Bridge
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	var bridge *redisbridge.Bridge
	var coreBridge core.Bridge
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		bridge, err = redisbridge.New(ctx, cfg.Redis.Addr, logger)
		cancel()
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("init redis bridge: %w", err)
		}
		coreBridge = bridge
		logger.Info().Str("redis_addr", cfg.Redis.Addr).Msg("cross-process broadcast bridge enabled")
	}

	ident := identity.NewService(st, identity.Config{
		StrictSender: cfg.Security.StrictSender,
		JWTSecret:    []byte(cfg.Security.JWTSecret),
	})

	sessions := core.NewSessionTable()
	presence := core.NewPresenceRegistry()
	broadcaster := core.NewBroadcaster(logger, coreBridge)
	relay := core.NewRelay(st, presence, sessions, broadcaster, logger)
	hub := core.NewHub(sessions, presence, broadcaster, relay, ident, st, logger)

	server := transporthttp.NewServer(hub, st, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		broadcaster:     broadcaster,
		bridge:          bridge,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)
	if a.bridge != nil {
		go a.bridge.Run(ctx, a.broadcaster.PublishLocal)
	}

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

// cleanup closes the store and bridge.
func (a *App) cleanup() {
	if a.bridge != nil {
		if err := a.bridge.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis bridge")
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
