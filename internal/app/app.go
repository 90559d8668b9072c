package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/richgram/richgram-server/internal/auth"
	"github.com/richgram/richgram-server/internal/blob"
	"github.com/richgram/richgram-server/internal/config"
	"github.com/richgram/richgram-server/internal/core"
	"github.com/richgram/richgram-server/internal/service/friends"
	"github.com/richgram/richgram-server/internal/service/users"
	"github.com/richgram/richgram-server/internal/store"
	"github.com/richgram/richgram-server/internal/store/sqlite"
	transporthttp "github.com/richgram/richgram-server/internal/transport/http"
)

// uploadsBaseURL is the path prefix uploaded files are served under.
const uploadsBaseURL = "/uploads"

// App wires together store, services and transport.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with the provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	hub := core.NewHub(st, logger)
	friendsService := friends.New(st, hub.NotifyFriendsChanged)
	usersService := users.New(st, hub)

	blobStore, err := blob.NewDiskStore(cfg.UploadDir, uploadsBaseURL)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init blob store: %w", err)
	}

	server := transporthttp.NewServer(transporthttp.Services{
		Hub:     hub,
		Auth:    authService,
		Users:   usersService,
		Friends: friendsService,
		Blobs:   blobStore,
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the hub and the HTTP server and blocks until context
// cancellation or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	a.log.Info().Str("addr", a.server.Addr).Msg("server listening")

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

// cleanup closes the database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
