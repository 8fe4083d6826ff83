// Package agent wires the keychain agent together: the sqlite-backed local
// store, the in-memory session store, the auth and vault services, the
// request dispatcher and the transport serving routed requests.
package agent

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ettaverse/etta-keychain-sub002/internal/agent/config"
	"github.com/ettaverse/etta-keychain-sub002/internal/broadcast"
	"github.com/ettaverse/etta-keychain-sub002/internal/keychain/auth"
	"github.com/ettaverse/etta-keychain-sub002/internal/keychain/backup"
	"github.com/ettaverse/etta-keychain-sub002/internal/keychain/dispatch"
	"github.com/ettaverse/etta-keychain-sub002/internal/keychain/vault"
	"github.com/ettaverse/etta-keychain-sub002/internal/logging"
	"github.com/ettaverse/etta-keychain-sub002/internal/router"
	"github.com/ettaverse/etta-keychain-sub002/internal/storage"
)

// App owns every service instance for one agent process. There are no
// package-level singletons: everything is constructed here and dropped when
// the process ends.
type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	auth       *auth.Service
	vault      *vault.Service
	dispatcher *dispatch.Dispatcher
	uploader   *backup.Uploader
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := storage.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	local := storage.NewSQLiteStore(db)
	session := storage.NewMemoryStore()

	authSvc := auth.NewService(local, session, logger)
	vaultSvc := vault.NewService(local, session, logger)
	dispatcher := dispatch.New(session, vaultSvc, broadcast.Offline{}, logger)

	uploader := backup.NewUploader(backup.Config{
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
	}, logger)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		auth:       authSvc,
		vault:      vaultSvc,
		dispatcher: dispatcher,
		uploader:   uploader,
	}, nil
}

// Service accessors for embedding the agent in-process (the operator CLI
// runs against these directly over the loopback transport).
func (app *App) Auth() *auth.Service              { return app.auth }
func (app *App) Vault() *vault.Service            { return app.vault }
func (app *App) Dispatcher() *dispatch.Dispatcher { return app.dispatcher }
func (app *App) Uploader() *backup.Uploader       { return app.uploader }
func (app *App) Logger() logging.Logger           { return app.logger }

// RequestTimeout is the configured deadline for routed requests.
func (app *App) RequestTimeout() time.Duration { return app.config.RequestTimeout }

// ChangePassword rotates the master password and re-encrypts the stored
// account list under the new one, so existing accounts stay readable after
// the change. Credential and account blob are written in one transaction; a
// failed re-encryption leaves the old password in force. The session is
// locked afterwards.
func (app *App) ChangePassword(ctx context.Context, current, newPassword, confirm []byte) error {
	return app.auth.ChangePassword(ctx, current, newPassword, confirm,
		func(ctx context.Context, local storage.Store) error {
			return app.vault.ReEncryptIn(ctx, local, current, newPassword)
		})
}

// Unlock validates the master password, opens the session and arms the
// configured auto-lock.
func (app *App) Unlock(ctx context.Context, password []byte) (bool, error) {
	ok, err := app.auth.Unlock(ctx, password)
	if err != nil || !ok {
		return ok, err
	}
	if app.config.AutoLock > 0 {
		if err := app.auth.SetupAutoLock(ctx, app.config.AutoLock); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// ServeBus attaches the relay and dispatcher to a transport: page requests
// come in as envelopes, pass through the relay retag, are handled, and the
// response goes back on the bus. The CLI serves a loopback end this way;
// Run serves a NATS bus.
func (app *App) ServeBus(ctx context.Context, bus router.Bus) error {
	relay := router.NewRelay(
		func(env router.Envelope) error {
			resp := app.dispatcher.Handle(ctx, env)
			return bus.PublishResponse(resp)
		},
		bus.PublishResponse,
		app.logger,
	)

	return bus.SubscribeEnvelopes(func(env router.Envelope) {
		if err := relay.ForwardRequest(env); err != nil {
			app.logger.Error(ctx, "request handling failed", "error", err)
		}
	})
}

// Run serves requests until the context is cancelled or a termination signal
// arrives, then shuts down cleanly. The session store is memory-only, so a
// shutdown always leaves the keychain locked.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting agent")

	app.initSignalHandler(cancelFunc)

	if app.config.NATSURL != "" {
		bus, err := router.NewNATSBus(app.config.NATSURL, app.config.NATSSubjectPrefix, app.logger)
		if err != nil {
			return err
		}
		defer bus.Close()

		if err := app.ServeBus(ctx, bus); err != nil {
			return err
		}
		app.logger.Info(ctx, "serving requests", "subject_prefix", app.config.NATSSubjectPrefix)
	} else {
		app.logger.Info(ctx, "no transport configured, serving in-process only")
	}

	<-ctx.Done()

	app.auth.Lock(context.Background())
	app.logger.Info(context.Background(), "agent stopped")
	return app.db.Close()
}

// Close releases resources without serving. Used by the CLI, which drives
// the services directly instead of calling Run.
func (app *App) Close(ctx context.Context) error {
	app.auth.Lock(ctx)
	return app.db.Close()
}
