// Package app composes the client process: config, logging, the session
// lock, the local cache, the socket and REST transports, and the TUI.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/minouverse/minouchat/internal/bus"
	"github.com/minouverse/minouchat/internal/chat"
	"github.com/minouverse/minouchat/internal/config"
	"github.com/minouverse/minouchat/internal/history"
	"github.com/minouverse/minouchat/internal/lock"
	"github.com/minouverse/minouchat/internal/logging"
	"github.com/minouverse/minouchat/internal/rest"
	"github.com/minouverse/minouchat/internal/session"
	"github.com/minouverse/minouchat/internal/socket"
	"github.com/minouverse/minouchat/internal/status"
	"github.com/minouverse/minouchat/internal/store"
	"github.com/minouverse/minouchat/internal/tui"
	"github.com/minouverse/minouchat/internal/wire"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
}

// Module returns the fx module for the client, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideCache,
			provideSocket,
			provideRest,
			provideHistoryEngine,
			provideChatConfig,
			provideViewModel,
			provideApp,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := session.ConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			if saveErr := config.Save(path, config.Default()); saveErr == nil {
				return nil, fmt.Errorf("wrote starter config to %s, fill in identity.user_id and identity.token", path)
			}
		}
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideCache(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.CacheDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	version, changed, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if changed {
		logger.Info("cache migrations applied", zap.Uint("version", version))
	} else {
		logger.Info("cache migrations up to date", zap.Uint("version", version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideSocket(cfg *config.Config, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *socket.Client {
	return socket.New(cfg.Backend.SocketURL, cfg.Identity.Token, machine, b, logger)
}

func provideRest(cfg *config.Config, logger *zap.Logger) *rest.Client {
	return rest.New(cfg.Backend.APIURL, cfg.Identity.Token, logger)
}

func provideHistoryEngine(db *store.DB, cfg *config.Config, b *bus.Bus, logger *zap.Logger) *history.Engine {
	return history.NewEngine(db, b, logger, cfg.Identity.UserID)
}

func provideChatConfig(sc *socket.Client, rc *rest.Client, db *store.DB, cfg *config.Config, b *bus.Bus, logger *zap.Logger) chat.Config {
	return chat.Config{
		Channel:        sc,
		Backend:        rc,
		Cache:          db,
		Bus:            b,
		Logger:         logger,
		SelfID:         cfg.Identity.UserID,
		AckWait:        cfg.AckWait(),
		TypingDebounce: cfg.TypingDebounce(),
		TypingExpiry:   cfg.TypingExpiry(),
	}
}

func provideViewModel(rc *rest.Client, db *store.DB, chatCfg chat.Config) *tui.ViewModel {
	return tui.NewViewModel(rc, db, chatCfg)
}

func provideApp(p Params, vm *tui.ViewModel, b *bus.Bus, logger *zap.Logger) *tui.App {
	return tui.NewApp(vm, b, logger, p.SessionName)
}

func registerLifecycle(lc fx.Lifecycle, sc *socket.Client, engine *history.Engine, cfg *config.Config, db *store.DB, lk *lock.Lock, b *bus.Bus, logger *zap.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Cache write-through (subscribes to chat.* bus events).
			engine.Start(runCtx)

			// Announce presence after every (re)connect so pushes are routed
			// to this user.
			ch, unsub := b.Subscribe("socket.connected", 4)
			go func() {
				defer unsub()
				for {
					select {
					case <-ch:
						if err := sc.Emit(wire.EventJoinUser, wire.JoinUser{UserID: cfg.Identity.UserID}); err != nil {
							logger.Warn("join-user emit failed", zap.Error(err))
						}
					case <-runCtx.Done():
						return
					}
				}
			}()

			// Socket connection loop with reconnect backoff.
			go sc.Run(runCtx)

			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			engine.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}
