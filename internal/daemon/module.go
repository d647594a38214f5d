package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/microchat/internal/api"
	"github.com/matheus3301/microchat/internal/bus"
	"github.com/matheus3301/microchat/internal/chatsync"
	"github.com/matheus3301/microchat/internal/config"
	"github.com/matheus3301/microchat/internal/lock"
	"github.com/matheus3301/microchat/internal/logging"
	"github.com/matheus3301/microchat/internal/outbox"
	"github.com/matheus3301/microchat/internal/session"
	"github.com/matheus3301/microchat/internal/status"
	"github.com/matheus3301/microchat/internal/store"
	intsync "github.com/matheus3301/microchat/internal/sync"
	"github.com/matheus3301/microchat/internal/upstream"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
	ConfigPath  string // optional override; empty = ~/.microchat/config.toml
}

func (p Params) configPath() string {
	if p.ConfigPath != "" {
		return p.ConfigPath
	}
	return session.ConfigPath()
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideClient,
			provideArchive,
			provideEngine,
			provideConsumer,
			provideNavigator,
			provideSender,
			provideSessionService,
			provideChatService,
			provideMessageService,
			api.NewUploadService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(p.configPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName, cfg.Log.Level)
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
	l, err := lock.Acquire(session.Dir(p.SessionName), "mchatd")
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore opens the archive. The lock is taken first so two daemons
// never migrate the same file.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	if n, err := db.FailInterruptedUploads(); err != nil {
		logger.Warn("failed to close out interrupted uploads", zap.Error(err))
	} else if n > 0 {
		logger.Info("interrupted uploads marked failed", zap.Int64("count", n))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideClient(cfg *config.Config, logger *zap.Logger) *upstream.Client {
	return upstream.New(cfg.Server.BaseURL, cfg.Server.Token, logger.Named("upstream"))
}

func provideArchive(db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, logger.Named("archive"))
}

// namedServer serves name lookups through the peer cache.
type namedServer struct {
	chatsync.Server
	names *intsync.CachedNames
}

func (s namedServer) FetchName(ctx context.Context, key chatsync.ChatKey) (string, error) {
	return s.names.FetchName(ctx, key)
}

// provideEngine builds the engine and reloads uploads journaled by a
// previous run.
func provideEngine(cfg *config.Config, client *upstream.Client, db *store.DB, b *bus.Bus, logger *zap.Logger) *chatsync.Engine {
	engine := chatsync.New(chatsync.Deps{
		Server:  namedServer{Server: client, names: intsync.NewCachedNames(client, db, logger.Named("names"))},
		Journal: db,
		Bus:     b,
		Logger:  logger.Named("engine"),
		Self:    chatsync.Identity{ID: cfg.Server.UserID, Name: cfg.Server.UserName},
		Options: chatsync.Options{ProgressPerSecond: cfg.Upload.ProgressPerSecond},
	})
	if n, err := engine.Uploads().Restore(); err != nil {
		logger.Warn("failed to restore uploads", zap.Error(err))
	} else if n > 0 {
		logger.Info("restored failed uploads", zap.Int("count", n))
	}
	return engine
}

func retryPolicy(cfg *config.Config) chatsync.Backoff {
	return chatsync.Backoff{Base: cfg.Stream.RetryDelay, Max: cfg.Stream.MaxRetryDelay}
}

func provideConsumer(cfg *config.Config, client *upstream.Client, engine *chatsync.Engine, m *status.Machine, logger *zap.Logger) *chatsync.Consumer {
	return chatsync.NewConsumer(client, upstream.Decoder, engine, m, retryPolicy(cfg), logger.Named("stream"))
}

func provideNavigator(engine *chatsync.Engine, db *store.DB, b *bus.Bus, logger *zap.Logger) *chatsync.Navigator {
	return chatsync.NewNavigator(engine, db, b, logger.Named("router"))
}

// provideSender acknowledges delivered drafts and puts the attachments of
// failed sends back into the draft.
func provideSender(db *store.DB, client *upstream.Client, engine *chatsync.Engine, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	key := func(e store.OutboxEntry) chatsync.ChatKey {
		return chatsync.ChatKey{PeerID: e.PeerID, Kind: chatsync.Kind(e.ChatKind)}
	}
	hooks := outbox.Hooks{
		Sent: func(e store.OutboxEntry) {
			if len(e.Attachments) > 0 {
				engine.Sent(key(e), e.Attachments)
			}
		},
		Failed: func(e store.OutboxEntry, _ error) {
			engine.RestoreDraft(key(e), e.Attachments)
		},
	}
	return outbox.NewSender(db, client, b, hooks, logger.Named("outbox"))
}

func provideSessionService(p Params, cfg *config.Config, m *status.Machine, b *bus.Bus, engine *chatsync.Engine, consumer *chatsync.Consumer, archive *intsync.Engine, db *store.DB) *api.SessionService {
	return api.NewSessionService(p.SessionName, cfg.Server.BaseURL, m, b, engine, consumer, archive, db)
}

func provideChatService(cfg *config.Config, engine *chatsync.Engine, nav *chatsync.Navigator, b *bus.Bus, logger *zap.Logger) *api.ChatService {
	return api.NewChatService(engine, nav, b, cfg.Server.BaseURL, logger.Named("api"))
}

func provideMessageService(engine *chatsync.Engine, sender *outbox.Sender, db *store.DB, logger *zap.Logger) *api.MessageService {
	return api.NewMessageService(engine, sender, db, logger.Named("api"))
}

type lifecycleParams struct {
	fx.In

	Params   Params
	Config   *config.Config
	Server   *Server
	Lock     *lock.Lock
	DB       *store.DB
	Client   *upstream.Client
	Archive  *intsync.Engine
	Engine   *chatsync.Engine
	Consumer *chatsync.Consumer
	Nav      *chatsync.Navigator
	Sender   *outbox.Sender
	Bus      *bus.Bus
	Logger   *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, lp lifecycleParams) {
	logger := lp.Logger
	ctx, cancel := context.WithCancel(context.Background())
	runner := &sessionRunner{
		engine:   lp.Engine,
		nav:      lp.Nav,
		consumer: lp.Consumer,
		policy:   retryPolicy(lp.Config),
		logger:   logger,
	}
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// The archive subscribes before anything publishes.
			lp.Archive.Start(ctx)

			go func() {
				if err := lp.Server.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			lp.Sender.Start(ctx)

			go func() {
				defer close(done)
				runner.run(ctx)
			}()

			go func() {
				err := config.Watch(ctx, lp.Params.configPath(), logger, func(cfg *config.Config) {
					if cfg.Server.Token != lp.Client.Token() {
						lp.Client.SetToken(cfg.Server.Token)
						logger.Info("server token replaced")
					}
					lp.Bus.Emit(bus.KindConfigReloaded, cfg)
				})
				if err != nil {
					logger.Warn("config watch stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
				logger.Warn("session runner did not stop in time")
			}
			lp.Server.Stop(stopCtx)
			lp.Sender.Stop()
			lp.Engine.Close()
			lp.Archive.Stop()
			if err := lp.DB.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lp.Lock.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
