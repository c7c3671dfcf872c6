package cli

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"easymemo/application/ports"
	"easymemo/application/repository"
	appsync "easymemo/application/sync"
	"easymemo/infrastructure/config"
	"easymemo/infrastructure/connectivity"
	"easymemo/infrastructure/localstore"
	"easymemo/infrastructure/remote"
)

// App wires the engine together for one command invocation
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Store    ports.LocalStore
	Client   *remote.Client
	Monitor  *connectivity.Monitor
	Repo     *repository.Repository
	Rec      *appsync.Reconciler
	Pager    *repository.Pager
	Identity remote.Identity

	logLevel zap.AtomicLevel
}

// newApp assembles the engine: config, logger, store, identity, client,
// monitor, repository. The repository is hydrated and one reachability probe
// has run before this returns, so commands start from known state.
func newApp(ctx context.Context, configPath string, verbose bool) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, logLevel, err := newLogger(cfg.LogLevel, verbose)
	if err != nil {
		return nil, err
	}

	store, err := localstore.Open(cfg.StorePath)
	if err != nil {
		return nil, err
	}

	identity, guestID, err := resolveIdentity(ctx, cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	client := remote.NewClient(remote.ClientConfig{
		BaseURL:        cfg.APIBaseURL,
		AuthToken:      cfg.AuthToken,
		GuestID:        guestID,
		RequestTimeout: cfg.RequestTimeout,
	}, logger)

	monitor := connectivity.NewMonitor(client, logger,
		connectivity.WithProbeTimeout(cfg.ProbeTimeout),
		connectivity.WithInterval(cfg.ProbeInterval),
	)

	repo := repository.New(client, store, monitor, logger)

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Client:   client,
		Monitor:  monitor,
		Repo:     repo,
		Rec:      appsync.New(repo, monitor, cfg.ReconcileInterval, logger),
		Pager:    repository.NewPager(repo, client, monitor, cfg.PageSize, logger),
		Identity: identity,
		logLevel: logLevel,
	}

	if err := repo.Hydrate(ctx); err != nil {
		app.Close()
		return nil, err
	}
	app.Monitor.Probe(ctx)

	return app, nil
}

// Close releases the app's resources
func (a *App) Close() {
	a.Store.Close()
	a.Logger.Sync()
}

// ApplyReload feeds a reloaded configuration into the running components:
// probe and reconcile cadences and the log level take effect immediately.
// It reports whether the new configuration also touched connection settings,
// which only a restart can apply.
func (a *App) ApplyReload(cfg config.Config) (restartNeeded bool) {
	a.Monitor.SetInterval(cfg.ProbeInterval)
	a.Rec.SetInterval(cfg.ReconcileInterval)

	var level zapcore.Level
	if err := level.Set(cfg.LogLevel); err == nil {
		a.logLevel.SetLevel(level)
	}

	restartNeeded = cfg.APIBaseURL != a.Config.APIBaseURL ||
		cfg.AuthToken != a.Config.AuthToken ||
		cfg.StorePath != a.Config.StorePath
	a.Config = cfg
	return restartNeeded
}

// resolveIdentity picks the request scope: the configured account token, or a
// guest identity persisted in the store so it survives restarts.
func resolveIdentity(ctx context.Context, cfg config.Config, store ports.LocalStore) (remote.Identity, string, error) {
	if cfg.AuthToken != "" {
		id, err := remote.IdentityFromToken(cfg.AuthToken)
		if err != nil {
			return remote.Identity{}, "", err
		}
		return id, "", nil
	}

	guestID, err := store.LoadGuestID(ctx)
	if err != nil {
		return remote.Identity{}, "", err
	}
	if guestID == "" {
		id := remote.NewGuestIdentity()
		if err := store.SaveGuestID(ctx, id.UserID); err != nil {
			return remote.Identity{}, "", err
		}
		return id, id.UserID, nil
	}
	return remote.Identity{UserID: guestID, Guest: true}, guestID, nil
}

func newLogger(level string, verbose bool) (*zap.Logger, zap.AtomicLevel, error) {
	zapLevel := zapcore.InfoLevel
	if err := zapLevel.Set(level); err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	if verbose {
		zapLevel = zapcore.DebugLevel
	}

	atomicLevel := zap.NewAtomicLevelAt(zapLevel)

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = atomicLevel
	zapCfg.OutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	return logger, atomicLevel, nil
}
