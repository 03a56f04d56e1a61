package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aretw0/wizard/internal/config"
	"github.com/aretw0/wizard/internal/logging"
	"github.com/aretw0/wizard/internal/runtime"
	"github.com/aretw0/wizard/pkg/adapters/file"
	loamadapter "github.com/aretw0/wizard/pkg/adapters/loam"
	"github.com/aretw0/wizard/pkg/adapters/memory"
	redisadapter "github.com/aretw0/wizard/pkg/adapters/redis"
	"github.com/aretw0/wizard/pkg/adapters/router"
	"github.com/aretw0/wizard/pkg/adapters/sqlstore"
	"github.com/aretw0/wizard/pkg/machines"
	"github.com/aretw0/wizard/pkg/metrics"
	"github.com/aretw0/wizard/pkg/persistence/middleware"
	"github.com/aretw0/wizard/pkg/ports"
	"github.com/aretw0/wizard/pkg/session"
)

// Environment is everything a command needs to host tours, built from a Config.
type Environment struct {
	Config   config.Config
	Logger   *slog.Logger
	Machines *machines.Registry
	Storage  ports.Storage
	Sessions *session.Manager
	Metrics  *metrics.Collectors
	Registry *prometheus.Registry

	closers []func() error
}

// SetupOptions tweaks Setup for a given command.
type SetupOptions struct {
	// Debug logs every transition and action.
	Debug bool
	// OnNavigate observes the route table of every session.
	OnNavigate func(sessionID string, nav router.Navigation)
}

// Setup validates cfg and wires storage, machines, metrics and the session manager.
// Callers must Close the environment.
func Setup(ctx context.Context, cfg config.Config, opts SetupOptions) (*Environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	if opts.Debug {
		level = slog.LevelDebug
	}
	env := &Environment{
		Config:   cfg,
		Logger:   logging.NewWithWriter(os.Stderr, level, cfg.Log.JSON),
		Registry: prometheus.NewRegistry(),
	}
	env.Registry.MustRegister(collectors.NewGoCollector())

	reg, err := LoadMachines(cfg)
	if err != nil {
		return nil, err
	}
	env.Machines = reg

	storage, locker, err := env.openStorage(ctx)
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	env.Storage = storage

	env.Metrics = metrics.New(env.Registry)
	hooks := env.Metrics.Hooks()
	if opts.Debug {
		hooks = env.Metrics.Hooks(createDebugHooks(env.Logger))
	}

	routes := cfg.Routes
	sessionOpts := []session.Option{
		session.WithLogger(env.Logger),
		session.WithPrefix(cfg.Prefix),
		session.WithControllerOptions(runtime.WithLifecycleHooks(hooks)),
		session.WithRouterFactory(func(id string) ports.Router {
			ropts := []router.Option{router.WithRoutes(routes)}
			if opts.OnNavigate != nil {
				ropts = append(ropts, router.OnNavigate(func(n router.Navigation) {
					opts.OnNavigate(id, n)
				}))
			}
			return router.New(ropts...)
		}),
	}
	if locker != nil {
		sessionOpts = append(sessionOpts,
			session.WithLocker(locker),
			session.WithLockTTL(cfg.Redis.LockTTL),
		)
	}
	env.Sessions = session.NewManager(reg.Tutorial(), reg, storage, sessionOpts...)
	return env, nil
}

// LoadMachines reads the tables from machines.dir, or the bundled set when unset,
// and layers the Markdown copy of machines.components over the catalog.
func LoadMachines(cfg config.Config) (*machines.Registry, error) {
	var (
		reg *machines.Registry
		err error
	)
	if cfg.Machines.Dir == "" {
		reg, err = machines.Default()
	} else {
		reg, err = machines.LoadFS(os.DirFS(cfg.Machines.Dir))
	}
	if err != nil {
		return nil, fmt.Errorf("load machines: %w", err)
	}

	if cfg.Machines.Components == "" {
		return reg, nil
	}
	catalog, err := loamadapter.Open(cfg.Machines.Components)
	if err != nil {
		return nil, err
	}
	components, err := catalog.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load components from %s: %w", cfg.Machines.Components, err)
	}
	return reg.WithComponents(components), nil
}

// openStorage builds the configured backend and stacks the redaction and
// encryption middlewares on top of it. Redaction runs first so masked values
// are what gets encrypted.
func (e *Environment) openStorage(ctx context.Context) (ports.Storage, ports.DistributedLocker, error) {
	cfg := e.Config
	var (
		base   ports.Storage
		locker ports.DistributedLocker
	)

	switch cfg.Store {
	case config.StoreMemory, "":
		base = memory.NewStore()
	case config.StoreFile:
		base = file.New(cfg.File.Dir)
	case config.StoreRedis:
		var ropts []redisadapter.Option
		if cfg.Redis.TTL > 0 {
			ropts = append(ropts, redisadapter.WithTTL(cfg.Redis.TTL))
		}
		store := redisadapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, ropts...)
		if err := store.Client().Ping(ctx).Err(); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		e.closers = append(e.closers, store.Close)
		if cfg.Redis.LockTTL > 0 {
			locker = redisadapter.NewLocker(store.Client(), cfg.Prefix)
		}
		base = store
	case config.StoreMySQL:
		var sopts []sqlstore.Option
		if cfg.MySQL.Table != "" {
			sopts = append(sopts, sqlstore.WithTable(cfg.MySQL.Table))
		}
		store, err := sqlstore.Open(ctx, cfg.MySQL.DSN, sopts...)
		if err != nil {
			return nil, nil, err
		}
		e.closers = append(e.closers, store.Close)
		base = store
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}

	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.Redact))
	}
	if cfg.Encryption.Key != "" {
		enc, err := encryptionConfig(cfg.Encryption)
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(enc))
	}
	e.Logger.Debug("storage ready", "store", cfg.Store, "middlewares", len(mws))
	return middleware.Chain(base, mws...), locker, nil
}

func encryptionConfig(c config.EncryptionConfig) (middleware.EncryptionConfig, error) {
	active, err := middleware.ParseKey(c.Key)
	if err != nil {
		return middleware.EncryptionConfig{}, err
	}
	out := middleware.EncryptionConfig{ActiveKey: active}
	for _, k := range c.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return middleware.EncryptionConfig{}, err
		}
		out.FallbackKeys = append(out.FallbackKeys, key)
	}
	return out, nil
}

// Close releases backend connections.
func (e *Environment) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	e.closers = nil
	return errors.Join(errs...)
}
