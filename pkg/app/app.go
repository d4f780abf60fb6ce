package app

import (
	"context"
	"fmt"
	"log/slog"

	"wordbridge/pkg/anki"
	"wordbridge/pkg/bridge"
	"wordbridge/pkg/config"
	"wordbridge/pkg/container"
	"wordbridge/pkg/dict"
	"wordbridge/pkg/eventbus"
	"wordbridge/pkg/handler"
	"wordbridge/pkg/note"
	"wordbridge/pkg/options"
	"wordbridge/pkg/router"
)

// Service keys under which the core singletons are registered.
const (
	ServiceOptions      = "options.store"
	ServiceAnki         = "anki.client"
	ServiceFormatter    = "note.formatter"
	ServiceDictionaries = "dict.registry"
	ServiceDeinflector  = "dict.deinflector"
)

// EventOptionsChanged carries the full options snapshot after every
// persisted update.
const EventOptionsChanged = "optionsChanged"

// App is the assembled runtime: one container, one event bus, one router,
// and the bridge that feeds messages into the router.
type App struct {
	Container *container.Container
	Bus       *eventbus.Bus
	Router    *router.Router
	Bridge    *bridge.Service
	Store     *options.Store

	cfg *config.Config
	log *slog.Logger
}

// Build wires the whole service graph from cfg. Core services are
// container singletons; handlers are constructed with their dependencies
// resolved through the container and registered under their action names.
func Build(cfg *config.Config, log *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "app")

	c := container.New(container.Options{})
	bus := eventbus.New(eventbus.Options{Logger: log})

	if err := registerServices(c, cfg, log); err != nil {
		return nil, err
	}

	store, err := resolveStore(c)
	if err != nil {
		return nil, err
	}
	opts, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load options: %w", err)
	}

	registry, err := resolveRegistry(c)
	if err != nil {
		return nil, err
	}
	if cfg.Dictionaries.Dir != "" {
		if err := reloadDictionaries(registry, cfg.Dictionaries.Dir, opts); err != nil {
			return nil, err
		}
	}

	rt := router.New(router.Config{
		ThrowOnUnknown:  cfg.Router.ThrowOnUnknown,
		DefaultResponse: router.Fail("unknown action"),
	})
	rt.Use(router.LoggingMiddleware(log))
	if cfg.Router.RateLimit > 0 {
		rt.Use(router.RateLimitMiddleware(cfg.Router.RateLimit, cfg.Router.RateWindow()))
	}

	callbacks := bridge.NewCallbackTable(0, 0)
	svc, err := bridge.NewService(bridge.Config{
		Host: cfg.Bridge.Host,
		Port: cfg.Bridge.Port,
	}, rt.Route, callbacks, log)
	if err != nil {
		return nil, fmt.Errorf("initialize bridge: %w", err)
	}

	if err := registerHandlers(c, rt, svc, callbacks, log); err != nil {
		return nil, err
	}

	// Persisted option updates re-shape the dictionary selection and are
	// re-broadcast for any other in-process listener.
	store.Subscribe(func(updated options.Options) {
		if cfg.Dictionaries.Dir != "" {
			if err := reloadDictionaries(registry, cfg.Dictionaries.Dir, updated); err != nil {
				log.Error("Failed to reload dictionaries", "error", err)
			}
		}
		bus.Emit(context.Background(), EventOptionsChanged, updated)
	})

	return &App{
		Container: c,
		Bus:       bus,
		Router:    rt,
		Bridge:    svc,
		Store:     store,
		cfg:       cfg,
		log:       log,
	}, nil
}

// Run starts the bridge and blocks until ctx is cancelled or the listener
// fails.
func (a *App) Run(ctx context.Context) error {
	return a.Bridge.Run(ctx)
}

func registerServices(c *container.Container, cfg *config.Config, log *slog.Logger) error {
	err := c.Register(ServiceOptions, func(container.Resolver) (any, error) {
		return options.NewStore(cfg.Options.Path, log), nil
	}, container.Singleton)
	if err != nil {
		return fmt.Errorf("register %s: %w", ServiceOptions, err)
	}

	err = c.Register(ServiceAnki, func(container.Resolver) (any, error) {
		return anki.NewClient(anki.Config{
			URL:     cfg.Anki.URL,
			Key:     cfg.Anki.Key,
			Timeout: cfg.Anki.Timeout(),
		})
	}, container.Singleton)
	if err != nil {
		return fmt.Errorf("register %s: %w", ServiceAnki, err)
	}

	err = c.Register(ServiceFormatter, func(container.Resolver) (any, error) {
		return note.NewFormatter(), nil
	}, container.Singleton)
	if err != nil {
		return fmt.Errorf("register %s: %w", ServiceFormatter, err)
	}

	err = c.Register(ServiceDictionaries, func(container.Resolver) (any, error) {
		return dict.NewRegistry(), nil
	}, container.Singleton)
	if err != nil {
		return fmt.Errorf("register %s: %w", ServiceDictionaries, err)
	}

	err = c.Register(ServiceDeinflector, func(container.Resolver) (any, error) {
		return dict.NewDeinflector(nil), nil
	}, container.Singleton)
	if err != nil {
		return fmt.Errorf("register %s: %w", ServiceDeinflector, err)
	}

	return nil
}

func registerHandlers(c *container.Container, rt *router.Router, svc *bridge.Service, callbacks *bridge.CallbackTable, log *slog.Logger) error {
	store, err := resolveStore(c)
	if err != nil {
		return err
	}
	registry, err := resolveRegistry(c)
	if err != nil {
		return err
	}

	deinflectorValue, err := c.Resolve(ServiceDeinflector)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", ServiceDeinflector, err)
	}
	deinflector, ok := deinflectorValue.(*dict.Deinflector)
	if !ok {
		return fmt.Errorf("service %s has unexpected type %T", ServiceDeinflector, deinflectorValue)
	}

	ankiValue, err := c.Resolve(ServiceAnki)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", ServiceAnki, err)
	}
	ankiSvc, ok := ankiValue.(anki.Service)
	if !ok {
		return fmt.Errorf("service %s has unexpected type %T", ServiceAnki, ankiValue)
	}

	formatterValue, err := c.Resolve(ServiceFormatter)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", ServiceFormatter, err)
	}
	formatter, ok := formatterValue.(*note.Formatter)
	if !ok {
		return fmt.Errorf("service %s has unexpected type %T", ServiceFormatter, formatterValue)
	}

	return handler.RegisterAll(rt,
		handler.NewOptionsHandler(store),
		handler.NewDictionaryHandler(registry, deinflector),
		handler.NewAudioHandler(svc, svc, callbacks, log),
		handler.NewAnkiHandler(ankiSvc, formatter, store),
		handler.NewLocaleHandler(store),
		handler.NewFetchHandler(0),
	)
}

func resolveStore(c *container.Container) (*options.Store, error) {
	value, err := c.Resolve(ServiceOptions)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ServiceOptions, err)
	}
	store, ok := value.(*options.Store)
	if !ok {
		return nil, fmt.Errorf("service %s has unexpected type %T", ServiceOptions, value)
	}
	return store, nil
}

func resolveRegistry(c *container.Container) (*dict.Registry, error) {
	value, err := c.Resolve(ServiceDictionaries)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ServiceDictionaries, err)
	}
	registry, ok := value.(*dict.Registry)
	if !ok {
		return nil, fmt.Errorf("service %s has unexpected type %T", ServiceDictionaries, value)
	}
	return registry, nil
}

// reloadDictionaries rebuilds registry from the bundle directory, keeping
// only the dictionaries enabled in opts. An empty enabled list keeps
// everything the directory offers.
func reloadDictionaries(registry *dict.Registry, dir string, opts options.Options) error {
	loaded, err := dict.LoadDir(dir)
	if err != nil {
		return fmt.Errorf("load dictionaries: %w", err)
	}

	enabled := make(map[string]bool, len(opts.Dictionaries))
	for _, name := range opts.Dictionaries {
		enabled[name] = true
	}

	registry.Clear()
	for _, d := range loaded {
		if len(enabled) > 0 && !enabled[d.Metadata().ObjectName] {
			continue
		}
		if err := registry.Register(d); err != nil {
			return fmt.Errorf("register dictionary: %w", err)
		}
	}

	return nil
}
