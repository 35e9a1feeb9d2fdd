// Package app composes the client from its parts and owns process
// lifecycle: backend discovery and startup, the UI loop, shutdown.
package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/nuqql/nuqql/internal/backend"
	"github.com/nuqql/nuqql/internal/bus"
	"github.com/nuqql/nuqql/internal/config"
	"github.com/nuqql/nuqql/internal/conv"
	"github.com/nuqql/nuqql/internal/logging"
	"github.com/nuqql/nuqql/internal/paths"
	"github.com/nuqql/nuqql/internal/route"
	"github.com/nuqql/nuqql/internal/ui"
)

// Version is the client version reported by --version.
const Version = "0.1.0"

// Params holds the resolved command line options passed to the fx module.
type Params struct {
	BaseDir string // optional override for the working directory
	Sort    string // optional override for the conversation sort key
}

// Core bundles the model objects that exist once per client: the
// conversation list and the built-in conversations.
type Core struct {
	List  *conv.List
	Main  *conv.Conversation
	Nuqql *conv.Conversation
	Self  *backend.Backend
}

// Module returns the fx module for the client, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideQuit,
			provideRegistry,
			provideCore,
			provideRouter,
			provideUI,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.BaseDir != "" {
		paths.SetBaseDir(p.BaseDir)
	}
	if err := paths.EnsureBase(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(paths.ConfigPath())
	if err != nil {
		return nil, err
	}
	if p.Sort != "" {
		cfg.Sort = p.Sort
	}
	return cfg, nil
}

func provideLogger() (*zap.Logger, error) {
	return logging.New(paths.LogPath())
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideQuit() *ui.QuitSignal {
	return &ui.QuitSignal{}
}

func provideRegistry(logger *zap.Logger) *backend.Registry {
	return backend.NewRegistry(logger)
}

func provideCore(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *Core {
	list := conv.NewList(cfg.Sort, b)

	main := conv.NewMain()
	list.Add(main)

	self := backend.NewSelf(logger)
	nuqql := conv.NewNuqql(self)
	self.SetControl(nuqql)
	list.Add(nuqql)

	return &Core{List: list, Main: main, Nuqql: nuqql, Self: self}
}

func provideRouter(reg *backend.Registry, core *Core, quit *ui.QuitSignal,
	logger *zap.Logger) (*route.Router, error) {
	return route.New(reg, core.List, core.Nuqql, paths.GlobalStatusPath(), quit.Request, logger)
}

func provideUI(cfg *config.Config, core *Core, router *route.Router, b *bus.Bus,
	quit *ui.QuitSignal, logger *zap.Logger) *ui.UI {
	return ui.New(cfg, core.List, router, b, quit, logger)
}

func registerLifecycle(lc fx.Lifecycle, sh fx.Shutdowner, cfg *config.Config,
	reg *backend.Registry, core *Core, u *ui.UI, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			reg.Add(core.Self)
			reg.OnStop = core.List.RemoveBackend

			// Spawn every discovered backend with its control
			// conversation. Startup failures surface there, not here.
			for _, d := range backend.Discover(cfg.IsDisabled) {
				be := backend.New(d, logger)
				cc := conv.NewBackend(be)
				be.SetControl(cc)
				core.List.Add(cc)
				reg.Add(be)
				if err := be.Start(); err != nil {
					logger.Error("backend start failed",
						zap.String("backend", be.Name), zap.Error(err))
				}
			}

			go func() {
				if err := u.Run(); err != nil {
					logger.Error("ui terminated", zap.Error(err))
				}
				_ = sh.Shutdown()
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			reg.StopAll()
			_ = logger.Sync()
			return nil
		},
	})
}
