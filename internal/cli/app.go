// Package cli wires configuration into the engine, persistence and surfaces used
// by the parley command.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/adapters/process"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/provider"
	"github.com/aretw0/parley/pkg/runner"
	"github.com/aretw0/parley/pkg/session"
	"github.com/aretw0/parley/pkg/tools"
	"github.com/aretw0/parley/pkg/tools/builtin"
)

// App holds everything a command needs.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Engine      *parley.Engine
	Sessions    *session.Manager
	Metrics     *observability.Metrics
	Persistence *Persistence
}

// AppOption configures NewApp.
type AppOption func(*appOptions)

type appOptions struct {
	logOutput io.Writer
	provider  ports.Provider
	confirm   runner.IOHandler
}

// WithLogOutput redirects logs. Defaults to stderr.
func WithLogOutput(w io.Writer) AppOption {
	return func(o *appOptions) { o.logOutput = w }
}

// WithProvider replaces the offline provider.
func WithProvider(p ports.Provider) AppOption {
	return func(o *appOptions) { o.provider = p }
}

// WithToolConfirmation asks through h before every tool call when tools.confirm is set.
func WithToolConfirmation(h runner.IOHandler) AppOption {
	return func(o *appOptions) { o.confirm = h }
}

// NewApp builds the application from cfg.
func NewApp(cfg *config.Config, opts ...AppOption) (*App, error) {
	o := appOptions{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	if o.provider == nil {
		o.provider = provider.NewLocal()
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.NewWithFormat(o.logOutput, level, cfg.Log.Format)

	persistence, err := NewPersistence(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("error initializing store: %w", err)
	}

	sessionOpts := []session.Option{session.WithLogger(logger)}
	if persistence.Locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(persistence.Locker))
	}
	sessions := session.NewManager(persistence.Store, sessionOpts...)

	registry, err := buildRegistry(cfg.Tools, logger)
	if err != nil {
		_ = persistence.Close()
		return nil, err
	}

	interceptors := []tools.Interceptor{tools.AllowList(cfg.Tools.Allow...)}
	if cfg.Tools.Confirm && o.confirm != nil {
		interceptors = append(interceptors, runner.ConfirmationMiddleware(o.confirm))
	}

	metrics := observability.NewMetrics(nil)
	engineOpts := []parley.Option{
		parley.WithProvider(o.provider),
		parley.WithRegistry(registry),
		parley.WithLogger(logger),
		parley.WithLifecycleHooks(domain.MergeHooks(metrics.Hooks(), observability.LogHooks(logger))),
		parley.WithInterceptor(tools.Chain(interceptors...)),
		parley.WithMaxSteps(cfg.Engine.MaxSteps),
		parley.WithTimeout(cfg.Engine.Timeout),
		parley.WithToolTimeout(cfg.Engine.ToolTimeout),
		parley.WithHistoryWindow(cfg.Engine.HistoryWindow),
		parley.WithMaxHistory(cfg.Engine.MaxHistory),
		parley.WithMaxThoughts(cfg.Engine.MaxThoughts),
	}

	return &App{
		Config:      cfg,
		Logger:      logger,
		Engine:      parley.New(engineOpts...),
		Sessions:    sessions,
		Metrics:     metrics,
		Persistence: persistence,
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Persistence.Close()
}

// buildRegistry registers the built-in tools and the process tools declared in cfg.Path.
func buildRegistry(cfg config.ToolsConfig, logger *slog.Logger) (*tools.Registry, error) {
	registry := tools.NewRegistry()
	if cfg.Builtin {
		registry.MustRegister(builtin.All()...)
	}
	if cfg.Path == "" {
		return registry, nil
	}

	toolConfig, err := process.LoadTools(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tools config %s: %w", cfg.Path, err)
	}
	procTools, err := process.NewRunner(process.WithRegistry(toolConfig)).Tools()
	if err != nil {
		return nil, err
	}
	for _, t := range procTools {
		if err := registry.Register(t); err != nil {
			if errors.Is(err, tools.ErrToolExists) {
				logger.Warn("Process tool shadows a built-in, skipping", "tool", t.Name)
				continue
			}
			return nil, err
		}
	}
	logger.Debug("Tools loaded", "builtin", cfg.Builtin, "process", len(procTools), "path", cfg.Path)
	return registry, nil
}
