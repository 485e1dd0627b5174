// Package app assembles the runtime a command needs: configuration, logger,
// provider holder, catalog and the service on top of them.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/klytics/sheetbot/internal/ai"
	"github.com/klytics/sheetbot/internal/analysis"
	"github.com/klytics/sheetbot/internal/audit"
	"github.com/klytics/sheetbot/internal/catalog"
	"github.com/klytics/sheetbot/internal/config"
	"github.com/klytics/sheetbot/internal/edit"
	"github.com/klytics/sheetbot/internal/logging"
	"github.com/klytics/sheetbot/internal/metrics"
	"github.com/klytics/sheetbot/internal/service"
)

// Flags are the global command-line overrides.
type Flags struct {
	Provider    string
	Model       string
	Verbose     bool
	NoColor     bool
	MetricsFile string
}

// App is the assembled runtime. It is built once per command, or once per
// shell session.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Collector
	Holder  *ai.Holder
	Catalog catalog.Catalog
	Trail   *audit.Trail
	Service *service.Service

	flags Flags
}

// New loads configuration and opens the catalog.
func New(ctx context.Context, flags Flags) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.NoColor || !cfg.Output.Color {
		color.NoColor = true
	}

	logger, err := logging.New(cfg.LogOptions(flags.Verbose))
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Open(ctx, cfg.CatalogOptions())
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("could not open catalog: %w", err)
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewCollector(),
		Catalog: cat,
		Trail:   audit.NewTrail(cfg.Audit.Path, cfg.Audit.Enabled),
		flags:   flags,
	}
	a.Holder = ai.NewHolder(a.aiConfig(cfg), logger, a.Metrics)
	a.Service = a.newService(a.Holder)
	return a, nil
}

func (a *App) newService(sender *ai.Holder) *service.Service {
	an := analysis.New(sender, a.Logger, a.Metrics)
	ed := edit.New(sender,
		edit.WithLogger(a.Logger),
		edit.WithTrail(a.Trail),
		edit.WithMetrics(a.Metrics),
		edit.WithMaxSteps(a.Config.Sandbox.MaxSteps),
	)
	return service.New(a.Catalog, an, ed, a.Config.DataDir, a.Logger)
}

// aiConfig applies the --provider and --model flags to the loaded settings.
func (a *App) aiConfig(cfg *config.Config) ai.Config {
	ac := cfg.ToAIConfig()
	if p := strings.TrimSpace(a.flags.Provider); p != "" {
		ac.Provider = ai.ProviderID(strings.ToLower(p))
		if !strings.EqualFold(p, cfg.Provider) && a.flags.Model == "" {
			ac.Model = ""
		}
	}
	if a.flags.Model != "" {
		ac.Model = a.flags.Model
	}
	return ac
}

// WithOverrides returns an App that shares this one's catalog and logger but
// sends to the provider and model named in flags. Without overrides it
// returns a itself.
func (a *App) WithOverrides(flags Flags) *App {
	if flags.Provider == "" && flags.Model == "" {
		return a
	}
	derived := *a
	derived.flags.Provider = flags.Provider
	derived.flags.Model = flags.Model
	derived.Holder = ai.NewHolder(derived.aiConfig(a.Config), a.Logger, a.Metrics)
	derived.Service = derived.newService(derived.Holder)
	return &derived
}

// Reload re-reads configuration and credentials and swaps the provider
// binding. Catalog and logger settings take effect on the next start.
func (a *App) Reload() (*ai.Binding, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return a.apply(cfg), nil
}

func (a *App) apply(cfg *config.Config) *ai.Binding {
	b := a.Holder.Reload(a.aiConfig(cfg))
	a.Logger.Info("configuration reloaded",
		zap.String("provider", string(b.Provider())),
		zap.Bool("ready", b.Ready()))
	return b
}

// Watch reloads the provider binding whenever the config file changes. It
// reports false when there is no config file to watch.
func (a *App) Watch() bool {
	return config.WatchConfig(func(cfg *config.Config, err error) {
		if err != nil {
			a.Logger.Warn("could not reload configuration", zap.Error(err))
			return
		}
		a.apply(cfg)
	})
}

// Describe is a one-line summary of the provider binding in effect.
func (a *App) Describe() string {
	b := a.Holder.Current()
	state := "ready"
	if !b.Ready() {
		state = "not configured"
	}
	return fmt.Sprintf("%s (%s, %s)", b.Config.Provider, b.Config.ModelOrDefault(), state)
}

// Close releases the catalog, writes metrics if requested and flushes logs.
func (a *App) Close() error {
	var errs []error
	if a.flags.MetricsFile != "" {
		if err := a.Metrics.WriteFile(a.flags.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("could not write metrics: %w", err))
		}
	}
	if err := a.Catalog.Close(); err != nil {
		errs = append(errs, err)
	}
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}

type ctxKey struct{}

// NewContext returns a context carrying a shared App.
func NewContext(ctx context.Context, a *App) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext returns the shared App, if any.
func FromContext(ctx context.Context) (*App, bool) {
	if ctx == nil {
		return nil, false
	}
	a, ok := ctx.Value(ctxKey{}).(*App)
	return a, ok
}

// Acquire returns the App a command should use: the shared one from ctx when
// present, otherwise a fresh one. Call release when done.
func Acquire(ctx context.Context, flags Flags) (a *App, release func(), err error) {
	if shared, ok := FromContext(ctx); ok {
		return shared.WithOverrides(flags), func() {}, nil
	}
	a, err = New(ctx, flags)
	if err != nil {
		return nil, nil, err
	}
	return a, func() {
		if err := a.Close(); err != nil {
			a.Logger.Warn("shutdown", zap.Error(err))
		}
	}, nil
}
