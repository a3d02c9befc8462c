// Package app is the composition root. It wires the discovery output into
// the module catalog, binds the persisted record source to the provider
// manager, and hands the factory to the host container.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/plugboard/internal/catalog"
	"github.com/vk/plugboard/internal/ctxlog"
	"github.com/vk/plugboard/internal/di"
	"github.com/vk/plugboard/internal/discovery"
	"github.com/vk/plugboard/internal/factory"
	"github.com/vk/plugboard/internal/hclstore"
	"github.com/vk/plugboard/internal/manager"
	"github.com/vk/plugboard/internal/store"
)

// App encapsulates the registry pipeline and its lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	catalog *catalog.Catalog
	manager *manager.Manager
	factory *factory.Factory

	discoveryErrors []*discovery.Error
}

// NewApp builds a fully wired App. A nil records source falls back to the
// HCL store rooted at cfg.ProvidersPath; a nil container falls back to
// di.Empty. Passing no sources registers the compiled-in coreSources.
// Fatal configuration errors panic; an inconsistent registry must never
// serve traffic, and the caller recovers to produce a clean exit.
func NewApp(outW io.Writer, cfg *Config, records store.Source, container di.Container, sources ...discovery.Source) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	if len(sources) == 0 {
		sources = coreSources
	}

	policy := discovery.Policy{
		Prefixes:      cfg.ModulePrefixes,
		CollectErrors: cfg.CollectDiscoveryErrors,
	}
	descriptors, discErrs, err := discovery.Discover(ctx, sources, policy)
	if err != nil {
		panic(fmt.Errorf("module discovery failed: %w", err))
	}

	cat, err := catalog.New(ctx, descriptors)
	if err != nil {
		panic(fmt.Errorf("module catalog construction failed: %w", err))
	}
	logger.Debug("Module catalog ready.", "areas", len(cat.Areas()))

	if records == nil {
		records = hclstore.New(cfg.ProvidersPath)
	}

	mgr := manager.New(cat, records)
	fac := factory.New(cat, mgr, container)

	return &App{
		outW:            outW,
		logger:          logger,
		catalog:         cat,
		manager:         mgr,
		factory:         fac,
		discoveryErrors: discErrs,
	}
}

// Catalog returns the immutable module catalog.
func (a *App) Catalog() *catalog.Catalog { return a.catalog }

// Manager returns the provider manager.
func (a *App) Manager() *manager.Manager { return a.manager }

// Factory returns the instance factory.
func (a *App) Factory() *factory.Factory { return a.factory }

// Logger returns the app's isolated logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// DiscoveryErrors returns the errors collected under the fail-soft
// discovery policy. Empty under fail-fast.
func (a *App) DiscoveryErrors() []*discovery.Error { return a.discoveryErrors }

// RegisterProviders publishes one resolver per area interface into the
// host container's registrar.
func (a *App) RegisterProviders(reg di.Registrar) {
	a.factory.RegisterAll(reg)
}

// Run initializes the provider cache from the persisted records and
// reports each area's active provider. It is what the CLI executes as a
// configuration check.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	for _, area := range a.catalog.Areas() {
		entry, ok, err := a.manager.GetActiveByArea(ctx, area)
		if err != nil {
			return err
		}
		if !ok {
			a.logger.Warn("Area has no active provider.", "area", area)
			fmt.Fprintf(a.outW, "area %q: no active provider\n", area)
			continue
		}
		a.logger.Info("Active provider resolved.",
			"area", area, "provider", entry.Name, "module", entry.Module.Identifier)
		fmt.Fprintf(a.outW, "area %q: %s (module %s, provider %q)\n",
			area, entry.Module.DisplayName, entry.Module.Identifier, entry.Name)
	}
	return nil
}
