// Package factory resolves capability interfaces to provider instances.
// It is the piece the host DI container calls once per request: given an
// interface type, it finds the area bound to it, looks up the single
// active entry, and runs the module's constructor with the bound options
// and the host container.
package factory

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/plugboard/internal/catalog"
	"github.com/vk/plugboard/internal/ctxlog"
	"github.com/vk/plugboard/internal/di"
	"github.com/vk/plugboard/internal/manager"
	"github.com/vk/plugboard/internal/module"
)

// ResolutionError reports why a provider could not be resolved for an
// interface. It carries enough context to identify the offending area,
// interface and provider without reading logs.
type ResolutionError struct {
	Area      string
	Interface reflect.Type
	Provider  string // persisted provider name, when one was found
	Err       error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("resolution failed for %s", e.Interface)
	if e.Area != "" {
		msg += fmt.Sprintf(" (area %q", e.Area)
		if e.Provider != "" {
			msg += fmt.Sprintf(", provider %q", e.Provider)
		}
		msg += ")"
	}
	return msg + ": " + e.Err.Error()
}

// Unwrap exposes the underlying cause.
func (e *ResolutionError) Unwrap() error { return e.Err }

// Factory produces provider instances for registered interfaces.
type Factory struct {
	catalog *catalog.Catalog
	manager *manager.Manager
	deps    di.Container
}

// New returns a Factory. A nil container falls back to di.Empty, which
// fails any constructor that actually needs host dependencies.
func New(cat *catalog.Catalog, mgr *manager.Manager, deps di.Container) *Factory {
	if deps == nil {
		deps = di.Empty()
	}
	return &Factory{catalog: cat, manager: mgr, deps: deps}
}

// Resolve builds the active provider instance for a capability interface.
// Every failure is a *ResolutionError; a failure never corrupts the cache,
// so subsequent requests are unaffected.
func (f *Factory) Resolve(ctx context.Context, ifaceType reflect.Type) (module.Provider, error) {
	logger := ctxlog.FromContext(ctx)

	area, ok := f.catalog.AreaByInterface(ifaceType)
	if !ok {
		return nil, &ResolutionError{
			Interface: ifaceType,
			Err:       fmt.Errorf("no area registered for interface"),
		}
	}

	entry, ok, err := f.manager.GetActiveByArea(ctx, area)
	if err != nil {
		return nil, &ResolutionError{Area: area, Interface: ifaceType, Err: err}
	}
	if !ok {
		return nil, &ResolutionError{
			Area:      area,
			Interface: ifaceType,
			Err:       fmt.Errorf("no active provider"),
		}
	}

	if !entry.Module.ProviderType.AssignableTo(ifaceType) {
		return nil, &ResolutionError{
			Area:      area,
			Interface: ifaceType,
			Provider:  entry.Name,
			Err: fmt.Errorf("provider type %s does not implement requested interface",
				entry.Module.ProviderType),
		}
	}

	ctors := entry.Module.Constructors
	if len(ctors) != 1 {
		return nil, &ResolutionError{
			Area:      area,
			Interface: ifaceType,
			Provider:  entry.Name,
			Err: fmt.Errorf("provider type %s has %d constructors, exactly one is required",
				entry.Module.ProviderType, len(ctors)),
		}
	}

	instance, err := ctors[0](ctx, module.BuildContext{Options: entry.Options, Deps: f.deps})
	if err != nil {
		return nil, &ResolutionError{Area: area, Interface: ifaceType, Provider: entry.Name, Err: err}
	}

	logger.Debug("Resolved provider instance.",
		"area", area, "provider", entry.Name, "module", entry.Module.Identifier)
	return instance, nil
}

// Resolve is the typed counterpart of Factory.Resolve:
//
//	sender, err := factory.Resolve[areas.EmailSender](ctx, f)
func Resolve[T any](ctx context.Context, f *Factory) (T, error) {
	var zero T
	ifaceType := reflect.TypeOf((*T)(nil)).Elem()

	instance, err := f.Resolve(ctx, ifaceType)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, &ResolutionError{
			Interface: ifaceType,
			Err:       fmt.Errorf("constructor returned %T, which does not implement requested interface", instance),
		}
	}
	return typed, nil
}

// RegisterAll publishes one build callback per registered capability
// interface into the host container, so the host resolves providers
// through this factory without knowing about areas or modules.
func (f *Factory) RegisterAll(reg di.Registrar) {
	for _, area := range f.catalog.Areas() {
		ifaceType, ok := f.catalog.InterfaceType(area)
		if !ok {
			continue
		}
		t := ifaceType
		reg.Register(t, func(ctx context.Context) (any, error) {
			return f.Resolve(ctx, t)
		})
	}
}
