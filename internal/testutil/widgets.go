// Package testutil provides shared fixtures for registry tests: a fake
// widget area with registerable provider modules, a counting record
// source, and a fake host container.
package testutil

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/plugboard/internal/discovery"
	"github.com/vk/plugboard/internal/module"
)

// WidgetArea is the area name used by test fixtures.
const WidgetArea = "widget"

// Widget is the capability interface of the test area.
type Widget interface {
	module.Provider
	Describe() string
}

// WidgetOptions is the options type bound to widget records.
type WidgetOptions struct {
	Label string
	Level int
}

// NoopWidget is a do-nothing widget provider.
type NoopWidget struct {
	Options WidgetOptions
}

var _ Widget = (*NoopWidget)(nil)

// Describe implements Widget.
func (w *NoopWidget) Describe() string {
	return fmt.Sprintf("noop widget %q level %d", w.Options.Label, w.Options.Level)
}

// Close implements the Provider capability.
func (w *NoopWidget) Close(ctx context.Context) error { return nil }

// NewNoopWidget is the noop module's constructor.
func NewNoopWidget(ctx context.Context, opts WidgetOptions, _ module.BuildContext) (module.Provider, error) {
	return &NoopWidget{Options: opts}, nil
}

// LoudWidget is a second widget implementation so tests can exercise
// multiple modules within one area.
type LoudWidget struct{}

var _ Widget = (*LoudWidget)(nil)

// Describe implements Widget.
func (w *LoudWidget) Describe() string { return "LOUD WIDGET" }

// Close implements the Provider capability.
func (w *LoudWidget) Close(ctx context.Context) error { return nil }

// Stamp is a dependency resolved from the host container by DepWidget.
type Stamp struct {
	Value string
}

// DepWidget is a widget whose constructor pulls a *Stamp from the host
// container, exercising the DI path of the build context.
type DepWidget struct {
	Stamp *Stamp
}

var _ Widget = (*DepWidget)(nil)

// Describe implements Widget.
func (w *DepWidget) Describe() string { return "stamped " + w.Stamp.Value }

// Close implements the Provider capability.
func (w *DepWidget) Close(ctx context.Context) error { return nil }

// NoopDescriptor returns a valid descriptor for the noop widget module.
func NoopDescriptor() module.Descriptor {
	return module.Descriptor{
		Area:          WidgetArea,
		Identifier:    "noop",
		DisplayName:   "Noop Widget",
		ProviderType:  reflect.TypeOf((*NoopWidget)(nil)),
		InterfaceType: module.InterfaceOf[Widget](),
		OptionsType:   reflect.TypeOf(WidgetOptions{}),
		Constructors:  []module.Constructor{module.Adapt(NewNoopWidget)},
	}
}

// LoudDescriptor returns a valid descriptor for the loud widget module,
// which declares no options type.
func LoudDescriptor() module.Descriptor {
	return module.Descriptor{
		Area:          WidgetArea,
		Identifier:    "loud",
		DisplayName:   "Loud Widget",
		ProviderType:  reflect.TypeOf((*LoudWidget)(nil)),
		InterfaceType: module.InterfaceOf[Widget](),
		Constructors: []module.Constructor{
			func(ctx context.Context, bc module.BuildContext) (module.Provider, error) {
				return &LoudWidget{}, nil
			},
		},
	}
}

// DepDescriptor returns a descriptor whose constructor resolves a *Stamp
// from the host container.
func DepDescriptor() module.Descriptor {
	return module.Descriptor{
		Area:          WidgetArea,
		Identifier:    "dep",
		DisplayName:   "Dependent Widget",
		ProviderType:  reflect.TypeOf((*DepWidget)(nil)),
		InterfaceType: module.InterfaceOf[Widget](),
		Constructors: []module.Constructor{
			func(ctx context.Context, bc module.BuildContext) (module.Provider, error) {
				dep, err := bc.Deps.Resolve(ctx, reflect.TypeOf((*Stamp)(nil)))
				if err != nil {
					return nil, err
				}
				return &DepWidget{Stamp: dep.(*Stamp)}, nil
			},
		},
	}
}

// StaticSource is a discovery source backed by a fixed descriptor list.
type StaticSource struct {
	SourceName  string
	Descriptors []module.Descriptor
}

var _ discovery.Source = (*StaticSource)(nil)

// Name implements discovery.Source.
func (s *StaticSource) Name() string { return s.SourceName }

// Describe implements discovery.Source.
func (s *StaticSource) Describe() []module.Descriptor { return s.Descriptors }
