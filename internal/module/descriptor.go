// Package module defines the descriptor for one compiled-in provider
// implementation and the contracts every provider must satisfy. A
// descriptor is created once during discovery, validated, and then owned
// immutably by the catalog.
package module

import (
	"context"
	"fmt"
	"reflect"
)

// providerType is the reflected Provider marker interface, used to verify
// that a descriptor's concrete type actually is a provider.
var providerType = reflect.TypeOf((*Provider)(nil)).Elem()

// Descriptor describes one provider implementation that can occupy an
// area. It binds the area name, a module identifier unique within that
// area, the concrete provider type, the capability interface the provider
// serves, an optional options type, and the explicit constructors used to
// build instances.
type Descriptor struct {
	// Area is the functional slot this module can occupy, e.g. "email".
	Area string

	// Identifier is the key persisted records use to select this module.
	// It must be unique within the area.
	Identifier string

	// DisplayName is a human-readable name for logs and listings.
	DisplayName string

	// ProviderType is the concrete implementation type, typically a
	// pointer-to-struct type obtained with reflect.TypeOf.
	ProviderType reflect.Type

	// InterfaceType is the capability interface the provider implements.
	// All modules within one area must declare the same interface.
	InterfaceType reflect.Type

	// OptionsType is the struct type persisted options deserialize into.
	// Nil means the module takes no options.
	OptionsType reflect.Type

	// Constructors holds the typed factories for this module. Exactly one
	// is required at resolution time.
	Constructors []Constructor
}

// TypeID returns the package-qualified name of the concrete provider
// type. Discovery uses it to detect the same implementation registered
// twice within an area.
func (d Descriptor) TypeID() string {
	t := d.ProviderType
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.PkgPath() + "." + t.Name()
}

// Validate checks the structural invariants of a single descriptor.
// Cross-descriptor invariants (uniqueness, one interface per area) belong
// to the catalog.
func (d Descriptor) Validate() error {
	if d.Area == "" {
		return fmt.Errorf("module descriptor has empty area")
	}
	if d.Identifier == "" {
		return fmt.Errorf("module %q: empty identifier", d.Area)
	}
	if d.DisplayName == "" {
		return fmt.Errorf("module %s/%s: empty display name", d.Area, d.Identifier)
	}
	if d.ProviderType == nil {
		return fmt.Errorf("module %s/%s: nil provider type", d.Area, d.Identifier)
	}
	if d.InterfaceType == nil {
		return fmt.Errorf("module %s/%s: nil interface type", d.Area, d.Identifier)
	}
	if d.InterfaceType.Kind() != reflect.Interface {
		return fmt.Errorf("module %s/%s: interface type %s is not an interface", d.Area, d.Identifier, d.InterfaceType)
	}
	if !d.ProviderType.AssignableTo(d.InterfaceType) {
		return fmt.Errorf("module %s/%s: provider type %s does not implement %s",
			d.Area, d.Identifier, d.ProviderType, d.InterfaceType)
	}
	if !d.ProviderType.Implements(providerType) {
		return fmt.Errorf("module %s/%s: provider type %s does not implement the Provider capability",
			d.Area, d.Identifier, d.ProviderType)
	}
	if d.OptionsType != nil && d.OptionsType.Kind() != reflect.Struct {
		return fmt.Errorf("module %s/%s: options type %s is not a default-constructible struct",
			d.Area, d.Identifier, d.OptionsType)
	}
	if len(d.Constructors) == 0 {
		return fmt.Errorf("module %s/%s: no constructor registered", d.Area, d.Identifier)
	}
	for i, ctor := range d.Constructors {
		if ctor == nil {
			return fmt.Errorf("module %s/%s: constructor %d is nil", d.Area, d.Identifier, i)
		}
	}
	return nil
}

// InterfaceOf is a convenience for registration sites:
//
//	InterfaceType: module.InterfaceOf[areas.EmailSender]()
func InterfaceOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Adapt wraps a typed constructor into the Constructor signature, binding
// the options access so registration sites stay free of type assertions.
func Adapt[O any](build func(ctx context.Context, opts O, bc BuildContext) (Provider, error)) Constructor {
	return func(ctx context.Context, bc BuildContext) (Provider, error) {
		opts, err := OptionsAs[O](bc)
		if err != nil {
			return nil, err
		}
		return build(ctx, opts, bc)
	}
}
