// Package catalog holds the process-lifetime registry of validated module
// descriptors. A Catalog is built exactly once from the discovery output,
// enforces the per-area invariants at construction, and is read-only
// afterwards, so lookups need no synchronization.
package catalog

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/vk/plugboard/internal/ctxlog"
	"github.com/vk/plugboard/internal/module"
)

// Catalog indexes module descriptors by area and by (area, identifier).
type Catalog struct {
	byKey       map[string]module.Descriptor   // area + "\x00" + identifier
	byArea      map[string][]module.Descriptor // insertion order preserved
	interfaces  map[string]reflect.Type        // area -> capability interface
	areaByIface map[reflect.Type]string
}

func key(area, identifier string) string {
	return area + "\x00" + identifier
}

// New builds a catalog from validated descriptors. It fails with a
// configuration error when two modules in one area declare different
// capability interfaces, when an (area, identifier) pair repeats, or when
// one interface type is claimed by two different areas; such a registry
// must never serve traffic.
func New(ctx context.Context, descriptors []module.Descriptor) (*Catalog, error) {
	logger := ctxlog.FromContext(ctx)

	c := &Catalog{
		byKey:       make(map[string]module.Descriptor, len(descriptors)),
		byArea:      make(map[string][]module.Descriptor),
		interfaces:  make(map[string]reflect.Type),
		areaByIface: make(map[reflect.Type]string),
	}

	for _, desc := range descriptors {
		k := key(desc.Area, desc.Identifier)
		if prev, exists := c.byKey[k]; exists {
			return nil, fmt.Errorf(
				"catalog: area %q: modules %s and %s share identifier %q",
				desc.Area, prev.TypeID(), desc.TypeID(), desc.Identifier)
		}

		if iface, exists := c.interfaces[desc.Area]; exists {
			if iface != desc.InterfaceType {
				first := c.byArea[desc.Area][0]
				return nil, fmt.Errorf(
					"catalog: area %q: module %s declares interface %s but module %s already registered %s",
					desc.Area, desc.TypeID(), desc.InterfaceType, first.TypeID(), iface)
			}
		} else {
			if owner, claimed := c.areaByIface[desc.InterfaceType]; claimed && owner != desc.Area {
				return nil, fmt.Errorf(
					"catalog: interface %s is declared by both area %q and area %q",
					desc.InterfaceType, owner, desc.Area)
			}
			c.interfaces[desc.Area] = desc.InterfaceType
			c.areaByIface[desc.InterfaceType] = desc.Area
		}

		c.byKey[k] = desc
		c.byArea[desc.Area] = append(c.byArea[desc.Area], desc)
	}

	logger.Debug("Module catalog constructed.", "areas", len(c.byArea), "modules", len(c.byKey))
	return c, nil
}

// Module returns the descriptor registered under (area, identifier).
func (c *Catalog) Module(area, identifier string) (module.Descriptor, bool) {
	desc, ok := c.byKey[key(area, identifier)]
	return desc, ok
}

// InterfaceType returns the capability interface bound to an area.
func (c *Catalog) InterfaceType(area string) (reflect.Type, bool) {
	t, ok := c.interfaces[area]
	return t, ok
}

// AreaByInterface returns the area a capability interface is bound to.
// The mapping is unambiguous by construction.
func (c *Catalog) AreaByInterface(t reflect.Type) (string, bool) {
	area, ok := c.areaByIface[t]
	return area, ok
}

// ModulesByArea returns all descriptors registered for an area, in
// registration order. The returned slice is a copy.
func (c *Catalog) ModulesByArea(area string) []module.Descriptor {
	src := c.byArea[area]
	out := make([]module.Descriptor, len(src))
	copy(out, src)
	return out
}

// Areas returns the sorted list of areas with at least one module.
func (c *Catalog) Areas() []string {
	areas := make([]string, 0, len(c.byArea))
	for area := range c.byArea {
		areas = append(areas, area)
	}
	sort.Strings(areas)
	return areas
}
