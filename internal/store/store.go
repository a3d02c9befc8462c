// Package store declares the boundary to the persisted provider records.
// The registry core consumes records, it never writes them; seeding and
// administration happen outside this process.
package store

import "context"

// Record is one persisted provider configuration: which module occupies
// which area under which name, whether it is the active one, and its
// serialized options.
type Record struct {
	// ID is an opaque identifier assigned by the record source.
	ID string

	// Name is unique within the area.
	Name string

	// Area names the functional slot this record configures.
	Area string

	// ModuleIdentifier selects the module within the area; it must
	// resolve in the module catalog.
	ModuleIdentifier string

	// Active marks the single record per area eligible for instantiation.
	Active bool

	// Options is the serialized options blob, JSON by convention. Empty
	// or whitespace-only means "use defaults".
	Options string
}

// Source fetches all persisted provider records. Implementations must
// honor ctx cancellation; the manager calls GetAll once per cache
// initialization or reload.
type Source interface {
	GetAll(ctx context.Context) ([]Record, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]Record, error)

// GetAll implements Source.
func (f SourceFunc) GetAll(ctx context.Context) ([]Record, error) {
	return f(ctx)
}
