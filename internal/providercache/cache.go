// Package providercache holds the runtime registry of activated provider
// entries. The cache is populated exactly once per process from persisted
// records (plus explicit administrative reloads) and serves lock-free
// lookups afterwards.
//
// # Concurrency Model
//
// Readers never take a lock: every lookup goes through an atomic pointer
// to an immutable snapshot. Initialize and Reload build a complete
// replacement snapshot under a mutex and publish it with a single pointer
// swap, so a reader observes either the previous population or the new
// one, never a half-built map. A failed Initialize or Reload publishes
// nothing.
package providercache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vk/plugboard/internal/module"
)

// Entry is one activated provider: a module descriptor bound to its
// persisted name, active flag and deserialized options. Entries are
// immutable after insertion.
type Entry struct {
	Module  module.Descriptor
	Name    string
	Active  bool
	Options any
}

// State is the lifecycle of the cache.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	// ErrAlreadyInitialized is returned when Initialize is called on a
	// cache that is already Ready. Use Reload for administrative refresh.
	ErrAlreadyInitialized = errors.New("provider cache already initialized")

	// ErrNotInitialized is returned when Reload is called before any
	// successful Initialize.
	ErrNotInitialized = errors.New("provider cache not initialized")
)

// snapshot is an immutable index over one generation of entries.
type snapshot struct {
	active map[string]*Entry // area -> active entry
	byName map[string]*Entry // area + "\x00" + name -> entry
}

// Cache is the two-phase provider registry. The zero value is not usable;
// call New.
type Cache struct {
	mu    sync.Mutex
	state atomic.Int32
	snap  atomic.Pointer[snapshot]
}

// New returns an empty, Uninitialized cache.
func New() *Cache {
	return &Cache{}
}

// State reports the current lifecycle state.
func (c *Cache) State() State {
	return State(c.state.Load())
}

// Initialize populates the cache. It may succeed exactly once; calling it
// on a Ready cache is an error and leaves the existing population intact.
// On a validation failure nothing becomes visible and the cache stays
// Uninitialized, so the caller can fix the records and retry.
func (c *Cache) Initialize(entries []*Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if State(c.state.Load()) == StateReady {
		return ErrAlreadyInitialized
	}

	c.state.Store(int32(StateInitializing))
	snap, err := buildSnapshot(entries)
	if err != nil {
		c.state.Store(int32(StateUninitialized))
		return err
	}

	// Publish the full snapshot before flipping the ready flag so every
	// reader that sees StateReady also sees the populated maps.
	c.snap.Store(snap)
	c.state.Store(int32(StateReady))
	return nil
}

// Reload atomically replaces the population with a new entry set. Readers
// keep being served from the previous snapshot until the new one is fully
// built; on validation failure the previous population stays live.
func (c *Cache) Reload(entries []*Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if State(c.state.Load()) != StateReady {
		return ErrNotInitialized
	}

	c.state.Store(int32(StateInitializing))
	snap, err := buildSnapshot(entries)
	if err != nil {
		c.state.Store(int32(StateReady))
		return err
	}

	c.snap.Store(snap)
	c.state.Store(int32(StateReady))
	return nil
}

// GetActive returns the single active entry for an area, if any. Lock-free.
func (c *Cache) GetActive(area string) (*Entry, bool) {
	snap := c.snap.Load()
	if snap == nil {
		return nil, false
	}
	entry, ok := snap.active[area]
	return entry, ok
}

// Get returns the entry persisted under (area, name), if any. Lock-free.
func (c *Cache) Get(area, name string) (*Entry, bool) {
	snap := c.snap.Load()
	if snap == nil {
		return nil, false
	}
	entry, ok := snap.byName[area+"\x00"+name]
	return entry, ok
}

// Len reports the number of entries in the current population.
func (c *Cache) Len() int {
	snap := c.snap.Load()
	if snap == nil {
		return 0
	}
	return len(snap.byName)
}

// buildSnapshot validates the single-active-per-area invariant and the
// per-area name uniqueness while indexing the entries.
func buildSnapshot(entries []*Entry) (*snapshot, error) {
	snap := &snapshot{
		active: make(map[string]*Entry),
		byName: make(map[string]*Entry, len(entries)),
	}
	for _, entry := range entries {
		nameKey := entry.Area() + "\x00" + entry.Name
		if prev, dup := snap.byName[nameKey]; dup {
			return nil, fmt.Errorf(
				"provider cache: area %q: provider name %q persisted twice (modules %s and %s)",
				entry.Area(), entry.Name, prev.Module.Identifier, entry.Module.Identifier)
		}
		snap.byName[nameKey] = entry

		if !entry.Active {
			continue
		}
		if prev, dup := snap.active[entry.Area()]; dup {
			return nil, fmt.Errorf(
				"provider cache: area %q has multiple active providers: %q and %q",
				entry.Area(), prev.Name, entry.Name)
		}
		snap.active[entry.Area()] = entry
	}
	return snap, nil
}

// Area is a convenience accessor for the entry's area.
func (e *Entry) Area() string {
	return e.Module.Area
}
