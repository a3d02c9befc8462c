// Package manager orchestrates the provider catalog cache: it lazily
// builds the cache from persisted records and the module catalog on first
// use, and serves entry lookups afterwards.
package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vk/plugboard/internal/catalog"
	"github.com/vk/plugboard/internal/ctxlog"
	"github.com/vk/plugboard/internal/module"
	"github.com/vk/plugboard/internal/providercache"
	"github.com/vk/plugboard/internal/store"
)

// Manager ties the immutable module catalog to the runtime provider cache.
type Manager struct {
	catalog *catalog.Catalog
	source  store.Source
	cache   *providercache.Cache

	// ready flips to true only after the cache is fully populated, so
	// the lock-free fast path never observes a partial initialization.
	ready  atomic.Bool
	initMu sync.Mutex
}

// New returns a Manager whose cache is still Uninitialized. The first
// entry lookup triggers initialization.
func New(cat *catalog.Catalog, src store.Source) *Manager {
	return &Manager{
		catalog: cat,
		source:  src,
		cache:   providercache.New(),
	}
}

// GetActiveByArea returns the active entry for an area, initializing the
// cache from persisted records on first use. A missing active provider is
// not an error here; the second return value reports presence.
func (m *Manager) GetActiveByArea(ctx context.Context, area string) (*providercache.Entry, bool, error) {
	if err := m.ensureInitialized(ctx); err != nil {
		return nil, false, err
	}
	entry, ok := m.cache.GetActive(area)
	return entry, ok, nil
}

// Get returns the entry persisted under (area, name), initializing the
// cache on first use.
func (m *Manager) Get(ctx context.Context, area, name string) (*providercache.Entry, bool, error) {
	if err := m.ensureInitialized(ctx); err != nil {
		return nil, false, err
	}
	entry, ok := m.cache.Get(area, name)
	return entry, ok, nil
}

// ProviderModule is a direct passthrough to the module catalog. It never
// touches the cache and requires no initialization.
func (m *Manager) ProviderModule(area, identifier string) (module.Descriptor, bool) {
	return m.catalog.Module(area, identifier)
}

// Reload refetches the persisted records and atomically replaces the
// cache population. Intended for administrative refresh only; reads are
// served from the previous population until the swap.
func (m *Manager) Reload(ctx context.Context) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	entries, err := m.buildEntries(ctx)
	if err != nil {
		return err
	}
	if !m.ready.Load() {
		if err := m.cache.Initialize(entries); err != nil {
			return err
		}
		m.ready.Store(true)
		return nil
	}
	return m.cache.Reload(entries)
}

// CacheState exposes the cache lifecycle state, mainly for logs and tests.
func (m *Manager) CacheState() providercache.State {
	return m.cache.State()
}

// ensureInitialized performs the exactly-once lazy initialization.
// Concurrent first callers serialize on initMu; whoever wins fetches the
// records and populates the cache, everyone else re-checks the ready flag
// and returns. A fetch failure or ctx cancellation leaves the cache
// Uninitialized so a later call can retry.
func (m *Manager) ensureInitialized(ctx context.Context) error {
	if m.ready.Load() {
		return nil
	}

	m.initMu.Lock()
	defer m.initMu.Unlock()
	if m.ready.Load() {
		return nil
	}

	entries, err := m.buildEntries(ctx)
	if err != nil {
		return err
	}
	if err := m.cache.Initialize(entries); err != nil {
		return err
	}
	m.ready.Store(true)

	ctxlog.FromContext(ctx).Info("Provider cache initialized.", "entries", len(entries))
	return nil
}

// buildEntries fetches the persisted records and assembles cache entries,
// resolving each record's module in the catalog and binding its options.
func (m *Manager) buildEntries(ctx context.Context) ([]*providercache.Entry, error) {
	records, err := m.source.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("manager: failed to fetch provider records: %w", err)
	}

	entries := make([]*providercache.Entry, 0, len(records))
	for _, rec := range records {
		desc, ok := m.catalog.Module(rec.Area, rec.ModuleIdentifier)
		if !ok {
			return nil, fmt.Errorf(
				"manager: record %q (area %q, name %q) references unknown module %q",
				rec.ID, rec.Area, rec.Name, rec.ModuleIdentifier)
		}

		opts, err := bindOptions(rec, desc)
		if err != nil {
			return nil, err
		}

		entries = append(entries, &providercache.Entry{
			Module:  desc,
			Name:    rec.Name,
			Active:  rec.Active,
			Options: opts,
		})
	}
	return entries, nil
}

// bindOptions deserializes a record's options blob against the module's
// options type. An empty or whitespace-only blob yields the zero-valued
// options object; a malformed blob is an error naming the record, never a
// silent default.
func bindOptions(rec store.Record, desc module.Descriptor) (any, error) {
	blob := strings.TrimSpace(rec.Options)

	if desc.OptionsType == nil {
		if blob != "" {
			return nil, fmt.Errorf(
				"manager: record %q (area %q, name %q): module %q declares no options type but options were persisted",
				rec.ID, rec.Area, rec.Name, rec.ModuleIdentifier)
		}
		return nil, nil
	}

	target := reflect.New(desc.OptionsType)
	if blob != "" {
		if err := json.Unmarshal([]byte(blob), target.Interface()); err != nil {
			return nil, fmt.Errorf(
				"manager: record %q (area %q, name %q): malformed options: %w",
				rec.ID, rec.Area, rec.Name, err)
		}
	}
	return target.Elem().Interface(), nil
}
