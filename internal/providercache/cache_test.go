package providercache_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/plugboard/internal/providercache"
	"github.com/vk/plugboard/internal/testutil"
)

func entry(name string, active bool) *providercache.Entry {
	return &providercache.Entry{
		Module: testutil.NoopDescriptor(),
		Name:   name,
		Active: active,
	}
}

func loudEntry(name string, active bool) *providercache.Entry {
	return &providercache.Entry{
		Module: testutil.LoudDescriptor(),
		Name:   name,
		Active: active,
	}
}

func TestInitializeAndLookups(t *testing.T) {
	cache := providercache.New()
	assert.Equal(t, providercache.StateUninitialized, cache.State())

	require.NoError(t, cache.Initialize([]*providercache.Entry{
		entry("main", true),
		loudEntry("backup", false),
	}))
	assert.Equal(t, providercache.StateReady, cache.State())
	assert.Equal(t, 2, cache.Len())

	active, ok := cache.GetActive(testutil.WidgetArea)
	require.True(t, ok)
	assert.Equal(t, "main", active.Name)

	backup, ok := cache.Get(testutil.WidgetArea, "backup")
	require.True(t, ok)
	assert.False(t, backup.Active)

	_, ok = cache.GetActive("elsewhere")
	assert.False(t, ok)
}

func TestLookupsBeforeInitializeFindNothing(t *testing.T) {
	cache := providercache.New()
	_, ok := cache.GetActive(testutil.WidgetArea)
	assert.False(t, ok)
	_, ok = cache.Get(testutil.WidgetArea, "main")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestSecondInitializeFailsWithoutCorruptingFirst(t *testing.T) {
	cache := providercache.New()
	require.NoError(t, cache.Initialize([]*providercache.Entry{entry("main", true)}))

	err := cache.Initialize([]*providercache.Entry{loudEntry("other", true)})
	require.ErrorIs(t, err, providercache.ErrAlreadyInitialized)

	active, ok := cache.GetActive(testutil.WidgetArea)
	require.True(t, ok)
	assert.Equal(t, "main", active.Name)
}

func TestInitializeRejectsTwoActiveEntriesAtomically(t *testing.T) {
	cache := providercache.New()
	err := cache.Initialize([]*providercache.Entry{
		entry("first", true),
		loudEntry("second", true),
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "multiple active providers")
	assert.ErrorContains(t, err, `"first"`)
	assert.ErrorContains(t, err, `"second"`)

	// Nothing from the failed attempt is visible and the cache can retry.
	assert.Equal(t, providercache.StateUninitialized, cache.State())
	_, ok := cache.GetActive(testutil.WidgetArea)
	assert.False(t, ok)

	require.NoError(t, cache.Initialize([]*providercache.Entry{entry("first", true)}))
}

func TestInitializeRejectsDuplicateNames(t *testing.T) {
	cache := providercache.New()
	err := cache.Initialize([]*providercache.Entry{
		entry("main", true),
		loudEntry("main", false),
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "persisted twice")
}

func TestGetActiveReturnsSameEntryEachTime(t *testing.T) {
	cache := providercache.New()
	require.NoError(t, cache.Initialize([]*providercache.Entry{entry("main", true)}))

	first, ok := cache.GetActive(testutil.WidgetArea)
	require.True(t, ok)
	for i := 0; i < 100; i++ {
		again, ok := cache.GetActive(testutil.WidgetArea)
		require.True(t, ok)
		assert.Same(t, first, again)
	}
}

func TestReloadReplacesPopulationAtomically(t *testing.T) {
	cache := providercache.New()
	require.NoError(t, cache.Initialize([]*providercache.Entry{entry("main", true)}))

	require.NoError(t, cache.Reload([]*providercache.Entry{loudEntry("fresh", true)}))
	assert.Equal(t, providercache.StateReady, cache.State())

	active, ok := cache.GetActive(testutil.WidgetArea)
	require.True(t, ok)
	assert.Equal(t, "fresh", active.Name)

	_, ok = cache.Get(testutil.WidgetArea, "main")
	assert.False(t, ok, "old population must be gone after reload")
}

func TestReloadFailureKeepsPreviousPopulation(t *testing.T) {
	cache := providercache.New()
	require.NoError(t, cache.Initialize([]*providercache.Entry{entry("main", true)}))

	err := cache.Reload([]*providercache.Entry{
		entry("a", true),
		loudEntry("b", true),
	})
	require.Error(t, err)
	assert.Equal(t, providercache.StateReady, cache.State())

	active, ok := cache.GetActive(testutil.WidgetArea)
	require.True(t, ok)
	assert.Equal(t, "main", active.Name)
}

func TestReloadBeforeInitializeFails(t *testing.T) {
	cache := providercache.New()
	err := cache.Reload([]*providercache.Entry{entry("main", true)})
	require.ErrorIs(t, err, providercache.ErrNotInitialized)
}

func TestConcurrentReadersDuringReloadSeeWholeSnapshots(t *testing.T) {
	cache := providercache.New()
	require.NoError(t, cache.Initialize([]*providercache.Entry{entry("gen1", true)}))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				active, ok := cache.GetActive(testutil.WidgetArea)
				if assert.True(t, ok) {
					assert.Contains(t, []string{"gen1", "gen2"}, active.Name)
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		name := "gen1"
		if i%2 == 1 {
			name = "gen2"
		}
		require.NoError(t, cache.Reload([]*providercache.Entry{entry(name, true)}))
	}
	close(stop)
	wg.Wait()
}
