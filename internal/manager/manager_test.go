package manager_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/plugboard/internal/catalog"
	"github.com/vk/plugboard/internal/manager"
	"github.com/vk/plugboard/internal/module"
	"github.com/vk/plugboard/internal/providercache"
	"github.com/vk/plugboard/internal/store"
	"github.com/vk/plugboard/internal/testutil"
)

func widgetCatalog(t *testing.T, descriptors ...module.Descriptor) *catalog.Catalog {
	t.Helper()
	if len(descriptors) == 0 {
		descriptors = []module.Descriptor{testutil.NoopDescriptor(), testutil.LoudDescriptor()}
	}
	cat, err := catalog.New(context.Background(), descriptors)
	require.NoError(t, err)
	return cat
}

func noopRecord(name string, active bool, options string) store.Record {
	return store.Record{
		ID:               "rec-" + name,
		Name:             name,
		Area:             testutil.WidgetArea,
		ModuleIdentifier: "noop",
		Active:           active,
		Options:          options,
	}
}

func TestGetActiveByAreaInitializesLazily(t *testing.T) {
	src := &testutil.CountingSource{Records: []store.Record{
		noopRecord("main", true, `{"Label":"blue","Level":3}`),
		noopRecord("backup", false, ""),
	}}
	mgr := manager.New(widgetCatalog(t), src)
	assert.Equal(t, providercache.StateUninitialized, mgr.CacheState())

	entry, ok, err := mgr.GetActiveByArea(context.Background(), testutil.WidgetArea)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "main", entry.Name)
	assert.Equal(t, providercache.StateReady, mgr.CacheState())
	assert.Equal(t, 1, src.Calls())

	opts, isTyped := entry.Options.(testutil.WidgetOptions)
	require.True(t, isTyped)
	assert.Equal(t, "blue", opts.Label)
	assert.Equal(t, 3, opts.Level)
}

func TestGetActiveByAreaIsIdempotent(t *testing.T) {
	src := &testutil.CountingSource{Records: []store.Record{noopRecord("main", true, "")}}
	mgr := manager.New(widgetCatalog(t), src)

	first, ok, err := mgr.GetActiveByArea(context.Background(), testutil.WidgetArea)
	require.NoError(t, err)
	require.True(t, ok)

	for i := 0; i < 10; i++ {
		again, ok, err := mgr.GetActiveByArea(context.Background(), testutil.WidgetArea)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Same(t, first, again)
	}
	assert.Equal(t, 1, src.Calls())
}

func TestMissingActiveProviderIsNotAnError(t *testing.T) {
	src := &testutil.CountingSource{Records: []store.Record{noopRecord("main", false, "")}}
	mgr := manager.New(widgetCatalog(t), src)

	entry, ok, err := mgr.GetActiveByArea(context.Background(), testutil.WidgetArea)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, entry)

	// The inactive record is still reachable by name.
	byName, ok, err := mgr.Get(context.Background(), testutil.WidgetArea, "main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "main", byName.Name)
}

func TestFetchFailurePropagatesAndStaysRetryable(t *testing.T) {
	src := &testutil.CountingSource{Err: errors.New("records backend down")}
	mgr := manager.New(widgetCatalog(t), src)

	_, _, err := mgr.GetActiveByArea(context.Background(), testutil.WidgetArea)
	require.ErrorContains(t, err, "records backend down")
	assert.Equal(t, providercache.StateUninitialized, mgr.CacheState())

	// A later call retries the fetch.
	src.Err = nil
	src.Records = []store.Record{noopRecord("main", true, "")}
	_, ok, err := mgr.GetActiveByArea(context.Background(), testutil.WidgetArea)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, src.Calls())
}

func TestCancellationLeavesCacheUninitialized(t *testing.T) {
	src := &testutil.CountingSource{
		Records: []store.Record{noopRecord("main", true, "")},
		Delay:   200 * time.Millisecond,
	}
	mgr := manager.New(widgetCatalog(t), src)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err := mgr.GetActiveByArea(ctx, testutil.WidgetArea)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, providercache.StateUninitialized, mgr.CacheState())

	src.Delay = 0
	_, ok, err := mgr.GetActiveByArea(context.Background(), testutil.WidgetArea)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnknownModuleIsFatalAndNamesTheRecord(t *testing.T) {
	rec := noopRecord("main", true, "")
	rec.ModuleIdentifier = "ghost"
	src := &testutil.CountingSource{Records: []store.Record{rec}}
	mgr := manager.New(widgetCatalog(t), src)

	_, _, err := mgr.GetActiveByArea(context.Background(), testutil.WidgetArea)
	require.Error(t, err)
	assert.ErrorContains(t, err, "rec-main")
	assert.ErrorContains(t, err, `unknown module "ghost"`)
}

func TestMalformedOptionsNameTheRecord(t *testing.T) {
	src := &testutil.CountingSource{Records: []store.Record{
		noopRecord("main", true, `{"Label":`),
	}}
	mgr := manager.New(widgetCatalog(t), src)

	_, _, err := mgr.GetActiveByArea(context.Background(), testutil.WidgetArea)
	require.Error(t, err)
	assert.ErrorContains(t, err, "rec-main")
	assert.ErrorContains(t, err, "malformed options")
}

func TestEmptyOptionsYieldZeroValuedObject(t *testing.T) {
	src := &testutil.CountingSource{Records: []store.Record{
		noopRecord("main", true, "   "),
	}}
	mgr := manager.New(widgetCatalog(t), src)

	entry, ok, err := mgr.GetActiveByArea(context.Background(), testutil.WidgetArea)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testutil.WidgetOptions{}, entry.Options)
}

func TestOptionsForOptionlessModuleAreRejected(t *testing.T) {
	rec := store.Record{
		ID:               "rec-loud",
		Name:             "loud",
		Area:             testutil.WidgetArea,
		ModuleIdentifier: "loud",
		Active:           true,
		Options:          `{"anything":1}`,
	}
	src := &testutil.CountingSource{Records: []store.Record{rec}}
	mgr := manager.New(widgetCatalog(t), src)

	_, _, err := mgr.GetActiveByArea(context.Background(), testutil.WidgetArea)
	require.Error(t, err)
	assert.ErrorContains(t, err, "declares no options type")
}

func TestTwoActiveRecordsFailInitializationAtomically(t *testing.T) {
	src := &testutil.CountingSource{Records: []store.Record{
		noopRecord("first", true, ""),
		{
			ID: "rec-second", Name: "second", Area: testutil.WidgetArea,
			ModuleIdentifier: "loud", Active: true,
		},
	}}
	mgr := manager.New(widgetCatalog(t), src)

	_, _, err := mgr.GetActiveByArea(context.Background(), testutil.WidgetArea)
	require.Error(t, err)
	assert.ErrorContains(t, err, "multiple active providers")

	// The failed attempt must not leak any entry.
	assert.Equal(t, providercache.StateUninitialized, mgr.CacheState())
	_, ok, err2 := mgr.Get(context.Background(), testutil.WidgetArea, "first")
	require.Error(t, err2)
	assert.False(t, ok)
}

func TestProviderModulePassthroughNeedsNoInitialization(t *testing.T) {
	src := &testutil.CountingSource{Err: errors.New("must not be called")}
	mgr := manager.New(widgetCatalog(t), src)

	desc, ok := mgr.ProviderModule(testutil.WidgetArea, "noop")
	require.True(t, ok)
	assert.Equal(t, "Noop Widget", desc.DisplayName)
	assert.Equal(t, 0, src.Calls())
}

func TestReloadSwapsEntries(t *testing.T) {
	src := &testutil.CountingSource{Records: []store.Record{noopRecord("main", true, "")}}
	mgr := manager.New(widgetCatalog(t), src)

	_, ok, err := mgr.GetActiveByArea(context.Background(), testutil.WidgetArea)
	require.NoError(t, err)
	require.True(t, ok)

	src.Records = []store.Record{noopRecord("fresh", true, "")}
	require.NoError(t, mgr.Reload(context.Background()))

	entry, ok, err := mgr.GetActiveByArea(context.Background(), testutil.WidgetArea)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fresh", entry.Name)
	assert.Equal(t, 2, src.Calls())
}

func TestReloadBeforeFirstUseInitializes(t *testing.T) {
	src := &testutil.CountingSource{Records: []store.Record{noopRecord("main", true, "")}}
	mgr := manager.New(widgetCatalog(t), src)

	require.NoError(t, mgr.Reload(context.Background()))
	assert.Equal(t, providercache.StateReady, mgr.CacheState())

	entry, ok, err := mgr.GetActiveByArea(context.Background(), testutil.WidgetArea)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "main", entry.Name)
	assert.Equal(t, 1, src.Calls())
}

func TestFiftyConcurrentFirstCallsFetchOnce(t *testing.T) {
	src := &testutil.CountingSource{
		Records: []store.Record{noopRecord("main", true, "")},
		Delay:   20 * time.Millisecond,
	}
	mgr := manager.New(widgetCatalog(t), src)

	const callers = 50
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		entries [callers]*providercache.Entry
		errs    [callers]error
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			entry, ok, err := mgr.GetActiveByArea(context.Background(), testutil.WidgetArea)
			if err == nil && !ok {
				err = errors.New("no active entry observed")
			}
			entries[i] = entry
			errs[i] = err
		}(i)
	}

	close(start)
	wg.Wait()

	assert.Equal(t, 1, src.Calls(), "persisted records must be fetched exactly once")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, entries[0], entries[i])
	}
}
