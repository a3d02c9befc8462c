package testutil

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/vk/plugboard/internal/store"
)

// CountingSource is a store.Source that records how often GetAll ran. The
// optional Delay widens the race window in concurrency tests, and Err
// makes every fetch fail.
type CountingSource struct {
	Records []store.Record
	Err     error
	Delay   time.Duration

	calls atomic.Int32
}

var _ store.Source = (*CountingSource)(nil)

// GetAll implements store.Source, honoring ctx cancellation.
func (s *CountingSource) GetAll(ctx context.Context) ([]store.Record, error) {
	s.calls.Add(1)

	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.Delay):
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]store.Record, len(s.Records))
	copy(out, s.Records)
	return out, nil
}

// Calls reports how many times GetAll was invoked.
func (s *CountingSource) Calls() int {
	return int(s.calls.Load())
}

// FakeContainer is a host container stub backed by a type-keyed map.
type FakeContainer struct {
	values map[reflect.Type]any
}

// NewFakeContainer returns an empty container stub.
func NewFakeContainer() *FakeContainer {
	return &FakeContainer{values: make(map[reflect.Type]any)}
}

// Set registers a value under its dynamic type.
func (c *FakeContainer) Set(v any) {
	c.values[reflect.TypeOf(v)] = v
}

// Resolve implements di.Container.
func (c *FakeContainer) Resolve(_ context.Context, t reflect.Type) (any, error) {
	if v, ok := c.values[t]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("testutil: no value registered for %s", t)
}

// FakeRegistrar captures the callbacks the factory publishes.
type FakeRegistrar struct {
	Builds map[reflect.Type]func(ctx context.Context) (any, error)
}

// NewFakeRegistrar returns an empty registrar stub.
func NewFakeRegistrar() *FakeRegistrar {
	return &FakeRegistrar{Builds: make(map[reflect.Type]func(ctx context.Context) (any, error))}
}

// Register implements di.Registrar.
func (r *FakeRegistrar) Register(t reflect.Type, build func(ctx context.Context) (any, error)) {
	r.Builds[t] = build
}
