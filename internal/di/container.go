// Package di declares the boundary to the host application's dependency
// injection container. The registry core only consumes these interfaces;
// the concrete container lives in the host application.
package di

import (
	"context"
	"fmt"
	"reflect"
)

// Container resolves a dependency by its type. Provider constructors use
// it for every parameter that is not the provider's bound options.
type Container interface {
	Resolve(ctx context.Context, t reflect.Type) (any, error)
}

// Registrar accepts per-type build callbacks. The factory registers one
// callback per area interface so the host container can serve provider
// instances per request.
type Registrar interface {
	Register(t reflect.Type, build func(ctx context.Context) (any, error))
}

// ContainerFunc adapts a plain function to the Container interface.
type ContainerFunc func(ctx context.Context, t reflect.Type) (any, error)

// Resolve implements Container.
func (f ContainerFunc) Resolve(ctx context.Context, t reflect.Type) (any, error) {
	return f(ctx, t)
}

// Empty returns a Container that fails every lookup. It is the default
// when the host application wires no container of its own; providers that
// only need their bound options never touch it.
func Empty() Container {
	return ContainerFunc(func(_ context.Context, t reflect.Type) (any, error) {
		return nil, fmt.Errorf("di: no host container configured, cannot resolve %s", t)
	})
}
