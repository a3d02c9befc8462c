package module

import (
	"context"
	"fmt"

	"github.com/vk/plugboard/internal/di"
)

// Provider is the capability marker implemented by every concrete provider.
// Providers are expected to be stateless and reusable; Close releases any
// resources an instance does hold, and stateless providers return nil.
type Provider interface {
	Close(ctx context.Context) error
}

// BuildContext carries everything a constructor may consume: the options
// object bound from the provider's persisted record (or nil when the module
// declares no options type) and the host DI container for all other
// dependencies.
type BuildContext struct {
	Options any
	Deps    di.Container
}

// Constructor builds one provider instance. Each module supplies exactly
// one constructor per descriptor; the factory rejects descriptors with any
// other count so a module can never be instantiated ambiguously.
type Constructor func(ctx context.Context, bc BuildContext) (Provider, error)

// OptionsAs returns the bound options as T. A nil Options field yields the
// zero value of T, matching the "empty blob means defaults" contract.
func OptionsAs[T any](bc BuildContext) (T, error) {
	var zero T
	if bc.Options == nil {
		return zero, nil
	}
	opts, ok := bc.Options.(T)
	if !ok {
		return zero, fmt.Errorf("module: bound options are %T, not %T", bc.Options, zero)
	}
	return opts, nil
}
