// Package discovery turns the compiled-in registration sources into a
// validated list of module descriptors. There is no runtime type scanning:
// every provider package exposes a Source that is listed once in the
// application's composition root, and discovery filters, instantiates and
// validates what those sources declare.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vk/plugboard/internal/ctxlog"
	"github.com/vk/plugboard/internal/module"
)

// Source is one registerable code unit, typically the Module value of a
// provider package. Describe must be side-effect free so a source can be
// scanned more than once.
type Source interface {
	// Name identifies the source, by convention its package path. The
	// policy prefix allow-list matches against it.
	Name() string

	// Describe returns the module descriptors this source contributes.
	Describe() []module.Descriptor
}

// Policy controls which sources are scanned and what happens when one of
// them is malformed.
type Policy struct {
	// Prefixes is the allow-list matched against Source.Name. An empty
	// list admits every source.
	Prefixes []string

	// CollectErrors switches discovery from fail-fast (first invalid
	// descriptor aborts) to fail-soft (invalid descriptors are reported
	// alongside the valid ones). Duplicate registrations are fatal under
	// either policy.
	CollectErrors bool
}

// admits reports whether a source name passes the prefix allow-list.
func (p Policy) admits(name string) bool {
	if len(p.Prefixes) == 0 {
		return true
	}
	for _, prefix := range p.Prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Error is one discovery failure attached to the source that produced it.
type Error struct {
	Source string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("discovery: source %s: %v", e.Source, e.Err)
}

// Unwrap exposes the underlying validation error.
func (e *Error) Unwrap() error { return e.Err }

// Discover scans the sources admitted by the policy and returns their
// validated descriptors. Under the fail-fast policy the first invalid
// descriptor is returned as the error; under the collect policy every
// failure is logged and returned in the second value while valid modules
// still come back. Errors are never dropped silently. Registering the
// same (area, identifier) or the same (area, concrete type) twice is a
// fatal error regardless of policy, because a catalog built from such a
// set could silently shadow one implementation with another.
func Discover(ctx context.Context, sources []Source, policy Policy) ([]module.Descriptor, []*Error, error) {
	logger := ctxlog.FromContext(ctx)

	var (
		descriptors []module.Descriptor
		collected   []*Error
		seenIDs     = map[string]string{} // area/identifier -> source name
		seenTypes   = map[string]string{} // area + concrete type id -> source name
	)

	for _, src := range sources {
		name := src.Name()
		if !policy.admits(name) {
			logger.Debug("Skipping source outside prefix allow-list.", "source", name)
			continue
		}

		for _, desc := range src.Describe() {
			if err := desc.Validate(); err != nil {
				derr := &Error{Source: name, Err: err}
				logger.Error("Invalid module descriptor.", "source", name, "error", err)
				if !policy.CollectErrors {
					return nil, nil, derr
				}
				collected = append(collected, derr)
				continue
			}

			idKey := desc.Area + "/" + desc.Identifier
			if prev, dup := seenIDs[idKey]; dup {
				return nil, nil, fatalDuplicate(logger, name, prev, fmt.Errorf(
					"duplicate module identifier %q in area %q", desc.Identifier, desc.Area))
			}
			typeKey := desc.Area + "/" + desc.TypeID()
			if prev, dup := seenTypes[typeKey]; dup {
				return nil, nil, fatalDuplicate(logger, name, prev, fmt.Errorf(
					"provider type %s registered twice in area %q", desc.TypeID(), desc.Area))
			}
			seenIDs[idKey] = name
			seenTypes[typeKey] = name

			logger.Debug("Discovered module.",
				"area", desc.Area, "identifier", desc.Identifier, "provider", desc.TypeID())
			descriptors = append(descriptors, desc)
		}
	}

	logger.Info("Module discovery finished.",
		"modules", len(descriptors), "errors", len(collected))
	return descriptors, collected, nil
}

func fatalDuplicate(logger *slog.Logger, source, previous string, err error) *Error {
	logger.Error("Duplicate module registration.",
		"source", source, "previously_registered_by", previous, "error", err)
	return &Error{Source: source, Err: fmt.Errorf("%w (previously registered by %s)", err, previous)}
}
