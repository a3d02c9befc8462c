// Package storage_local provides the local-disk implementation of the
// storage area. Blobs live as plain files under a base directory.
package storage_local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/vk/plugboard/internal/areas"
	"github.com/vk/plugboard/internal/ctxlog"
	"github.com/vk/plugboard/internal/discovery"
	"github.com/vk/plugboard/internal/module"
)

// Module implements the discovery.Source interface for this package.
type Module struct{}

var _ discovery.Source = (*Module)(nil)

// Options configures the local store.
type Options struct {
	BaseDir string
}

// Store reads and writes blobs under a base directory.
type Store struct {
	Options Options
}

var _ areas.BlobStore = (*Store)(nil)

// NewStore is the module's constructor.
func NewStore(ctx context.Context, opts Options, _ module.BuildContext) (module.Provider, error) {
	if opts.BaseDir == "" {
		return nil, fmt.Errorf("storage_local: base_dir is required")
	}
	if err := os.MkdirAll(opts.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage_local: failed to create base dir %s: %w", opts.BaseDir, err)
	}
	return &Store{Options: opts}, nil
}

// resolve maps a blob key to a file path, rejecting keys that would
// escape the base directory.
func (s *Store) resolve(key string) (string, error) {
	cleaned := filepath.Clean(key)
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage_local: invalid key %q", key)
	}
	return filepath.Join(s.Options.BaseDir, cleaned), nil
}

// Put writes a blob, creating intermediate directories as needed.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage_local: failed to create directory for %q: %w", key, err)
	}
	ctxlog.FromContext(ctx).Debug("Writing blob.", "provider", "storage_local", "key", key, "bytes", len(data))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("storage_local: failed to write %q: %w", key, err)
	}
	return nil
}

// Get reads a blob back.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage_local: failed to read %q: %w", key, err)
	}
	return data, nil
}

// Close implements the Provider capability.
func (s *Store) Close(ctx context.Context) error { return nil }

// Name identifies this source to the discovery prefix allow-list.
func (m *Module) Name() string { return "modules/storage_local" }

// Describe registers the local-disk module for the storage area.
func (m *Module) Describe() []module.Descriptor {
	return []module.Descriptor{{
		Area:          areas.Storage,
		Identifier:    "local",
		DisplayName:   "Local Disk Storage",
		ProviderType:  reflect.TypeOf((*Store)(nil)),
		InterfaceType: module.InterfaceOf[areas.BlobStore](),
		OptionsType:   reflect.TypeOf(Options{}),
		Constructors:  []module.Constructor{module.Adapt(NewStore)},
	}}
}
