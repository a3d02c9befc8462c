// Package storage_s3 provides an S3-compatible implementation of the
// storage area. It talks plain HTTP to a bucket endpoint that accepts
// unsigned or pre-signed PUT/GET requests, which is enough for gateway
// setups where a proxy handles authentication.
package storage_s3

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"reflect"

	"github.com/vk/plugboard/internal/areas"
	"github.com/vk/plugboard/internal/ctxlog"
	"github.com/vk/plugboard/internal/discovery"
	"github.com/vk/plugboard/internal/module"
)

// Module implements the discovery.Source interface for this package.
type Module struct{}

var _ discovery.Source = (*Module)(nil)

// Options configures the S3-compatible store.
type Options struct {
	Endpoint           string
	Bucket             string
	InsecureSkipVerify bool
}

// Store moves blobs over HTTP.
type Store struct {
	Options Options
	client  *http.Client
}

var _ areas.BlobStore = (*Store)(nil)

// NewStore is the module's constructor. Each instance carries its own
// client so connection reuse follows the provider's lifetime.
func NewStore(ctx context.Context, opts Options, _ module.BuildContext) (module.Provider, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("storage_s3: endpoint is required")
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("storage_s3: bucket is required")
	}
	if _, err := url.Parse(opts.Endpoint); err != nil {
		return nil, fmt.Errorf("storage_s3: invalid endpoint: %w", err)
	}

	client := &http.Client{}
	if opts.InsecureSkipVerify {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Store{Options: opts, client: client}, nil
}

// objectURL builds the object URL for a key.
func (s *Store) objectURL(key string) string {
	return s.Options.Endpoint + "/" + path.Join(s.Options.Bucket, key)
}

// Put uploads a blob with an HTTP PUT.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	logger := ctxlog.FromContext(ctx).With("provider", "storage_s3", "key", key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.objectURL(key), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("storage_s3: failed to create upload request: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	logger.Debug("Uploading blob.", "bytes", len(data), "contentType", contentType)
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("storage_s3: upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("storage_s3: upload of %q failed with status: %s", key, resp.Status)
	}
	return nil
}

// Get downloads a blob with an HTTP GET.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("storage_s3: failed to create download request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage_s3: download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("storage_s3: download of %q failed with status: %s", key, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Close implements the Provider capability.
func (s *Store) Close(ctx context.Context) error {
	s.client.CloseIdleConnections()
	return nil
}

// Name identifies this source to the discovery prefix allow-list.
func (m *Module) Name() string { return "modules/storage_s3" }

// Describe registers the S3-compatible module for the storage area.
func (m *Module) Describe() []module.Descriptor {
	return []module.Descriptor{{
		Area:          areas.Storage,
		Identifier:    "s3",
		DisplayName:   "S3-Compatible Storage",
		ProviderType:  reflect.TypeOf((*Store)(nil)),
		InterfaceType: module.InterfaceOf[areas.BlobStore](),
		OptionsType:   reflect.TypeOf(Options{}),
		Constructors:  []module.Constructor{module.Adapt(NewStore)},
	}}
}
