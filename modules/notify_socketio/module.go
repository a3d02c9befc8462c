// Package notify_socketio provides the Socket.IO implementation of the
// notify area. Each Notify call connects, emits the event, and waits for
// either an acknowledging event or the timeout.
package notify_socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/plugboard/internal/areas"
	"github.com/vk/plugboard/internal/ctxlog"
	"github.com/vk/plugboard/internal/discovery"
	"github.com/vk/plugboard/internal/module"
)

// Module implements the discovery.Source interface for this package.
type Module struct{}

var _ discovery.Source = (*Module)(nil)

// Options configures the Socket.IO notifier.
type Options struct {
	URL                string
	Namespace          string
	AckEvent           string
	Timeout            string
	InsecureSkipVerify bool
}

// Notifier emits events to a Socket.IO server.
type Notifier struct {
	Options Options
	timeout time.Duration
}

var _ areas.Notifier = (*Notifier)(nil)

// NewNotifier is the module's constructor.
func NewNotifier(ctx context.Context, opts Options, _ module.BuildContext) (module.Provider, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("notify_socketio: url is required")
	}
	if _, err := url.Parse(opts.URL); err != nil {
		return nil, fmt.Errorf("notify_socketio: invalid url: %w", err)
	}

	timeout := 10 * time.Second
	if opts.Timeout != "" {
		parsed, err := time.ParseDuration(opts.Timeout)
		if err != nil {
			return nil, fmt.Errorf("notify_socketio: invalid timeout %q: %w", opts.Timeout, err)
		}
		timeout = parsed
	}

	return &Notifier{Options: opts, timeout: timeout}, nil
}

// Notify connects, emits the event with its payload, and waits for the
// acknowledging event when one is configured, otherwise for the connect
// handshake. The connection is torn down before returning.
func (n *Notifier) Notify(ctx context.Context, event string, payload map[string]any) error {
	logger := ctxlog.FromContext(ctx).With("provider", "notify_socketio", "url", n.Options.URL, "event", event)
	logger.Debug("Notifier started")
	defer logger.Debug("Notifier finished")

	var isConnected atomic.Bool
	done := make(chan error, 1)

	opCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	parsedURL, err := url.Parse(n.Options.URL)
	if err != nil {
		return fmt.Errorf("notify_socketio: failed to parse URL: %w", err)
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if n.Options.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(n.Options.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client")
		io.Disconnect()
	}()

	io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Info("Connected, emitting event.", "namespace", n.Options.Namespace, "sid", io.Id())
		io.Emit(event, payload)
		if n.Options.AckEvent == "" {
			done <- nil
		}
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		if err, ok := errs[0].(error); ok {
			done <- err
			return
		}
		done <- fmt.Errorf("notify_socketio: connect error: %v", errs[0])
	})

	if n.Options.AckEvent != "" {
		io.On(types.EventName(n.Options.AckEvent), func(...any) {
			done <- nil
		})
	}

	io.Connect()

	select {
	case <-opCtx.Done():
		if isConnected.Load() {
			return fmt.Errorf("notify_socketio: timed out after connecting while waiting for event %q", n.Options.AckEvent)
		}
		return fmt.Errorf("notify_socketio: timed out while waiting for initial connection")
	case err := <-done:
		return err
	}
}

// Close implements the Provider capability. Connections are per-call.
func (n *Notifier) Close(ctx context.Context) error { return nil }

// Name identifies this source to the discovery prefix allow-list.
func (m *Module) Name() string { return "modules/notify_socketio" }

// Describe registers the Socket.IO module for the notify area.
func (m *Module) Describe() []module.Descriptor {
	return []module.Descriptor{{
		Area:          areas.Notify,
		Identifier:    "socketio",
		DisplayName:   "Socket.IO Notifier",
		ProviderType:  reflect.TypeOf((*Notifier)(nil)),
		InterfaceType: module.InterfaceOf[areas.Notifier](),
		OptionsType:   reflect.TypeOf(Options{}),
		Constructors:  []module.Constructor{module.Adapt(NewNotifier)},
	}}
}
