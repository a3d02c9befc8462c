// Package areas declares the functional slots of the application and the
// capability interface each slot serves. Every compiled-in provider module
// implements exactly one of these interfaces.
package areas

import (
	"context"

	"github.com/vk/plugboard/internal/module"
)

// Area names. Persisted provider records reference these.
const (
	Email   = "email"
	Storage = "storage"
	Notify  = "notify"
)

// Message is one outbound email.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// EmailSender is the capability interface of the email area.
type EmailSender interface {
	module.Provider
	Send(ctx context.Context, msg Message) error
}

// BlobStore is the capability interface of the storage area.
type BlobStore interface {
	module.Provider
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Notifier is the capability interface of the notify area.
type Notifier interface {
	module.Provider
	Notify(ctx context.Context, event string, payload map[string]any) error
}
