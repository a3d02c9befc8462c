// Package email_smtp provides the SMTP implementation of the email area.
package email_smtp

import (
	"context"
	"fmt"
	"net/smtp"
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

// Options configures the SMTP sender. Port 0 falls back to 25.
type Options struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// Sender sends mail over a plain SMTP connection.
type Sender struct {
	Options Options
}

var _ areas.EmailSender = (*Sender)(nil)

// NewSender is the module's constructor.
func NewSender(ctx context.Context, opts Options, _ module.BuildContext) (module.Provider, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("email_smtp: host is required")
	}
	if opts.Port == 0 {
		opts.Port = 25
	}
	return &Sender{Options: opts}, nil
}

// Send delivers one message via smtp.SendMail.
func (s *Sender) Send(ctx context.Context, msg areas.Message) error {
	logger := ctxlog.FromContext(ctx).With("provider", "email_smtp", "host", s.Options.Host)

	addr := fmt.Sprintf("%s:%d", s.Options.Host, s.Options.Port)
	var auth smtp.Auth
	if s.Options.Username != "" {
		auth = smtp.PlainAuth("", s.Options.Username, s.Options.Password, s.Options.Host)
	}

	body := fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		strings.Join(msg.To, ", "), msg.Subject, msg.Body)

	logger.Debug("Sending mail.", "to", msg.To, "subject", msg.Subject)
	if err := smtp.SendMail(addr, auth, s.Options.From, msg.To, []byte(body)); err != nil {
		return fmt.Errorf("email_smtp: send failed: %w", err)
	}
	return nil
}

// Close implements the Provider capability. The sender holds no
// connection between sends.
func (s *Sender) Close(ctx context.Context) error { return nil }

// Name identifies this source to the discovery prefix allow-list.
func (m *Module) Name() string { return "modules/email_smtp" }

// Describe registers the SMTP module for the email area.
func (m *Module) Describe() []module.Descriptor {
	return []module.Descriptor{{
		Area:          areas.Email,
		Identifier:    "smtp",
		DisplayName:   "SMTP Email",
		ProviderType:  reflect.TypeOf((*Sender)(nil)),
		InterfaceType: module.InterfaceOf[areas.EmailSender](),
		OptionsType:   reflect.TypeOf(Options{}),
		Constructors:  []module.Constructor{module.Adapt(NewSender)},
	}}
}
