// Package mailer formats accepted submissions into notification emails and
// delivers them through a configurable provider backend.
package mailer

import (
	"context"
	"fmt"

	"github.com/mightymax/trusted-frame-forms/internal/config"
)

// Message is a fully formatted notification ready for delivery.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Provider is the interface mail delivery backends implement.
type Provider interface {
	// Send delivers the message, returning an error on transport failure.
	Send(ctx context.Context, msg *Message) error

	// Name returns the human-readable name of this provider.
	Name() string
}

// NewProvider constructs the provider selected by the configuration.
// Selecting a provider whose settings are incomplete is a startup error;
// mail capability never fails lazily per request.
func NewProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.MailProvider {
	case "stdout":
		return NewStdout(), nil
	case "smtp":
		return NewSMTP(cfg.SMTP)
	case "ses":
		return NewSES(ctx, cfg.SES)
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.MailProvider)
	}
}
