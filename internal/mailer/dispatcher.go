package mailer

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/mightymax/trusted-frame-forms/internal/apperror"
	"github.com/mightymax/trusted-frame-forms/internal/config"
	"github.com/mightymax/trusted-frame-forms/internal/model"
)

// Dispatcher turns submitted fields into notification bodies and sends them.
type Dispatcher struct {
	provider Provider
	log      *zap.Logger
}

// NewDispatcher creates a Dispatcher on top of the given provider.
func NewDispatcher(provider Provider, log *zap.Logger) *Dispatcher {
	return &Dispatcher{provider: provider, log: log}
}

// Send formats and delivers the notification for one accepted submission.
// Control fields (captcha answer, token, honeypot) never appear in the
// bodies; the remaining fields keep their submission order.
func (d *Dispatcher) Send(ctx context.Context, tenant *config.TenantConfig, form *config.FormConfig, fields *model.Fields) error {
	text, htmlBody := renderBodies(fields)
	msg := &Message{
		From:    tenant.MailFrom,
		To:      tenant.MailTo,
		Subject: form.MailSubject,
		Text:    text,
		HTML:    htmlBody,
	}

	if err := d.provider.Send(ctx, msg); err != nil {
		return &apperror.MailError{Provider: d.provider.Name(), Err: err}
	}
	d.log.Info("notification sent",
		zap.String("provider", d.provider.Name()),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}

func renderBodies(fields *model.Fields) (text, htmlBody string) {
	var lines, items []string
	for _, name := range fields.Names() {
		if model.IsControl(name) {
			continue
		}
		value := fields.Get(name)
		lines = append(lines, fmt.Sprintf("%s: %s", name, value))
		items = append(items, fmt.Sprintf("<li><strong>%s:</strong> %s</li>",
			html.EscapeString(name), html.EscapeString(value)))
	}
	return strings.Join(lines, "\n"), "<ul>" + strings.Join(items, "\n") + "</ul>"
}
