package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/textproto"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/mightymax/trusted-frame-forms/internal/config"
)

// SMTPProvider delivers notifications through an authenticated SMTP relay.
type SMTPProvider struct {
	cfg config.SMTPConfig
}

// NewSMTP creates an SMTPProvider. Missing host or credentials fail here,
// at construction time, never per request.
func NewSMTP(cfg config.SMTPConfig) (*SMTPProvider, error) {
	if !cfg.Configured() {
		return nil, errors.New("smtp provider requires SMTP_HOST, SMTP_USER and SMTP_PASS")
	}
	return &SMTPProvider{cfg: cfg}, nil
}

// Send delivers the message over SMTP, using implicit TLS when the secure
// flag is set and STARTTLS otherwise.
func (p *SMTPProvider) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
	auth := sasl.NewPlainClient("", p.cfg.Username, p.cfg.Password)
	body, err := buildMessage(msg)
	if err != nil {
		return err
	}

	if p.cfg.Secure {
		return smtp.SendMailTLS(addr, auth, msg.From, []string{msg.To}, bytes.NewReader(body))
	}
	return smtp.SendMail(addr, auth, msg.From, []string{msg.To}, bytes.NewReader(body))
}

// Name returns the provider name.
func (p *SMTPProvider) Name() string {
	return "smtp"
}

// buildMessage renders the message as multipart/alternative MIME with the
// plain-text part first, per RFC 2046's least-preferred-first ordering.
func buildMessage(msg *Message) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", msg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")

	writer := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", writer.Boundary())

	textHeader := make(textproto.MIMEHeader)
	textHeader.Set("Content-Type", "text/plain; charset=UTF-8")
	part, err := writer.CreatePart(textHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create text part: %w", err)
	}
	if _, err := part.Write([]byte(msg.Text)); err != nil {
		return nil, err
	}

	htmlHeader := make(textproto.MIMEHeader)
	htmlHeader.Set("Content-Type", "text/html; charset=UTF-8")
	part, err = writer.CreatePart(htmlHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create html part: %w", err)
	}
	if _, err := part.Write([]byte(msg.HTML)); err != nil {
		return nil, err
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
