package mailer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// StdoutProvider prints notifications to standard output. It is the default
// in development and doubles as a test double.
type StdoutProvider struct {
	writer io.Writer
}

// NewStdout creates a StdoutProvider writing to os.Stdout.
func NewStdout() *StdoutProvider {
	return &StdoutProvider{writer: os.Stdout}
}

// NewStdoutWithWriter creates a StdoutProvider writing to w, for tests.
func NewStdoutWithWriter(w io.Writer) *StdoutProvider {
	return &StdoutProvider{writer: w}
}

// Send prints the message in a human-readable format and always succeeds.
func (p *StdoutProvider) Send(_ context.Context, msg *Message) error {
	var b strings.Builder
	b.WriteString("========================================\n")
	fmt.Fprintf(&b, "From: %s\n", msg.From)
	fmt.Fprintf(&b, "To: %s\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	b.WriteString("Body:\n")
	b.WriteString(msg.Text + "\n")
	b.WriteString("========================================\n")

	_, _ = fmt.Fprint(p.writer, b.String())
	return nil
}

// Name returns the provider name.
func (p *StdoutProvider) Name() string {
	return "stdout"
}
