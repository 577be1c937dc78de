package mailer

import (
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mightymax/trusted-frame-forms/internal/config"
)

func TestNewSMTP_RequiresSettings(t *testing.T) {
	_, err := NewSMTP(config.SMTPConfig{Host: "mail.example.com"})
	assert.Error(t, err)

	p, err := NewSMTP(config.SMTPConfig{
		Host:     "mail.example.com",
		Port:     587,
		Username: "forms",
		Password: "hunter2",
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp", p.Name())
}

func TestBuildMessage_MultipartAlternative(t *testing.T) {
	raw, err := buildMessage(&Message{
		From:    "forms@example.com",
		To:      "inbox@example.com",
		Subject: "New contact form",
		Text:    "name: Ada",
		HTML:    "<ul><li><strong>name:</strong> Ada</li></ul>",
	})
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, "forms@example.com", parsed.Header.Get("From"))
	assert.Equal(t, "inbox@example.com", parsed.Header.Get("To"))
	assert.Equal(t, "New contact form", parsed.Header.Get("Subject"))

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	reader := multipart.NewReader(parsed.Body, params["boundary"])

	part, err := reader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=UTF-8", part.Header.Get("Content-Type"))
	body, err := io.ReadAll(part)
	require.NoError(t, err)
	assert.Equal(t, "name: Ada", string(body))

	part, err = reader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=UTF-8", part.Header.Get("Content-Type"))
	body, err = io.ReadAll(part)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<strong>name:</strong> Ada")

	_, err = reader.NextPart()
	assert.Equal(t, io.EOF, err, "exactly two parts")
}
