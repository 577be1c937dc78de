package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg := Load()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "http://localhost:8080", cfg.AppURL)
	assert.Equal(t, "supersecret", cfg.CaptchaSecret)
	assert.Equal(t, "tenants.yaml", cfg.TenantsFile)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 2*time.Second, cfg.ValidatorTimeout)
	assert.Equal(t, "stdout", cfg.MailProvider)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.False(t, cfg.SMTP.Configured())
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("ENV", "staging")
	t.Setenv("ADDR", ":3000")
	t.Setenv("APP_URL", "https://forms.example.com")
	t.Setenv("CAPTCHA_SECRET", "s3cret")
	t.Setenv("FETCH_TIMEOUT", "3s")
	t.Setenv("MAIL_PROVIDER", "smtp")
	t.Setenv("SMTP_HOST", "mail.example.com")
	t.Setenv("SMTP_PORT", "465")
	t.Setenv("SMTP_USER", "forms")
	t.Setenv("SMTP_PASS", "hunter2")
	t.Setenv("SMTP_SECURE", "true")

	cfg := Load()

	assert.Equal(t, "staging", cfg.Env)
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, "https://forms.example.com", cfg.AppURL)
	assert.Equal(t, "s3cret", cfg.CaptchaSecret)
	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
	assert.Equal(t, "smtp", cfg.MailProvider)
	assert.Equal(t, 465, cfg.SMTP.Port)
	assert.True(t, cfg.SMTP.Secure)
	assert.True(t, cfg.SMTP.Configured())
}

func TestLoad_InvalidFetchTimeout(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT", "not-a-duration")
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic due to invalid FETCH_TIMEOUT")
		}
	}()
	Load()
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	os.Clearenv()
	t.Setenv("ENV", "production")
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic due to missing CAPTCHA_SECRET")
		}
	}()
	Load()
}
