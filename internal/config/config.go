// Package config handles application configuration and the tenant registry.
package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all process-level configurable values.
type Config struct {
	Env               string
	Addr              string
	AppURL            string
	LogLevel          string
	CaptchaSecret     string
	TenantsFile       string
	FetchTimeout      time.Duration
	ValidatorTimeout  time.Duration
	ValidatorCacheDir string
	MailProvider      string
	SMTP              SMTPConfig
	SES               SESConfig
}

// SMTPConfig holds the outbound SMTP transport settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// Secure selects implicit TLS instead of STARTTLS.
	Secure bool
}

// SESConfig holds the AWS SES credentials for the ses mail provider.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Configured reports whether the mandatory SMTP settings are present.
// Selecting the smtp provider without them is a startup error, never a
// per-request one.
func (s SMTPConfig) Configured() bool {
	return s.Host != "" && s.Username != "" && s.Password != ""
}

// Load reads environment variables and populates a Config struct.
func Load() *Config {
	fetchTimeout, err := time.ParseDuration(getEnv("FETCH_TIMEOUT", "10s"))
	if err != nil {
		log.Panicf("Invalid FETCH_TIMEOUT: %v", err)
	}

	validatorTimeout, err := time.ParseDuration(getEnv("VALIDATOR_TIMEOUT", "2s"))
	if err != nil {
		log.Panicf("Invalid VALIDATOR_TIMEOUT: %v", err)
	}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		log.Panicf("Invalid SMTP_PORT: %v", err)
	}

	cfg := &Config{
		Env:               getEnv("ENV", "development"),
		Addr:              getEnv("ADDR", ":8080"),
		AppURL:            getEnv("APP_URL", "http://localhost:8080"),
		LogLevel:          getEnv("LOG_LEVEL", ""),
		CaptchaSecret:     getEnv("CAPTCHA_SECRET", "supersecret"),
		TenantsFile:       getEnv("TENANTS_FILE", "tenants.yaml"),
		FetchTimeout:      fetchTimeout,
		ValidatorTimeout:  validatorTimeout,
		ValidatorCacheDir: getEnv("VALIDATOR_CACHE_DIR", filepath.Join(os.TempDir(), "trusted-frame-forms")),
		MailProvider:      getEnv("MAIL_PROVIDER", "stdout"),
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     smtpPort,
			Username: getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASS", ""),
			Secure:   getEnv("SMTP_SECURE", "false") == "true",
		},
		SES: SESConfig{
			Region:          getEnv("AWS_REGION", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
	}

	if cfg.Env == "production" && os.Getenv("CAPTCHA_SECRET") == "" {
		log.Panic("CAPTCHA_SECRET must be set in production")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
