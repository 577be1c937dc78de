package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mightymax/trusted-frame-forms/internal/apperror"
)

const registryYAML = `
tenants:
  acme:
    domains: ["https://ex1.com", "https://www.ex2.com"]
    form_server: "https://forms.example.com"
    mail_to: "inbox@example.com"
    mail_from: "forms@example.com"
    forms:
      contact:
        form: "/forms/contact.html"
        response: "/forms/contact-response.html"
        mail_subject: "New contact form"
        validator: "/forms/contact.js"
  globex:
    domains: ["https://globex.example", "https://ex1.com"]
    form_server: "https://cdn.globex.example"
    mail_to: "sales@globex.example"
    mail_from: "noreply@globex.example"
    forms:
      quote:
        form: "/quote.html"
        response: "/quote-done.html"
        mail_subject: "Quote request"
`

func TestParseRegistry_Lookups(t *testing.T) {
	reg, err := ParseRegistry([]byte(registryYAML))
	require.NoError(t, err)

	tenant, err := reg.Tenant("acme")
	require.NoError(t, err)
	assert.Equal(t, "https://forms.example.com", tenant.FormServer)
	assert.Equal(t, "inbox@example.com", tenant.MailTo)

	form, err := tenant.Form("contact")
	require.NoError(t, err)
	assert.Equal(t, "/forms/contact.html", form.Form)
	assert.Equal(t, "New contact form", form.MailSubject)
	assert.Equal(t, "/forms/contact.js", form.Validator)

	quote, err := mustTenant(t, reg, "globex").Form("quote")
	require.NoError(t, err)
	assert.Empty(t, quote.Validator)
}

func mustTenant(t *testing.T, reg *Registry, key string) *TenantConfig {
	t.Helper()
	tenant, err := reg.Tenant(key)
	require.NoError(t, err)
	return tenant
}

func TestParseRegistry_NotFound(t *testing.T) {
	reg, err := ParseRegistry([]byte(registryYAML))
	require.NoError(t, err)

	_, err = reg.Tenant("unknown")
	assert.True(t, errors.Is(err, apperror.ErrTenantNotFound))
	assert.True(t, apperror.IsNotFound(err))

	tenant := mustTenant(t, reg, "acme")
	_, err = tenant.Form("unknown")
	assert.True(t, errors.Is(err, apperror.ErrFormNotFound))
}

func TestAllowedOrigins_UnionDeduplicated(t *testing.T) {
	reg, err := ParseRegistry([]byte(registryYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://ex1.com",
		"https://www.ex2.com",
		"https://globex.example",
	}, reg.AllowedOrigins())
}

func TestParseRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", `tenants: {}`},
		{
			"missing form server",
			`
tenants:
  acme:
    domains: ["https://ex1.com"]
    mail_to: "inbox@example.com"
    mail_from: "forms@example.com"
    forms:
      contact: {form: "/f.html", response: "/r.html", mail_subject: "s"}
`,
		},
		{
			"bad mail address",
			`
tenants:
  acme:
    domains: ["https://ex1.com"]
    form_server: "https://forms.example.com"
    mail_to: "not-an-address"
    mail_from: "forms@example.com"
    forms:
      contact: {form: "/f.html", response: "/r.html", mail_subject: "s"}
`,
		},
		{
			"form missing response path",
			`
tenants:
  acme:
    domains: ["https://ex1.com"]
    form_server: "https://forms.example.com"
    mail_to: "inbox@example.com"
    mail_from: "forms@example.com"
    forms:
      contact: {form: "/f.html", mail_subject: "s"}
`,
		},
		{"not yaml", `{{`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRegistry([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}
