package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mightymax/trusted-frame-forms/internal/apperror"
)

// TenantConfig describes one tenant: who may embed its forms, where its
// templates live, and where submissions are mailed. Immutable after load.
type TenantConfig struct {
	// Domains are the origins allowed to embed this tenant's forms,
	// matched verbatim against the Origin header.
	Domains []string `yaml:"domains" validate:"required,min=1,dive,required"`
	// FormServer is the base URL where the HTML templates and validator
	// modules are hosted.
	FormServer string                 `yaml:"form_server" validate:"required,url"`
	MailTo     string                 `yaml:"mail_to" validate:"required,email"`
	MailFrom   string                 `yaml:"mail_from" validate:"required,email"`
	Forms      map[string]*FormConfig `yaml:"forms" validate:"required,min=1,dive"`
}

// FormConfig describes one form of a tenant.
type FormConfig struct {
	// Form and Response are template paths relative to FormServer.
	Form        string `yaml:"form" validate:"required"`
	Response    string `yaml:"response" validate:"required"`
	MailSubject string `yaml:"mail_subject" validate:"required"`
	// Validator optionally points at a JavaScript module (relative path or
	// absolute URL) whose default export checks submitted fields.
	Validator string `yaml:"validator"`
}

// Registry is the static tenant configuration, loaded once at startup.
type Registry struct {
	tenants map[string]*TenantConfig
	// order preserves the file order of tenants so AllowedOrigins is stable.
	order []string
}

type registryFile struct {
	Tenants map[string]*TenantConfig `yaml:"tenants"`
}

// LoadRegistry reads and validates the tenant registry from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tenants file: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry builds a Registry from raw YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tenants file: %w", err)
	}
	if len(file.Tenants) == 0 {
		return nil, fmt.Errorf("tenants file defines no tenants")
	}

	validate := validator.New()
	for key, tenant := range file.Tenants {
		if err := validate.Struct(tenant); err != nil {
			return nil, fmt.Errorf("invalid config for tenant %q: %w", key, err)
		}
	}

	// yaml.v3 decodes mappings into Go maps, which do not keep document
	// order, so recover it from the node tree.
	order, err := tenantOrder(data)
	if err != nil {
		return nil, err
	}

	return &Registry{tenants: file.Tenants, order: order}, nil
}

func tenantOrder(data []byte) ([]string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	var order []string
	if len(root.Content) == 0 {
		return order, nil
	}
	doc := root.Content[0]
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != "tenants" {
			continue
		}
		tenants := doc.Content[i+1]
		for j := 0; j+1 < len(tenants.Content); j += 2 {
			order = append(order, tenants.Content[j].Value)
		}
	}
	return order, nil
}

// Tenant returns the configuration for the given tenant key.
func (r *Registry) Tenant(key string) (*TenantConfig, error) {
	tenant, ok := r.tenants[key]
	if !ok {
		return nil, apperror.ErrTenantNotFound
	}
	return tenant, nil
}

// Form returns the configuration for the given form slug.
func (t *TenantConfig) Form(slug string) (*FormConfig, error) {
	form, ok := t.Forms[slug]
	if !ok {
		return nil, apperror.ErrFormNotFound
	}
	return form, nil
}

// AllowedOrigins returns the union of all tenants' domains in file order,
// de-duplicated. This feeds both the frame-ancestors header and the Origin
// check.
func (r *Registry) AllowedOrigins() []string {
	seen := make(map[string]bool)
	var origins []string
	for _, key := range r.order {
		for _, domain := range r.tenants[key].Domains {
			if seen[domain] {
				continue
			}
			seen[domain] = true
			origins = append(origins, domain)
		}
	}
	return origins
}
