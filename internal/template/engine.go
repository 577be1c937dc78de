// Package template fetches per-tenant HTML documents from the tenant's
// template host and fills their placeholders.
//
// Placeholders look like {{ name }}. A fixed set of slots is recognized
// (form action, captcha question, captcha answer block, top-level error,
// per-field errors, per-field values); everything is substituted in a single
// pass so tenant-chosen field names can never collide with an earlier
// replacement's output.
package template

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/mightymax/trusted-frame-forms/internal/apperror"
	"github.com/mightymax/trusted-frame-forms/internal/captcha"
	"github.com/mightymax/trusted-frame-forms/internal/config"
	"github.com/mightymax/trusted-frame-forms/internal/model"
)

// Slot names recognized in form templates.
const (
	slotFormAction      = "formAction"
	slotCaptchaQuestion = "captchaQuestion"
	slotCaptchaAnswer   = "captchaAnswer"
	slotError           = "error"
	errorSlotPrefix     = "error_"
)

var placeholderRe = regexp.MustCompile(`\{\{ ?([a-zA-Z0-9_]+) ?\}\}`)

// requiredSlots must all be present in a form template; a document missing
// any of them is a configuration defect.
var requiredSlots = []string{slotFormAction, slotCaptchaQuestion, slotCaptchaAnswer}

// Engine renders form and response documents.
type Engine struct {
	client   *http.Client
	registry *config.Registry
	captcha  *captcha.Service
	baseURL  string
	log      *zap.Logger
	// banner allows simple markup (links) in the top-level error slot;
	// strict strips all markup from user-submitted values.
	banner *bluemonday.Policy
	strict *bluemonday.Policy
}

// New creates an Engine. baseURL is the externally visible address used to
// build form-action links; fetchTimeout bounds every template retrieval.
func New(registry *config.Registry, captchaSvc *captcha.Service, baseURL string, fetchTimeout time.Duration, log *zap.Logger) *Engine {
	return &Engine{
		client:   &http.Client{Timeout: fetchTimeout},
		registry: registry,
		captcha:  captchaSvc,
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      log,
		banner:   bluemonday.UGCPolicy(),
		strict:   bluemonday.StrictPolicy(),
	}
}

// RenderForm fetches the display template for tenant/slug and substitutes a
// fresh captcha challenge, the submission target, an optional error banner
// and per-field error messages. Unused error_* slots are stripped; all other
// unknown placeholders are left untouched.
func (e *Engine) RenderForm(ctx context.Context, tenantKey, slug, banner string, fieldErrors model.ErrorSet) (string, error) {
	tenant, form, err := e.lookup(tenantKey, slug)
	if err != nil {
		return "", err
	}

	doc, docURL, err := e.fetch(ctx, tenant.FormServer, form.Form)
	if err != nil {
		return "", err
	}

	if missing := missingSlots(doc); len(missing) > 0 {
		return "", &apperror.StructuralError{URL: docURL, Missing: missing}
	}

	token, question, err := e.captcha.Issue()
	if err != nil {
		return "", err
	}
	submitURL := fmt.Sprintf("%s/submit/%s/%s", e.baseURL, url.PathEscape(tenantKey), url.PathEscape(slug))

	out := placeholderRe.ReplaceAllStringFunc(doc, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		switch {
		case name == slotFormAction:
			return submitURL
		case name == slotCaptchaQuestion:
			return question + " = ?"
		case name == slotCaptchaAnswer:
			return captchaBlock(question, token)
		case name == slotError:
			return e.banner.Sanitize(banner)
		case strings.HasPrefix(name, errorSlotPrefix):
			if msg, ok := fieldErrors[strings.TrimPrefix(name, errorSlotPrefix)]; ok {
				return `<span class="error">` + e.strict.Sanitize(msg) + `</span>`
			}
			return ""
		default:
			return match
		}
	})
	return out, nil
}

// RenderResponse fetches the thank-you template and substitutes every
// submitted field into its same-named placeholder. Placeholders with no
// matching field stay verbatim; the template decides what is shown.
func (e *Engine) RenderResponse(ctx context.Context, tenantKey, slug string, fields *model.Fields) (string, error) {
	tenant, form, err := e.lookup(tenantKey, slug)
	if err != nil {
		return "", err
	}

	doc, _, err := e.fetch(ctx, tenant.FormServer, form.Response)
	if err != nil {
		return "", err
	}

	out := placeholderRe.ReplaceAllStringFunc(doc, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if fields.Has(name) {
			return e.strict.Sanitize(fields.Get(name))
		}
		return match
	})
	return out, nil
}

func (e *Engine) lookup(tenantKey, slug string) (*config.TenantConfig, *config.FormConfig, error) {
	tenant, err := e.registry.Tenant(tenantKey)
	if err != nil {
		return nil, nil, err
	}
	form, err := tenant.Form(slug)
	if err != nil {
		return nil, nil, err
	}
	return tenant, form, nil
}

// fetch retrieves a template document and returns its body and resolved URL.
func (e *Engine) fetch(ctx context.Context, base, path string) (string, string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", "", fmt.Errorf("invalid template host %q: %w", base, err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", "", fmt.Errorf("invalid template path %q: %w", path, err)
	}
	docURL := baseURL.ResolveReference(ref).String()

	e.log.Debug("fetching template", zap.String("url", docURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return "", "", &apperror.FetchError{Kind: "template", URL: docURL, Err: err}
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return "", "", &apperror.FetchError{Kind: "template", URL: docURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", &apperror.FetchError{Kind: "template", URL: docURL, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", &apperror.FetchError{Kind: "template", URL: docURL, Err: err}
	}
	return string(body), docURL, nil
}

func missingSlots(doc string) []string {
	present := make(map[string]bool)
	for _, match := range placeholderRe.FindAllStringSubmatch(doc, -1) {
		present[match[1]] = true
	}
	var missing []string
	for _, slot := range requiredSlots {
		if !present[slot] {
			missing = append(missing, slot)
		}
	}
	return missing
}

// captchaBlock renders the answer input, the hidden signed token and the
// invisible honeypot field.
func captchaBlock(question, token string) string {
	return fmt.Sprintf(
		`<input type="text" name="%s" placeholder="%s = ?" required>`+
			`<input type="hidden" name="%s" value="%s">`+
			`<div style="display:none;"><label>Website (do not fill): <input type="text" name="%s"></label></div>`,
		model.FieldCaptchaAnswer, html.EscapeString(question),
		model.FieldCaptchaToken, html.EscapeString(token),
		model.FieldHoneypot,
	)
}
