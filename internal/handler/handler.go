// Package handler contains the HTTP handlers for form display and
// submission.
package handler

import (
	"fmt"
	"html"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mightymax/trusted-frame-forms/internal/apperror"
	"github.com/mightymax/trusted-frame-forms/internal/captcha"
	"github.com/mightymax/trusted-frame-forms/internal/config"
	"github.com/mightymax/trusted-frame-forms/internal/mailer"
	"github.com/mightymax/trusted-frame-forms/internal/model"
	"github.com/mightymax/trusted-frame-forms/internal/template"
	"github.com/mightymax/trusted-frame-forms/internal/validation"
)

// Handler wires the pipeline components behind the HTTP routes.
type Handler struct {
	log        *zap.Logger
	registry   *config.Registry
	templates  *template.Engine
	captcha    *captcha.Service
	validators *validation.Loader
	mail       *mailer.Dispatcher
}

// New creates a new Handler instance.
func New(log *zap.Logger, registry *config.Registry, templates *template.Engine, captchaSvc *captcha.Service, validators *validation.Loader, mail *mailer.Dispatcher) *Handler {
	return &Handler{
		log:        log,
		registry:   registry,
		templates:  templates,
		captcha:    captchaSvc,
		validators: validators,
		mail:       mail,
	}
}

// Healthz is a simple health check endpoint.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// ShowForm serves the tenant's form template with captcha and action slots
// filled in.
func (h *Handler) ShowForm(w http.ResponseWriter, r *http.Request) {
	tenantKey := chi.URLParam(r, "tenant")
	slug := chi.URLParam(r, "form")
	banner := r.URL.Query().Get("error")

	doc, err := h.templates.RenderForm(r.Context(), tenantKey, slug, banner, nil)
	if err != nil {
		h.renderFormError(w, r, err)
		return
	}
	writeHTML(w, http.StatusOK, doc)
}

// Submit runs the submission pipeline: captcha, tenant validator,
// notification, response page.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	tenantKey := chi.URLParam(r, "tenant")
	slug := chi.URLParam(r, "form")

	tenant, err := h.registry.Tenant(tenantKey)
	if err != nil {
		h.NotFound(w, r)
		return
	}
	form, err := tenant.Form(slug)
	if err != nil {
		h.NotFound(w, r)
		return
	}

	fields, err := model.ParseFields(r.Body)
	if err != nil {
		h.log.Warn("failed to parse submission body", zap.Error(err))
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	result := h.captcha.Verify(
		fields.Get(model.FieldCaptchaToken),
		fields.Get(model.FieldCaptchaAnswer),
		fields.Get(model.FieldHoneypot),
	)
	if !result.OK {
		// The real reason stays server-side; the user gets one generic
		// message whatever went wrong (anti-enumeration).
		h.log.Warn("captcha rejected",
			zap.String("tenant", tenantKey),
			zap.String("form", slug),
			zap.String("reason", string(result.Reason)))
		retry := fmt.Sprintf(`Validation failed, <a href="/form/%s/%s">please try again</a>.`, tenantKey, slug)
		target := fmt.Sprintf("/form/%s/%s?error=%s", tenantKey, slug, url.QueryEscape(retry))
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	validator, err := h.validators.Load(r.Context(), tenant, form)
	if err != nil {
		h.log.Error("validator load failed", zap.Error(err))
		writeHTML(w, http.StatusInternalServerError,
			"Failed to load validator module: <pre><code>"+html.EscapeString(err.Error())+"</code></pre>")
		return
	}

	if validator != nil {
		fieldErrors, err := validator.Run(fields.Map())
		if err != nil {
			h.log.Error("validator execution failed", zap.Error(err))
			writeHTML(w, http.StatusInternalServerError,
				"Validator failed: <pre><code>"+html.EscapeString(err.Error())+"</code></pre>")
			return
		}
		if len(fieldErrors) > 0 {
			h.log.Info("validation errors",
				zap.String("tenant", tenantKey),
				zap.String("form", slug),
				zap.Int("fields", len(fieldErrors)))
			doc, err := h.templates.RenderForm(r.Context(), tenantKey, slug, "", fieldErrors)
			if err != nil {
				h.renderFormError(w, r, err)
				return
			}
			writeHTML(w, http.StatusOK, doc)
			return
		}
	}

	doc, err := h.templates.RenderResponse(r.Context(), tenantKey, slug, fields)
	if err != nil {
		h.log.Error("failed to render response template", zap.Error(err))
		writeHTML(w, http.StatusInternalServerError, "Error fetching the form response")
		return
	}

	if err := h.mail.Send(r.Context(), tenant, form, fields); err != nil {
		// Delivery failure must not crash the pipeline; the submitter gets
		// a generic outcome and the detail lands in the log.
		h.log.Error("error sending email", zap.Error(err))
		writeHTML(w, http.StatusOK, "Failed to send email.")
		return
	}

	writeHTML(w, http.StatusOK, doc)
}

func (h *Handler) renderFormError(w http.ResponseWriter, r *http.Request, err error) {
	if apperror.IsNotFound(err) {
		h.NotFound(w, r)
		return
	}
	h.log.Error("failed to render form", zap.Error(err))
	writeHTML(w, http.StatusInternalServerError,
		"Error fetching the form: <pre><code>"+html.EscapeString(err.Error())+"</code></pre>")
}

func writeHTML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// NotFound serves the styled 404 page used for unknown routes, tenants and
// forms alike.
func (h *Handler) NotFound(w http.ResponseWriter, _ *http.Request) {
	writeHTML(w, http.StatusNotFound, notFoundPage)
}

const notFoundPage = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Page not found</title>
  <style>
    body {
      font-family: system-ui, -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
      background: #f5f5f5;
      color: #333;
      display: flex;
      align-items: center;
      justify-content: center;
      min-height: 100vh;
      margin: 0;
    }
    .wrapper {
      text-align: center;
      padding: 2rem;
      background: #fff;
      border: 1px solid #ddd;
      border-radius: 6px;
    }
    h1 {
      margin: 0 0 0.5rem;
      font-size: 2rem;
    }
    p {
      margin: 0.25rem 0;
    }
  </style>
</head>
<body>
  <div class="wrapper">
    <h1>404</h1>
    <p>Page not found.</p>
  </div>
</body>
</html>`
