// Package model holds the request-scoped submission types.
package model

import (
	"io"
	"net/url"
	"strings"
)

// Control fields added by the rendered form. They drive the captcha check and
// are excluded from notification bodies.
const (
	FieldCaptchaAnswer = "captcha_answer"
	FieldCaptchaToken  = "captcha_token"
	FieldHoneypot      = "website"
)

// ControlFields lists the field names that never belong in a notification.
var ControlFields = []string{FieldCaptchaAnswer, FieldCaptchaToken, FieldHoneypot}

// ErrorSet maps field names to human-readable validation messages.
// An empty or nil set means the submission is valid.
type ErrorSet map[string]string

// Fields is the submitted payload with its original field order preserved.
// url.Values is a map and loses insertion order, which the notification
// renderings depend on, so the body is parsed by hand.
type Fields struct {
	names  []string
	values map[string]string
}

// ParseFields decodes a urlencoded request body, keeping first-seen order.
// A repeated key keeps its first position and takes the last value.
func ParseFields(body io.Reader) (*Fields, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	f := &Fields{values: make(map[string]string)}
	for _, pair := range strings.Split(string(raw), "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key, err = url.QueryUnescape(key)
		if err != nil {
			return nil, err
		}
		value, err = url.QueryUnescape(value)
		if err != nil {
			return nil, err
		}
		f.Set(key, value)
	}
	return f, nil
}

// Set stores a field value, appending the name on first sight.
func (f *Fields) Set(name, value string) {
	if f.values == nil {
		f.values = make(map[string]string)
	}
	if _, ok := f.values[name]; !ok {
		f.names = append(f.names, name)
	}
	f.values[name] = value
}

// Get returns the value for name, or "" if absent.
func (f *Fields) Get(name string) string {
	return f.values[name]
}

// Has reports whether name was submitted.
func (f *Fields) Has(name string) bool {
	_, ok := f.values[name]
	return ok
}

// Names returns the field names in submission order.
func (f *Fields) Names() []string {
	return f.names
}

// Map returns a plain name → value copy, for handing to tenant validators.
func (f *Fields) Map() map[string]string {
	m := make(map[string]string, len(f.values))
	for k, v := range f.values {
		m[k] = v
	}
	return m
}

// IsControl reports whether name is one of the captcha/honeypot fields.
func IsControl(name string) bool {
	for _, c := range ControlFields {
		if name == c {
			return true
		}
	}
	return false
}
