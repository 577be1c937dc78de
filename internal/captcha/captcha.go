// Package captcha implements the stateless signed-challenge protocol that
// guards form submissions. A challenge is a small sum; its question, answer
// and issuance time travel to the client inside a signed token, so no
// server-side challenge store exists.
package captcha

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Reason identifies why a verification was rejected. It is logged
// server-side only; users always see one generic failure message.
type Reason string

const (
	ReasonHoneypotFilled   Reason = "honeypot_filled"
	ReasonBadSignature     Reason = "bad_signature"
	ReasonMalformedPayload Reason = "malformed_payload"
	ReasonTooFast          Reason = "too_fast"
	ReasonTooSlow          Reason = "too_slow"
	ReasonWrongAnswer      Reason = "wrong_answer"
)

// Result is the outcome of a verification.
type Result struct {
	OK     bool
	Reason Reason
}

// Service issues and verifies challenge tokens.
type Service struct {
	secret []byte
	minAge time.Duration
	maxAge time.Duration
	// tokenTTL is the token's own expiry, deliberately above maxAge so a
	// stale token is reported as too_slow instead of a signature failure.
	tokenTTL time.Duration
	now      func() time.Time
}

// Option adjusts a Service, mainly for tests.
type Option func(*Service)

// WithWindow overrides the minimum and maximum accepted challenge age.
func WithWindow(minAge, maxAge time.Duration) Option {
	return func(s *Service) {
		s.minAge = minAge
		s.maxAge = maxAge
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service with the default 2s..30min acceptance window.
func New(secret string, opts ...Option) *Service {
	s := &Service{
		secret:   []byte(secret),
		minAge:   2 * time.Second,
		maxAge:   30 * time.Minute,
		tokenTTL: time.Hour,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue creates a fresh challenge and returns the signed token together with
// the question text to display.
func (s *Service) Issue() (token, question string, err error) {
	a := rand.Intn(5) + 1
	b := rand.Intn(5) + 1
	question = fmt.Sprintf("%d + %d", a, b)

	now := s.now()
	claims := jwt.MapClaims{
		"question":  question,
		"answer":    a + b,
		"createdAt": now.UnixMilli(),
		"exp":       now.Add(s.tokenTTL).Unix(),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign captcha token: %w", err)
	}
	return token, question, nil
}

// Verify checks a submission against its challenge token. Checks run in a
// fixed precedence order; the first failing check decides the reason.
func (s *Service) Verify(token, userAnswer, honeypot string) Result {
	if strings.TrimSpace(honeypot) != "" {
		return Result{Reason: ReasonHoneypotFilled}
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Result{Reason: ReasonBadSignature}
	}

	answer, answerOK := claims["answer"].(float64)
	createdAt, createdOK := claims["createdAt"].(float64)
	if !answerOK || !createdOK {
		return Result{Reason: ReasonMalformedPayload}
	}

	age := s.now().Sub(time.UnixMilli(int64(createdAt)))
	if age < s.minAge {
		return Result{Reason: ReasonTooFast}
	}
	if age > s.maxAge {
		return Result{Reason: ReasonTooSlow}
	}

	given, err := strconv.ParseFloat(strings.TrimSpace(userAnswer), 64)
	if err != nil || given != answer {
		return Result{Reason: ReasonWrongAnswer}
	}

	return Result{OK: true}
}
