// Package notify renders message templates and hands them to a delivery backend.
package notify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-recipes-api/internal/domain"
	"golang.org/x/time/rate"
)

// Message is a rendered notification.
type Message struct {
	To      string
	Subject string
	Body    string
	// IdempotencyKey lets backends that support it drop duplicate deliveries.
	IdempotencyKey string
}

// Sender delivers a rendered message.
type Sender interface {
	Deliver(ctx context.Context, msg Message) error
}

// TemplateSource resolves a template by name.
type TemplateSource interface {
	Load(ctx context.Context, name string) (*View, error)
}

// FSSource loads templates from a file system, normally Defaults().
type FSSource struct {
	fs fs.FS
}

func NewFSSource(fsys fs.FS) *FSSource {
	return &FSSource{fs: fsys}
}

func (s *FSSource) Load(_ context.Context, name string) (*View, error) {
	return ParseFS(s.fs, name)
}

// Gateway renders templates and delivers them at a bounded rate.
type Gateway struct {
	sender    Sender
	templates TemplateSource
	limiter   *rate.Limiter
}

// NewGateway returns a Gateway that sends at most perSecond messages per second
// with bursts up to burst. A non-positive rate disables throttling.
func NewGateway(sender Sender, templates TemplateSource, perSecond float64, burst int) *Gateway {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Gateway{sender: sender, templates: templates, limiter: rate.NewLimiter(limit, burst)}
}

// Send renders templateID with payload and delivers it to email. Every failure
// wraps domain.ErrDownstreamUnavailable.
func (g *Gateway) Send(ctx context.Context, email, templateID string, payload map[string]string) error {
	view, err := g.templates.Load(ctx, templateID)
	if err != nil {
		return fmt.Errorf("load template %s: %w: %w", templateID, domain.ErrDownstreamUnavailable, err)
	}
	subject, err := view.Render(ElementSubject, payload)
	if err != nil {
		return fmt.Errorf("render %s subject: %w: %w", templateID, domain.ErrDownstreamUnavailable, err)
	}
	body, err := view.Render(ElementBody, payload)
	if err != nil {
		return fmt.Errorf("render %s body: %w: %w", templateID, domain.ErrDownstreamUnavailable, err)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notification throttled: %w: %w", domain.ErrDownstreamUnavailable, err)
	}

	msg := Message{
		To:             email,
		Subject:        strings.TrimSpace(subject),
		Body:           strings.TrimLeft(body, "\n"),
		IdempotencyKey: idempotencyKey(templateID, email, payload),
	}
	if err := g.sender.Deliver(ctx, msg); err != nil {
		return fmt.Errorf("deliver %s: %w: %w", templateID, domain.ErrDownstreamUnavailable, err)
	}
	return nil
}

// idempotencyKey is stable for one rendered code so a retried delivery of the
// same message is deduplicated, while a resent code gets a new key.
func idempotencyKey(templateID, email string, payload map[string]string) string {
	if code := payload["code"]; code != "" {
		return templateID + ":" + email + ":" + hashShort(code)
	}
	return templateID + ":" + email
}

func hashShort(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
