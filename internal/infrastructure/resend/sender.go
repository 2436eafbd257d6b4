// Package resend delivers notifications through the Resend HTTP API.
package resend

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/go-recipes-api/internal/infrastructure/notify"
	"github.com/resend/resend-go/v2"
)

// EmailAPI is the subset of the Resend client used here.
type EmailAPI interface {
	SendWithOptions(ctx context.Context, params *resend.SendEmailRequest, options *resend.SendEmailOptions) (*resend.SendEmailResponse, error)
}

type Sender struct {
	emails EmailAPI
	from   string
}

func New(apiKey, from string) (*Sender, error) {
	if apiKey == "" {
		return nil, errors.New("resend api key is required")
	}
	if from == "" {
		return nil, errors.New("notification from address is required")
	}
	return &Sender{emails: resend.NewClient(apiKey).Emails, from: from}, nil
}

func NewWithAPI(emails EmailAPI, from string) *Sender {
	return &Sender{emails: emails, from: from}
}

// Deliver sends msg once. The idempotency key makes a repeated call for the
// same rendered code a no-op on Resend's side.
func (s *Sender) Deliver(ctx context.Context, msg notify.Message) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Body,
		Html:    "<p>" + strings.ReplaceAll(html.EscapeString(msg.Body), "\n", "<br>") + "</p>",
	}
	opts := &resend.SendEmailOptions{}
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		opts.IdempotencyKey = key
	}
	if _, err := s.emails.SendWithOptions(ctx, params, opts); err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}
	return nil
}
