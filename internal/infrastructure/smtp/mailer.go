package smtp

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/go-recipes-api/internal/config"
	"github.com/go-recipes-api/internal/infrastructure/notify"
)

// sendMailFunc matches smtp.SendMail.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer delivers notifications over SMTP.
type Mailer struct {
	host     string
	port     string
	from     string
	username string
	password string
	send     sendMailFunc
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		from:     cfg.NotifyFrom,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		send:     smtp.SendMail,
	}
}

// Deliver sends msg. net/smtp has no context support, so ctx is only checked
// before dialing.
func (m *Mailer) Deliver(ctx context.Context, msg notify.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		m.from, msg.To, msg.Subject, msg.Body)
	addr := fmt.Sprintf("%s:%s", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return m.send(addr, auth, m.from, []string{msg.To}, []byte(raw))
}
