package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Email delivers notifications over SMTP.
type Email struct {
	host     string
	port     int
	username string
	password string // empty disables auth
	from     string
	to       string
}

func NewEmail(host string, port int, username, password, from, to string) *Email {
	return &Email{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		to:       to,
	}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Notify(ctx context.Context, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", e.from)
	fmt.Fprintf(&msg, "To: %s\r\n", e.to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", title)
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")

	var auth smtp.Auth
	if e.password != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	if err := smtp.SendMail(addr, auth, e.from, []string{e.to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail via %s: %w", addr, err)
	}
	return nil
}
