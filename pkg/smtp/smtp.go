// Package smtp sends outreach messages over authenticated SMTP.
package smtp

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Message is one outbound email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

// Sender delivers messages. The pipeline depends on this interface so
// tests can capture sends.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type client struct {
	cfg Config
	// sendMail is swapped in tests; defaults to smtp.SendMail.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSender(cfg Config) (Sender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, eris.New("smtp: host and from address are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &client{cfg: cfg, sendMail: smtp.SendMail}, nil
}

func (c *client) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "smtp: send canceled")
	}
	if msg.To == "" {
		return eris.New("smtp: message has no recipient")
	}

	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	raw := c.build(msg)

	done := make(chan error, 1)
	go func() {
		done <- c.sendMail(addr, auth, c.cfg.From, []string{msg.To}, raw)
	}()
	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "smtp: send canceled")
	case err := <-done:
		return eris.Wrapf(err, "smtp: sending to %s", msg.To)
	}
}

func (c *client) build(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", formatAddress(c.cfg.FromName, c.cfg.From))
	fmt.Fprintf(&b, "To: %s\r\n", formatAddress(msg.ToName, msg.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

func formatAddress(name, email string) string {
	if name == "" {
		return email
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", name), email)
}
