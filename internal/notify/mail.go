// Package notify sends the e-mail notifications of the application.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/diewo77/training-tracker/internal/config"
)

// Message is one outgoing e-mail with a plain text and an HTML body.
type Message struct {
	To          []mail.Address
	Subject     string
	TextContent string
	HTMLContent string
}

func (m *Message) HasRecipients() bool { return len(m.To) > 0 }

func (m *Message) HasContent() bool { return m.TextContent != "" || m.HTMLContent != "" }

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// NewMailer returns the backend selected by cfg.Backend. Unknown backends
// fall back to the console.
func NewMailer(cfg config.MailConfig, out io.Writer) Mailer {
	from := mail.Address{Address: cfg.DefaultSender}
	switch cfg.Backend {
	case "smtp":
		return &SMTPMailer{
			addr: cfg.Server + ":" + strconv.Itoa(cfg.Port),
			from: from,
			user: cfg.Username,
			pass: cfg.Password,
			host: cfg.Server,
		}
	case "sendgrid":
		return NewSendgridMailer(cfg.SendgridAPIKey, from)
	}
	return &ConsoleMailer{from: from, out: out}
}

func joinAddresses(addrs []mail.Address) string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return strings.Join(out, ", ")
}

// writeMIME writes msg as a multipart/alternative message.
func writeMIME(w io.Writer, from mail.Address, msg *Message) {
	const boundary = "training-tracker-alt"
	_, _ = fmt.Fprintf(w, "From: %s\r\n", from.String())
	_, _ = fmt.Fprintf(w, "To: %s\r\n", joinAddresses(msg.To))
	_, _ = fmt.Fprintf(w, "Subject: %s\r\n", msg.Subject)
	_, _ = fmt.Fprintf(w, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprint(w, "MIME-Version: 1.0\r\n")
	_, _ = fmt.Fprintf(w, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", boundary)
	_, _ = fmt.Fprintf(w, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.TextContent)
	if msg.HTMLContent != "" {
		_, _ = fmt.Fprintf(w, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.HTMLContent)
	}
	_, _ = fmt.Fprintf(w, "--%s--\r\n", boundary)
}

// ConsoleMailer prints messages instead of sending them.
type ConsoleMailer struct {
	from mail.Address
	out  io.Writer
}

func (c *ConsoleMailer) Send(_ context.Context, msg *Message) error {
	if c.out == nil {
		return nil
	}
	var b strings.Builder
	writeMIME(&b, c.from, msg)
	_, err := io.WriteString(c.out, b.String())
	return err
}

// SMTPMailer relays through a plain SMTP server. Authentication is used
// only when a username is configured.
type SMTPMailer struct {
	addr string
	host string
	from mail.Address
	user string
	pass string
}

func (s *SMTPMailer) Send(_ context.Context, msg *Message) error {
	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.pass, s.host)
	}
	to := make([]string, 0, len(msg.To))
	for _, a := range msg.To {
		to = append(to, a.Address)
	}
	var b strings.Builder
	writeMIME(&b, s.from, msg)
	if err := smtp.SendMail(s.addr, auth, s.from.Address, to, []byte(b.String())); err != nil {
		return errors.Wrap(err, "smtp send")
	}
	return nil
}

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridMailer sends through the SendGrid v3 API.
type SendgridMailer struct {
	key  string
	from *sgmail.Email
}

func NewSendgridMailer(key string, from mail.Address) *SendgridMailer {
	return &SendgridMailer{key: key, from: sgmail.NewEmail(from.Name, from.Address)}
}

func (s *SendgridMailer) prepare(msg *Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail(to.Name, to.Address))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return m
}

func (s *SendgridMailer) Send(_ context.Context, msg *Message) error {
	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return errors.Wrap(err, "sendgrid send")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sendgrid send: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// MockMailer records messages. It fails every send when Err is set.
type MockMailer struct {
	mu   sync.Mutex
	Sent []Message
	Err  error
}

func (m *MockMailer) Send(_ context.Context, msg *Message) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	m.Sent = append(m.Sent, *msg)
	m.mu.Unlock()
	return nil
}

// Messages returns a copy of the recorded messages.
func (m *MockMailer) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.Sent...)
}
