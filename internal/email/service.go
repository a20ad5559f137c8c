package email

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/detailing-api/internal/model"
)

type Service interface {
	SendNewCustomer(ctx context.Context, customer *model.Customer) error
	SendCustom(ctx context.Context, to string, subject string, content string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	NotifyTo string
}

// sender is satisfied by *gomail.Dialer.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type smtpService struct {
	sender   sender
	from     string
	notifyTo string
}

// NewService returns an SMTP-backed service, or a no-op one when no host or
// recipient is configured.
func NewService(cfg Config) Service {
	if cfg.Host == "" || cfg.NotifyTo == "" {
		return Noop{}
	}
	return &smtpService{
		sender:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:     cfg.From,
		notifyTo: cfg.NotifyTo,
	}
}

func (s *smtpService) SendNewCustomer(ctx context.Context, customer *model.Customer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>A new customer signed up.</p><ul>")
	fmt.Fprintf(&b, "<li>Name: %s</li>", customer.Name)
	fmt.Fprintf(&b, "<li>Email: %s</li>", customer.Email)
	fmt.Fprintf(&b, "<li>Phone: %s</li>", customer.Phone)
	if customer.Address != nil {
		fmt.Fprintf(&b, "<li>Address: %s</li>", *customer.Address)
	}
	b.WriteString("</ul>")

	return s.SendCustom(ctx, s.notifyTo, "New customer: "+customer.Name, b.String())
}

func (s *smtpService) SendCustom(ctx context.Context, to string, subject string, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", content)

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// Noop drops every message.
type Noop struct{}

func (Noop) SendNewCustomer(context.Context, *model.Customer) error     { return nil }
func (Noop) SendCustom(context.Context, string, string, string) error { return nil }
