package email

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/invopay/reminder-api/internal/repository"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender delivers payment reminders over SMTP.
type Sender struct {
	dialer   *gomail.Dialer
	from     string
	invoices repository.InvoiceReader
}

func NewSender(cfg Config, invoices repository.InvoiceReader) *Sender {
	return &Sender{
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:     cfg.From,
		invoices: invoices,
	}
}

func (s *Sender) Send(ctx context.Context, invoiceID uuid.UUID) error {
	contact, err := s.invoices.GetContact(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient: %w", err)
	}
	if !contact.HasEmail() {
		return fmt.Errorf("buyer has no email address")
	}

	dueDate, err := s.invoices.GetDueDate(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to resolve due date: %w", err)
	}

	body := fmt.Sprintf("This is a reminder that invoice %s is awaiting payment.", invoiceID)
	if dueDate != nil {
		body = fmt.Sprintf("This is a reminder that invoice %s is due on %s.",
			invoiceID, dueDate.Format("2 January 2006"))
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", *contact.Email)
	m.SetHeader("Subject", fmt.Sprintf("Payment reminder for invoice %s", invoiceID))
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
