package whatsapp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/binary/proto"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/invopay/reminder-api/internal/repository"
)

type Config struct {
	// StoreDSN is the postgres DSN for the whatsmeow device store. The
	// business must already have paired a device; the reminder worker never
	// drives the QR pairing flow.
	StoreDSN string
	LogLevel string
}

// Sender delivers payment reminders over WhatsApp through a paired device.
type Sender struct {
	client   *whatsmeow.Client
	invoices repository.InvoiceReader
}

// NewClient opens the device store and connects the paired WhatsApp device.
func NewClient(cfg Config) (*whatsmeow.Client, error) {
	level := cfg.LogLevel
	if level == "" {
		level = "WARN"
	}
	container, err := sqlstore.New("postgres", cfg.StoreDSN, waLog.Stdout("WhatsApp", level, true))
	if err != nil {
		return nil, fmt.Errorf("failed to open device store: %w", err)
	}

	device, err := container.GetFirstDevice()
	if err != nil {
		return nil, fmt.Errorf("failed to load device: %w", err)
	}
	if device.ID == nil {
		return nil, fmt.Errorf("no paired WhatsApp device in store")
	}

	client := whatsmeow.NewClient(device, waLog.Stdout("Client", level, true))
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return client, nil
}

func NewSender(client *whatsmeow.Client, invoices repository.InvoiceReader) *Sender {
	return &Sender{
		client:   client,
		invoices: invoices,
	}
}

func (s *Sender) Send(ctx context.Context, invoiceID uuid.UUID) error {
	contact, err := s.invoices.GetContact(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient: %w", err)
	}
	if !contact.HasPhone() {
		return fmt.Errorf("buyer has no phone number")
	}

	dueDate, err := s.invoices.GetDueDate(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("failed to resolve due date: %w", err)
	}

	text := fmt.Sprintf("Reminder: invoice %s is awaiting payment.", invoiceID)
	if dueDate != nil {
		text = fmt.Sprintf("Reminder: invoice %s is due on %s.",
			invoiceID, dueDate.Format("2 January 2006"))
	}

	jid := types.NewJID(normalizePhone(*contact.Phone), types.DefaultUserServer)
	msg := &waProto.Message{
		Conversation: proto.String(text),
	}

	if _, err := s.client.SendMessage(ctx, jid, msg); err != nil {
		return fmt.Errorf("failed to send whatsapp message: %w", err)
	}
	return nil
}

// normalizePhone strips the formatting characters users type into contact
// forms; WhatsApp JIDs want bare digits with country code.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
