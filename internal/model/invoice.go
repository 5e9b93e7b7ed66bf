package model

// PaymentStatus mirrors the invoice service's payment lifecycle. Only the
// presence of a due date and PAID matter to the reminder engine.
type PaymentStatus string

const (
	PaymentStatusDraft   PaymentStatus = "DRAFT"
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSent    PaymentStatus = "SENT"
	PaymentStatusPaid    PaymentStatus = "PAID"
)

// InvoiceContact is the buyer's reachable addresses for one invoice.
type InvoiceContact struct {
	Email *string `db:"email" json:"email,omitempty"`
	Phone *string `db:"phone" json:"phone,omitempty"`
}

func (c *InvoiceContact) HasEmail() bool {
	return c != nil && c.Email != nil && *c.Email != ""
}

func (c *InvoiceContact) HasPhone() bool {
	return c != nil && c.Phone != nil && *c.Phone != ""
}
