package entity

import "time"

type Status string

const (
	StatusCreated       Status = "created"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	StatusFailed        Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusPartiallyPaid, StatusPaid, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether link status events can still move the record.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusFailed
}

type RequestKind string

const (
	RequestKindPaymentLink RequestKind = "payment_link"
	RequestKindUPIQR       RequestKind = "upi_qr"
)

type PaymentRecord struct {
	RequestID string      `json:"request_id"`
	Kind      RequestKind `json:"kind"`
	Status    Status      `json:"status"`

	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`

	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Contact     *string `json:"contact,omitempty"`
	Email       *string `json:"email,omitempty"`
	CheckoutURL *string `json:"checkout_url,omitempty"`

	PaymentID *string `json:"payment_id,omitempty"`
	OrderID   *string `json:"order_id,omitempty"`
	Method    *string `json:"method,omitempty"`
	Captured  *bool   `json:"captured,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// PaymentRecordPatch carries the fields a reconciliation step wants to change.
// Nil fields are left untouched.
type PaymentRecordPatch struct {
	Status    *Status
	Contact   *string
	Email     *string
	PaymentID *string
	OrderID   *string
	Method    *string
	Captured  *bool
}

func (p PaymentRecordPatch) IsEmpty() bool {
	return p.Status == nil &&
		p.Contact == nil &&
		p.Email == nil &&
		p.PaymentID == nil &&
		p.OrderID == nil &&
		p.Method == nil &&
		p.Captured == nil
}

func (r *PaymentRecord) Apply(patch PaymentRecordPatch, now time.Time) {
	if patch.Status != nil {
		r.Status = *patch.Status
	}
	if patch.Contact != nil {
		r.Contact = cloneString(patch.Contact)
	}
	if patch.Email != nil {
		r.Email = cloneString(patch.Email)
	}
	if patch.PaymentID != nil {
		r.PaymentID = cloneString(patch.PaymentID)
	}
	if patch.OrderID != nil {
		r.OrderID = cloneString(patch.OrderID)
	}
	if patch.Method != nil {
		r.Method = cloneString(patch.Method)
	}
	if patch.Captured != nil {
		captured := *patch.Captured
		r.Captured = &captured
	}
	updatedAt := now
	r.UpdatedAt = &updatedAt
}

func (r *PaymentRecord) Clone() *PaymentRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Name = cloneString(r.Name)
	c.Description = cloneString(r.Description)
	c.Contact = cloneString(r.Contact)
	c.Email = cloneString(r.Email)
	c.CheckoutURL = cloneString(r.CheckoutURL)
	c.PaymentID = cloneString(r.PaymentID)
	c.OrderID = cloneString(r.OrderID)
	c.Method = cloneString(r.Method)
	if r.Captured != nil {
		captured := *r.Captured
		c.Captured = &captured
	}
	if r.UpdatedAt != nil {
		updatedAt := *r.UpdatedAt
		c.UpdatedAt = &updatedAt
	}
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}
