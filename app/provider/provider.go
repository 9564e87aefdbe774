package provider

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
)

type CreateInput struct {
	Kind        entity.RequestKind
	AmountMinor int64
	Currency    string

	Name        string
	Email       string
	Contact     string
	Description string

	// ExpireBy is left zero for requests that never expire.
	ExpireBy time.Time
}

type CreateOutput struct {
	RequestID   string
	CheckoutURL *string
	OrderID     *string
}

type Provider interface {
	CreatePaymentRequest(ctx context.Context, input *CreateInput) (*CreateOutput, error)
	// FetchPaymentRequestStatus returns the provider status in payment link
	// vocabulary (paid, partially_paid, expired, cancelled), or "" when the
	// request has not moved.
	FetchPaymentRequestStatus(ctx context.Context, kind entity.RequestKind, requestID string) (string, error)
}
