package service

import (
	"context"
	"fmt"

	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
	"github.com/vibast-solutions/ms-go-payment-links/app/provider"
)

// HandleWebhook verifies and reconciles one provider event. payload must be the
// request body exactly as received.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*ReconcileResult, error) {
	if !provider.VerifySignature(payload, signature, s.webhookSecret) {
		s.metrics.WebhookRejected("invalid_signature")
		return nil, ErrInvalidSignature
	}

	event, err := provider.NormalizeEvent(payload)
	if err != nil {
		s.metrics.WebhookRejected("malformed_event")
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	return s.reconcile(ctx, reconcileInput{
		event:     event,
		source:    entity.AuditSourceWebhook,
		signature: signature,
		payload:   payload,
	})
}
