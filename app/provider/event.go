package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
)

var ErrMalformedEvent = errors.New("malformed provider event")

type EventKind string

const (
	EventKindLinkPaid          EventKind = "payment_link.paid"
	EventKindLinkPartiallyPaid EventKind = "payment_link.partially_paid"
	EventKindLinkExpired       EventKind = "payment_link.expired"
	EventKindLinkCancelled     EventKind = "payment_link.cancelled"
	EventKindPaymentCaptured   EventKind = "payment.captured"
	EventKindIgnored           EventKind = "ignored"
)

var linkEventStatus = map[EventKind]entity.Status{
	EventKindLinkPaid:          entity.StatusPaid,
	EventKindLinkPartiallyPaid: entity.StatusPartiallyPaid,
	EventKindLinkExpired:       entity.StatusFailed,
	EventKindLinkCancelled:     entity.StatusFailed,
}

// NormalizedEvent is the typed projection of a provider event. Exactly one of
// the link fields (RequestID, Status) or Capture is populated, depending on Kind.
type NormalizedEvent struct {
	Kind    EventKind
	RawKind string

	RequestID string
	Status    entity.Status

	Capture *CapturedPayment
}

func (e *NormalizedEvent) IsLinkEvent() bool {
	_, ok := linkEventStatus[e.Kind]
	return ok
}

type CapturedPayment struct {
	// LinkedRequestID is taken from the payment notes and is nil when the
	// payment carries no linkage to a payment request.
	LinkedRequestID *string

	PaymentID   string
	OrderID     *string
	Method      *string
	Captured    bool
	Email       *string
	Contact     *string
	AmountMinor int64
}

type rawEvent struct {
	Event   string `json:"event"`
	Payload struct {
		PaymentLink *struct {
			Entity rawPaymentLink `json:"entity"`
		} `json:"payment_link"`
		Payment *struct {
			Entity rawPayment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type rawPaymentLink struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type rawPayment struct {
	ID       string          `json:"id"`
	OrderID  string          `json:"order_id"`
	Method   string          `json:"method"`
	Captured bool            `json:"captured"`
	Email    string          `json:"email"`
	Contact  string          `json:"contact"`
	Amount   int64           `json:"amount"`
	Notes    json.RawMessage `json:"notes"`
}

var requestIDNoteKeys = []string{"request_id", "payment_request_id"}

func NormalizeEvent(payload []byte) (*NormalizedEvent, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrMalformedEvent)
	}

	var event rawEvent
	if err := json.Unmarshal(trimmed, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	rawKind := strings.TrimSpace(event.Event)
	if rawKind == "" {
		return nil, fmt.Errorf("%w: event name is missing", ErrMalformedEvent)
	}

	kind := EventKind(rawKind)
	if status, ok := linkEventStatus[kind]; ok {
		if event.Payload.PaymentLink == nil || strings.TrimSpace(event.Payload.PaymentLink.Entity.ID) == "" {
			return nil, fmt.Errorf("%w: %s without payment link id", ErrMalformedEvent, rawKind)
		}
		return &NormalizedEvent{
			Kind:      kind,
			RawKind:   rawKind,
			RequestID: strings.TrimSpace(event.Payload.PaymentLink.Entity.ID),
			Status:    status,
		}, nil
	}

	if kind == EventKindPaymentCaptured {
		if event.Payload.Payment == nil || strings.TrimSpace(event.Payload.Payment.Entity.ID) == "" {
			return nil, fmt.Errorf("%w: %s without payment id", ErrMalformedEvent, rawKind)
		}
		payment := event.Payload.Payment.Entity
		return &NormalizedEvent{
			Kind:    kind,
			RawKind: rawKind,
			Capture: &CapturedPayment{
				LinkedRequestID: linkedRequestID(payment.Notes),
				PaymentID:       strings.TrimSpace(payment.ID),
				OrderID:         optionalString(payment.OrderID),
				Method:          optionalString(payment.Method),
				Captured:        payment.Captured,
				Email:           optionalString(payment.Email),
				Contact:         optionalString(payment.Contact),
				AmountMinor:     payment.Amount,
			},
		}, nil
	}

	return &NormalizedEvent{Kind: EventKindIgnored, RawKind: rawKind}, nil
}

// BuildLinkStatusEvent renders a provider-shaped payment link event for a
// status obtained by polling. ok is false when the status maps to no event.
func BuildLinkStatusEvent(requestID, providerStatus string) ([]byte, bool) {
	var kind EventKind
	switch providerStatus {
	case "paid":
		kind = EventKindLinkPaid
	case "partially_paid":
		kind = EventKindLinkPartiallyPaid
	case "expired":
		kind = EventKindLinkExpired
	case "cancelled":
		kind = EventKindLinkCancelled
	default:
		return nil, false
	}

	body, err := json.Marshal(map[string]any{
		"event": string(kind),
		"payload": map[string]any{
			"payment_link": map[string]any{
				"entity": map[string]any{
					"id":     requestID,
					"status": providerStatus,
				},
			},
		},
	})
	if err != nil {
		return nil, false
	}
	return body, true
}

// Notes arrive as an object, or as an empty array when none were set.
func linkedRequestID(notes json.RawMessage) *string {
	trimmed := bytes.TrimSpace(notes)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}

	var values map[string]any
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return nil
	}
	for _, key := range requestIDNoteKeys {
		if s, ok := values[key].(string); ok {
			if id := optionalString(s); id != nil {
				return id
			}
		}
	}
	return nil
}

func optionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
