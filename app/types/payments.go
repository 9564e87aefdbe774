package types

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
	"github.com/vibast-solutions/ms-go-payment-links/app/provider"
)

const (
	defaultListLimit = int32(100)
	maxListLimit     = int32(500)
	maxWebhookBytes  = 1 << 20
)

// maxAmountMinor is the largest amount, in minor units, that a record can hold.
var maxAmountMinor = decimal.NewFromInt(math.MaxInt64)

// CreatePaymentRequest is the body of both creation endpoints. Amount accepts a
// JSON number or a numeric string in major units.
type CreatePaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Contact     string          `json:"contact"`
	Description string          `json:"description"`
}

func NewCreatePaymentRequestFromContext(ctx echo.Context) (*CreatePaymentRequest, error) {
	var body CreatePaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Name = strings.TrimSpace(body.Name)
	body.Email = strings.TrimSpace(body.Email)
	body.Contact = strings.TrimSpace(body.Contact)
	body.Description = strings.TrimSpace(body.Description)

	return &body, nil
}

func (r *CreatePaymentRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	if !r.Amount.Equal(r.Amount.Truncate(2)) {
		return errors.New("amount must have at most two decimal places")
	}
	if r.Amount.Shift(2).GreaterThan(maxAmountMinor) {
		return errors.New("amount is too large")
	}
	if r.Email != "" && !strings.Contains(r.Email, "@") {
		return errors.New("email is invalid")
	}
	if len(r.Name) > 255 {
		return errors.New("name is too long")
	}
	if len(r.Contact) > 64 {
		return errors.New("contact is too long")
	}
	return nil
}

// GetAmountMinor returns the amount in minor currency units.
func (r *CreatePaymentRequest) GetAmountMinor() int64 {
	return r.Amount.Shift(2).IntPart()
}

func (r *CreatePaymentRequest) GetName() string        { return r.Name }
func (r *CreatePaymentRequest) GetEmail() string       { return r.Email }
func (r *CreatePaymentRequest) GetContact() string     { return r.Contact }
func (r *CreatePaymentRequest) GetDescription() string { return r.Description }

type CreateLinkResponse struct {
	RequestID string      `json:"requestId"`
	ShortURL  string      `json:"shortUrl"`
	Status    string      `json:"status"`
	Amount    json.Number `json:"amount"`
	Currency  string      `json:"currency"`
}

type CreateOrderResponse struct {
	RequestID  string      `json:"requestId"`
	QRImageURL string      `json:"qrImageUrl"`
	Status     string      `json:"status"`
	Amount     json.Number `json:"amount"`
	Currency   string      `json:"currency"`
}

type GetRecordRequest struct {
	RequestID string
}

func NewGetRecordRequestFromContext(ctx echo.Context) (*GetRecordRequest, error) {
	return &GetRecordRequest{RequestID: strings.TrimSpace(ctx.Param("requestId"))}, nil
}

func (r *GetRecordRequest) Validate() error {
	if r.RequestID == "" {
		return errors.New("request id is required")
	}
	if len(r.RequestID) > 64 {
		return errors.New("request id is too long")
	}
	return nil
}

type ListRecordsRequest struct {
	HasStatus bool
	Status    entity.Status
	Limit     int32
	Offset    int32
}

func NewListRecordsRequestFromContext(ctx echo.Context) (*ListRecordsRequest, error) {
	req := &ListRecordsRequest{Limit: defaultListLimit}

	if statusRaw := strings.TrimSpace(strings.ToLower(ctx.QueryParam("status"))); statusRaw != "" {
		req.HasStatus = true
		req.Status = entity.Status(statusRaw)
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		offset, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListRecordsRequest) Validate() error {
	if r.Limit == 0 {
		r.Limit = defaultListLimit
	}
	if r.Limit < 0 || r.Limit > maxListLimit {
		return errors.New("limit must be between 1 and 500")
	}
	if r.Offset < 0 {
		return errors.New("offset must be >= 0")
	}
	if r.HasStatus && !r.Status.Valid() {
		return errors.New("invalid status")
	}
	return nil
}

func (r *ListRecordsRequest) GetHasStatus() bool       { return r.HasStatus }
func (r *ListRecordsRequest) GetStatus() entity.Status { return r.Status }
func (r *ListRecordsRequest) GetLimit() int32          { return r.Limit }
func (r *ListRecordsRequest) GetOffset() int32         { return r.Offset }

type ListUnlinkedCapturesRequest struct {
	Limit int32
}

func NewListUnlinkedCapturesRequestFromContext(ctx echo.Context) (*ListUnlinkedCapturesRequest, error) {
	req := &ListUnlinkedCapturesRequest{Limit: defaultListLimit}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	return req, nil
}

func (r *ListUnlinkedCapturesRequest) Validate() error {
	if r.Limit == 0 {
		r.Limit = defaultListLimit
	}
	if r.Limit < 0 || r.Limit > maxListLimit {
		return errors.New("limit must be between 1 and 500")
	}
	return nil
}

func (r *ListUnlinkedCapturesRequest) GetLimit() int32 { return r.Limit }

// WebhookRequest keeps the body exactly as received; the signature is computed
// over these bytes.
type WebhookRequest struct {
	Payload   []byte
	Signature string
}

func NewWebhookRequestFromContext(ctx echo.Context) (*WebhookRequest, error) {
	payload, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxWebhookBytes+1))
	if err != nil {
		return nil, err
	}
	if len(payload) > maxWebhookBytes {
		return nil, errors.New("webhook body is too large")
	}

	return &WebhookRequest{
		Payload:   payload,
		Signature: strings.TrimSpace(ctx.Request().Header.Get(provider.SignatureHeader)),
	}, nil
}

func (r *WebhookRequest) Validate() error {
	if len(r.Payload) == 0 {
		return errors.New("webhook body is empty")
	}
	if r.Signature == "" {
		return errors.New("webhook signature is missing")
	}
	return nil
}

type PaymentRecord struct {
	RequestID   string      `json:"requestId"`
	Kind        string      `json:"kind"`
	Status      string      `json:"status"`
	Amount      json.Number `json:"amount"`
	Currency    string      `json:"currency"`
	Name        *string     `json:"name,omitempty"`
	Description *string     `json:"description,omitempty"`
	Contact     *string     `json:"contact,omitempty"`
	Email       *string     `json:"email,omitempty"`
	CheckoutURL *string     `json:"checkoutUrl,omitempty"`
	PaymentID   *string     `json:"paymentId,omitempty"`
	OrderID     *string     `json:"orderId,omitempty"`
	Method      *string     `json:"method,omitempty"`
	Captured    *bool       `json:"captured,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   *time.Time  `json:"updatedAt,omitempty"`
}

// UnlinkedCapture is a captured payment no record could be matched to. Payload
// is the raw webhook body it arrived in.
type UnlinkedCapture struct {
	PaymentID string      `json:"paymentId"`
	OrderID   *string     `json:"orderId,omitempty"`
	Method    *string     `json:"method,omitempty"`
	Captured  bool        `json:"captured"`
	Email     *string     `json:"email,omitempty"`
	Contact   *string     `json:"contact,omitempty"`
	Amount    json.Number `json:"amount"`
	Payload   string      `json:"payload"`
	CreatedAt time.Time   `json:"createdAt"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
