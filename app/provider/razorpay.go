package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	razorpay "github.com/razorpay/razorpay-go"

	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
)

var ErrUnsupportedRequestKind = errors.New("unsupported payment request kind")

type RazorpayConfig struct {
	KeyID       string
	KeySecret   string
	HTTPTimeout time.Duration
}

type razorpayResource interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(id string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type razorpayCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type RazorpayProvider struct {
	cfg     RazorpayConfig
	links   razorpayResource
	orders  razorpayResource
	qrCodes razorpayCreator
}

func NewRazorpayProvider(cfg RazorpayConfig) *RazorpayProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	// The SDK takes whole seconds.
	seconds := int64((timeout + time.Second - 1) / time.Second)
	if seconds > math.MaxInt16 {
		seconds = math.MaxInt16
	}
	cfg.HTTPTimeout = time.Duration(seconds) * time.Second

	client := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)
	client.SetTimeout(int16(seconds))

	return &RazorpayProvider{
		cfg:     cfg,
		links:   client.PaymentLink,
		orders:  client.Order,
		qrCodes: client.QrCode,
	}
}

func (p *RazorpayProvider) CreatePaymentRequest(ctx context.Context, input *CreateInput) (*CreateOutput, error) {
	if strings.TrimSpace(p.cfg.KeyID) == "" || strings.TrimSpace(p.cfg.KeySecret) == "" {
		return nil, errors.New("razorpay credentials are not configured")
	}

	switch input.Kind {
	case entity.RequestKindPaymentLink:
		return p.createPaymentLink(ctx, input)
	case entity.RequestKindUPIQR:
		return p.createOrderWithQRCode(ctx, input)
	default:
		return nil, ErrUnsupportedRequestKind
	}
}

func (p *RazorpayProvider) FetchPaymentRequestStatus(ctx context.Context, kind entity.RequestKind, requestID string) (string, error) {
	if strings.TrimSpace(requestID) == "" {
		return "", nil
	}

	switch kind {
	case entity.RequestKindPaymentLink:
		link, err := call(ctx, func() (map[string]interface{}, error) {
			return p.links.Fetch(requestID, nil, nil)
		})
		if err != nil {
			return "", err
		}
		switch status := stringField(link, "status"); status {
		case "paid", "partially_paid", "expired", "cancelled":
			return status, nil
		default:
			return "", nil
		}
	case entity.RequestKindUPIQR:
		order, err := call(ctx, func() (map[string]interface{}, error) {
			return p.orders.Fetch(requestID, nil, nil)
		})
		if err != nil {
			return "", err
		}
		if stringField(order, "status") == "paid" {
			return "paid", nil
		}
		return "", nil
	default:
		return "", ErrUnsupportedRequestKind
	}
}

func (p *RazorpayProvider) createPaymentLink(ctx context.Context, input *CreateInput) (*CreateOutput, error) {
	data := map[string]interface{}{
		"amount":          input.AmountMinor,
		"currency":        input.Currency,
		"accept_partial":  false,
		"reminder_enable": false,
		"notify": map[string]interface{}{
			"sms":   false,
			"email": false,
		},
	}
	if description := strings.TrimSpace(input.Description); description != "" {
		data["description"] = description
	}
	if customer := buildCustomer(input); len(customer) > 0 {
		data["customer"] = customer
	}
	if !input.ExpireBy.IsZero() {
		data["expire_by"] = input.ExpireBy.Unix()
	}

	link, err := call(ctx, func() (map[string]interface{}, error) {
		return p.links.Create(data, nil)
	})
	if err != nil {
		return nil, err
	}

	id := stringField(link, "id")
	if id == "" {
		return nil, errors.New("razorpay payment link response has no id")
	}

	out := &CreateOutput{RequestID: id}
	if shortURL := stringField(link, "short_url"); shortURL != "" {
		out.CheckoutURL = &shortURL
	}
	if orderID := stringField(link, "order_id"); orderID != "" {
		out.OrderID = &orderID
	}
	return out, nil
}

func (p *RazorpayProvider) createOrderWithQRCode(ctx context.Context, input *CreateInput) (*CreateOutput, error) {
	order, err := call(ctx, func() (map[string]interface{}, error) {
		return p.orders.Create(map[string]interface{}{
			"amount":          input.AmountMinor,
			"currency":        input.Currency,
			"receipt":         "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
			"payment_capture": 1,
		}, nil)
	})
	if err != nil {
		return nil, err
	}

	orderID := stringField(order, "id")
	if orderID == "" {
		return nil, errors.New("razorpay order response has no id")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Order Payment"
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = "Payment for your order"
	}

	qrData := map[string]interface{}{
		"type":           "upi_qr",
		"name":           name,
		"usage":          "single_use",
		"fixed_amount":   true,
		"payment_amount": input.AmountMinor,
		"description":    description,
		"notes": map[string]interface{}{
			"request_id": orderID,
		},
	}
	if !input.ExpireBy.IsZero() {
		qrData["close_by"] = input.ExpireBy.Unix()
	}

	qrCode, err := call(ctx, func() (map[string]interface{}, error) {
		return p.qrCodes.Create(qrData, nil)
	})
	if err != nil {
		return nil, err
	}

	out := &CreateOutput{RequestID: orderID, OrderID: &orderID}
	if imageURL := stringField(qrCode, "image_url"); imageURL != "" {
		out.CheckoutURL = &imageURL
	}
	return out, nil
}

func buildCustomer(input *CreateInput) map[string]interface{} {
	customer := map[string]interface{}{}
	if v := strings.TrimSpace(input.Name); v != "" {
		customer["name"] = v
	}
	if v := strings.TrimSpace(input.Email); v != "" {
		customer["email"] = v
	}
	if v := strings.TrimSpace(input.Contact); v != "" {
		customer["contact"] = v
	}
	return customer
}

type callResult struct {
	body map[string]interface{}
	err  error
}

// call runs a blocking SDK request and stops waiting when ctx is done. The SDK
// request itself is bounded by the client timeout.
func call(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	done := make(chan callResult, 1)
	go func() {
		body, err := fn()
		done <- callResult{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("razorpay request failed: %w", res.err)
		}
		return res.body, nil
	}
}

func stringField(body map[string]interface{}, key string) string {
	if body == nil {
		return ""
	}
	s, _ := body[key].(string)
	return strings.TrimSpace(s)
}
