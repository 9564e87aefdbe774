package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
	"github.com/vibast-solutions/ms-go-payment-links/app/lock"
	"github.com/vibast-solutions/ms-go-payment-links/app/metrics"
	"github.com/vibast-solutions/ms-go-payment-links/app/provider"
	"github.com/vibast-solutions/ms-go-payment-links/app/repository"
	"github.com/vibast-solutions/ms-go-payment-links/app/service"
	"github.com/vibast-solutions/ms-go-payment-links/app/types"
	"github.com/vibast-solutions/ms-go-payment-links/config"
)

const controllerWebhookSecret = "whsec_controller"

type controllerProvider struct {
	createErr error
	nextID    int
}

func (p *controllerProvider) CreatePaymentRequest(_ context.Context, input *provider.CreateInput) (*provider.CreateOutput, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.nextID++
	if input.Kind == entity.RequestKindUPIQR {
		id := fmt.Sprintf("order_%d", p.nextID)
		image := "https://rzp.io/qr/" + id + ".png"
		return &provider.CreateOutput{RequestID: id, CheckoutURL: &image, OrderID: &id}, nil
	}
	id := fmt.Sprintf("plink_%d", p.nextID)
	url := "https://rzp.io/i/" + id
	return &provider.CreateOutput{RequestID: id, CheckoutURL: &url}, nil
}

func (p *controllerProvider) FetchPaymentRequestStatus(context.Context, entity.RequestKind, string) (string, error) {
	return "", nil
}

type controllerAuditRepo struct {
	err error
}

func (r *controllerAuditRepo) Append(context.Context, *entity.AuditEntry) error {
	return r.err
}

type controllerFixture struct {
	ctrl     *PaymentController
	records  *repository.MemoryPaymentRecordRepository
	provider *controllerProvider
	audit    *controllerAuditRepo
}

func newControllerForTest() *controllerFixture {
	f := &controllerFixture{
		records:  repository.NewMemoryPaymentRecordRepository(),
		provider: &controllerProvider{},
		audit:    &controllerAuditRepo{},
	}
	paymentService := service.NewPaymentService(
		f.records,
		f.audit,
		repository.NewMemoryUnlinkedCaptureRepository(),
		lock.NewKeyedMutex(),
		f.provider,
		config.PaymentsConfig{Currency: "INR", LinkExpiry: time.Hour, SyncStaleAfter: time.Minute, JobBatchSize: 100},
		controllerWebhookSecret,
		metrics.New(),
	)
	f.ctrl = NewPaymentController(paymentService)
	return f
}

func jsonContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXRequestID, "req-test-1")
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func webhookContext(body, signature string) (echo.Context, *httptest.ResponseRecorder) {
	ctx, rec := jsonContext(http.MethodPost, "/webhook", body)
	if signature != "" {
		ctx.Request().Header.Set(provider.SignatureHeader, signature)
	}
	return ctx, rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal failed: %v body=%s", err, rec.Body.String())
	}
	return out
}

func TestHealth(t *testing.T) {
	f := newControllerForTest()
	ctx, rec := jsonContext(http.MethodGet, "/health", "")

	if err := f.ctrl.Health(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || decodeBody(t, rec)["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateLinkSuccess(t *testing.T) {
	f := newControllerForTest()
	ctx, rec := jsonContext(http.MethodPost, "/create-link", `{"amount":"500.00","name":"Asha","email":"asha@example.com"}`)

	if err := f.ctrl.CreateLink(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["requestId"] != "plink_1" || body["shortUrl"] != "https://rzp.io/i/plink_1" || body["status"] != "created" {
		t.Fatalf("unexpected create link body: %s", rec.Body.String())
	}
	if body["amount"] != float64(500) {
		t.Fatalf("expected amount 500, got %v", body["amount"])
	}

	record, _ := f.records.FindByRequestID(context.Background(), "plink_1")
	if record == nil || record.AmountMinor != 50000 {
		t.Fatalf("expected stored record with 50000 minor units, got %+v", record)
	}
}

func TestCreateOrderSuccess(t *testing.T) {
	f := newControllerForTest()
	ctx, rec := jsonContext(http.MethodPost, "/create-order", `{"amount":12.5}`)

	_ = f.ctrl.CreateOrder(ctx)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["requestId"] != "order_1" || body["qrImageUrl"] != "https://rzp.io/qr/order_1.png" || body["amount"] != 12.5 {
		t.Fatalf("unexpected create order body: %s", rec.Body.String())
	}
}

func TestCreateLinkRejectsInvalidInput(t *testing.T) {
	cases := map[string]string{
		"malformed": `{bad`,
		"zero":      `{"amount":0}`,
		"negative":  `{"amount":"-5"}`,
		"precision": `{"amount":"1.005"}`,
		"not a num": `{"amount":"abc"}`,
		"email":     `{"amount":10,"email":"nope"}`,
		"too large": `{"amount":100000000000000000000}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			f := newControllerForTest()
			ctx, rec := jsonContext(http.MethodPost, "/create-link", body)

			_ = f.ctrl.CreateLink(ctx)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
			}
			if f.provider.nextID != 0 {
				t.Fatal("expected provider not to be called")
			}
		})
	}
}

func TestCreateLinkUpstreamFailure(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{err: errors.New("BAD_REQUEST_ERROR"), code: service.UpstreamCodeError},
		{err: fmt.Errorf("create payment link: %w", context.DeadlineExceeded), code: service.UpstreamCodeTimeout},
	}
	for _, tc := range cases {
		f := newControllerForTest()
		f.provider.createErr = tc.err
		ctx, rec := jsonContext(http.MethodPost, "/create-link", `{"amount":10}`)

		_ = f.ctrl.CreateLink(ctx)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if body := decodeBody(t, rec); body["code"] != tc.code {
			t.Fatalf("expected code %s, got %s", tc.code, rec.Body.String())
		}
	}
}

func TestCreateLinkStoreFailure(t *testing.T) {
	f := newControllerForTest()
	f.audit.err = errors.New("disk full")
	ctx, rec := jsonContext(http.MethodPost, "/create-link", `{"amount":10}`)

	_ = f.ctrl.CreateLink(ctx)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["code"] != nil {
		t.Fatalf("expected no upstream code, got %s", rec.Body.String())
	}
}

func TestGetStatus(t *testing.T) {
	f := newControllerForTest()
	create, _ := jsonContext(http.MethodPost, "/create-link", `{"amount":"500.00"}`)
	_ = f.ctrl.CreateLink(create)

	ctx, rec := jsonContext(http.MethodGet, "/status/plink_1", "")
	ctx.SetParamNames("requestId")
	ctx.SetParamValues("plink_1")

	_ = f.ctrl.GetStatus(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "created" || body["amount"] != float64(500) || body["kind"] != "payment_link" {
		t.Fatalf("unexpected status body: %s", rec.Body.String())
	}
}

func TestGetStatusNotFound(t *testing.T) {
	f := newControllerForTest()
	ctx, rec := jsonContext(http.MethodGet, "/status/plink_9", "")
	ctx.SetParamNames("requestId")
	ctx.SetParamValues("plink_9")

	_ = f.ctrl.GetStatus(ctx)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListRecords(t *testing.T) {
	f := newControllerForTest()
	for i := 0; i < 3; i++ {
		create, _ := jsonContext(http.MethodPost, "/create-link", `{"amount":1}`)
		_ = f.ctrl.CreateLink(create)
	}

	ctx, rec := jsonContext(http.MethodGet, "/records?status=created&limit=2", "")
	_ = f.ctrl.ListRecords(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var items []types.PaymentRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 records, got %d", len(items))
	}

	bad, badRec := jsonContext(http.MethodGet, "/records?status=settled", "")
	_ = f.ctrl.ListRecords(bad)
	if badRec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", badRec.Code)
	}
}

func TestWebhookAppliesSignedEvent(t *testing.T) {
	f := newControllerForTest()
	create, _ := jsonContext(http.MethodPost, "/create-link", `{"amount":"500.00"}`)
	_ = f.ctrl.CreateLink(create)

	body := `{"event":"payment_link.paid","payload":{"payment_link":{"entity":{"id":"plink_1","status":"paid"}}}}`
	ctx, rec := webhookContext(body, provider.Sign([]byte(body), controllerWebhookSecret))

	_ = f.ctrl.Webhook(ctx)
	if rec.Code != http.StatusOK || decodeBody(t, rec)["status"] != "ok" {
		t.Fatalf("expected 200 ok, got %d body=%s", rec.Code, rec.Body.String())
	}

	record, _ := f.records.FindByRequestID(context.Background(), "plink_1")
	if record.Status != entity.StatusPaid {
		t.Fatalf("expected paid, got %s", record.Status)
	}
}

func TestWebhookAcknowledgesUnmatchedEvents(t *testing.T) {
	f := newControllerForTest()
	body := `{"event":"payment_link.paid","payload":{"payment_link":{"entity":{"id":"plink_unknown"}}}}`
	ctx, rec := webhookContext(body, provider.Sign([]byte(body), controllerWebhookSecret))

	_ = f.ctrl.Webhook(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestListUnlinkedCaptures(t *testing.T) {
	f := newControllerForTest()
	body := `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_stray","order_id":"order_unknown","method":"upi","captured":true,"amount":12550,"notes":{}}}}}`
	ctx, rec := webhookContext(body, provider.Sign([]byte(body), controllerWebhookSecret))
	_ = f.ctrl.Webhook(ctx)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	ctx, rec = jsonContext(http.MethodGet, "/unlinked-captures?limit=10", "")
	if err := f.ctrl.ListUnlinkedCaptures(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(items) != 1 || items[0]["paymentId"] != "pay_stray" || items[0]["orderId"] != "order_unknown" || items[0]["amount"] != 125.5 {
		t.Fatalf("unexpected unlinked captures: %s", rec.Body.String())
	}
	if items[0]["payload"] != body {
		t.Fatalf("expected raw webhook payload, got %v", items[0]["payload"])
	}

	ctx, rec = jsonContext(http.MethodGet, "/unlinked-captures?limit=1000", "")
	_ = f.ctrl.ListUnlinkedCaptures(ctx)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized limit, got %d", rec.Code)
	}
}

func TestWebhookRejections(t *testing.T) {
	valid := `{"event":"payment_link.paid","payload":{"payment_link":{"entity":{"id":"plink_1"}}}}`
	cases := map[string]struct {
		body      string
		signature string
	}{
		"missing signature": {body: valid},
		"wrong secret":      {body: valid, signature: provider.Sign([]byte(valid), "other")},
		"tampered body":     {body: valid + " ", signature: provider.Sign([]byte(valid), controllerWebhookSecret)},
		"malformed json":    {body: `{"event":`, signature: provider.Sign([]byte(`{"event":`), controllerWebhookSecret)},
		"empty body":        {body: "", signature: "abc"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newControllerForTest()
			ctx, rec := webhookContext(tc.body, tc.signature)

			_ = f.ctrl.Webhook(ctx)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if body := decodeBody(t, rec); body["error"] != "invalid webhook" {
				t.Fatalf("unexpected error body: %s", rec.Body.String())
			}
		})
	}
}

func TestWebhookAuditFailureIs500(t *testing.T) {
	f := newControllerForTest()
	create, _ := jsonContext(http.MethodPost, "/create-link", `{"amount":"500.00"}`)
	_ = f.ctrl.CreateLink(create)
	f.audit.err = errors.New("disk full")

	body := `{"event":"payment_link.paid","payload":{"payment_link":{"entity":{"id":"plink_1"}}}}`
	ctx, rec := webhookContext(body, provider.Sign([]byte(body), controllerWebhookSecret))

	_ = f.ctrl.Webhook(ctx)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	record, _ := f.records.FindByRequestID(context.Background(), "plink_1")
	if record.Status != entity.StatusCreated {
		t.Fatalf("expected record unchanged, got %s", record.Status)
	}
}
