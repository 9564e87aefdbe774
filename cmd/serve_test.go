package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"

	"github.com/vibast-solutions/ms-go-payment-links/app/controller"
	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
	"github.com/vibast-solutions/ms-go-payment-links/app/lock"
	"github.com/vibast-solutions/ms-go-payment-links/app/provider"
	"github.com/vibast-solutions/ms-go-payment-links/config"
)

const serveWebhookSecret = "whsec_serve"

type serveProvider struct {
	nextID int
}

func (p *serveProvider) CreatePaymentRequest(_ context.Context, input *provider.CreateInput) (*provider.CreateOutput, error) {
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

func (p *serveProvider) FetchPaymentRequestStatus(context.Context, entity.RequestKind, string) (string, error) {
	return "", nil
}

func testConfig(store config.StoreConfig) *config.Config {
	return &config.Config{
		App:      config.AppConfig{ServiceName: "payment-links-service"},
		Store:    store,
		Log:      config.LogConfig{Level: "info"},
		Razorpay: config.RazorpayConfig{WebhookSecret: serveWebhookSecret},
		Payments: config.PaymentsConfig{Currency: "INR", SyncStaleAfter: time.Minute, JobBatchSize: 100},
		CORS:     config.CORSConfig{AllowOrigins: []string{"*"}},
	}
}

type testServer struct {
	e  *echo.Echo
	rt *appRuntime
}

func newTestServer(t *testing.T, store config.StoreConfig) *testServer {
	t.Helper()
	rt, err := newRuntime(context.Background(), testConfig(store), &serveProvider{})
	if err != nil {
		t.Fatalf("new runtime: %v", err)
	}
	t.Cleanup(rt.Close)

	e := setupHTTPServer(rt.cfg, controller.NewPaymentController(rt.paymentService), rt.metrics, internalAuth{})
	return &testServer{e: e, rt: rt}
}

func (s *testServer) do(t *testing.T, method, target, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

func (s *testServer) webhook(t *testing.T, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	rec, _ := s.do(t, http.MethodPost, "/webhook", body, map[string]string{provider.SignatureHeader: signature})
	return rec
}

func TestPaymentLinkLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, config.StoreConfig{Driver: config.StoreDriverMemory})

	rec, created := s.do(t, http.MethodPost, "/create-link", `{"amount":"500.00","name":"Asha"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rec.Code, rec.Body.String())
	}
	if created["status"] != "created" || created["amount"] != float64(500) {
		t.Fatalf("unexpected create body: %s", rec.Body.String())
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatal("expected generated request id header")
	}
	requestID, _ := created["requestId"].(string)

	_, status := s.do(t, http.MethodGet, "/status/"+requestID, "", nil)
	if status["status"] != "created" || status["amount"] != float64(500) {
		t.Fatalf("unexpected status after create: %+v", status)
	}

	paid := `{"event":"payment_link.paid","payload":{"payment_link":{"entity":{"id":"` + requestID + `","status":"paid"}}}}`
	signature := provider.Sign([]byte(paid), serveWebhookSecret)
	if rec := s.webhook(t, paid, signature); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for signed webhook, got %d body=%s", rec.Code, rec.Body.String())
	}

	_, afterPaid := s.do(t, http.MethodGet, "/status/"+requestID, "", nil)
	if afterPaid["status"] != "paid" {
		t.Fatalf("expected paid, got %+v", afterPaid)
	}

	if rec := s.webhook(t, paid, signature); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for replayed webhook, got %d", rec.Code)
	}
	_, afterReplay := s.do(t, http.MethodGet, "/status/"+requestID, "", nil)
	if afterReplay["status"] != "paid" || afterReplay["updatedAt"] != afterPaid["updatedAt"] {
		t.Fatalf("expected replay to leave record unchanged, before=%+v after=%+v", afterPaid, afterReplay)
	}

	expired := `{"event":"payment_link.expired","payload":{"payment_link":{"entity":{"id":"` + requestID + `"}}}}`
	tampered := provider.Sign([]byte(expired), serveWebhookSecret)
	tampered = tampered[:len(tampered)-1] + "0"
	if tampered == provider.Sign([]byte(expired), serveWebhookSecret) {
		tampered = tampered[:len(tampered)-1] + "1"
	}
	if rec := s.webhook(t, expired, tampered); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for tampered signature, got %d", rec.Code)
	}
	_, afterTamper := s.do(t, http.MethodGet, "/status/"+requestID, "", nil)
	if afterTamper["status"] != "paid" {
		t.Fatalf("expected record unchanged by tampered webhook, got %+v", afterTamper)
	}

	metricsRec, _ := s.do(t, http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(metricsRec.Body.String(), `payments_webhook_rejected_total{reason="invalid_signature"} 1`) {
		t.Fatalf("expected rejected webhook metric, got:\n%s", metricsRec.Body.String())
	}
}

func TestCreateOrderAndListOverHTTP(t *testing.T) {
	s := newTestServer(t, config.StoreConfig{Driver: config.StoreDriverMemory})

	rec, body := s.do(t, http.MethodPost, "/create-order", `{"amount":99.99}`, nil)
	if rec.Code != http.StatusCreated || body["qrImageUrl"] == "" {
		t.Fatalf("unexpected create order response: %d %s", rec.Code, rec.Body.String())
	}

	listRec, _ := s.do(t, http.MethodGet, "/records?status=created", "", nil)
	var items []map[string]interface{}
	if err := json.Unmarshal(listRec.Body.Bytes(), &items); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(items) != 1 || items[0]["kind"] != "upi_qr" {
		t.Fatalf("unexpected records: %s", listRec.Body.String())
	}

	unlinkedRec, _ := s.do(t, http.MethodGet, "/unlinked-captures", "", nil)
	if unlinkedRec.Code != http.StatusOK || strings.TrimSpace(unlinkedRec.Body.String()) != "[]" {
		t.Fatalf("unexpected unlinked captures response: %d %s", unlinkedRec.Code, unlinkedRec.Body.String())
	}

	healthRec, health := s.do(t, http.MethodGet, "/health", "", nil)
	if healthRec.Code != http.StatusOK || health["status"] != "ok" {
		t.Fatalf("unexpected health response: %d", healthRec.Code)
	}
}

func TestSQLiteRuntimeReplaysIntoFreshStore(t *testing.T) {
	source := newTestServer(t, config.StoreConfig{Driver: config.StoreDriverSQLite, SQLitePath: ":memory:", AutoMigrate: true})

	_, created := source.do(t, http.MethodPost, "/create-link", `{"amount":"250.50"}`, nil)
	requestID, _ := created["requestId"].(string)
	paid := `{"event":"payment_link.partially_paid","payload":{"payment_link":{"entity":{"id":"` + requestID + `"}}}}`
	if rec := source.webhook(t, paid, provider.Sign([]byte(paid), serveWebhookSecret)); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	target := newTestServer(t, config.StoreConfig{Driver: config.StoreDriverSQLite, SQLitePath: ":memory:", AutoMigrate: true})
	stats, err := target.rt.paymentService.ReplayAuditLog(context.Background(), source.rt.audit)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if stats.Created != 1 || stats.Reconciled != 1 {
		t.Fatalf("unexpected replay stats: %+v", stats)
	}

	_, want := source.do(t, http.MethodGet, "/status/"+requestID, "", nil)
	_, got := target.do(t, http.MethodGet, "/status/"+requestID, "", nil)
	if got["status"] != "partially_paid" || got["amount"] != 250.5 || got["updatedAt"] != want["updatedAt"] {
		t.Fatalf("replayed record differs: want %+v got %+v", want, got)
	}
}

func TestNewLockerSelectsBackend(t *testing.T) {
	locker, closer, err := newLocker(context.Background(), config.RedisConfig{})
	if err != nil || closer != nil {
		t.Fatalf("unexpected keyed mutex setup: %v", err)
	}
	if _, ok := locker.(*lock.KeyedMutex); !ok {
		t.Fatalf("expected keyed mutex, got %T", locker)
	}

	mr := miniredis.RunT(t)
	locker, closer, err = newLocker(context.Background(), config.RedisConfig{Addr: mr.Addr(), LockTTL: time.Second})
	if err != nil {
		t.Fatalf("redis locker setup failed: %v", err)
	}
	defer func() { _ = closer() }()
	if _, ok := locker.(*lock.RedisLocker); !ok {
		t.Fatalf("expected redis locker, got %T", locker)
	}
}

func TestMySQLDSNForcesParseTime(t *testing.T) {
	dsn, err := mysqlDSN("user:pass@tcp(localhost:3306)/payments")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(dsn, "parseTime=true") {
		t.Fatalf("expected parseTime in dsn, got %s", dsn)
	}

	if _, err := mysqlDSN("not a dsn"); err == nil {
		t.Fatal("expected invalid dsn error")
	}
}
