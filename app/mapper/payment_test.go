package mapper

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-payment-links/app/entity"
)

func TestAmountFromMinor(t *testing.T) {
	cases := map[int64]string{50000: "500", 50050: "500.5", 1: "0.01", 123456: "1234.56"}
	for minor, want := range cases {
		if got := AmountFromMinor(minor); string(got) != want {
			t.Fatalf("AmountFromMinor(%d) = %s, want %s", minor, got, want)
		}
	}
}

func TestRecordToResponseRendersAmountAsNumber(t *testing.T) {
	url := "https://rzp.io/i/abc"
	record := &entity.PaymentRecord{
		RequestID:   "plink_1",
		Kind:        entity.RequestKindPaymentLink,
		Status:      entity.StatusCreated,
		AmountMinor: 50000,
		Currency:    "INR",
		CheckoutURL: &url,
		CreatedAt:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	body, err := json.Marshal(RecordToResponse(record))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	_ = json.Unmarshal(body, &decoded)
	if decoded["amount"] != float64(500) || decoded["status"] != "created" || decoded["checkoutUrl"] != url {
		t.Fatalf("unexpected response body: %s", body)
	}
	if _, ok := decoded["updatedAt"]; ok {
		t.Fatalf("expected updatedAt to be omitted: %s", body)
	}

	link := RecordToCreateLinkResponse(record)
	if link.ShortURL != url || link.Status != "created" || string(link.Amount) != "500" {
		t.Fatalf("unexpected link response: %+v", link)
	}
}

func TestRecordToMap(t *testing.T) {
	captured := true
	paymentID := "pay_1"
	updated := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)
	out := RecordToMap(&entity.PaymentRecord{
		RequestID:   "order_1",
		Kind:        entity.RequestKindUPIQR,
		Status:      entity.StatusPaid,
		AmountMinor: 1050,
		Currency:    "INR",
		PaymentID:   &paymentID,
		Captured:    &captured,
		CreatedAt:   updated.Add(-time.Hour),
		UpdatedAt:   &updated,
	})

	if out["amount"] != 10.5 || out["paymentId"] != "pay_1" || out["captured"] != true {
		t.Fatalf("unexpected map: %+v", out)
	}
	if _, ok := out["email"]; ok {
		t.Fatal("expected nil email to be omitted")
	}
	if out["updatedAt"] != "2024-03-01T11:00:00Z" {
		t.Fatalf("unexpected updatedAt: %v", out["updatedAt"])
	}
	if RecordToMap(nil) != nil {
		t.Fatal("expected nil map for nil record")
	}
}
